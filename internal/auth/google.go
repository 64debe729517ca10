package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/normalize"
	"github.com/golang-jwt/jwt/v5"
)

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

var ErrEmailNotVerified = errors.New("google account email is not verified")

// GoogleIdentity is the verified subset of a Google ID token.
type GoogleIdentity struct {
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
	Picture    string
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// GoogleVerifier validates ID tokens issued by Google Sign-In.
type GoogleVerifier struct {
	clientID string
	keys     jwt.Keyfunc
}

// NewGoogleVerifier returns a verifier that resolves signing keys from the
// JWKS at certsURL and keeps them refreshed in the background until ctx ends.
func NewGoogleVerifier(ctx context.Context, certsURL, clientID string) (*GoogleVerifier, error) {
	k, err := keyfunc.NewDefaultCtx(ctx, []string{certsURL})
	if err != nil {
		return nil, fmt.Errorf("load google signing keys: %w", err)
	}
	return &GoogleVerifier{clientID: clientID, keys: k.Keyfunc}, nil
}

// NewGoogleVerifierFromJWKS builds a verifier from a static JWK set.
func NewGoogleVerifierFromJWKS(raw json.RawMessage, clientID string) (*GoogleVerifier, error) {
	k, err := keyfunc.NewJWKSetJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("parse jwks: %w", err)
	}
	return &GoogleVerifier{clientID: clientID, keys: k.Keyfunc}, nil
}

// Verify checks the token signature, issuer, audience and expiry and returns
// the identity it asserts.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	claims := &googleClaims{}
	token, err := jwt.ParseWithClaims(idToken, claims, v.keys,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if !googleIssuers[claims.Issuer] {
		return nil, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	if claims.Email == "" || !claims.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	return &GoogleIdentity{
		Subject:    claims.Subject,
		Email:      normalize.Email(claims.Email),
		GivenName:  claims.GivenName,
		FamilyName: claims.FamilyName,
		Picture:    claims.Picture,
	}, nil
}
