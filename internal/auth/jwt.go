package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/normalize"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Token purposes. Access tokens authenticate API calls; the others are
// single-use links sent by email and are rejected by VerifyAccessToken.
const (
	PurposeAccess        = "access"
	PurposePasswordReset = "password_reset"
	PurposeEmailVerify   = "email_verify"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrWrongPurpose  = errors.New("token not valid for this operation")
	ErrUnknownKeyID  = errors.New("unknown signing key id")
	ErrBadAlgorithm  = errors.New("signing algorithm must be HMAC")
	errMissingSecret = errors.New("no signing key configured")
)

// JWTManager signs and validates JWT tokens used by the API.
type JWTManager struct {
	keys      map[string][]byte // kid -> HMAC secret; "" is the single-secret key
	activeKid string            // kid used when signing new tokens
	method    *jwt.SigningMethodHMAC
	duration  time.Duration // access token lifetime
	now       func() time.Time
}

// Claims is the JWT payload. Subject carries the normalized email.
type Claims struct {
	UserID  string `json:"user_id,omitempty"` // MongoDB ObjectID as hex
	Email   string `json:"email"`
	Role    string `json:"role,omitempty"`
	Purpose string `json:"type"`
	jwt.RegisteredClaims
}

// NewJWTManager returns a manager signing with a single HS256 secret.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	return NewJWTManagerFromKeys(map[string]string{"": secretKey}, "", duration)
}

// NewJWTManagerFromKeys returns a manager that signs with activeKid and
// verifies tokens signed by any of keys, selected by the kid header. This
// lets operators rotate secrets without invalidating live sessions.
func NewJWTManagerFromKeys(keys map[string]string, activeKid string, duration time.Duration) *JWTManager {
	m := &JWTManager{
		keys:      make(map[string][]byte, len(keys)),
		activeKid: activeKid,
		method:    jwt.SigningMethodHS256,
		duration:  duration,
		now:       time.Now,
	}
	for kid, secret := range keys {
		m.keys[kid] = []byte(secret)
	}
	return m
}

// UseAlgorithm switches the signing algorithm (HS256, HS384 or HS512).
func (m *JWTManager) UseAlgorithm(alg string) error {
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBadAlgorithm, alg)
	}
	m.method = method
	return nil
}

// AccessTTL is the lifetime of access tokens.
func (m *JWTManager) AccessTTL() time.Duration {
	return m.duration
}

// IssueAccessToken issues a signed access token for a user.
func (m *JWTManager) IssueAccessToken(userID bson.ObjectID, email, role string) (string, time.Time, error) {
	claims := &Claims{
		UserID:  userID.Hex(),
		Email:   normalize.Email(email),
		Role:    role,
		Purpose: PurposeAccess,
	}
	return m.sign(claims, m.duration)
}

// IssuePurposeToken issues a short-lived token for an email-link flow.
func (m *JWTManager) IssuePurposeToken(email, purpose string, ttl time.Duration) (string, error) {
	claims := &Claims{
		Email:   normalize.Email(email),
		Purpose: purpose,
	}
	tok, _, err := m.sign(claims, ttl)
	return tok, err
}

func (m *JWTManager) sign(claims *Claims, ttl time.Duration) (string, time.Time, error) {
	secret, ok := m.keys[m.activeKid]
	if !ok || len(secret) == 0 {
		return "", time.Time{}, errMissingSecret
	}

	now := m.now()
	expiresAt := now.Add(ttl)
	claims.Subject = claims.Email
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)

	token := jwt.NewWithClaims(m.method, claims)
	if m.activeKid != "" {
		token.Header["kid"] = m.activeKid
	}

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyAccessToken parses and validates an access token.
func (m *JWTManager) VerifyAccessToken(tokenString string) (*Claims, error) {
	return m.VerifyPurposeToken(tokenString, PurposeAccess)
}

// VerifyPurposeToken parses a token and checks that it was issued for purpose.
func (m *JWTManager) VerifyPurposeToken(tokenString, purpose string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, m.keyFunc,
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}

	// tokens minted before normalization was enforced may carry mixed case
	claims.Email = normalize.Email(claims.Email)
	claims.Subject = normalize.Email(claims.Subject)
	return claims, nil
}

// keyFunc picks the verification secret from the kid header.
func (m *JWTManager) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	kid, _ := token.Header["kid"].(string)
	secret, ok := m.keys[kid]
	if !ok {
		return nil, ErrUnknownKeyID
	}
	return secret, nil
}
