package account

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/apperror"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/auth"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/data"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/logging"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/normalize"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/ratelimit"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Messages returned whether or not the address is registered.
const (
	ForgotPasswordMessage     = "If email exists, password reset link has been sent"
	ResendVerificationMessage = "If the email is registered and not yet verified, a verification link has been sent"
)

var errBadCredentials = apperror.Unauthorized("Incorrect email or password")

// RegisterInput is a new password account.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	UserType  string
}

// Tokens is the credential pair handed to a signed-in client.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// ParseRole maps a requested account type to a role. "user" is accepted
// for tenant; empty defaults to tenant.
func ParseRole(s string) (data.Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "user", string(data.RoleTenant):
		return data.RoleTenant, nil
	case string(data.RoleLandlord):
		return data.RoleLandlord, nil
	}
	return "", apperror.Validation("user_type must be tenant or landlord")
}

// Register creates a password account and sends the welcome and
// verification emails.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*data.User, error) {
	email := normalize.Email(in.Email)
	if err := s.guard.Check(ctx, ratelimit.OpRegister, email); err != nil {
		return nil, err
	}
	if email == "" {
		return nil, apperror.Validation("email is required")
	}
	role, err := ParseRole(in.UserType)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	first, last := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if first == "" || last == "" {
		return nil, apperror.Validation("first_name and last_name are required")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperror.Internal("hash password", err)
	}
	u := &data.User{
		Email:     email,
		Password:  hash,
		FirstName: first,
		LastName:  last,
		Phone:     normalize.Phone(in.Phone),
		Role:      role,
		IsActive:  true,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, data.ErrDuplicate) {
			return nil, apperror.Conflict("Email already registered").WithStatus(http.StatusBadRequest)
		}
		return nil, apperror.Internal("create user", err)
	}
	logging.FromContext(ctx).Info().Str("user_id", u.ID.Hex()).Str("role", string(role)).Msg("user registered")

	s.notifier.Welcome(u.Email, u.FirstName)
	s.sendVerification(ctx, u)
	return u, nil
}

// Login checks a password and starts a session.
func (s *Service) Login(ctx context.Context, email, password string) (*Tokens, error) {
	email = normalize.Email(email)
	if err := s.guard.Check(ctx, ratelimit.OpLogin, email); err != nil {
		return nil, err
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, apperror.Internal("load user", err)
	}
	if auth.CheckPassword(u.Password, password) != nil || !u.IsActive {
		return nil, errBadCredentials
	}
	return s.startSession(ctx, u)
}

// Refresh exchanges a refresh token for a new token pair. The presented
// refresh token stops working.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	u, err := s.users.GetUserByRefreshToken(ctx, strings.TrimSpace(refreshToken))
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, apperror.Unauthorized("Invalid refresh token")
		}
		return nil, apperror.Internal("load user", err)
	}
	if !u.IsActive {
		return nil, apperror.Unauthorized("Invalid refresh token")
	}
	if u.RefreshTokenExpires == nil || s.now().After(*u.RefreshTokenExpires) {
		if err := s.users.ClearRefreshToken(ctx, u.ID); err != nil {
			logging.FromContext(ctx).Warn().Err(err).Str("user_id", u.ID.Hex()).Msg("clear expired refresh token")
		}
		return nil, apperror.Unauthorized("Refresh token expired")
	}
	return s.startSession(ctx, u)
}

// Logout revokes the actor's refresh token.
func (s *Service) Logout(ctx context.Context, actor data.Actor) error {
	if err := s.users.ClearRefreshToken(ctx, actor.ID); err != nil && !errors.Is(err, data.ErrNotFound) {
		return apperror.Internal("clear refresh token", err)
	}
	return nil
}

// Me returns the actor's account.
func (s *Service) Me(ctx context.Context, actor data.Actor) (*data.User, error) {
	return s.user(ctx, actor.ID)
}

// ChangePassword replaces the actor's password after checking the current
// one. Other sessions lose their refresh token.
func (s *Service) ChangePassword(ctx context.Context, actor data.Actor, current, next string) error {
	u, err := s.user(ctx, actor.ID)
	if err != nil {
		return err
	}
	if auth.CheckPassword(u.Password, current) != nil {
		return apperror.Validation("Current password is incorrect")
	}
	return s.setPassword(ctx, u.ID, next)
}

// ForgotPassword emails a reset link when the address belongs to an
// active account. The outcome is not revealed to the caller.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = normalize.Email(email)
	if err := s.guard.Check(ctx, ratelimit.OpPasswordReset, email); err != nil {
		return "", err
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, data.ErrNotFound):
		return ForgotPasswordMessage, nil
	case err != nil:
		return "", apperror.Internal("load user", err)
	case !u.IsActive:
		return ForgotPasswordMessage, nil
	}

	token, err := s.tokens.IssuePurposeToken(u.Email, auth.PurposePasswordReset, resetTokenTTL)
	if err != nil {
		return "", apperror.Internal("issue reset token", err)
	}
	s.notifier.PasswordReset(u.Email, token)
	return ForgotPasswordMessage, nil
}

// ResetPassword sets a new password using an emailed reset token.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	claims, err := s.tokens.VerifyPurposeToken(token, auth.PurposePasswordReset)
	if err != nil {
		return apperror.Validation("Invalid or expired token")
	}
	u, err := s.users.GetUserByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return apperror.Validation("Invalid or expired token")
		}
		return apperror.Internal("load user", err)
	}
	if err := s.setPassword(ctx, u.ID, password); err != nil {
		return err
	}
	logging.FromContext(ctx).Info().Str("user_id", u.ID.Hex()).Msg("password reset")
	return nil
}

// VerifyEmail marks the account named by an emailed verification token as
// verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.tokens.VerifyPurposeToken(token, auth.PurposeEmailVerify)
	if err != nil {
		return apperror.Validation("Invalid or expired token")
	}
	if err := s.users.MarkVerified(ctx, claims.Email); err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return apperror.Validation("Invalid or expired token")
		}
		return apperror.Internal("mark verified", err)
	}
	return nil
}

// ResendVerification emails a new verification link to an unverified
// account. The outcome is not revealed to the caller.
func (s *Service) ResendVerification(ctx context.Context, email string) (string, error) {
	email = normalize.Email(email)
	if err := s.guard.Check(ctx, ratelimit.OpVerifyEmail, email); err != nil {
		return "", err
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, data.ErrNotFound):
		return ResendVerificationMessage, nil
	case err != nil:
		return "", apperror.Internal("load user", err)
	}
	if u.IsActive && !u.IsVerified {
		s.sendVerification(ctx, u)
	}
	return ResendVerificationMessage, nil
}

// GoogleSignIn signs in with a Google ID token. Unknown addresses get a
// verified account without a password; known ones are linked.
func (s *Service) GoogleSignIn(ctx context.Context, idToken, userType string) (*Tokens, error) {
	if s.google == nil {
		return nil, apperror.Forbidden("Google sign-in is not enabled")
	}
	id, err := s.google.Verify(ctx, idToken)
	if err != nil {
		logging.FromContext(ctx).Debug().Err(err).Msg("google token rejected")
		return nil, apperror.Unauthorized("Invalid Google token")
	}

	u, err := s.users.GetUserByEmail(ctx, id.Email)
	switch {
	case errors.Is(err, data.ErrNotFound):
		u, err = s.provisionGoogleUser(ctx, id, userType)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, apperror.Internal("load user", err)
	default:
		if !u.IsActive {
			return nil, apperror.Unauthorized("Inactive user")
		}
		if u.GoogleID != id.Subject {
			if err := s.users.LinkGoogle(ctx, u.ID, id.Subject); err != nil {
				return nil, apperror.Internal("link google account", err)
			}
			u.GoogleID, u.IsVerified = id.Subject, true
		}
	}
	return s.startSession(ctx, u)
}

func (s *Service) provisionGoogleUser(ctx context.Context, id *auth.GoogleIdentity, userType string) (*data.User, error) {
	role, err := ParseRole(userType)
	if err != nil {
		return nil, err
	}
	u := &data.User{
		Email:        id.Email,
		FirstName:    id.GivenName,
		LastName:     id.FamilyName,
		Role:         role,
		ProfileImage: id.Picture,
		GoogleID:     id.Subject,
		IsActive:     true,
		IsVerified:   true,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, data.ErrDuplicate) {
			return nil, apperror.Conflict("Account is being created, please retry")
		}
		return nil, apperror.Internal("create user", err)
	}
	logging.FromContext(ctx).Info().Str("user_id", u.ID.Hex()).Msg("user provisioned from google")
	s.notifier.Welcome(u.Email, u.FirstName)
	return u, nil
}

// startSession issues an access token and stores a fresh refresh token,
// replacing any earlier one.
func (s *Service) startSession(ctx context.Context, u *data.User) (*Tokens, error) {
	access, _, err := s.tokens.IssueAccessToken(u.ID, u.Email, string(u.Role))
	if err != nil {
		return nil, apperror.Internal("issue access token", err)
	}
	refresh, err := auth.NewRefreshToken()
	if err != nil {
		return nil, apperror.Internal("issue refresh token", err)
	}
	if err := s.users.SetRefreshToken(ctx, u.ID, refresh, s.now().Add(s.refreshTTL)); err != nil {
		return nil, apperror.Internal("store refresh token", err)
	}
	return &Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

func (s *Service) setPassword(ctx context.Context, id bson.ObjectID, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return apperror.Internal("hash password", err)
	}
	if err := s.users.SetPassword(ctx, id, hash); err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return apperror.NotFound("User not found")
		}
		return apperror.Internal("set password", err)
	}
	return nil
}

func (s *Service) sendVerification(ctx context.Context, u *data.User) {
	token, err := s.tokens.IssuePurposeToken(u.Email, auth.PurposeEmailVerify, verifyTokenTTL)
	if err != nil {
		logging.FromContext(ctx).Error().Err(err).Str("user_id", u.ID.Hex()).Msg("issue verification token")
		return
	}
	s.notifier.EmailVerification(u.Email, u.FirstName, token)
}
