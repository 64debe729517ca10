// Package account implements registration, sign-in and the token
// lifecycle, together with the signed-in user's profile and favourites.
package account

import (
	"context"
	"errors"
	"time"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/apperror"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/auth"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/data"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/media"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	resetTokenTTL  = 30 * time.Minute
	verifyTokenTTL = 24 * time.Hour

	minPassword = 8
	maxPassword = 72 // bcrypt ignores anything longer
)

// Users is the user persistence the service needs.
type Users interface {
	CreateUser(ctx context.Context, u *data.User) error
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
	GetUserByID(ctx context.Context, id bson.ObjectID) (*data.User, error)
	GetUserByRefreshToken(ctx context.Context, token string) (*data.User, error)
	UpdateProfile(ctx context.Context, id bson.ObjectID, patch data.UserPatch) (*data.User, error)
	SetPassword(ctx context.Context, id bson.ObjectID, hash string) error
	SetRefreshToken(ctx context.Context, id bson.ObjectID, token string, expires time.Time) error
	ClearRefreshToken(ctx context.Context, id bson.ObjectID) error
	MarkVerified(ctx context.Context, email string) error
	LinkGoogle(ctx context.Context, id bson.ObjectID, subject string) error
	SetProfileImage(ctx context.Context, id bson.ObjectID, url, publicID string) error
	Deactivate(ctx context.Context, id bson.ObjectID) error
	AddFavourite(ctx context.Context, id, propertyID bson.ObjectID) error
	RemoveFavourite(ctx context.Context, id, propertyID bson.ObjectID) error
}

// Properties resolves favourites and retires a landlord's listings.
type Properties interface {
	GetProperty(ctx context.Context, id bson.ObjectID) (*data.Property, error)
	GetPropertiesByIDs(ctx context.Context, ids []bson.ObjectID) ([]*data.Property, error)
	DeactivateByLandlord(ctx context.Context, landlordID bson.ObjectID) (int64, error)
}

// Bookings releases a departing user's reservations.
type Bookings interface {
	CancelActiveForUser(ctx context.Context, userID bson.ObjectID) (int64, error)
}

// Guard throttles sensitive operations per identifier.
type Guard interface {
	Check(ctx context.Context, op, identifier string) error
}

// IdentityVerifier validates federated sign-in tokens.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*auth.GoogleIdentity, error)
}

// Notifier sends account emails. Calls must not block.
type Notifier interface {
	Welcome(email, name string)
	EmailVerification(email, name, token string)
	PasswordReset(email, token string)
}

// Deps are the collaborators of a Service. Google and Images may be nil
// when the corresponding integration is not configured.
type Deps struct {
	Users      Users
	Properties Properties
	Bookings   Bookings
	Tokens     *auth.JWTManager
	RefreshTTL time.Duration
	Guard      Guard
	Google     IdentityVerifier
	Images     media.ImageHost
	Notifier   Notifier
}

// Service implements account operations.
type Service struct {
	users      Users
	properties Properties
	bookings   Bookings
	tokens     *auth.JWTManager
	refreshTTL time.Duration
	guard      Guard
	google     IdentityVerifier
	images     media.ImageHost
	notifier   Notifier
	now        func() time.Time
}

// NewService wires a Service.
func NewService(d Deps) *Service {
	return &Service{
		users:      d.Users,
		properties: d.Properties,
		bookings:   d.Bookings,
		tokens:     d.Tokens,
		refreshTTL: d.RefreshTTL,
		guard:      d.Guard,
		google:     d.Google,
		images:     d.Images,
		notifier:   d.Notifier,
		now:        time.Now,
	}
}

// Authenticate resolves a bearer access token to its active user.
func (s *Service) Authenticate(ctx context.Context, token string) (*data.User, error) {
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return nil, apperror.Unauthorized("Could not validate credentials")
	}
	id, err := bson.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, apperror.Unauthorized("Could not validate credentials")
	}
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, apperror.Unauthorized("Could not validate credentials")
		}
		return nil, apperror.Internal("load user", err)
	}
	if !u.IsActive {
		return nil, apperror.Unauthorized("Inactive user")
	}
	return u, nil
}

func (s *Service) user(ctx context.Context, id bson.ObjectID) (*data.User, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, apperror.Internal("load user", err)
	}
	return u, nil
}

func validatePassword(pw string) error {
	if len(pw) < minPassword || len(pw) > maxPassword {
		return apperror.Validation("password must be between %d and %d characters", minPassword, maxPassword)
	}
	return nil
}
