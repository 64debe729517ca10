package main

import (
	"context"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/account"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/booking"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/data"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/listing"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/media"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/review"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type accountService interface {
	Authenticate(ctx context.Context, token string) (*data.User, error)
	Register(ctx context.Context, in account.RegisterInput) (*data.User, error)
	Login(ctx context.Context, email, password string) (*account.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*account.Tokens, error)
	Logout(ctx context.Context, actor data.Actor) error
	Me(ctx context.Context, actor data.Actor) (*data.User, error)
	ChangePassword(ctx context.Context, actor data.Actor, current, next string) error
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, password string) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) (string, error)
	GoogleSignIn(ctx context.Context, idToken, userType string) (*account.Tokens, error)

	Profile(ctx context.Context, actor data.Actor) (*data.User, error)
	UpdateProfile(ctx context.Context, actor data.Actor, p account.ProfilePatch) (*data.User, error)
	UploadAvatar(ctx context.Context, actor data.Actor, f media.File) (string, error)
	DeleteAccount(ctx context.Context, actor data.Actor) error
	Favourites(ctx context.Context, actor data.Actor) ([]*data.Property, error)
	AddFavourite(ctx context.Context, actor data.Actor, propertyID bson.ObjectID) error
	RemoveFavourite(ctx context.Context, actor data.Actor, propertyID bson.ObjectID) error
}

type listingService interface {
	List(ctx context.Context, q listing.Query, page data.Page) ([]*data.Property, int64, error)
	Get(ctx context.Context, viewer *data.Actor, id bson.ObjectID) (*data.Property, error)
	Create(ctx context.Context, actor data.Actor, in listing.Input) (*data.Property, error)
	Update(ctx context.Context, actor data.Actor, id bson.ObjectID, patch data.PropertyPatch) (*data.Property, error)
	Delete(ctx context.Context, actor data.Actor, id bson.ObjectID) error
	AddImages(ctx context.Context, actor data.Actor, id bson.ObjectID, files []media.File) ([]string, error)
	ListMine(ctx context.Context, actor data.Actor, includeInactive bool, page data.Page) ([]*data.Property, int64, error)
}

type bookingService interface {
	Create(ctx context.Context, actor data.Actor, in booking.CreateInput) (booking.View, error)
	Get(ctx context.Context, actor data.Actor, id bson.ObjectID) (booking.View, error)
	ListForTenant(ctx context.Context, actor data.Actor, status data.BookingStatus, page data.Page) (booking.List, error)
	ListForLandlord(ctx context.Context, actor data.Actor, status data.BookingStatus, page data.Page) (booking.List, error)
	Update(ctx context.Context, actor data.Actor, id bson.ObjectID, p booking.Patch) (booking.View, error)
	Cancel(ctx context.Context, actor data.Actor, id bson.ObjectID) (booking.View, error)
	Approve(ctx context.Context, actor data.Actor, id bson.ObjectID, response string) (booking.View, error)
	Reject(ctx context.Context, actor data.Actor, id bson.ObjectID, response string) (booking.View, error)
}

type reviewService interface {
	List(ctx context.Context, f review.Filter, page data.Page) ([]*data.Review, int64, error)
	Featured(ctx context.Context, limit int) ([]*data.Review, error)
	Create(ctx context.Context, actor data.Actor, in review.Input) (*data.Review, error)
	Update(ctx context.Context, actor data.Actor, id bson.ObjectID, p review.Patch) (*data.Review, error)
	Delete(ctx context.Context, actor data.Actor, id bson.ObjectID) error
	Approve(ctx context.Context, actor data.Actor, id bson.ObjectID) (*data.Review, error)
	Feature(ctx context.Context, actor data.Actor, id bson.ObjectID) (*data.Review, error)
}

// pinger reports database reachability.
type pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the services behind the HTTP handlers.
type Server struct {
	accounts accountService
	listings listingService
	bookings bookingService
	reviews  reviewService
	db       pinger
}

// newServer returns a Server wired with the domain services.
func newServer(accounts accountService, listings listingService, bookings bookingService, reviews reviewService, db pinger) *Server {
	return &Server{
		accounts: accounts,
		listings: listings,
		bookings: bookings,
		reviews:  reviews,
		db:       db,
	}
}
