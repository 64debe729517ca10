// Package booking implements the booking lifecycle: availability checks,
// tenant requests and edits, landlord decisions, and the joined views
// returned to both sides.
//
// A booking moves pending -> confirmed (landlord approval), pending ->
// cancelled (landlord rejection or tenant cancellation), confirmed ->
// cancelled (tenant cancellation) and confirmed -> completed. cancelled and
// completed are terminal. For each property the pending and confirmed
// bookings never overlap.
package booking

import (
	"context"
	"time"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/data"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/notify"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Bookings is the booking persistence the service needs.
type Bookings interface {
	CreateBooking(ctx context.Context, b *data.Booking) error
	GetBooking(ctx context.Context, id bson.ObjectID) (*data.Booking, error)
	FindOverlapping(ctx context.Context, propertyID bson.ObjectID, checkIn, checkOut time.Time, exclude *bson.ObjectID) (*data.Booking, error)
	HasActiveBooking(ctx context.Context, userID, propertyID bson.ObjectID, exclude *bson.ObjectID) (bool, error)
	ListBookings(ctx context.Context, f data.BookingFilter, page data.Page) ([]*data.Booking, int64, error)
	UpdateBooking(ctx context.Context, id bson.ObjectID, status data.BookingStatus, patch data.BookingPatch) (*data.Booking, error)
	TransitionStatus(ctx context.Context, id bson.ObjectID, from []data.BookingStatus, to data.BookingStatus, response *string) (*data.Booking, error)
}

// Properties resolves the properties bookings refer to.
type Properties interface {
	GetProperty(ctx context.Context, id bson.ObjectID) (*data.Property, error)
	GetPropertiesByIDs(ctx context.Context, ids []bson.ObjectID) ([]*data.Property, error)
	ListIDsByLandlord(ctx context.Context, landlordID bson.ObjectID) ([]bson.ObjectID, error)
}

// Users resolves tenants and landlords for display.
type Users interface {
	GetUsersByIDs(ctx context.Context, ids []bson.ObjectID) ([]*data.User, error)
}

// Locker serializes booking writes per property.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(context.Context) error, error)
}

// Notifier receives booking side effects. Implementations must not block.
type Notifier interface {
	BookingRequested(n notify.BookingNotice)
	BookingDecided(n notify.BookingNotice)
	BookingChanged(n notify.BookingNotice)
}

// Overlaps reports whether [aIn, aOut) and [bIn, bOut) intersect. Intervals
// that only touch (one ends when the other starts) do not overlap.
func Overlaps(aIn, aOut, bIn, bOut time.Time) bool {
	return aIn.Before(bOut) && bIn.Before(aOut)
}

// CreateInput is a tenant's booking request.
type CreateInput struct {
	PropertyID      bson.ObjectID
	CheckIn         time.Time
	CheckOut        time.Time
	Guests          int
	TotalPrice      float64
	SpecialRequests string
}

// Patch is a tenant's partial edit of a pending booking. Status is accepted
// only so it can be rejected: tenants change status through Cancel.
type Patch struct {
	CheckIn         *time.Time
	CheckOut        *time.Time
	Guests          *int
	TotalPrice      *float64
	SpecialRequests *string
	Status          *data.BookingStatus
}

// View is a booking joined with property and party display fields.
type View struct {
	*data.Booking
	PropertyTitle    string `json:"property_title,omitempty"`
	PropertyLocation string `json:"property_location,omitempty"`
	UserName         string `json:"user_name,omitempty"`
	UserEmail        string `json:"user_email,omitempty"`
	UserPhone        string `json:"user_phone,omitempty"`
	LandlordName     string `json:"landlord_name,omitempty"`
	LandlordEmail    string `json:"landlord_email,omitempty"`
	LandlordPhone    string `json:"landlord_phone,omitempty"`
}

// List is one page of booking views.
type List struct {
	Bookings []View `json:"bookings"`
	Total    int64  `json:"total"`
	Page     int64  `json:"page"`
	Limit    int64  `json:"limit"`
	Pages    int64  `json:"pages"`
}

func newList(views []View, total int64, page data.Page) List {
	page = page.Normalize()
	return List{
		Bookings: views,
		Total:    total,
		Page:     page.Skip/page.Limit + 1,
		Limit:    page.Limit,
		Pages:    (total + page.Limit - 1) / page.Limit,
	}
}
