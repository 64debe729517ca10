package data

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Role distinguishes users who book from users who list properties.
type Role string

const (
	RoleTenant   Role = "tenant"
	RoleLandlord Role = "landlord"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleTenant || r == RoleLandlord
}

// User maps to the users collection.
type User struct {
	ID                  bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	Email               string          `bson:"email" json:"email"`
	Password            string          `bson:"password,omitempty" json:"-"`
	FirstName           string          `bson:"first_name" json:"first_name"`
	LastName            string          `bson:"last_name" json:"last_name"`
	Phone               string          `bson:"phone,omitempty" json:"phone,omitempty"`
	Role                Role            `bson:"user_type" json:"user_type"`
	ProfileImage        string          `bson:"profile_image,omitempty" json:"profile_image,omitempty"`
	ProfileImageID      string          `bson:"profile_image_id,omitempty" json:"-"`
	GoogleID            string          `bson:"google_id,omitempty" json:"-"`
	IsActive            bool            `bson:"is_active" json:"is_active"`
	IsVerified          bool            `bson:"is_verified" json:"is_verified"`
	Favourites          []bson.ObjectID `bson:"favourites" json:"favourites"`
	RefreshToken        string          `bson:"refresh_token,omitempty" json:"-"`
	RefreshTokenExpires *time.Time      `bson:"refresh_token_expires,omitempty" json:"-"`
	CreatedAt           time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `bson:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Actor returns the authenticated identity derived from u.
func (u *User) Actor() Actor {
	return Actor{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
	}
}

// Actor is the authenticated caller of an operation. Handlers obtain it from
// the auth middleware and pass it explicitly into services.
type Actor struct {
	ID        bson.ObjectID
	Email     string
	Role      Role
	FirstName string
	LastName  string
	Phone     string
}

// IsLandlord reports whether the actor may manage properties.
func (a Actor) IsLandlord() bool {
	return a.Role == RoleLandlord
}

// PropertyType is the kind of accommodation.
type PropertyType string

const (
	PropertyRoom      PropertyType = "room"
	PropertyApartment PropertyType = "apartment"
	PropertyHouse     PropertyType = "house"
	PropertyLodge     PropertyType = "lodge"
)

// Valid reports whether t is a known property type.
func (t PropertyType) Valid() bool {
	switch t {
	case PropertyRoom, PropertyApartment, PropertyHouse, PropertyLodge:
		return true
	}
	return false
}

// Location is where a property is.
type Location struct {
	Address   string   `bson:"address" json:"address"`
	City      string   `bson:"city" json:"city"`
	Country   string   `bson:"country" json:"country"`
	Latitude  *float64 `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude *float64 `bson:"longitude,omitempty" json:"longitude,omitempty"`
	NearPark  string   `bson:"near_park,omitempty" json:"near_park,omitempty"`
}

// Amenities are the facility flags of a property.
type Amenities struct {
	Wifi                 bool `bson:"wifi" json:"wifi"`
	Parking              bool `bson:"parking" json:"parking"`
	Kitchen              bool `bson:"kitchen" json:"kitchen"`
	AirConditioning      bool `bson:"ac" json:"ac"`
	Heating              bool `bson:"heating" json:"heating"`
	Washer               bool `bson:"washer" json:"washer"`
	Dryer                bool `bson:"dryer" json:"dryer"`
	TV                   bool `bson:"tv" json:"tv"`
	Workspace            bool `bson:"workspace" json:"workspace"`
	Balcony              bool `bson:"balcony" json:"balcony"`
	Garden               bool `bson:"garden" json:"garden"`
	Pool                 bool `bson:"pool" json:"pool"`
	Gym                  bool `bson:"gym" json:"gym"`
	WildlifeViewing      bool `bson:"wildlife_viewing" json:"wildlife_viewing"`
	PhotographyEquipment bool `bson:"photography_equipment" json:"photography_equipment"`
	GuidedTours          bool `bson:"guided_tours" json:"guided_tours"`
}

// AmenityNames lists the bson field names of Amenities, used to validate
// amenity filters.
var AmenityNames = map[string]bool{
	"wifi": true, "parking": true, "kitchen": true, "ac": true,
	"heating": true, "washer": true, "dryer": true, "tv": true,
	"workspace": true, "balcony": true, "garden": true, "pool": true,
	"gym": true, "wildlife_viewing": true, "photography_equipment": true,
	"guided_tours": true,
}

// Property maps to the properties collection.
type Property struct {
	ID              bson.ObjectID `bson:"_id,omitempty" json:"id"`
	LandlordID      bson.ObjectID `bson:"landlord_id" json:"landlord_id"`
	Title           string        `bson:"title" json:"title"`
	Description     string        `bson:"description" json:"description"`
	PropertyType    PropertyType  `bson:"property_type" json:"property_type"`
	MaxGuests       int           `bson:"max_guests" json:"max_guests"`
	Bedrooms        int           `bson:"bedrooms" json:"bedrooms"`
	Bathrooms       int           `bson:"bathrooms" json:"bathrooms"`
	PricePerNight   float64       `bson:"price_per_night" json:"price_per_night"`
	SecurityDeposit *float64      `bson:"security_deposit,omitempty" json:"security_deposit,omitempty"`
	Location        Location      `bson:"location" json:"location"`
	Amenities       Amenities     `bson:"amenities" json:"amenities"`
	Images          []string      `bson:"images" json:"images"`
	IsActive        bool          `bson:"is_active" json:"is_active"`
	IsFeatured      bool          `bson:"is_featured" json:"is_featured"`
	CreatedAt       time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `bson:"updated_at" json:"updated_at"`
}

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// ActiveStatuses are the non-terminal statuses that hold a property's dates.
var ActiveStatuses = []BookingStatus{BookingPending, BookingConfirmed}

// Terminal reports whether no further transition is possible.
func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingCompleted
}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

// Booking maps to the bookings collection. Dates form the half-open
// interval [CheckIn, CheckOut).
type Booking struct {
	ID               bson.ObjectID `bson:"_id,omitempty" json:"id"`
	PropertyID       bson.ObjectID `bson:"property_id" json:"property_id"`
	UserID           bson.ObjectID `bson:"user_id" json:"user_id"`
	CheckIn          time.Time     `bson:"check_in" json:"check_in"`
	CheckOut         time.Time     `bson:"check_out" json:"check_out"`
	Guests           int           `bson:"guests" json:"guests"`
	TotalPrice       float64       `bson:"total_price" json:"total_price"`
	SpecialRequests  string        `bson:"special_requests,omitempty" json:"special_requests,omitempty"`
	Status           BookingStatus `bson:"status" json:"status"`
	LandlordResponse string        `bson:"landlord_response,omitempty" json:"landlord_response,omitempty"`
	CreatedAt        time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `bson:"updated_at" json:"updated_at"`
}

// Review maps to the reviews collection. A nil PropertyID marks a review of
// the platform itself.
type Review struct {
	ID         bson.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID     bson.ObjectID  `bson:"user_id" json:"user_id"`
	PropertyID *bson.ObjectID `bson:"property_id" json:"property_id,omitempty"`
	Rating     int            `bson:"rating" json:"rating"`
	Comment    string         `bson:"comment" json:"comment"`
	UserName   string         `bson:"user_name" json:"user_name"`
	IsApproved bool           `bson:"is_approved" json:"is_approved"`
	IsFeatured bool           `bson:"is_featured" json:"is_featured"`
	CreatedAt  time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `bson:"updated_at" json:"updated_at"`
}

// Page selects a slice of a sorted result set.
type Page struct {
	Skip  int64
	Limit int64
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}
