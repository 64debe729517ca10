package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// BookingsStore performs booking DB operations.
type BookingsStore struct {
	coll *mongo.Collection
}

// NewBookingsStore returns a BookingsStore using the provided collection.
func NewBookingsStore(coll *mongo.Collection) *BookingsStore {
	return &BookingsStore{coll: coll}
}

// BookingFilter narrows booking listings.
type BookingFilter struct {
	UserID      *bson.ObjectID
	PropertyIDs []bson.ObjectID
	Status      BookingStatus
}

func (f BookingFilter) query() bson.M {
	q := bson.M{}
	if f.UserID != nil {
		q["user_id"] = *f.UserID
	}
	if f.PropertyIDs != nil {
		q["property_id"] = bson.M{"$in": f.PropertyIDs}
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	return q
}

// BookingPatch holds optional tenant edits; nil fields are untouched.
type BookingPatch struct {
	CheckIn         *time.Time
	CheckOut        *time.Time
	Guests          *int
	TotalPrice      *float64
	SpecialRequests *string
}

// Empty reports whether the patch changes nothing.
func (p BookingPatch) Empty() bool {
	return p.CheckIn == nil && p.CheckOut == nil && p.Guests == nil &&
		p.TotalPrice == nil && p.SpecialRequests == nil
}

func (p BookingPatch) setDoc() bson.M {
	set := bson.M{}
	if p.CheckIn != nil {
		set["check_in"] = p.CheckIn.UTC()
	}
	if p.CheckOut != nil {
		set["check_out"] = p.CheckOut.UTC()
	}
	if p.Guests != nil {
		set["guests"] = *p.Guests
	}
	if p.TotalPrice != nil {
		set["total_price"] = *p.TotalPrice
	}
	if p.SpecialRequests != nil {
		set["special_requests"] = *p.SpecialRequests
	}
	return set
}

// overlapQuery matches non-terminal bookings of propertyID whose
// [check_in, check_out) intersects [checkIn, checkOut).
func overlapQuery(propertyID bson.ObjectID, checkIn, checkOut time.Time, exclude *bson.ObjectID) bson.M {
	q := bson.M{
		"property_id": propertyID,
		"status":      bson.M{"$in": ActiveStatuses},
		"check_in":    bson.M{"$lt": checkOut.UTC()},
		"check_out":   bson.M{"$gt": checkIn.UTC()},
	}
	if exclude != nil {
		q["_id"] = bson.M{"$ne": *exclude}
	}
	return q
}

// CreateBooking inserts b and fills in its ID and timestamps.
func (s *BookingsStore) CreateBooking(ctx context.Context, b *Booking) error {
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	b.CheckIn, b.CheckOut = b.CheckIn.UTC(), b.CheckOut.UTC()
	result, err := s.coll.InsertOne(ctx, b)
	if err != nil {
		return err
	}
	b.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

// GetBooking finds a booking by id.
func (s *BookingsStore) GetBooking(ctx context.Context, id bson.ObjectID) (*Booking, error) {
	var b Booking
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// FindOverlapping returns a non-terminal booking of propertyID overlapping
// the interval, or nil when the dates are free.
func (s *BookingsStore) FindOverlapping(ctx context.Context, propertyID bson.ObjectID, checkIn, checkOut time.Time, exclude *bson.ObjectID) (*Booking, error) {
	var b Booking
	err := s.coll.FindOne(ctx, overlapQuery(propertyID, checkIn, checkOut, exclude)).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// HasActiveBooking reports whether userID holds a non-terminal booking for
// propertyID other than exclude.
func (s *BookingsStore) HasActiveBooking(ctx context.Context, userID, propertyID bson.ObjectID, exclude *bson.ObjectID) (bool, error) {
	q := bson.M{
		"user_id":     userID,
		"property_id": propertyID,
		"status":      bson.M{"$in": ActiveStatuses},
	}
	if exclude != nil {
		q["_id"] = bson.M{"$ne": *exclude}
	}
	n, err := s.coll.CountDocuments(ctx, q, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListBookings returns one page of matching bookings, newest first, and the
// total number of matches.
func (s *BookingsStore) ListBookings(ctx context.Context, f BookingFilter, page Page) ([]*Booking, int64, error) {
	page = page.Normalize()
	q := f.query()

	total, err := s.coll.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(page.Skip).
		SetLimit(page.Limit)
	cursor, err := s.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, err
	}
	bookings := []*Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// UpdateBooking applies patch only while the booking is still in status.
// ErrStateChanged means the status moved on since it was read.
func (s *BookingsStore) UpdateBooking(ctx context.Context, id bson.ObjectID, status BookingStatus, patch BookingPatch) (*Booking, error) {
	set := patch.setDoc()
	set["updated_at"] = time.Now().UTC()
	return s.conditionalUpdate(ctx, bson.M{"_id": id, "status": status}, bson.M{"$set": set})
}

// TransitionStatus moves the booking to `to` if its current status is one of
// from. response, when non-nil, is stored as the landlord's note.
func (s *BookingsStore) TransitionStatus(ctx context.Context, id bson.ObjectID, from []BookingStatus, to BookingStatus, response *string) (*Booking, error) {
	set := bson.M{"status": to, "updated_at": time.Now().UTC()}
	if response != nil {
		set["landlord_response"] = *response
	}
	return s.conditionalUpdate(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": set},
	)
}

func (s *BookingsStore) conditionalUpdate(ctx context.Context, filter, update bson.M) (*Booking, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var b Booking
	if err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrStateChanged
		}
		return nil, err
	}
	return &b, nil
}

// PropertyIDsBookedBetween returns the distinct properties with a
// non-terminal booking overlapping [checkIn, checkOut).
func (s *BookingsStore) PropertyIDsBookedBetween(ctx context.Context, checkIn, checkOut time.Time) ([]bson.ObjectID, error) {
	q := bson.M{
		"status":    bson.M{"$in": ActiveStatuses},
		"check_in":  bson.M{"$lt": checkOut.UTC()},
		"check_out": bson.M{"$gt": checkIn.UTC()},
	}
	var ids []bson.ObjectID
	if err := s.coll.Distinct(ctx, "property_id", q).Decode(&ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// CancelActiveForUser cancels every non-terminal booking held by userID.
func (s *BookingsStore) CancelActiveForUser(ctx context.Context, userID bson.ObjectID) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"user_id": userID, "status": bson.M{"$in": ActiveStatuses}},
		bson.M{"$set": bson.M{"status": BookingCancelled, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
