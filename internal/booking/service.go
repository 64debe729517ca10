package booking

import (
	"context"
	"errors"
	"time"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/apperror"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/data"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/logging"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Service runs booking operations on behalf of an authenticated actor.
type Service struct {
	bookings   Bookings
	properties Properties
	users      Users
	locks      Locker
	notifier   Notifier
}

// NewService wires a Service.
func NewService(bookings Bookings, properties Properties, users Users, locks Locker, notifier Notifier) *Service {
	return &Service{
		bookings:   bookings,
		properties: properties,
		users:      users,
		locks:      locks,
		notifier:   notifier,
	}
}

// Create places a pending booking request for the actor.
func (s *Service) Create(ctx context.Context, actor data.Actor, in CreateInput) (View, error) {
	if err := validateStay(in.CheckIn, in.CheckOut, in.Guests, in.TotalPrice); err != nil {
		return View{}, err
	}

	prop, err := s.properties.GetProperty(ctx, in.PropertyID)
	if err != nil {
		return View{}, storeErr(err, "Property not found")
	}
	if !prop.IsActive {
		return View{}, apperror.NotFound("Property not found")
	}

	release, err := s.lock(ctx, prop.ID)
	if err != nil {
		return View{}, err
	}
	defer release()

	has, err := s.bookings.HasActiveBooking(ctx, actor.ID, prop.ID, nil)
	if err != nil {
		return View{}, apperror.Internal("check existing bookings", err)
	}
	if has {
		return View{}, apperror.Conflict("You already have an active booking for this property")
	}
	if err := s.checkAvailable(ctx, prop.ID, in.CheckIn, in.CheckOut, nil); err != nil {
		return View{}, err
	}
	if in.Guests > prop.MaxGuests {
		return View{}, apperror.Validation("Number of guests exceeds property capacity")
	}

	b := &data.Booking{
		PropertyID:      prop.ID,
		UserID:          actor.ID,
		CheckIn:         in.CheckIn,
		CheckOut:        in.CheckOut,
		Guests:          in.Guests,
		TotalPrice:      in.TotalPrice,
		SpecialRequests: in.SpecialRequests,
		Status:          data.BookingPending,
	}
	if err := s.bookings.CreateBooking(ctx, b); err != nil {
		return View{}, apperror.Internal("create booking", err)
	}

	logging.FromContext(ctx).Info().
		Str("booking_id", b.ID.Hex()).
		Str("property_id", prop.ID.Hex()).
		Str("user_id", actor.ID.Hex()).
		Msg("booking requested")

	v, err := s.enrichOne(ctx, b)
	if err != nil {
		return View{}, apperror.Internal("load booking", err)
	}
	s.notifier.BookingRequested(noticeOf(v))
	return v, nil
}

// Get returns a booking visible to its tenant or to the landlord owning the
// property.
func (s *Service) Get(ctx context.Context, actor data.Actor, id bson.ObjectID) (View, error) {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return View{}, storeErr(err, "Booking not found")
	}
	if b.UserID != actor.ID {
		owns, err := s.ownsProperty(ctx, actor, b.PropertyID)
		if err != nil {
			return View{}, err
		}
		if !owns {
			return View{}, apperror.Forbidden("Not authorized to view this booking")
		}
	}

	v, err := s.enrichOne(ctx, b)
	if err != nil {
		return View{}, apperror.Internal("load booking", err)
	}
	return v, nil
}

// ListForTenant returns the actor's own bookings.
func (s *Service) ListForTenant(ctx context.Context, actor data.Actor, status data.BookingStatus, page data.Page) (List, error) {
	if status != "" && !status.Valid() {
		return List{}, apperror.Validation("invalid status %q", status)
	}
	return s.list(ctx, data.BookingFilter{UserID: &actor.ID, Status: status}, page)
}

// ListForLandlord returns booking requests against any of the actor's
// properties, newest first.
func (s *Service) ListForLandlord(ctx context.Context, actor data.Actor, status data.BookingStatus, page data.Page) (List, error) {
	if !actor.IsLandlord() {
		return List{}, apperror.Forbidden("Only landlords can view booking requests")
	}
	if status != "" && !status.Valid() {
		return List{}, apperror.Validation("invalid status %q", status)
	}

	ids, err := s.properties.ListIDsByLandlord(ctx, actor.ID)
	if err != nil {
		return List{}, apperror.Internal("list landlord properties", err)
	}
	if len(ids) == 0 {
		return newList([]View{}, 0, page), nil
	}
	return s.list(ctx, data.BookingFilter{PropertyIDs: ids, Status: status}, page)
}

func (s *Service) list(ctx context.Context, f data.BookingFilter, page data.Page) (List, error) {
	page = page.Normalize()
	bookings, total, err := s.bookings.ListBookings(ctx, f, page)
	if err != nil {
		return List{}, apperror.Internal("list bookings", err)
	}
	views, err := s.enrich(ctx, bookings)
	if err != nil {
		return List{}, apperror.Internal("load bookings", err)
	}
	return newList(views, total, page), nil
}

// Update edits a pending booking owned by the actor. Changing dates or guest
// count re-checks capacity and availability, ignoring the booking itself.
func (s *Service) Update(ctx context.Context, actor data.Actor, id bson.ObjectID, p Patch) (View, error) {
	if p.Status != nil {
		return View{}, apperror.Validation("Booking status cannot be changed here")
	}

	b, err := s.ownBooking(ctx, actor, id, "Not authorized to modify this booking")
	if err != nil {
		return View{}, err
	}
	if b.Status != data.BookingPending {
		return View{}, apperror.Conflict("Cannot update confirmed or cancelled bookings")
	}

	patch := data.BookingPatch{
		CheckIn:         p.CheckIn,
		CheckOut:        p.CheckOut,
		Guests:          p.Guests,
		TotalPrice:      p.TotalPrice,
		SpecialRequests: p.SpecialRequests,
	}
	if patch.Empty() {
		return s.view(ctx, b)
	}

	checkIn, checkOut, guests, total := b.CheckIn, b.CheckOut, b.Guests, b.TotalPrice
	if p.CheckIn != nil {
		checkIn = *p.CheckIn
	}
	if p.CheckOut != nil {
		checkOut = *p.CheckOut
	}
	if p.Guests != nil {
		guests = *p.Guests
	}
	if p.TotalPrice != nil {
		total = *p.TotalPrice
	}
	if err := validateStay(checkIn, checkOut, guests, total); err != nil {
		return View{}, err
	}

	if p.CheckIn != nil || p.CheckOut != nil || p.Guests != nil {
		release, err := s.lock(ctx, b.PropertyID)
		if err != nil {
			return View{}, err
		}
		defer release()

		prop, err := s.properties.GetProperty(ctx, b.PropertyID)
		if err != nil {
			return View{}, storeErr(err, "Property not found")
		}
		if guests > prop.MaxGuests {
			return View{}, apperror.Validation("Number of guests exceeds property capacity")
		}
		if err := s.checkAvailable(ctx, b.PropertyID, checkIn, checkOut, &b.ID); err != nil {
			return View{}, err
		}
	}

	updated, err := s.bookings.UpdateBooking(ctx, b.ID, data.BookingPending, patch)
	if errors.Is(err, data.ErrStateChanged) {
		return View{}, apperror.Conflict("Cannot update confirmed or cancelled bookings")
	}
	if err != nil {
		return View{}, apperror.Internal("update booking", err)
	}

	v, err := s.view(ctx, updated)
	if err != nil {
		return View{}, err
	}
	s.notifier.BookingChanged(noticeOf(v))
	return v, nil
}

// Cancel cancels a pending or confirmed booking owned by the actor.
func (s *Service) Cancel(ctx context.Context, actor data.Actor, id bson.ObjectID) (View, error) {
	b, err := s.ownBooking(ctx, actor, id, "Not authorized to cancel this booking")
	if err != nil {
		return View{}, err
	}
	if b.Status.Terminal() {
		return View{}, apperror.Conflict("Booking is already cancelled or completed")
	}

	updated, err := s.bookings.TransitionStatus(ctx, b.ID, data.ActiveStatuses, data.BookingCancelled, nil)
	if errors.Is(err, data.ErrStateChanged) {
		return View{}, apperror.Conflict("Booking is already cancelled or completed")
	}
	if err != nil {
		return View{}, apperror.Internal("cancel booking", err)
	}

	logging.FromContext(ctx).Info().Str("booking_id", b.ID.Hex()).Msg("booking cancelled by tenant")

	v, err := s.view(ctx, updated)
	if err != nil {
		return View{}, err
	}
	s.notifier.BookingChanged(noticeOf(v))
	return v, nil
}

// Approve confirms a pending booking on one of the actor's properties.
func (s *Service) Approve(ctx context.Context, actor data.Actor, id bson.ObjectID, response string) (View, error) {
	return s.decide(ctx, actor, id, data.BookingConfirmed, response, "approve")
}

// Reject declines a pending booking on one of the actor's properties.
func (s *Service) Reject(ctx context.Context, actor data.Actor, id bson.ObjectID, response string) (View, error) {
	return s.decide(ctx, actor, id, data.BookingCancelled, response, "reject")
}

func (s *Service) decide(ctx context.Context, actor data.Actor, id bson.ObjectID, to data.BookingStatus, response, verb string) (View, error) {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return View{}, storeErr(err, "Booking not found")
	}
	owns, err := s.ownsProperty(ctx, actor, b.PropertyID)
	if err != nil {
		return View{}, err
	}
	if !owns {
		return View{}, apperror.Forbidden("Not authorized to " + verb + " this booking")
	}
	if b.Status != data.BookingPending {
		return View{}, apperror.Conflict("Only pending bookings can be " + pastTense(verb))
	}

	var note *string
	if response != "" {
		note = &response
	}
	updated, err := s.bookings.TransitionStatus(ctx, b.ID, []data.BookingStatus{data.BookingPending}, to, note)
	if errors.Is(err, data.ErrStateChanged) {
		return View{}, apperror.Conflict("Only pending bookings can be " + pastTense(verb))
	}
	if err != nil {
		return View{}, apperror.Internal(verb+" booking", err)
	}

	logging.FromContext(ctx).Info().
		Str("booking_id", b.ID.Hex()).
		Str("status", string(to)).
		Msg("booking decided")

	v, err := s.view(ctx, updated)
	if err != nil {
		return View{}, err
	}
	s.notifier.BookingDecided(noticeOf(v))
	return v, nil
}

func pastTense(verb string) string {
	if verb == "approve" {
		return "approved"
	}
	return "rejected"
}

func (s *Service) view(ctx context.Context, b *data.Booking) (View, error) {
	v, err := s.enrichOne(ctx, b)
	if err != nil {
		return View{}, apperror.Internal("load booking", err)
	}
	return v, nil
}

func (s *Service) ownBooking(ctx context.Context, actor data.Actor, id bson.ObjectID, forbidden string) (*data.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Booking not found")
	}
	if b.UserID != actor.ID {
		return nil, apperror.Forbidden(forbidden)
	}
	return b, nil
}

func (s *Service) ownsProperty(ctx context.Context, actor data.Actor, propertyID bson.ObjectID) (bool, error) {
	if !actor.IsLandlord() {
		return false, nil
	}
	prop, err := s.properties.GetProperty(ctx, propertyID)
	if errors.Is(err, data.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperror.Internal("load property", err)
	}
	return prop.LandlordID == actor.ID, nil
}

func (s *Service) checkAvailable(ctx context.Context, propertyID bson.ObjectID, checkIn, checkOut time.Time, exclude *bson.ObjectID) error {
	clash, err := s.bookings.FindOverlapping(ctx, propertyID, checkIn, checkOut, exclude)
	if err != nil {
		return apperror.Internal("check availability", err)
	}
	if clash != nil {
		return apperror.Conflict("Property is not available for selected dates")
	}
	return nil
}

// lock takes the property's booking lock. The returned func releases it and
// never fails the caller.
func (s *Service) lock(ctx context.Context, propertyID bson.ObjectID) (func(), error) {
	release, err := s.locks.Acquire(ctx, propertyID.Hex())
	if errors.Is(err, data.ErrLocked) {
		return nil, apperror.Conflict("Another booking for this property is in progress, please retry")
	}
	if err != nil {
		return nil, apperror.Internal("acquire booking lock", err)
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logging.FromContext(ctx).Warn().Err(err).Str("property_id", propertyID.Hex()).Msg("release booking lock")
		}
	}, nil
}

func validateStay(checkIn, checkOut time.Time, guests int, total float64) error {
	if checkIn.IsZero() || checkOut.IsZero() {
		return apperror.Validation("check_in and check_out are required")
	}
	if !checkIn.Before(checkOut) {
		return apperror.Validation("check_out must be after check_in")
	}
	if guests < 1 {
		return apperror.Validation("guests must be at least 1")
	}
	if total < 0 {
		return apperror.Validation("total_price must not be negative")
	}
	return nil
}

func storeErr(err error, notFound string) error {
	if errors.Is(err, data.ErrNotFound) {
		return apperror.NotFound(notFound)
	}
	return apperror.Internal("database error", err)
}
