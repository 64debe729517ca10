package data

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func day(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

func TestBookingsOverlapAndTransitions(t *testing.T) {
	c := setupDB(t)
	bookings := NewBookingsStore(c.BookingsCollection())
	ctx := context.Background()

	pid, tenant := bson.NewObjectID(), bson.NewObjectID()
	b := &Booking{PropertyID: pid, UserID: tenant, CheckIn: day(1), CheckOut: day(5), Guests: 2, Status: BookingConfirmed}
	require.NoError(t, bookings.CreateBooking(ctx, b))

	hit, err := bookings.FindOverlapping(ctx, pid, day(4), day(8), nil)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, b.ID, hit.ID)

	// touching boundary is not an overlap
	hit, err = bookings.FindOverlapping(ctx, pid, day(5), day(8), nil)
	require.NoError(t, err)
	assert.Nil(t, hit)

	// a booking never overlaps itself
	hit, err = bookings.FindOverlapping(ctx, pid, day(2), day(3), &b.ID)
	require.NoError(t, err)
	assert.Nil(t, hit)

	has, err := bookings.HasActiveBooking(ctx, tenant, pid, nil)
	require.NoError(t, err)
	assert.True(t, has)

	ids, err := bookings.PropertyIDsBookedBetween(ctx, day(3), day(4))
	require.NoError(t, err)
	assert.Equal(t, []bson.ObjectID{pid}, ids)

	// only a pending booking may be approved
	_, err = bookings.TransitionStatus(ctx, b.ID, []BookingStatus{BookingPending}, BookingConfirmed, nil)
	assert.True(t, errors.Is(err, ErrStateChanged))

	note := "see you soon"
	cancelled, err := bookings.TransitionStatus(ctx, b.ID, ActiveStatuses, BookingCancelled, &note)
	require.NoError(t, err)
	assert.Equal(t, BookingCancelled, cancelled.Status)
	assert.Equal(t, note, cancelled.LandlordResponse)

	// cancelled bookings free the dates
	hit, err = bookings.FindOverlapping(ctx, pid, day(4), day(8), nil)
	require.NoError(t, err)
	assert.Nil(t, hit)

	list, total, err := bookings.ListBookings(ctx, BookingFilter{UserID: &tenant}, Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)
}

func TestBookingLocks(t *testing.T) {
	c := setupDB(t)
	locks := NewBookingLocks(c.BookingLocksCollection(), time.Minute)
	ctx := context.Background()

	release, err := locks.Acquire(ctx, "property-1")
	require.NoError(t, err)

	_, err = locks.Acquire(ctx, "property-1")
	assert.True(t, errors.Is(err, ErrLocked))

	// different keys do not contend
	other, err := locks.Acquire(ctx, "property-2")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	again, err := locks.Acquire(ctx, "property-1")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestBookingLocks_StaleLockIsReclaimed(t *testing.T) {
	c := setupDB(t)
	ctx := context.Background()

	expired := NewBookingLocks(c.BookingLocksCollection(), -time.Second)
	_, err := expired.Acquire(ctx, "property-1")
	require.NoError(t, err)

	locks := NewBookingLocks(c.BookingLocksCollection(), time.Minute)
	release, err := locks.Acquire(ctx, "property-1")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestBookingLocks_Exclusive(t *testing.T) {
	c := setupDB(t)
	locks := NewBookingLocks(c.BookingLocksCollection(), time.Minute)
	ctx := context.Background()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := locks.Acquire(ctx, "hot-property"); err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, won)
}
