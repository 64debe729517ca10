package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/apperror"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/data"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func june(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	svc      *Service
	bookings *memBookings
	props    *memProperties
	users    *memUsers
	notifier *mockNotifier

	landlord data.Actor
	tenant   data.Actor
	other    data.Actor
	lodge    *data.Property
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	landlord := &data.User{ID: bson.NewObjectID(), Email: "host@example.com", FirstName: "Hope", LastName: "Host", Phone: "+250788111222", Role: data.RoleLandlord}
	tenant := &data.User{ID: bson.NewObjectID(), Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace", Phone: "+250788000111", Role: data.RoleTenant}
	other := &data.User{ID: bson.NewObjectID(), Email: "bob@example.com", FirstName: "Bob", LastName: "Builder", Role: data.RoleTenant}
	lodge := &data.Property{
		ID: bson.NewObjectID(), LandlordID: landlord.ID, Title: "Gorilla View Lodge",
		MaxGuests: 4, PricePerNight: 120, IsActive: true,
		Location: data.Location{Address: "Kinigi Road", City: "Musanze", Country: "Rwanda"},
	}

	f := &fixture{
		bookings: newMemBookings(),
		props:    newMemProperties(lodge),
		users:    newMemUsers(landlord, tenant, other),
		notifier: &mockNotifier{},
		landlord: landlord.Actor(),
		tenant:   tenant.Actor(),
		other:    other.Actor(),
		lodge:    lodge,
	}
	f.notifier.On("BookingRequested", mock.Anything).Maybe()
	f.notifier.On("BookingDecided", mock.Anything).Maybe()
	f.notifier.On("BookingChanged", mock.Anything).Maybe()
	f.svc = NewService(f.bookings, f.props, f.users, newMemLocks(), f.notifier)
	return f
}

func (f *fixture) request(in, out time.Time, guests int) CreateInput {
	return CreateInput{PropertyID: f.lodge.ID, CheckIn: in, CheckOut: out, Guests: guests, TotalPrice: 480}
}

func kindOf(t *testing.T, err error) apperror.Kind {
	t.Helper()
	require.Error(t, err)
	return apperror.KindOf(err)
}

func TestOverlaps(t *testing.T) {
	assert.True(t, Overlaps(june(1), june(5), june(4), june(8)))
	assert.True(t, Overlaps(june(4), june(8), june(1), june(5)))
	assert.True(t, Overlaps(june(1), june(10), june(3), june(4)))
	assert.False(t, Overlaps(june(1), june(5), june(5), june(8)))
	assert.False(t, Overlaps(june(5), june(8), june(1), june(5)))
}

func TestCreate_AvailabilityScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bookings.put(&data.Booking{PropertyID: f.lodge.ID, UserID: f.other.ID, CheckIn: june(1), CheckOut: june(5), Guests: 2, Status: data.BookingConfirmed})

	_, err := f.svc.Create(ctx, f.tenant, f.request(june(4), june(8), 2))
	assert.Equal(t, apperror.KindConflict, kindOf(t, err))

	v, err := f.svc.Create(ctx, f.tenant, f.request(june(5), june(8), 2))
	require.NoError(t, err)
	assert.Equal(t, data.BookingPending, v.Status)
	assert.Equal(t, "Gorilla View Lodge", v.PropertyTitle)
	assert.Equal(t, "Kinigi Road, Musanze, Rwanda", v.PropertyLocation)
	assert.Equal(t, "Ada Lovelace", v.UserName)
	assert.Equal(t, "host@example.com", v.LandlordEmail)

	third := data.Actor{ID: bson.NewObjectID(), Role: data.RoleTenant}
	_, err = f.svc.Create(ctx, third, f.request(june(10), june(12), 6))
	assert.Equal(t, apperror.KindValidation, kindOf(t, err))

	f.notifier.AssertNumberOfCalls(t, "BookingRequested", 1)
}

func TestCreate_NotifiesWithJoinedFields(t *testing.T) {
	f := newFixture(t)
	n := &mockNotifier{}
	n.On("BookingRequested", mock.MatchedBy(func(b notify.BookingNotice) bool {
		return b.TenantEmail == "ada@example.com" && b.TenantPhone == "+250788000111" &&
			b.LandlordEmail == "host@example.com" && b.PropertyTitle == "Gorilla View Lodge" &&
			b.Status == "pending"
	})).Once()
	f.svc.notifier = n

	_, err := f.svc.Create(context.Background(), f.tenant, f.request(june(1), june(3), 1))
	require.NoError(t, err)
	n.AssertExpectations(t)
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateInput
		kind apperror.Kind
	}{
		{"unknown property", CreateInput{PropertyID: bson.NewObjectID(), CheckIn: june(1), CheckOut: june(2), Guests: 1}, apperror.KindNotFound},
		{"reversed dates", f.request(june(5), june(1), 1), apperror.KindValidation},
		{"zero nights", f.request(june(5), june(5), 1), apperror.KindValidation},
		{"no guests", f.request(june(1), june(2), 0), apperror.KindValidation},
		{"missing dates", CreateInput{PropertyID: f.lodge.ID, Guests: 1}, apperror.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, f.tenant, tc.in)
			assert.Equal(t, tc.kind, kindOf(t, err))
		})
	}

	f.lodge.IsActive = false
	_, err := f.svc.Create(ctx, f.tenant, f.request(june(1), june(2), 1))
	assert.Equal(t, apperror.KindNotFound, kindOf(t, err))
}

func TestCreate_OneActiveBookingPerTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.tenant, f.request(june(1), june(3), 1))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.tenant, f.request(june(10), june(12), 1))
	assert.Equal(t, apperror.KindConflict, kindOf(t, err))

	_, err = f.svc.Cancel(ctx, f.tenant, first.ID)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.tenant, f.request(june(10), june(12), 1))
	assert.NoError(t, err)
}

func TestCreate_ConcurrentRequestsBookOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			actor := data.Actor{ID: bson.NewObjectID(), Role: data.RoleTenant}
			_, err := f.svc.Create(ctx, actor, f.request(june(1), june(5), 2))
			if err == nil {
				mu.Lock()
				won++
				mu.Unlock()
				return
			}
			assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, won)
}

func TestGet_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, f.tenant, f.request(june(1), june(3), 1))
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, f.tenant, v.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, f.landlord, v.ID)
	assert.NoError(t, err)

	_, err = f.svc.Get(ctx, f.other, v.ID)
	assert.Equal(t, apperror.KindForbidden, kindOf(t, err))

	stranger := data.Actor{ID: bson.NewObjectID(), Role: data.RoleLandlord}
	_, err = f.svc.Get(ctx, stranger, v.ID)
	assert.Equal(t, apperror.KindForbidden, kindOf(t, err))

	_, err = f.svc.Get(ctx, f.tenant, bson.NewObjectID())
	assert.Equal(t, apperror.KindNotFound, kindOf(t, err))
}

func TestApproveAndReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, f.tenant, f.request(june(1), june(3), 1))
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, f.tenant, v.ID, "")
	assert.Equal(t, apperror.KindForbidden, kindOf(t, err))

	stranger := data.Actor{ID: bson.NewObjectID(), Role: data.RoleLandlord}
	_, err = f.svc.Approve(ctx, stranger, v.ID, "")
	assert.Equal(t, apperror.KindForbidden, kindOf(t, err))

	approved, err := f.svc.Approve(ctx, f.landlord, v.ID, "Welcome!")
	require.NoError(t, err)
	assert.Equal(t, data.BookingConfirmed, approved.Status)
	assert.Equal(t, "Welcome!", approved.LandlordResponse)

	_, err = f.svc.Approve(ctx, f.landlord, v.ID, "")
	assert.Equal(t, apperror.KindConflict, kindOf(t, err))
	_, err = f.svc.Reject(ctx, f.landlord, v.ID, "")
	assert.Equal(t, apperror.KindConflict, kindOf(t, err))

	// confirmed bookings stay immutable to the tenant but can be cancelled
	g := 2
	_, err = f.svc.Update(ctx, f.tenant, v.ID, Patch{Guests: &g})
	assert.Equal(t, apperror.KindConflict, kindOf(t, err))
	cancelled, err := f.svc.Cancel(ctx, f.tenant, v.ID)
	require.NoError(t, err)
	assert.Equal(t, data.BookingCancelled, cancelled.Status)

	_, err = f.svc.Cancel(ctx, f.tenant, v.ID)
	assert.Equal(t, apperror.KindConflict, kindOf(t, err))

	second, err := f.svc.Create(ctx, f.other, f.request(june(1), june(3), 1))
	require.NoError(t, err)
	rejected, err := f.svc.Reject(ctx, f.landlord, second.ID, "Closed for maintenance")
	require.NoError(t, err)
	assert.Equal(t, data.BookingCancelled, rejected.Status)

	_, err = f.svc.Approve(ctx, f.landlord, bson.NewObjectID(), "")
	assert.Equal(t, apperror.KindNotFound, kindOf(t, err))

	f.notifier.AssertNumberOfCalls(t, "BookingDecided", 2)
	f.notifier.AssertNumberOfCalls(t, "BookingChanged", 1)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bookings.put(&data.Booking{PropertyID: f.lodge.ID, UserID: f.other.ID, CheckIn: june(10), CheckOut: june(15), Guests: 2, Status: data.BookingPending})
	v, err := f.svc.Create(ctx, f.tenant, f.request(june(1), june(3), 1))
	require.NoError(t, err)

	note := "Late arrival"
	updated, err := f.svc.Update(ctx, f.tenant, v.ID, Patch{SpecialRequests: &note})
	require.NoError(t, err)
	assert.Equal(t, note, updated.SpecialRequests)

	// moving into another booking's dates is rejected
	out := june(11)
	_, err = f.svc.Update(ctx, f.tenant, v.ID, Patch{CheckOut: &out})
	assert.Equal(t, apperror.KindConflict, kindOf(t, err))

	// extending within free dates ignores the booking's own interval
	out = june(6)
	updated, err = f.svc.Update(ctx, f.tenant, v.ID, Patch{CheckOut: &out})
	require.NoError(t, err)
	assert.Equal(t, june(6), updated.CheckOut)

	tooMany := 5
	_, err = f.svc.Update(ctx, f.tenant, v.ID, Patch{Guests: &tooMany})
	assert.Equal(t, apperror.KindValidation, kindOf(t, err))

	before := june(1)
	_, err = f.svc.Update(ctx, f.tenant, v.ID, Patch{CheckOut: &before})
	assert.Equal(t, apperror.KindValidation, kindOf(t, err))

	status := data.BookingConfirmed
	_, err = f.svc.Update(ctx, f.tenant, v.ID, Patch{Status: &status})
	assert.Equal(t, apperror.KindValidation, kindOf(t, err))

	_, err = f.svc.Update(ctx, f.other, v.ID, Patch{SpecialRequests: &note})
	assert.Equal(t, apperror.KindForbidden, kindOf(t, err))

	f.notifier.AssertNumberOfCalls(t, "BookingChanged", 2)
}

func TestLists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second := &data.Property{ID: bson.NewObjectID(), LandlordID: f.landlord.ID, Title: "Akagera Tent", MaxGuests: 2, IsActive: true}
	f.props.byID[second.ID] = second
	foreign := &data.Property{ID: bson.NewObjectID(), LandlordID: bson.NewObjectID(), Title: "Elsewhere", MaxGuests: 2, IsActive: true}
	f.props.byID[foreign.ID] = foreign

	for i, p := range []*data.Property{f.lodge, second, foreign} {
		_, err := f.svc.Create(ctx, f.tenant, CreateInput{PropertyID: p.ID, CheckIn: june(1 + i), CheckOut: june(2 + i), Guests: 1})
		require.NoError(t, err)
	}
	_, err := f.svc.Create(ctx, f.other, CreateInput{PropertyID: f.lodge.ID, CheckIn: june(20), CheckOut: june(22), Guests: 1})
	require.NoError(t, err)

	mine, err := f.svc.ListForTenant(ctx, f.tenant, "", data.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, mine.Total)
	assert.EqualValues(t, 1, mine.Page)
	assert.EqualValues(t, data.DefaultPageLimit, mine.Limit)

	requests, err := f.svc.ListForLandlord(ctx, f.landlord, "", data.Page{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, requests.Total)
	assert.EqualValues(t, 2, requests.Pages)
	require.Len(t, requests.Bookings, 2)
	assert.True(t, !requests.Bookings[0].CreatedAt.Before(requests.Bookings[1].CreatedAt))
	for _, b := range requests.Bookings {
		assert.NotEqual(t, foreign.ID, b.PropertyID)
	}

	page2, err := f.svc.ListForLandlord(ctx, f.landlord, data.BookingPending, data.Page{Skip: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page2.Page)
	assert.Len(t, page2.Bookings, 1)

	_, err = f.svc.ListForLandlord(ctx, f.tenant, "", data.Page{})
	assert.Equal(t, apperror.KindForbidden, kindOf(t, err))

	_, err = f.svc.ListForTenant(ctx, f.tenant, "bogus", data.Page{})
	assert.Equal(t, apperror.KindValidation, kindOf(t, err))

	empty, err := f.svc.ListForLandlord(ctx, data.Actor{ID: bson.NewObjectID(), Role: data.RoleLandlord}, "", data.Page{})
	require.NoError(t, err)
	assert.Empty(t, empty.Bookings)
	assert.EqualValues(t, 0, empty.Total)
}

func TestEnrich_BatchesLookups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var bookings []*data.Booking
	for i := 0; i < 25; i++ {
		bookings = append(bookings, &data.Booking{ID: bson.NewObjectID(), PropertyID: f.lodge.ID, UserID: f.tenant.ID})
	}
	bookings = append(bookings, &data.Booking{ID: bson.NewObjectID(), PropertyID: bson.NewObjectID(), UserID: bson.NewObjectID()})

	views, err := f.svc.enrich(ctx, bookings)
	require.NoError(t, err)
	require.Len(t, views, 26)
	assert.Equal(t, 1, f.props.batchCalls)
	assert.Equal(t, 2, f.users.batchCalls)

	for _, v := range views[:25] {
		assert.Equal(t, "Ada Lovelace", v.UserName)
		assert.Equal(t, "Hope Host", v.LandlordName)
	}
	// dangling references leave display fields empty
	assert.Empty(t, views[25].PropertyTitle)
	assert.Empty(t, views[25].UserEmail)

	again, err := f.svc.enrich(ctx, bookings)
	require.NoError(t, err)
	assert.Equal(t, views, again)
}
