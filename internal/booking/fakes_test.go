package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/data"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/notify"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type memBookings struct {
	mu   sync.Mutex
	byID map[bson.ObjectID]*data.Booking
	seq  int
}

func newMemBookings() *memBookings {
	return &memBookings{byID: map[bson.ObjectID]*data.Booking{}}
}

func (m *memBookings) put(b *data.Booking) *data.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID.IsZero() {
		b.ID = bson.NewObjectID()
	}
	m.seq++
	b.CreatedAt = time.Unix(int64(m.seq), 0).UTC()
	cp := *b
	m.byID[b.ID] = &cp
	return b
}

func (m *memBookings) CreateBooking(ctx context.Context, b *data.Booking) error {
	m.put(b)
	return nil
}

func (m *memBookings) GetBooking(ctx context.Context, id bson.ObjectID) (*data.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func active(s data.BookingStatus) bool {
	return s == data.BookingPending || s == data.BookingConfirmed
}

func (m *memBookings) FindOverlapping(ctx context.Context, pid bson.ObjectID, in, out time.Time, exclude *bson.ObjectID) (*data.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.byID {
		if b.PropertyID != pid || !active(b.Status) || (exclude != nil && b.ID == *exclude) {
			continue
		}
		if Overlaps(b.CheckIn, b.CheckOut, in, out) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memBookings) HasActiveBooking(ctx context.Context, uid, pid bson.ObjectID, exclude *bson.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.byID {
		if b.UserID == uid && b.PropertyID == pid && active(b.Status) && (exclude == nil || b.ID != *exclude) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memBookings) ListBookings(ctx context.Context, f data.BookingFilter, page data.Page) ([]*data.Booking, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inSet := map[bson.ObjectID]bool{}
	for _, id := range f.PropertyIDs {
		inSet[id] = true
	}
	var out []*data.Booking
	for _, b := range m.byID {
		if f.UserID != nil && b.UserID != *f.UserID {
			continue
		}
		if f.PropertyIDs != nil && !inSet[b.PropertyID] {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	start := min(page.Skip, total)
	end := min(start+page.Limit, total)
	return out[start:end], total, nil
}

func (m *memBookings) UpdateBooking(ctx context.Context, id bson.ObjectID, status data.BookingStatus, p data.BookingPatch) (*data.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok || b.Status != status {
		return nil, data.ErrStateChanged
	}
	if p.CheckIn != nil {
		b.CheckIn = *p.CheckIn
	}
	if p.CheckOut != nil {
		b.CheckOut = *p.CheckOut
	}
	if p.Guests != nil {
		b.Guests = *p.Guests
	}
	if p.TotalPrice != nil {
		b.TotalPrice = *p.TotalPrice
	}
	if p.SpecialRequests != nil {
		b.SpecialRequests = *p.SpecialRequests
	}
	cp := *b
	return &cp, nil
}

func (m *memBookings) TransitionStatus(ctx context.Context, id bson.ObjectID, from []data.BookingStatus, to data.BookingStatus, response *string) (*data.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok {
		return nil, data.ErrStateChanged
	}
	allowed := false
	for _, s := range from {
		allowed = allowed || b.Status == s
	}
	if !allowed {
		return nil, data.ErrStateChanged
	}
	b.Status = to
	if response != nil {
		b.LandlordResponse = *response
	}
	cp := *b
	return &cp, nil
}

type memProperties struct {
	byID       map[bson.ObjectID]*data.Property
	batchCalls int
	mu         sync.Mutex
}

func newMemProperties(props ...*data.Property) *memProperties {
	m := &memProperties{byID: map[bson.ObjectID]*data.Property{}}
	for _, p := range props {
		m.byID[p.ID] = p
	}
	return m
}

func (m *memProperties) GetProperty(ctx context.Context, id bson.ObjectID) (*data.Property, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	return p, nil
}

func (m *memProperties) GetPropertiesByIDs(ctx context.Context, ids []bson.ObjectID) ([]*data.Property, error) {
	m.mu.Lock()
	m.batchCalls++
	m.mu.Unlock()
	var out []*data.Property
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProperties) ListIDsByLandlord(ctx context.Context, landlordID bson.ObjectID) ([]bson.ObjectID, error) {
	var ids []bson.ObjectID
	for _, p := range m.byID {
		if p.LandlordID == landlordID {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

type memUsers struct {
	byID       map[bson.ObjectID]*data.User
	batchCalls int
	mu         sync.Mutex
}

func newMemUsers(users ...*data.User) *memUsers {
	m := &memUsers{byID: map[bson.ObjectID]*data.User{}}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) GetUsersByIDs(ctx context.Context, ids []bson.ObjectID) ([]*data.User, error) {
	m.mu.Lock()
	m.batchCalls++
	m.mu.Unlock()
	var out []*data.User
	for _, id := range ids {
		if u, ok := m.byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type memLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocks() *memLocks {
	return &memLocks{held: map[string]bool{}}
}

func (l *memLocks) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, data.ErrLocked
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) BookingRequested(n notify.BookingNotice) { m.Called(n) }
func (m *mockNotifier) BookingDecided(n notify.BookingNotice)   { m.Called(n) }
func (m *mockNotifier) BookingChanged(n notify.BookingNotice)   { m.Called(n) }
