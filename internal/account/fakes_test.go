package account

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/auth"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/data"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/media"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type memUsers struct {
	byID map[bson.ObjectID]*data.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[bson.ObjectID]*data.User{}}
}

func (m *memUsers) find(match func(*data.User) bool) (*data.User, error) {
	for _, u := range m.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, data.ErrNotFound
}

func (m *memUsers) CreateUser(ctx context.Context, u *data.User) error {
	if _, err := m.GetUserByEmail(ctx, u.Email); err == nil {
		return data.ErrDuplicate
	}
	u.ID = bson.NewObjectID()
	if u.Favourites == nil {
		u.Favourites = []bson.ObjectID{}
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetUserByEmail(ctx context.Context, email string) (*data.User, error) {
	return m.find(func(u *data.User) bool { return u.Email == email })
}

func (m *memUsers) GetUserByID(ctx context.Context, id bson.ObjectID) (*data.User, error) {
	return m.find(func(u *data.User) bool { return u.ID == id })
}

func (m *memUsers) GetUserByRefreshToken(ctx context.Context, token string) (*data.User, error) {
	if token == "" {
		return nil, data.ErrNotFound
	}
	return m.find(func(u *data.User) bool { return u.RefreshToken == token })
}

func (m *memUsers) get(id bson.ObjectID) (*data.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) UpdateProfile(ctx context.Context, id bson.ObjectID, p data.UserPatch) (*data.User, error) {
	u, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) SetPassword(ctx context.Context, id bson.ObjectID, hash string) error {
	u, err := m.get(id)
	if err != nil {
		return err
	}
	u.Password, u.RefreshToken, u.RefreshTokenExpires = hash, "", nil
	return nil
}

func (m *memUsers) SetRefreshToken(ctx context.Context, id bson.ObjectID, token string, expires time.Time) error {
	u, err := m.get(id)
	if err != nil {
		return err
	}
	u.RefreshToken, u.RefreshTokenExpires = token, &expires
	return nil
}

func (m *memUsers) ClearRefreshToken(ctx context.Context, id bson.ObjectID) error {
	u, err := m.get(id)
	if err != nil {
		return err
	}
	u.RefreshToken, u.RefreshTokenExpires = "", nil
	return nil
}

func (m *memUsers) MarkVerified(ctx context.Context, email string) error {
	for _, u := range m.byID {
		if u.Email == email {
			u.IsVerified = true
			return nil
		}
	}
	return data.ErrNotFound
}

func (m *memUsers) LinkGoogle(ctx context.Context, id bson.ObjectID, subject string) error {
	u, err := m.get(id)
	if err != nil {
		return err
	}
	u.GoogleID, u.IsVerified = subject, true
	return nil
}

func (m *memUsers) SetProfileImage(ctx context.Context, id bson.ObjectID, url, publicID string) error {
	u, err := m.get(id)
	if err != nil {
		return err
	}
	u.ProfileImage, u.ProfileImageID = url, publicID
	return nil
}

func (m *memUsers) Deactivate(ctx context.Context, id bson.ObjectID) error {
	u, err := m.get(id)
	if err != nil {
		return err
	}
	u.IsActive, u.RefreshToken, u.RefreshTokenExpires = false, "", nil
	return nil
}

func (m *memUsers) AddFavourite(ctx context.Context, id, pid bson.ObjectID) error {
	u, err := m.get(id)
	if err != nil {
		return err
	}
	for _, f := range u.Favourites {
		if f == pid {
			return nil
		}
	}
	u.Favourites = append(u.Favourites, pid)
	return nil
}

func (m *memUsers) RemoveFavourite(ctx context.Context, id, pid bson.ObjectID) error {
	u, err := m.get(id)
	if err != nil {
		return err
	}
	kept := u.Favourites[:0]
	for _, f := range u.Favourites {
		if f != pid {
			kept = append(kept, f)
		}
	}
	u.Favourites = kept
	return nil
}

type memProperties struct {
	byID        map[bson.ObjectID]*data.Property
	deactivated []bson.ObjectID
}

func (m *memProperties) GetProperty(ctx context.Context, id bson.ObjectID) (*data.Property, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	return p, nil
}

func (m *memProperties) GetPropertiesByIDs(ctx context.Context, ids []bson.ObjectID) ([]*data.Property, error) {
	var out []*data.Property
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProperties) DeactivateByLandlord(ctx context.Context, landlordID bson.ObjectID) (int64, error) {
	m.deactivated = append(m.deactivated, landlordID)
	var n int64
	for _, p := range m.byID {
		if p.LandlordID == landlordID && p.IsActive {
			p.IsActive = false
			n++
		}
	}
	return n, nil
}

type fakeBookings struct {
	cancelledFor []bson.ObjectID
}

func (f *fakeBookings) CancelActiveForUser(ctx context.Context, userID bson.ObjectID) (int64, error) {
	f.cancelledFor = append(f.cancelledFor, userID)
	return 2, nil
}

type fakeGoogle struct {
	identities map[string]*auth.GoogleIdentity
}

func (f *fakeGoogle) Verify(ctx context.Context, idToken string) (*auth.GoogleIdentity, error) {
	id, ok := f.identities[idToken]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return id, nil
}

type fakeImages struct {
	destroyed []string
	seq       int
}

func (f *fakeImages) Upload(ctx context.Context, r io.Reader, folder string) (media.Image, error) {
	if _, err := io.ReadAll(r); err != nil {
		return media.Image{}, err
	}
	f.seq++
	id := folder + "/" + string(rune('a'+f.seq-1))
	return media.Image{URL: "https://res.example/" + id, PublicID: id}, nil
}

func (f *fakeImages) Destroy(ctx context.Context, publicID string) error {
	f.destroyed = append(f.destroyed, publicID)
	if publicID == "stuck" {
		return errors.New("destroy failed")
	}
	return nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Welcome(email, name string) {
	m.Called(email, name)
}

func (m *mockNotifier) EmailVerification(email, name, token string) {
	m.Called(email, name, token)
}

func (m *mockNotifier) PasswordReset(email, token string) {
	m.Called(email, token)
}

// allowAll is a Guard that never throttles.
type allowAll struct{}

func (allowAll) Check(context.Context, string, string) error { return nil }
