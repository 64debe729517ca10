package booking

import (
	"context"
	"strings"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/data"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/notify"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/sync/errgroup"
)

// enrich joins bookings with their properties, tenants and landlords using
// at most three batched reads regardless of len(bookings). Missing related
// documents leave the display fields empty.
func (s *Service) enrich(ctx context.Context, bookings []*data.Booking) ([]View, error) {
	views := make([]View, len(bookings))
	if len(bookings) == 0 {
		return views, nil
	}

	propertyIDs := distinct(bookings, func(b *data.Booking) bson.ObjectID { return b.PropertyID })
	tenantIDs := distinct(bookings, func(b *data.Booking) bson.ObjectID { return b.UserID })

	var (
		props   []*data.Property
		tenants []*data.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		props, err = s.properties.GetPropertiesByIDs(gctx, propertyIDs)
		return err
	})
	g.Go(func() error {
		var err error
		tenants, err = s.users.GetUsersByIDs(gctx, tenantIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	propByID := make(map[bson.ObjectID]*data.Property, len(props))
	for _, p := range props {
		propByID[p.ID] = p
	}
	userByID := make(map[bson.ObjectID]*data.User, len(tenants))
	for _, u := range tenants {
		userByID[u.ID] = u
	}

	var landlordIDs []bson.ObjectID
	seen := make(map[bson.ObjectID]bool)
	for _, p := range props {
		if _, ok := userByID[p.LandlordID]; ok || seen[p.LandlordID] {
			continue
		}
		seen[p.LandlordID] = true
		landlordIDs = append(landlordIDs, p.LandlordID)
	}
	if len(landlordIDs) > 0 {
		landlords, err := s.users.GetUsersByIDs(ctx, landlordIDs)
		if err != nil {
			return nil, err
		}
		for _, u := range landlords {
			userByID[u.ID] = u
		}
	}

	for i, b := range bookings {
		v := View{Booking: b}
		if p, ok := propByID[b.PropertyID]; ok {
			v.PropertyTitle = p.Title
			v.PropertyLocation = location(p.Location)
			if l, ok := userByID[p.LandlordID]; ok {
				v.LandlordName = l.FullName()
				v.LandlordEmail = l.Email
				v.LandlordPhone = l.Phone
			}
		}
		if u, ok := userByID[b.UserID]; ok {
			v.UserName = u.FullName()
			v.UserEmail = u.Email
			v.UserPhone = u.Phone
		}
		views[i] = v
	}
	return views, nil
}

func (s *Service) enrichOne(ctx context.Context, b *data.Booking) (View, error) {
	views, err := s.enrich(ctx, []*data.Booking{b})
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

func distinct(bookings []*data.Booking, key func(*data.Booking) bson.ObjectID) []bson.ObjectID {
	seen := make(map[bson.ObjectID]bool, len(bookings))
	ids := make([]bson.ObjectID, 0, len(bookings))
	for _, b := range bookings {
		id := key(b)
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func location(l data.Location) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.Address, l.City, l.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func noticeOf(v View) notify.BookingNotice {
	return notify.BookingNotice{
		BookingID:        v.ID.Hex(),
		PropertyID:       v.PropertyID.Hex(),
		PropertyTitle:    v.PropertyTitle,
		PropertyAddress:  v.PropertyLocation,
		TenantID:         v.UserID.Hex(),
		TenantName:       v.UserName,
		TenantEmail:      v.UserEmail,
		TenantPhone:      v.UserPhone,
		LandlordName:     v.LandlordName,
		LandlordEmail:    v.LandlordEmail,
		LandlordPhone:    v.LandlordPhone,
		CheckIn:          v.CheckIn,
		CheckOut:         v.CheckOut,
		Guests:           v.Guests,
		TotalPrice:       v.TotalPrice,
		Status:           string(v.Status),
		LandlordResponse: v.LandlordResponse,
	}
}
