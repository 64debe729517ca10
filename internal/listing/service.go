// Package listing manages landlord properties and the public property
// catalog.
package listing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/apperror"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/data"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/logging"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/media"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const defaultCountry = "Rwanda"

// Store is the property persistence the service needs.
type Store interface {
	CreateProperty(ctx context.Context, p *data.Property) error
	GetProperty(ctx context.Context, id bson.ObjectID) (*data.Property, error)
	ListProperties(ctx context.Context, f data.PropertyFilter, page data.Page) ([]*data.Property, int64, error)
	UpdateProperty(ctx context.Context, id bson.ObjectID, patch data.PropertyPatch) (*data.Property, error)
	AddImages(ctx context.Context, id bson.ObjectID, urls []string) (*data.Property, error)
	Deactivate(ctx context.Context, id bson.ObjectID) error
}

// Availability reports which properties are taken for a date range.
type Availability interface {
	PropertyIDsBookedBetween(ctx context.Context, checkIn, checkOut time.Time) ([]bson.ObjectID, error)
}

// Query filters the public catalog. CheckIn and CheckOut, when both set,
// exclude properties with a pending or confirmed booking in that range.
type Query struct {
	Location  string
	NearPark  string
	Type      data.PropertyType
	MinPrice  *float64
	MaxPrice  *float64
	Guests    int
	Amenities []string
	CheckIn   *time.Time
	CheckOut  *time.Time
}

// Input is a new property.
type Input struct {
	Title           string
	Description     string
	PropertyType    data.PropertyType
	MaxGuests       int
	Bedrooms        int
	Bathrooms       int
	PricePerNight   float64
	SecurityDeposit *float64
	Location        data.Location
	Amenities       data.Amenities
}

// Service implements property operations.
type Service struct {
	store  Store
	avail  Availability
	images media.ImageHost
}

// NewService wires a Service. images may be nil when uploads are disabled.
func NewService(store Store, avail Availability, images media.ImageHost) *Service {
	return &Service{store: store, avail: avail, images: images}
}

// List returns one page of active properties matching q, featured first.
func (s *Service) List(ctx context.Context, q Query, page data.Page) ([]*data.Property, int64, error) {
	f, err := s.filter(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	props, total, err := s.store.ListProperties(ctx, f, page.Normalize())
	if err != nil {
		return nil, 0, apperror.Internal("list properties", err)
	}
	return props, total, nil
}

func (s *Service) filter(ctx context.Context, q Query) (data.PropertyFilter, error) {
	f := data.PropertyFilter{
		Location: strings.TrimSpace(q.Location),
		NearPark: strings.TrimSpace(q.NearPark),
		Type:     q.Type,
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
		Guests:   q.Guests,
	}
	if q.Type != "" && !q.Type.Valid() {
		return f, apperror.Validation("invalid property_type %q", q.Type)
	}
	if (q.MinPrice != nil && *q.MinPrice < 0) || (q.MaxPrice != nil && *q.MaxPrice < 0) {
		return f, apperror.Validation("prices must not be negative")
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return f, apperror.Validation("min_price must not exceed max_price")
	}
	if q.Guests < 0 {
		return f, apperror.Validation("guests must be at least 1")
	}
	for _, a := range q.Amenities {
		a = strings.TrimSpace(strings.ToLower(a))
		if a == "" {
			continue
		}
		if !data.AmenityNames[a] {
			return f, apperror.Validation("unknown amenity %q", a)
		}
		f.Amenities = append(f.Amenities, a)
	}

	if (q.CheckIn == nil) != (q.CheckOut == nil) {
		return f, apperror.Validation("check_in and check_out must be given together")
	}
	if q.CheckIn != nil {
		if !q.CheckIn.Before(*q.CheckOut) {
			return f, apperror.Validation("check_out must be after check_in")
		}
		booked, err := s.avail.PropertyIDsBookedBetween(ctx, *q.CheckIn, *q.CheckOut)
		if err != nil {
			return f, apperror.Internal("check availability", err)
		}
		f.ExcludeIDs = booked
	}
	return f, nil
}

// Get returns an active property. Owners also see their inactive ones.
// viewer is nil for anonymous callers.
func (s *Service) Get(ctx context.Context, viewer *data.Actor, id bson.ObjectID) (*data.Property, error) {
	p, err := s.store.GetProperty(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if !p.IsActive && (viewer == nil || viewer.ID != p.LandlordID) {
		return nil, apperror.NotFound("Property not found")
	}
	return p, nil
}

// Create lists a new property owned by the actor.
func (s *Service) Create(ctx context.Context, actor data.Actor, in Input) (*data.Property, error) {
	if !actor.IsLandlord() {
		return nil, apperror.Forbidden("Only landlords can list properties")
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Location.Country == "" {
		in.Location.Country = defaultCountry
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	p := &data.Property{
		LandlordID:      actor.ID,
		Title:           in.Title,
		Description:     in.Description,
		PropertyType:    in.PropertyType,
		MaxGuests:       in.MaxGuests,
		Bedrooms:        in.Bedrooms,
		Bathrooms:       in.Bathrooms,
		PricePerNight:   in.PricePerNight,
		SecurityDeposit: in.SecurityDeposit,
		Location:        in.Location,
		Amenities:       in.Amenities,
		Images:          []string{},
		IsActive:        true,
	}
	if err := s.store.CreateProperty(ctx, p); err != nil {
		return nil, apperror.Internal("create property", err)
	}
	logging.FromContext(ctx).Info().Str("property_id", p.ID.Hex()).Str("landlord_id", actor.ID.Hex()).Msg("property created")
	return p, nil
}

// Update changes a property owned by the actor.
func (s *Service) Update(ctx context.Context, actor data.Actor, id bson.ObjectID, patch data.PropertyPatch) (*data.Property, error) {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return nil, err
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	// featuring is a platform decision
	patch.IsFeatured = nil
	if patch.Location != nil && patch.Location.Country == "" {
		patch.Location.Country = defaultCountry
	}

	p, err := s.store.UpdateProperty(ctx, id, patch)
	if err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

// Delete soft-deletes a property owned by the actor.
func (s *Service) Delete(ctx context.Context, actor data.Actor, id bson.ObjectID) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.Deactivate(ctx, id); err != nil {
		return storeErr(err)
	}
	logging.FromContext(ctx).Info().Str("property_id", id.Hex()).Msg("property deactivated")
	return nil
}

// AddImages uploads image files and appends their URLs to the gallery.
// Files that are not images, or fail to upload, are skipped.
func (s *Service) AddImages(ctx context.Context, actor data.Actor, id bson.ObjectID, files []media.File) ([]string, error) {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apperror.Validation("no files uploaded")
	}
	if s.images == nil {
		return nil, apperror.Internal("upload images", media.ErrNotConfigured)
	}

	log := logging.FromContext(ctx)
	urls := []string{}
	for _, f := range files {
		if !media.IsImage(f.ContentType) {
			log.Debug().Str("file", f.Filename).Str("content_type", f.ContentType).Msg("skipping non-image upload")
			continue
		}
		url, err := s.upload(ctx, f, "properties/"+id.Hex())
		if err != nil {
			log.Warn().Err(err).Str("file", f.Filename).Msg("property image upload failed")
			continue
		}
		urls = append(urls, url)
	}
	if len(urls) == 0 {
		return urls, nil
	}
	if _, err := s.store.AddImages(ctx, id, urls); err != nil {
		return nil, storeErr(err)
	}
	return urls, nil
}

func (s *Service) upload(ctx context.Context, f media.File, folder string) (string, error) {
	r, err := f.Open()
	if err != nil {
		return "", err
	}
	defer r.Close()
	img, err := s.images.Upload(ctx, r, folder)
	if err != nil {
		return "", err
	}
	return img.URL, nil
}

// ListMine returns the actor's properties, including inactive ones when asked.
func (s *Service) ListMine(ctx context.Context, actor data.Actor, includeInactive bool, page data.Page) ([]*data.Property, int64, error) {
	if !actor.IsLandlord() {
		return nil, 0, apperror.Forbidden("Only landlords have properties")
	}
	f := data.PropertyFilter{LandlordID: &actor.ID, IncludeInactive: includeInactive}
	props, total, err := s.store.ListProperties(ctx, f, page.Normalize())
	if err != nil {
		return nil, 0, apperror.Internal("list properties", err)
	}
	return props, total, nil
}

func (s *Service) owned(ctx context.Context, actor data.Actor, id bson.ObjectID) (*data.Property, error) {
	p, err := s.store.GetProperty(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if p.LandlordID != actor.ID {
		return nil, apperror.NotFound("Property not found or not owned by you")
	}
	return p, nil
}

func validateInput(in Input) error {
	if in.Title == "" {
		return apperror.Validation("title is required")
	}
	if strings.TrimSpace(in.Location.Address) == "" || strings.TrimSpace(in.Location.City) == "" {
		return apperror.Validation("location address and city are required")
	}
	return validatePatch(data.PropertyPatch{
		PropertyType:    &in.PropertyType,
		MaxGuests:       &in.MaxGuests,
		Bedrooms:        &in.Bedrooms,
		Bathrooms:       &in.Bathrooms,
		PricePerNight:   &in.PricePerNight,
		SecurityDeposit: in.SecurityDeposit,
	})
}

func validatePatch(p data.PropertyPatch) error {
	var errs []error
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		errs = append(errs, errors.New("title must not be empty"))
	}
	if p.PropertyType != nil && !p.PropertyType.Valid() {
		errs = append(errs, errors.New("property_type must be one of room, apartment, house, lodge"))
	}
	if p.MaxGuests != nil && (*p.MaxGuests < 1 || *p.MaxGuests > 20) {
		errs = append(errs, errors.New("max_guests must be between 1 and 20"))
	}
	if p.Bedrooms != nil && (*p.Bedrooms < 1 || *p.Bedrooms > 10) {
		errs = append(errs, errors.New("bedrooms must be between 1 and 10"))
	}
	if p.Bathrooms != nil && (*p.Bathrooms < 1 || *p.Bathrooms > 10) {
		errs = append(errs, errors.New("bathrooms must be between 1 and 10"))
	}
	if p.PricePerNight != nil && *p.PricePerNight < 0 {
		errs = append(errs, errors.New("price_per_night must not be negative"))
	}
	if p.SecurityDeposit != nil && *p.SecurityDeposit < 0 {
		errs = append(errs, errors.New("security_deposit must not be negative"))
	}
	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return apperror.Validation("%s", strings.Join(msgs, "; "))
	}
	return nil
}

func storeErr(err error) error {
	if errors.Is(err, data.ErrNotFound) {
		return apperror.NotFound("Property not found")
	}
	return apperror.Internal("database error", err)
}
