package data

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// PropertiesStore performs property DB operations.
type PropertiesStore struct {
	coll *mongo.Collection
}

// NewPropertiesStore returns a PropertiesStore using the provided collection.
func NewPropertiesStore(coll *mongo.Collection) *PropertiesStore {
	return &PropertiesStore{coll: coll}
}

// PropertyFilter narrows property listings. Zero values mean "any".
type PropertyFilter struct {
	LandlordID      *bson.ObjectID
	IncludeInactive bool
	Location        string
	NearPark        string
	Type            PropertyType
	MinPrice        *float64
	MaxPrice        *float64
	Guests          int
	Amenities       []string
	ExcludeIDs      []bson.ObjectID
}

// query builds the MongoDB filter. Free-text fields are matched literally
// and case-insensitively.
func (f PropertyFilter) query() bson.M {
	q := bson.M{}
	if !f.IncludeInactive {
		q["is_active"] = true
	}
	if f.LandlordID != nil {
		q["landlord_id"] = *f.LandlordID
	}
	if f.Location != "" {
		re := bson.Regex{Pattern: regexp.QuoteMeta(f.Location), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"location.address": re},
			bson.M{"location.city": re},
		}
	}
	if f.NearPark != "" {
		q["location.near_park"] = bson.Regex{Pattern: regexp.QuoteMeta(f.NearPark), Options: "i"}
	}
	if f.Type != "" {
		q["property_type"] = f.Type
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		price := bson.M{}
		if f.MinPrice != nil {
			price["$gte"] = *f.MinPrice
		}
		if f.MaxPrice != nil {
			price["$lte"] = *f.MaxPrice
		}
		q["price_per_night"] = price
	}
	if f.Guests > 0 {
		q["max_guests"] = bson.M{"$gte": f.Guests}
	}
	for _, a := range f.Amenities {
		q["amenities."+a] = true
	}
	if len(f.ExcludeIDs) > 0 {
		q["_id"] = bson.M{"$nin": f.ExcludeIDs}
	}
	return q
}

// PropertyPatch holds optional property changes; nil fields are untouched.
type PropertyPatch struct {
	Title           *string
	Description     *string
	PropertyType    *PropertyType
	MaxGuests       *int
	Bedrooms        *int
	Bathrooms       *int
	PricePerNight   *float64
	SecurityDeposit *float64
	Location        *Location
	Amenities       *Amenities
	IsFeatured      *bool
}

func (p PropertyPatch) setDoc() bson.M {
	set := bson.M{}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.PropertyType != nil {
		set["property_type"] = *p.PropertyType
	}
	if p.MaxGuests != nil {
		set["max_guests"] = *p.MaxGuests
	}
	if p.Bedrooms != nil {
		set["bedrooms"] = *p.Bedrooms
	}
	if p.Bathrooms != nil {
		set["bathrooms"] = *p.Bathrooms
	}
	if p.PricePerNight != nil {
		set["price_per_night"] = *p.PricePerNight
	}
	if p.SecurityDeposit != nil {
		set["security_deposit"] = *p.SecurityDeposit
	}
	if p.Location != nil {
		set["location"] = *p.Location
	}
	if p.Amenities != nil {
		set["amenities"] = *p.Amenities
	}
	if p.IsFeatured != nil {
		set["is_featured"] = *p.IsFeatured
	}
	return set
}

// CreateProperty inserts p and fills in its ID and timestamps.
func (s *PropertiesStore) CreateProperty(ctx context.Context, p *Property) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Images == nil {
		p.Images = []string{}
	}
	result, err := s.coll.InsertOne(ctx, p)
	if err != nil {
		return err
	}
	p.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

// GetProperty returns the property regardless of its active flag.
func (s *PropertiesStore) GetProperty(ctx context.Context, id bson.ObjectID) (*Property, error) {
	var p Property
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetPropertiesByIDs fetches all properties in ids with a single query.
func (s *PropertiesStore) GetPropertiesByIDs(ctx context.Context, ids []bson.ObjectID) ([]*Property, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var props []*Property
	if err := cursor.All(ctx, &props); err != nil {
		return nil, err
	}
	return props, nil
}

// ListProperties returns one page of matching properties, newest first, and
// the total number of matches.
func (s *PropertiesStore) ListProperties(ctx context.Context, f PropertyFilter, page Page) ([]*Property, int64, error) {
	page = page.Normalize()
	q := f.query()

	total, err := s.coll.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "is_featured", Value: -1}, {Key: "created_at", Value: -1}}).
		SetSkip(page.Skip).
		SetLimit(page.Limit)
	cursor, err := s.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, err
	}
	props := []*Property{}
	if err := cursor.All(ctx, &props); err != nil {
		return nil, 0, err
	}
	return props, total, nil
}

// ListIDsByLandlord returns the ids of every property the landlord owns,
// active or not.
func (s *PropertiesStore) ListIDsByLandlord(ctx context.Context, landlordID bson.ObjectID) ([]bson.ObjectID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := s.coll.Find(ctx, bson.M{"landlord_id": landlordID}, opts)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID bson.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]bson.ObjectID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// UpdateProperty applies patch and returns the updated property.
func (s *PropertiesStore) UpdateProperty(ctx context.Context, id bson.ObjectID, patch PropertyPatch) (*Property, error) {
	set := patch.setDoc()
	set["updated_at"] = time.Now().UTC()
	return s.findOneAndUpdate(ctx, id, bson.M{"$set": set})
}

// AddImages appends urls to the property's gallery.
func (s *PropertiesStore) AddImages(ctx context.Context, id bson.ObjectID, urls []string) (*Property, error) {
	return s.findOneAndUpdate(ctx, id, bson.M{
		"$push": bson.M{"images": bson.M{"$each": urls}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
}

func (s *PropertiesStore) findOneAndUpdate(ctx context.Context, id bson.ObjectID, update bson.M) (*Property, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p Property
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Deactivate soft-deletes the property.
func (s *PropertiesStore) Deactivate(ctx context.Context, id bson.ObjectID) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"is_active": false, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateByLandlord soft-deletes every active property of a landlord.
func (s *PropertiesStore) DeactivateByLandlord(ctx context.Context, landlordID bson.ObjectID) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"landlord_id": landlordID, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
