package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ReviewsStore performs review DB operations.
type ReviewsStore struct {
	coll *mongo.Collection
}

// NewReviewsStore returns a ReviewsStore using the provided collection.
func NewReviewsStore(coll *mongo.Collection) *ReviewsStore {
	return &ReviewsStore{coll: coll}
}

// ReviewFilter narrows review listings.
type ReviewFilter struct {
	PropertyID   *bson.ObjectID
	PlatformOnly bool
	ApprovedOnly bool
	FeaturedOnly bool
}

func (f ReviewFilter) query() bson.M {
	q := bson.M{}
	switch {
	case f.PlatformOnly:
		q["property_id"] = nil
	case f.PropertyID != nil:
		q["property_id"] = *f.PropertyID
	}
	if f.ApprovedOnly {
		q["is_approved"] = true
	}
	if f.FeaturedOnly {
		q["is_featured"] = true
	}
	return q
}

// ReviewPatch holds optional review changes; nil fields are untouched.
type ReviewPatch struct {
	Rating     *int
	Comment    *string
	IsApproved *bool
	IsFeatured *bool
}

func (p ReviewPatch) setDoc() bson.M {
	set := bson.M{}
	if p.Rating != nil {
		set["rating"] = *p.Rating
	}
	if p.Comment != nil {
		set["comment"] = *p.Comment
	}
	if p.IsApproved != nil {
		set["is_approved"] = *p.IsApproved
	}
	if p.IsFeatured != nil {
		set["is_featured"] = *p.IsFeatured
	}
	return set
}

// CreateReview inserts r. ErrDuplicate means the author already reviewed
// the same target.
func (s *ReviewsStore) CreateReview(ctx context.Context, r *Review) error {
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	result, err := s.coll.InsertOne(ctx, r)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	r.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

// GetReview finds a review by id.
func (s *ReviewsStore) GetReview(ctx context.Context, id bson.ObjectID) (*Review, error) {
	var r Review
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// ReviewExists reports whether userID already reviewed propertyID (nil for
// the platform).
func (s *ReviewsStore) ReviewExists(ctx context.Context, userID bson.ObjectID, propertyID *bson.ObjectID) (bool, error) {
	q := bson.M{"user_id": userID, "property_id": nil}
	if propertyID != nil {
		q["property_id"] = *propertyID
	}
	n, err := s.coll.CountDocuments(ctx, q, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListReviews returns one page of matching reviews, newest first, and the
// total number of matches.
func (s *ReviewsStore) ListReviews(ctx context.Context, f ReviewFilter, page Page) ([]*Review, int64, error) {
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
	reviews := []*Review{}
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

// UpdateReview applies patch and returns the updated review.
func (s *ReviewsStore) UpdateReview(ctx context.Context, id bson.ObjectID, patch ReviewPatch) (*Review, error) {
	set := patch.setDoc()
	set["updated_at"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var r Review
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// DeleteReview removes the review.
func (s *ReviewsStore) DeleteReview(ctx context.Context, id bson.ObjectID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
