// Package review manages property and platform reviews and their
// moderation.
package review

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/apperror"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/data"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/normalize"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	minComment = 10
	maxComment = 500

	defaultFeatured = 3
	maxFeatured     = 10
)

// Store is the review persistence the service needs.
type Store interface {
	CreateReview(ctx context.Context, r *data.Review) error
	GetReview(ctx context.Context, id bson.ObjectID) (*data.Review, error)
	ReviewExists(ctx context.Context, userID bson.ObjectID, propertyID *bson.ObjectID) (bool, error)
	ListReviews(ctx context.Context, f data.ReviewFilter, page data.Page) ([]*data.Review, int64, error)
	UpdateReview(ctx context.Context, id bson.ObjectID, patch data.ReviewPatch) (*data.Review, error)
	DeleteReview(ctx context.Context, id bson.ObjectID) error
}

// Properties checks review targets.
type Properties interface {
	GetProperty(ctx context.Context, id bson.ObjectID) (*data.Property, error)
}

// Filter selects reviews to list. Platform selects reviews of the platform
// itself and takes precedence over PropertyID.
type Filter struct {
	PropertyID   *bson.ObjectID
	Platform     bool
	ApprovedOnly bool
	FeaturedOnly bool
}

// Input is a new review. A nil PropertyID reviews the platform.
type Input struct {
	PropertyID *bson.ObjectID
	Rating     int
	Comment    string
}

// Patch edits a review.
type Patch struct {
	Rating  *int
	Comment *string
}

// Service implements review operations.
type Service struct {
	store      Store
	properties Properties
	moderators map[string]bool
}

// NewService wires a Service. moderators are the emails allowed to approve
// and feature reviews.
func NewService(store Store, properties Properties, moderators []string) *Service {
	mods := make(map[string]bool, len(moderators))
	for _, m := range moderators {
		if m = normalize.Email(m); m != "" {
			mods[m] = true
		}
	}
	return &Service{store: store, properties: properties, moderators: mods}
}

// List returns reviews newest first.
func (s *Service) List(ctx context.Context, f Filter, page data.Page) ([]*data.Review, int64, error) {
	reviews, total, err := s.store.ListReviews(ctx, data.ReviewFilter{
		PropertyID:   f.PropertyID,
		PlatformOnly: f.Platform,
		ApprovedOnly: f.ApprovedOnly,
		FeaturedOnly: f.FeaturedOnly,
	}, page.Normalize())
	if err != nil {
		return nil, 0, apperror.Internal("list reviews", err)
	}
	return reviews, total, nil
}

// Featured returns up to limit approved, featured reviews.
func (s *Service) Featured(ctx context.Context, limit int) ([]*data.Review, error) {
	if limit <= 0 {
		limit = defaultFeatured
	}
	if limit > maxFeatured {
		limit = maxFeatured
	}
	reviews, _, err := s.store.ListReviews(ctx,
		data.ReviewFilter{ApprovedOnly: true, FeaturedOnly: true},
		data.Page{Limit: int64(limit)},
	)
	if err != nil {
		return nil, apperror.Internal("list featured reviews", err)
	}
	return reviews, nil
}

// Create stores an unapproved review by the actor.
func (s *Service) Create(ctx context.Context, actor data.Actor, in Input) (*data.Review, error) {
	comment := strings.TrimSpace(in.Comment)
	if err := validate(in.Rating, comment); err != nil {
		return nil, err
	}

	if in.PropertyID != nil {
		if _, err := s.properties.GetProperty(ctx, *in.PropertyID); err != nil {
			if errors.Is(err, data.ErrNotFound) {
				return nil, apperror.NotFound("Property not found")
			}
			return nil, apperror.Internal("load property", err)
		}
	}

	exists, err := s.store.ReviewExists(ctx, actor.ID, in.PropertyID)
	if err != nil {
		return nil, apperror.Internal("check existing review", err)
	}
	if exists {
		return nil, duplicate(in.PropertyID)
	}

	r := &data.Review{
		UserID:     actor.ID,
		PropertyID: in.PropertyID,
		Rating:     in.Rating,
		Comment:    comment,
		UserName:   DisplayName(actor.FirstName, actor.LastName),
	}
	// the unique index catches a concurrent duplicate
	if err := s.store.CreateReview(ctx, r); err != nil {
		if errors.Is(err, data.ErrDuplicate) {
			return nil, duplicate(in.PropertyID)
		}
		return nil, apperror.Internal("create review", err)
	}
	return r, nil
}

func duplicate(propertyID *bson.ObjectID) error {
	if propertyID == nil {
		return apperror.Conflict("You have already reviewed the platform")
	}
	return apperror.Conflict("You have already reviewed this property")
}

// Update edits the actor's own review. Any change sends it back to
// moderation.
func (s *Service) Update(ctx context.Context, actor data.Actor, id bson.ObjectID, p Patch) (*data.Review, error) {
	r, err := s.own(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	rating, comment := r.Rating, r.Comment
	patch := data.ReviewPatch{}
	if p.Rating != nil {
		rating = *p.Rating
		patch.Rating = p.Rating
	}
	if p.Comment != nil {
		comment = strings.TrimSpace(*p.Comment)
		patch.Comment = &comment
	}
	if patch.Rating == nil && patch.Comment == nil {
		return r, nil
	}
	if err := validate(rating, comment); err != nil {
		return nil, err
	}
	unapproved := false
	patch.IsApproved = &unapproved

	updated, err := s.store.UpdateReview(ctx, id, patch)
	if err != nil {
		return nil, storeErr(err)
	}
	return updated, nil
}

// Delete removes the actor's own review.
func (s *Service) Delete(ctx context.Context, actor data.Actor, id bson.ObjectID) error {
	if _, err := s.own(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.DeleteReview(ctx, id); err != nil {
		return storeErr(err)
	}
	return nil
}

// Approve publishes a review. Moderators only.
func (s *Service) Approve(ctx context.Context, actor data.Actor, id bson.ObjectID) (*data.Review, error) {
	approved := true
	return s.moderate(ctx, actor, id, data.ReviewPatch{IsApproved: &approved})
}

// Feature publishes and highlights a review. Moderators only.
func (s *Service) Feature(ctx context.Context, actor data.Actor, id bson.ObjectID) (*data.Review, error) {
	yes := true
	return s.moderate(ctx, actor, id, data.ReviewPatch{IsApproved: &yes, IsFeatured: &yes})
}

// IsModerator reports whether the actor may approve and feature reviews.
func (s *Service) IsModerator(actor data.Actor) bool {
	return s.moderators[normalize.Email(actor.Email)]
}

func (s *Service) moderate(ctx context.Context, actor data.Actor, id bson.ObjectID, patch data.ReviewPatch) (*data.Review, error) {
	if !s.IsModerator(actor) {
		return nil, apperror.Forbidden("Only moderators can moderate reviews")
	}
	r, err := s.store.UpdateReview(ctx, id, patch)
	if err != nil {
		return nil, storeErr(err)
	}
	return r, nil
}

func (s *Service) own(ctx context.Context, actor data.Actor, id bson.ObjectID) (*data.Review, error) {
	r, err := s.store.GetReview(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if r.UserID != actor.ID {
		return nil, apperror.NotFound("Review not found or not owned by you")
	}
	return r, nil
}

// DisplayName renders an author as "First L.".
func DisplayName(first, last string) string {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	if last == "" {
		return first
	}
	initial, _ := utf8.DecodeRuneInString(last)
	if first == "" {
		return string(initial) + "."
	}
	return first + " " + string(initial) + "."
}

func validate(rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return apperror.Validation("rating must be between 1 and 5")
	}
	n := utf8.RuneCountInString(comment)
	if n < minComment || n > maxComment {
		return apperror.Validation("comment must be between %d and %d characters", minComment, maxComment)
	}
	return nil
}

func storeErr(err error) error {
	if errors.Is(err, data.ErrNotFound) {
		return apperror.NotFound("Review not found")
	}
	return apperror.Internal("database error", err)
}
