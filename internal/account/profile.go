package account

import (
	"context"
	"errors"
	"strings"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/apperror"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/data"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/logging"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/media"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/normalize"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const avatarFolder = "avatars"

// ProfilePatch edits the actor's profile; nil fields are left unchanged.
type ProfilePatch struct {
	FirstName *string
	LastName  *string
	Phone     *string
}

// Profile returns the actor's account.
func (s *Service) Profile(ctx context.Context, actor data.Actor) (*data.User, error) {
	return s.user(ctx, actor.ID)
}

// UpdateProfile changes the actor's name and phone number.
func (s *Service) UpdateProfile(ctx context.Context, actor data.Actor, p ProfilePatch) (*data.User, error) {
	patch := data.UserPatch{}
	if p.FirstName != nil {
		v := strings.TrimSpace(*p.FirstName)
		if v == "" {
			return nil, apperror.Validation("first_name must not be empty")
		}
		patch.FirstName = &v
	}
	if p.LastName != nil {
		v := strings.TrimSpace(*p.LastName)
		if v == "" {
			return nil, apperror.Validation("last_name must not be empty")
		}
		patch.LastName = &v
	}
	if p.Phone != nil {
		v := normalize.Phone(*p.Phone)
		patch.Phone = &v
	}
	if patch.FirstName == nil && patch.LastName == nil && patch.Phone == nil {
		return s.user(ctx, actor.ID)
	}

	u, err := s.users.UpdateProfile(ctx, actor.ID, patch)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, apperror.Internal("update profile", err)
	}
	return u, nil
}

// UploadAvatar replaces the actor's profile image and returns its URL.
func (s *Service) UploadAvatar(ctx context.Context, actor data.Actor, f media.File) (string, error) {
	if !media.IsImage(f.ContentType) {
		return "", apperror.Validation("File must be an image")
	}
	if s.images == nil {
		return "", apperror.Internal("upload avatar", media.ErrNotConfigured)
	}
	u, err := s.user(ctx, actor.ID)
	if err != nil {
		return "", err
	}

	r, err := f.Open()
	if err != nil {
		return "", apperror.Validation("could not read uploaded file")
	}
	defer r.Close()
	img, err := s.images.Upload(ctx, r, avatarFolder)
	if err != nil {
		return "", apperror.Internal("upload avatar", err)
	}
	if err := s.users.SetProfileImage(ctx, actor.ID, img.URL, img.PublicID); err != nil {
		return "", apperror.Internal("store avatar", err)
	}

	if u.ProfileImageID != "" {
		if err := s.images.Destroy(ctx, u.ProfileImageID); err != nil {
			logging.FromContext(ctx).Warn().Err(err).Str("public_id", u.ProfileImageID).Msg("remove previous avatar")
		}
	}
	return img.URL, nil
}

// DeleteAccount deactivates the actor's account. Their open bookings are
// cancelled and a landlord's properties are withdrawn.
func (s *Service) DeleteAccount(ctx context.Context, actor data.Actor) error {
	log := logging.FromContext(ctx).With().Str("user_id", actor.ID.Hex()).Logger()

	cancelled, err := s.bookings.CancelActiveForUser(ctx, actor.ID)
	if err != nil {
		return apperror.Internal("cancel bookings", err)
	}
	var withdrawn int64
	if actor.IsLandlord() {
		if withdrawn, err = s.properties.DeactivateByLandlord(ctx, actor.ID); err != nil {
			return apperror.Internal("deactivate properties", err)
		}
	}
	if err := s.users.Deactivate(ctx, actor.ID); err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return apperror.NotFound("User not found")
		}
		return apperror.Internal("deactivate user", err)
	}
	log.Info().Int64("bookings_cancelled", cancelled).Int64("properties_deactivated", withdrawn).Msg("account deleted")
	return nil
}

// Favourites returns the actor's favourite properties that are still
// listed, in the order they were added.
func (s *Service) Favourites(ctx context.Context, actor data.Actor) ([]*data.Property, error) {
	u, err := s.user(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	out := []*data.Property{}
	if len(u.Favourites) == 0 {
		return out, nil
	}
	props, err := s.properties.GetPropertiesByIDs(ctx, u.Favourites)
	if err != nil {
		return nil, apperror.Internal("load favourites", err)
	}
	byID := make(map[bson.ObjectID]*data.Property, len(props))
	for _, p := range props {
		byID[p.ID] = p
	}
	for _, id := range u.Favourites {
		if p, ok := byID[id]; ok && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

// AddFavourite saves an existing property to the actor's favourites.
func (s *Service) AddFavourite(ctx context.Context, actor data.Actor, propertyID bson.ObjectID) error {
	p, err := s.properties.GetProperty(ctx, propertyID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return apperror.NotFound("Property not found")
		}
		return apperror.Internal("load property", err)
	}
	if !p.IsActive {
		return apperror.NotFound("Property not found")
	}
	if err := s.users.AddFavourite(ctx, actor.ID, propertyID); err != nil {
		return apperror.Internal("add favourite", err)
	}
	return nil
}

// RemoveFavourite drops a property from the actor's favourites.
func (s *Service) RemoveFavourite(ctx context.Context, actor data.Actor, propertyID bson.ObjectID) error {
	if err := s.users.RemoveFavourite(ctx, actor.ID, propertyID); err != nil {
		return apperror.Internal("remove favourite", err)
	}
	return nil
}
