package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UsersStore performs user DB operations.
type UsersStore struct {
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// UserPatch holds optional profile changes; nil fields are left untouched.
type UserPatch struct {
	FirstName *string
	LastName  *string
	Phone     *string
}

func (p UserPatch) setDoc() bson.M {
	set := bson.M{}
	if p.FirstName != nil {
		set["first_name"] = *p.FirstName
	}
	if p.LastName != nil {
		set["last_name"] = *p.LastName
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	return set
}

// CreateUser inserts u and fills in its ID and timestamps.
func (s *UsersStore) CreateUser(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	if u.Favourites == nil {
		u.Favourites = []bson.ObjectID{}
	}

	result, err := s.coll.InsertOne(ctx, u)
	if err != nil {
		// the unique email index rejects concurrent registrations
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	u.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

// GetUserByEmail finds a user by normalized email.
func (s *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// GetUserByID finds a user by ObjectID.
func (s *UsersStore) GetUserByID(ctx context.Context, id bson.ObjectID) (*User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetUserByRefreshToken finds the user currently holding token.
func (s *UsersStore) GetUserByRefreshToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"refresh_token": token})
}

func (s *UsersStore) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var user User
	if err := s.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUsersByIDs fetches all users in ids with a single query.
func (s *UsersStore) GetUsersByIDs(ctx context.Context, ids []bson.ObjectID) ([]*User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var users []*User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UserExists checks if a user exists by email.
func (s *UsersStore) UserExists(ctx context.Context, email string) (bool, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateProfile applies patch and returns the updated user.
func (s *UsersStore) UpdateProfile(ctx context.Context, id bson.ObjectID, patch UserPatch) (*User, error) {
	set := patch.setDoc()
	set["updated_at"] = time.Now().UTC()
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set})
}

func (s *UsersStore) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user User
	if err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *UsersStore) updateOne(ctx context.Context, filter, update bson.M) error {
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPassword replaces the credential hash and revokes the refresh token so
// other sessions must sign in again.
func (s *UsersStore) SetPassword(ctx context.Context, id bson.ObjectID, hash string) error {
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"password": hash, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"refresh_token": "", "refresh_token_expires": ""},
	})
}

// SetRefreshToken stores token as the single active refresh token.
func (s *UsersStore) SetRefreshToken(ctx context.Context, id bson.ObjectID, token string, expires time.Time) error {
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"refresh_token": token, "refresh_token_expires": expires.UTC(), "updated_at": time.Now().UTC()},
	})
}

// ClearRefreshToken revokes the active refresh token.
func (s *UsersStore) ClearRefreshToken(ctx context.Context, id bson.ObjectID) error {
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$unset": bson.M{"refresh_token": "", "refresh_token_expires": ""},
	})
}

// MarkVerified flags the account with email as verified.
func (s *UsersStore) MarkVerified(ctx context.Context, email string) error {
	return s.updateOne(ctx, bson.M{"email": email}, bson.M{
		"$set": bson.M{"is_verified": true, "updated_at": time.Now().UTC()},
	})
}

// LinkGoogle records the Google subject on an existing account. A verified
// Google email also verifies the account.
func (s *UsersStore) LinkGoogle(ctx context.Context, id bson.ObjectID, subject string) error {
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"google_id": subject, "is_verified": true, "updated_at": time.Now().UTC()},
	})
}

// SetProfileImage stores the hosted avatar URL and its host identifier.
func (s *UsersStore) SetProfileImage(ctx context.Context, id bson.ObjectID, url, publicID string) error {
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"profile_image": url, "profile_image_id": publicID, "updated_at": time.Now().UTC()},
	})
}

// Deactivate soft-deletes the account and revokes its refresh token.
func (s *UsersStore) Deactivate(ctx context.Context, id bson.ObjectID) error {
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"is_active": false, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"refresh_token": "", "refresh_token_expires": ""},
	})
}

// AddFavourite adds propertyID to the user's favourites once.
func (s *UsersStore) AddFavourite(ctx context.Context, id, propertyID bson.ObjectID) error {
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$addToSet": bson.M{"favourites": propertyID},
	})
}

// RemoveFavourite removes propertyID from the user's favourites.
func (s *UsersStore) RemoveFavourite(ctx context.Context, id, propertyID bson.ObjectID) error {
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$pull": bson.M{"favourites": propertyID},
	})
}
