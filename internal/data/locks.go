package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// bookingLock is an advisory lock document. Holding the lock for a property
// serializes the overlap check and insert of concurrent booking requests.
type bookingLock struct {
	ID        string        `bson:"_id"`
	Owner     bson.ObjectID `bson:"owner"`
	ExpiresAt time.Time     `bson:"expires_at"`
	CreatedAt time.Time     `bson:"created_at"`
}

// BookingLocks hands out per-key advisory locks backed by the unique _id
// index. Expired locks are reclaimed on contention and reaped by a TTL index.
type BookingLocks struct {
	coll *mongo.Collection
	ttl  time.Duration
}

// NewBookingLocks returns a lock manager whose locks expire after ttl.
func NewBookingLocks(coll *mongo.Collection, ttl time.Duration) *BookingLocks {
	return &BookingLocks{coll: coll, ttl: ttl}
}

// Acquire takes the lock for key. It returns ErrLocked when another holder
// has a live lock. The returned release func is safe to call after expiry:
// it only deletes the lock if this caller still owns it.
func (l *BookingLocks) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	owner := bson.NewObjectID()

	for attempt := 0; attempt < 2; attempt++ {
		now := time.Now().UTC()
		_, err := l.coll.InsertOne(ctx, bookingLock{
			ID:        key,
			Owner:     owner,
			ExpiresAt: now.Add(l.ttl),
			CreatedAt: now,
		})
		if err == nil {
			release := func(ctx context.Context) error {
				_, err := l.coll.DeleteOne(ctx, bson.M{"_id": key, "owner": owner})
				return err
			}
			return release, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, err
		}

		// the TTL monitor runs once a minute, so reclaim a stale lock here
		res, err := l.coll.DeleteOne(ctx, bson.M{"_id": key, "expires_at": bson.M{"$lte": now}})
		if err != nil {
			return nil, err
		}
		if res.DeletedCount == 0 {
			return nil, ErrLocked
		}
	}
	return nil, ErrLocked
}
