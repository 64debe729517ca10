package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis is a Limiter shared by every API instance. Each key is a sorted set
// of attempt timestamps.
type Redis struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedis connects to url (redis://...) and verifies the connection.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Redis{client: client, prefix: "ratelimit:", now: time.Now}, nil
}

// Allow records the attempt and reports whether it fits in the window. The
// attempt is removed again when it does not, so rejected attempts do not
// extend the lockout.
func (r *Redis) Allow(ctx context.Context, key string, p Policy) (bool, error) {
	now := r.now()
	k := r.prefix + key
	member := uuid.NewString()
	cutoff := strconv.FormatInt(now.Add(-p.Window).UnixMilli(), 10)

	var card *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, k, "-inf", "("+cutoff)
		pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMilli()), Member: member})
		card = pipe.ZCard(ctx, k)
		pipe.PExpire(ctx, k, p.Window)
		return nil
	})
	if err != nil {
		return false, err
	}

	if card.Val() > int64(p.Max) {
		if err := r.client.ZRem(ctx, k, member).Err(); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
