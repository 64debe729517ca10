// Package ratelimit throttles sensitive account operations per identifier.
//
// Each protected operation has a policy of at most N attempts inside a
// trailing window W. Attempts are keyed by "{operation}:{identifier}", where
// the identifier is normally the normalized email address.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/apperror"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/logging"
)

// Protected operations.
const (
	OpLogin         = "login"
	OpRegister      = "register"
	OpPasswordReset = "password_reset"
	OpVerifyEmail   = "verify_email"
)

// Policy allows Max attempts per Window.
type Policy struct {
	Max    int
	Window time.Duration
}

// DefaultPolicies are the production limits.
var DefaultPolicies = map[string]Policy{
	OpLogin:         {Max: 5, Window: 5 * time.Minute},
	OpRegister:      {Max: 3, Window: time.Hour},
	OpPasswordReset: {Max: 3, Window: time.Hour},
	OpVerifyEmail:   {Max: 3, Window: time.Hour},
}

// Limiter records an attempt for key and reports whether it is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string, p Policy) (bool, error)
}

// Guard applies per-operation policies on top of a Limiter.
type Guard struct {
	limiter  Limiter
	policies map[string]Policy
}

// NewGuard returns a guard using policies; operations without a policy are
// not limited.
func NewGuard(l Limiter, policies map[string]Policy) *Guard {
	return &Guard{limiter: l, policies: policies}
}

// Check returns a RateLimited error when identifier has exhausted the
// budget for op. Backend failures fail open and are logged.
func (g *Guard) Check(ctx context.Context, op, identifier string) error {
	p, ok := g.policies[op]
	if !ok {
		return nil
	}
	key := Key(op, identifier)
	allowed, err := g.limiter.Allow(ctx, key, p)
	if err != nil {
		logging.FromContext(ctx).Error().Err(err).Str("key", key).Msg("rate limiter unavailable")
		return nil
	}
	if !allowed {
		return apperror.RateLimited(fmt.Sprintf("Too many %s attempts. Please try again later.", humanize(op)))
	}
	return nil
}

// Key formats the limiter key for an operation and identifier.
func Key(op, identifier string) string {
	return op + ":" + identifier
}

func humanize(op string) string {
	switch op {
	case OpPasswordReset:
		return "password reset"
	case OpVerifyEmail:
		return "verification"
	case OpRegister:
		return "registration"
	default:
		return op
	}
}
