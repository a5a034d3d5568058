package payments

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketcore/pkg/redis"
)

const defaultIntentTTL = 24 * time.Hour

// intentStore is the redis surface the guard needs.
type intentStore interface {
	ClaimIntent(ctx context.Context, intentID, orderID string, ttl time.Duration) (redis.IntentClaim, error)
	ReleaseIntent(ctx context.Context, intentID, orderID string) (bool, error)
}

// IntentGuard remembers which order each provider intent settled so
// replayed callbacks for another order are refused before touching the
// database.
type IntentGuard struct {
	store intentStore
	ttl   time.Duration
}

// NewIntentGuard returns nil when store is nil, which disables the guard.
func NewIntentGuard(store intentStore, ttl time.Duration) *IntentGuard {
	if store == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultIntentTTL
	}
	return &IntentGuard{store: store, ttl: ttl}
}

// Claim binds intentID to orderID unless another order already holds it.
func (g *IntentGuard) Claim(ctx context.Context, intentID string, orderID uuid.UUID) (redis.IntentClaim, error) {
	if g == nil || intentID == "" {
		return redis.IntentClaim{Granted: true, Owner: orderID.String()}, nil
	}
	return g.store.ClaimIntent(ctx, intentID, orderID.String(), g.ttl)
}

// Release drops a claim made by Claim, leaving claims of other orders alone.
func (g *IntentGuard) Release(ctx context.Context, intentID string, orderID uuid.UUID) error {
	if g == nil || intentID == "" {
		return nil
	}
	_, err := g.store.ReleaseIntent(ctx, intentID, orderID.String())
	return err
}
