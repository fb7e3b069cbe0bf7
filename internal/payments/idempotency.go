package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tablebird/tablebird-backend/pkg/redis"
)

// IdempotencyGuard dedupes gateway webhook deliveries by event id. The
// reconciliation engine is already replay-safe; the guard just avoids
// rerunning the transaction for deliveries we have definitely seen.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reports whether the event was already processed, marking it
// as seen when it was not.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, gateway, eventID string) (bool, error) {
	if gateway == "" || eventID == "" {
		return false, errors.New("gateway and event id are required")
	}
	key := g.store.IdempotencyKey(g.scope, gateway+":"+eventID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete unmarks the event so a failed handling attempt can be retried by
// the gateway.
func (g *IdempotencyGuard) Delete(ctx context.Context, gateway, eventID string) error {
	if gateway == "" || eventID == "" {
		return errors.New("gateway and event id are required")
	}
	key := g.store.IdempotencyKey(g.scope, gateway+":"+eventID)
	return g.store.Del(ctx, key)
}
