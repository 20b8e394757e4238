package razorpaywebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trydo/wts-backend/pkg/redis"
)

// InFlightGuard marks a payment id as being processed so concurrent deliveries
// of the same event back off. It never records completion; the database does.
type InFlightGuard struct {
	store redis.GuardStore
	ttl   time.Duration
	scope string
}

func NewInFlightGuard(store redis.GuardStore, ttl time.Duration, scope string) (*InFlightGuard, error) {
	if store == nil {
		return nil, errors.New("guard store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &InFlightGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// Acquire reports whether the caller now owns paymentID.
func (g *InFlightGuard) Acquire(ctx context.Context, paymentID string) (bool, error) {
	if paymentID == "" {
		return false, errors.New("payment id is required")
	}
	key := g.store.InFlightKey(g.scope, paymentID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set in-flight key: %w", err)
	}
	return set, nil
}

// Release frees paymentID for the next delivery.
func (g *InFlightGuard) Release(ctx context.Context, paymentID string) error {
	if paymentID == "" {
		return errors.New("payment id is required")
	}
	return g.store.Del(ctx, g.store.InFlightKey(g.scope, paymentID))
}
