// Package redis implements the submission cooldown store on Redis, so the
// window is shared across API replicas.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codemedavid/rownel-foodelivery/internal/domain/order"
)

const cooldownKeyPrefix = "checkout:cooldown:"

var _ order.CooldownStore = (*CooldownStore)(nil)

// CooldownStore tracks per-customer submission windows as Redis keys with a
// TTL equal to the window. SET NX gives the atomicity the in-memory store
// gets from its mutex.
type CooldownStore struct {
	client *redis.Client
}

// NewCooldownStore returns a CooldownStore using the given client.
func NewCooldownStore(client *redis.Client) *CooldownStore {
	return &CooldownStore{client: client}
}

// Begin implements order.CooldownStore.
func (s *CooldownStore) Begin(ctx context.Context, customerRef string, window time.Duration) (bool, time.Duration, error) {
	key := cooldownKeyPrefix + customerRef

	ok, err := s.client.SetNX(ctx, key, 1, window).Result()
	if err != nil {
		return false, 0, fmt.Errorf("set cooldown key: %w", err)
	}
	if ok {
		return true, 0, nil
	}

	remaining, err := s.client.TTL(ctx, key).Result()
	if err != nil || remaining < 0 {
		// The key expired between SETNX and TTL, or TTL failed. Report the
		// full window rather than a bogus negative duration.
		remaining = window
	}
	return false, remaining, nil
}

// Clear implements order.CooldownStore.
func (s *CooldownStore) Clear(ctx context.Context, customerRef string) error {
	if err := s.client.Del(ctx, cooldownKeyPrefix+customerRef).Err(); err != nil {
		return fmt.Errorf("delete cooldown key: %w", err)
	}
	return nil
}
