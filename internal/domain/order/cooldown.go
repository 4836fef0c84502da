package order

import (
	"context"
	"sync"
	"time"
)

// MemoryCooldownStore is an in-process CooldownStore suitable for single
// instance deployments. Multi-instance deployments should use the Redis
// store so the window is shared across replicas.
type MemoryCooldownStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryCooldownStore creates an empty in-memory store.
func NewMemoryCooldownStore() *MemoryCooldownStore {
	return &MemoryCooldownStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Begin implements CooldownStore.
func (s *MemoryCooldownStore) Begin(_ context.Context, customerRef string, window time.Duration) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expires, ok := s.entries[customerRef]; ok && now.Before(expires) {
		return false, expires.Sub(now), nil
	}
	s.entries[customerRef] = now.Add(window)
	return true, 0, nil
}

// Clear implements CooldownStore.
func (s *MemoryCooldownStore) Clear(_ context.Context, customerRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, customerRef)
	return nil
}

// cleanup removes expired windows.
func (s *MemoryCooldownStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ref, expires := range s.entries {
		if !now.Before(expires) {
			delete(s.entries, ref)
		}
	}
}

// StartCleanup launches a background goroutine that periodically evicts
// expired windows. It stops when ctx is cancelled.
func (s *MemoryCooldownStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.cleanup(now)
			}
		}
	}()
}
