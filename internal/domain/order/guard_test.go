package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuardFixture(t *testing.T, window time.Duration) (*Guard, *fixture, *MemoryCooldownStore) {
	t.Helper()
	f := newFixture(tracked("x", "m1", 100, 0))
	store := NewMemoryCooldownStore()
	return NewGuard(f.svc, store, window), f, store
}

func TestGuard_SecondSubmissionRejected(t *testing.T) {
	guard, _, _ := newGuardFixture(t, time.Minute)
	req := AdmitRequest{
		CustomerRef: "c1",
		Lines:       []CartLine{line("m1", "x", 1)},
	}

	_, err := guard.Admit(context.Background(), req)
	require.NoError(t, err)

	_, err = guard.Admit(context.Background(), req)
	var rlErr *RateLimitedError
	require.ErrorAs(t, err, &rlErr)
	assert.Greater(t, rlErr.RetryAfter, time.Duration(0))
}

func TestGuard_DistinctCustomersIndependent(t *testing.T) {
	guard, _, _ := newGuardFixture(t, time.Minute)

	_, err := guard.Admit(context.Background(), AdmitRequest{
		CustomerRef: "c1",
		Lines:       []CartLine{line("m1", "x", 1)},
	})
	require.NoError(t, err)

	_, err = guard.Admit(context.Background(), AdmitRequest{
		CustomerRef: "c2",
		Lines:       []CartLine{line("m1", "x", 1)},
	})
	require.NoError(t, err)
}

func TestGuard_FailedAdmissionReleasesWindow(t *testing.T) {
	guard, f, _ := newGuardFixture(t, time.Minute)
	f.repo.byID["x"] = tracked("x", "m1", 2, 0)

	// Shortfall: admission fails, but the cooldown is released.
	_, err := guard.Admit(context.Background(), AdmitRequest{
		CustomerRef: "c1",
		Lines:       []CartLine{line("m1", "x", 5)},
	})
	var isErr *InsufficientStockError
	require.ErrorAs(t, err, &isErr)

	// Corrected resubmission goes straight through.
	_, err = guard.Admit(context.Background(), AdmitRequest{
		CustomerRef: "c1",
		Lines:       []CartLine{line("m1", "x", 2)},
	})
	require.NoError(t, err)
}

func TestGuard_WindowExpires(t *testing.T) {
	f := newFixture(tracked("x", "m1", 100, 0))
	store := NewMemoryCooldownStore()
	now := time.Unix(1000, 0)
	store.now = func() time.Time { return now }
	guard := NewGuard(f.svc, store, time.Minute)

	req := AdmitRequest{
		CustomerRef: "c1",
		Lines:       []CartLine{line("m1", "x", 1)},
	}

	_, err := guard.Admit(context.Background(), req)
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, err = guard.Admit(context.Background(), req)
	var rlErr *RateLimitedError
	require.ErrorAs(t, err, &rlErr)

	now = now.Add(2 * time.Second)
	_, err = guard.Admit(context.Background(), req)
	require.NoError(t, err)
}

func TestGuard_DefaultWindow(t *testing.T) {
	f := newFixture(tracked("x", "m1", 100, 0))
	guard := NewGuard(f.svc, NewMemoryCooldownStore(), 0)
	assert.Equal(t, DefaultCooldown, guard.window)
}

func TestMemoryCooldownStore_Cleanup(t *testing.T) {
	store := NewMemoryCooldownStore()
	now := time.Unix(1000, 0)
	store.now = func() time.Time { return now }

	ok, _, err := store.Begin(context.Background(), "c1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	store.cleanup(now.Add(30 * time.Second))
	assert.Len(t, store.entries, 1, "live windows survive cleanup")

	store.cleanup(now.Add(2 * time.Minute))
	assert.Empty(t, store.entries)
}
