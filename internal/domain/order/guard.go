package order

import (
	"context"
	"fmt"
	"time"
)

// RateLimitedError indicates that the customer submitted again inside the
// cooldown window. It is distinct from every stock-related failure so the
// caller can render a "please wait" message instead of a shortage one.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("submission rate limited, retry after %s", e.RetryAfter.Round(time.Second))
}

// CooldownStore tracks recent submissions per customer reference.
type CooldownStore interface {
	// Begin opens a cooldown window for the customer. It returns ok=false
	// with the remaining window duration when a previous submission is still
	// inside its window.
	Begin(ctx context.Context, customerRef string, window time.Duration) (ok bool, remaining time.Duration, err error)
	// Clear releases the customer's window early. Used when admission fails,
	// so an immediate corrected resubmission is not blocked.
	Clear(ctx context.Context, customerRef string) error
}

// Guard wraps the admission Service with a per-customer cooldown. A second
// submission inside the window is rejected before the pipeline runs at all,
// independent of stock state. Failed admissions release the window.
type Guard struct {
	inner  *Service
	store  CooldownStore
	window time.Duration
}

// DefaultCooldown is the documented default submission cooldown.
const DefaultCooldown = 60 * time.Second

// NewGuard wraps svc with the given cooldown store. A non-positive window
// falls back to DefaultCooldown.
func NewGuard(svc *Service, store CooldownStore, window time.Duration) *Guard {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &Guard{inner: svc, store: store, window: window}
}

// Admit applies the cooldown and delegates to the wrapped pipeline.
func (g *Guard) Admit(ctx context.Context, req AdmitRequest) (*AdmitResult, error) {
	ok, remaining, err := g.store.Begin(ctx, req.CustomerRef, g.window)
	if err != nil {
		return nil, fmt.Errorf("submission cooldown: %w", err)
	}
	if !ok {
		return nil, &RateLimitedError{RetryAfter: remaining}
	}

	result, err := g.inner.Admit(ctx, req)
	if err != nil {
		// Release the window so the customer can fix the cart and retry
		// immediately. A Clear failure only extends the cooldown, so it is
		// not worth failing the already-failed admission over.
		_ = g.store.Clear(ctx, req.CustomerRef)
		return nil, err
	}
	return result, nil
}
