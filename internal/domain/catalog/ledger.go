package catalog

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotTracked is returned by SetStock when the target item has inventory
// tracking disabled. Tracking must be enabled before a quantity can be set.
var ErrNotTracked = errors.New("inventory tracking is disabled for item")

// Ledger exposes the only write path into per-item inventory state. Every
// mutation recomputes the derived available flag and persists it atomically
// with the field that triggered the change, so the derivation rule holds
// after every write. Callers never write available directly.
type Ledger struct {
	items Repository
}

// NewLedger creates a Ledger backed by the given item repository.
func NewLedger(items Repository) *Ledger {
	return &Ledger{items: items}
}

// SetTracking enables or disables inventory tracking for an item.
// Enabling starts the counter at zero unless the item is already tracked.
// Disabling discards the stored quantity entirely.
func (l *Ledger) SetTracking(ctx context.Context, id string, enabled bool) (*Item, error) {
	item, err := l.items.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get item")
	}

	switch {
	case enabled && !item.Stock.Tracked():
		item.Stock = TrackedStock(0)
	case !enabled:
		item.Stock = Untracked()
	}

	return l.store(ctx, item)
}

// SetStock replaces the quantity of a tracked item. Negative quantities are
// clamped to zero. Untracked items reject the write with ErrNotTracked.
func (l *Ledger) SetStock(ctx context.Context, id string, quantity int) (*Item, error) {
	item, err := l.items.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get item")
	}

	if !item.Stock.Tracked() {
		return nil, ErrNotTracked
	}
	item.Stock = TrackedStock(quantity)

	return l.store(ctx, item)
}

// SetThreshold replaces the low-stock threshold. Negative thresholds are
// clamped to zero. The threshold applies to tracked and untracked items
// alike, although it only influences availability while tracking is on.
func (l *Ledger) SetThreshold(ctx context.Context, id string, threshold int) (*Item, error) {
	item, err := l.items.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get item")
	}

	if threshold < 0 {
		threshold = 0
	}
	item.Threshold = threshold

	return l.store(ctx, item)
}

// store recomputes availability from the mutated fields and persists
// everything in one repository call.
func (l *Ledger) store(ctx context.Context, item *Item) (*Item, error) {
	item.Available = Availability(item.Stock, item.Threshold)

	if err := l.items.UpdateInventory(ctx, item.ID, item.Stock, item.Threshold, item.Available); err != nil {
		return nil, errors.Wrap(err, "update inventory")
	}
	return item, nil
}
