package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested catalog item does not exist.
var ErrNotFound = errors.New("catalog item not found")

// Stock is the inventory state of a catalog item: either tracked with a
// concrete quantity, or untracked with no quantity at all. The zero value is
// untracked. Modelling this as a variant keeps the "quantity exists iff
// tracking is enabled" rule out of reach of callers.
type Stock struct {
	quantity int
	tracked  bool
}

// TrackedStock returns a tracked stock state with the given quantity.
// Negative quantities are clamped to zero.
func TrackedStock(quantity int) Stock {
	if quantity < 0 {
		quantity = 0
	}
	return Stock{quantity: quantity, tracked: true}
}

// Untracked returns the stock state of an item whose inventory is not counted.
func Untracked() Stock {
	return Stock{}
}

// Tracked reports whether inventory is counted for this item.
func (s Stock) Tracked() bool {
	return s.tracked
}

// Quantity returns the current quantity and whether it is meaningful.
// The quantity is meaningful only for tracked stock.
func (s Stock) Quantity() (int, bool) {
	return s.quantity, s.tracked
}

// Item is one row of the stock ledger: a purchasable menu item owned by a
// single merchant, with its inventory state and derived availability.
type Item struct {
	ID         string
	MerchantID string
	Name       string
	Price      decimal.Decimal
	Stock      Stock
	Threshold  int
	Available  bool
}

// Availability computes the derived availability flag: an untracked item is
// always available; a tracked item is available only while its quantity is
// strictly greater than the low-stock threshold. Quantity equal to the
// threshold means unavailable.
func Availability(s Stock, threshold int) bool {
	qty, tracked := s.Quantity()
	if !tracked {
		return true
	}
	return qty > threshold
}

// Repository defines ledger persistence. UpdateInventory must write the
// stock fields and the recomputed available flag in a single statement so
// readers never observe one without the other.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Item, error)
	GetByIDs(ctx context.Context, ids []string) ([]Item, error)
	UpdateInventory(ctx context.Context, id string, s Stock, threshold int, available bool) error
}
