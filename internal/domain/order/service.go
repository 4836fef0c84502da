package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/codemedavid/rownel-foodelivery/internal/domain/catalog"
)

// ErrEmptyCart is returned when a submission contains no lines.
var ErrEmptyCart = fmt.Errorf("cart is empty")

// InvalidQuantityError indicates a cart line with a non-positive quantity.
type InvalidQuantityError struct {
	ItemID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for item %s", e.ItemID)
}

// UnknownItemError indicates a cart line referencing an item that is not in
// the catalog, or that names the wrong merchant for the item.
type UnknownItemError struct {
	ItemID string
}

func (e *UnknownItemError) Error() string {
	return fmt.Sprintf("item %s not found", e.ItemID)
}

// InsufficientStockError indicates that the aggregated demand for a tracked
// item exceeds its current stock. It names the item so the customer can
// lower the quantity and resubmit. Nothing has been persisted when this is
// returned.
type InsufficientStockError struct {
	ItemName  string
	Requested int
	InStock   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, have %d", e.ItemName, e.Requested, e.InStock)
}

// AdmitRequest is one customer's checkout submission.
type AdmitRequest struct {
	CustomerRef string
	Lines       []CartLine
}

// AdmitResult holds the ids of the orders created by a successful admission,
// one per merchant, in first-appearance order of the cart.
type AdmitResult struct {
	OrderIDs []string
}

// Service is the order admission pipeline. It partitions a cart by merchant,
// validates aggregated demand against a single ledger snapshot, persists all
// resulting orders transactionally, and then triggers the batch stock
// decrement.
//
// The snapshot read and the decrement are two separate datastore operations
// with no lock spanning them, so two admissions validating against the same
// snapshot can both pass; the decrementer's floor at zero bounds the damage.
// This is a documented best-effort guarantee, not serializability.
type Service struct {
	items      catalog.Repository
	orders     Repository
	decrements Decrementer
}

// NewService creates an admission Service with the required dependencies.
func NewService(items catalog.Repository, orders Repository, decrements Decrementer) *Service {
	return &Service{
		items:      items,
		orders:     orders,
		decrements: decrements,
	}
}

// partition groups cart lines for a single merchant.
type partition struct {
	merchantID string
	lines      []CartLine
}

// Admit runs the admission pipeline for one submission.
func (s *Service) Admit(ctx context.Context, req AdmitRequest) (*AdmitResult, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	// Partition by merchant, preserving first-appearance order, and
	// aggregate demand per item across the whole submission. An item belongs
	// to exactly one merchant, so the global aggregate equals the
	// per-partition one.
	var (
		parts     []*partition
		partsByID = make(map[string]*partition)
		demand    = make(map[string]int)
		itemOrder []string
	)
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return nil, &InvalidQuantityError{ItemID: line.ItemID}
		}

		p, ok := partsByID[line.MerchantID]
		if !ok {
			p = &partition{merchantID: line.MerchantID}
			partsByID[line.MerchantID] = p
			parts = append(parts, p)
		}
		p.lines = append(p.lines, line)

		if _, seen := demand[line.ItemID]; !seen {
			itemOrder = append(itemOrder, line.ItemID)
		}
		demand[line.ItemID] += line.Quantity
	}

	// Snapshot-read every referenced ledger row in one batch query.
	snapshot, err := s.items.GetByIDs(ctx, itemOrder)
	if err != nil {
		return nil, fmt.Errorf("read ledger snapshot: %w", err)
	}
	byID := make(map[string]catalog.Item, len(snapshot))
	for _, it := range snapshot {
		byID[it.ID] = it
	}

	// Validate the whole submission against the snapshot. Any shortfall
	// aborts every partition; the first offending item (in cart order) is
	// reported.
	for _, id := range itemOrder {
		it, ok := byID[id]
		if !ok {
			return nil, &UnknownItemError{ItemID: id}
		}
		qty, tracked := it.Stock.Quantity()
		if tracked && demand[id] > qty {
			return nil, &InsufficientStockError{
				ItemName:  it.Name,
				Requested: demand[id],
				InStock:   qty,
			}
		}
	}

	// Every line must name the merchant that owns the item.
	for _, line := range req.Lines {
		if byID[line.ItemID].MerchantID != line.MerchantID {
			return nil, &UnknownItemError{ItemID: line.ItemID}
		}
	}

	// Build one order per partition and commit them all in one transaction.
	orders := make([]*Order, len(parts))
	for i, p := range parts {
		total := decimal.Zero
		lines := make([]Line, len(p.lines))
		for j, l := range p.lines {
			lines[j] = Line{
				ItemID:    l.ItemID,
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice,
				Options:   l.Options,
			}
			total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		orders[i] = &Order{
			ID:          uuid.New().String(),
			MerchantID:  p.merchantID,
			CustomerRef: req.CustomerRef,
			Total:       total.Round(2),
			Lines:       lines,
		}
	}

	if err := s.orders.CreateAll(ctx, orders); err != nil {
		return nil, fmt.Errorf("persist orders: %w", err)
	}

	// Decrement strictly follows successful persistence; it is never invoked
	// when anything above failed. Tracked-vs-untracked filtering happens
	// inside the decrementer.
	deductions := make([]Deduction, len(itemOrder))
	for i, id := range itemOrder {
		deductions[i] = Deduction{ItemID: id, Quantity: demand[id]}
	}
	if err := s.decrements.Decrement(ctx, deductions); err != nil {
		return nil, fmt.Errorf("decrement stock: %w", err)
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return &AdmitResult{OrderIDs: ids}, nil
}
