package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codemedavid/rownel-foodelivery/internal/domain/order"
)

// decrementSQL floors the deduction at zero and recomputes the derived
// available flag in the same statement, so the availability rule holds the
// moment the row changes. Untracked rows match no WHERE clause and are
// silently skipped.
const decrementSQL = `UPDATE catalog_items
	SET stock_quantity = GREATEST(stock_quantity - $2, 0),
	    available = GREATEST(stock_quantity - $2, 0) > low_stock_threshold,
	    updated_at = now()
	WHERE id = $1 AND track_inventory`

var _ order.Decrementer = (*StockDecrementer)(nil)

// StockDecrementer applies batch stock deductions against the ledger. It is
// the sole writer of stock_quantity on the checkout path; admin edits go
// through the catalog ledger instead.
type StockDecrementer struct {
	pool *pgxpool.Pool
}

// NewStockDecrementer returns a StockDecrementer that uses the given pool.
// The pool should be authenticated as a role with UPDATE rights on
// catalog_items, which the public API role does not need.
func NewStockDecrementer(pool *pgxpool.Pool) *StockDecrementer {
	return &StockDecrementer{pool: pool}
}

// Decrement applies every deduction inside one transaction. Non-positive
// quantities are skipped rather than rejected. A failure on any row rolls
// the whole batch back, leaving zero partial deductions applied.
func (d *StockDecrementer) Decrement(ctx context.Context, deductions []order.Deduction) error {
	batch := &pgx.Batch{}
	for _, ded := range deductions {
		if ded.Quantity <= 0 {
			continue
		}
		batch.Queue(decrementSQL, ded.ItemID, ded.Quantity)
	}
	if batch.Len() == 0 {
		return nil
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning decrement transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("applying stock deductions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing stock deductions: %w", err)
	}
	return nil
}
