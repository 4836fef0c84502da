package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codemedavid/rownel-foodelivery/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, merchant_id, customer_ref, total)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	createOrderLineSQL = `INSERT INTO order_lines (order_id, item_id, quantity, unit_price, options)
		VALUES ($1, $2, $3, $4, $5)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateAll persists every order and its lines inside one transaction. A
// failure on any row rolls back the whole submission, so no partial
// partitions are ever committed.
func (r *OrderRepository) CreateAll(ctx context.Context, orders []*order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning order transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, o := range orders {
		if err := createOrder(ctx, tx, o); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing orders: %w", err)
	}
	return nil
}

func createOrder(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	err := tx.QueryRow(ctx, createOrderSQL,
		o.ID, o.MerchantID, o.CustomerRef, o.Total,
	).Scan(&o.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	batch := &pgx.Batch{}
	for _, l := range o.Lines {
		batch.Queue(createOrderLineSQL, o.ID, l.ItemID, l.Quantity, l.UnitPrice, []byte(l.Options))
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("creating lines for order %q: %w", o.ID, err)
	}
	return nil
}
