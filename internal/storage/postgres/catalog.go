package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/codemedavid/rownel-foodelivery/internal/domain/catalog"
)

const (
	getItemByIDSQL = `SELECT id, merchant_id, name, price, track_inventory, stock_quantity, low_stock_threshold, available
		FROM catalog_items WHERE id = $1`

	getItemsByIDsSQL = `SELECT id, merchant_id, name, price, track_inventory, stock_quantity, low_stock_threshold, available
		FROM catalog_items WHERE id = ANY($1)`

	updateInventorySQL = `UPDATE catalog_items
		SET track_inventory = $2, stock_quantity = $3, low_stock_threshold = $4, available = $5, updated_at = now()
		WHERE id = $1`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetByID returns a single ledger row by item id.
func (r *CatalogRepository) GetByID(ctx context.Context, id string) (*catalog.Item, error) {
	rows, err := r.pool.Query(ctx, getItemByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting item %q: %w", id, err)
	}

	it, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting item %q: %w", id, err)
	}
	return &it, nil
}

// GetByIDs returns the ledger rows matching any of the given ids in one
// query. This is the admission pipeline's snapshot read.
func (r *CatalogRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Item, error) {
	rows, err := r.pool.Query(ctx, getItemsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting items by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanItem)
}

// UpdateInventory writes the stock fields and the derived available flag in
// a single UPDATE so no reader observes one without the other. The quantity
// column is NULLed when tracking is off, satisfying the schema's
// present-iff-tracked constraint.
func (r *CatalogRepository) UpdateInventory(ctx context.Context, id string, s catalog.Stock, threshold int, available bool) error {
	var quantity *int
	if qty, tracked := s.Quantity(); tracked {
		quantity = &qty
	}

	tag, err := r.pool.Exec(ctx, updateInventorySQL, id, s.Tracked(), quantity, threshold, available)
	if err != nil {
		return fmt.Errorf("updating inventory for %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func scanItem(row pgx.CollectableRow) (catalog.Item, error) {
	var (
		it       catalog.Item
		price    decimal.Decimal
		tracking bool
		quantity *int
	)
	err := row.Scan(
		&it.ID, &it.MerchantID, &it.Name, &price,
		&tracking, &quantity, &it.Threshold, &it.Available,
	)
	if err != nil {
		return it, err
	}

	it.Price = price
	if tracking && quantity != nil {
		it.Stock = catalog.TrackedStock(*quantity)
	} else {
		it.Stock = catalog.Untracked()
	}
	return it, nil
}
