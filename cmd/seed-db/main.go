package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/codemedavid/rownel-foodelivery/internal/storage/postgres"
)

type merchantJSON struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Items []itemJSON `json:"items"`
}

type itemJSON struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	TrackInventory bool            `json:"trackInventory"`
	StockQuantity  *int            `json:"stockQuantity"`
	LowThreshold   int             `json:"lowStockThreshold"`
}

func main() {
	var (
		databaseURL string
		catalogFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool, catalogFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	return nil
}

const upsertMerchantSQL = `
INSERT INTO merchants (id, name)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
`

const upsertItemSQL = `
INSERT INTO catalog_items (id, merchant_id, name, price, track_inventory, stock_quantity, low_stock_threshold, available)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    merchant_id         = EXCLUDED.merchant_id,
    name                = EXCLUDED.name,
    price               = EXCLUDED.price,
    track_inventory     = EXCLUDED.track_inventory,
    stock_quantity      = EXCLUDED.stock_quantity,
    low_stock_threshold = EXCLUDED.low_stock_threshold,
    available           = EXCLUDED.available,
    updated_at          = now()
`

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, catalogFile string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var merchants []merchantJSON
	if err := json.Unmarshal(data, &merchants); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("upserting merchants", slog.Int("count", len(merchants)))

	for _, m := range merchants {
		if _, err := pool.Exec(ctx, upsertMerchantSQL, m.ID, m.Name); err != nil {
			return errors.Wrapf(err, "upsert merchant %s", m.ID)
		}

		for _, it := range m.Items {
			var quantity *int
			if it.TrackInventory {
				q := 0
				if it.StockQuantity != nil {
					q = *it.StockQuantity
				}
				if q < 0 {
					q = 0
				}
				quantity = &q
			}
			threshold := it.LowThreshold
			if threshold < 0 {
				threshold = 0
			}
			available := quantity == nil || *quantity > threshold

			if _, err := pool.Exec(ctx, upsertItemSQL,
				it.ID, m.ID, it.Name, it.Price,
				it.TrackInventory, quantity, threshold, available,
			); err != nil {
				return errors.Wrapf(err, "upsert item %s", it.ID)
			}

			slog.Info("upserted item", slog.String("id", it.ID), slog.String("name", it.Name))
		}

		slog.Info("upserted merchant", slog.String("id", m.ID), slog.String("name", m.Name))
	}

	return nil
}
