package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/codemedavid/rownel-foodelivery/internal/storage/postgres"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// exportLine is one row of a merchant menu export: newline-delimited JSON,
// one item per line, gzip-compressed per merchant.
type exportLine struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	TrackInventory bool            `json:"trackInventory"`
	StockQuantity  *int            `json:"stockQuantity"`
	LowThreshold   int             `json:"lowStockThreshold"`
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing <merchant-id>.menu.gz export files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.menu.gz"))
	if err != nil {
		return errors.Wrap(err, "glob export files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.menu.gz files found in %s", dataDir)
	}

	slog.Info("found export files", slog.Int("count", len(files)))

	// Pass 1: build one bloom filter of item ids per file, concurrently. Item
	// ids must be unique across merchants, so an id hitting another file's
	// filter is a conflict candidate.
	filters, err := buildFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build id filters")
	}

	conflicts, err := findConflicts(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "check id conflicts")
	}
	if len(conflicts) > 0 {
		return errors.Errorf("item ids present in multiple merchant exports: %s", strings.Join(conflicts, ", "))
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Pass 2: stream each file again and upsert its items.
	for _, f := range files {
		if err := ingestFile(ctx, pool, f); err != nil {
			return errors.Wrapf(err, "ingest %s", f)
		}
	}

	return nil
}

// merchantIDFromPath derives the merchant id from an export file name,
// e.g. data/merchant-waffle-house.menu.gz -> merchant-waffle-house.
func merchantIDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".menu.gz")
}

func buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamExport(ctx, path, func(line exportLine) error {
			filter.AddString(line.ID)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.String("file", filepath.Base(path)),
					slog.Uint64("items", count),
				)
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "build filter for %s", path)
		}

		slog.Info("pass 1 complete",
			slog.String("file", filepath.Base(path)),
			slog.Uint64("total_items", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findConflicts re-streams each file and tests every id against the OTHER
// files' filters. Hits are re-checked exactly with a set merge afterwards so
// bloom false positives never fail an ingest.
func findConflicts(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	candidates := make([]map[string]struct{}, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, candidates))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// An id is a real conflict only if it was flagged as a candidate while
	// scanning two or more distinct files.
	seen := make(map[string]int)
	for _, c := range candidates {
		for id := range c {
			seen[id]++
		}
	}

	var conflicts []string
	for id, n := range seen {
		if n >= 2 {
			conflicts = append(conflicts, id)
		}
	}

	return conflicts, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	candidates []map[string]struct{},
) func() error {
	return func() error {
		found := make(map[string]struct{})

		if err := streamExport(ctx, path, func(line exportLine) error {
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(line.ID) {
					found[line.ID] = struct{}{}
					break
				}
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "scan %s for conflicts", path)
		}

		candidates[idx] = found
		return nil
	}
}

const ingestMerchantSQL = `
INSERT INTO merchants (id, name)
VALUES ($1, $1)
ON CONFLICT (id) DO NOTHING
`

const ingestItemSQL = `
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

func ingestFile(ctx context.Context, pool *pgxpool.Pool, path string) error {
	merchantID := merchantIDFromPath(path)
	slog.Info("ingesting file", slog.String("file", filepath.Base(path)), slog.String("merchant", merchantID))

	if _, err := pool.Exec(ctx, ingestMerchantSQL, merchantID); err != nil {
		return errors.Wrapf(err, "upsert merchant %s", merchantID)
	}

	var count uint64
	if err := streamExport(ctx, path, func(line exportLine) error {
		var quantity *int
		if line.TrackInventory {
			q := 0
			if line.StockQuantity != nil && *line.StockQuantity > 0 {
				q = *line.StockQuantity
			}
			quantity = &q
		}
		threshold := line.LowThreshold
		if threshold < 0 {
			threshold = 0
		}
		available := quantity == nil || *quantity > threshold

		if _, err := pool.Exec(ctx, ingestItemSQL,
			line.ID, merchantID, line.Name, line.Price,
			line.TrackInventory, quantity, threshold, available,
		); err != nil {
			return errors.Wrapf(err, "upsert item %s", line.ID)
		}

		count++
		if count%progressEvery == 0 {
			slog.Info("ingest progress", slog.String("merchant", merchantID), slog.Uint64("items", count))
		}
		return nil
	}); err != nil {
		return err
	}

	slog.Info("ingest complete", slog.String("merchant", merchantID), slog.Uint64("items", count))
	return nil
}

// streamExport opens a gzip-compressed export and calls fn for each JSON line.
func streamExport(ctx context.Context, path string, fn func(line exportLine) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}

		var line exportLine
		if err := json.Unmarshal(text, &line); err != nil {
			return errors.Wrapf(err, "parse line in %s", path)
		}
		if line.ID == "" {
			return errors.Errorf("line without item id in %s", path)
		}
		if err := fn(line); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
