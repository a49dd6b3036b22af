// Command catalog-ingest imports gzipped supplier price lists into the
// product catalog. Each list is a pipe-separated dump
// (sku|name|price|unit|tax_rate|category); SKUs offered by more than one
// supplier resolve to the lowest quoted price.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/franchiseos/supply-api/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
)

// listing is one parsed supplier row.
type listing struct {
	SKU       string
	Name      string
	Price     decimal.Decimal
	UnitLabel string
	TaxRate   decimal.Decimal
	Category  string
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing supplier *.gz price lists")
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
	files, err := filepath.Glob(filepath.Join(dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list price files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.gz price lists in %s", dataDir)
	}

	// Pass 1: one bloom filter per supplier file, built concurrently. The
	// filters only flag SKUs that MAY exist in another file; actual conflict
	// resolution happens on the parsed rows.
	slog.Info("pass 1: building SKU filters", slog.Int("files", len(files)))

	filters, err := buildSKUFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build sku filters")
	}

	// Pass 2: parse rows, resolving cross-supplier SKU conflicts to the
	// lowest price.
	slog.Info("pass 2: parsing listings")

	merged, err := mergeListings(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "merge listings")
	}

	slog.Info("listings merged", slog.Int("skus", len(merged)))
	if len(merged) == 0 {
		slog.Info("nothing to import")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeProducts(ctx, pool, merged); err != nil {
		return errors.Wrap(err, "write products to database")
	}

	return nil
}

func buildSKUFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
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

		if err := streamGzFile(ctx, path, func(line string) {
			sku, _, ok := strings.Cut(line, "|")
			if !ok {
				return
			}
			filter.AddString(sku)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress", slog.Int("file", idx+1), slog.Uint64("rows", count))
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for %s", path)
		}

		slog.Info("pass 1 complete", slog.Int("file", idx+1), slog.Uint64("rows", count))
		filters[idx] = filter
		return nil
	}
}

// mergeListings streams every file concurrently and keeps, per SKU, the
// cheapest listing. A SKU is only contested when another file's bloom filter
// claims it too; uncontested rows are collected per file without touching the
// shared map, so the lock is only taken for genuine cross-supplier overlaps.
func mergeListings(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]listing, error) {
	var (
		mu     sync.Mutex
		merged = make(map[string]listing)
	)

	keep := func(l listing) {
		have, ok := merged[l.SKU]
		if !ok || l.Price.LessThan(have.Price) {
			merged[l.SKU] = l
		}
	}

	contested := func(idx int, sku string) bool {
		for i, f := range filters {
			if i != idx && f.TestString(sku) {
				return true
			}
		}
		return false
	}

	locals := make([][]listing, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		idx, path := i, f
		g.Go(func() error {
			var count, bad uint64
			if err := streamGzFile(ctx, path, func(line string) {
				l, err := parseListing(line)
				if err != nil {
					bad++
					return
				}
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 2 progress", slog.Int("file", idx+1), slog.Uint64("rows", count))
				}
				if contested(idx, l.SKU) {
					mu.Lock()
					keep(l)
					mu.Unlock()
				} else {
					locals[idx] = append(locals[idx], l)
				}
			}); err != nil {
				return errors.Wrapf(err, "parse %s", path)
			}
			slog.Info("pass 2 complete",
				slog.Int("file", idx+1),
				slog.Uint64("rows", count),
				slog.Uint64("malformed", bad),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, local := range locals {
		for _, l := range local {
			keep(l)
		}
	}
	return merged, nil
}

func parseListing(line string) (listing, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 6 {
		return listing{}, errors.Errorf("expected 6 fields, got %d", len(parts))
	}

	price, err := decimal.NewFromString(parts[2])
	if err != nil || price.IsNegative() {
		return listing{}, errors.Errorf("bad price %q", parts[2])
	}
	taxRate, err := decimal.NewFromString(parts[4])
	if err != nil || taxRate.IsNegative() {
		return listing{}, errors.Errorf("bad tax rate %q", parts[4])
	}

	l := listing{
		SKU:       strings.TrimSpace(parts[0]),
		Name:      strings.TrimSpace(parts[1]),
		Price:     price,
		UnitLabel: strings.TrimSpace(parts[3]),
		TaxRate:   taxRate,
		Category:  strings.TrimSpace(parts[5]),
	}
	if l.SKU == "" || l.Name == "" {
		return listing{}, errors.New("missing sku or name")
	}
	return l, nil
}

func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
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
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

func writeProducts(ctx context.Context, pool *pgxpool.Pool, merged map[string]listing) error {
	slog.Info("writing products to database", slog.Int("count", len(merged)))

	const upsert = `INSERT INTO products (id, name, price, unit_label, tax_rate, category, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, price = EXCLUDED.price,
			unit_label = EXCLUDED.unit_label, tax_rate = EXCLUDED.tax_rate,
			category = EXCLUDED.category, active = TRUE`

	written := 0
	for _, l := range merged {
		if _, err := pool.Exec(ctx, upsert, l.SKU, l.Name, l.Price, l.UnitLabel, l.TaxRate, l.Category); err != nil {
			return errors.Wrapf(err, "upsert product %q", l.SKU)
		}
		written++
		if written%100 == 0 || written == len(merged) {
			slog.Info("write progress", slog.Int("written", written), slog.Int("total", len(merged)))
		}
	}

	return nil
}
