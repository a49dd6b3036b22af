// Command seed-db loads the base dataset a fresh deployment needs: the
// product catalog, franchises with their fee schedules and loyalty accounts,
// and the initial API keys.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/franchiseos/supply-api/internal/domain/auth"
	"github.com/franchiseos/supply-api/internal/storage/postgres"
)

type productJSON struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	UnitLabel string          `json:"unit_label"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	Category  string          `json:"category"`
}

type franchiseJSON struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Location      string          `json:"location"`
	LoyaltyPoints int             `json:"loyalty_points"`
	DeliveryGifts int             `json:"delivery_gifts"`
	FlatFee       decimal.Decimal `json:"flat_fee"`
	FreeThreshold decimal.Decimal `json:"free_threshold"`
	MemberKey     string          `json:"member_key"`
}

func main() {
	var (
		databaseURL    string
		productsFile   string
		franchisesFile string
		adminKey       string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&franchisesFile, "franchises-file", "db/seed/franchises.json", "path to franchises JSON file")
	flag.StringVar(&adminKey, "admin-key", "", "admin API key to seed (or SUPPLY_SEED_ADMIN_KEY env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminKey == "" {
		adminKey = os.Getenv("SUPPLY_SEED_ADMIN_KEY")
	}
	if adminKey == "" {
		slog.Error("admin key is required: set --admin-key or SUPPLY_SEED_ADMIN_KEY")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, franchisesFile, adminKey); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, franchisesFile, adminKey string) error {
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

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedFranchises(ctx, pool, franchisesFile); err != nil {
		return errors.Wrap(err, "seed franchises")
	}
	if err := seedAPIKey(ctx, pool, adminKey, "operations admin", "", auth.ScopeAdmin); err != nil {
		return errors.Wrap(err, "seed admin key")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, path string) error {
	slog.Info("reading products file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	const upsert = `INSERT INTO products (id, name, price, unit_label, tax_rate, category, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, price = EXCLUDED.price,
			unit_label = EXCLUDED.unit_label, tax_rate = EXCLUDED.tax_rate,
			category = EXCLUDED.category, active = TRUE`

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsert, p.ID, p.Name, p.Price, p.UnitLabel, p.TaxRate, p.Category); err != nil {
			return errors.Wrapf(err, "upsert product %q", p.ID)
		}
	}

	slog.Info("products seeded", slog.Int("count", len(products)))
	return nil
}

func seedFranchises(ctx context.Context, pool *pgxpool.Pool, path string) error {
	slog.Info("reading franchises file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read franchises file")
	}

	var franchises []franchiseJSON
	if err := json.Unmarshal(data, &franchises); err != nil {
		return errors.Wrap(err, "parse franchises JSON")
	}

	const (
		upsertFranchise = `INSERT INTO franchises (id, name, location) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, location = EXCLUDED.location`

		upsertAccount = `INSERT INTO loyalty_accounts (franchise_id, balance, free_delivery_gifts)
			VALUES ($1, $2, $3)
			ON CONFLICT (franchise_id) DO UPDATE SET
				balance = EXCLUDED.balance, free_delivery_gifts = EXCLUDED.free_delivery_gifts`

		upsertSchedule = `INSERT INTO fee_schedules (id, location, flat_fee, free_threshold, active)
			VALUES ($1, $2, $3, $4, TRUE)
			ON CONFLICT (id) DO UPDATE SET
				flat_fee = EXCLUDED.flat_fee, free_threshold = EXCLUDED.free_threshold, active = TRUE`
	)

	for _, f := range franchises {
		if _, err := pool.Exec(ctx, upsertFranchise, f.ID, f.Name, f.Location); err != nil {
			return errors.Wrapf(err, "upsert franchise %q", f.ID)
		}
		if _, err := pool.Exec(ctx, upsertAccount, f.ID, f.LoyaltyPoints, f.DeliveryGifts); err != nil {
			return errors.Wrapf(err, "upsert loyalty account %q", f.ID)
		}
		if !f.FlatFee.IsZero() || !f.FreeThreshold.IsZero() {
			if _, err := pool.Exec(ctx, upsertSchedule, "fee-"+f.Location, f.Location, f.FlatFee, f.FreeThreshold); err != nil {
				return errors.Wrapf(err, "upsert fee schedule for %q", f.Location)
			}
		}
		if f.MemberKey != "" {
			if err := seedAPIKey(ctx, pool, f.MemberKey, f.Name+" member", f.ID, auth.ScopeMember); err != nil {
				return errors.Wrapf(err, "seed member key for %q", f.ID)
			}
		}
	}

	slog.Info("franchises seeded", slog.Int("count", len(franchises)))
	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, rawKey, name, franchiseID, scope string) error {
	const upsert = `INSERT INTO api_keys (id, key_hash, name, franchise_id, scopes, active)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, TRUE)
		ON CONFLICT (key_hash) DO UPDATE SET
			name = EXCLUDED.name, franchise_id = EXCLUDED.franchise_id,
			scopes = EXCLUDED.scopes, active = TRUE`

	_, err := pool.Exec(ctx, upsert, uuid.New().String(), auth.HashKey(rawKey), name, franchiseID, []string{scope})
	if err != nil {
		return errors.Wrap(err, "upsert api key")
	}

	slog.Info("api key seeded", slog.String("name", name))
	return nil
}
