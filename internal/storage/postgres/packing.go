package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/franchiseos/supply-api/internal/domain/packing"
)

const (
	createPackingEntrySQL = `INSERT INTO packing_entries (order_id, item_name, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id, item_name) DO NOTHING`

	getPackingEntriesSQL = `SELECT order_id, item_name, quantity, packed, packed_at
		FROM packing_entries WHERE order_id = $1 ORDER BY item_name`

	setPackedSQL = `UPDATE packing_entries
		SET packed = $3, packed_at = CASE WHEN $3 THEN now() ELSE NULL END
		WHERE order_id = $1 AND item_name = $2`
)

var _ packing.Repository = (*PackingRepository)(nil)

// PackingRepository implements packing.Repository backed by PostgreSQL.
type PackingRepository struct {
	pool *pgxpool.Pool
}

// NewPackingRepository returns a PackingRepository that uses the given pool.
func NewPackingRepository(pool *pgxpool.Pool) *PackingRepository {
	return &PackingRepository{pool: pool}
}

// CreateEntries inserts checklist rows, leaving already-existing rows (and
// their packed flags) untouched.
func (r *PackingRepository) CreateEntries(ctx context.Context, entries []packing.Entry) error {
	for _, e := range entries {
		_, err := r.pool.Exec(ctx, createPackingEntrySQL, e.OrderID, e.ItemName, e.Quantity)
		if err != nil {
			return fmt.Errorf("creating packing entry %q/%q: %w", e.OrderID, e.ItemName, err)
		}
	}
	return nil
}

// Entries returns the checklist rows for an order.
func (r *PackingRepository) Entries(ctx context.Context, orderID string) ([]packing.Entry, error) {
	rows, err := r.pool.Query(ctx, getPackingEntriesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting packing entries %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (packing.Entry, error) {
		var e packing.Entry
		err := row.Scan(&e.OrderID, &e.ItemName, &e.Quantity, &e.Packed, &e.PackedAt)
		return e, err
	})
}

// SetPacked flips one checklist row.
func (r *PackingRepository) SetPacked(ctx context.Context, orderID, itemName string, packed bool) error {
	tag, err := r.pool.Exec(ctx, setPackedSQL, orderID, itemName, packed)
	if err != nil {
		return fmt.Errorf("setting packed flag %q/%q: %w", orderID, itemName, err)
	}
	if tag.RowsAffected() == 0 {
		return packing.ErrUnknownItem
	}
	return nil
}
