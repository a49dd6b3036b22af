package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/franchiseos/supply-api/internal/domain/delivery"
)

const activeScheduleSQL = `SELECT id, location, flat_fee, free_threshold
	FROM fee_schedules WHERE location = $1 AND active
	ORDER BY id LIMIT 1`

var _ delivery.Repository = (*FeeScheduleRepository)(nil)

// FeeScheduleRepository implements delivery.Repository backed by PostgreSQL.
type FeeScheduleRepository struct {
	pool *pgxpool.Pool
}

// NewFeeScheduleRepository returns a FeeScheduleRepository that uses the
// given pool.
func NewFeeScheduleRepository(pool *pgxpool.Pool) *FeeScheduleRepository {
	return &FeeScheduleRepository{pool: pool}
}

// ActiveByLocation returns the active fee schedule for a location, or
// delivery.ErrNoSchedule when none is configured.
func (r *FeeScheduleRepository) ActiveByLocation(ctx context.Context, location string) (*delivery.Schedule, error) {
	var s delivery.Schedule
	err := r.pool.QueryRow(ctx, activeScheduleSQL, location).Scan(
		&s.ID, &s.Location, &s.FlatFee, &s.FreeThreshold,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, delivery.ErrNoSchedule
		}
		return nil, fmt.Errorf("getting fee schedule for %q: %w", location, err)
	}
	return &s, nil
}
