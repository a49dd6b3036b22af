package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/franchiseos/supply-api/internal/domain/franchise"
)

const getFranchiseSQL = `SELECT id, name, location FROM franchises WHERE id = $1`

var _ franchise.Repository = (*FranchiseRepository)(nil)

// FranchiseRepository implements franchise.Repository backed by PostgreSQL.
type FranchiseRepository struct {
	pool *pgxpool.Pool
}

// NewFranchiseRepository returns a FranchiseRepository that uses the given pool.
func NewFranchiseRepository(pool *pgxpool.Pool) *FranchiseRepository {
	return &FranchiseRepository{pool: pool}
}

// Get returns a franchise by its identifier.
func (r *FranchiseRepository) Get(ctx context.Context, id string) (*franchise.Franchise, error) {
	var f franchise.Franchise
	err := r.pool.QueryRow(ctx, getFranchiseSQL, id).Scan(&f.ID, &f.Name, &f.Location)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, franchise.ErrNotFound
		}
		return nil, fmt.Errorf("getting franchise %q: %w", id, err)
	}
	return &f, nil
}
