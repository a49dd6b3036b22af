package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/franchiseos/supply-api/internal/domain/loyalty"
)

const (
	getLoyaltyAccountSQL = `SELECT franchise_id, balance, free_delivery_gifts
		FROM loyalty_accounts WHERE franchise_id = $1`

	// The WHERE guards pair with the table CHECK constraints: the update
	// silently misses instead of driving a counter negative.
	deductLoyaltySQL = `UPDATE loyalty_accounts
		SET balance = balance - $2,
		    free_delivery_gifts = free_delivery_gifts - CASE WHEN $3 THEN 1 ELSE 0 END
		WHERE franchise_id = $1
		  AND balance >= $2
		  AND (NOT $3 OR free_delivery_gifts > 0)`
)

var _ loyalty.Repository = (*LoyaltyRepository)(nil)

// LoyaltyRepository implements loyalty.Repository backed by PostgreSQL.
type LoyaltyRepository struct {
	pool *pgxpool.Pool
}

// NewLoyaltyRepository returns a LoyaltyRepository that uses the given pool.
func NewLoyaltyRepository(pool *pgxpool.Pool) *LoyaltyRepository {
	return &LoyaltyRepository{pool: pool}
}

// Account returns the ledger row for a franchise, or loyalty.ErrNoAccount.
func (r *LoyaltyRepository) Account(ctx context.Context, franchiseID string) (*loyalty.Account, error) {
	var a loyalty.Account
	err := r.pool.QueryRow(ctx, getLoyaltyAccountSQL, franchiseID).Scan(
		&a.FranchiseID, &a.Balance, &a.FreeDeliveryGifts,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, loyalty.ErrNoAccount
		}
		return nil, fmt.Errorf("getting loyalty account %q: %w", franchiseID, err)
	}
	return &a, nil
}

// Deduct removes points and, when useGift is set, one free-delivery gift in
// a single atomic statement. A miss means the balance moved under us since
// validation.
func (r *LoyaltyRepository) Deduct(ctx context.Context, franchiseID string, points int, useGift bool) error {
	tag, err := r.pool.Exec(ctx, deductLoyaltySQL, franchiseID, points, useGift)
	if err != nil {
		return fmt.Errorf("deducting %d points from %q: %w", points, franchiseID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deducting %d points from %q: insufficient balance", points, franchiseID)
	}
	return nil
}
