package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/franchiseos/supply-api/internal/domain/payment"
)

const (
	createPaymentSQL = `INSERT INTO payments (id, order_id, intent_id, payment_id, amount, provider, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id) DO NOTHING`

	getPaymentByOrderSQL = `SELECT id, order_id, intent_id, payment_id, amount, provider, status, created_at
		FROM payments WHERE order_id = $1`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL. The
// UNIQUE constraint on order_id is the at-most-once guard for settlement.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Create inserts the transaction unless the order already has one. The bool
// result reports whether this call won the insert.
func (r *PaymentRepository) Create(ctx context.Context, t *payment.Transaction) (bool, error) {
	tag, err := r.pool.Exec(ctx, createPaymentSQL,
		t.ID, t.OrderID, t.IntentID, t.PaymentID, t.Amount, t.Provider, t.Status,
	)
	if err != nil {
		return false, fmt.Errorf("creating payment for order %q: %w", t.OrderID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ByOrder returns the settled transaction for an order, or ErrNoTransaction.
func (r *PaymentRepository) ByOrder(ctx context.Context, orderID string) (*payment.Transaction, error) {
	var t payment.Transaction
	err := r.pool.QueryRow(ctx, getPaymentByOrderSQL, orderID).Scan(
		&t.ID, &t.OrderID, &t.IntentID, &t.PaymentID, &t.Amount, &t.Provider, &t.Status, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNoTransaction
		}
		return nil, fmt.Errorf("getting payment for order %q: %w", orderID, err)
	}
	return &t, nil
}
