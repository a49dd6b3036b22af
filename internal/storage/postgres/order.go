package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/franchiseos/supply-api/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (
		id, franchise_id, status, subtotal, tax_total, delivery_fee,
		loyalty_points_used, loyalty_gift_claimed, total, shipping_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	createOrderItemSQL = `INSERT INTO order_items (order_id, item_name, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5)`

	orderColumns = `id, franchise_id, status, subtotal, tax_total, delivery_fee,
		loyalty_points_used, loyalty_gift_claimed, total, shipping_address,
		COALESCE(tracking_number, ''), COALESCE(vehicle_number, ''), COALESCE(driver_name, ''),
		created_at, confirmed_at, paid_at, packed_at, shipped_at, delivered_at, cancelled_at`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByFranchiseSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE franchise_id = $1 ORDER BY created_at DESC`

	getOrderItemsSQL = `SELECT item_name, quantity, unit_price, line_total
		FROM order_items WHERE order_id = $1 ORDER BY item_name`

	// Transition statements gate on the expected current status. A zero
	// rows-affected result means a concurrent writer got there first; the
	// caller re-reads and reports the conflict.
	confirmOrderSQL = `UPDATE orders
		SET status = 'confirmed', delivery_fee = $2, total = $3,
		    loyalty_points_used = $4, confirmed_at = now()
		WHERE id = $1 AND status = 'pending'`

	markPaidSQL = `UPDATE orders SET status = 'paid', paid_at = now()
		WHERE id = $1 AND status = 'confirmed'`

	markPackingSQL = `UPDATE orders SET status = 'packing'
		WHERE id = $1 AND status = 'paid'`

	markPackedSQL = `UPDATE orders SET status = 'packed', packed_at = now()
		WHERE id = $1 AND status = 'packing'`

	markShippedSQL = `UPDATE orders
		SET status = 'shipped', tracking_number = $2, vehicle_number = $3,
		    driver_name = $4, shipped_at = now()
		WHERE id = $1 AND status = 'packed'`

	markDeliveredSQL = `UPDATE orders SET status = 'delivered', delivered_at = now()
		WHERE id = $1 AND status = 'shipped'`

	cancelOrderSQL = `UPDATE orders SET status = 'cancelled', cancelled_at = now()
		WHERE id = $1 AND status NOT IN ('delivered', 'cancelled')`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Status
// transitions are single conditional UPDATEs, so concurrent admin actions
// serialize on the row without explicit locking.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order together with its item snapshot in one
// transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, items []order.Item) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, createOrderSQL,
		o.ID, o.FranchiseID, o.Status, o.Subtotal, o.TaxTotal, o.DeliveryFee,
		o.LoyaltyPointsUsed, o.LoyaltyGiftClaimed, o.Total, o.ShippingAddress,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for _, it := range items {
		_, err = tx.Exec(ctx, createOrderItemSQL, o.ID, it.ItemName, it.Quantity, it.UnitPrice, it.LineTotal)
		if err != nil {
			return fmt.Errorf("creating order item %q: %w", it.ItemName, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns a single order by its identifier.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// Items returns the immutable line snapshot of an order.
func (r *OrderRepository) Items(ctx context.Context, id string) ([]order.Item, error) {
	rows, err := r.pool.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order items %q: %w", id, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ItemName, &it.Quantity, &it.UnitPrice, &it.LineTotal)
		return it, err
	})
}

// ListByFranchise returns a franchise's orders, newest first.
func (r *OrderRepository) ListByFranchise(ctx context.Context, franchiseID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByFranchiseSQL, franchiseID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for franchise %q: %w", franchiseID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Confirm advances pending -> confirmed, stamping the final fee, total and
// point spend.
func (r *OrderRepository) Confirm(ctx context.Context, id string, fee, total decimal.Decimal, points int) (bool, error) {
	return r.transition(ctx, confirmOrderSQL, id, fee, total, points)
}

func (r *OrderRepository) MarkPaid(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, markPaidSQL, id)
}

func (r *OrderRepository) MarkPacking(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, markPackingSQL, id)
}

func (r *OrderRepository) MarkPacked(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, markPackedSQL, id)
}

func (r *OrderRepository) MarkShipped(ctx context.Context, id, tracking, vehicle, driver string) (bool, error) {
	return r.transition(ctx, markShippedSQL, id, tracking, vehicle, driver)
}

func (r *OrderRepository) MarkDelivered(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, markDeliveredSQL, id)
}

// Cancel moves any non-terminal order to cancelled.
func (r *OrderRepository) Cancel(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, cancelOrderSQL, id)
}

func (r *OrderRepository) transition(ctx context.Context, sql, id string, args ...any) (bool, error) {
	tag, err := r.pool.Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return false, fmt.Errorf("transitioning order %q: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.FranchiseID, &o.Status, &o.Subtotal, &o.TaxTotal, &o.DeliveryFee,
		&o.LoyaltyPointsUsed, &o.LoyaltyGiftClaimed, &o.Total, &o.ShippingAddress,
		&o.TrackingNumber, &o.VehicleNumber, &o.DriverName,
		&o.CreatedAt, &o.ConfirmedAt, &o.PaidAt, &o.PackedAt, &o.ShippedAt,
		&o.DeliveredAt, &o.CancelledAt,
	)
	return o, err
}
