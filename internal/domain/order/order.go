// Package order implements the authoritative order lifecycle: creation at
// checkout, the forward-only status machine, and the payment and packing
// transitions with their idempotency guards.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for lifecycle guards.
var (
	ErrNotFound       = errors.New("order not found")
	ErrNegativeFee    = errors.New("delivery fee must not be negative")
	ErrMissingCarrier = errors.New("vehicle number and driver name are required")
)

// IllegalTransitionError indicates a requested transition the state machine
// forbids, either because it skips a state or because a concurrent writer
// already advanced the order.
type IllegalTransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("order %s: illegal transition %s -> %s", e.OrderID, e.From, e.To)
}

// Order is the persisted supply order. Every field after creation is mutated
// exclusively through the lifecycle service; orders are never deleted, only
// cancelled.
type Order struct {
	ID                 string
	FranchiseID        string
	Status             Status
	Subtotal           decimal.Decimal
	TaxTotal           decimal.Decimal
	DeliveryFee        decimal.Decimal
	LoyaltyPointsUsed  int
	LoyaltyGiftClaimed bool
	Total              decimal.Decimal
	ShippingAddress    string
	TrackingNumber     string
	VehicleNumber      string
	DriverName         string

	CreatedAt   time.Time
	ConfirmedAt *time.Time
	PaidAt      *time.Time
	PackedAt    *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
}

// Item is an immutable line snapshot captured at checkout, decoupled from
// the live catalog so historical orders stay accurate after price changes.
type Item struct {
	ItemName  string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Repository defines persistence for orders. The transition methods perform
// conditional writes (`WHERE status = <expected>`) and report whether a row
// was actually updated; a false return is the optimistic-concurrency signal
// the service acts on.
type Repository interface {
	Create(ctx context.Context, o *Order, items []Item) error
	Get(ctx context.Context, id string) (*Order, error)
	Items(ctx context.Context, id string) ([]Item, error)
	ListByFranchise(ctx context.Context, franchiseID string) ([]Order, error)

	Confirm(ctx context.Context, id string, fee, total decimal.Decimal, points int) (bool, error)
	MarkPaid(ctx context.Context, id string) (bool, error)
	MarkPacking(ctx context.Context, id string) (bool, error)
	MarkPacked(ctx context.Context, id string) (bool, error)
	MarkShipped(ctx context.Context, id, tracking, vehicle, driver string) (bool, error)
	MarkDelivered(ctx context.Context, id string) (bool, error)
	Cancel(ctx context.Context, id string) (bool, error)
}
