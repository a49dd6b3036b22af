package order

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/franchiseos/supply-api/internal/domain/cart"
	"github.com/franchiseos/supply-api/internal/domain/delivery"
	"github.com/franchiseos/supply-api/internal/domain/franchise"
	"github.com/franchiseos/supply-api/internal/domain/loyalty"
	"github.com/franchiseos/supply-api/internal/domain/notification"
	"github.com/franchiseos/supply-api/internal/domain/packing"
	"github.com/franchiseos/supply-api/internal/domain/payment"
)

// PaymentSessionResult is the outcome of starting a payment. Either a
// gateway session was created, or the order was settled directly because the
// payable amount was exactly zero.
type PaymentSessionResult struct {
	Session *payment.Session
	Settled bool
}

// Deps bundles everything the lifecycle service needs.
type Deps struct {
	Orders     Repository
	Carts      *cart.Engine
	Franchises franchise.Repository
	Ledger     *loyalty.Ledger
	Fees       *delivery.Resolver
	Payments   payment.Repository
	PayAdapter *payment.Adapter
	Packing    packing.Repository
	Notifier   *notification.Dispatcher

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Service drives the order lifecycle. All status writes go through
// conditional repository updates so no caller can move an order backward or
// skip a state, regardless of interleaving.
type Service struct {
	orders     Repository
	carts      *cart.Engine
	franchises franchise.Repository
	ledger     *loyalty.Ledger
	fees       *delivery.Resolver
	payments   payment.Repository
	adapter    *payment.Adapter
	packing    packing.Repository
	notifier   *notification.Dispatcher

	tracer      trace.Tracer
	transitions metric.Int64Counter
}

// NewService wires the lifecycle service.
func NewService(d Deps) (*Service, error) {
	transitions, err := d.MeterProvider.Meter("order").Int64Counter("order_transitions_total",
		metric.WithDescription("Completed order status transitions"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create transitions counter")
	}

	return &Service{
		orders:      d.Orders,
		carts:       d.Carts,
		franchises:  d.Franchises,
		ledger:      d.Ledger,
		fees:        d.Fees,
		payments:    d.Payments,
		adapter:     d.PayAdapter,
		packing:     d.Packing,
		notifier:    d.Notifier,
		tracer:      d.TracerProvider.Tracer("order"),
		transitions: transitions,
	}, nil
}

func (s *Service) recordTransition(ctx context.Context, to Status) {
	s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("to", string(to))))
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.Get(ctx, id)
}

// Items returns the immutable line snapshots of an order.
func (s *Service) Items(ctx context.Context, id string) ([]Item, error) {
	return s.orders.Items(ctx, id)
}

// ListByFranchise returns a franchise's orders, newest first.
func (s *Service) ListByFranchise(ctx context.Context, franchiseID string) ([]Order, error) {
	return s.orders.ListByFranchise(ctx, franchiseID)
}

// Checkout turns a valid cart into a pending order: item snapshots are
// captured, the redemption request is recorded, and the cart is cleared.
// The delivery fee and loyalty discount are not final until confirmation.
func (s *Service) Checkout(ctx context.Context, franchiseID, shippingAddress string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "Checkout")
	defer span.End()

	items, err := s.carts.Items(ctx, franchiseID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if err := cart.Validate(items); err != nil {
		return nil, err
	}

	redemption, err := s.carts.RequestedRedemption(ctx, franchiseID)
	if err != nil {
		return nil, errors.Wrap(err, "load redemption request")
	}
	if redemption.GiftClaimed {
		eligible, err := s.ledger.GiftEligible(ctx, franchiseID)
		if err != nil {
			return nil, err
		}
		if !eligible {
			zctx.From(ctx).Info("dropping ineligible gift claim",
				zap.String("franchise_id", franchiseID))
			redemption.GiftClaimed = false
		}
	}

	summary := cart.Summarize(items, cart.SummaryInput{})

	o := &Order{
		ID:                 uuid.New().String(),
		FranchiseID:        franchiseID,
		Status:             StatusPending,
		Subtotal:           summary.Subtotal,
		TaxTotal:           summary.TaxTotal,
		DeliveryFee:        decimal.Zero,
		LoyaltyPointsUsed:  redemption.Points,
		LoyaltyGiftClaimed: redemption.GiftClaimed,
		Total:              summary.GrandTotal,
		ShippingAddress:    shippingAddress,
	}

	snapshots := make([]Item, len(items))
	for i, it := range items {
		line := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		snapshots[i] = Item{
			ItemName:  it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
			LineTotal: line.Round(2),
		}
	}

	if err := s.orders.Create(ctx, o, snapshots); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	s.recordTransition(ctx, StatusPending)

	if err := s.carts.Clear(ctx, franchiseID); err != nil {
		// The order exists; a stale cart is an annoyance, not a failure.
		zctx.From(ctx).Warn("clear cart after checkout failed",
			zap.String("franchise_id", franchiseID), zap.Error(err))
	}

	return o, nil
}

// SuggestFee runs the delivery fee resolver for an order. The result is
// advisory; the administrator confirms the authoritative fee.
func (s *Service) SuggestFee(ctx context.Context, orderID string) (decimal.Decimal, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	fr, err := s.franchises.Get(ctx, o.FranchiseID)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "load franchise")
	}
	return s.fees.Resolve(ctx, fr.Location, o.Subtotal, o.LoyaltyGiftClaimed)
}

// Confirm applies the administrator's delivery fee to a pending order,
// re-validates the loyalty redemption against the current balance, stamps
// the final total, and notifies the franchise.
func (s *Service) Confirm(ctx context.Context, orderID string, fee decimal.Decimal) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "Confirm")
	defer span.End()

	if fee.IsNegative() {
		return nil, ErrNegativeFee
	}

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, &IllegalTransitionError{OrderID: orderID, From: o.Status, To: StatusConfirmed}
	}

	redemption, err := s.ledger.ValidateRedemption(ctx, o.FranchiseID, o.LoyaltyPointsUsed, o.Subtotal)
	if err != nil {
		return nil, err
	}

	total := o.Subtotal.Add(o.TaxTotal).Add(fee).Sub(redemption.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = total.Round(2)

	ok, err := s.orders.Confirm(ctx, orderID, fee, total, redemption.Points)
	if err != nil {
		return nil, errors.Wrap(err, "confirm order")
	}
	if !ok {
		return nil, s.staleTransition(ctx, orderID, StatusConfirmed)
	}
	s.recordTransition(ctx, StatusConfirmed)

	s.notifier.Dispatch(ctx, notification.Notification{
		Type:            notification.TypeOrderConfirmed,
		Title:           "Order confirmed",
		Message:         "Your supply order has been confirmed. Total: " + total.StringFixed(2),
		TargetFranchise: o.FranchiseID,
		Data:            map[string]string{"order_id": orderID},
	})

	return s.orders.Get(ctx, orderID)
}

// StartPayment creates a gateway payment session for a confirmed order. When
// the loyalty discount drove the payable amount to exactly zero, the gateway
// is bypassed and the order settles immediately through the same idempotency
// guard as a real payment.
func (s *Service) StartPayment(ctx context.Context, orderID string) (*PaymentSessionResult, error) {
	ctx, span := s.tracer.Start(ctx, "StartPayment")
	defer span.End()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusConfirmed {
		return nil, &IllegalTransitionError{OrderID: orderID, From: o.Status, To: StatusPaid}
	}

	if o.Total.IsZero() {
		if err := s.applyPayment(ctx, o, &payment.Transaction{
			ID:       uuid.New().String(),
			OrderID:  orderID,
			Amount:   decimal.Zero,
			Provider: payment.ProviderLoyalty,
			Status:   "completed",
		}); err != nil {
			return nil, err
		}
		return &PaymentSessionResult{Settled: true}, nil
	}

	session, err := s.adapter.CreateSession(ctx, orderID, o.Total, map[string]string{
		"franchise_id": o.FranchiseID,
	})
	if err != nil {
		return nil, err
	}
	return &PaymentSessionResult{Session: session}, nil
}

// ConfirmPayment handles the gateway success callback. The signature is
// verified server-side before anything is written, and the whole operation
// is idempotent: replaying a callback for an already-settled order is a
// no-op, never a duplicate transaction or notification.
func (s *Service) ConfirmPayment(ctx context.Context, orderID, intentID, paymentID, signature string) error {
	ctx, span := s.tracer.Start(ctx, "ConfirmPayment")
	defer span.End()

	// At-most-once apply: an existing completed transaction means this
	// callback already happened.
	if _, err := s.payments.ByOrder(ctx, orderID); err == nil {
		zctx.From(ctx).Info("replayed payment callback ignored",
			zap.String("order_id", orderID), zap.String("payment_id", paymentID))
		return nil
	} else if !errors.Is(err, payment.ErrNoTransaction) {
		return errors.Wrap(err, "check existing transaction")
	}

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status != StatusConfirmed {
		return &IllegalTransitionError{OrderID: orderID, From: o.Status, To: StatusPaid}
	}

	if !s.adapter.Verify(intentID, paymentID, signature) {
		return payment.ErrVerificationFailed
	}

	return s.applyPayment(ctx, o, &payment.Transaction{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		IntentID:  intentID,
		PaymentID: paymentID,
		Amount:    o.Total,
		Provider:  payment.ProviderGateway,
		Status:    "completed",
	})
}

// applyPayment records the transaction and advances confirmed -> paid. The
// unique order-id constraint on transactions and the conditional status
// update together make this safe under concurrent replays.
func (s *Service) applyPayment(ctx context.Context, o *Order, txn *payment.Transaction) error {
	inserted, err := s.payments.Create(ctx, txn)
	if err != nil {
		return errors.Wrap(err, "record payment")
	}
	if !inserted {
		// A concurrent callback won the race; nothing more to do.
		return nil
	}

	ok, err := s.orders.MarkPaid(ctx, o.ID)
	if err != nil {
		return errors.Wrap(err, "mark paid")
	}
	if !ok {
		return s.staleTransition(ctx, o.ID, StatusPaid)
	}
	s.recordTransition(ctx, StatusPaid)

	// Terminal payment state reached: commit the loyalty redemption onto the
	// ledger. A deduction failure is logged for reconciliation, not bounced
	// back to the gateway.
	if o.LoyaltyPointsUsed > 0 || o.LoyaltyGiftClaimed {
		if err := s.ledger.Commit(ctx, o.FranchiseID, o.LoyaltyPointsUsed, o.LoyaltyGiftClaimed); err != nil {
			zctx.From(ctx).Error("loyalty deduction failed after payment",
				zap.String("order_id", o.ID), zap.Error(err))
		}
	}

	s.notifier.Dispatch(ctx, notification.Notification{
		Type:            notification.TypeOrderPaid,
		Title:           "Payment received",
		Message:         "Payment of " + txn.Amount.StringFixed(2) + " received for your order.",
		TargetFranchise: o.FranchiseID,
		Data:            map[string]string{"order_id": o.ID, "payment_id": txn.PaymentID},
	})

	return nil
}

// OpenPacking is the explicit admin action that moves a paid order into
// packing and lazily creates the checklist from the order's item snapshots.
// Reopening an order already in packing returns a fresh session (with a
// cleared completion latch) without touching the status.
func (s *Service) OpenPacking(ctx context.Context, orderID string) (*packing.Session, error) {
	ctx, span := s.tracer.Start(ctx, "OpenPacking")
	defer span.End()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch o.Status {
	case StatusPaid:
		ok, err := s.orders.MarkPacking(ctx, orderID)
		if err != nil {
			return nil, errors.Wrap(err, "mark packing")
		}
		if !ok {
			// Someone else opened packing concurrently; proceed if the order
			// is now in packing, otherwise report the stale transition.
			current, err := s.orders.Get(ctx, orderID)
			if err != nil {
				return nil, err
			}
			if current.Status != StatusPacking {
				return nil, &IllegalTransitionError{OrderID: orderID, From: current.Status, To: StatusPacking}
			}
		} else {
			s.recordTransition(ctx, StatusPacking)
		}
	case StatusPacking:
		// Reopen: fresh session, latch reset.
	default:
		return nil, &IllegalTransitionError{OrderID: orderID, From: o.Status, To: StatusPacking}
	}

	items, err := s.orders.Items(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "load order items")
	}
	entries := make([]packing.Entry, len(items))
	for i, it := range items {
		entries[i] = packing.Entry{OrderID: orderID, ItemName: it.ItemName, Quantity: it.Quantity}
	}
	if err := s.packing.CreateEntries(ctx, entries); err != nil {
		return nil, errors.Wrap(err, "create checklist entries")
	}

	return packing.NewSession(orderID, s.packing, func(ctx context.Context) error {
		return s.advancePacked(ctx, orderID)
	}), nil
}

// advancePacked moves packing -> packed when the checklist completes. A
// duplicate fire (e.g. from a reopened checklist) resolves as a no-op
// because the conditional update finds the order already advanced.
func (s *Service) advancePacked(ctx context.Context, orderID string) error {
	ok, err := s.orders.MarkPacked(ctx, orderID)
	if err != nil {
		return errors.Wrap(err, "mark packed")
	}
	if !ok {
		current, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if forwardSeq[current.Status] >= forwardSeq[StatusPacked] {
			return nil
		}
		return &IllegalTransitionError{OrderID: orderID, From: current.Status, To: StatusPacked}
	}
	s.recordTransition(ctx, StatusPacked)

	o, err := s.orders.Get(ctx, orderID)
	if err == nil {
		s.notifier.Dispatch(ctx, notification.Notification{
			Type:            notification.TypeOrderPacked,
			Title:           "Order packed",
			Message:         "All items in your order have been packed.",
			TargetFranchise: o.FranchiseID,
			Data:            map[string]string{"order_id": orderID},
		})
	}
	return nil
}

// Ship records carrier details, generates a tracking number, and moves a
// packed order to shipped.
func (s *Service) Ship(ctx context.Context, orderID, vehicleNumber, driverName string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "Ship")
	defer span.End()

	if strings.TrimSpace(vehicleNumber) == "" || strings.TrimSpace(driverName) == "" {
		return nil, ErrMissingCarrier
	}

	tracking := newTrackingNumber()
	ok, err := s.orders.MarkShipped(ctx, orderID, tracking, vehicleNumber, driverName)
	if err != nil {
		return nil, errors.Wrap(err, "mark shipped")
	}
	if !ok {
		return nil, s.staleTransition(ctx, orderID, StatusShipped)
	}
	s.recordTransition(ctx, StatusShipped)

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.notifier.Dispatch(ctx, notification.Notification{
		Type:            notification.TypeOrderShipped,
		Title:           "Order shipped",
		Message:         "Your order is on its way. Tracking number: " + tracking,
		TargetFranchise: o.FranchiseID,
		Data:            map[string]string{"order_id": orderID, "tracking_number": tracking},
	})
	return o, nil
}

// Deliver stamps a shipped order as delivered.
func (s *Service) Deliver(ctx context.Context, orderID string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "Deliver")
	defer span.End()

	ok, err := s.orders.MarkDelivered(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "mark delivered")
	}
	if !ok {
		return nil, s.staleTransition(ctx, orderID, StatusDelivered)
	}
	s.recordTransition(ctx, StatusDelivered)

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.notifier.Dispatch(ctx, notification.Notification{
		Type:            notification.TypeOrderDelivered,
		Title:           "Order delivered",
		Message:         "Your order has been delivered.",
		TargetFranchise: o.FranchiseID,
		Data:            map[string]string{"order_id": orderID},
	})
	return o, nil
}

// CancelOrder cancels any order that has not reached a terminal state.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "CancelOrder")
	defer span.End()

	ok, err := s.orders.Cancel(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "cancel order")
	}
	if !ok {
		return nil, s.staleTransition(ctx, orderID, StatusCancelled)
	}
	s.recordTransition(ctx, StatusCancelled)

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.notifier.Dispatch(ctx, notification.Notification{
		Type:            notification.TypeOrderCancelled,
		Title:           "Order cancelled",
		Message:         "Your order has been cancelled.",
		TargetFranchise: o.FranchiseID,
		Data:            map[string]string{"order_id": orderID},
	})
	return o, nil
}

// staleTransition turns a zero-row conditional update into a typed error
// carrying the status a concurrent writer left behind.
func (s *Service) staleTransition(ctx context.Context, orderID string, to Status) error {
	current, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	return &IllegalTransitionError{OrderID: orderID, From: current.Status, To: to}
}

// newTrackingNumber generates a carrier-agnostic tracking code.
func newTrackingNumber() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "FS-" + id[:12]
}
