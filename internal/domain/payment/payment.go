// Package payment wraps the third-party payment gateway behind the contract
// the order lifecycle expects: intent creation in minor currency units and
// server-side verification of success callbacks.
package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Providers recorded on transactions.
const (
	ProviderGateway = "gateway"
	// ProviderLoyalty marks a synthetic zero-value transaction recorded when
	// the loyalty discount drives the payable amount to exactly zero and the
	// gateway is bypassed.
	ProviderLoyalty = "loyalty"
)

var (
	// ErrNoTransaction is returned when an order has no payment transaction.
	ErrNoTransaction = errors.New("no payment transaction for order")
	// ErrVerificationFailed is returned when a success callback's signature
	// does not verify against the gateway secret.
	ErrVerificationFailed = errors.New("payment verification failed")
	// ErrFractionalMinorUnits is returned when an amount cannot be expressed
	// as an integer number of minor currency units.
	ErrFractionalMinorUnits = errors.New("amount is not a whole number of minor units")
	// ErrGatewayUnavailable wraps gateway call failures. The order stays in
	// its current status and the request can be retried.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// Transaction is a persisted payment record. The unique order-id constraint
// in storage makes transaction creation the at-most-once point for the
// confirmed -> paid transition.
type Transaction struct {
	ID        string
	OrderID   string
	IntentID  string
	PaymentID string
	Amount    decimal.Decimal
	Provider  string
	Status    string
	CreatedAt time.Time
}

// Repository persists payment transactions.
type Repository interface {
	// Create inserts the transaction unless one already exists for the
	// order. It reports whether a row was actually inserted.
	Create(ctx context.Context, t *Transaction) (bool, error)
	ByOrder(ctx context.Context, orderID string) (*Transaction, error)
}

// Gateway is the external payment gateway boundary.
type Gateway interface {
	// PublicKey returns the short-lived publishable key the client-side
	// checkout needs.
	PublicKey() string
	// CreateIntent registers a pre-authorization for the given amount in
	// minor currency units and returns the gateway's intent id.
	CreateIntent(ctx context.Context, orderID string, amountMinor int64, notes map[string]string) (string, error)
	// Verify checks a success callback's signature server-side.
	Verify(intentID, paymentID, signature string) bool
}

// Session is what the client needs to invoke the gateway checkout.
type Session struct {
	IntentID    string
	AmountMinor int64
	Currency    string
	PublicKey   string
}

// Adapter converts between the core's major-unit decimals and the gateway's
// integer minor units, so nothing outside this package reasons in paise.
type Adapter struct {
	gw       Gateway
	currency string
}

// NewAdapter creates an Adapter for the given gateway and currency code.
func NewAdapter(gw Gateway, currency string) *Adapter {
	return &Adapter{gw: gw, currency: currency}
}

// PublicKey exposes the gateway's publishable key.
func (a *Adapter) PublicKey() string { return a.gw.PublicKey() }

// CreateSession creates a payment intent for the order total. The amount is
// converted to minor units (x100) and must be integral; order totals are
// rounded to 2 decimals upstream, so a failure here means corrupted state.
func (a *Adapter) CreateSession(ctx context.Context, orderID string, amount decimal.Decimal, notes map[string]string) (*Session, error) {
	minor, err := ToMinorUnits(amount)
	if err != nil {
		return nil, err
	}

	intentID, err := a.gw.CreateIntent(ctx, orderID, minor, notes)
	if err != nil {
		return nil, errors.Wrapf(ErrGatewayUnavailable, "create intent: %v", err)
	}

	return &Session{
		IntentID:    intentID,
		AmountMinor: minor,
		Currency:    a.currency,
		PublicKey:   a.gw.PublicKey(),
	}, nil
}

// Verify checks the success callback signature.
func (a *Adapter) Verify(intentID, paymentID, signature string) bool {
	return a.gw.Verify(intentID, paymentID, signature)
}

// ToMinorUnits converts a major-unit amount to integer minor units.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	minor := amount.Mul(decimal.NewFromInt(100))
	if !minor.IsInteger() {
		return 0, ErrFractionalMinorUnits
	}
	return minor.IntPart(), nil
}
