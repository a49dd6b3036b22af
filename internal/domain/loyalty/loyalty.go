// Package loyalty exposes a read/validate façade over the loyalty point
// ledger. The single write path, Commit, is invoked by the order lifecycle
// once an order reaches a terminal payment state.
package loyalty

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/franchiseos/supply-api/internal/domain/cart"
)

// ErrNoAccount is returned when a franchise has no loyalty account.
var ErrNoAccount = errors.New("loyalty account not found")

// Account is the ledger state for one franchise.
type Account struct {
	FranchiseID       string
	Balance           int
	FreeDeliveryGifts int
}

// Redemption is a validated point spend: the points to deduct and the
// monetary discount they are worth. It is transient until the order
// lifecycle commits it onto the order record.
type Redemption struct {
	Points   int
	Discount decimal.Decimal
}

// Repository provides ledger reads and the commit hook used by the order
// lifecycle once payment completes.
type Repository interface {
	Account(ctx context.Context, franchiseID string) (*Account, error)
	// Deduct atomically removes points (and optionally one free-delivery
	// gift) from the account. Called by the lifecycle, not by this package.
	Deduct(ctx context.Context, franchiseID string, points int, useGift bool) error
}

// Ledger validates redemption requests against current balances.
type Ledger struct {
	repo Repository
}

// NewLedger creates a Ledger backed by the given repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// Balance returns the current point balance. A missing account reads as a
// zero balance rather than an error, since new franchises start at zero.
func (l *Ledger) Balance(ctx context.Context, franchiseID string) (int, error) {
	acct, err := l.repo.Account(ctx, franchiseID)
	if err != nil {
		if errors.Is(err, ErrNoAccount) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "load account")
	}
	return acct.Balance, nil
}

// GiftEligible reports whether the franchise can claim a free-delivery gift.
func (l *Ledger) GiftEligible(ctx context.Context, franchiseID string) (bool, error) {
	acct, err := l.repo.Account(ctx, franchiseID)
	if err != nil {
		if errors.Is(err, ErrNoAccount) {
			return false, nil
		}
		return false, errors.Wrap(err, "load account")
	}
	return acct.FreeDeliveryGifts > 0, nil
}

// Commit deducts a settled redemption from the ledger: the points spent and,
// when claimed, one free-delivery gift.
func (l *Ledger) Commit(ctx context.Context, franchiseID string, points int, useGift bool) error {
	if err := l.repo.Deduct(ctx, franchiseID, points, useGift); err != nil {
		return errors.Wrap(err, "deduct from ledger")
	}
	return nil
}

// ValidateRedemption clamps a requested point spend to what the ledger and
// the order value allow: min(requested, balance, subtotal). The result is
// never an error; an over-ask simply redeems less.
func (l *Ledger) ValidateRedemption(ctx context.Context, franchiseID string, requested int, subtotal decimal.Decimal) (Redemption, error) {
	balance, err := l.Balance(ctx, franchiseID)
	if err != nil {
		return Redemption{}, err
	}

	clamped := cart.ClampDiscount(requested, balance, subtotal)

	// Floor to whole points so the rupees discounted always equal the
	// points deducted, even when a fractional subtotal did the clamping.
	points := int(clamped.IntPart())

	return Redemption{
		Points:   points,
		Discount: decimal.NewFromInt(int64(points)),
	}, nil
}
