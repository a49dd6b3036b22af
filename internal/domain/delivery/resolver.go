// Package delivery resolves the delivery fee for an order from the fee
// schedule registered for a franchise location. The resolver is advisory:
// the authoritative fee is whatever the administrator confirms on the order.
package delivery

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNoSchedule is returned by repositories when a location has no active
// fee schedule.
var ErrNoSchedule = errors.New("no fee schedule for location")

// Schedule is an active fee schedule for a location: a flat fee waived once
// the order subtotal reaches the free-delivery threshold.
type Schedule struct {
	ID            string
	Location      string
	FlatFee       decimal.Decimal
	FreeThreshold decimal.Decimal
}

// Repository looks up active fee schedules.
type Repository interface {
	ActiveByLocation(ctx context.Context, location string) (*Schedule, error)
}

// Resolver computes the advisory delivery fee for an order.
type Resolver struct {
	repo Repository

	defaultFee       decimal.Decimal
	defaultThreshold decimal.Decimal
}

// NewResolver creates a Resolver. The default fee and threshold apply to
// locations without an active schedule.
func NewResolver(repo Repository, defaultFee, defaultThreshold decimal.Decimal) *Resolver {
	return &Resolver{
		repo:             repo,
		defaultFee:       defaultFee,
		defaultThreshold: defaultThreshold,
	}
}

// Resolve returns the fee for an order. A claimed free-delivery loyalty gift
// forces the fee to zero regardless of schedule; otherwise the schedule's
// threshold (or the default) decides between the flat fee and free delivery.
func (r *Resolver) Resolve(ctx context.Context, location string, subtotal decimal.Decimal, giftClaimed bool) (decimal.Decimal, error) {
	if giftClaimed {
		return decimal.Zero, nil
	}

	fee := r.defaultFee
	threshold := r.defaultThreshold

	sched, err := r.repo.ActiveByLocation(ctx, location)
	switch {
	case err == nil:
		fee = sched.FlatFee
		threshold = sched.FreeThreshold
	case errors.Is(err, ErrNoSchedule):
		// fall back to defaults
	default:
		return decimal.Zero, errors.Wrap(err, "lookup fee schedule")
	}

	if subtotal.GreaterThanOrEqual(threshold) {
		return decimal.Zero, nil
	}
	return fee, nil
}
