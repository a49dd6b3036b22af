// Package cart implements the per-franchise shopping cart and its pricing
// engine. Cart contents persist in a key-value store between sessions; all
// money calculations use decimal arithmetic and round only at the summary
// level.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrEmptyCart is returned when checkout is attempted on an empty cart.
var ErrEmptyCart = errors.New("cart is empty")

// InvalidLineError indicates a cart line that fails the validity predicate.
type InvalidLineError struct {
	ProductID string
	Reason    string
}

func (e *InvalidLineError) Error() string {
	return "invalid cart line " + e.ProductID + ": " + e.Reason
}

// Item is one cart line. Price and TaxRate are immutable snapshots taken
// from the catalog when the line was added.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	UnitLabel string          `json:"unit_label"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	Category  string          `json:"category"`
}

// Redemption is the member's requested loyalty spend for the next checkout.
// It is validated against the ledger balance when the summary is computed
// and again server-side at order confirmation.
type Redemption struct {
	Points      int  `json:"points"`
	GiftClaimed bool `json:"gift_claimed"`
}

// Store persists cart state per franchise. Implementations must treat
// malformed stored values as absent rather than failing the session.
type Store interface {
	Items(ctx context.Context, franchiseID string) ([]Item, error)
	SaveItems(ctx context.Context, franchiseID string, items []Item) error
	Redemption(ctx context.Context, franchiseID string) (Redemption, error)
	SaveRedemption(ctx context.Context, franchiseID string, r Redemption) error
	Clear(ctx context.Context, franchiseID string) error
}

// Engine mutates cart state through the Store and enforces line invariants.
type Engine struct {
	store Store
}

// NewEngine creates a cart Engine backed by the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Items returns the current cart lines for a franchise.
func (e *Engine) Items(ctx context.Context, franchiseID string) ([]Item, error) {
	return e.store.Items(ctx, franchiseID)
}

// AddItem merges the item into an existing line (quantity += qty) or appends
// a new line. Items missing an ID, name, or positive price are dropped as a
// logged no-op rather than an error, so a stale client cannot poison the cart.
func (e *Engine) AddItem(ctx context.Context, franchiseID string, item Item, qty int) error {
	if item.ProductID == "" || item.Name == "" || !item.Price.IsPositive() {
		zctx.From(ctx).Warn("dropping invalid cart item",
			zap.String("product_id", item.ProductID),
			zap.String("name", item.Name),
		)
		return nil
	}
	if qty < 1 {
		qty = 1
	}

	items, err := e.store.Items(ctx, franchiseID)
	if err != nil {
		return errors.Wrap(err, "load cart")
	}

	merged := false
	for i := range items {
		if items[i].ProductID == item.ProductID {
			items[i].Quantity += qty
			merged = true
			break
		}
	}
	if !merged {
		item.Quantity = qty
		items = append(items, item)
	}

	if err := e.store.SaveItems(ctx, franchiseID, items); err != nil {
		return errors.Wrap(err, "save cart")
	}
	return nil
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less
// removes the line entirely.
func (e *Engine) UpdateQuantity(ctx context.Context, franchiseID, productID string, qty int) error {
	items, err := e.store.Items(ctx, franchiseID)
	if err != nil {
		return errors.Wrap(err, "load cart")
	}

	out := items[:0]
	for _, it := range items {
		if it.ProductID == productID {
			if qty <= 0 {
				continue
			}
			it.Quantity = qty
		}
		out = append(out, it)
	}

	if err := e.store.SaveItems(ctx, franchiseID, out); err != nil {
		return errors.Wrap(err, "save cart")
	}
	return nil
}

// RemoveItem deletes a line from the cart.
func (e *Engine) RemoveItem(ctx context.Context, franchiseID, productID string) error {
	return e.UpdateQuantity(ctx, franchiseID, productID, 0)
}

// Clear discards the cart and any pending redemption request.
func (e *Engine) Clear(ctx context.Context, franchiseID string) error {
	if err := e.store.Clear(ctx, franchiseID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}

// SetRedemption records the requested loyalty spend for the next checkout.
// Negative point counts are clamped to zero.
func (e *Engine) SetRedemption(ctx context.Context, franchiseID string, r Redemption) error {
	if r.Points < 0 {
		r.Points = 0
	}
	if err := e.store.SaveRedemption(ctx, franchiseID, r); err != nil {
		return errors.Wrap(err, "save redemption")
	}
	return nil
}

// RequestedRedemption returns the pending redemption request.
func (e *Engine) RequestedRedemption(ctx context.Context, franchiseID string) (Redemption, error) {
	return e.store.Redemption(ctx, franchiseID)
}

// Validate applies the checkout validity predicate: the cart must be
// non-empty and every line must carry a positive quantity and price.
func Validate(items []Item) error {
	if len(items) == 0 {
		return ErrEmptyCart
	}
	for _, it := range items {
		if it.Quantity < 1 {
			return &InvalidLineError{ProductID: it.ProductID, Reason: "non-positive quantity"}
		}
		if !it.Price.IsPositive() {
			return &InvalidLineError{ProductID: it.ProductID, Reason: "non-positive price"}
		}
	}
	return nil
}
