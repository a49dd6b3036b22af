// Package catalog defines the supply item catalog shared by carts and orders.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a supply item a franchise can order. Price and TaxRate
// are snapshotted into the cart at add time; later catalog changes never
// affect carts or historical orders.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	UnitLabel string
	TaxRate   decimal.Decimal
	Category  string
	Active    bool
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
