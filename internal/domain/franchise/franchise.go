// Package franchise holds the tenant identity attached to carts and orders.
package franchise

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a franchise does not exist.
var ErrNotFound = errors.New("franchise not found")

// Franchise is one tenant location of the network. Location drives the
// delivery fee schedule lookup.
type Franchise struct {
	ID       string
	Name     string
	Location string
}

// Repository defines read operations for franchises.
type Repository interface {
	Get(ctx context.Context, id string) (*Franchise, error)
}
