// Package notification dispatches user-facing notifications on lifecycle
// transitions. Dispatch is fire-and-forget: a failed write is logged and
// never blocks or fails the transition that triggered it.
package notification

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Type enumerates the notification kinds emitted by the order lifecycle.
type Type string

const (
	TypeOrderConfirmed Type = "order_confirmed"
	TypeOrderPaid      Type = "order_paid"
	TypeOrderPacked    Type = "order_packed"
	TypeOrderShipped   Type = "order_shipped"
	TypeOrderDelivered Type = "order_delivered"
	TypeOrderCancelled Type = "order_cancelled"
)

// Notification is a persisted user-facing message.
type Notification struct {
	ID              string
	Type            Type
	Title           string
	Message         string
	TargetFranchise string
	Data            map[string]string
	CreatedAt       time.Time
}

// Repository persists notifications.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListByFranchise(ctx context.Context, franchiseID string) ([]Notification, error)
}

// Dispatcher writes notifications without propagating failures.
type Dispatcher struct {
	repo Repository
}

// NewDispatcher creates a Dispatcher backed by the given repository.
func NewDispatcher(repo Repository) *Dispatcher {
	return &Dispatcher{repo: repo}
}

// Dispatch assigns an id and persists the notification. Errors are logged
// through the context logger and swallowed.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if err := d.repo.Create(ctx, &n); err != nil {
		zctx.From(ctx).Warn("notification dispatch failed",
			zap.String("type", string(n.Type)),
			zap.String("target", n.TargetFranchise),
			zap.Error(err),
		)
	}
}
