package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/franchiseos/supply-api/internal/domain/notification"
)

const (
	createNotificationSQL = `INSERT INTO notifications (id, type, title, message, target_franchise, data)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`

	listNotificationsSQL = `SELECT id, type, title, message, COALESCE(target_franchise, ''), data, created_at
		FROM notifications
		WHERE target_franchise = $1 OR target_franchise IS NULL
		ORDER BY created_at DESC
		LIMIT 100`
)

var _ notification.Repository = (*NotificationRepository)(nil)

// NotificationRepository implements notification.Repository backed by
// PostgreSQL. Inserts fan out over LISTEN/NOTIFY through a table trigger.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository returns a NotificationRepository that uses the
// given pool.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create persists a notification. An empty target franchise stores as NULL,
// which reads as a broadcast.
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("marshaling notification data: %w", err)
	}

	_, err = r.pool.Exec(ctx, createNotificationSQL,
		n.ID, n.Type, n.Title, n.Message, n.TargetFranchise, data,
	)
	if err != nil {
		return fmt.Errorf("creating notification %q: %w", n.ID, err)
	}
	return nil
}

// ListByFranchise returns the franchise's notifications plus broadcasts,
// newest first.
func (r *NotificationRepository) ListByFranchise(ctx context.Context, franchiseID string) ([]notification.Notification, error) {
	rows, err := r.pool.Query(ctx, listNotificationsSQL, franchiseID)
	if err != nil {
		return nil, fmt.Errorf("listing notifications for %q: %w", franchiseID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (notification.Notification, error) {
		var (
			n    notification.Notification
			data []byte
		)
		if err := row.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &n.TargetFranchise, &data, &n.CreatedAt); err != nil {
			return n, err
		}
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return n, fmt.Errorf("unmarshaling notification data: %w", err)
		}
		return n, nil
	})
}
