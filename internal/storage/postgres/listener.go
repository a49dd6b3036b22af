package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Channels the schema triggers publish on.
const (
	ChannelOrderEvents        = "order_events"
	ChannelNotificationEvents = "notification_events"
)

// Event is one pg_notify payload received from a subscribed channel.
type Event struct {
	Channel string
	Payload string
}

// Listener subscribes to the change feed channels and forwards payloads to a
// handler. Dashboards use the feed as a poke to re-fetch, so payloads stay
// small and lossy delivery is acceptable.
type Listener struct {
	pool     *pgxpool.Pool
	channels []string
	handler  func(Event)
}

// NewListener creates a Listener for the given channels.
func NewListener(pool *pgxpool.Pool, handler func(Event), channels ...string) *Listener {
	return &Listener{pool: pool, channels: channels, handler: handler}
}

// Run blocks, receiving notifications until the context is cancelled. A
// dropped connection triggers a resubscribe after a short backoff;
// notifications sent in that window are lost, which the re-fetch model
// tolerates.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if err := l.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			zctx.From(ctx).Warn("change feed connection lost", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire listen connection")
	}
	// Hijack removes the connection from the pool: a connection holding
	// LISTEN subscriptions must never be handed to another caller.
	raw := conn.Hijack()
	defer raw.Close(context.WithoutCancel(ctx))

	for _, ch := range l.channels {
		if _, err := raw.Exec(ctx, "LISTEN "+ch); err != nil {
			return errors.Wrapf(err, "listen on %q", ch)
		}
	}

	for {
		n, err := raw.WaitForNotification(ctx)
		if err != nil {
			return errors.Wrap(err, "wait for notification")
		}
		l.handler(Event{Channel: n.Channel, Payload: n.Payload})
	}
}
