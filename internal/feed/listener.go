package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Listener holds one pool connection in LISTEN mode and hands every decoded
// delta to handle. It reconnects until its context is cancelled.
type Listener struct {
	pool    *pgxpool.Pool
	channel string
	handle  func(Delta)
	logger  logrus.FieldLogger
}

func NewListener(pool *pgxpool.Pool, channel string, handle func(Delta), logger logrus.FieldLogger) *Listener {
	return &Listener{
		pool:    pool,
		channel: channel,
		handle:  handle,
		logger:  logger.WithFields(logrus.Fields{"component": "feed_listener", "channel": channel}),
	}
}

func (l *Listener) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}

		l.logger.WithError(err).WithField("retry_in", backoff.String()).Warn("change feed listener disconnected")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.channel, err)
	}
	l.logger.Info("listening for report changes")

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("failed waiting for notification: %w", err)
		}

		delta, err := ParseDelta(notification.Payload)
		if err != nil {
			l.logger.WithError(err).Warn("dropping malformed change notification")
			continue
		}
		l.handle(delta)
	}
}
