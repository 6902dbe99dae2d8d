package notify

import (
	"context"
	"time"

	"ecoguard/internal/push"
	"ecoguard/pkg/types"

	"github.com/sirupsen/logrus"
)

type OutboxStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ClaimPendingEvents(ctx context.Context, limit uint64) ([]*types.OutboxEvent, error)
	MarkEventDispatched(ctx context.Context, eventID string) error
	MarkEventAttemptFailed(ctx context.Context, eventID string, cause error, maxAttempts int) error
}

type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    uint64
	MaxAttempts  int
}

// Dispatcher drains the notification outbox. Rows and the dispatched mark
// commit together; pushes go out only after the commit.
type Dispatcher struct {
	outbox OutboxStore
	fanout *Fanout
	config DispatcherConfig
	logger logrus.FieldLogger
}

func NewDispatcher(outbox OutboxStore, fanout *Fanout, config DispatcherConfig, logger logrus.FieldLogger) *Dispatcher {
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 50
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}

	return &Dispatcher{
		outbox: outbox,
		fanout: fanout,
		config: config,
		logger: logger.WithField("component", "dispatcher"),
	}
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// another one.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.WithField("poll_interval", d.config.PollInterval.String()).Info("outbox dispatcher started")

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		for {
			n, err := d.ProcessBatch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					break
				}
				d.logger.WithError(err).Error("failed to process outbox batch")
				break
			}
			if uint64(n) < d.config.BatchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessBatch claims and handles one batch of pending events and returns how
// many were claimed.
func (d *Dispatcher) ProcessBatch(ctx context.Context) (int, error) {
	var claimed int
	var outgoing []push.Message

	err := d.outbox.WithTx(ctx, func(ctx context.Context) error {
		outgoing = nil

		events, err := d.outbox.ClaimPendingEvents(ctx, d.config.BatchSize)
		if err != nil {
			return err
		}
		claimed = len(events)

		for _, event := range events {
			messages, err := d.handle(ctx, event)
			if err != nil {
				d.logger.WithError(err).WithFields(logrus.Fields{
					"event_id": event.ID,
					"kind":     event.Kind,
					"attempt":  event.Attempts + 1,
				}).Warn("outbox event attempt failed")

				if err := d.outbox.MarkEventAttemptFailed(ctx, event.ID, err, d.config.MaxAttempts); err != nil {
					return err
				}
				continue
			}
			outgoing = append(outgoing, messages...)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	d.fanout.Push(ctx, outgoing)
	return claimed, nil
}

func (d *Dispatcher) handle(ctx context.Context, event *types.OutboxEvent) ([]push.Message, error) {
	var messages []push.Message

	err := d.outbox.WithTx(ctx, func(ctx context.Context) error {
		userIDs, msg, err := d.fanout.Resolve(ctx, event)
		if err != nil {
			return err
		}

		recipients, err := d.fanout.Recipients(ctx, userIDs)
		if err != nil {
			return err
		}

		messages, err = d.fanout.Persist(ctx, recipients, msg)
		if err != nil {
			return err
		}

		return d.outbox.MarkEventDispatched(ctx, event.ID)
	})
	if err != nil {
		return nil, err
	}

	d.logger.WithFields(logrus.Fields{
		"event_id": event.ID,
		"kind":     event.Kind,
		"pushes":   len(messages),
	}).Info("outbox event dispatched")

	return messages, nil
}
