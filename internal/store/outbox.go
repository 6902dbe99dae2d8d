package store

import (
	"context"
	"fmt"
	"time"

	"ecoguard/internal/utils"
	"ecoguard/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const outboxTableName = "notification_outbox"

var outboxColumns = utils.StructTagValues(types.OutboxEvent{})

// OutboxRepository persists notification intents next to the state change
// that produced them. The dispatcher drains pending rows.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) EnqueueEvent(ctx context.Context, event *types.OutboxEvent) error {
	event.ID = utils.NanoID()
	event.Status = types.OutboxStatusPending
	event.Attempts = 0
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query, args, err := psql().
		Insert(outboxTableName).
		SetMap(utils.StructToMap(event)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate enqueue event query: %w", err)
	}

	_, err = conn(ctx, r.pool).Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to enqueue outbox event")
}

// ClaimPendingEvents locks up to limit pending events, oldest first. Rows
// locked by another worker are skipped. Must run inside a transaction for the
// lock to outlive the statement.
func (r *OutboxRepository) ClaimPendingEvents(ctx context.Context, limit uint64) ([]*types.OutboxEvent, error) {
	query, args, err := psql().
		Select(outboxColumns...).
		From(outboxTableName).
		Where(sq.Eq{"status": types.OutboxStatusPending}).
		OrderBy("created_at ASC", "id ASC").
		Limit(limit).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate claim events query: %w", err)
	}

	var events = make([]*types.OutboxEvent, 0)
	if err := pgxscan.Select(ctx, conn(ctx, r.pool), &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}

	return events, nil
}

func (r *OutboxRepository) MarkEventDispatched(ctx context.Context, eventID string) error {
	query, args, err := psql().
		Update(outboxTableName).
		Set("status", types.OutboxStatusDispatched).
		Set("attempts", sq.Expr("attempts + 1")).
		Set("dispatched_at", time.Now()).
		Set("last_error", nil).
		Where(sq.Eq{"id": eventID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate mark dispatched query: %w", err)
	}

	_, err = conn(ctx, r.pool).Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to mark outbox event dispatched")
}

// MarkEventAttemptFailed records a failed attempt. Once attempts reaches
// maxAttempts the event is parked as failed and no longer claimed.
func (r *OutboxRepository) MarkEventAttemptFailed(ctx context.Context, eventID string, cause error, maxAttempts int) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}

	query, args, err := psql().
		Update(outboxTableName).
		Set("attempts", sq.Expr("attempts + 1")).
		Set("last_error", msg).
		Set("status", sq.Expr("CASE WHEN attempts + 1 >= ? THEN ? ELSE status END", maxAttempts, string(types.OutboxStatusFailed))).
		Where(sq.Eq{"id": eventID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate mark failed query: %w", err)
	}

	_, err = conn(ctx, r.pool).Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to mark outbox event attempt failed")
}
