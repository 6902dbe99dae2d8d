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

const notificationTableName = "notifications"

var notificationColumns = utils.StructTagValues(types.Notification{})

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// CreateNotifications inserts all rows in one statement.
func (r *NotificationRepository) CreateNotifications(ctx context.Context, notifications []*types.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	now := time.Now()

	builder := psql().
		Insert(notificationTableName).Columns(notificationColumns...)

	for _, n := range notifications {
		n.ID = utils.NanoID()
		n.CreatedAt = now
		builder = builder.Values(n.ID, n.UserID, n.Title, n.Message, n.ReferenceTable, n.ReferenceRowID, n.IsRead, n.CreatedAt)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert notifications query: %w", err)
	}

	_, err = conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert notifications: %w", err)
	}

	return nil
}

func (r *NotificationRepository) NotificationsByUser(ctx context.Context, userID string, unreadOnly bool, limit uint64) ([]*types.Notification, error) {
	builder := psql().
		Select(notificationColumns...).
		From(notificationTableName).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC")
	if unreadOnly {
		builder = builder.Where(sq.Eq{"is_read": false})
	}
	if limit > 0 {
		builder = builder.Limit(limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate notifications query: %w", err)
	}

	var out = make([]*types.Notification, 0)
	if err := pgxscan.Select(ctx, conn(ctx, r.pool), &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}

	return out, nil
}

func (r *NotificationRepository) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	query, args, err := psql().
		Update(notificationTableName).
		Set("is_read", true).
		Where(sq.Eq{"id": notificationID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate mark read query: %w", err)
	}

	tag, err := conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotificationNotFound
	}

	return nil
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	query, args, err := psql().
		Select("COUNT(*)").
		From(notificationTableName).
		Where(sq.Eq{"user_id": userID, "is_read": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate unread count query: %w", err)
	}

	var count int
	if err := pgxscan.Get(ctx, conn(ctx, r.pool), &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return count, nil
}
