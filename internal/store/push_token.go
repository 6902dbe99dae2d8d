package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ecoguard/internal/utils"
	"ecoguard/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pushTokenTableName = "expo_push_tokens"

var pushTokenColumns = utils.StructTagValues(types.PushToken{})

type PushTokenRepository struct {
	pool *pgxpool.Pool
}

func NewPushTokenRepository(pool *pgxpool.Pool) *PushTokenRepository {
	return &PushTokenRepository{pool: pool}
}

func (r *PushTokenRepository) TokensByUsers(ctx context.Context, userIDs []string) ([]*types.PushToken, error) {
	if len(userIDs) == 0 {
		return []*types.PushToken{}, nil
	}

	query, args, err := psql().
		Select(pushTokenColumns...).
		From(pushTokenTableName).
		Where(sq.Eq{"user_id": userIDs}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate push tokens query: %w", err)
	}

	var tokens = make([]*types.PushToken, 0)
	if err := pgxscan.Select(ctx, conn(ctx, r.pool), &tokens, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch push tokens: %w", err)
	}

	return tokens, nil
}

// RegisterToken stores a device token for the user. Re-registering the same
// token moves it to the new user.
func (r *PushTokenRepository) RegisterToken(ctx context.Context, userID, token string) error {
	query, args, err := psql().
		Insert(pushTokenTableName).
		Columns("id", "user_id", "token", "created_at").
		Values(utils.NanoID(), userID, strings.TrimSpace(token), time.Now()).
		Suffix("ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate register token query: %w", err)
	}

	_, err = conn(ctx, r.pool).Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to register push token")
}
