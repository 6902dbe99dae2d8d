package store

import (
	"context"
	"fmt"

	"ecoguard/internal/utils"
	"ecoguard/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const profileTableName = "profile"

var profileColumns = utils.StructTagValues(types.Profile{})

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func (r *ProfileRepository) Profile(ctx context.Context, userID string) (*types.Profile, error) {
	query, args, err := psql().
		Select(profileColumns...).
		From(profileTableName).
		Where(sq.Eq{"id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate profile query: %w", err)
	}

	var profile types.Profile
	err = pgxscan.Get(ctx, conn(ctx, r.pool), &profile, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	return &profile, nil
}

func (r *ProfileRepository) UserIDsByRole(ctx context.Context, role types.Role) ([]string, error) {
	query, args, err := psql().
		Select("id").
		From(profileTableName).
		Where(sq.Eq{"role": role}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate profiles-by-role query: %w", err)
	}

	var ids = make([]string, 0)
	if err := pgxscan.Select(ctx, conn(ctx, r.pool), &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch profiles with role %s: %w", role, err)
	}

	return ids, nil
}
