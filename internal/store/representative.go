package store

import (
	"context"
	"fmt"

	"ecoguard/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

func repTable(t types.CandidateType) (table, entityColumn string) {
	if t == types.CandidateTypeAgency {
		return "agency_reps", "agency_id"
	}
	return "org_reps", "org_id"
}

type RepresentativeRepository struct {
	pool *pgxpool.Pool
}

func NewRepresentativeRepository(pool *pgxpool.Pool) *RepresentativeRepository {
	return &RepresentativeRepository{pool: pool}
}

// ApprovedRepUserIDs returns the user ids of approved representatives of an
// organization or agency.
func (r *RepresentativeRepository) ApprovedRepUserIDs(ctx context.Context, candidateType types.CandidateType, entityID string) ([]string, error) {
	table, entityColumn := repTable(candidateType)

	query, args, err := psql().
		Select("DISTINCT user_id").
		From(table).
		Where(sq.Eq{entityColumn: entityID, "is_approved": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate reps query: %w", err)
	}

	var userIDs = make([]string, 0)
	if err := pgxscan.Select(ctx, conn(ctx, r.pool), &userIDs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", table, err)
	}

	return userIDs, nil
}

// RepEntityForUser returns the organization or agency id the user is an
// approved representative of, or "" when there is none.
func (r *RepresentativeRepository) RepEntityForUser(ctx context.Context, candidateType types.CandidateType, userID string) (string, error) {
	table, entityColumn := repTable(candidateType)

	query, args, err := psql().
		Select(entityColumn).
		From(table).
		Where(sq.Eq{"user_id": userID, "is_approved": true}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to generate rep entity query: %w", err)
	}

	var entityID string
	err = pgxscan.Get(ctx, conn(ctx, r.pool), &entityID, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to fetch rep entity from %s: %w", table, err)
	}

	return entityID, nil
}
