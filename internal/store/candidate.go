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

var candidateColumns = utils.StructTagValues(types.RoutingCandidate{})

func candidateTable(t types.CandidateType) string {
	if t == types.CandidateTypeAgency {
		return "agencies"
	}
	return "organizations"
}

// CandidateRepository reads and syncs the organizations and agencies tables.
type CandidateRepository struct {
	pool *pgxpool.Pool
}

func NewCandidateRepository(pool *pgxpool.Pool) *CandidateRepository {
	return &CandidateRepository{pool: pool}
}

func (r *CandidateRepository) Candidate(ctx context.Context, candidateType types.CandidateType, id string) (*types.RoutingCandidate, error) {
	query, args, err := psql().
		Select(candidateColumns...).
		From(candidateTable(candidateType)).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate candidate query: %w", err)
	}

	var candidate types.RoutingCandidate
	err = pgxscan.Get(ctx, conn(ctx, r.pool), &candidate, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrCandidateNotFound
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", candidateType, err)
	}
	candidate.Type = candidateType

	return &candidate, nil
}

func (r *CandidateRepository) Candidates(ctx context.Context, candidateType types.CandidateType) ([]*types.RoutingCandidate, error) {
	query, args, err := psql().
		Select(candidateColumns...).
		From(candidateTable(candidateType)).
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate candidates query: %w", err)
	}

	var candidates = make([]*types.RoutingCandidate, 0)
	if err := pgxscan.Select(ctx, conn(ctx, r.pool), &candidates, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch %s candidates: %w", candidateType, err)
	}
	for _, c := range candidates {
		c.Type = candidateType
	}

	return candidates, nil
}

func (r *CandidateRepository) UpsertCandidate(ctx context.Context, candidate *types.RoutingCandidate) error {
	now := time.Now()

	query, args, err := psql().
		Insert(candidateTable(candidate.Type)).
		Columns("id", "name", "logo", "about", "user_id", "latitude", "longitude", "created_at", "updated_at").
		Values(candidate.ID, candidate.Name, candidate.Logo, candidate.About, candidate.UserID, candidate.Latitude, candidate.Longitude, now, now).
		Suffix("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, logo = EXCLUDED.logo, about = EXCLUDED.about, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate upsert candidate query: %w", err)
	}

	_, err = conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", candidate.Type, candidate.ID, err)
	}

	return nil
}

// DeleteCandidatesNotIn removes rows whose id is absent from keep. Used by the
// seed sync.
func (r *CandidateRepository) DeleteCandidatesNotIn(ctx context.Context, candidateType types.CandidateType, keep []string) (int64, error) {
	builder := psql().Delete(candidateTable(candidateType))
	if len(keep) > 0 {
		builder = builder.Where(sq.NotEq{"id": keep})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate delete candidates query: %w", err)
	}

	tag, err := conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale %s candidates: %w", candidateType, err)
	}

	return tag.RowsAffected(), nil
}
