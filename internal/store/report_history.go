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

const reportHistoryTableName = "report_history"

var reportHistoryColumns = utils.StructTagValues(types.ReportHistory{})

// HistoryRepository is append-only: there is no update or delete.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

func (r *HistoryRepository) AppendHistory(ctx context.Context, entry *types.ReportHistory) error {
	entry.ID = utils.NanoID()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query, args, err := psql().
		Insert(reportHistoryTableName).
		SetMap(utils.StructToMap(entry)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert history query: %w", err)
	}

	_, err = conn(ctx, r.pool).Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to append report history")
}

// HistoryByReport returns the timeline for a report, oldest first.
func (r *HistoryRepository) HistoryByReport(ctx context.Context, reportID string) ([]*types.ReportHistory, error) {
	query, args, err := psql().
		Select(reportHistoryColumns...).
		From(reportHistoryTableName).
		Where(sq.Eq{"report_id": reportID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate history query: %w", err)
	}

	var entries = make([]*types.ReportHistory, 0)
	err = pgxscan.Select(ctx, conn(ctx, r.pool), &entries, query, args...)
	if err != nil {
		return nil, utils.ErrorWrapOrNil(err, "failed to get report history")
	}

	return entries, nil
}
