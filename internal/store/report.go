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

const reportTableName = "reports"

var reportColumns = utils.StructTagValues(types.Report{})

type ReportRepository struct {
	pool *pgxpool.Pool
}

func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// Report loads a report. forUpdate locks the row for the rest of the
// surrounding transaction.
func (r *ReportRepository) Report(ctx context.Context, reportID string, forUpdate bool) (*types.Report, error) {
	builder := psql().Select(reportColumns...).From(reportTableName).
		Where(sq.Eq{"id": reportID}).
		Limit(1)
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate report query: %w", err)
	}

	var report = new(types.Report)
	err = pgxscan.Get(ctx, conn(ctx, r.pool), report, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to fetch report: %w", err)
	}

	return report, nil
}

func (r *ReportRepository) Reports(ctx context.Context, filter types.ReportFilter) ([]*types.Report, error) {
	builder := psql().Select(reportColumns...).From(reportTableName).
		OrderBy("created_at DESC")
	builder = applyReportFilter(builder, filter)

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate reports query: %w", err)
	}

	var reports = make([]*types.Report, 0)
	if err := pgxscan.Select(ctx, conn(ctx, r.pool), &reports, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch reports: %w", err)
	}

	return reports, nil
}

func (r *ReportRepository) ReportsByIDs(ctx context.Context, reportIDs []string, filter types.ReportFilter) ([]*types.Report, error) {
	if len(reportIDs) == 0 {
		return []*types.Report{}, nil
	}

	builder := psql().Select(reportColumns...).From(reportTableName).
		Where(sq.Eq{"id": reportIDs}).
		OrderBy("created_at DESC")
	builder = applyReportFilter(builder, filter)

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate reports-by-ids query: %w", err)
	}

	var reports = make([]*types.Report, 0)
	if err := pgxscan.Select(ctx, conn(ctx, r.pool), &reports, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch reports by ids: %w", err)
	}

	return reports, nil
}

func applyReportFilter(builder sq.SelectBuilder, filter types.ReportFilter) sq.SelectBuilder {
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.UserID != "" {
		builder = builder.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.From != nil {
		builder = builder.Where(sq.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		builder = builder.Where(sq.Lt{"created_at": *filter.To})
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		builder = builder.Where(sq.Or{
			sq.ILike{"title": like},
			sq.ILike{"description": like},
			sq.ILike{"report_number": like},
		})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}
	return builder
}

// CreateReport inserts the report. A duplicate report_number surfaces as
// types.ErrReportNumberTaken so the caller can regenerate it.
func (r *ReportRepository) CreateReport(ctx context.Context, report *types.Report) error {

	now := time.Now()
	if report.ID == "" {
		report.ID = utils.NanoID()
	}
	report.CreatedAt = now
	report.UpdatedAt = now

	query, args, err := psql().Insert(reportTableName).SetMap(utils.StructToMap(report)).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert report query: %w", err)
	}

	_, err = conn(ctx, r.pool).Exec(ctx, query, args...)
	if isUniqueViolation(err) {
		return types.ErrReportNumberTaken
	}

	return utils.ErrorWrapOrNil(err, "failed to create report")
}

func (r *ReportRepository) UpdateReportStatus(ctx context.Context, reportID string, status types.ReportStatus) (time.Time, error) {

	now := time.Now()

	query, args, err := psql().Update(reportTableName).
		Set("status", status).
		Set("updated_at", now).
		Where(sq.Eq{"id": reportID}).
		Where(sq.NotEq{"status": status}).
		ToSql()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to generate update report status query for report %s: %w", reportID, err)
	}

	// The row was read earlier in the same transaction, so no match means a
	// concurrent transition committed the same status first.
	tag, err := conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to update report status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return time.Time{}, types.ErrStatusConflict
	}

	return now, nil
}
