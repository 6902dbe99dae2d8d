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

const (
	rejectedReportTableName  = "rejected_reports"
	resolvedReportTableName  = "resolved_reports"
	assignedReportTableName  = "assigned_reports"
	escalatedReportTableName = "escalated_reports"
)

var assignedReportColumns = utils.StructTagValues(types.AssignedReport{})

// RecordRepository writes the per-transition side records: rejections,
// resolutions, assignments and escalations.
type RecordRepository struct {
	pool *pgxpool.Pool
}

func NewRecordRepository(pool *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

func (r *RecordRepository) insert(ctx context.Context, table string, row any) error {
	query, args, err := psql().
		Insert(table).
		SetMap(utils.StructToMap(row)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert query for %s: %w", table, err)
	}

	_, err = conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}

	return nil
}

func (r *RecordRepository) CreateRejection(ctx context.Context, rejection *types.RejectedReport) error {
	rejection.ID = utils.NanoID()
	rejection.CreatedAt = time.Now()
	return r.insert(ctx, rejectedReportTableName, rejection)
}

func (r *RecordRepository) CreateResolution(ctx context.Context, resolution *types.ResolvedReport) error {
	resolution.ID = utils.NanoID()
	resolution.CreatedAt = time.Now()
	return r.insert(ctx, resolvedReportTableName, resolution)
}

func (r *RecordRepository) CreateAssignment(ctx context.Context, assignment *types.AssignedReport) error {
	assignment.ID = utils.NanoID()
	assignment.CreatedAt = time.Now()
	return r.insert(ctx, assignedReportTableName, assignment)
}

func (r *RecordRepository) CreateEscalation(ctx context.Context, escalation *types.EscalatedReport) error {
	escalation.ID = utils.NanoID()
	escalation.CreatedAt = time.Now()
	return r.insert(ctx, escalatedReportTableName, escalation)
}

// LatestAssignment returns the operative assignment of a report, or nil when
// it was never assigned.
func (r *RecordRepository) LatestAssignment(ctx context.Context, reportID string) (*types.AssignedReport, error) {
	query, args, err := psql().
		Select(assignedReportColumns...).
		From(assignedReportTableName).
		Where(sq.Eq{"report_id": reportID}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate latest assignment query: %w", err)
	}

	var assignment types.AssignedReport
	err = pgxscan.Get(ctx, conn(ctx, r.pool), &assignment, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch latest assignment: %w", err)
	}

	return &assignment, nil
}

func (r *RecordRepository) AssignedReportIDs(ctx context.Context, organizationID string) ([]string, error) {
	query, args, err := psql().
		Select("DISTINCT report_id").
		From(assignedReportTableName).
		Where(sq.Eq{"organization_id": organizationID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate assigned report ids query: %w", err)
	}

	var ids = make([]string, 0)
	if err := pgxscan.Select(ctx, conn(ctx, r.pool), &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch assigned report ids: %w", err)
	}

	return ids, nil
}

// AssignmentMetrics counts the assignments of an organization and how many of
// the assigned reports ended resolved or rejected.
func (r *RecordRepository) AssignmentMetrics(ctx context.Context, organizationID string) (*types.AssignmentMetrics, error) {
	query, args, err := psql().
		Select(
			"COUNT(a.id) AS total",
			"COUNT(a.id) FILTER (WHERE rp.status = 'resolved') AS resolved",
			"COUNT(a.id) FILTER (WHERE rp.status = 'rejected') AS rejected",
		).
		From(assignedReportTableName + " a").
		Join(reportTableName + " rp ON rp.id = a.report_id").
		Where(sq.Eq{"a.organization_id": organizationID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate assignment metrics query: %w", err)
	}

	var metrics types.AssignmentMetrics
	if err := pgxscan.Get(ctx, conn(ctx, r.pool), &metrics, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch assignment metrics: %w", err)
	}

	return &metrics, nil
}
