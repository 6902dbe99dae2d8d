// Package export renders an organization's assigned reports and outcome
// counts as an xlsx workbook.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"ecoguard/pkg/types"

	"github.com/xuri/excelize/v2"
)

const (
	ReportsSheet = "Reports"
	SummarySheet = "Summary"
)

var reportHeader = []string{
	"Report Number",
	"Title",
	"Status",
	"Latitude",
	"Longitude",
	"Submitted At",
	"Updated At",
}

var columnWidths = []float64{16, 40, 12, 12, 12, 22, 22}

type Source interface {
	Candidate(ctx context.Context, candidateType types.CandidateType, id string) (*types.RoutingCandidate, error)
	AssignedReportIDs(ctx context.Context, organizationID string) ([]string, error)
	ReportsByIDs(ctx context.Context, reportIDs []string, filter types.ReportFilter) ([]*types.Report, error)
	AssignmentMetrics(ctx context.Context, organizationID string) (*types.AssignmentMetrics, error)
}

// WriteOrganizationWorkbook streams the workbook for organizationID to w.
func WriteOrganizationWorkbook(ctx context.Context, src Source, organizationID string, filter types.ReportFilter, now time.Time, w io.Writer) error {
	f, err := OrganizationWorkbook(ctx, src, organizationID, filter, now)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// OrganizationWorkbook builds the workbook. The caller closes the file.
func OrganizationWorkbook(ctx context.Context, src Source, organizationID string, filter types.ReportFilter, now time.Time) (*excelize.File, error) {
	organization, err := src.Candidate(ctx, types.CandidateTypeOrganization, organizationID)
	if err != nil {
		return nil, err
	}

	ids, err := src.AssignedReportIDs(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	reports, err := src.ReportsByIDs(ctx, ids, filter)
	if err != nil {
		return nil, err
	}
	metrics, err := src.AssignmentMetrics(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()

	index, err := f.NewSheet(ReportsSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	_ = f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	if err := writeReports(f, reports); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, organization, metrics, now); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E2F0D9"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
}

func writeReports(f *excelize.File, reports []*types.Report) error {
	style, err := headerStyle(f)
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range reportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(ReportsSheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(ReportsSheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}

		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(ReportsSheet, name, name, columnWidths[col]); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, report := range reports {
		row := []any{
			report.ReportNumber,
			report.Title,
			string(report.Status),
			report.Latitude,
			report.Longitude,
			report.CreatedAt.UTC().Format(time.RFC3339),
			report.UpdatedAt.UTC().Format(time.RFC3339),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(ReportsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write report row %d: %w", i+2, err)
		}
	}

	return nil
}

func writeSummary(f *excelize.File, organization *types.RoutingCandidate, metrics *types.AssignmentMetrics, now time.Time) error {
	rows := [][]any{
		{"Organization", organization.Name},
		{"Total Assigned", metrics.Total},
		{"Resolved", metrics.Resolved},
		{"Rejected", metrics.Rejected},
		{"Open", metrics.Total - metrics.Resolved - metrics.Rejected},
		{"Generated At", now.UTC().Format(time.RFC3339)},
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(SummarySheet, "A", "A", 18); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	return nil
}
