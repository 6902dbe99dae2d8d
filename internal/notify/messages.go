package notify

import (
	"fmt"

	"ecoguard/pkg/types"
)

const ReferenceTableReports = "reports"

func reportReference(report *types.Report) *types.Reference {
	return &types.Reference{Table: ReferenceTableReports, RowID: report.ID}
}

func submittedMessage(report *types.Report) types.Message {
	return types.Message{
		Title:     "New Report Submitted",
		Body:      fmt.Sprintf("A new report has been submitted: %s", report.Title),
		Reference: reportReference(report),
	}
}

func assignedMessage(report *types.Report) types.Message {
	return types.Message{
		Title:     "New Report Assigned",
		Body:      fmt.Sprintf("A new report #%s has been assigned to your organization.", report.ReportNumber),
		Reference: reportReference(report),
	}
}

func escalatedMessage(report *types.Report) types.Message {
	return types.Message{
		Title:     "New Report Escalated",
		Body:      fmt.Sprintf("A new report #%s has been escalated to your agency.", report.ReportNumber),
		Reference: reportReference(report),
	}
}

func statusChangedMessage(report *types.Report, status types.ReportStatus) types.Message {
	return types.Message{
		Title:     "Report Status Updated",
		Body:      fmt.Sprintf("The status of your report #%s has been updated to %s.", report.ReportNumber, status),
		Reference: reportReference(report),
	}
}
