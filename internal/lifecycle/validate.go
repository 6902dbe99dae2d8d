package lifecycle

import (
	"strings"
	"unicode/utf8"

	"ecoguard/pkg/types"
)

const (
	MinReasonLength      = 10
	MinTitleLength       = 5
	MinDescriptionLength = 20
	MaxNotesLength       = 2000
)

func isURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}

func validateNewReport(input *NewReport) error {
	input.UserID = strings.TrimSpace(input.UserID)
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)

	switch {
	case input.UserID == "":
		return types.ErrUnauthenticated
	case length(input.Title) < MinTitleLength:
		return types.NewValidationError("title", "must be at least %d characters", MinTitleLength)
	case length(input.Description) < MinDescriptionLength:
		return types.NewValidationError("description", "must be at least %d characters", MinDescriptionLength)
	case input.Latitude < -90 || input.Latitude > 90:
		return types.NewValidationError("latitude", "must be between -90 and 90")
	case input.Longitude < -180 || input.Longitude > 180:
		return types.NewValidationError("longitude", "must be between -180 and 180")
	}
	return nil
}

func validateTransition(req *TransitionRequest) error {
	req.ReportID = strings.TrimSpace(req.ReportID)
	req.ActorID = strings.TrimSpace(req.ActorID)
	req.Notes = strings.TrimSpace(req.Notes)
	req.OrganizationID = strings.TrimSpace(req.OrganizationID)
	req.AgencyID = strings.TrimSpace(req.AgencyID)

	if req.ActorID == "" {
		return types.ErrUnauthenticated
	}
	if req.ReportID == "" {
		return types.NewValidationError("reportId", "is required")
	}

	target, err := types.ParseReportStatus(string(req.Target))
	if err != nil {
		return types.NewValidationError("status", "%q is not a report status", req.Target)
	}
	req.Target = target

	if length(req.Notes) > MaxNotesLength {
		return types.NewValidationError("notes", "must be at most %d characters", MaxNotesLength)
	}
	if req.Target == types.ReportStatusAssigned && req.OrganizationID == "" {
		return types.NewValidationError("organizationId", "is required to assign a report")
	}
	if req.Target == types.ReportStatusEscalated && req.AgencyID == "" {
		return types.NewValidationError("agencyId", "is required to escalate a report")
	}
	return nil
}

// dedicatedActions names the operation that owns each target with a side
// record. The generic transition never writes those records.
var dedicatedActions = map[types.ReportStatus]string{
	types.ReportStatusRejected: "reject",
	types.ReportStatusResolved: "resolve",
	types.ReportStatusClosed:   "close",
}

func validateGenericTarget(target types.ReportStatus) error {
	if action, ok := dedicatedActions[target]; ok {
		return types.NewValidationError("status", "%s is set by the %s action", target, action)
	}
	return nil
}

func validateReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if length(reason) < MinReasonLength {
		return "", types.NewValidationError("reason", "must be at least %d characters", MinReasonLength)
	}
	return reason, nil
}

func validateResolution(r *Resolution) error {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)

	if length(r.Title) < MinTitleLength {
		return types.NewValidationError("title", "must be at least %d characters", MinTitleLength)
	}
	if length(r.Description) < MinDescriptionLength {
		return types.NewValidationError("description", "must be at least %d characters", MinDescriptionLength)
	}
	return nil
}
