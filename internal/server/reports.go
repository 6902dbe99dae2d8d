package server

import (
	"context"
	"net/http"
	"strings"

	"ecoguard/internal/lifecycle"
	"ecoguard/pkg/types"

	"github.com/alexedwards/flow"
)

const defaultReportLimit = 100

func (s *Service) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var input lifecycle.NewReport
	if err := s.decodeJSON(w, r, &input); err != nil {
		s.writeError(w, r, err)
		return
	}
	input.UserID = p.UserID

	report, err := s.engine.Submit(r.Context(), input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, report)
}

// reportFilter decodes list filters from the query string.
func reportFilter(r *http.Request) (types.ReportFilter, error) {
	var filter types.ReportFilter
	if err := decoder.Decode(&filter, r.URL.Query()); err != nil {
		return filter, types.NewValidationError("query", "%s", err)
	}

	if filter.Status != "" {
		status, err := types.ParseReportStatus(string(filter.Status))
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, types.NewValidationError("to", "must not be before from")
	}
	filter.Query = strings.TrimSpace(filter.Query)
	if filter.Limit == 0 || filter.Limit > 500 {
		filter.Limit = defaultReportLimit
	}

	return filter, nil
}

func (s *Service) handleListReports(w http.ResponseWriter, r *http.Request) {
	filter, err := reportFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	reports, err := s.store.Reports(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, reports)
}

func (s *Service) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.store.Report(r.Context(), flow.Param(r.Context(), "id"), false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

func (s *Service) handleReportHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.engine.History(r.Context(), flow.Param(r.Context(), "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, history)
}

func (s *Service) handleReportCandidates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	candidateType, err := types.ParseCandidateType(r.URL.Query().Get("type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	report, err := s.store.Report(ctx, flow.Param(ctx, "id"), false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	candidates, err := s.router.FindCandidates(ctx, report.Description, candidateType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, candidates)
}

func (s *Service) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := principalFrom(ctx)

	var req lifecycle.TransitionRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.ReportID = flow.Param(ctx, "id")
	req.ActorID = p.UserID

	report, err := s.engine.Transition(ctx, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Service) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := principalFrom(ctx)

	var body rejectRequest
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	report, err := s.engine.Reject(ctx, p.UserID, flow.Param(ctx, "id"), body.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

func (s *Service) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := principalFrom(ctx)
	reportID := flow.Param(ctx, "id")

	var body lifecycle.Resolution
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	if p.Role == types.RoleOrgRep {
		if err := s.authorizeOrgRepResolve(ctx, p, reportID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	report, err := s.engine.Resolve(ctx, p.UserID, reportID, body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

// authorizeOrgRepResolve only lets a representative resolve reports whose
// latest assignment is to their own organization.
func (s *Service) authorizeOrgRepResolve(ctx context.Context, p principal, reportID string) error {
	if _, err := s.store.Report(ctx, reportID, false); err != nil {
		return err
	}

	organizationID, err := s.store.RepEntityForUser(ctx, types.CandidateTypeOrganization, p.UserID)
	if err != nil {
		return err
	}
	if organizationID == "" {
		return types.ErrForbidden
	}

	assignment, err := s.store.LatestAssignment(ctx, reportID)
	if err != nil {
		return err
	}
	if assignment == nil || assignment.OrganizationID != organizationID {
		return types.ErrForbidden
	}
	return nil
}

type assignRequest struct {
	OrganizationID string `json:"organizationId"`
}

func (s *Service) handleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := principalFrom(ctx)

	var body assignRequest
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	report, err := s.engine.Assign(ctx, p.UserID, flow.Param(ctx, "id"), body.OrganizationID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

type escalateRequest struct {
	AgencyID string `json:"agencyId"`
}

func (s *Service) handleEscalate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := principalFrom(ctx)

	var body escalateRequest
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	report, err := s.engine.Escalate(ctx, p.UserID, flow.Param(ctx, "id"), body.AgencyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

type closeRequest struct {
	Notes string `json:"notes"`
}

func (s *Service) handleClose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := principalFrom(ctx)

	var body closeRequest
	if r.ContentLength != 0 {
		if err := s.decodeJSON(w, r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	report, err := s.engine.Close(ctx, p.UserID, flow.Param(ctx, "id"), body.Notes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}
