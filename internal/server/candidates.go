package server

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"ecoguard/internal/export"
	"ecoguard/pkg/types"

	"github.com/alexedwards/flow"
)

func (s *Service) handleFindCandidates(w http.ResponseWriter, r *http.Request) {
	candidateType, err := types.ParseCandidateType(r.URL.Query().Get("type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	candidates, err := s.router.FindCandidates(r.Context(), r.URL.Query().Get("q"), candidateType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, candidates)
}

func (s *Service) handleIndexOrganization(w http.ResponseWriter, r *http.Request) {
	s.indexCandidate(w, r, types.CandidateTypeOrganization)
}

func (s *Service) handleIndexAgency(w http.ResponseWriter, r *http.Request) {
	s.indexCandidate(w, r, types.CandidateTypeAgency)
}

type indexResponse struct {
	ID     string `json:"id"`
	Chunks int    `json:"chunks"`
}

func (s *Service) indexCandidate(w http.ResponseWriter, r *http.Request, candidateType types.CandidateType) {
	ctx := r.Context()

	candidate, err := s.store.Candidate(ctx, candidateType, flow.Param(ctx, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	chunks, err := s.router.IndexCandidate(ctx, *candidate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.WithFields(map[string]any{
		"candidate_id":   candidate.ID,
		"candidate_type": candidateType,
		"chunks":         chunks,
	}).Info("candidate indexed")

	s.writeJSON(w, http.StatusOK, indexResponse{ID: candidate.ID, Chunks: chunks})
}

// authorizeOrganization lets officers through and limits representatives to
// their own organization.
func (s *Service) authorizeOrganization(r *http.Request, organizationID string) error {
	p, _ := principalFrom(r.Context())
	if p.Role != types.RoleOrgRep {
		return nil
	}

	own, err := s.store.RepEntityForUser(r.Context(), types.CandidateTypeOrganization, p.UserID)
	if err != nil {
		return err
	}
	if own != organizationID {
		return types.ErrForbidden
	}
	return nil
}

func (s *Service) handleOrganizationReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	organizationID := flow.Param(ctx, "id")

	if err := s.authorizeOrganization(r, organizationID); err != nil {
		s.writeError(w, r, err)
		return
	}

	filter, err := reportFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ids, err := s.store.AssignedReportIDs(ctx, organizationID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	reports, err := s.store.ReportsByIDs(ctx, ids, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, reports)
}

func (s *Service) handleOrganizationMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	organizationID := flow.Param(ctx, "id")

	if err := s.authorizeOrganization(r, organizationID); err != nil {
		s.writeError(w, r, err)
		return
	}

	metrics, err := s.store.AssignmentMetrics(ctx, organizationID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, metrics)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Service) handleOrganizationExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	organizationID := flow.Param(ctx, "id")

	if err := s.authorizeOrganization(r, organizationID); err != nil {
		s.writeError(w, r, err)
		return
	}

	filter, err := reportFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter.Limit = 0

	var buf bytes.Buffer
	now := time.Now()
	if err := export.WriteOrganizationWorkbook(ctx, s.store, organizationID, filter, now, &buf); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s.xlsx"`, organizationID, now.Format("20060102")))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
