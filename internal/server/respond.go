package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ecoguard/pkg/types"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}

func (s *Service) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return types.NewValidationError("body", "invalid JSON payload: %s", err)
	}
	return nil
}

// writeError maps domain errors onto status codes. Anything unrecognised is
// logged and reported as a 500 without its detail.
func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *types.ValidationError
		transition *types.TransitionError
		remote     *types.RemoteError
	)

	switch {
	case errors.As(err, &validation):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Error(), Field: validation.Field})
	case errors.Is(err, types.ErrInvalidStatus),
		errors.Is(err, types.ErrInvalidCandidateType),
		errors.Is(err, types.ErrEmptyQuery):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, types.ErrUnauthenticated):
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: types.ErrUnauthenticated.Error()})
	case errors.Is(err, types.ErrForbidden):
		s.writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, types.ErrReportNotFound),
		errors.Is(err, types.ErrCandidateNotFound),
		errors.Is(err, types.ErrNotificationNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &transition):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: transition.Error()})
	case errors.As(err, &remote):
		s.logger.WithError(err).WithField("path", r.URL.Path).Warn("upstream failure")
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: fmt.Sprintf("%s unavailable: %s", remote.Service, remote.Message)})
	default:
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
