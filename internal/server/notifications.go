package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"ecoguard/internal/utils"
	"ecoguard/pkg/types"

	"github.com/alexedwards/flow"
)

const defaultNotificationLimit = 50

// handleBroadcast queues a message for every user holding a role. Delivery
// happens in the outbox dispatcher.
func (s *Service) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := principalFrom(ctx)

	var body types.BroadcastPayload
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	body.Title = strings.TrimSpace(body.Title)
	body.Body = strings.TrimSpace(body.Body)
	switch {
	case !validRole(body.Role):
		s.writeError(w, r, types.NewValidationError("role", "unknown role %q", body.Role))
		return
	case body.Title == "":
		s.writeError(w, r, types.NewValidationError("title", "is required"))
		return
	case body.Body == "":
		s.writeError(w, r, types.NewValidationError("body", "is required"))
		return
	}

	payload, err := json.Marshal(body)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to encode broadcast payload: %w", err))
		return
	}

	event := &types.OutboxEvent{
		Kind:    types.OutboxKindBroadcast,
		ActorID: p.UserID,
		Payload: payload,
	}
	if body.Reference != nil && body.Reference.Table == "reports" {
		event.ReportID = utils.StringPtr(body.Reference.RowID)
	}

	if err := s.store.EnqueueEvent(ctx, event); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, event)
}

func validRole(role types.Role) bool {
	switch role {
	case types.RoleUser, types.RoleOfficer, types.RoleOrgRep, types.RoleAgencyRep, types.RoleAdmin:
		return true
	}
	return false
}

type pushTokenRequest struct {
	Token string `json:"token"`
}

func (s *Service) handleRegisterPushToken(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var body pushTokenRequest
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	body.Token = strings.TrimSpace(body.Token)
	if body.Token == "" {
		s.writeError(w, r, types.NewValidationError("token", "is required"))
		return
	}

	if err := s.store.RegisterToken(r.Context(), p.UserID, body.Token); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	query := r.URL.Query()

	limit := uint64(defaultNotificationLimit)
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || parsed == 0 {
			s.writeError(w, r, types.NewValidationError("limit", "must be a positive integer"))
			return
		}
		limit = min(parsed, 200)
	}
	unreadOnly, _ := strconv.ParseBool(query.Get("unread"))

	notifications, err := s.store.NotificationsByUser(r.Context(), p.UserID, unreadOnly, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, notifications)
}

func (s *Service) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	count, err := s.store.UnreadCount(r.Context(), p.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Service) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := principalFrom(ctx)

	if err := s.store.MarkNotificationRead(ctx, p.UserID, flow.Param(ctx, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := principalFrom(ctx)
	reportID := strings.TrimSpace(r.URL.Query().Get("report_id"))

	if err := s.authorizeFeed(ctx, p, reportID); err != nil {
		s.writeError(w, r, err)
		return
	}

	// The upgrader writes its own error response.
	if err := s.feed.ServeWS(s.ctx, w, r, p.UserID, reportID); err != nil {
		s.logger.WithError(err).WithField("user_id", p.UserID).Debug("feed upgrade failed")
	}
}

// authorizeFeed lets officers and admins watch every report. Everyone else
// must name a report they created or, for org reps, one assigned to their
// organization.
func (s *Service) authorizeFeed(ctx context.Context, p principal, reportID string) error {
	if p.Role == types.RoleOfficer || p.Role == types.RoleAdmin {
		return nil
	}
	if reportID == "" {
		return types.ErrForbidden
	}

	report, err := s.store.Report(ctx, reportID, false)
	if err != nil {
		return err
	}
	if report.UserID == p.UserID {
		return nil
	}
	if p.Role == types.RoleOrgRep {
		return s.authorizeOrgRepResolve(ctx, p, reportID)
	}
	return types.ErrForbidden
}
