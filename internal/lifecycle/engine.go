// Package lifecycle applies report status changes. Every change writes the
// status, its history row, any side record and the outbox events in one
// transaction.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ecoguard/internal/utils"
	"ecoguard/pkg/types"

	"github.com/sirupsen/logrus"
)

const (
	SubmittedNotes = "Report submitted."
	ClosedNotes    = "Report closed."

	maxReportNumberAttempts = 3
)

type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	Report(ctx context.Context, reportID string, forUpdate bool) (*types.Report, error)
	CreateReport(ctx context.Context, report *types.Report) error
	UpdateReportStatus(ctx context.Context, reportID string, status types.ReportStatus) (time.Time, error)

	AppendHistory(ctx context.Context, entry *types.ReportHistory) error
	HistoryByReport(ctx context.Context, reportID string) ([]*types.ReportHistory, error)

	CreateRejection(ctx context.Context, rejection *types.RejectedReport) error
	CreateResolution(ctx context.Context, resolution *types.ResolvedReport) error
	CreateAssignment(ctx context.Context, assignment *types.AssignedReport) error
	CreateEscalation(ctx context.Context, escalation *types.EscalatedReport) error

	Candidate(ctx context.Context, candidateType types.CandidateType, id string) (*types.RoutingCandidate, error)
	Profile(ctx context.Context, userID string) (*types.Profile, error)

	EnqueueEvent(ctx context.Context, event *types.OutboxEvent) error
}

// Media resolves uploaded object keys to public URLs.
type Media interface {
	PublicURL(key string) string
	Exists(ctx context.Context, key string) (bool, error)
}

// ReportIndexer makes submitted reports searchable by description.
type ReportIndexer interface {
	IndexReport(ctx context.Context, report types.Report) (int, error)
}

type Options struct {
	// SerializeTransitions locks the report row for the duration of a
	// transition. Off by default: concurrent transitions to different targets
	// are last-write-wins, and the loser of a race to the same target gets a
	// TransitionError.
	SerializeTransitions bool
	VerifyMedia          bool
}

type Engine struct {
	store   Store
	media   Media
	indexer ReportIndexer
	options Options
	logger  logrus.FieldLogger
	now     func() time.Time
}

func New(store Store, media Media, indexer ReportIndexer, options Options, logger logrus.FieldLogger) *Engine {
	return &Engine{
		store:   store,
		media:   media,
		indexer: indexer,
		options: options,
		logger:  logger.WithField("component", "lifecycle"),
		now:     time.Now,
	}
}

type NewReport struct {
	UserID      string   `json:"-"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	ImageURLs   []string `json:"imageUrls"`
	VideoURLs   []string `json:"videoUrls"`
}

type TransitionRequest struct {
	ReportID       string             `json:"-"`
	ActorID        string             `json:"-"`
	Target         types.ReportStatus `json:"status"`
	Notes          string             `json:"notes"`
	OrganizationID string             `json:"organizationId,omitempty"`
	AgencyID       string             `json:"agencyId,omitempty"`
}

type Resolution struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImageKeys   []string `json:"imageKeys"`
}

// Submit creates a pending report with its first history row and queues the
// officer notification. The report number is regenerated with a suffix when
// it collides.
func (e *Engine) Submit(ctx context.Context, input NewReport) (*types.Report, error) {
	if err := validateNewReport(&input); err != nil {
		return nil, err
	}

	var report *types.Report
	var err error

	for attempt := 0; attempt < maxReportNumberAttempts; attempt++ {
		number := utils.ReportNumber(e.now())
		if attempt > 0 {
			number = utils.ReportNumberWithSuffix(e.now())
		}

		report, err = e.submit(ctx, input, number)
		if !errors.Is(err, types.ErrReportNumberTaken) {
			break
		}
		e.logger.WithField("report_number", number).Warn("report number collision, regenerating")
	}
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"report_id":     report.ID,
		"report_number": report.ReportNumber,
	}).Info("report submitted")

	if e.indexer != nil {
		if _, err := e.indexer.IndexReport(ctx, *report); err != nil {
			e.logger.WithError(err).WithField("report_id", report.ID).Warn("failed to index report description")
		}
	}

	return report, nil
}

func (e *Engine) submit(ctx context.Context, input NewReport, number string) (*types.Report, error) {
	report := &types.Report{
		ReportNumber: number,
		UserID:       input.UserID,
		Title:        input.Title,
		Description:  input.Description,
		Status:       types.ReportStatusPending,
		Latitude:     input.Latitude,
		Longitude:    input.Longitude,
		ImageURLs:    input.ImageURLs,
		VideoURLs:    input.VideoURLs,
	}

	err := e.store.WithTx(ctx, func(ctx context.Context) error {
		if err := e.store.CreateReport(ctx, report); err != nil {
			return err
		}

		if err := e.store.AppendHistory(ctx, &types.ReportHistory{
			ReportID: report.ID,
			UserID:   input.UserID,
			Notes:    SubmittedNotes,
			Status:   types.ReportStatusPending,
		}); err != nil {
			return err
		}

		return e.store.EnqueueEvent(ctx, &types.OutboxEvent{
			Kind:     types.OutboxKindReportSubmitted,
			ReportID: &report.ID,
			ActorID:  input.UserID,
		})
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}

// Transition moves a report to req.Target when the transition table allows
// it. Assignment and escalation go through Assign and Escalate; targets that
// carry a side record of their own are refused.
func (e *Engine) Transition(ctx context.Context, req TransitionRequest) (*types.Report, error) {
	if err := validateTransition(&req); err != nil {
		return nil, err
	}

	switch req.Target {
	case types.ReportStatusAssigned:
		return e.Assign(ctx, req.ActorID, req.ReportID, req.OrganizationID)
	case types.ReportStatusEscalated:
		return e.Escalate(ctx, req.ActorID, req.ReportID, req.AgencyID)
	}

	if err := validateGenericTarget(req.Target); err != nil {
		return nil, err
	}
	return e.apply(ctx, req, nil)
}

// Reject records the reason and moves the report to rejected.
func (e *Engine) Reject(ctx context.Context, actorID, reportID, reason string) (*types.Report, error) {
	reason, err := validateReason(reason)
	if err != nil {
		return nil, err
	}

	req := TransitionRequest{
		ReportID: reportID,
		ActorID:  actorID,
		Target:   types.ReportStatusRejected,
		Notes:    reason,
	}
	if err := validateTransition(&req); err != nil {
		return nil, err
	}

	return e.apply(ctx, req, func(ctx context.Context, report *types.Report) error {
		return e.store.CreateRejection(ctx, &types.RejectedReport{
			ReportID: report.ID,
			UserID:   actorID,
			Reason:   reason,
		})
	})
}

// Resolve records the resolution summary and moves the report to resolved.
func (e *Engine) Resolve(ctx context.Context, actorID, reportID string, resolution Resolution) (*types.Report, error) {
	if err := validateResolution(&resolution); err != nil {
		return nil, err
	}

	req := TransitionRequest{
		ReportID: reportID,
		ActorID:  actorID,
		Target:   types.ReportStatusResolved,
	}
	if err := validateTransition(&req); err != nil {
		return nil, err
	}
	req.Notes = fmt.Sprintf("Resolved with title: %s. Description: %s", resolution.Title, resolution.Description)

	imageURLs, err := e.resolveImages(ctx, resolution.ImageKeys)
	if err != nil {
		return nil, err
	}

	return e.apply(ctx, req, func(ctx context.Context, report *types.Report) error {
		return e.store.CreateResolution(ctx, &types.ResolvedReport{
			ReportID:    report.ID,
			UserID:      actorID,
			Title:       resolution.Title,
			Description: resolution.Description,
			ImageURLs:   imageURLs,
		})
	})
}

// Assign routes a verified report to an organization.
func (e *Engine) Assign(ctx context.Context, actorID, reportID, organizationID string) (*types.Report, error) {
	req := TransitionRequest{
		ReportID:       reportID,
		ActorID:        actorID,
		Target:         types.ReportStatusAssigned,
		OrganizationID: organizationID,
	}
	if err := validateTransition(&req); err != nil {
		return nil, err
	}

	org, err := e.store.Candidate(ctx, types.CandidateTypeOrganization, req.OrganizationID)
	if err != nil {
		return nil, err
	}
	req.Notes = fmt.Sprintf("Report assigned to organization: %s", org.Name)

	return e.apply(ctx, req, nil)
}

// Escalate routes a verified report to an agency.
func (e *Engine) Escalate(ctx context.Context, actorID, reportID, agencyID string) (*types.Report, error) {
	req := TransitionRequest{
		ReportID: reportID,
		ActorID:  actorID,
		Target:   types.ReportStatusEscalated,
		AgencyID: agencyID,
	}
	if err := validateTransition(&req); err != nil {
		return nil, err
	}

	agency, err := e.store.Candidate(ctx, types.CandidateTypeAgency, req.AgencyID)
	if err != nil {
		return nil, err
	}
	req.Notes = fmt.Sprintf("Report escalated to agency: %s", agency.Name)

	return e.apply(ctx, req, nil)
}

// Close is the administrative exit from any status except closed.
func (e *Engine) Close(ctx context.Context, actorID, reportID, notes string) (*types.Report, error) {
	req := TransitionRequest{
		ReportID: reportID,
		ActorID:  actorID,
		Target:   types.ReportStatusClosed,
		Notes:    notes,
	}
	if err := validateTransition(&req); err != nil {
		return nil, err
	}
	if req.Notes == "" {
		req.Notes = ClosedNotes
	}

	profile, err := e.store.Profile(ctx, actorID)
	if err != nil {
		if errors.Is(err, types.ErrProfileNotFound) {
			return nil, types.ErrForbidden
		}
		return nil, err
	}
	if !profile.HasRole(types.RoleAdmin) {
		return nil, types.ErrForbidden
	}

	return e.apply(ctx, req, nil)
}

// History returns the report timeline, oldest first.
func (e *Engine) History(ctx context.Context, reportID string) ([]*types.ReportHistory, error) {
	if _, err := e.store.Report(ctx, reportID, false); err != nil {
		return nil, err
	}
	return e.store.HistoryByReport(ctx, reportID)
}

func allowed(from, to types.ReportStatus) bool {
	if to == types.ReportStatusClosed {
		return from.CanCloseFrom()
	}
	return from.CanTransitionTo(to)
}

// apply runs the guarded status change. before writes the side record of
// the reject and resolve paths and runs after the guard.
func (e *Engine) apply(ctx context.Context, req TransitionRequest, before func(ctx context.Context, report *types.Report) error) (*types.Report, error) {
	var updated *types.Report
	var from types.ReportStatus

	err := e.store.WithTx(ctx, func(ctx context.Context) error {
		report, err := e.store.Report(ctx, req.ReportID, e.options.SerializeTransitions)
		if err != nil {
			return err
		}
		from = report.Status

		if !allowed(report.Status, req.Target) {
			return &types.TransitionError{ReportID: report.ID, From: report.Status, To: req.Target}
		}

		if before != nil {
			if err := before(ctx, report); err != nil {
				return err
			}
		}

		updatedAt, err := e.store.UpdateReportStatus(ctx, report.ID, req.Target)
		if errors.Is(err, types.ErrStatusConflict) {
			return &types.TransitionError{ReportID: report.ID, From: req.Target, To: req.Target}
		}
		if err != nil {
			return err
		}
		report.Status = req.Target
		report.UpdatedAt = updatedAt

		if err := e.store.AppendHistory(ctx, &types.ReportHistory{
			ReportID: report.ID,
			UserID:   req.ActorID,
			Notes:    req.Notes,
			Status:   req.Target,
		}); err != nil {
			return err
		}

		if err := e.routeRecord(ctx, req); err != nil {
			return err
		}

		if err := e.enqueue(ctx, req); err != nil {
			return err
		}

		updated = report
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"report_id": req.ReportID,
		"actor_id":  req.ActorID,
		"from":      from,
		"to":        req.Target,
	}).Info("report status changed")

	return updated, nil
}

func (e *Engine) routeRecord(ctx context.Context, req TransitionRequest) error {
	switch req.Target {
	case types.ReportStatusAssigned:
		return e.store.CreateAssignment(ctx, &types.AssignedReport{
			ReportID:       req.ReportID,
			OrganizationID: req.OrganizationID,
			UserID:         req.ActorID,
		})
	case types.ReportStatusEscalated:
		return e.store.CreateEscalation(ctx, &types.EscalatedReport{
			ReportID: req.ReportID,
			AgencyID: req.AgencyID,
			UserID:   req.ActorID,
		})
	}
	return nil
}

// enqueue writes the representatives event first, then the creator event.
func (e *Engine) enqueue(ctx context.Context, req TransitionRequest) error {
	reportID := req.ReportID

	switch req.Target {
	case types.ReportStatusAssigned:
		if err := e.store.EnqueueEvent(ctx, &types.OutboxEvent{
			Kind:     types.OutboxKindReportAssigned,
			ReportID: &reportID,
			TargetID: utils.StringPtr(req.OrganizationID),
			ActorID:  req.ActorID,
		}); err != nil {
			return err
		}
	case types.ReportStatusEscalated:
		if err := e.store.EnqueueEvent(ctx, &types.OutboxEvent{
			Kind:     types.OutboxKindReportEscalated,
			ReportID: &reportID,
			TargetID: utils.StringPtr(req.AgencyID),
			ActorID:  req.ActorID,
		}); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(types.StatusChangePayload{Status: req.Target})
	if err != nil {
		return fmt.Errorf("failed to encode status payload: %w", err)
	}

	return e.store.EnqueueEvent(ctx, &types.OutboxEvent{
		Kind:     types.OutboxKindReportStatusChanged,
		ReportID: &reportID,
		ActorID:  req.ActorID,
		Payload:  payload,
	})
}

func (e *Engine) resolveImages(ctx context.Context, keys []string) ([]string, error) {
	urls := make([]string, 0, len(keys))
	for _, key := range keys {
		if isURL(key) || e.media == nil {
			urls = append(urls, key)
			continue
		}

		if e.options.VerifyMedia {
			ok, err := e.media.Exists(ctx, key)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, types.NewValidationError("imageKeys", "image %q was not uploaded", key)
			}
		}
		urls = append(urls, e.media.PublicURL(key))
	}
	return urls, nil
}
