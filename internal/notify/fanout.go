// Package notify resolves who hears about a report event, persists their
// in-app notifications and pushes to their devices.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"ecoguard/internal/push"
	"ecoguard/internal/utils"
	"ecoguard/pkg/types"

	"github.com/sirupsen/logrus"
)

type Store interface {
	Report(ctx context.Context, reportID string, forUpdate bool) (*types.Report, error)
	UserIDsByRole(ctx context.Context, role types.Role) ([]string, error)
	ApprovedRepUserIDs(ctx context.Context, candidateType types.CandidateType, entityID string) ([]string, error)
	TokensByUsers(ctx context.Context, userIDs []string) ([]*types.PushToken, error)
	CreateNotifications(ctx context.Context, notifications []*types.Notification) error
}

type Pusher interface {
	Send(ctx context.Context, messages []push.Message) (*push.Result, error)
}

type Fanout struct {
	store  Store
	pusher Pusher
	logger logrus.FieldLogger
}

func NewFanout(store Store, pusher Pusher, logger logrus.FieldLogger) *Fanout {
	return &Fanout{
		store:  store,
		pusher: pusher,
		logger: logger.WithField("component", "fanout"),
	}
}

// Notify persists one notification per distinct recipient user and then
// pushes to every recipient token. Only persistence failures are returned.
func (f *Fanout) Notify(ctx context.Context, recipients []types.Recipient, msg types.Message) error {
	pending, err := f.Persist(ctx, recipients, msg)
	if err != nil {
		return err
	}
	f.Push(ctx, pending)
	return nil
}

// Persist writes the notification rows and returns the push messages still
// to be delivered.
func (f *Fanout) Persist(ctx context.Context, recipients []types.Recipient, msg types.Message) ([]push.Message, error) {
	seenUsers := make(map[string]bool, len(recipients))
	seenTokens := make(map[string]bool, len(recipients))

	rows := make([]*types.Notification, 0, len(recipients))
	messages := make([]push.Message, 0, len(recipients))

	var data map[string]any
	if msg.Reference != nil {
		data = map[string]any{"referenceTable": msg.Reference.Table, "referenceRowId": msg.Reference.RowID}
	}

	for _, r := range recipients {
		if r.UserID == "" {
			continue
		}
		if !seenUsers[r.UserID] {
			seenUsers[r.UserID] = true

			row := &types.Notification{
				UserID:  r.UserID,
				Title:   msg.Title,
				Message: msg.Body,
			}
			if msg.Reference != nil {
				row.ReferenceTable = utils.StringPtr(msg.Reference.Table)
				row.ReferenceRowID = utils.StringPtr(msg.Reference.RowID)
			}
			rows = append(rows, row)
		}

		if r.PushToken != "" && !seenTokens[r.PushToken] {
			seenTokens[r.PushToken] = true
			messages = append(messages, push.Message{
				To:    r.PushToken,
				Title: msg.Title,
				Body:  msg.Body,
				Sound: "default",
				Data:  data,
			})
		}
	}

	if err := f.store.CreateNotifications(ctx, rows); err != nil {
		return nil, fmt.Errorf("failed to persist notifications: %w", err)
	}

	return messages, nil
}

// Push delivers messages without reporting failures to the caller.
func (f *Fanout) Push(ctx context.Context, messages []push.Message) {
	if len(messages) == 0 || f.pusher == nil {
		return
	}

	result, err := f.pusher.Send(ctx, messages)
	entry := f.logger.WithField("messages", len(messages))
	if result != nil {
		entry = entry.WithFields(logrus.Fields{
			"batches":  result.Batches,
			"accepted": result.Accepted,
			"rejected": result.Rejected,
		})
	}
	if err != nil {
		entry.WithError(err).Error("push delivery failed")
		return
	}
	entry.Debug("push delivered")
}

// Recipients pairs users with their device tokens. Users without a token are
// still returned so they get an in-app notification.
func (f *Fanout) Recipients(ctx context.Context, userIDs []string) ([]types.Recipient, error) {
	if len(userIDs) == 0 {
		return []types.Recipient{}, nil
	}

	tokens, err := f.store.TokensByUsers(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load push tokens: %w", err)
	}

	byUser := make(map[string][]string, len(userIDs))
	for _, t := range tokens {
		byUser[t.UserID] = append(byUser[t.UserID], t.Token)
	}

	recipients := make([]types.Recipient, 0, len(userIDs)+len(tokens))
	for _, id := range userIDs {
		userTokens := byUser[id]
		if len(userTokens) == 0 {
			recipients = append(recipients, types.Recipient{UserID: id})
			continue
		}
		for _, token := range userTokens {
			recipients = append(recipients, types.Recipient{UserID: id, PushToken: token})
		}
	}
	return recipients, nil
}

// Resolve works out the audience and message for an outbox event.
func (f *Fanout) Resolve(ctx context.Context, event *types.OutboxEvent) ([]string, types.Message, error) {
	if event.Kind == types.OutboxKindBroadcast {
		return f.resolveBroadcast(ctx, event)
	}

	if event.ReportID == nil || *event.ReportID == "" {
		return nil, types.Message{}, fmt.Errorf("event %s of kind %s has no report", event.ID, event.Kind)
	}

	report, err := f.store.Report(ctx, *event.ReportID, false)
	if err != nil {
		return nil, types.Message{}, err
	}

	switch event.Kind {
	case types.OutboxKindReportSubmitted:
		officers, err := f.store.UserIDsByRole(ctx, types.RoleOfficer)
		if err != nil {
			return nil, types.Message{}, err
		}
		return officers, submittedMessage(report), nil

	case types.OutboxKindReportAssigned:
		reps, err := f.targetReps(ctx, event, types.CandidateTypeOrganization)
		if err != nil {
			return nil, types.Message{}, err
		}
		return reps, assignedMessage(report), nil

	case types.OutboxKindReportEscalated:
		reps, err := f.targetReps(ctx, event, types.CandidateTypeAgency)
		if err != nil {
			return nil, types.Message{}, err
		}
		return reps, escalatedMessage(report), nil

	case types.OutboxKindReportStatusChanged:
		var payload types.StatusChangePayload
		if len(event.Payload) > 0 {
			if err := json.Unmarshal(event.Payload, &payload); err != nil {
				return nil, types.Message{}, fmt.Errorf("failed to decode status payload: %w", err)
			}
		}
		if payload.Status == "" {
			payload.Status = report.Status
		}
		return []string{report.UserID}, statusChangedMessage(report, payload.Status), nil
	}

	return nil, types.Message{}, fmt.Errorf("unknown outbox event kind %q", event.Kind)
}

func (f *Fanout) targetReps(ctx context.Context, event *types.OutboxEvent, candidateType types.CandidateType) ([]string, error) {
	if event.TargetID == nil || *event.TargetID == "" {
		return nil, fmt.Errorf("event %s of kind %s has no target", event.ID, event.Kind)
	}
	return f.store.ApprovedRepUserIDs(ctx, candidateType, *event.TargetID)
}

func (f *Fanout) resolveBroadcast(ctx context.Context, event *types.OutboxEvent) ([]string, types.Message, error) {
	var payload types.BroadcastPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return nil, types.Message{}, fmt.Errorf("failed to decode broadcast payload: %w", err)
	}

	userIDs, err := f.store.UserIDsByRole(ctx, payload.Role)
	if err != nil {
		return nil, types.Message{}, err
	}

	audience := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id != event.ActorID {
			audience = append(audience, id)
		}
	}

	return audience, types.Message{Title: payload.Title, Body: payload.Body, Reference: payload.Reference}, nil
}
