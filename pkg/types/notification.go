package types

import (
	"encoding/json"
	"time"
)

type Notification struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"userId"`
	Title          string    `db:"title" json:"title"`
	Message        string    `db:"message" json:"message"`
	ReferenceTable *string   `db:"reference_table" json:"referenceTable,omitempty"`
	ReferenceRowID *string   `db:"reference_row_id" json:"referenceRowId,omitempty"`
	IsRead         bool      `db:"is_read" json:"isRead"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

type PushToken struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Token     string    `db:"token" json:"token"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Reference points a notification at the row that triggered it.
type Reference struct {
	Table string `json:"table"`
	RowID string `json:"rowId"`
}

type Recipient struct {
	UserID    string
	PushToken string
}

type Message struct {
	Title     string
	Body      string
	Reference *Reference
}

type OutboxKind string

const (
	OutboxKindReportSubmitted     OutboxKind = "report.submitted"
	OutboxKindReportAssigned      OutboxKind = "report.assigned"
	OutboxKindReportEscalated     OutboxKind = "report.escalated"
	OutboxKindReportStatusChanged OutboxKind = "report.status_changed"
	OutboxKindBroadcast           OutboxKind = "broadcast"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusDispatched OutboxStatus = "dispatched"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxEvent is a pending notification written in the same transaction as
// the state change that caused it.
type OutboxEvent struct {
	ID           string          `db:"id" json:"id"`
	Kind         OutboxKind      `db:"kind" json:"kind"`
	ReportID     *string         `db:"report_id" json:"reportId,omitempty"`
	TargetID     *string         `db:"target_id" json:"targetId,omitempty"`
	ActorID      string          `db:"actor_id" json:"actorId"`
	Payload      json.RawMessage `db:"payload" json:"payload,omitempty"`
	Status       OutboxStatus    `db:"status" json:"status"`
	Attempts     int             `db:"attempts" json:"attempts"`
	LastError    *string         `db:"last_error" json:"lastError,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	DispatchedAt *time.Time      `db:"dispatched_at" json:"dispatchedAt,omitempty"`
}

// StatusChangePayload is carried by report.status_changed events.
type StatusChangePayload struct {
	Status ReportStatus `json:"status"`
}

// BroadcastPayload is carried by broadcast events.
type BroadcastPayload struct {
	Role      Role       `json:"role"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Reference *Reference `json:"reference,omitempty"`
}
