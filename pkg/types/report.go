package types

import (
	"fmt"
	"strings"
	"time"
)

type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusReceived  ReportStatus = "received"
	ReportStatusVerified  ReportStatus = "verified"
	ReportStatusActive    ReportStatus = "active"
	ReportStatusAssigned  ReportStatus = "assigned"
	ReportStatusEscalated ReportStatus = "escalated"
	ReportStatusResolved  ReportStatus = "resolved"
	ReportStatusRejected  ReportStatus = "rejected"
	ReportStatusClosed    ReportStatus = "closed"
)

var AllReportStatuses = []ReportStatus{
	ReportStatusPending,
	ReportStatusReceived,
	ReportStatusVerified,
	ReportStatusActive,
	ReportStatusAssigned,
	ReportStatusEscalated,
	ReportStatusResolved,
	ReportStatusRejected,
	ReportStatusClosed,
}

// reportTransitions is the operational state machine. closed is only reached
// through the administrative close path, see CanCloseFrom.
var reportTransitions = map[ReportStatus][]ReportStatus{
	ReportStatusPending:  {ReportStatusReceived},
	ReportStatusReceived: {ReportStatusVerified, ReportStatusRejected},
	ReportStatusVerified: {ReportStatusActive, ReportStatusAssigned, ReportStatusEscalated},
	ReportStatusActive:   {ReportStatusResolved},
	ReportStatusAssigned: {ReportStatusResolved},
}

func ParseReportStatus(s string) (ReportStatus, error) {
	status := ReportStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

func (s ReportStatus) Valid() bool {
	for _, known := range AllReportStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s ReportStatus) CanTransitionTo(target ReportStatus) bool {
	for _, next := range reportTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

func (s ReportStatus) CanCloseFrom() bool {
	return s.Valid() && s != ReportStatusClosed
}

type Report struct {
	ID           string       `db:"id" json:"id"`
	ReportNumber string       `db:"report_number" json:"reportNumber"`
	UserID       string       `db:"user_id" json:"userId"`
	Title        string       `db:"title" json:"title"`
	Description  string       `db:"description" json:"description"`
	Status       ReportStatus `db:"status" json:"status"`
	Latitude     float64      `db:"latitude" json:"latitude"`
	Longitude    float64      `db:"longitude" json:"longitude"`
	ImageURLs    []string     `db:"image_urls" json:"imageUrls"`
	VideoURLs    []string     `db:"video_urls" json:"videoUrls"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
}

type ReportHistory struct {
	ID        string       `db:"id" json:"id"`
	ReportID  string       `db:"report_id" json:"reportId"`
	UserID    string       `db:"user_id" json:"userId"`
	Notes     string       `db:"notes" json:"notes"`
	Status    ReportStatus `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"createdAt"`
}

type RejectedReport struct {
	ID        string    `db:"id" json:"id"`
	ReportID  string    `db:"report_id" json:"reportId"`
	UserID    string    `db:"user_id" json:"userId"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type ResolvedReport struct {
	ID          string    `db:"id" json:"id"`
	ReportID    string    `db:"report_id" json:"reportId"`
	UserID      string    `db:"user_id" json:"userId"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	ImageURLs   []string  `db:"images_urls" json:"imageUrls"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

type AssignedReport struct {
	ID             string    `db:"id" json:"id"`
	ReportID       string    `db:"report_id" json:"reportId"`
	OrganizationID string    `db:"organization_id" json:"organizationId"`
	UserID         string    `db:"user_id" json:"userId"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

type EscalatedReport struct {
	ID        string    `db:"id" json:"id"`
	ReportID  string    `db:"report_id" json:"reportId"`
	AgencyID  string    `db:"agency_id" json:"agencyId"`
	UserID    string    `db:"user_id" json:"userId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// ReportFilter narrows report listings. Zero values are ignored.
type ReportFilter struct {
	Status ReportStatus `form:"status"`
	UserID string       `form:"user"`
	From   *time.Time   `form:"from"`
	To     *time.Time   `form:"to"`
	Query  string       `form:"q"`
	Limit  uint64       `form:"limit"`
}

type AssignmentMetrics struct {
	Total    int `db:"total" json:"total"`
	Resolved int `db:"resolved" json:"resolved"`
	Rejected int `db:"rejected" json:"rejected"`
}
