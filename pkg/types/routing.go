package types

import (
	"fmt"
	"strings"
	"time"
)

type CandidateType string

const (
	CandidateTypeOrganization CandidateType = "organization"
	CandidateTypeAgency       CandidateType = "agency"
)

func ParseCandidateType(s string) (CandidateType, error) {
	switch CandidateType(strings.ToLower(strings.TrimSpace(s))) {
	case CandidateTypeOrganization:
		return CandidateTypeOrganization, nil
	case CandidateTypeAgency:
		return CandidateTypeAgency, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCandidateType, s)
}

// Collection is the vector index collection holding chunks for this type.
func (t CandidateType) Collection() string {
	switch t {
	case CandidateTypeAgency:
		return "agencies"
	default:
		return "organizations"
	}
}

// RoutingCandidate is an organization or agency row. About is the long-form
// text that gets chunked and embedded.
type RoutingCandidate struct {
	ID        string        `db:"id" json:"id"`
	Type      CandidateType `db:"-" json:"type"`
	Name      string        `db:"name" json:"name"`
	Logo      *string       `db:"logo" json:"logo,omitempty"`
	About     string        `db:"about" json:"about"`
	UserID    *string       `db:"user_id" json:"userId,omitempty"`
	Latitude  *float64      `db:"latitude" json:"latitude,omitempty"`
	Longitude *float64      `db:"longitude" json:"longitude,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `db:"updated_at" json:"updatedAt"`
}

// Candidate is a ranked routing suggestion.
type Candidate struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Logo            string  `json:"logo"`
	SimilarityScore float64 `json:"similarityScore"`
}

// Representative is a row of org_reps or agency_reps.
type Representative struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"userId"`
	EntityID   string    `db:"entity_id" json:"entityId"`
	IsApproved bool      `db:"is_approved" json:"isApproved"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
