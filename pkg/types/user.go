package types

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleOfficer   Role = "officer"
	RoleOrgRep    Role = "org_rep"
	RoleAgencyRep Role = "agency_rep"
	RoleAdmin     Role = "admin"
)

type Profile struct {
	ID         string    `db:"id" json:"id"`
	FirstName  *string   `db:"first_name" json:"firstName,omitempty"`
	LastName   *string   `db:"last_name" json:"lastName,omitempty"`
	Email      *string   `db:"email" json:"email,omitempty"`
	Role       Role      `db:"role" json:"role"`
	IsApproved *bool     `db:"is_approved" json:"isApproved,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

func (p *Profile) HasRole(roles ...Role) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
