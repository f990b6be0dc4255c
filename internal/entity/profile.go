package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role identifies what an account is allowed to do in the marketplace.
type Role string

const (
	RoleOrg    Role = "ORG"
	RoleVendor Role = "VENDOR"
	RoleAdmin  Role = "ADMIN"
)

// ValidRole reports whether r is one of the known marketplace roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleOrg, RoleVendor, RoleAdmin:
		return true
	default:
		return false
	}
}

// Profile is the account record backing a marketplace principal.
// Authentication itself happens upstream; this row carries the role and
// the contact details edited from the profile screen.
type Profile struct {
	bun.BaseModel `bun:"table:profiles"`

	ID           uuid.UUID `bun:"id,pk,type:uuid"`
	Role         Role      `bun:"role,notnull"`
	CompanyName  string    `bun:"company_name"`
	ContactName  string    `bun:"contact_name"`
	ContactPhone string    `bun:"contact_phone"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
