package bidding

import (
	"github.com/google/uuid"

	"github.com/cargomesh/freightbid/internal/entity"
)

// Principal is the already-authenticated caller of an engine operation.
// Identity resolution happens upstream; the engine only re-validates
// role and ownership against it.
type Principal struct {
	ID   uuid.UUID
	Role entity.Role
}

// IsOrg reports whether the principal acts as a buying organization.
func (p Principal) IsOrg() bool { return p.Role == entity.RoleOrg }

// IsVendor reports whether the principal acts as a bidding vendor.
func (p Principal) IsVendor() bool { return p.Role == entity.RoleVendor }

// IsAdmin reports whether the principal has administrator access.
func (p Principal) IsAdmin() bool { return p.Role == entity.RoleAdmin }
