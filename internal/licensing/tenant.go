// internal/licensing/tenant.go
package licensing

import (
	"fmt"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleOwner      Role = "owner"
	RoleMember     Role = "member"
	RoleSystem     Role = "system"
)

// TenantContext is the caller identity for a single operation. It is built
// from verified token claims only and passed explicitly to every call.
type TenantContext struct {
	TenantID uuid.UUID `json:"tenant_id"`
	UserID   string    `json:"user_id"`
	Role     Role      `json:"role"`
}

// NewTenantContext validates raw claim values.
func NewTenantContext(tenantID, userID, role string) (TenantContext, error) {
	tid, err := uuid.Parse(tenantID)
	if err != nil {
		return TenantContext{}, fmt.Errorf("%w: tenant_id claim is not a uuid", ErrValidation)
	}
	if userID == "" {
		return TenantContext{}, fmt.Errorf("%w: user_id claim is empty", ErrValidation)
	}
	if role == "" {
		return TenantContext{}, fmt.Errorf("%w: role claim is empty", ErrValidation)
	}
	return TenantContext{TenantID: tid, UserID: userID, Role: Role(role)}, nil
}

// Elevated roles may run lifecycle admin actions on any tenant's license.
func (tc TenantContext) Elevated() bool {
	return tc.Role == RoleAdmin || tc.Role == RoleSuperAdmin
}

// CanView reports whether the caller may read a license owned by tenantID.
func (tc TenantContext) CanView(tenantID uuid.UUID) bool {
	return tc.Elevated() || tc.TenantID == tenantID
}

// RequireElevated is the role gate run before any admin transition.
func (tc TenantContext) RequireElevated(action string) error {
	if !tc.Elevated() {
		return fmt.Errorf("%w: role %q may not %s", ErrForbidden, tc.Role, action)
	}
	return nil
}
