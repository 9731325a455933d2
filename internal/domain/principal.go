package domain

import "github.com/google/uuid"

// Principal is the authenticated caller as resolved by the identity provider.
type Principal struct {
	AccountID uuid.UUID
	OfficeID  *uuid.UUID
	Role      string
	Name      string
	Active    bool
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// MemberOf reports whether the principal acts on behalf of officeID.
func (p Principal) MemberOf(officeID uuid.UUID) bool {
	return p.OfficeID != nil && *p.OfficeID == officeID
}
