package service

import "github.com/vibast-solutions/ms-go-tasks/app/entity"

// Principal is the authenticated identity resolved from a valid token.
type Principal struct {
	ID    uint64
	Email string
	Role  entity.Role
}

// OwnsResource is the ownership-authorization rule: a principal may touch a
// resource iff it owns it. Callers surface a mismatch as not-found, never as
// forbidden, so non-owners cannot confirm the resource exists.
func OwnsResource(ownerID, principalID uint64) bool {
	return ownerID == principalID
}

// HasRole is the typed capability check for role-gated operations.
func HasRole(p *Principal, role entity.Role) bool {
	return p != nil && p.Role == role
}
