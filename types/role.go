package types

import "strings"

// Role is a coarse authorization level.
type Role string

const (
	RoleUser    Role = "user"
	RoleAdmin   Role = "admin"
	RoleCreator Role = "creator"
)

// ParseRole normalises raw into a Role. ok is false for unknown roles.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleCreator:
		return true
	default:
		return false
	}
}

// HasRequiredRole reports whether role is a member of required.
// An empty required set admits every valid role.
func HasRequiredRole(role Role, required ...Role) bool {
	if !role.Valid() {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if r == role {
			return true
		}
	}
	return false
}
