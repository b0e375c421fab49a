package auth

// Role grants access to groups of endpoints
type Role string

const (
	// RoleAdmin has full access, including dead-letter management
	RoleAdmin Role = "admin"

	// RoleViewer may read cost reports
	RoleViewer Role = "viewer"

	// RoleUser may submit requests and read their own records
	RoleUser Role = "user"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleViewer, RoleUser:
		return true
	default:
		return false
	}
}

// HasPermission checks if a role has permission for a required role.
// Admin has all permissions, other roles only their own.
func (r Role) HasPermission(required Role) bool {
	if r == RoleAdmin {
		return true
	}
	return r == required
}

// ParseRoles converts role names, rejecting unknown ones
func ParseRoles(names []string) ([]Role, bool) {
	roles := make([]Role, 0, len(names))
	for _, n := range names {
		r := Role(n)
		if !r.IsValid() {
			return nil, false
		}
		roles = append(roles, r)
	}
	return roles, true
}
