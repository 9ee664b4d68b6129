package identity

// Role is an operator's authorization level. Lifecycle transitions and
// admin surfaces are gated on it.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAnalyst Role = "analyst"
	RoleManager Role = "manager"
	RoleViewer  Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAnalyst, RoleManager, RoleViewer:
		return true
	}
	return false
}

// AnyOf reports whether r is one of the given roles.
func (r Role) AnyOf(roles ...Role) bool {
	for _, want := range roles {
		if r == want {
			return true
		}
	}
	return false
}
