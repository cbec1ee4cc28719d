package shared

// Role is the coarse-grained permission level attached to a user.
type Role string

const (
	// RoleAdmin may manage users and templates.
	RoleAdmin Role = "admin"
	// RoleUser is the default role for every registration after the first.
	RoleUser Role = "user"
)

// ParseRole maps a stored role string onto a Role, defaulting to user.
// Records written before role assignment completed have no role at all;
// every reader treats those as plain users.
func ParseRole(s string) Role {
	if s == string(RoleAdmin) {
		return RoleAdmin
	}
	return RoleUser
}

// Valid reports whether the role is one of the two known values.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}
