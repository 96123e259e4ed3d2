package auth

// Role is the access level carried in a token. Supervisors sit between
// operators and admins and are the default escalation audience.
type Role string

const (
	RoleViewer     Role = "viewer"
	RoleOperator   Role = "operator"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

var roleRanks = map[Role]int{
	RoleViewer:     1,
	RoleOperator:   2,
	RoleSupervisor: 3,
	RoleAdmin:      4,
}

// NormalizeRole maps a raw claim value to a known role.
func NormalizeRole(value string) (Role, bool) {
	role := Role(value)
	if _, ok := roleRanks[role]; !ok {
		return "", false
	}
	return role, true
}

// RoleAtLeast reports whether role grants at least the required level.
func RoleAtLeast(role, required Role) bool {
	return roleRanks[role] >= roleRanks[required]
}
