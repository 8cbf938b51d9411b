package auth

// Role represents a staff role.
type Role string

const (
	// RoleReader is field staff: submits meter readings, views consumers.
	RoleReader Role = "reader"
	// RoleCashier processes payments and confirms readings at the counter.
	RoleCashier Role = "cashier"
	// RoleAdmin manages settings, waives penalties and runs sweeps.
	RoleAdmin Role = "admin"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleReader, RoleCashier, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleAtLeast returns true when role satisfies required role.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleReader:
		return 1
	case RoleCashier:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}
