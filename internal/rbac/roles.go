package rbac

// Role names. Keep these stable; they are stored on users and in tokens.
const (
	RoleAdmin    = "ADMIN"
	RoleStaff    = "STAFF"
	RoleProvider = "PROVIDER"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleStaff, RoleProvider:
		return true
	default:
		return false
	}
}
