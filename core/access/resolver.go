package access

import "strings"

// HasPermission reports whether the role's configured grants include the
// exact permission token. There is no wildcard matching; an unrecognized
// role (session metadata is untrusted) simply has no permissions.
func HasPermission(role Role, perm Permission) bool {
	rc, ok := roleConfigs[role]
	if !ok {
		return false
	}
	parts := strings.SplitN(string(perm), ":", 2)
	if len(parts) != 2 {
		return false
	}
	for _, action := range rc.Grants[parts[0]] {
		if action == parts[1] {
			return true
		}
	}
	return false
}

// HasAnyPermission is a logical OR over HasPermission.
func HasAnyPermission(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if HasPermission(role, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions is a logical AND over HasPermission.
func HasAllPermissions(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if !HasPermission(role, p) {
			return false
		}
	}
	return true
}

// CanAccessDashboard reports whether the role may open the given dashboard.
func CanAccessDashboard(role Role, d Dashboard) bool {
	perm, ok := dashboardPerms[d]
	if !ok {
		return false
	}
	return HasPermission(role, perm)
}

// RoleIsHigherThan reports whether a sits strictly above b in the fixed
// ordering [guest, student, teacher, admin].
func RoleIsHigherThan(a, b Role) bool {
	return RolePriority(a) > RolePriority(b)
}

// EffectiveRole maps arbitrary session metadata to a usable role: anything
// unrecognized degrades to guest rather than erroring.
func EffectiveRole(token string) Role {
	if role := Role(token); ValidRole(role) {
		return role
	}
	return RoleGuest
}
