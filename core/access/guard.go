package access

// Subject is what the guard knows about the caller: whether a session
// exists and which role it resolved to.
type Subject struct {
	Authenticated bool
	Role          Role
}

// Requirement gates a protected region. Zero-valued fields are not checked.
type Requirement struct {
	Role        Role
	Permission  Permission
	Permissions []Permission
	Dashboard   Dashboard
}

// Reason identifies which requirement failed, so the caller can name the
// missing grant in its fallback.
type Reason string

const (
	ReasonAuthRequired       Reason = "authentication required"
	ReasonInsufficientRole   Reason = "insufficient role"
	ReasonMissingPermission  Reason = "insufficient permission"
	ReasonMissingPermissions Reason = "insufficient permissions"
	ReasonDashboardDenied    Reason = "dashboard access denied"
)

// Decision is the guard's verdict. Missing lists the permission token(s)
// the subject lacks when Reason is one of the permission failures.
type Decision struct {
	Allowed bool
	Reason  Reason
	Missing []Permission
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason Reason, missing ...Permission) Decision {
	return Decision{Reason: reason, Missing: missing}
}

// Check evaluates the requirement against the subject in a fixed order,
// short-circuiting on the first failure. It is a pure predicate: no state,
// no side effects; callers re-evaluate it whenever the session changes.
func Check(sub Subject, req Requirement) Decision {
	// a non-guest role requirement implies an authenticated session
	if req.Role != "" && req.Role != RoleGuest && !sub.Authenticated {
		return deny(ReasonAuthRequired)
	}

	// a strictly higher role satisfies a lower role's requirement
	if req.Role != "" && sub.Role != req.Role {
		if !RoleIsHigherThan(sub.Role, req.Role) {
			return deny(ReasonInsufficientRole)
		}
	}

	if req.Permission != "" && !HasPermission(sub.Role, req.Permission) {
		return deny(ReasonMissingPermission, req.Permission)
	}

	if len(req.Permissions) > 0 {
		var missing []Permission
		for _, p := range req.Permissions {
			if !HasPermission(sub.Role, p) {
				missing = append(missing, p)
			}
		}
		if len(missing) > 0 {
			return deny(ReasonMissingPermissions, missing...)
		}
	}

	if req.Dashboard != "" && !CanAccessDashboard(sub.Role, req.Dashboard) {
		return deny(ReasonDashboardDenied)
	}

	return allow()
}
