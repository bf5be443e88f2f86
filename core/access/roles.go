package access

// Role is the single role carried in a user's session metadata.
// Roles are totally ordered: guest < student < teacher < admin.
type Role string

const (
	RoleGuest   Role = "guest"
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Permission is an opaque "resource:action" token. Permissions carry no
// hierarchy of their own; only roles are ordered.
type Permission string

const (
	PermCourseRead         Permission = "course:read"
	PermCourseCreate       Permission = "course:create"
	PermCourseUpdate       Permission = "course:update"
	PermCourseDelete       Permission = "course:delete"
	PermQuizRead           Permission = "quiz:read"
	PermQuizCreate         Permission = "quiz:create"
	PermQuizUpdate         Permission = "quiz:update"
	PermQuizDelete         Permission = "quiz:delete"
	PermQuizAttempt        Permission = "quiz:attempt"
	PermQuizGrade          Permission = "quiz:grade"
	PermContentRead        Permission = "content:read"
	PermContentManage      Permission = "content:manage"
	PermRegistrationCreate Permission = "registration:create"
	PermRegistrationManage Permission = "registration:manage"
	PermUserRead           Permission = "user:read"
	PermUserManage         Permission = "user:manage"
	PermAnalyticsView      Permission = "analytics:view"
	PermDashboardStudent   Permission = "dashboard:student"
	PermDashboardTeacher   Permission = "dashboard:teacher"
	PermDashboardAdmin     Permission = "dashboard:admin"
)

// Dashboard identifies one of the app's dashboards.
type Dashboard string

const (
	DashboardStudent Dashboard = "student"
	DashboardTeacher Dashboard = "teacher"
	DashboardAdmin   Dashboard = "admin"
)

// RoleConfig describes one role's display info and its permission grants,
// keyed by resource with the list of allowed actions.
type RoleConfig struct {
	Name        string
	Description string
	Grants      map[string][]string
}

var (
	AllRoles = []Role{RoleGuest, RoleStudent, RoleTeacher, RoleAdmin}

	rolePriorities = map[Role]int{
		RoleGuest:   0,
		RoleStudent: 1,
		RoleTeacher: 2,
		RoleAdmin:   3,
	}

	dashboardPerms = map[Dashboard]Permission{
		DashboardStudent: PermDashboardStudent,
		DashboardTeacher: PermDashboardTeacher,
		DashboardAdmin:   PermDashboardAdmin,
	}

	// roleConfigs is built once here and never mutated at runtime. Admin's
	// grants enumerate every defined permission explicitly; nothing is
	// inherited between roles.
	roleConfigs = map[Role]RoleConfig{
		RoleGuest: {
			Name:        "Guest",
			Description: "Unauthenticated visitor browsing the public catalog",
			Grants: map[string][]string{
				"course":  {"read"},
				"content": {"read"},
			},
		},
		RoleStudent: {
			Name:        "Student",
			Description: "Enrolled learner taking courses and quizzes",
			Grants: map[string][]string{
				"course":       {"read"},
				"content":      {"read"},
				"quiz":         {"read", "attempt"},
				"registration": {"create"},
				"dashboard":    {"student"},
			},
		},
		RoleTeacher: {
			Name:        "Teacher",
			Description: "Instructor authoring quizzes and grading attempts",
			Grants: map[string][]string{
				"course":    {"read", "create", "update"},
				"content":   {"read", "manage"},
				"quiz":      {"read", "create", "update", "delete", "grade"},
				"user":      {"read"},
				"dashboard": {"teacher"},
			},
		},
		RoleAdmin: {
			Name:        "Administrator",
			Description: "Full access to every resource",
			Grants: map[string][]string{
				"course":       {"read", "create", "update", "delete"},
				"content":      {"read", "manage"},
				"quiz":         {"read", "create", "update", "delete", "attempt", "grade"},
				"registration": {"create", "manage"},
				"user":         {"read", "manage"},
				"analytics":    {"view"},
				"dashboard":    {"student", "teacher", "admin"},
			},
		},
	}
)

// Config returns the static configuration for a role; ok is false for an
// unrecognized role token.
func Config(role Role) (RoleConfig, bool) {
	rc, ok := roleConfigs[role]
	return rc, ok
}

// RolePriority reports a role's position in the fixed ordering; unknown
// roles sort below guest.
func RolePriority(role Role) int {
	if p, ok := rolePriorities[role]; ok {
		return p
	}
	return -1
}

// ValidRole reports whether the token names a configured role.
func ValidRole(role Role) bool {
	_, ok := roleConfigs[role]
	return ok
}
