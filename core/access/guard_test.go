package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	anon := Subject{Role: RoleGuest}
	student := Subject{Authenticated: true, Role: RoleStudent}
	teacher := Subject{Authenticated: true, Role: RoleTeacher}
	admin := Subject{Authenticated: true, Role: RoleAdmin}

	tests := []struct {
		name        string
		sub         Subject
		req         Requirement
		wantAllowed bool
		wantReason  Reason
		wantMissing []Permission
	}{
		{name: "no requirements", sub: anon, req: Requirement{}, wantAllowed: true},
		{
			name: "role required, no session", sub: anon, req: Requirement{Role: RoleStudent},
			wantReason: ReasonAuthRequired,
		},
		{
			name: "guest role required, no session ok", sub: anon, req: Requirement{Role: RoleGuest},
			wantAllowed: true,
		},
		{name: "exact role", sub: student, req: Requirement{Role: RoleStudent}, wantAllowed: true},
		{
			name: "higher role overrides lower requirement", sub: admin, req: Requirement{Role: RoleTeacher},
			wantAllowed: true,
		},
		{
			name: "lower role denied", sub: student, req: Requirement{Role: RoleTeacher},
			wantReason: ReasonInsufficientRole,
		},
		{
			name: "single permission ok", sub: teacher, req: Requirement{Permission: PermQuizCreate},
			wantAllowed: true,
		},
		{
			name: "single permission missing", sub: student, req: Requirement{Permission: PermQuizCreate},
			wantReason: ReasonMissingPermission, wantMissing: []Permission{PermQuizCreate},
		},
		{
			name: "permission set ok", sub: teacher,
			req:         Requirement{Permissions: []Permission{PermQuizCreate, PermQuizGrade}},
			wantAllowed: true,
		},
		{
			name: "permission set reports full missing subset", sub: student,
			req:        Requirement{Permissions: []Permission{PermQuizRead, PermQuizCreate, PermUserManage}},
			wantReason: ReasonMissingPermissions, wantMissing: []Permission{PermQuizCreate, PermUserManage},
		},
		{
			name: "dashboard ok", sub: student, req: Requirement{Dashboard: DashboardStudent},
			wantAllowed: true,
		},
		{
			name: "dashboard denied", sub: student, req: Requirement{Dashboard: DashboardTeacher},
			wantReason: ReasonDashboardDenied,
		},
		{
			name: "role failure short-circuits permission checks", sub: student,
			req:        Requirement{Role: RoleAdmin, Permission: PermQuizRead},
			wantReason: ReasonInsufficientRole,
		},
		{
			name: "combined requirements all pass", sub: admin,
			req: Requirement{
				Role:        RoleTeacher,
				Permission:  PermQuizCreate,
				Permissions: []Permission{PermUserRead, PermUserManage},
				Dashboard:   DashboardAdmin,
			},
			wantAllowed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := Check(tt.sub, tt.req)
			assert.Equal(t, tt.wantAllowed, dec.Allowed)
			assert.Equal(t, tt.wantReason, dec.Reason)
			assert.Equal(t, tt.wantMissing, dec.Missing)
		})
	}
}

// Re-evaluating the same requirement must be side-effect free: two calls
// with the same inputs yield the same decision.
func TestCheckIsPure(t *testing.T) {
	sub := Subject{Authenticated: true, Role: RoleStudent}
	req := Requirement{Permission: PermQuizCreate}
	first := Check(sub, req)
	second := Check(sub, req)
	assert.Equal(t, first, second)
}
