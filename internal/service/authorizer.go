package service

import "strings"

// Roles recognised by the authorizer.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Actions checked through the authorizer.
const (
	ActionAssessmentManage  = "assessment.manage"
	ActionAssignmentGrade   = "assignment.grade"
	ActionAssignmentForce   = "assignment.force_submit"
	ActionStatsView         = "stats.view"
	ActionGradesView        = "grades.view"
	ActionAssignmentAttempt = "assignment.attempt"
)

// Actor is the authenticated user performing an action.
type Actor struct {
	ID   uint
	Role string
}

// Authorizer answers capability checks as a plain boolean.
type Authorizer interface {
	Can(actor Actor, action string) bool
}

type roleAuthorizer struct {
	rules map[string]map[string]struct{}
}

// NewRoleAuthorizer grants actions per role. Admins can do everything.
func NewRoleAuthorizer() Authorizer {
	staff := []string{ActionAssessmentManage, ActionAssignmentGrade, ActionAssignmentForce, ActionStatsView, ActionGradesView}
	rules := map[string]map[string]struct{}{
		RoleTeacher: toSet(staff),
		RoleStudent: toSet([]string{ActionAssignmentAttempt}),
	}
	return &roleAuthorizer{rules: rules}
}

func (a *roleAuthorizer) Can(actor Actor, action string) bool {
	role := strings.ToLower(strings.TrimSpace(actor.Role))
	if role == RoleAdmin {
		return true
	}
	actions, ok := a.rules[role]
	if !ok {
		return false
	}
	_, allowed := actions[action]
	return allowed
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}
