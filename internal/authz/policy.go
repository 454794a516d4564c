// Package authz implements the centralized authorization policy as a pure
// decision function. It performs no I/O: callers load the target entity,
// collect the ownership facts, and ask for a verdict. Keeping the rules in
// one place replaces the per-handler role branching of earlier revisions.
package authz

import (
	"github.com/edupanel/school-portal-api/internal/models"
	appErrors "github.com/edupanel/school-portal-api/pkg/errors"
)

// Action enumerates the operations the policy rules on.
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionReadAll Action = "read-all"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
)

// Resource enumerates the protected resource kinds.
type Resource string

const (
	ResourceCourse         Resource = "course"
	ResourceEnrollment     Resource = "enrollment"
	ResourceStudentProfile Resource = "student-profile"
	ResourceTeacherProfile Resource = "teacher-profile"
)

// Ownership carries the resource-specific facts a decision may need.
// Only the fields relevant to the resource kind are consulted.
type Ownership struct {
	// CourseTeacherID is the owning teacher of the course under decision,
	// or of the enrollment's course.
	CourseTeacherID string
	// EnrollmentStudentID is the student the enrollment belongs to.
	EnrollmentStudentID string
	// ProfileUserID is the account owning the profile under decision.
	ProfileUserID string
}

// Decide returns nil when the actor may perform action on the resource,
// and ErrForbidden otherwise. Callers must resolve existence first so that
// a missing entity surfaces as NotFound rather than Forbidden.
func Decide(role models.UserRole, actorID string, action Action, resource Resource, own Ownership) error {
	if role == models.RoleAdmin {
		return nil
	}

	allowed := false
	switch resource {
	case ResourceCourse:
		allowed = decideCourse(role, actorID, action, own)
	case ResourceEnrollment:
		allowed = decideEnrollment(role, actorID, action, own)
	case ResourceStudentProfile:
		allowed = decideStudentProfile(role, actorID, action, own)
	case ResourceTeacherProfile:
		allowed = decideTeacherProfile(role, actorID, action, own)
	}

	if !allowed {
		return appErrors.ErrForbidden
	}
	return nil
}

// Courses are readable by every authenticated role; mutations require
// ownership and only teachers create them for themselves.
func decideCourse(role models.UserRole, actorID string, action Action, own Ownership) bool {
	switch action {
	case ActionRead, ActionReadAll:
		return true
	case ActionCreate:
		return role == models.RoleTeacher
	case ActionUpdate, ActionDelete:
		return role == models.RoleTeacher && own.CourseTeacherID == actorID
	}
	return false
}

// Enrollment creation belongs to students (self only); teachers grade what
// they teach and never create or delete rows. Deletion is admin-only.
func decideEnrollment(role models.UserRole, actorID string, action Action, own Ownership) bool {
	switch action {
	case ActionCreate:
		return role == models.RoleStudent && own.EnrollmentStudentID == actorID
	case ActionRead:
		if role == models.RoleStudent {
			return own.EnrollmentStudentID == actorID
		}
		if role == models.RoleTeacher {
			return own.CourseTeacherID == actorID
		}
	case ActionReadAll:
		// Non-admin listings are scoped to the caller's own rows.
		return role == models.RoleStudent || role == models.RoleTeacher
	case ActionUpdate:
		return role == models.RoleTeacher && own.CourseTeacherID == actorID
	case ActionDelete:
		return false
	}
	return false
}

func decideStudentProfile(role models.UserRole, actorID string, action Action, own Ownership) bool {
	if role != models.RoleStudent {
		return false
	}
	switch action {
	case ActionRead, ActionUpdate:
		return own.ProfileUserID == actorID
	}
	return false
}

func decideTeacherProfile(role models.UserRole, actorID string, action Action, own Ownership) bool {
	if role != models.RoleTeacher {
		return false
	}
	switch action {
	case ActionRead, ActionUpdate:
		return own.ProfileUserID == actorID
	}
	return false
}
