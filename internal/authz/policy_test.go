package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edupanel/school-portal-api/internal/models"
)

func TestDecideAdminBypassesEverything(t *testing.T) {
	resources := []Resource{ResourceCourse, ResourceEnrollment, ResourceStudentProfile, ResourceTeacherProfile}
	actions := []Action{ActionCreate, ActionRead, ActionReadAll, ActionUpdate, ActionDelete}
	for _, res := range resources {
		for _, act := range actions {
			assert.NoError(t, Decide(models.RoleAdmin, "admin-1", act, res, Ownership{}), "resource %s action %s", res, act)
		}
	}
}

func TestDecideCourse(t *testing.T) {
	tests := []struct {
		name    string
		role    models.UserRole
		actorID string
		action  Action
		own     Ownership
		allowed bool
	}{
		{"student can read", models.RoleStudent, "s1", ActionRead, Ownership{}, true},
		{"teacher can list", models.RoleTeacher, "t1", ActionReadAll, Ownership{}, true},
		{"teacher can create", models.RoleTeacher, "t1", ActionCreate, Ownership{CourseTeacherID: "t1"}, true},
		{"student cannot create", models.RoleStudent, "s1", ActionCreate, Ownership{}, false},
		{"owning teacher can update", models.RoleTeacher, "t1", ActionUpdate, Ownership{CourseTeacherID: "t1"}, true},
		{"other teacher cannot update", models.RoleTeacher, "t2", ActionUpdate, Ownership{CourseTeacherID: "t1"}, false},
		{"owning teacher can delete", models.RoleTeacher, "t1", ActionDelete, Ownership{CourseTeacherID: "t1"}, true},
		{"other teacher cannot delete", models.RoleTeacher, "t2", ActionDelete, Ownership{CourseTeacherID: "t1"}, false},
		{"student cannot delete", models.RoleStudent, "s1", ActionDelete, Ownership{CourseTeacherID: "t1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Decide(tt.role, tt.actorID, tt.action, ResourceCourse, tt.own)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDecideEnrollment(t *testing.T) {
	tests := []struct {
		name    string
		role    models.UserRole
		actorID string
		action  Action
		own     Ownership
		allowed bool
	}{
		{"student enrolls self", models.RoleStudent, "s1", ActionCreate, Ownership{EnrollmentStudentID: "s1"}, true},
		{"student cannot enroll another", models.RoleStudent, "s1", ActionCreate, Ownership{EnrollmentStudentID: "s2"}, false},
		{"teacher cannot create", models.RoleTeacher, "t1", ActionCreate, Ownership{EnrollmentStudentID: "s1"}, false},
		{"student reads own row", models.RoleStudent, "s1", ActionRead, Ownership{EnrollmentStudentID: "s1"}, true},
		{"student cannot read another row", models.RoleStudent, "s1", ActionRead, Ownership{EnrollmentStudentID: "s2"}, false},
		{"teacher reads own-course row", models.RoleTeacher, "t1", ActionRead, Ownership{CourseTeacherID: "t1"}, true},
		{"teacher cannot read cross-course row", models.RoleTeacher, "t1", ActionRead, Ownership{CourseTeacherID: "t2"}, false},
		{"teacher grades own course", models.RoleTeacher, "t1", ActionUpdate, Ownership{CourseTeacherID: "t1"}, true},
		{"teacher cannot grade cross-course", models.RoleTeacher, "t1", ActionUpdate, Ownership{CourseTeacherID: "t2"}, false},
		{"student cannot grade", models.RoleStudent, "s1", ActionUpdate, Ownership{EnrollmentStudentID: "s1"}, false},
		{"teacher cannot delete", models.RoleTeacher, "t1", ActionDelete, Ownership{CourseTeacherID: "t1"}, false},
		{"student cannot delete", models.RoleStudent, "s1", ActionDelete, Ownership{EnrollmentStudentID: "s1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Decide(tt.role, tt.actorID, tt.action, ResourceEnrollment, tt.own)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDecideProfiles(t *testing.T) {
	assert.NoError(t, Decide(models.RoleStudent, "s1", ActionRead, ResourceStudentProfile, Ownership{ProfileUserID: "s1"}))
	assert.NoError(t, Decide(models.RoleStudent, "s1", ActionUpdate, ResourceStudentProfile, Ownership{ProfileUserID: "s1"}))
	assert.Error(t, Decide(models.RoleStudent, "s1", ActionRead, ResourceStudentProfile, Ownership{ProfileUserID: "s2"}))
	assert.Error(t, Decide(models.RoleTeacher, "t1", ActionRead, ResourceStudentProfile, Ownership{ProfileUserID: "s1"}))

	assert.NoError(t, Decide(models.RoleTeacher, "t1", ActionUpdate, ResourceTeacherProfile, Ownership{ProfileUserID: "t1"}))
	assert.Error(t, Decide(models.RoleTeacher, "t1", ActionUpdate, ResourceTeacherProfile, Ownership{ProfileUserID: "t2"}))
	assert.Error(t, Decide(models.RoleStudent, "s1", ActionRead, ResourceTeacherProfile, Ownership{ProfileUserID: "t1"}))
}
