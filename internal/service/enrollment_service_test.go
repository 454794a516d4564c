package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edupanel/school-portal-api/internal/models"
	appErrors "github.com/edupanel/school-portal-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]*models.EnrollmentDetail
	students    map[string]bool
	courses     map[string]*models.Course
	listFilter  models.EnrollmentFilter
	createErr   error
	deleted     []string
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	m.listFilter = filter
	var out []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.TeacherID != "" && e.CourseTeacherID != filter.TeacherID {
			continue
		}
		if filter.CourseID != "" && e.CourseID != filter.CourseID {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return detail, nil
}

func (m *mockEnrollmentRepo) ExistsByStudentAndCourse(ctx context.Context, studentID, courseID string) (bool, error) {
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if enrollment.ID == "" {
		enrollment.ID = "new-enrollment"
	}
	course := m.courses[enrollment.CourseID]
	m.enrollments[enrollment.ID] = &models.EnrollmentDetail{
		Enrollment:      *enrollment,
		StudentName:     "Student",
		CourseName:      course.Name,
		CourseTeacherID: course.TeacherID,
	}
	return nil
}

func (m *mockEnrollmentRepo) UpdateGrade(ctx context.Context, id, grade string) error {
	detail, ok := m.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	detail.Grade = &grade
	return nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.enrollments, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockEnrollmentRepo) Exists(ctx context.Context, id string) (bool, error) {
	return m.students[id], nil
}

func (m *mockEnrollmentRepo) FindCourseByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return course, nil
}

// courseFinder adapts the mock to the course reader dependency.
type courseFinder struct{ repo *mockEnrollmentRepo }

func (f courseFinder) FindByID(ctx context.Context, id string) (*models.Course, error) {
	return f.repo.FindCourseByID(ctx, id)
}

func gradeOf(detail *models.EnrollmentDetail) string {
	if detail.Grade == nil {
		return ""
	}
	return *detail.Grade
}

func newEnrollmentFixture() (*EnrollmentService, *mockEnrollmentRepo, *mockAuditWriter) {
	grade := "B"
	repo := &mockEnrollmentRepo{
		enrollments: map[string]*models.EnrollmentDetail{
			"e1": {
				Enrollment:      models.Enrollment{ID: "e1", StudentID: "s1", CourseID: "c1"},
				StudentName:     "Alice",
				CourseName:      "Algebra",
				CourseTeacherID: "t1",
			},
			"e2": {
				Enrollment:      models.Enrollment{ID: "e2", StudentID: "s2", CourseID: "c2", Grade: &grade},
				StudentName:     "Carol",
				CourseName:      "Biology",
				CourseTeacherID: "t2",
			},
		},
		students: map[string]bool{"s1": true, "s2": true},
		courses: map[string]*models.Course{
			"c1": {ID: "c1", Name: "Algebra", TeacherID: "t1"},
			"c2": {ID: "c2", Name: "Biology", TeacherID: "t2"},
		},
	}
	audit := &mockAuditWriter{}
	svc := NewEnrollmentService(repo, repo, courseFinder{repo}, audit, validator.New(), zap.NewNop())
	return svc, repo, audit
}

func TestEnrollmentCreateStudentSelf(t *testing.T) {
	svc, _, audit := newEnrollmentFixture()

	detail, err := svc.Create(context.Background(), studentClaims("s1"), CreateEnrollmentRequest{CourseID: "c2"}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "s1", detail.StudentID)
	assert.Equal(t, "c2", detail.CourseID)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionEnrollmentCreate, audit.logs[0].Action)
}

func TestEnrollmentCreateStudentForAnotherForbidden(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Create(context.Background(), studentClaims("s1"), CreateEnrollmentRequest{StudentID: "s2", CourseID: "c2"}, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentCreateDuplicatePairConflict(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Create(context.Background(), studentClaims("s1"), CreateEnrollmentRequest{CourseID: "c1"}, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentCreateUniqueViolationMapsToConflict(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()
	// Pre-check passes but a concurrent insert wins the race.
	repo.createErr = &pq.Error{Code: "23505", Constraint: "enrollments_student_id_course_id_key"}

	_, err := svc.Create(context.Background(), studentClaims("s1"), CreateEnrollmentRequest{CourseID: "c2"}, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentCreateUnknownCourseNotFound(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Create(context.Background(), studentClaims("s1"), CreateEnrollmentRequest{CourseID: "ghost"}, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentCreateAdminOnBehalf(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	detail, err := svc.Create(context.Background(), adminClaims(), CreateEnrollmentRequest{StudentID: "s2", CourseID: "c1"}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "s2", detail.StudentID)
}

func TestEnrollmentCreateAdminUnknownStudentNotFound(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Create(context.Background(), adminClaims(), CreateEnrollmentRequest{StudentID: "ghost", CourseID: "c1"}, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentListScopedByRole(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()

	rows, err := svc.List(context.Background(), studentClaims("s1"), models.EnrollmentFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "s1", repo.listFilter.StudentID)

	rows, err = svc.List(context.Background(), teacherClaims("t2"), models.EnrollmentFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "t2", repo.listFilter.TeacherID)
	assert.Empty(t, repo.listFilter.StudentID)

	rows, err = svc.List(context.Background(), adminClaims(), models.EnrollmentFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestEnrollmentListStudentCannotWidenFilter(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()

	// A student asking for another student's rows still gets their own.
	_, err := svc.List(context.Background(), studentClaims("s1"), models.EnrollmentFilter{StudentID: "s2"})
	require.NoError(t, err)
	assert.Equal(t, "s1", repo.listFilter.StudentID)
}

func TestEnrollmentGetAuthorization(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Get(context.Background(), studentClaims("s1"), "e1")
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), studentClaims("s1"), "e2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(context.Background(), teacherClaims("t1"), "e1")
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), studentClaims("s1"), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentGradeOwnCourse(t *testing.T) {
	svc, _, audit := newEnrollmentFixture()

	detail, err := svc.Grade(context.Background(), teacherClaims("t1"), "e1", GradeEnrollmentRequest{Grade: "A"}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "A", gradeOf(detail))
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionEnrollmentGrade, audit.logs[0].Action)
}

func TestEnrollmentGradeOverwrite(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	detail, err := svc.Grade(context.Background(), teacherClaims("t2"), "e2", GradeEnrollmentRequest{Grade: "A"}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "A", gradeOf(detail))
}

func TestEnrollmentGradeCrossCourseForbidden(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Grade(context.Background(), teacherClaims("t1"), "e2", GradeEnrollmentRequest{Grade: "A"}, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentGradeMissingNotFound(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Grade(context.Background(), teacherClaims("t1"), "ghost", GradeEnrollmentRequest{Grade: "A"}, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentDeleteAdminOnly(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()

	err := svc.Delete(context.Background(), teacherClaims("t1"), "e1", models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), adminClaims(), "e1", models.RequestMeta{}))
	assert.Equal(t, []string{"e1"}, repo.deleted)
}

func TestEnrollmentDeleteMissingNotFound(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	err := svc.Delete(context.Background(), adminClaims(), "ghost", models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentExportCSV(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	result, err := svc.Export(context.Background(), teacherClaims("t1"), models.EnrollmentFilter{}, ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Contains(t, string(result.Body), "Algebra")
	assert.NotContains(t, string(result.Body), "Biology")
}

func TestEnrollmentExportUnknownFormat(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Export(context.Background(), adminClaims(), models.EnrollmentFilter{}, "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
