package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupanel/school-portal-api/internal/models"
)

func TestEnrollmentExistsByStudentAndCourse(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 LIMIT 1")).
		WithArgs("s1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByStudentAndCourse(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentExistsByStudentAndCourseAbsent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM enrollments").
		WithArgs("s1", "c9").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByStudentAndCourse(context.Background(), "s1", "c9")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEnrollmentListScopedToStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "grade", "created_at", "updated_at", "student_name", "student_major", "course_name", "course_teacher_id"}).
		AddRow("e1", "s1", "c1", nil, now, now, "Alice", "Math", "Algebra", "t1")
	mock.ExpectQuery("FROM enrollments e(.|\n)*WHERE e.student_id = \\$1").
		WithArgs("s1").
		WillReturnRows(rows)

	enrollments, err := repo.List(context.Background(), models.EnrollmentFilter{StudentID: "s1"})
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, "Algebra", enrollments[0].CourseName)
	assert.Nil(t, enrollments[0].Grade)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentCreateUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "enrollments_student_id_course_id_key"})

	err := repo.Create(context.Background(), &models.Enrollment{StudentID: "s1", CourseID: "c1"})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestEnrollmentDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "ghost")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentUpdateGrade(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET grade = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("e1", "A", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateGrade(context.Background(), "e1", "A"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
