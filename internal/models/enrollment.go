package models

import "time"

// Enrollment ties a student to a course. The (student, course) pair is
// unique; grade is nil while ungraded.
type Enrollment struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Grade     *string   `db:"grade" json:"grade"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail joins student and course context onto an enrollment row.
type EnrollmentDetail struct {
	Enrollment
	StudentName     string  `db:"student_name" json:"student_name"`
	StudentMajor    *string `db:"student_major" json:"student_major,omitempty"`
	CourseName      string  `db:"course_name" json:"course_name"`
	CourseTeacherID string  `db:"course_teacher_id" json:"course_teacher_id"`
}

// EnrollmentFilter restricts enrollment listings. Role scoping fills
// exactly one of the two fields for non-admin callers.
type EnrollmentFilter struct {
	StudentID string
	TeacherID string
	CourseID  string
}
