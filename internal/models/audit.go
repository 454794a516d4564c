package models

import "time"

// Audit actions recorded by services.
const (
	AuditActionLogin            = "LOGIN"
	AuditActionStudentCreate    = "STUDENT_CREATE"
	AuditActionStudentUpdate    = "STUDENT_UPDATE"
	AuditActionStudentDelete    = "STUDENT_DELETE"
	AuditActionTeacherCreate    = "TEACHER_CREATE"
	AuditActionTeacherUpdate    = "TEACHER_UPDATE"
	AuditActionTeacherDelete    = "TEACHER_DELETE"
	AuditActionCourseCreate     = "COURSE_CREATE"
	AuditActionCourseUpdate     = "COURSE_UPDATE"
	AuditActionCourseDelete     = "COURSE_DELETE"
	AuditActionEnrollmentCreate = "ENROLLMENT_CREATE"
	AuditActionEnrollmentGrade  = "ENROLLMENT_GRADE"
	AuditActionEnrollmentDelete = "ENROLLMENT_DELETE"
)

// AuditLog records a mutation or login for traceability. Writes are
// best-effort and never fail the originating operation.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  string    `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
