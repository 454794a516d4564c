package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupanel/school-portal-api/internal/authz"
	"github.com/edupanel/school-portal-api/internal/models"
	"github.com/edupanel/school-portal-api/internal/repository"
	appErrors "github.com/edupanel/school-portal-api/pkg/errors"
	"github.com/edupanel/school-portal-api/pkg/export"
)

// Export formats for enrollment reports.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsByStudentAndCourse(ctx context.Context, studentID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateGrade(ctx context.Context, id, grade string) error
	Delete(ctx context.Context, id string) error
}

type studentExistenceChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// CreateEnrollmentRequest enrolls a student into a course. StudentID is
// required for admins; students may omit it, and supplying someone
// else's id is rejected.
type CreateEnrollmentRequest struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id" validate:"required"`
}

// GradeEnrollmentRequest records or overwrites a grade.
type GradeEnrollmentRequest struct {
	Grade string `json:"grade" validate:"required"`
}

// ExportResult carries a rendered enrollment report.
type ExportResult struct {
	ContentType string
	Filename    string
	Body        []byte
}

// EnrollmentService orchestrates enrollment workflows.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentExistenceChecker
	courses   courseReader
	audit     auditWriter
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentExistenceChecker, courses courseReader, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		students:  students,
		courses:   courses,
		audit:     audit,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
}

// scopeFilter narrows the listing to what the caller may see: students
// see their own enrollments, teachers the enrollments of their courses.
func scopeFilter(claims *models.JWTClaims, filter models.EnrollmentFilter) models.EnrollmentFilter {
	switch claims.Role {
	case models.RoleStudent:
		filter.StudentID = claims.UserID
		filter.TeacherID = ""
	case models.RoleTeacher:
		filter.TeacherID = claims.UserID
		filter.StudentID = ""
	}
	return filter
}

// List returns enrollments visible to the caller.
func (s *EnrollmentService) List(ctx context.Context, claims *models.JWTClaims, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	rows, err := s.repo.List(ctx, scopeFilter(claims, filter))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return rows, nil
}

// Get returns one enrollment if the caller may read it.
func (s *EnrollmentService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	ownership := authz.Ownership{
		EnrollmentStudentID: detail.StudentID,
		CourseTeacherID:     detail.CourseTeacherID,
	}
	if err := authz.Decide(claims.Role, claims.UserID, authz.ActionRead, authz.ResourceEnrollment, ownership); err != nil {
		return nil, err
	}
	return detail, nil
}

// Create enrolls a student into a course. The (student, course) pair is
// unique; a second attempt returns a conflict.
func (s *EnrollmentService) Create(ctx context.Context, claims *models.JWTClaims, req CreateEnrollmentRequest, meta models.RequestMeta) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create enrollment payload")
	}

	studentID := req.StudentID
	if claims.Role == models.RoleStudent {
		if studentID != "" && studentID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only enroll themselves")
		}
		studentID = claims.UserID
	}

	if err := authz.Decide(claims.Role, claims.UserID, authz.ActionCreate, authz.ResourceEnrollment, authz.Ownership{EnrollmentStudentID: studentID}); err != nil {
		return nil, err
	}

	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}

	exists, err := s.students.Exists(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	enrolled, err := s.repo.ExistsByStudentAndCourse(ctx, studentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if enrolled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this course")
	}

	enrollment := &models.Enrollment{StudentID: studentID, CourseID: req.CourseID}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		// Concurrent create for the same pair lands here.
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this course")
		}
		if repository.IsForeignKeyViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student or course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.writeAudit(ctx, claims.UserID, models.AuditActionEnrollmentCreate, enrollment.ID, map[string]interface{}{"student_id": studentID, "course_id": req.CourseID}, meta)

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Grade records a grade on an enrollment. Teachers may grade only
// enrollments of their own courses; grades overwrite earlier values.
func (s *EnrollmentService) Grade(ctx context.Context, claims *models.JWTClaims, id string, req GradeEnrollmentRequest, meta models.RequestMeta) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	ownership := authz.Ownership{
		EnrollmentStudentID: detail.StudentID,
		CourseTeacherID:     detail.CourseTeacherID,
	}
	if err := authz.Decide(claims.Role, claims.UserID, authz.ActionUpdate, authz.ResourceEnrollment, ownership); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateGrade(ctx, id, req.Grade); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade")
	}

	s.writeAudit(ctx, claims.UserID, models.AuditActionEnrollmentGrade, id, map[string]interface{}{"grade": req.Grade}, meta)

	updated, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return updated, nil
}

// Delete removes an enrollment. Admin only; the rbac gate enforces the
// role, the repository reports missing rows.
func (s *EnrollmentService) Delete(ctx context.Context, claims *models.JWTClaims, id string, meta models.RequestMeta) error {
	if err := authz.Decide(claims.Role, claims.UserID, authz.ActionDelete, authz.ResourceEnrollment, authz.Ownership{}); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}

	s.writeAudit(ctx, claims.UserID, models.AuditActionEnrollmentDelete, id, nil, meta)
	return nil
}

// Export renders the caller's visible enrollments as CSV or PDF.
func (s *EnrollmentService) Export(ctx context.Context, claims *models.JWTClaims, filter models.EnrollmentFilter, format string) (*ExportResult, error) {
	rows, err := s.List(ctx, claims, filter)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{
		Headers: []string{"Student", "Major", "Course", "Grade", "Enrolled At"},
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, row := range rows {
		grade := "-"
		if row.Grade != nil {
			grade = *row.Grade
		}
		major := "-"
		if row.StudentMajor != nil {
			major = *row.StudentMajor
		}
		data.Rows = append(data.Rows, []string{
			row.StudentName,
			major,
			row.CourseName,
			grade,
			row.CreatedAt.Format("2006-01-02"),
		})
	}

	switch format {
	case ExportFormatCSV:
		body, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{ContentType: "text/csv", Filename: "enrollments.csv", Body: body}, nil
	case ExportFormatPDF:
		body, err := s.pdf.Render(data, "Enrollment Report")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{ContentType: "application/pdf", Filename: "enrollments.pdf", Body: body}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func (s *EnrollmentService) writeAudit(ctx context.Context, actorID, action, resourceID string, values map[string]interface{}, meta models.RequestMeta) {
	if s.audit == nil {
		return
	}
	var payload []byte
	if values != nil {
		payload, _ = json.Marshal(values)
	}
	if err := s.audit.Create(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "enrollments",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record enrollment audit log", zap.Error(err))
	}
}
