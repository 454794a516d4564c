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
)

const (
	courseListCacheKey      = "courses:list"
	courseDetailCachePrefix = "courses:detail:"
	courseCachePattern      = "courses:*"
)

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error)
	List(ctx context.Context) ([]models.CourseDetail, error)
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

type teacherExistenceChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// CreateCourseRequest creates a course. TeacherID is required for admins
// and ignored for teachers, who always own what they create.
type CreateCourseRequest struct {
	Name      string `json:"name" validate:"required"`
	TeacherID string `json:"teacher_id"`
}

// UpdateCourseRequest applies partial updates. Teacher reassignment is
// an admin operation.
type UpdateCourseRequest struct {
	Name      *string `json:"name"`
	TeacherID *string `json:"teacher_id"`
}

// CourseService orchestrates course workflows.
type CourseService struct {
	repo      courseRepository
	teachers  teacherExistenceChecker
	cache     *CacheService
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, teachers teacherExistenceChecker, cache *CacheService, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, teachers: teachers, cache: cache, audit: audit, validator: validate, logger: logger}
}

// List returns every course with teacher context, served from cache when warm.
func (s *CourseService) List(ctx context.Context) ([]models.CourseDetail, error) {
	var cached []models.CourseDetail
	if s.cache.Get(ctx, courseListCacheKey, &cached) {
		return cached, nil
	}

	courses, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	s.cache.Set(ctx, courseListCacheKey, courses)
	return courses, nil
}

// Get returns a single course with teacher context.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	var cached models.CourseDetail
	if s.cache.Get(ctx, courseDetailCachePrefix+id, &cached) {
		return &cached, nil
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	s.cache.Set(ctx, courseDetailCachePrefix+id, detail)
	return detail, nil
}

// Create registers a course owned by a teacher.
func (s *CourseService) Create(ctx context.Context, claims *models.JWTClaims, req CreateCourseRequest, meta models.RequestMeta) (*models.CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create course payload")
	}

	teacherID := req.TeacherID
	if claims.Role == models.RoleTeacher {
		// Teachers always create for themselves.
		teacherID = claims.UserID
	}

	if err := authz.Decide(claims.Role, claims.UserID, authz.ActionCreate, authz.ResourceCourse, authz.Ownership{CourseTeacherID: teacherID}); err != nil {
		return nil, err
	}

	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher_id is required")
	}

	exists, err := s.teachers.Exists(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}

	course := &models.Course{Name: req.Name, TeacherID: teacherID}
	if err := s.repo.Create(ctx, course); err != nil {
		if repository.IsForeignKeyViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.cache.Invalidate(ctx, courseCachePattern)
	s.writeAudit(ctx, claims.UserID, models.AuditActionCourseCreate, course.ID, map[string]interface{}{"name": course.Name, "teacher_id": teacherID}, meta)

	detail, err := s.repo.FindDetailByID(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return detail, nil
}

// Update renames a course or, for admins, reassigns its teacher.
func (s *CourseService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateCourseRequest, meta models.RequestMeta) (*models.CourseDetail, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if err := authz.Decide(claims.Role, claims.UserID, authz.ActionUpdate, authz.ResourceCourse, authz.Ownership{CourseTeacherID: course.TeacherID}); err != nil {
		return nil, err
	}

	if req.Name == nil && req.TeacherID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no fields to update")
	}

	if req.TeacherID != nil {
		if claims.Role != models.RoleAdmin {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may reassign a course")
		}
		exists, err := s.teachers.Exists(ctx, *req.TeacherID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher")
		}
		if !exists {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		course.TeacherID = *req.TeacherID
	}
	if req.Name != nil {
		course.Name = *req.Name
	}

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.cache.Invalidate(ctx, courseCachePattern)
	s.writeAudit(ctx, claims.UserID, models.AuditActionCourseUpdate, id, map[string]interface{}{"name": course.Name, "teacher_id": course.TeacherID}, meta)

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return detail, nil
}

// Delete removes a course owned by the caller (or any course for admins).
func (s *CourseService) Delete(ctx context.Context, claims *models.JWTClaims, id string, meta models.RequestMeta) error {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if err := authz.Decide(claims.Role, claims.UserID, authz.ActionDelete, authz.ResourceCourse, authz.Ownership{CourseTeacherID: course.TeacherID}); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}

	s.cache.Invalidate(ctx, courseCachePattern)
	s.writeAudit(ctx, claims.UserID, models.AuditActionCourseDelete, id, nil, meta)
	return nil
}

func (s *CourseService) writeAudit(ctx context.Context, actorID, action, resourceID string, values map[string]interface{}, meta models.RequestMeta) {
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
		Resource:   "courses",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record course audit log", zap.Error(err))
	}
}
