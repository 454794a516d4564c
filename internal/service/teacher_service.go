package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edupanel/school-portal-api/internal/authz"
	"github.com/edupanel/school-portal-api/internal/models"
	"github.com/edupanel/school-portal-api/internal/repository"
	appErrors "github.com/edupanel/school-portal-api/pkg/errors"
)

type teacherRepository interface {
	Create(ctx context.Context, user *models.User, profile *models.TeacherProfile) error
	FindDetailByID(ctx context.Context, id string) (*models.TeacherDetail, error)
	List(ctx context.Context) ([]models.TeacherDetail, error)
	Update(ctx context.Context, user *models.User, profile *models.TeacherProfile) error
}

// CreateTeacherRequest creates an account plus teacher profile.
type CreateTeacherRequest struct {
	Username   string  `json:"username" validate:"required"`
	Password   string  `json:"password" validate:"required,min=6"`
	FullName   string  `json:"full_name" validate:"required"`
	Department *string `json:"department"`
	Title      *string `json:"title"`
	Email      *string `json:"email" validate:"omitempty,email"`
}

// UpdateTeacherRequest applies partial updates.
type UpdateTeacherRequest struct {
	Username   *string `json:"username"`
	Password   *string `json:"password" validate:"omitempty,min=6"`
	FullName   *string `json:"full_name"`
	Department *string `json:"department"`
	Title      *string `json:"title"`
	Email      *string `json:"email" validate:"omitempty,email"`
}

// TeacherService manages teacher accounts and profiles.
type TeacherService struct {
	repo      teacherRepository
	accounts  accountReader
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs TeacherService.
func NewTeacherService(repo teacherRepository, accounts accountReader, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, accounts: accounts, audit: audit, validator: validate, logger: logger}
}

// List returns every teacher.
func (s *TeacherService) List(ctx context.Context) ([]models.TeacherDetail, error) {
	teachers, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, nil
}

// Get returns a single teacher; teachers may only read themselves.
func (s *TeacherService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.TeacherDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if err := authz.Decide(claims.Role, claims.UserID, authz.ActionRead, authz.ResourceTeacherProfile, authz.Ownership{ProfileUserID: detail.ID}); err != nil {
		return nil, err
	}
	return detail, nil
}

// Create registers a teacher account with its profile extension.
func (s *TeacherService) Create(ctx context.Context, req CreateTeacherRequest, actorID string, meta models.RequestMeta) (*models.TeacherDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create teacher payload")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: string(passwordHash),
		FullName:     req.FullName,
	}
	profile := &models.TeacherProfile{Department: req.Department, Title: req.Title, Email: req.Email}

	if err := s.repo.Create(ctx, user, profile); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}

	s.writeAudit(ctx, actorID, models.AuditActionTeacherCreate, user.ID, map[string]interface{}{"username": user.Username}, meta)

	detail, err := s.repo.FindDetailByID(ctx, user.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return detail, nil
}

// Update applies partial changes to the account and profile rows.
func (s *TeacherService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateTeacherRequest, meta models.RequestMeta) (*models.TeacherDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update teacher payload")
	}

	user, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher account")
	}
	if user.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	if err := authz.Decide(claims.Role, claims.UserID, authz.ActionUpdate, authz.ResourceTeacherProfile, authz.Ownership{ProfileUserID: user.ID}); err != nil {
		return nil, err
	}

	current, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		user.PasswordHash = string(hash)
	}

	profile := &models.TeacherProfile{UserID: id, Department: current.Department, Title: current.Title, Email: current.Email}
	if req.Department != nil {
		profile.Department = req.Department
	}
	if req.Title != nil {
		profile.Title = req.Title
	}
	if req.Email != nil {
		profile.Email = req.Email
	}

	if err := s.repo.Update(ctx, user, profile); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}

	s.writeAudit(ctx, claims.UserID, models.AuditActionTeacherUpdate, id, map[string]interface{}{"username": user.Username}, meta)

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return detail, nil
}

// Delete removes the teacher account; the profile follows via cascade.
func (s *TeacherService) Delete(ctx context.Context, id string, actorID string, meta models.RequestMeta) error {
	if err := s.accounts.Delete(ctx, id, models.RoleTeacher); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete teacher")
	}
	s.writeAudit(ctx, actorID, models.AuditActionTeacherDelete, id, nil, meta)
	return nil
}

func (s *TeacherService) writeAudit(ctx context.Context, actorID, action, resourceID string, values map[string]interface{}, meta models.RequestMeta) {
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
		Resource:   "teachers",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record teacher audit log", zap.Error(err))
	}
}
