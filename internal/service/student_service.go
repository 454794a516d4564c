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

type studentRepository interface {
	Create(ctx context.Context, user *models.User, profile *models.StudentProfile) error
	FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error)
	List(ctx context.Context) ([]models.StudentDetail, error)
	Update(ctx context.Context, user *models.User, profile *models.StudentProfile) error
}

type accountReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Delete(ctx context.Context, id string, role models.UserRole) error
}

// CreateStudentRequest creates an account plus student profile.
type CreateStudentRequest struct {
	Username string  `json:"username" validate:"required"`
	Password string  `json:"password" validate:"required,min=6"`
	FullName string  `json:"full_name" validate:"required"`
	Age      *int    `json:"age"`
	Major    *string `json:"major"`
}

// UpdateStudentRequest applies partial updates; absent fields keep their
// prior values.
type UpdateStudentRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password" validate:"omitempty,min=6"`
	FullName *string `json:"full_name"`
	Age      *int    `json:"age"`
	Major    *string `json:"major"`
}

// StudentService manages student accounts and profiles.
type StudentService struct {
	repo      studentRepository
	accounts  accountReader
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, accounts accountReader, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, accounts: accounts, audit: audit, validator: validate, logger: logger}
}

// List returns every student. Route gating restricts this to admins.
func (s *StudentService) List(ctx context.Context) ([]models.StudentDetail, error) {
	students, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// Get returns a single student. Students may only read themselves;
// a present-but-foreign profile yields Forbidden, not NotFound.
func (s *StudentService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.StudentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := authz.Decide(claims.Role, claims.UserID, authz.ActionRead, authz.ResourceStudentProfile, authz.Ownership{ProfileUserID: detail.ID}); err != nil {
		return nil, err
	}
	return detail, nil
}

// Create registers a student account with its profile extension.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest, actorID string, meta models.RequestMeta) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create student payload")
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
	profile := &models.StudentProfile{Age: req.Age, Major: req.Major}

	if err := s.repo.Create(ctx, user, profile); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	s.writeAudit(ctx, actorID, models.AuditActionStudentCreate, user.ID, map[string]interface{}{"username": user.Username}, meta)

	detail, err := s.repo.FindDetailByID(ctx, user.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return detail, nil
}

// Update applies partial changes to the account and profile rows.
func (s *StudentService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateStudentRequest, meta models.RequestMeta) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update student payload")
	}

	user, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student account")
	}
	if user.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if err := authz.Decide(claims.Role, claims.UserID, authz.ActionUpdate, authz.ResourceStudentProfile, authz.Ownership{ProfileUserID: user.ID}); err != nil {
		return nil, err
	}

	current, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
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

	profile := &models.StudentProfile{UserID: id, Age: current.Age, Major: current.Major}
	if req.Age != nil {
		profile.Age = req.Age
	}
	if req.Major != nil {
		profile.Major = req.Major
	}

	if err := s.repo.Update(ctx, user, profile); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	s.writeAudit(ctx, claims.UserID, models.AuditActionStudentUpdate, id, map[string]interface{}{"username": user.Username}, meta)

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return detail, nil
}

// Delete removes the student account; the profile follows via cascade.
func (s *StudentService) Delete(ctx context.Context, id string, actorID string, meta models.RequestMeta) error {
	if err := s.accounts.Delete(ctx, id, models.RoleStudent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.writeAudit(ctx, actorID, models.AuditActionStudentDelete, id, nil, meta)
	return nil
}

func (s *StudentService) writeAudit(ctx context.Context, actorID, action, resourceID string, values map[string]interface{}, meta models.RequestMeta) {
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
		Resource:   "students",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record student audit log", zap.Error(err))
	}
}
