package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupanel/school-portal-api/internal/models"
)

// TeacherRepository handles persistence of teacher accounts and profiles.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs the repository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

const teacherDetailColumns = `u.id, u.username, u.full_name, t.department, t.title, t.email, u.created_at, u.updated_at`

// Create inserts the account row and its profile extension transactionally.
func (r *TeacherRepository) Create(ctx context.Context, user *models.User, profile *models.TeacherProfile) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.Role = models.RoleTeacher
	user.CreatedAt = now
	user.UpdatedAt = now
	profile.UserID = user.ID

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create teacher: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const userQuery = `INSERT INTO users (id, username, password_hash, full_name, role, created_at, updated_at)
        VALUES (:id, :username, :password_hash, :full_name, :role, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, userQuery, user); err != nil {
		return fmt.Errorf("create teacher account: %w", err)
	}

	const profileQuery = `INSERT INTO teachers (user_id, department, title, email) VALUES (:user_id, :department, :title, :email)`
	if _, err := tx.NamedExecContext(ctx, profileQuery, profile); err != nil {
		return fmt.Errorf("create teacher profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create teacher: %w", err)
	}
	return nil
}

// FindDetailByID returns the joined account+profile projection.
func (r *TeacherRepository) FindDetailByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM users u JOIN teachers t ON t.user_id = u.id WHERE u.id = $1`, teacherDetailColumns)
	var detail models.TeacherDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher by id: %w", err)
	}
	return &detail, nil
}

// List returns every teacher projection.
func (r *TeacherRepository) List(ctx context.Context) ([]models.TeacherDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM users u JOIN teachers t ON t.user_id = u.id ORDER BY u.created_at DESC`, teacherDetailColumns)
	var teachers []models.TeacherDetail
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// Exists reports whether a teacher profile exists for the id.
func (r *TeacherRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT 1 FROM teachers WHERE user_id = $1 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teacher exists: %w", err)
	}
	return true, nil
}

// Update writes the account and profile rows transactionally.
func (r *TeacherRepository) Update(ctx context.Context, user *models.User, profile *models.TeacherProfile) error {
	user.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update teacher: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const userQuery = `UPDATE users SET username = :username, password_hash = :password_hash, full_name = :full_name, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, userQuery, user); err != nil {
		return fmt.Errorf("update teacher account: %w", err)
	}

	const profileQuery = `UPDATE teachers SET department = :department, title = :title, email = :email WHERE user_id = :user_id`
	if _, err := tx.NamedExecContext(ctx, profileQuery, profile); err != nil {
		return fmt.Errorf("update teacher profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update teacher: %w", err)
	}
	return nil
}
