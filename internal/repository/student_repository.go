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

// StudentRepository handles persistence of student accounts and profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentDetailColumns = `u.id, u.username, u.full_name, s.age, s.major, u.created_at, u.updated_at`

// Create inserts the account row and its profile extension in a single
// transaction so both exist or neither does.
func (r *StudentRepository) Create(ctx context.Context, user *models.User, profile *models.StudentProfile) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.Role = models.RoleStudent
	user.CreatedAt = now
	user.UpdatedAt = now
	profile.UserID = user.ID

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create student: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const userQuery = `INSERT INTO users (id, username, password_hash, full_name, role, created_at, updated_at)
        VALUES (:id, :username, :password_hash, :full_name, :role, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, userQuery, user); err != nil {
		return fmt.Errorf("create student account: %w", err)
	}

	const profileQuery = `INSERT INTO students (user_id, age, major) VALUES (:user_id, :age, :major)`
	if _, err := tx.NamedExecContext(ctx, profileQuery, profile); err != nil {
		return fmt.Errorf("create student profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create student: %w", err)
	}
	return nil
}

// FindDetailByID returns the joined account+profile projection.
func (r *StudentRepository) FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM users u JOIN students s ON s.user_id = u.id WHERE u.id = $1`, studentDetailColumns)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by id: %w", err)
	}
	return &detail, nil
}

// List returns every student projection.
func (r *StudentRepository) List(ctx context.Context) ([]models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM users u JOIN students s ON s.user_id = u.id ORDER BY u.created_at DESC`, studentDetailColumns)
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// Exists reports whether a student profile exists for the id.
func (r *StudentRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT 1 FROM students WHERE user_id = $1 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student exists: %w", err)
	}
	return true, nil
}

// Update writes the account and profile rows transactionally. Callers
// resolve partial-update semantics against the loaded record first.
func (r *StudentRepository) Update(ctx context.Context, user *models.User, profile *models.StudentProfile) error {
	user.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update student: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const userQuery = `UPDATE users SET username = :username, password_hash = :password_hash, full_name = :full_name, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, userQuery, user); err != nil {
		return fmt.Errorf("update student account: %w", err)
	}

	const profileQuery = `UPDATE students SET age = :age, major = :major WHERE user_id = :user_id`
	if _, err := tx.NamedExecContext(ctx, profileQuery, profile); err != nil {
		return fmt.Errorf("update student profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update student: %w", err)
	}
	return nil
}
