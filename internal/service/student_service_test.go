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
	"golang.org/x/crypto/bcrypt"

	"github.com/edupanel/school-portal-api/internal/models"
	appErrors "github.com/edupanel/school-portal-api/pkg/errors"
)

type mockStudentRepo struct {
	details   map[string]*models.StudentDetail
	users     map[string]*models.User
	createErr error
	updateErr error
	deleteErr error
	deleted   []string
}

func (m *mockStudentRepo) Create(ctx context.Context, user *models.User, profile *models.StudentProfile) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = "new-student"
	profile.UserID = user.ID
	if m.details == nil {
		m.details = make(map[string]*models.StudentDetail)
	}
	m.details[user.ID] = &models.StudentDetail{ID: user.ID, Username: user.Username, FullName: user.FullName, Age: profile.Age, Major: profile.Major}
	return nil
}

func (m *mockStudentRepo) FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	detail, ok := m.details[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return detail, nil
}

func (m *mockStudentRepo) List(ctx context.Context) ([]models.StudentDetail, error) {
	var out []models.StudentDetail
	for _, d := range m.details {
		out = append(out, *d)
	}
	return out, nil
}

func (m *mockStudentRepo) Update(ctx context.Context, user *models.User, profile *models.StudentProfile) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.details[user.ID] = &models.StudentDetail{ID: user.ID, Username: user.Username, FullName: user.FullName, Age: profile.Age, Major: profile.Major}
	return nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string, role models.UserRole) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Username: "root", Role: models.RoleAdmin}
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Username: "student", Role: models.RoleStudent}
}

func newStudentFixture() (*StudentService, *mockStudentRepo, *mockAuditWriter) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	repo := &mockStudentRepo{
		details: map[string]*models.StudentDetail{
			"s1": {ID: "s1", Username: "alice", FullName: "Alice"},
		},
		users: map[string]*models.User{
			"s1": {ID: "s1", Username: "alice", PasswordHash: string(hash), FullName: "Alice", Role: models.RoleStudent},
			"t1": {ID: "t1", Username: "prof", Role: models.RoleTeacher},
		},
	}
	audit := &mockAuditWriter{}
	svc := NewStudentService(repo, repo, audit, validator.New(), zap.NewNop())
	return svc, repo, audit
}

func TestStudentCreateDuplicateUsernameConflict(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	repo.createErr = &pq.Error{Code: "23505", Constraint: "users_username_key"}

	_, err := svc.Create(context.Background(), CreateStudentRequest{Username: "alice", Password: "secret123", FullName: "Alice"}, "admin-1", models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentCreateHashesPassword(t *testing.T) {
	svc, _, audit := newStudentFixture()

	detail, err := svc.Create(context.Background(), CreateStudentRequest{Username: "bob", Password: "secret123", FullName: "Bob"}, "admin-1", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "bob", detail.Username)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionStudentCreate, audit.logs[0].Action)
}

func TestStudentGetSelfAllowed(t *testing.T) {
	svc, _, _ := newStudentFixture()

	detail, err := svc.Get(context.Background(), studentClaims("s1"), "s1")
	require.NoError(t, err)
	assert.Equal(t, "alice", detail.Username)
}

func TestStudentGetForeignForbidden(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	repo.details["s2"] = &models.StudentDetail{ID: "s2", Username: "carol", FullName: "Carol"}

	_, err := svc.Get(context.Background(), studentClaims("s1"), "s2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStudentGetMissingNotFound(t *testing.T) {
	svc, _, _ := newStudentFixture()

	_, err := svc.Get(context.Background(), studentClaims("s1"), "ghost")
	require.Error(t, err)
	// Absent entity reports NotFound before any ownership verdict.
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentUpdateSelfPartial(t *testing.T) {
	svc, _, _ := newStudentFixture()
	major := "Physics"

	detail, err := svc.Update(context.Background(), studentClaims("s1"), "s1", UpdateStudentRequest{Major: &major}, models.RequestMeta{})
	require.NoError(t, err)
	require.NotNil(t, detail.Major)
	assert.Equal(t, "Physics", *detail.Major)
	assert.Equal(t, "alice", detail.Username)
}

func TestStudentUpdateForeignForbidden(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	repo.users["s2"] = &models.User{ID: "s2", Username: "carol", Role: models.RoleStudent}
	repo.details["s2"] = &models.StudentDetail{ID: "s2", Username: "carol"}
	name := "Hacked"

	_, err := svc.Update(context.Background(), studentClaims("s1"), "s2", UpdateStudentRequest{FullName: &name}, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStudentUpdateWrongRoleNotFound(t *testing.T) {
	svc, _, _ := newStudentFixture()
	name := "X"

	// t1 exists but is a teacher account; the student surface reports NotFound.
	_, err := svc.Update(context.Background(), adminClaims(), "t1", UpdateStudentRequest{FullName: &name}, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentDeleteMissingNotFound(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	repo.deleteErr = sql.ErrNoRows

	err := svc.Delete(context.Background(), "ghost", "admin-1", models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentDelete(t *testing.T) {
	svc, repo, audit := newStudentFixture()

	require.NoError(t, svc.Delete(context.Background(), "s1", "admin-1", models.RequestMeta{}))
	assert.Equal(t, []string{"s1"}, repo.deleted)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionStudentDelete, audit.logs[0].Action)
}
