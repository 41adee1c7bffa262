package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/creatia-api/internal/dto"
	"github.com/noah-isme/creatia-api/internal/models"
	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[int64]*models.User
	nextID    int64
	deleted   []int64
	auditLogs []*models.AuditLog
	auditErr  error
}

func newMockUserRepo(users ...models.User) *mockUserRepo {
	repo := &mockUserRepo{users: map[int64]*models.User{}, nextID: 100}
	for i := range users {
		u := users[i]
		repo.users[u.ID] = &u
	}
	return repo
}

func (m *mockUserRepo) List(ctx context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) find(match func(u *models.User) bool) (*models.User, error) {
	for _, u := range m.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Username == username })
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == email })
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	m.nextID++
	user.ID = m.nextID
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if m.auditErr != nil {
		return m.auditErr
	}
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

// recordingCascade implements every cascade store and records call order.
type recordingCascade struct {
	calls    []string
	stats    []models.UserTaskStats
	taskIDs  []int64
	paths    []string
	failMail error
}

func (c *recordingCascade) StatsByAssignee(ctx context.Context, today time.Time) ([]models.UserTaskStats, error) {
	return c.stats, nil
}

func (c *recordingCascade) ListIDsByUser(ctx context.Context, exec sqlx.ExtContext, userID int64) ([]int64, error) {
	c.calls = append(c.calls, "tasks.list")
	return c.taskIDs, nil
}

func (c *recordingCascade) Delete(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]string, error) {
	c.calls = append(c.calls, "tasks.delete")
	return c.paths, nil
}

type purgerFunc func(ctx context.Context, exec sqlx.ExtContext, userID int64) error

func (f purgerFunc) DeleteByUser(ctx context.Context, exec sqlx.ExtContext, userID int64) error {
	return f(ctx, exec, userID)
}

type detacherFunc func(ctx context.Context, exec sqlx.ExtContext, userID int64) error

func (f detacherFunc) DetachUser(ctx context.Context, exec sqlx.ExtContext, userID int64) error {
	return f(ctx, exec, userID)
}

func (c *recordingCascade) build() UserCascade {
	return UserCascade{
		Tasks: c,
		Mails: purgerFunc(func(context.Context, sqlx.ExtContext, int64) error {
			c.calls = append(c.calls, "mails")
			return c.failMail
		}),
		Chat: purgerFunc(func(context.Context, sqlx.ExtContext, int64) error {
			c.calls = append(c.calls, "chat")
			return nil
		}),
		Projects: detacherFunc(func(context.Context, sqlx.ExtContext, int64) error {
			c.calls = append(c.calls, "projects")
			return nil
		}),
	}
}

func strPtr(s string) *string { return &s }

func TestUserServiceListOrdersCards(t *testing.T) {
	repo := newMockUserRepo(
		models.User{ID: 1, Username: "zed", Role: models.RoleUser},
		models.User{ID: 2, Username: "bob", Role: models.RoleResearcher},
		models.User{ID: 3, Username: "amy", FullName: strPtr("Zara"), Role: models.RoleResearcher},
		models.User{ID: 4, Username: "root", Role: models.RoleAdmin},
		models.User{ID: 5, Username: "sam", Role: models.RoleSupervisor},
		models.User{ID: 6, Username: "ali", Role: models.UserRole("intern")},
	)
	cascade := &recordingCascade{stats: []models.UserTaskStats{{UserID: 2, Assigned: 4, Completed: 3, Overdue: 1}}}
	svc := NewUserService(repo, cascade.build(), nil, newStubFiles(), nil, nil)

	users, err := svc.List(context.Background())
	require.NoError(t, err)
	var order []int64
	for _, u := range users {
		order = append(order, u.ID)
	}
	assert.Equal(t, []int64{4, 5, 2, 3, 6, 1}, order)

	bob := users[2]
	require.NotNil(t, bob.Stats)
	assert.Equal(t, 4, bob.Stats.Assigned)
	assert.Equal(t, 75.0, bob.Stats.OnTimePct)
	assert.Equal(t, 0, users[0].Stats.Assigned)
}

func TestUserServiceCreate(t *testing.T) {
	meta := models.LoginRequest{IP: "10.0.0.1", UserAgent: "test"}

	t.Run("requires fields", func(t *testing.T) {
		svc := NewUserService(newMockUserRepo(), (&recordingCascade{}).build(), nil, nil, nil, nil)
		_, err := svc.Create(context.Background(), dto.CreateUserRequest{Username: "x", Email: " "}, 1, meta)
		assert.Equal(t, "All fields required.", appErrors.FromError(err).Message)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		repo := newMockUserRepo(models.User{ID: 1, Username: "taken", Email: "taken@example.com"})
		svc := NewUserService(repo, (&recordingCascade{}).build(), nil, nil, nil, nil)
		_, err := svc.Create(context.Background(), dto.CreateUserRequest{Username: "new", Email: "taken@example.com", Password: "pw"}, 1, meta)
		assert.Equal(t, appErrors.ErrConflict.Status, appErrors.FromError(err).Status)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		svc := NewUserService(newMockUserRepo(), (&recordingCascade{}).build(), nil, nil, nil, nil)
		_, err := svc.Create(context.Background(), dto.CreateUserRequest{Username: "n", Email: "n@example.com", Password: "pw", Role: "root"}, 1, meta)
		assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
	})

	t.Run("creates with default role and audit", func(t *testing.T) {
		repo := newMockUserRepo()
		svc := NewUserService(repo, (&recordingCascade{}).build(), nil, nil, nil, nil)
		resp, err := svc.Create(context.Background(), dto.CreateUserRequest{Username: " nina ", Email: "nina@example.com", Password: "secret"}, 1, meta)
		require.NoError(t, err)
		assert.Equal(t, models.RoleUser, resp.Role)
		assert.True(t, resp.IsActive)
		stored := repo.users[resp.ID]
		assert.Equal(t, "nina", stored.Username)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret")))
		require.Len(t, repo.auditLogs, 1)
		assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
		assert.Equal(t, "10.0.0.1", repo.auditLogs[0].IPAddress)
	})

	t.Run("audit failure does not fail the request", func(t *testing.T) {
		repo := newMockUserRepo()
		repo.auditErr = errors.New("audit down")
		svc := NewUserService(repo, (&recordingCascade{}).build(), nil, nil, nil, nil)
		_, err := svc.Create(context.Background(), dto.CreateUserRequest{Username: "n", Email: "n@example.com", Password: "pw"}, 1, meta)
		assert.NoError(t, err)
	})
}

func TestUserServiceUpdate(t *testing.T) {
	repo := newMockUserRepo(
		models.User{ID: 1, Username: "rita", Email: "rita@example.com", Role: models.RoleResearcher, IsActive: true, PhoneNumber: strPtr("123")},
		models.User{ID: 2, Username: "reza", Email: "reza@example.com", Role: models.RoleResearcher, IsActive: true},
	)
	svc := NewUserService(repo, (&recordingCascade{}).build(), nil, nil, nil, nil)
	ctx := context.Background()

	inactive := dto.Flag(false)
	resp, err := svc.Update(ctx, 1, dto.UpdateUserRequest{
		Username:    strPtr(""),
		PhoneNumber: strPtr(" "),
		Role:        strPtr("supervisor"),
		IsActive:    &inactive,
	}, 9, models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, "rita", resp.Username)
	assert.Nil(t, resp.PhoneNumber)
	assert.Equal(t, models.RoleSupervisor, resp.Role)
	assert.False(t, resp.IsActive)
	require.Len(t, repo.auditLogs, 1)
	assert.JSONEq(t, `{"username":"rita","email":"rita@example.com","role":"researcher","is_active":true}`, string(repo.auditLogs[0].OldValues))

	_, err = svc.Update(ctx, 1, dto.UpdateUserRequest{Email: strPtr("reza@example.com")}, 9, models.LoginRequest{})
	assert.Equal(t, appErrors.ErrConflict.Status, appErrors.FromError(err).Status)

	_, err = svc.Update(ctx, 1, dto.UpdateUserRequest{Role: strPtr("owner")}, 9, models.LoginRequest{})
	assert.Equal(t, "Invalid role.", appErrors.FromError(err).Message)

	_, err = svc.Update(ctx, 404, dto.UpdateUserRequest{}, 9, models.LoginRequest{})
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
}

func TestUserServiceDeleteCascades(t *testing.T) {
	repo := newMockUserRepo(models.User{
		ID:           2,
		Username:     "rita",
		AvatarPath:   strPtr("avatars/rita.png"),
		ProfileFiles: models.ProfileFiles{"proposal": {Filename: "p.pdf", StoredPath: "profile/p.pdf"}},
	})
	cascade := &recordingCascade{taskIDs: []int64{5, 6}, paths: []string{"5_1_a.txt"}}
	files := newStubFiles()
	db, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	svc := NewUserService(repo, cascade.build(), db, files, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), 2, 1, models.LoginRequest{}))
	assert.Equal(t, []string{"tasks.list", "tasks.delete", "mails", "chat", "projects"}, cascade.calls)
	assert.Equal(t, []int64{2}, repo.deleted)
	assert.ElementsMatch(t, []string{"5_1_a.txt", "avatars/rita.png", "profile/p.pdf"}, files.removed)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserDelete, repo.auditLogs[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserServiceDeleteRollsBack(t *testing.T) {
	repo := newMockUserRepo(models.User{ID: 2, Username: "rita"})
	cascade := &recordingCascade{failMail: errors.New("boom")}
	files := newStubFiles()
	db, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	svc := NewUserService(repo, cascade.build(), db, files, nil, nil)

	err := svc.Delete(context.Background(), 2, 1, models.LoginRequest{})
	assert.Equal(t, appErrors.ErrInternal.Status, appErrors.FromError(err).Status)
	assert.Empty(t, repo.deleted)
	assert.Empty(t, files.removed)
	assert.Empty(t, repo.auditLogs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
