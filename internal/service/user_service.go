package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/creatia-api/internal/dto"
	"github.com/noah-isme/creatia-api/internal/models"
	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context) ([]models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id int64) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type userTaskRepository interface {
	StatsByAssignee(ctx context.Context, today time.Time) ([]models.UserTaskStats, error)
	ListIDsByUser(ctx context.Context, exec sqlx.ExtContext, userID int64) ([]int64, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]string, error)
}

// userDataPurger removes rows a user owns in another aggregate.
type userDataPurger interface {
	DeleteByUser(ctx context.Context, exec sqlx.ExtContext, userID int64) error
}

type projectDetacher interface {
	DetachUser(ctx context.Context, exec sqlx.ExtContext, userID int64) error
}

// UserCascade groups the stores cleaned up when a user is deleted.
type UserCascade struct {
	Tasks    userTaskRepository
	Mails    userDataPurger
	Chat     userDataPurger
	Projects projectDetacher
}

// roleDisplayOrder ranks roles for user cards. Unlisted roles sort last.
var roleDisplayOrder = map[models.UserRole]int{
	models.RoleAdmin:      0,
	models.RoleSupervisor: 1,
	models.RoleResearcher: 2,
}

// UserService handles the user directory and admin user management.
type UserService struct {
	repo      userRepository
	cascade   UserCascade
	db        txProvider
	files     fileStore
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, cascade UserCascade, db txProvider, files fileStore, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, cascade: cascade, db: db, files: files, validator: validate, logger: logger, now: time.Now}
}

// List returns every user ordered for display (admins, supervisors,
// researchers, then everyone else; by name within a role) with task stats.
func (s *UserService) List(ctx context.Context) ([]dto.UserResponse, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list users")
	}
	stats, err := s.cascade.Tasks.StatsByAssignee(ctx, dateOnly(s.now()))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load task stats")
	}
	byUser := make(map[int64]models.UserTaskStats, len(stats))
	for _, st := range stats {
		byUser[st.UserID] = st
	}

	sortUsersForCards(users)
	out := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		st := byUser[users[i].ID]
		st.UserID = users[i].ID
		st.Compute()
		resp := userResponse(&users[i], s.files)
		resp.Stats = &st
		out = append(out, resp)
	}
	return out, nil
}

func sortUsersForCards(users []models.User) {
	rank := func(u *models.User) int {
		if r, ok := roleDisplayOrder[u.Role]; ok {
			return r
		}
		return len(roleDisplayOrder)
	}
	name := func(u *models.User) string {
		n := stringValue(u.FullName)
		if n == "" {
			n = u.Username
		}
		if n == "" {
			n = u.Email
		}
		return strings.ToLower(n)
	}
	sort.SliceStable(users, func(i, j int) bool {
		ri, rj := rank(&users[i]), rank(&users[j])
		if ri != rj {
			return ri < rj
		}
		return name(&users[i]) < name(&users[j])
	})
}

// Create adds a user on behalf of an admin. Role defaults to user.
func (s *UserService) Create(ctx context.Context, req dto.CreateUserRequest, actorID int64, meta models.LoginRequest) (*dto.UserResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Password = strings.TrimSpace(req.Password)
	req.Role = strings.TrimSpace(req.Role)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, appErrors.Validation("All fields required.")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}
	if err := s.ensureUnique(ctx, 0, req.Username, req.Email, "User exists."); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}
	role := models.RoleUser
	if req.Role != "" {
		role = models.UserRole(req.Role)
	}
	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		FullName:     trimmedOrNil(req.FullName),
		PhoneNumber:  trimmedOrNil(req.PhoneNumber),
		Role:         role,
		IsActive:     true,
		PasswordHash: string(passwordHash),
	}
	if user.FullName == nil {
		user.FullName = &user.Username
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Internal(err, "failed to create user")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"id": user.ID, "username": user.Username, "role": user.Role})
	s.audit(ctx, models.AuditActionUserCreate, actorID, user.ID, nil, newPayload, meta)
	resp := userResponse(user, s.files)
	return &resp, nil
}

// Update applies an admin patch. Blank username or email keep the old value.
func (s *UserService) Update(ctx context.Context, id int64, req dto.UpdateUserRequest, actorID int64, meta models.LoginRequest) (*dto.UserResponse, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	oldPayload, _ := json.Marshal(map[string]interface{}{"username": user.Username, "email": user.Email, "role": user.Role, "is_active": user.IsActive})

	if req.Username != nil {
		if v := strings.TrimSpace(*req.Username); v != "" {
			user.Username = v
		}
	}
	if req.Email != nil {
		if v := strings.TrimSpace(*req.Email); v != "" {
			if err := s.validator.Var(v, "email"); err != nil {
				return nil, appErrors.Validation("Invalid email address.")
			}
			user.Email = v
		}
	}
	if req.PhoneNumber != nil {
		user.PhoneNumber = trimmedOrNil(*req.PhoneNumber)
	}
	if req.Role != nil {
		if v := strings.TrimSpace(*req.Role); v != "" {
			if err := s.validator.Var(v, "oneof=admin supervisor researcher user"); err != nil {
				return nil, appErrors.Validation("Invalid role.")
			}
			user.Role = models.UserRole(v)
		}
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to hash password")
		}
		user.PasswordHash = string(hash)
	}
	if req.IsActive != nil {
		user.IsActive = bool(*req.IsActive)
	}
	if err := s.ensureUnique(ctx, user.ID, user.Username, user.Email, "Username or email already in use."); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Internal(err, "failed to update user")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"username": user.Username, "email": user.Email, "role": user.Role, "is_active": user.IsActive})
	s.audit(ctx, models.AuditActionUserUpdate, actorID, user.ID, oldPayload, newPayload, meta)
	resp := userResponse(user, s.files)
	return &resp, nil
}

// Delete removes a user and everything that references it in one transaction:
// tasks assigned to or created by the user with their attachments, mail,
// chat messages and cursors, and project assignments. Stored files are
// removed after commit.
func (s *UserService) Delete(ctx context.Context, id int64, actorID int64, meta models.LoginRequest) error {
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	var removed []string
	err = runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		taskIDs, err := s.cascade.Tasks.ListIDsByUser(ctx, tx, id)
		if err != nil {
			return appErrors.Internal(err, "failed to list user tasks")
		}
		paths, err := s.cascade.Tasks.Delete(ctx, tx, taskIDs)
		if err != nil {
			return appErrors.Internal(err, "failed to delete user tasks")
		}
		removed = paths
		if err := s.cascade.Mails.DeleteByUser(ctx, tx, id); err != nil {
			return appErrors.Internal(err, "failed to delete user mail")
		}
		if err := s.cascade.Chat.DeleteByUser(ctx, tx, id); err != nil {
			return appErrors.Internal(err, "failed to delete user chat")
		}
		if err := s.cascade.Projects.DetachUser(ctx, tx, id); err != nil {
			return appErrors.Internal(err, "failed to detach user from projects")
		}
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return appErrors.Internal(err, "failed to delete user")
		}
		return nil
	})
	if err != nil {
		return err
	}

	removed = append(removed, user.StoredPaths()...)
	if s.files != nil && len(removed) > 0 {
		s.files.Remove(ctx, removed...)
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"username": user.Username, "role": user.Role})
	s.audit(ctx, models.AuditActionUserDelete, actorID, user.ID, oldPayload, nil, meta)
	return nil
}

func (s *UserService) load(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found.")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}

// ensureUnique rejects a username or email held by a user other than selfID.
func (s *UserService) ensureUnique(ctx context.Context, selfID int64, username, email, message string) error {
	lookups := []func(context.Context, string) (*models.User, error){s.repo.FindByUsername, s.repo.FindByEmail}
	for i, value := range []string{username, email} {
		existing, err := lookups[i](ctx, value)
		switch {
		case err == nil && existing.ID != selfID:
			return appErrors.Clone(appErrors.ErrConflict, message)
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return appErrors.Internal(err, "failed to check user uniqueness")
		}
	}
	return nil
}

func (s *UserService) audit(ctx context.Context, action string, actorID, userID int64, oldValues, newValues []byte, meta models.LoginRequest) {
	resourceID := formatID(userID)
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "users",
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", action), zap.Error(err))
	}
}

// userResponse renders a user with signed links to its stored files.
func userResponse(user *models.User, files fileStore) dto.UserResponse {
	resp := dto.UserResponse{
		ID:             user.ID,
		Username:       user.Username,
		Email:          user.Email,
		FullName:       user.FullName,
		PhoneNumber:    user.PhoneNumber,
		Education:      user.Education,
		Responsibility: user.Responsibility,
		Role:           user.Role,
		IsActive:       user.IsActive,
		CreatedAt:      user.CreatedAt,
		LastLogin:      user.LastLogin,
		AvatarScale:    user.AvatarScale,
		AvatarOffsetX:  user.AvatarOffsetX,
		AvatarOffsetY:  user.AvatarOffsetY,
		ProfileFiles:   make(map[string]dto.FileLink, len(user.ProfileFiles)),
	}
	if files == nil {
		return resp
	}
	subject := userFileSubject(user.ID)
	if p := stringValue(user.AvatarPath); p != "" {
		resp.AvatarURL = files.Link(subject, p)
	}
	if p := stringValue(user.ResumePath); p != "" {
		resp.ResumeURL = files.Link(subject, p)
	}
	for slot, f := range user.ProfileFiles {
		resp.ProfileFiles[slot] = dto.FileLink{Filename: f.Filename, URL: files.Link(subject, f.StoredPath)}
	}
	return resp
}

func userFileSubject(id int64) string {
	return "user:" + formatID(id)
}
