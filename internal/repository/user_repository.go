package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/creatia-api/internal/models"
)

const userColumns = `id, username, email, full_name, phone_number, education, responsibility, resume_path, avatar_path,
avatar_scale, avatar_offset_x, avatar_offset_y, profile_files, password_hash, role, is_active, created_at, last_login`

// UserRepository provides database access for user management.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *UserRepository) findOne(ctx context.Context, label, where string, arg interface{}) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by %s: %w", label, err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return r.findOne(ctx, "id", "id = $1", id)
}

// FindByUsername returns a user by username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username", "username = $1", username)
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email", "LOWER(email) = LOWER($1)", email)
}

// FindByIDs returns the users matching ids in id order. Unknown ids are skipped.
func (r *UserRepository) FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1) ORDER BY id`
	var users []models.User
	if err := sqlx.SelectContext(ctx, r.exec(exec), &users, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find users by ids: %w", err)
	}
	return users, nil
}

// ListActiveByRole returns active users holding role.
func (r *UserRepository) ListActiveByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 AND is_active = TRUE ORDER BY id`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, role); err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return users, nil
}

// List returns every user ordered by id.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Create inserts a new user and fills in the generated id and creation time.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ProfileFiles == nil {
		user.ProfileFiles = models.ProfileFiles{}
	}
	if user.AvatarScale == 0 {
		user.AvatarScale = 1
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO users (username, email, full_name, phone_number, password_hash, role, is_active,
avatar_scale, avatar_offset_x, avatar_offset_y, profile_files, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`
	err := r.db.GetContext(ctx, &user.ID, query,
		user.Username, user.Email, user.FullName, user.PhoneNumber, user.PasswordHash, user.Role, user.IsActive,
		user.AvatarScale, user.AvatarOffsetX, user.AvatarOffsetY, user.ProfileFiles, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update writes every mutable column of user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	const query = `UPDATE users SET username = :username, email = :email, full_name = :full_name,
phone_number = :phone_number, education = :education, responsibility = :responsibility,
resume_path = :resume_path, avatar_path = :avatar_path, avatar_scale = :avatar_scale,
avatar_offset_x = :avatar_offset_x, avatar_offset_y = :avatar_offset_y, profile_files = :profile_files,
password_hash = :password_hash, role = :role, is_active = :is_active
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// Delete removes the user row. Dependent rows must be removed first.
func (r *UserRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	const query = `DELETE FROM users WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
VALUES (:user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
