package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/creatia-api/internal/models"
)

// RoleRepository persists named roles.
type RoleRepository struct {
	db *sqlx.DB
}

// NewRoleRepository constructs a RoleRepository.
func NewRoleRepository(db *sqlx.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// EnsureDefaults inserts any missing default role.
func (r *RoleRepository) EnsureDefaults(ctx context.Context) error {
	const query = `INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`
	for _, role := range models.DefaultRoles {
		if _, err := r.db.ExecContext(ctx, query, string(role)); err != nil {
			return fmt.Errorf("ensure role %s: %w", role, err)
		}
	}
	return nil
}

// List returns all roles ordered by name.
func (r *RoleRepository) List(ctx context.Context) ([]models.Role, error) {
	const query = `SELECT id, name, permissions FROM roles ORDER BY name`
	var roles []models.Role
	if err := r.db.SelectContext(ctx, &roles, query); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// FindByName returns the role called name.
func (r *RoleRepository) FindByName(ctx context.Context, name string) (*models.Role, error) {
	const query = `SELECT id, name, permissions FROM roles WHERE name = $1 LIMIT 1`
	var role models.Role
	if err := r.db.GetContext(ctx, &role, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	return &role, nil
}

// Create inserts role and fills its id.
func (r *RoleRepository) Create(ctx context.Context, role *models.Role) error {
	const query = `INSERT INTO roles (name, permissions) VALUES ($1, $2) RETURNING id`
	if err := r.db.GetContext(ctx, &role.ID, query, role.Name, role.Permissions); err != nil {
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}
