package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/creatia-api/internal/dto"
	"github.com/noah-isme/creatia-api/internal/models"
	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
)

type roleRepository interface {
	EnsureDefaults(ctx context.Context) error
	List(ctx context.Context) ([]models.Role, error)
	FindByName(ctx context.Context, name string) (*models.Role, error)
	Create(ctx context.Context, role *models.Role) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// RoleService manages named roles.
type RoleService struct {
	roles  roleRepository
	audit  auditWriter
	logger *zap.Logger
}

// NewRoleService constructs a RoleService.
func NewRoleService(roles roleRepository, audit auditWriter, logger *zap.Logger) *RoleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleService{roles: roles, audit: audit, logger: logger}
}

// List ensures the default roles exist and returns every role ordered by name.
func (s *RoleService) List(ctx context.Context, actor *models.JWTClaims) ([]models.Role, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Not allowed")
	}
	if err := s.roles.EnsureDefaults(ctx); err != nil {
		return nil, appErrors.Internal(err, "failed to ensure default roles")
	}
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list roles")
	}
	if roles == nil {
		roles = []models.Role{}
	}
	return roles, nil
}

// Create adds a role with a unique name.
func (s *RoleService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateRoleRequest, meta models.LoginRequest) (*models.Role, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Not allowed")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, appErrors.Validation("Role name required")
	}
	if _, err := s.roles.FindByName(ctx, name); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "Role already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check role")
	}

	role := &models.Role{Name: name, Permissions: trimmedOrNil(req.Permissions)}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, appErrors.Internal(err, "failed to create role")
	}

	if s.audit != nil {
		resourceID := formatID(role.ID)
		payload, _ := json.Marshal(map[string]interface{}{"name": role.Name, "permissions": role.Permissions})
		actorID := actor.UserID
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actorID,
			Action:     models.AuditActionRoleCreate,
			Resource:   "roles",
			ResourceID: &resourceID,
			NewValues:  payload,
			IPAddress:  meta.IP,
			UserAgent:  meta.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to record role audit log", zap.Error(err))
		}
	}
	return role, nil
}
