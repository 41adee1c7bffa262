package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creatia-api/internal/dto"
	"github.com/noah-isme/creatia-api/internal/models"
	"github.com/noah-isme/creatia-api/pkg/response"
)

type roleService interface {
	List(ctx context.Context, actor *models.JWTClaims) ([]models.Role, error)
	Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateRoleRequest, meta models.LoginRequest) (*models.Role, error)
}

// RoleHandler manages named roles.
type RoleHandler struct {
	service roleService
}

// NewRoleHandler creates a role handler.
func NewRoleHandler(svc roleService) *RoleHandler {
	return &RoleHandler{service: svc}
}

// List godoc
// @Summary List roles
// @Tags Roles
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /roles [get]
func (h *RoleHandler) List(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	roles, err := h.service.List(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roles)
}

// Create godoc
// @Summary Create role
// @Tags Roles
// @Accept json
// @Produce json
// @Param payload body dto.CreateRoleRequest true "Role payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /roles [post]
func (h *RoleHandler) Create(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	var req dto.CreateRoleRequest
	if !bindJSON(c, &req, "Role name required") {
		return
	}
	role, err := h.service.Create(c.Request.Context(), actor, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, role)
}
