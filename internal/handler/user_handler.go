package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creatia-api/internal/dto"
	"github.com/noah-isme/creatia-api/internal/models"
	"github.com/noah-isme/creatia-api/pkg/response"
)

type userService interface {
	List(ctx context.Context) ([]dto.UserResponse, error)
	Create(ctx context.Context, req dto.CreateUserRequest, actorID int64, meta models.LoginRequest) (*dto.UserResponse, error)
	Update(ctx context.Context, id int64, req dto.UpdateUserRequest, actorID int64, meta models.LoginRequest) (*dto.UserResponse, error)
	Delete(ctx context.Context, id int64, actorID int64, meta models.LoginRequest) error
}

// UserHandler handles the user directory and admin user management.
type UserHandler struct {
	service userService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

const userNotFound = "User not found."

// List godoc
// @Summary List users
// @Description Users ordered admins, supervisors, researchers, then everyone else, with task stats
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, users)
}

// Create godoc
// @Summary Create user
// @Description Create a new user
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body dto.CreateUserRequest true "Create user payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/users [post]
func (h *UserHandler) Create(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}

	var req dto.CreateUserRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}

	user, err := h.service.Create(c.Request.Context(), req, actor.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, user)
}

// Update godoc
// @Summary Update user
// @Description Patch a user; absent fields are untouched
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param payload body dto.UpdateUserRequest true "Update user payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/users/{id} [patch]
func (h *UserHandler) Update(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	id, ok := idParam(c, userNotFound)
	if !ok {
		return
	}

	var req dto.UpdateUserRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}

	user, err := h.service.Update(c.Request.Context(), id, req, actor.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user)
}

// Delete godoc
// @Summary Delete user
// @Description Deletes the user with their tasks, mail, chat and project assignments
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	id, ok := idParam(c, userNotFound)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, actor.UserID, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c)
}
