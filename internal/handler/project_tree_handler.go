package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creatia-api/internal/dto"
	"github.com/noah-isme/creatia-api/internal/middleware"
	"github.com/noah-isme/creatia-api/internal/models"
	"github.com/noah-isme/creatia-api/pkg/response"
)

type projectTreeService interface {
	List(ctx context.Context) ([]dto.ProjectNodeResponse, bool, error)
	Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateProjectNodeRequest) (*dto.ProjectNodeResponse, error)
	Update(ctx context.Context, actor *models.JWTClaims, id int64, req dto.UpdateProjectNodeRequest) (*dto.ProjectNodeResponse, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id int64) error
}

// ProjectTreeHandler exposes the project tree.
type ProjectTreeHandler struct {
	service projectTreeService
}

// NewProjectTreeHandler creates a project tree handler.
func NewProjectTreeHandler(svc projectTreeService) *ProjectTreeHandler {
	return &ProjectTreeHandler{service: svc}
}

const nodeNotFound = "Project node not found."

// List godoc
// @Summary List project tree nodes
// @Description Every node ordered trunks first, with assignees and child counts
// @Tags ProjectTree
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /project-tree [get]
func (h *ProjectTreeHandler) List(c *gin.Context) {
	nodes, hit, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, nodes, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Create project node
// @Tags ProjectTree
// @Accept json
// @Produce json
// @Param payload body dto.CreateProjectNodeRequest true "Node payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /project-tree [post]
func (h *ProjectTreeHandler) Create(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	var req dto.CreateProjectNodeRequest
	if !bindJSON(c, &req, "invalid node payload") {
		return
	}
	node, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, node)
}

// Update godoc
// @Summary Update project node
// @Description Rename, reparent or reassign a node; absent fields are untouched
// @Tags ProjectTree
// @Accept json
// @Produce json
// @Param id path int true "Node ID"
// @Param payload body dto.UpdateProjectNodeRequest true "Node patch"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /project-tree/{id} [post]
func (h *ProjectTreeHandler) Update(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	id, ok := idParam(c, nodeNotFound)
	if !ok {
		return
	}
	var req dto.UpdateProjectNodeRequest
	if !bindJSON(c, &req, "invalid node payload") {
		return
	}
	node, err := h.service.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, node)
}

// Delete godoc
// @Summary Delete project node
// @Description Deletes the node and its whole subtree
// @Tags ProjectTree
// @Produce json
// @Param id path int true "Node ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /project-tree/{id} [delete]
func (h *ProjectTreeHandler) Delete(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	id, ok := idParam(c, nodeNotFound)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c)
}
