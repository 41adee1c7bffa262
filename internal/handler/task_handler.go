package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creatia-api/internal/dto"
	"github.com/noah-isme/creatia-api/internal/models"
	"github.com/noah-isme/creatia-api/pkg/response"
)

type taskService interface {
	List(ctx context.Context, actor *models.JWTClaims, all bool) ([]dto.TaskResponse, error)
	Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateTaskRequest) (*dto.TaskResponse, error)
	SetStatus(ctx context.Context, actor *models.JWTClaims, id int64, status string) (*dto.TaskResponse, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id int64) error
	UpdateDue(ctx context.Context, actor *models.JWTClaims, id int64, raw string) (*dto.TaskResponse, error)
	Edit(ctx context.Context, actor *models.JWTClaims, id int64, req dto.EditTaskRequest) (*dto.TaskResponse, error)
	MarkSeen(ctx context.Context, actor *models.JWTClaims, id int64) (*dto.TaskResponse, error)
	Attach(ctx context.Context, actor *models.JWTClaims, id int64, upload *dto.TaskUpload, body io.Reader) (*dto.TaskResponse, error)
}

// TaskHandler exposes the task workflow endpoints.
type TaskHandler struct {
	service taskService
}

// NewTaskHandler creates a task handler.
func NewTaskHandler(svc taskService) *TaskHandler {
	return &TaskHandler{service: svc}
}

const taskNotFound = "Task not found."

// List godoc
// @Summary List tasks
// @Description Tasks visible to the actor, one per recurrence group
// @Tags Tasks
// @Produce json
// @Param all query string false "Admins pass 1 to list every task"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	all := c.Query("all") == "1" || c.Query("all") == "true"
	tasks, err := h.service.List(c.Request.Context(), actor, all)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tasks)
}

// Create godoc
// @Summary Create task
// @Description Create a task, optionally recurring or fanned out to a role
// @Tags Tasks
// @Accept json
// @Produce json
// @Param payload body dto.CreateTaskRequest true "Task payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	var req dto.CreateTaskRequest
	if !bindJSON(c, &req, "invalid task payload") {
		return
	}
	task, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, task)
}

// SetStatus godoc
// @Summary Change task status
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param payload body dto.SetTaskStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /tasks/{id}/status [post]
func (h *TaskHandler) SetStatus(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	id, ok := idParam(c, taskNotFound)
	if !ok {
		return
	}
	var req dto.SetTaskStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}
	task, err := h.service.SetStatus(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task)
}

// Delete godoc
// @Summary Delete task
// @Description Admins delete any task (the whole recurrence group); others only their own personal tasks
// @Tags Tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	id, ok := idParam(c, taskNotFound)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c)
}

// UpdateDue godoc
// @Summary Move a personal task's due date
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param payload body dto.UpdateTaskDueRequest true "Due date payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /tasks/{id}/due [post]
func (h *TaskHandler) UpdateDue(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	id, ok := idParam(c, taskNotFound)
	if !ok {
		return
	}
	var req dto.UpdateTaskDueRequest
	if !bindJSON(c, &req, "invalid due date payload") {
		return
	}
	task, err := h.service.UpdateDue(c.Request.Context(), actor, id, req.DueDate)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task)
}

// Edit godoc
// @Summary Edit task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param payload body dto.EditTaskRequest true "Edit payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /tasks/{id}/edit [post]
func (h *TaskHandler) Edit(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	id, ok := idParam(c, taskNotFound)
	if !ok {
		return
	}
	var req dto.EditTaskRequest
	if !bindJSON(c, &req, "invalid edit payload") {
		return
	}
	task, err := h.service.Edit(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task)
}

// MarkSeen godoc
// @Summary Mark task as seen
// @Tags Tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /tasks/{id}/seen [post]
func (h *TaskHandler) MarkSeen(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	id, ok := idParam(c, taskNotFound)
	if !ok {
		return
	}
	task, err := h.service.MarkSeen(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task)
}

// Attach godoc
// @Summary Attach a file to a task
// @Tags Tasks
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Task ID"
// @Param file formData file true "Attachment"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /tasks/{id}/attach [post]
func (h *TaskHandler) Attach(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	id, ok := idParam(c, taskNotFound)
	if !ok {
		return
	}

	var (
		upload *dto.TaskUpload
		body   io.Reader
	)
	if header, err := c.FormFile("file"); err == nil {
		file, err := header.Open()
		if err != nil {
			response.Error(c, err)
			return
		}
		defer file.Close()
		upload = &dto.TaskUpload{Filename: header.Filename, Size: header.Size, ContentType: contentType(header)}
		body = file
	}

	task, err := h.service.Attach(c.Request.Context(), actor, id, upload, body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task)
}

func contentType(header *multipart.FileHeader) string {
	if header == nil {
		return ""
	}
	return header.Header.Get("Content-Type")
}
