package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creatia-api/internal/dto"
	"github.com/noah-isme/creatia-api/internal/models"
	"github.com/noah-isme/creatia-api/pkg/response"
)

type chatService interface {
	List(ctx context.Context, actor *models.JWTClaims, q dto.ChatListQuery) ([]dto.ChatMessageResponse, error)
	Post(ctx context.Context, actor *models.JWTClaims, req dto.PostChatMessageRequest) (*dto.ChatMessageResponse, error)
	MarkRead(ctx context.Context, actor *models.JWTClaims, req dto.ChatReadRequest) error
	Unread(ctx context.Context, actor *models.JWTClaims) (*dto.ChatUnreadResponse, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id int64) error
}

// ChatHandler exposes group and private chat.
type ChatHandler struct {
	service chatService
}

// NewChatHandler creates a chat handler.
func NewChatHandler(svc chatService) *ChatHandler {
	return &ChatHandler{service: svc}
}

// List godoc
// @Summary List chat messages
// @Description Up to 200 messages after the given id, ascending; marks them read unless mark_read=0
// @Tags Chat
// @Produce json
// @Param target query string false "group or a user id" default(group)
// @Param after query int false "Return messages with a greater id"
// @Param mark_read query string false "Pass 0 to leave the read cursor untouched"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /chat/messages [get]
func (h *ChatHandler) List(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	q := dto.ChatListQuery{Target: dto.ParseChatTarget(c.Query("target")), MarkRead: true}
	if after, err := strconv.ParseInt(c.Query("after"), 10, 64); err == nil && after > 0 {
		q.AfterID = after
	}
	switch c.Query("mark_read") {
	case "0", "false":
		q.MarkRead = false
	}
	messages, err := h.service.List(c.Request.Context(), actor, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages)
}

// Post godoc
// @Summary Send a chat message
// @Tags Chat
// @Accept json
// @Produce json
// @Param payload body dto.PostChatMessageRequest true "Message payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /chat/messages [post]
func (h *ChatHandler) Post(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	var req dto.PostChatMessageRequest
	if !bindJSON(c, &req, "invalid message payload") {
		return
	}
	msg, err := h.service.Post(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// MarkRead godoc
// @Summary Advance the read cursor of a channel
// @Tags Chat
// @Accept json
// @Produce json
// @Param payload body dto.ChatReadRequest true "Read payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /chat/read [post]
func (h *ChatHandler) MarkRead(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	var req dto.ChatReadRequest
	if !bindJSON(c, &req, "Invalid last_id") {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), actor, req); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c)
}

// Unread godoc
// @Summary Unread chat counts
// @Tags Chat
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /chat/unread [get]
func (h *ChatHandler) Unread(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	res, err := h.service.Unread(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// Delete godoc
// @Summary Delete a chat message
// @Description Admins delete any message; senders only until someone reads it
// @Tags Chat
// @Produce json
// @Param id path int true "Message ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /chat/messages/{id} [delete]
func (h *ChatHandler) Delete(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	id, ok := idParam(c, "Message not found.")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c)
}
