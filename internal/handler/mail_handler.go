package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creatia-api/internal/dto"
	"github.com/noah-isme/creatia-api/internal/models"
	"github.com/noah-isme/creatia-api/pkg/response"
)

type mailService interface {
	Send(ctx context.Context, actor *models.JWTClaims, req dto.SendMailRequest) (*dto.MailResponse, error)
	List(ctx context.Context, actor *models.JWTClaims, folder string) ([]dto.MailResponse, error)
	MarkRead(ctx context.Context, actor *models.JWTClaims, id int64) error
	Bulk(ctx context.Context, actor *models.JWTClaims, req dto.MailBulkRequest) (*dto.MailBulkResult, error)
	UnreadCount(ctx context.Context, actor *models.JWTClaims) (*dto.UnreadCountResponse, error)
}

// MailHandler exposes the internal mailbox.
type MailHandler struct {
	service mailService
}

// NewMailHandler creates a mail handler.
func NewMailHandler(svc mailService) *MailHandler {
	return &MailHandler{service: svc}
}

// List godoc
// @Summary List mails in a folder
// @Tags Mail
// @Produce json
// @Param folder query string false "inbox, sent, draft, saved or trash" default(inbox)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /mails [get]
func (h *MailHandler) List(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	mails, err := h.service.List(c.Request.Context(), actor, c.Query("folder"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mails)
}

// Send godoc
// @Summary Send or draft a mail
// @Tags Mail
// @Accept json
// @Produce json
// @Param payload body dto.SendMailRequest true "Mail payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /mails [post]
func (h *MailHandler) Send(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	var req dto.SendMailRequest
	if !bindJSON(c, &req, "invalid mail payload") {
		return
	}
	mail, err := h.service.Send(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, mail)
}

// MarkRead godoc
// @Summary Mark a mail as read
// @Tags Mail
// @Produce json
// @Param id path int true "Mail ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /mails/{id}/read [post]
func (h *MailHandler) MarkRead(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	id, ok := idParam(c, "Mail not found")
	if !ok {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c)
}

// Bulk godoc
// @Summary Apply an action to several mails
// @Description action is read, delete, restore, purge or move (target trash, inbox or saved)
// @Tags Mail
// @Accept json
// @Produce json
// @Param payload body dto.MailBulkRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /mails/bulk [post]
func (h *MailHandler) Bulk(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	var req dto.MailBulkRequest
	if !bindJSON(c, &req, "Invalid request") {
		return
	}
	res, err := h.service.Bulk(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// UnreadCount godoc
// @Summary Count unread inbox mails
// @Description Purges expired trash before counting
// @Tags Mail
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /mails/unread_count [get]
func (h *MailHandler) UnreadCount(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	res, err := h.service.UnreadCount(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}
