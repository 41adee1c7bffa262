package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creatia-api/internal/models"
	"github.com/noah-isme/creatia-api/internal/service"
	"github.com/noah-isme/creatia-api/pkg/response"
)

type reportService interface {
	TaskStats(ctx context.Context, actor *models.JWTClaims, format string) (*service.ReportFile, error)
}

// ReportHandler exposes report exports.
type ReportHandler struct {
	service reportService
}

// NewReportHandler creates a report handler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// TaskStats godoc
// @Summary Export per-user task statistics
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /reports/tasks [get]
func (h *ReportHandler) TaskStats(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	file, err := h.service.TaskStats(c.Request.Context(), actor, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}
