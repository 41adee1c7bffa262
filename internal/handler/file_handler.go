package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creatia-api/internal/service"
	"github.com/noah-isme/creatia-api/pkg/response"
)

type fileOpener interface {
	Open(ctx context.Context, token string) (*service.StoredObject, error)
}

// FileHandler serves stored uploads addressed by signed tokens.
type FileHandler struct {
	files fileOpener
}

// NewFileHandler creates a file handler.
func NewFileHandler(files fileOpener) *FileHandler {
	return &FileHandler{files: files}
}

// Download godoc
// @Summary Download a stored file
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed file token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	obj, err := h.files.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer obj.Body.Close()

	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, -1, obj.ContentType, obj.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", obj.Name),
	})
}
