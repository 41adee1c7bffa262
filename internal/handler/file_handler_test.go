package handler

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/creatia-api/internal/service"
	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
)

type fileOpenerMock map[string]string

func (m fileOpenerMock) Open(ctx context.Context, token string) (*service.StoredObject, error) {
	content, ok := m[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "File not found.")
	}
	return &service.StoredObject{Body: io.NopCloser(strings.NewReader(content)), Name: "notes.txt", ContentType: "text/plain"}, nil
}

func TestFileHandlerDownload(t *testing.T) {
	handler := NewFileHandler(fileOpenerMock{"good": "hello"})

	c, w := newGinContext(http.MethodGet, "/files/good", nil)
	c.Params = gin.Params{{Key: "token", Value: "good"}}
	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", w.Body.String())
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="notes.txt"`, w.Header().Get("Content-Disposition"))

	c, w = newGinContext(http.MethodGet, "/files/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	handler.Download(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
