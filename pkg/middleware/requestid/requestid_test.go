package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(seen *string, fromCtx *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		*seen = Value(c)
		*fromCtx = FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})
	return r
}

func TestMiddlewareKeepsValidHeader(t *testing.T) {
	var seen, fromCtx string
	r := newRouter(&seen, &fromCtx)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderKey, "edge-1234")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "edge-1234", seen)
	assert.Equal(t, "edge-1234", fromCtx)
	assert.Equal(t, "edge-1234", w.Header().Get(HeaderKey))
}

func TestMiddlewareReplacesInvalidHeader(t *testing.T) {
	var seen, fromCtx string
	r := newRouter(&seen, &fromCtx)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderKey, "bad id with spaces")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.NotEqual(t, "bad id with spaces", seen)
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get(HeaderKey))
}
