package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(origins []string, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(method, "/ping", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSAllowsListedOrigins(t *testing.T) {
	origins := []string{"https://app.example.com", "https://*.lab.example.org"}

	w := serve(origins, http.MethodGet, "https://app.example.com")
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(origins, http.MethodGet, "https://team.lab.example.org")
	assert.Equal(t, "https://team.lab.example.org", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(origins, http.MethodGet, "https://evil.example.net")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	w := serve(nil, http.MethodOptions, "https://any.example")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://any.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}
