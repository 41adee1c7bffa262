package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/creatia-api/pkg/config"
	"github.com/noah-isme/creatia-api/pkg/middleware/requestid"
)

func TestNewHonoursLevel(t *testing.T) {
	l, err := New(&config.Config{Env: config.EnvProduction, Log: config.LogConfig{Level: "warn"}})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestGinMiddlewareLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(requestid.Middleware(), GinMiddleware(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/tasks/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/ok", "/boom", "/tasks/9", "/health"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.NotEmpty(t, entries[0].ContextMap()["request_id"])
	assert.Equal(t, "/boom", entries[1].ContextMap()["path"])
	assert.Equal(t, "/tasks/:id", entries[2].ContextMap()["route"])
}
