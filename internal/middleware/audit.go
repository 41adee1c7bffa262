package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creatia-api/internal/models"
)

// AuditWriter persists audit log rows.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Audit creates a middleware that records audit logs after successful requests.
// The :id route parameter, when present, becomes the resource id.
func Audit(repo AuditWriter, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if repo == nil || c.Writer.Status() >= 400 {
			return
		}

		var userID *int64
		if claims := Claims(c); claims != nil {
			id := claims.UserID
			userID = &id
		}
		var resourceID *string
		if id := c.Param("id"); id != "" {
			resourceID = &id
		}

		body, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		_ = repo.CreateAuditLog(c.Request.Context(), &models.AuditLog{
			UserID:     userID,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			NewValues:  body,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
		})
	}
}
