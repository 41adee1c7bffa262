package requestid

import (
	"context"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderKey  = "X-Request-ID"
	contextKey = "request_id"
)

type ctxKey struct{}

// Client supplied ids are accepted only when short and free of control characters.
var validID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

// Middleware tags every request with an id, echoing a valid X-Request-ID header
// or generating a UUID.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(HeaderKey)
		if !validID.MatchString(reqID) {
			reqID = uuid.NewString()
		}

		c.Set(contextKey, reqID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), ctxKey{}, reqID))
		c.Writer.Header().Set(HeaderKey, reqID)

		c.Next()
	}
}

// Value returns the request id stored on the gin context.
func Value(c *gin.Context) string {
	if v, ok := c.Get(contextKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// FromContext returns the request id carried by ctx.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
