package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey  = "response_meta"
	requestStartKey  = "request_start"
	cacheHitKey      = "cache_hit"
	processingTimeMS = "processing_time_ms"
)

// WithResponseMeta initialises response metadata storage on the request context.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit records cache hit information for the current response.
func SetCacheHit(c *gin.Context, hit bool) {
	meta := ensureMeta(c)
	meta[cacheHitKey] = hit
}

// ExtractMeta returns the metadata stored on the context stamped with the
// elapsed processing time, or nil when nothing was recorded.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	value, exists := c.Get(responseMetaKey)
	if !exists {
		return nil
	}
	meta, ok := value.(map[string]interface{})
	if !ok || len(meta) == 0 {
		return nil
	}
	if start, ok := c.Get(requestStartKey); ok {
		if ts, ok := start.(time.Time); ok {
			meta[processingTimeMS] = time.Since(ts).Milliseconds()
		}
	}
	return meta
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return map[string]interface{}{}
	}
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	newMeta := make(map[string]interface{})
	c.Set(responseMetaKey, newMeta)
	return newMeta
}
