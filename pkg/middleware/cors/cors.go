package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowHeaders = "Authorization, Content-Type, X-Requested-With, X-Request-ID"
	allowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
)

// New returns a CORS middleware. An empty allow list reflects any origin.
// Entries of the form "*.example.com" match any subdomain.
func New(allowedOrigins []string) gin.HandlerFunc {
	matcher := newOriginMatcher(allowedOrigins)

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		if origin != "" && matcher.allows(origin) {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Allow-Methods", allowMethods)
			h.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type originMatcher struct {
	any      bool
	exact    map[string]struct{}
	suffixes []string
}

func newOriginMatcher(origins []string) originMatcher {
	m := originMatcher{any: len(origins) == 0, exact: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		origin = strings.ToLower(strings.TrimRight(origin, "/"))
		switch {
		case origin == "*":
			m.any = true
		case strings.Contains(origin, "://*."):
			m.suffixes = append(m.suffixes, origin[strings.Index(origin, "*.")+1:])
		default:
			m.exact[origin] = struct{}{}
		}
	}
	return m
}

func (m originMatcher) allows(origin string) bool {
	if m.any {
		return true
	}
	origin = strings.ToLower(strings.TrimRight(origin, "/"))
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, suffix := range m.suffixes {
		if strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}
