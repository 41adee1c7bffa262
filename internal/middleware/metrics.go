package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creatia-api/internal/service"
)

// unmatchedRoute labels requests no route handled so probes for random paths
// cannot grow the label set.
const unmatchedRoute = "unmatched"

// Metrics observes every request except scrapes of the metrics endpoint itself.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
