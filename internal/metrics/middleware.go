package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/onboardly/onboardly/internal/logging"
)

// Middleware records latency, totals and in-flight gauges for each request.
// The scrape endpoint itself is left out so the series don't count their own
// collection.
func Middleware(m *Metrics, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.IncHTTPRequestsInFlight()
		c.Next()
		m.DecHTTPRequestsInFlight()

		endpoint := c.FullPath()
		if endpoint == "" {
			// Unmatched route; the raw path is the only name we have.
			endpoint = c.Request.URL.Path
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		m.RecordRequestLatency(endpoint, method, status, time.Since(start).Seconds())
		m.RecordHTTPRequest(endpoint, method, status)

		if len(c.Errors) > 0 {
			m.RecordError("handler", endpoint, method)
			logger.ErrorWithContext(c.Request.Context(), "request error",
				"endpoint", endpoint,
				"error", c.Errors.String())
		}
	}
}
