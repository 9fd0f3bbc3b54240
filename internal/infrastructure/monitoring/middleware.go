package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Route template keeps label cardinality bounded.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Timer measures spawn duration
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
	}
}

// Stop records the elapsed time under status ("ok" or "error").
func (t *Timer) Stop(status string) {
	if t.metrics == nil {
		return
	}
	t.metrics.SpawnDuration.WithLabelValues(status).Observe(time.Since(t.start).Seconds())
}
