package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/blogdesk/pkg/metrics"
)

// Metrics feeds the request counter, latency histogram and in-flight gauge.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.RequestsInFlight.Inc()
		defer metrics.RequestsInFlight.Dec()

		started := time.Now()
		c.Next()

		labels := []string{c.Request.Method, routeLabel(c), strconv.Itoa(c.Writer.Status())}
		metrics.APIRequests.WithLabelValues(labels...).Inc()
		metrics.APILatency.WithLabelValues(labels...).Observe(time.Since(started).Seconds())
	}
}
