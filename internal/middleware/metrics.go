package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Tad-z/BlockTrace-api/pkg/metrics"
)

// MetricsMiddleware tracks request counts, latency and success rate, and
// surfaces the response time as a header.
func MetricsMiddleware(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		collector.RecordRequest()

		c.Next()

		duration := time.Since(startTime)
		success := c.Writer.Status() < 400

		collector.RecordRequestComplete(duration, success)

		c.Header("X-Response-Time-Ms", strconv.FormatInt(duration.Milliseconds(), 10))
	}
}
