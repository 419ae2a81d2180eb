package ratelimiter

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware enforces the per-client allowance on gin requests, keyed by
// client IP. Every response carries X-RateLimit-* headers; rejections add
// a Retry-After hint.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := c.ClientIP()

		if !rl.IsAllowed(client) {
			_, resetTime := rl.GetRequestInfo(client)
			rl.writeHeaders(c, 0, resetTime)
			c.Header("Retry-After", strconv.Itoa(int(time.Until(resetTime).Seconds())))

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Too many requests. Rate limit exceeded.",
				},
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Abort()
			return
		}

		count, resetTime := rl.GetRequestInfo(client)
		remaining := rl.limit - count
		if remaining < 0 {
			remaining = 0
		}
		rl.writeHeaders(c, remaining, resetTime)

		c.Next()
	}
}

func (rl *RateLimiter) writeHeaders(c *gin.Context, remaining int, resetTime time.Time) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
}
