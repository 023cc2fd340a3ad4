package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"live-poll/internal/repository"
)

// RateLimit returns a fixed-window limiter keyed by scope and the caller:
// the authenticated user when Auth ran first, the client IP otherwise.
// Requests over maxRequests per window get 429.
func RateLimit(state repository.StateRepository, scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	if state == nil {
		panic("StateRepository cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		key := scope + ":" + callerKey(c)

		exceeded, err := state.CheckRateLimit(c.Request.Context(), key, maxRequests, window)
		if err != nil {
			logrus.WithError(err).WithField("key", key).Error("RateLimit: state store check failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Rate limiting error"})
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		if exceeded {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

func callerKey(c *gin.Context) string {
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(uint); ok {
			return fmt.Sprintf("user:%d", id)
		}
	}
	return "ip:" + c.ClientIP()
}
