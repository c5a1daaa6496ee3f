package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/talkhub/internal/logger"
)

// RequestLogger logs method, path, status and latency of every request
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		switch {
		case status >= 500:
			logger.Errorf("%s %s %d %s", c.Request.Method, path, status, latency)
		case status >= 400:
			logger.Warnf("%s %s %d %s", c.Request.Method, path, status, latency)
		default:
			logger.Debugf("%s %s %d %s", c.Request.Method, path, status, latency)
		}
	}
}
