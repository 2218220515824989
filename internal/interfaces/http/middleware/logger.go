package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"hostel-hub.backend/pkg/logger"
)

// LoggerMiddleware logs HTTP requests using the structured logger.
// Matched requests are logged by route template so path tokens stay out of the logs.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logger.LogRequest(c.Request.Context(), c.Request.Method, path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}
