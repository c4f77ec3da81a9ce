// internal/middleware/logging_middleware.go
package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"vr-datastreamer/internal/utils"
)

// LoggingMiddleware logs every request once it has been served. Successful
// requests whose path starts with one of quietPrefixes are logged at debug.
func LoggingMiddleware(logger *utils.ServiceLogger, quietPrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		path := c.Request.URL.Path
		c.Next()

		quiet := false
		for _, prefix := range quietPrefixes {
			if strings.HasPrefix(path, prefix) {
				quiet = true
				break
			}
		}

		logger.LogAPIRequest(utils.RequestLog{
			Method:    c.Request.Method,
			Path:      path,
			ClientIP:  c.ClientIP(),
			RequestID: c.GetString(RequestIDKey),
			Status:    c.Writer.Status(),
			Bytes:     c.Writer.Size(),
			Duration:  time.Since(startTime),
			Quiet:     quiet,
		})
	}
}
