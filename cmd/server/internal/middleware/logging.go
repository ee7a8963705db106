package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/deephabiswashi/vasha/pkg/logger"
)

// quietPaths are probed constantly and excluded from request logging.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// RequestLogger writes one structured log line per request and injects a
// request_id into the context and response headers.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := uuid.NewString()
		c.Set("request_id", reqID)
		c.Writer.Header().Set("X-Request-ID", reqID)

		c.Next()

		if quietPaths[c.Request.URL.Path] {
			return
		}

		duration := time.Since(start)

		logger.L().Info("http_request",
			"rid", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", duration.Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}
