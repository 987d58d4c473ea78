package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"pharmastock/pkg/logger"
)

// Logger middleware logs HTTP requests with timing and status.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		// Event streams live for minutes; the line would only report the disconnect.
		if c.FullPath() == "/api/v1/events" {
			return
		}

		kv := []any{
			"method", c.Request.Method,
			"path", path,
			"route", c.FullPath(),
			"query", query,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			kv = append(kv, "error", errs)
		}

		l := log.WithContext(c.Request.Context())
		if c.Writer.Status() >= 500 {
			l.Warnw("http request", kv...)
			return
		}
		l.Infow("http request", kv...)
	}
}
