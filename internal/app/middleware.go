package app

import (
	"log/slog"
	"time"

	"github.com/devtitozzzzg/todo/internal/auth"

	"github.com/gin-gonic/gin"
)

// requestLogger writes one line per request. Server errors log at error
// level, client errors at warn.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if u, ok := auth.UserFromContext(c); ok {
			attrs = append(attrs, "user_id", u.ID)
		}

		switch {
		case status >= 500:
			logger.Error("request", attrs...)
		case status >= 400:
			logger.Warn("request", attrs...)
		default:
			logger.Debug("request", attrs...)
		}
	}
}
