package router

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// accessLog пишет строку на каждый запрос; уровень зависит от статуса ответа.
func accessLog(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			args = append(args, "query", q)
		}
		if len(c.Errors) > 0 {
			args = append(args, "error", c.Errors.Last().Err)
		}

		switch {
		case status >= 500:
			log.Error("http request", args...)
		case status >= 400:
			log.Warn("http request", args...)
		default:
			log.Debug("http request", args...)
		}
	}
}
