package middleware

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/mcphub-gateway/internal/platform/logging"
)

// Logging writes one "request completed" line per request on the request
// logger, or on logger when the ID middleware has not set one. The level
// follows the status: INFO, WARN for 4xx, ERROR for 5xx. The start of each
// request is logged at DEBUG. Routes listed in skip are not logged.
func Logging(logger *slog.Logger, skip ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if slices.Contains(skip, c.FullPath()) {
			c.Next()
			return
		}

		start := time.Now()
		ctx := c.Request.Context()
		log := logging.FromContextOr(ctx, logger)

		target := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			target += "?" + q
		}

		log.LogAttrs(ctx, slog.LevelDebug, "request started",
			slog.String("method", c.Request.Method),
			slog.String("path", target),
			slog.String("client_ip", c.ClientIP()),
			slog.String("user_agent", c.Request.UserAgent()),
		)

		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", target),
			slog.Int("status", status),
			slog.Duration("latency", elapsed),
			slog.Int64("latency_ms", elapsed.Milliseconds()),
			slog.Int("bytes", c.Writer.Size()),
		}

		if op := OperationFromContext(c.Request.Context()); op != "" {
			attrs = append(attrs, slog.String("operation", op))
		}

		log.LogAttrs(ctx, levelFor(status), "request completed", attrs...)
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
