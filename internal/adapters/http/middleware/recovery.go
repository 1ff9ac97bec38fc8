package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/mcphub-gateway/internal/adapters/http/dto"
	"github.com/jsamuelsen/mcphub-gateway/internal/domain"
	"github.com/jsamuelsen/mcphub-gateway/internal/platform/logging"
)

// Recovery turns a handler panic into the Internal error envelope and logs
// the panic with its stack on the request logger. It goes first in the
// chain. Panics from a client that hung up are left to gin.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, recovered)
}

func recovered(c *gin.Context, panicked any) {
	ctx := c.Request.Context()
	traceID := dto.GetTraceID(c)

	logging.FromContext(ctx).LogAttrs(ctx, slog.LevelError, "panic recovered",
		slog.Any("panic", panicked),
		slog.String("stack", string(debug.Stack())),
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("operation", OperationFromContext(ctx)),
		slog.String("trace_id", traceID),
	)

	// Headers already went out; the status cannot change.
	if c.Writer.Written() {
		c.Abort()
		return
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError,
		dto.NewErrorResponse(domain.KindInternal, dto.MessageInternal, nil).WithTraceID(traceID))
}
