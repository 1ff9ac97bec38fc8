package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jsamuelsen/mcphub-gateway/internal/platform/logging"
)

const (
	// HeaderRequestID identifies a single call to the bridge.
	HeaderRequestID = "X-Request-ID"

	// HeaderCorrelationID ties the call to the caller's wider transaction.
	HeaderCorrelationID = "X-Correlation-ID"

	// maxIDLength bounds caller-supplied IDs copied into logs and upstream
	// headers.
	maxIDLength = 128
)

// RequestID adopts the caller's X-Request-ID or mints a UUID, echoes it on
// the response, and stores it on the request context and logger. The
// registry client forwards it upstream.
func RequestID() gin.HandlerFunc {
	return idMiddleware(HeaderRequestID, ContextWithRequestID, logging.WithRequestID)
}

// CorrelationID does the same for X-Correlation-ID.
func CorrelationID() gin.HandlerFunc {
	return idMiddleware(HeaderCorrelationID, ContextWithCorrelationID, logging.WithCorrelationID)
}

type enricher func(ctx context.Context, id string) context.Context

func idMiddleware(header string, enrich ...enricher) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(header)
		if !validID(id) {
			id = uuid.NewString()
		}

		c.Header(header, id)

		ctx := c.Request.Context()
		for _, fn := range enrich {
			ctx = fn(ctx, id)
		}

		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// validID accepts non-empty printable ASCII without spaces, so a caller
// cannot forge log lines or smuggle header syntax through an ID.
func validID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}

	for i := range len(id) {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}

	return true
}
