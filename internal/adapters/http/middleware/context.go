// Package middleware provides HTTP middleware for the Gin framework.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

// contextKey namespaces the request-scoped values this package places in
// context.Context for adapters below the HTTP layer.
type contextKey int

const (
	ctxKeyRequestID contextKey = iota
	ctxKeyCorrelationID
	ctxKeyOperation
)

// RequestIDFromContext returns the request ID, or "" when ctx carries none.
// The registry client forwards it on outbound calls.
func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxKeyRequestID)
}

// CorrelationIDFromContext returns the correlation ID, or "" when ctx carries none.
func CorrelationIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxKeyCorrelationID)
}

// OperationFromContext returns the name of the registry operation the route
// serves, or "" for routes outside the API.
func OperationFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxKeyOperation)
}

// ContextWithRequestID stores a request ID in ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// ContextWithCorrelationID stores a correlation ID in ctx.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCorrelationID, id)
}

// ContextWithOperation stores the operation name in ctx.
func ContextWithOperation(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxKeyOperation, name)
}

// Operation returns route middleware that tags the request with the registry
// operation it serves. Logging and Recovery report the tag.
func Operation(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(ContextWithOperation(c.Request.Context(), name))
		c.Next()
	}
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}

	s, _ := ctx.Value(key).(string)

	return s
}
