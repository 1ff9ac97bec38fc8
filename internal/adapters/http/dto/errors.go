// Package dto provides Data Transfer Objects for HTTP request/response handling.
package dto

import (
	"context"
	"errors"
	"maps"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/mcphub-gateway/internal/domain"
	"github.com/jsamuelsen/mcphub-gateway/internal/platform/logging"
	"github.com/jsamuelsen/mcphub-gateway/internal/platform/resilience"
)

// StatusClientClosedRequest is the non-standard status recorded when the
// caller went away before a response could be written.
const StatusClientClosedRequest = 499

// ContextKeyExposeCause is the gin context key holding whether raw failure
// causes may be included in error bodies.
const ContextKeyExposeCause = "dto.expose_cause"

// Fixed messages for failures that never reached the normalizer.
const (
	MessageInternal = "Internal server error"
	MessageTimeout  = "Request timeout exceeded"
)

// ErrorResponse is the standard error envelope for all error responses.
type ErrorResponse struct {
	// ErrorKind is one of Authentication, NotFound, Validation, Network, Internal.
	ErrorKind domain.Kind `json:"error_kind"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Detail holds structured context about the failure.
	Detail map[string]any `json:"detail"`

	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates a new error response with the given kind and message.
func NewErrorResponse(kind domain.Kind, message string, detail map[string]any) *ErrorResponse {
	return &ErrorResponse{
		ErrorKind: kind,
		Message:   message,
		Detail:    maps.Clone(detail),
	}
}

// FromDomainError renders a normalized error. The raw cause is dropped from
// the detail unless exposeCause is set.
func FromDomainError(de *domain.Error, exposeCause bool) *ErrorResponse {
	detail := de.Detail()
	if !exposeCause {
		delete(detail, resilience.DetailCause)
	}

	if len(detail) == 0 {
		detail = nil
	}

	return &ErrorResponse{
		ErrorKind: de.Kind(),
		Message:   de.Message(),
		Detail:    detail,
	}
}

// WithTraceID adds a trace ID to the error response.
func (e *ErrorResponse) WithTraceID(traceID string) *ErrorResponse {
	e.TraceID = traceID
	return e
}

// HTTPStatusFromKind maps error kinds to HTTP status codes.
func HTTPStatusFromKind(kind domain.Kind) int {
	switch kind {
	case domain.KindAuthentication:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MapError maps any error returned by the application layer to a status and
// body. A nil body means nothing should be written: the caller canceled.
//
// Normalized errors take precedence over context errors, since an attempt
// timeout is a normalized Network failure that still wraps
// context.DeadlineExceeded.
func MapError(err error, exposeCause bool) (int, *ErrorResponse) {
	if de, ok := domain.AsError(err); ok {
		status := HTTPStatusFromKind(de.Kind())
		if de.Kind() == domain.KindNetwork && domain.IsUnavailable(err) {
			status = http.StatusServiceUnavailable
		}

		return status, FromDomainError(de, exposeCause)
	}

	switch {
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, nil
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, NewErrorResponse(domain.KindNetwork, MessageTimeout, nil)
	default:
		return http.StatusInternalServerError, NewErrorResponse(domain.KindInternal, MessageInternal, nil)
	}
}

// GetTraceID returns the OpenTelemetry trace ID of the request, if any.
func GetTraceID(c *gin.Context) string {
	if c.Request == nil {
		return ""
	}

	if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}

	return ""
}

// HandleError writes the error response for err.
func HandleError(c *gin.Context, err error) {
	status, resp := MapError(err, c.GetBool(ContextKeyExposeCause))

	logger := logging.FromContext(c.Request.Context())

	if resp == nil {
		logger.Debug("request canceled by client", "path", c.FullPath())
		c.AbortWithStatus(status)

		return
	}

	resp.WithTraceID(GetTraceID(c))

	// Unknown errors were never logged by the bridge.
	if _, ok := domain.AsError(err); !ok && status == http.StatusInternalServerError {
		logger.Error("unhandled error",
			"error", err.Error(),
			"trace_id", resp.TraceID,
		)
	}

	c.AbortWithStatusJSON(status, resp)
}
