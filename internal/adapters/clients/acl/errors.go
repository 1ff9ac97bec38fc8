package acl

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jsamuelsen/mcphub-gateway/internal/adapters/clients"
)

// ErrMalformedResponse is returned when the registry answers 2xx with a
// payload that cannot be translated.
var ErrMalformedResponse = errors.New("malformed registry response")

// ErrorResponse is the error subset of the registry envelope. The registry
// is inconsistent about where it puts the text, so both "message" and
// "error" are read.
type ErrorResponse struct {
	Success   *bool  `json:"success,omitempty"`
	Code      int    `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// GetMessage returns the most specific text the registry supplied.
func (e *ErrorResponse) GetMessage() string {
	if e.Message != "" {
		return e.Message
	}

	return e.Error
}

// Failed reports whether the envelope signals failure. An envelope that
// carries neither a success flag nor an error code is treated as success.
func (e *ErrorResponse) Failed() bool {
	if e.Success != nil && !*e.Success {
		return true
	}

	return e.Code >= http.StatusBadRequest
}

// ParseErrorResponse decodes a registry error body. It returns nil when the
// body is empty or not a registry envelope.
func ParseErrorResponse(body []byte) *ErrorResponse {
	if len(body) == 0 {
		return nil
	}

	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}

	if resp.GetMessage() == "" && resp.Code == 0 {
		return nil
	}

	return &resp
}

// APIError is a failure the registry reported inside a 2xx envelope with a
// vendor-specific (non-HTTP) code. It deliberately carries no HTTP status,
// so it is classified by its message.
type APIError struct {
	Service   string
	Code      int
	Message   string
	RequestID string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s rejected request (code %d)", e.Service, e.Code)

	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}

	if e.RequestID != "" {
		fmt.Fprintf(&b, " [request_id=%s]", e.RequestID)
	}

	return b.String()
}

// ClassificationText returns only the vendor message. The code and request
// ID are identifiers, not failure signals.
func (e *APIError) ClassificationText() string {
	return e.Message
}

// envelopeError converts a failed 2xx envelope into a raw error.
func envelopeError(service string, resp *ErrorResponse) error {
	message := resp.GetMessage()

	if resp.Code >= http.StatusBadRequest && resp.Code < 600 {
		return &clients.StatusError{
			Service:    service,
			StatusCode: resp.Code,
			Message:    message,
		}
	}

	return &APIError{
		Service:   service,
		Code:      resp.Code,
		Message:   message,
		RequestID: resp.RequestID,
	}
}

// enrichError attaches the operation name to err and, for status errors,
// lifts the vendor message out of the response body.
func enrichError(err error, operation string) error {
	var statusErr *clients.StatusError
	if errors.As(err, &statusErr) && statusErr.Message == "" {
		if resp := ParseErrorResponse(statusErr.Body); resp != nil {
			statusErr.Message = resp.GetMessage()
		}
	}

	return fmt.Errorf("%s: %w", operation, err)
}
