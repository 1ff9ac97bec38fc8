// Package clients provides HTTP client adapters for downstream services.
package clients

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jsamuelsen/mcphub-gateway/internal/domain"
)

// maxErrorBodySize caps how much of an error response is kept.
const maxErrorBodySize = 4 << 10

// ErrCircuitOpen is returned when the circuit breaker rejects a request. It
// wraps domain.ErrUnavailable so the error normalizer and the HTTP layer can
// recognize it without importing this package.
var ErrCircuitOpen = fmt.Errorf("circuit breaker open: %w", domain.ErrUnavailable)

// StatusError is returned for non-2xx responses. It is a raw failure: the
// caller's error normalizer classifies it by HTTPStatus.
type StatusError struct {
	Service    string
	StatusCode int

	// Message is the upstream's own error text, when it supplied one.
	Message string

	// Body is the first few KiB of the response body.
	Body []byte
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	text := e.Message
	if text == "" {
		text = strings.TrimSpace(string(e.Body))
	}

	if text == "" {
		text = http.StatusText(e.StatusCode)
	}

	return fmt.Sprintf("%s responded %d: %s", e.Service, e.StatusCode, text)
}

// ClassificationText returns the upstream's message without the service
// name or status prefix.
func (e *StatusError) ClassificationText() string {
	if e.Message != "" {
		return e.Message
	}

	if body := strings.TrimSpace(string(e.Body)); body != "" {
		return body
	}

	return http.StatusText(e.StatusCode)
}

// HTTPStatus returns the upstream status code.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// Upstream reports whether the status indicates an upstream fault, as
// opposed to a problem with the request.
func (e *StatusError) Upstream() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}
