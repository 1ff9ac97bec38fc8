// Package domain contains business logic types and errors.
// Domain errors represent business-level failures, NOT HTTP errors.
// They are infrastructure-agnostic and can be mapped to HTTP/gRPC/etc by adapters.
package domain

import (
	"errors"
	"fmt"
	"maps"
	"strings"
)

// Kind is the closed set of normalized failure categories. The zero value is
// KindInternal so that an unclassified failure is never mistaken for a
// recoverable one.
type Kind uint8

const (
	KindInternal Kind = iota
	KindAuthentication
	KindNotFound
	KindValidation
	KindNetwork
)

// Kinds lists every Kind in declaration order.
var Kinds = []Kind{KindAuthentication, KindNotFound, KindValidation, KindNetwork, KindInternal}

// String returns the stable tag exposed to API consumers.
func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "Authentication"
	case KindNotFound:
		return "NotFound"
	case KindValidation:
		return "Validation"
	case KindNetwork:
		return "Network"
	default:
		return "Internal"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}

	*k = parsed

	return nil
}

// ParseKind converts a tag back into a Kind. Matching is case-insensitive and
// ignores underscores, so "not_found" and "NotFound" are equivalent.
func ParseKind(tag string) (Kind, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(tag), "_", ""))
	for _, k := range Kinds {
		if strings.ToLower(k.String()) == normalized {
			return k, nil
		}
	}

	return KindInternal, fmt.Errorf("unknown error kind %q", tag)
}

// Sentinel errors for use with errors.Is(). Every *Error unwraps to the
// sentinel of its kind.
var (
	// ErrAuthentication indicates missing or rejected credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrNetwork indicates a transport-level or timeout failure.
	ErrNetwork = errors.New("network failure")

	// ErrInternal indicates an unrecognized failure.
	ErrInternal = errors.New("internal error")

	// ErrUnavailable indicates a required dependency refused to serve the call,
	// for example because its circuit breaker is open.
	ErrUnavailable = errors.New("unavailable")
)

func (k Kind) sentinel() error {
	switch k {
	case KindAuthentication:
		return ErrAuthentication
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	case KindNetwork:
		return ErrNetwork
	default:
		return ErrInternal
	}
}

// Error is a normalized failure. It is immutable: accessors return copies and
// the With helpers return new values.
type Error struct {
	kind    Kind
	message string
	detail  map[string]any
	cause   error
}

// NewError creates a normalized error. The detail map is copied.
func NewError(kind Kind, message string, detail map[string]any) *Error {
	return &Error{kind: kind, message: message, detail: maps.Clone(detail)}
}

// Wrap creates a normalized error that keeps cause reachable through
// errors.Is and errors.As.
func Wrap(kind Kind, message string, cause error, detail map[string]any) *Error {
	return &Error{kind: kind, message: message, detail: maps.Clone(detail), cause: cause}
}

// NewAuthenticationError creates an Authentication error.
func NewAuthenticationError(message string, detail map[string]any) *Error {
	return NewError(KindAuthentication, message, detail)
}

// NewNotFoundError creates a NotFound error for the given entity.
func NewNotFoundError(entity, id string) *Error {
	if id == "" {
		return NewError(KindNotFound, entity+" not found", nil)
	}

	return NewError(KindNotFound, fmt.Sprintf("%s '%s' not found", entity, id), map[string]any{"id": id})
}

// NewValidationError creates a Validation error for a single field.
func NewValidationError(field, message string) *Error {
	if field == "" {
		return NewError(KindValidation, message, nil)
	}

	return NewError(KindValidation, message, map[string]any{"field": field})
}

// NewNetworkError creates a Network error.
func NewNetworkError(message string, cause error) *Error {
	return Wrap(KindNetwork, message, cause, nil)
}

// NewInternalError creates an Internal error.
func NewInternalError(message string, cause error) *Error {
	return Wrap(KindInternal, message, cause, nil)
}

// Kind returns the error kind.
func (e *Error) Kind() Kind { return e.kind }

// Message returns the human-readable message.
func (e *Error) Message() string { return e.message }

// Detail returns a copy of the structured detail, or nil.
func (e *Error) Detail() map[string]any { return maps.Clone(e.detail) }

// Cause returns the raw failure this error was normalized from, if any.
func (e *Error) Cause() error { return e.cause }

// WithDetail returns a copy of e with key set to value.
func (e *Error) WithDetail(key string, value any) *Error {
	detail := maps.Clone(e.detail)
	if detail == nil {
		detail = make(map[string]any, 1)
	}

	detail[key] = value

	return &Error{kind: e.kind, message: e.message, detail: detail, cause: e.cause}
}

// WithMessage returns a copy of e with a different message.
func (e *Error) WithMessage(message string) *Error {
	return &Error{kind: e.kind, message: message, detail: maps.Clone(e.detail), cause: e.cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}

	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

// Unwrap exposes both the kind sentinel and the raw cause.
func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind.sentinel()}
	}

	return []error{e.kind.sentinel(), e.cause}
}

// AsError extracts a normalized error from err's chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}

	return nil, false
}

// KindOf reports the kind of the first normalized error in err's chain.
func KindOf(err error) (Kind, bool) {
	if de, ok := AsError(err); ok {
		return de.kind, true
	}

	return KindInternal, false
}

// IsAuthentication checks if an error is an authentication error.
func IsAuthentication(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNetwork checks if an error is a network error.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsInternal checks if an error is an internal error.
func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

// IsUnavailable checks if an error is an unavailable error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
