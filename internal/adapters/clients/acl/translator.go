package acl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jsamuelsen/mcphub-gateway/internal/adapters/clients"
	"github.com/jsamuelsen/mcphub-gateway/internal/platform/logging"
)

// BaseAdapter provides common functionality for registry adapters.
// Embed this in endpoint-specific adapters.
type BaseAdapter struct {
	client      *clients.Client
	serviceName string
	logger      *slog.Logger
}

// NewBaseAdapter creates a new base adapter with the given client.
func NewBaseAdapter(client *clients.Client, logger *slog.Logger) BaseAdapter {
	if logger == nil {
		logger = slog.Default()
	}

	return BaseAdapter{
		client:      client,
		serviceName: client.ServiceName(),
		logger:      logger,
	}
}

// Client returns the underlying HTTP client.
func (a *BaseAdapter) Client() *clients.Client {
	return a.client
}

// ServiceName returns the name of the external service.
func (a *BaseAdapter) ServiceName() string {
	return a.serviceName
}

// envelope is the wrapper around every registry payload. Data is decoded
// only once the envelope reports success, since failed envelopes often
// carry a payload of a different shape.
type envelope struct {
	ErrorResponse

	Data json.RawMessage `json:"data"`
}

// request describes one registry call.
type request struct {
	operation string
	method    string
	path      string
	token     string
	body      any
}

// doEnvelope performs r and unwraps the envelope. Failures come back raw,
// prefixed with the operation name. A missing or null payload yields the
// zero value.
func doEnvelope[T any](ctx context.Context, a *BaseAdapter, r request) (T, error) {
	var (
		zero T
		env  envelope
	)

	logger := logging.FromContextOr(ctx, a.logger)
	logger.Log(ctx, logging.LevelTrace, "starting request",
		slog.String("operation", r.operation),
		slog.String("method", r.method),
		slog.String("path", r.path))

	err := a.client.DoJSON(ctx, r.method, r.path, r.body, &env, clients.WithBearerToken(r.token))
	if err != nil {
		return zero, enrichError(err, r.operation)
	}

	if env.Failed() {
		logger.Debug("registry reported failure",
			slog.String("operation", r.operation),
			slog.Int("code", env.Code),
			slog.String("registry_request_id", env.RequestID))

		return zero, fmt.Errorf("%s: %w", r.operation, envelopeError(a.serviceName, &env.ErrorResponse))
	}

	logger.Log(ctx, logging.LevelTrace, "request complete",
		slog.String("operation", r.operation),
		slog.String("registry_request_id", env.RequestID))

	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return zero, nil
	}

	var data T
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return zero, fmt.Errorf("%s: %w: %w", r.operation, ErrMalformedResponse, err)
	}

	return data, nil
}

// ValidateRequired checks that a field the registry must always send is
// present.
func ValidateRequired(value, fieldName string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrMalformedResponse, fieldName)
	}

	return nil
}

// Translator is a function type that translates an external DTO to a domain
// type. It should validate the external data and return an error when the
// item is unusable.
type Translator[External any, Domain any] func(ext *External) (Domain, error)

// TranslateSlice applies translate to every item. Items that fail are left
// out of the result and their errors are returned alongside, so one bad
// registry entry does not hide the rest.
func TranslateSlice[E any, D any](items []E, translate Translator[E, D]) ([]D, []error) {
	result := make([]D, 0, len(items))

	var errs []error

	for i := range items {
		translated, err := translate(&items[i])
		if err != nil {
			errs = append(errs, fmt.Errorf("translating item %d: %w", i, err))
			continue
		}

		result = append(result, translated)
	}

	return result, errs
}
