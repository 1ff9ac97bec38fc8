package clients

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/mcphub-gateway/internal/adapters/http/middleware"
	"github.com/jsamuelsen/mcphub-gateway/internal/platform/config"
	"github.com/jsamuelsen/mcphub-gateway/internal/platform/logging"
)

const (
	scope = "github.com/jsamuelsen/mcphub-gateway/internal/adapters/clients"

	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "mcphub-gateway"
)

// ResultKey labels each request metric with how the call ended: "2xx",
// "4xx", "5xx", "error" or "circuit_open".
const ResultKey = attribute.Key("mcphub.result")

// Config configures a Client for one downstream service.
type Config struct {
	// BaseURL prefixes every request path.
	BaseURL string

	// ServiceName identifies the downstream in logs, spans and metrics.
	ServiceName string

	// Timeout bounds one attempt including reading the body.
	Timeout time.Duration

	Circuit   config.CircuitBreakerConfig
	Transport config.TransportConfig
	UserAgent string
	Logger    *slog.Logger

	// TracerProvider and MeterProvider default to the otel globals.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// RequestOption customizes a single outbound request.
type RequestOption func(*http.Request)

// WithBearerToken sets the Authorization header when token is non-empty.
func WithBearerToken(token string) RequestOption {
	return func(r *http.Request) {
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithHeader sets an arbitrary request header.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// Client makes single attempts against one downstream behind a circuit
// breaker. Retries belong to the caller. Non-2xx answers come back as
// *StatusError with the body kept for classification.
type Client struct {
	http        *http.Client
	baseURL     string
	serviceName string
	userAgent   string
	logger      *slog.Logger
	cb          *CircuitBreaker
	tracer      trace.Tracer
	metrics     instruments
}

type instruments struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider) (instruments, error) {
	meter := mp.Meter(scope)

	duration, err := meter.Float64Histogram("http.client.request.duration",
		metric.WithDescription("Duration of downstream HTTP requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return instruments{}, fmt.Errorf("duration histogram: %w", err)
	}

	total, err := meter.Int64Counter("http.client.request.total",
		metric.WithDescription("Downstream HTTP requests by result"),
	)
	if err != nil {
		return instruments{}, fmt.Errorf("request counter: %w", err)
	}

	return instruments{duration: duration, total: total}, nil
}

// New builds a Client. ServiceName is required; other zero fields take
// defaults.
func New(cfg *Config) (*Client, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("clients: config is required")
	case cfg.ServiceName == "":
		return nil, errors.New("clients: service name is required")
	}

	logger := cmp.Or(cfg.Logger, slog.Default()).With(
		slog.String("component", "clients.Client"),
		slog.String("downstream", cfg.ServiceName),
	)

	inst, err := newInstruments(cmp.Or(cfg.MeterProvider, otel.GetMeterProvider()))
	if err != nil {
		return nil, fmt.Errorf("clients: %w", err)
	}

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:   cfg.Circuit.MaxFailures,
		Timeout:       cfg.Circuit.Timeout,
		HalfOpenLimit: cfg.Circuit.HalfOpenLimit,
	})
	cb.OnStateChange(func(from, to State) {
		logger.Warn("circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		http:        &http.Client{Timeout: timeout, Transport: newTransport(cfg.Transport)},
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		serviceName: cfg.ServiceName,
		userAgent:   cmp.Or(cfg.UserAgent, defaultUserAgent),
		logger:      logger,
		cb:          cb,
		tracer:      cmp.Or(cfg.TracerProvider, otel.GetTracerProvider()).Tracer(scope),
		metrics:     inst,
	}, nil
}

// newTransport clones the default transport and applies the non-zero pool
// settings.
func newTransport(cfg config.TransportConfig) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()

	if cfg.MaxIdleConns > 0 {
		t.MaxIdleConns = cfg.MaxIdleConns
	}

	if cfg.MaxIdleConnsPerHost > 0 {
		t.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}

	if cfg.IdleConnTimeout > 0 {
		t.IdleConnTimeout = cfg.IdleConnTimeout
	}

	return t
}

// ServiceName returns the downstream service name.
func (c *Client) ServiceName() string {
	return c.serviceName
}

// CircuitState returns the current state of the circuit breaker.
func (c *Client) CircuitState() State {
	return c.cb.State()
}

// CircuitCounts returns a snapshot of the circuit breaker.
func (c *Client) CircuitCounts() Counts {
	return c.cb.Counts()
}

// Do sends req once. A 2xx response is returned for the caller to read and
// close. Any other status is drained and returned as *StatusError; an open
// circuit returns ErrCircuitOpen without touching the network.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()
	logger := logging.FromContextOr(ctx, c.logger).With(
		slog.String("downstream", c.serviceName),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	)

	if !c.cb.Allow() {
		c.record(ctx, req.Method, 0, time.Since(start), "circuit_open")
		logger.Warn("request blocked by circuit breaker")

		return nil, ErrCircuitOpen
	}

	c.stamp(ctx, req)

	ctx, span := c.tracer.Start(ctx, "HTTP "+req.Method+" "+c.serviceName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLFull(req.URL.String()),
			semconv.ServerAddress(req.URL.Hostname()),
			semconv.PeerService(c.serviceName),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req.WithContext(ctx))
	elapsed := time.Since(start)

	if err != nil {
		c.settleTransportError(ctx)

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.record(ctx, req.Method, 0, elapsed, "error")
		logger.Debug("request failed", slog.Duration("duration", elapsed), slog.Any("error", err))

		return nil, err
	}

	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
	c.record(ctx, req.Method, resp.StatusCode, elapsed, strconv.Itoa(resp.StatusCode/100)+"xx")
	logger = logger.With(slog.Int("status", resp.StatusCode), slog.Duration("duration", elapsed))

	if resp.StatusCode/100 == 2 {
		c.cb.RecordSuccess()
		logger.Debug("request completed")

		return resp, nil
	}

	statusErr := c.drain(resp, logger)
	c.settleStatus(statusErr)

	span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(resp.StatusCode))
	logger.Debug("request returned error status")

	return nil, statusErr
}

// settleTransportError counts a failed round trip against the circuit
// unless the caller gave up first.
func (c *Client) settleTransportError(ctx context.Context) {
	if ctx.Err() != nil {
		c.cb.Release()
		return
	}

	c.cb.RecordFailure()
}

// settleStatus counts only upstream faults against the circuit. A 404 or
// 401 means the registry answered.
func (c *Client) settleStatus(err *StatusError) {
	if err.Upstream() {
		c.cb.RecordFailure()
		return
	}

	c.cb.RecordSuccess()
}

// DoJSON sends in (if non-nil) as a JSON body and decodes a 2xx response
// into out (if non-nil).
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any, opts ...RequestOption) error {
	req, err := c.newJSONRequest(ctx, method, path, in)
	if err != nil {
		return err
	}

	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer closeBody(resp, c.logger)

	if out == nil {
		_, err = io.Copy(io.Discard, resp.Body)
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", c.serviceName, err)
	}

	return nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	var body io.Reader = http.NoBody

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request: %w", c.serviceName, err)
		}

		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), body)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", c.serviceName, err)
	}

	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// drain reads at most maxErrorBodySize bytes of a non-2xx body and closes it.
func (c *Client) drain(resp *http.Response, logger *slog.Logger) *StatusError {
	defer closeBody(resp, logger)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		logger.Debug("failed to read error body", slog.Any("error", err))
	}

	return &StatusError{Service: c.serviceName, StatusCode: resp.StatusCode, Body: body}
}

func closeBody(resp *http.Response, logger *slog.Logger) {
	if err := resp.Body.Close(); err != nil {
		logger.Debug("failed to close response body", slog.Any("error", err))
	}
}

// stamp forwards the inbound request and correlation IDs and sets the user
// agent unless the caller chose one.
func (c *Client) stamp(ctx context.Context, req *http.Request) {
	if id := middleware.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.HeaderRequestID, id)
	}

	if id := middleware.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.HeaderCorrelationID, id)
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

func (c *Client) buildURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return c.baseURL + path
}

func (c *Client) record(ctx context.Context, method string, status int, elapsed time.Duration, result string) {
	attrs := []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(method),
		semconv.PeerService(c.serviceName),
		ResultKey.String(result),
	}

	if status > 0 {
		attrs = append(attrs, semconv.HTTPResponseStatusCode(status))
	}

	set := metric.WithAttributeSet(attribute.NewSet(attrs...))
	c.metrics.duration.Record(ctx, elapsed.Seconds(), set)
	c.metrics.total.Add(ctx, 1, set)
}
