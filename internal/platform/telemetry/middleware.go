package telemetry

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/mcphub-gateway/internal/platform/logging"
)

// HeaderTraceID carries the request's trace ID back to the caller.
const HeaderTraceID = "X-Trace-ID"

const scope = "github.com/jsamuelsen/mcphub-gateway/internal/platform/telemetry"

// serverInstruments are the per-route HTTP server metrics.
type serverInstruments struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

func newServerInstruments(mp metric.MeterProvider) (*serverInstruments, error) {
	meter := mp.Meter(scope)

	duration, durErr := meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Time to answer a gateway request"),
		metric.WithUnit("s"),
	)
	total, totalErr := meter.Int64Counter("http.server.request.total",
		metric.WithDescription("Gateway requests by route and status"),
	)
	inFlight, flightErr := meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("Gateway requests being served"),
	)

	if err := errors.Join(durErr, totalErr, flightErr); err != nil {
		return nil, err
	}

	return &serverInstruments{duration: duration, total: total, inFlight: inFlight}, nil
}

// Middleware opens an otelgin server span per request, records route
// metrics on the global meter provider and echoes the trace ID in
// HeaderTraceID. Requests under /-/ (health checks and the metrics scrape)
// are not traced.
func Middleware(serviceName string) gin.HandlerFunc {
	return middleware(serviceName, otel.GetMeterProvider())
}

func middleware(serviceName string, mp metric.MeterProvider) gin.HandlerFunc {
	inst, err := newServerInstruments(mp)
	if err != nil {
		otel.Handle(err)
	}

	tracing := otelgin.Middleware(serviceName, otelgin.WithFilter(traced))

	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		base := []attribute.KeyValue{
			semconv.HTTPRequestMethodKey.String(c.Request.Method),
			semconv.HTTPRoute(route),
		}

		if inst != nil {
			active := metric.WithAttributeSet(attribute.NewSet(base...))
			inst.inFlight.Add(ctx, 1, active)

			defer inst.inFlight.Add(ctx, -1, active)
		}

		// otelgin runs the rest of the chain inside its span. The header
		// must be set before the first write, so the writer sets it.
		c.Writer = &traceHeaderWriter{ResponseWriter: c.Writer, ctx: c}

		tracing(c)

		if inst != nil {
			done := metric.WithAttributeSet(attribute.NewSet(append(base, semconv.HTTPResponseStatusCode(c.Writer.Status()))...))
			inst.duration.Record(ctx, time.Since(start).Seconds(), done)
			inst.total.Add(ctx, 1, done)
		}
	}
}

// LogTraceID tags the request logger with the active trace ID so log lines
// can be joined with their spans. It must run inside Middleware.
func LogTraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			ctx := logging.WithTraceID(c.Request.Context(), sc.TraceID().String())
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()
	}
}

func traced(r *http.Request) bool {
	return !strings.HasPrefix(r.URL.Path, "/-/")
}

// traceHeaderWriter sets HeaderTraceID on the first header write.
type traceHeaderWriter struct {
	gin.ResponseWriter

	ctx     *gin.Context
	written bool
}

func (w *traceHeaderWriter) setHeader() {
	if w.written {
		return
	}

	w.written = true

	if sc := trace.SpanContextFromContext(w.ctx.Request.Context()); sc.HasTraceID() {
		w.Header().Set(HeaderTraceID, sc.TraceID().String())
	}
}

func (w *traceHeaderWriter) WriteHeader(code int) {
	w.setHeader()
	w.ResponseWriter.WriteHeader(code)
}

func (w *traceHeaderWriter) WriteHeaderNow() {
	w.setHeader()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *traceHeaderWriter) Write(data []byte) (int, error) {
	w.setHeader()
	return w.ResponseWriter.Write(data)
}

func (w *traceHeaderWriter) WriteString(s string) (int, error) {
	w.setHeader()
	return w.ResponseWriter.WriteString(s)
}
