package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jsamuelsen/mcphub-gateway/internal/domain"
	"github.com/jsamuelsen/mcphub-gateway/internal/platform/logging"
)

// Call describes one bridged operation for logs, metrics and error detail.
type Call struct {
	// Name identifies the operation, e.g. "list_servers".
	Name string

	// Detail is attached to every normalized error the call produces.
	Detail map[string]any

	// Messages overrides the normalized message per kind.
	Messages map[domain.Kind]string
}

func (c Call) message(kind domain.Kind, fallback map[domain.Kind]string) string {
	if msg, ok := c.Messages[kind]; ok {
		return msg
	}

	return fallback[kind]
}

// CallContext is the per-invocation bookkeeping record. It lives only for
// the duration of one Invoke.
type CallContext struct {
	Attempt int
	Elapsed time.Duration
	LastErr *domain.Error
}

// Operation is one attempt at the external call.
type Operation[T any] func(ctx context.Context) (T, error)

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	Policy     Policy
	Normalizer *Normalizer

	// Logger is an optional logger. If nil, a default logger is used.
	Logger *slog.Logger
}

// Bridge applies a retry policy and error normalization to operations.
// It holds no mutable state and is safe for concurrent use.
type Bridge struct {
	policy     Policy
	normalizer *Normalizer
	logger     *slog.Logger
	now        func() time.Time
}

// NewBridge creates a bridge. A zero Policy falls back to a single attempt.
func NewBridge(cfg BridgeConfig) *Bridge {
	normalizer := cfg.Normalizer
	if normalizer == nil {
		normalizer = NewNormalizer(DefaultClassificationTable())
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{
		policy:     cfg.Policy,
		normalizer: normalizer,
		logger:     logger.With(slog.String("component", "resilience.Bridge")),
		now:        time.Now,
	}
}

// Policy returns a copy of the bridge's policy.
func (b *Bridge) Policy() Policy {
	return b.policy
}

// Normalizer returns the bridge's normalizer.
func (b *Bridge) Normalizer() *Normalizer {
	return b.normalizer
}

// Invoke runs op under b's policy. It returns op's value on success, a
// *domain.Error on terminal failure, or ctx.Err() unchanged when the
// caller's context ends first.
func Invoke[T any](ctx context.Context, b *Bridge, call Call, op Operation[T]) (T, error) {
	var zero T

	start := b.now()
	logger := logging.FromContextOr(ctx, b.logger).With(slog.String("operation", call.Name))
	cc := CallContext{}
	maxAttempts := b.policy.attempts()

	defer func() {
		callDuration.WithLabelValues(call.Name).Observe(time.Since(start).Seconds())
	}()

	for cc.Attempt = 1; ; cc.Attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, b.canceled(logger, call, cc, err)
		}

		res := runAttempt(ctx, b.policy.AttemptTimeout, op)
		cc.Elapsed = b.now().Sub(start)

		err := res.err
		if err == nil {
			attemptsTotal.WithLabelValues(call.Name, outcomeSuccess).Inc()
			if cc.Attempt > 1 {
				logger.Info("call succeeded after retry",
					slog.Int("attempt", cc.Attempt),
					slog.Duration("elapsed", cc.Elapsed),
				)
			}

			return res.value, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, b.canceled(logger, call, cc, ctxErr)
		}

		if res.timedOut {
			err = fmt.Errorf("attempt timed out after %s: %w", b.policy.AttemptTimeout, err)
			cc.LastErr = b.normalizer.normalizeTimeout(err, call)
		} else {
			cc.LastErr = b.normalizer.NormalizeCall(err, call)
		}

		kind := cc.LastErr.Kind()
		failuresTotal.WithLabelValues(call.Name, kind.String()).Inc()

		attrs := []any{
			slog.Int("attempt", cc.Attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("elapsed", cc.Elapsed),
			slog.String("error_kind", kind.String()),
			slog.Any("error", err),
		}

		if !b.policy.ShouldRetry(kind, cc.Attempt) {
			attemptsTotal.WithLabelValues(call.Name, outcomeFailure).Inc()
			logger.Error("call failed", attrs...)

			return zero, withAttempts(cc.LastErr, cc.Attempt)
		}

		attemptsTotal.WithLabelValues(call.Name, outcomeRetry).Inc()

		delay := b.policy.Delay(cc.Attempt)
		logger.Warn("call failed, retrying", append(attrs, slog.Duration("backoff", delay))...)

		if err := sleep(ctx, delay); err != nil {
			cc.Elapsed = b.now().Sub(start)
			return zero, b.canceled(logger, call, cc, err)
		}
	}
}

func (b *Bridge) canceled(logger *slog.Logger, call Call, cc CallContext, err error) error {
	attemptsTotal.WithLabelValues(call.Name, outcomeCanceled).Inc()
	logger.Info("call canceled",
		slog.Int("attempt", cc.Attempt),
		slog.Duration("elapsed", cc.Elapsed),
		slog.Any("error", err),
	)

	return err
}

type attemptResult[T any] struct {
	value    T
	err      error
	timedOut bool

	// panicked holds a value recovered from op, re-raised on the caller's goroutine.
	panicked any
}

// runAttempt runs op under an optional per-attempt deadline. If op ignores its
// context the attempt is abandoned once the deadline or the parent ends; the
// goroutine finishes in the background and its result is discarded.
func runAttempt[T any](ctx context.Context, timeout time.Duration, op Operation[T]) attemptResult[T] {
	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})

	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan attemptResult[T], 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptResult[T]{panicked: r}
			}
		}()

		v, e := op(attemptCtx)
		done <- attemptResult[T]{value: v, err: e}
	}()

	var res attemptResult[T]

	select {
	case res = <-done:
	case <-attemptCtx.Done():
		res.err = attemptCtx.Err()
	}

	if res.panicked != nil {
		panic(res.panicked)
	}

	if res.err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		res.timedOut = true
	}

	return res
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func withAttempts(err *domain.Error, attempts int) *domain.Error {
	if _, ok := err.Detail()["attempts"]; ok {
		return err
	}

	return err.WithDetail("attempts", attempts)
}
