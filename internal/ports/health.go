package ports

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrDuplicateChecker is returned when a checker name is registered twice.
	ErrDuplicateChecker = errors.New("duplicate health checker")

	// ErrDegraded marks a check that still serves traffic at reduced
	// confidence, such as an upstream whose circuit is half-open. Checkers
	// wrap it; the check is then reported degraded rather than unhealthy.
	ErrDegraded = errors.New("degraded")
)

// DefaultCheckTimeout bounds a single check when the registry is built
// without WithCheckTimeout.
const DefaultCheckTimeout = 2 * time.Second

// HealthChecker is implemented by components that can report their health.
// The registry adapter, for example, reports its circuit breaker.
type HealthChecker interface {
	// Name is the key the check is reported under.
	Name() string

	// Check returns nil when healthy, an error wrapping ErrDegraded when
	// impaired but usable, and any other error when unusable.
	Check(ctx context.Context) error
}

// HealthRegistry aggregates health checks from multiple components.
type HealthRegistry interface {
	// Register adds a checker. Names must be unique.
	Register(checker HealthChecker) error

	// CheckAll runs every registered check concurrently under ctx.
	CheckAll(ctx context.Context) *HealthResult
}

// HealthStatus is the state of one check or of the whole service.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// Serving reports whether the service should keep receiving traffic.
func (s HealthStatus) Serving() bool {
	return s != HealthStatusUnhealthy
}

// worse orders statuses healthy < degraded < unhealthy.
func (s HealthStatus) worse(other HealthStatus) HealthStatus {
	rank := func(h HealthStatus) int {
		switch h {
		case HealthStatusUnhealthy:
			return 2
		case HealthStatusDegraded:
			return 1
		default:
			return 0
		}
	}

	if rank(other) > rank(s) {
		return other
	}

	return s
}

// HealthResult is the aggregate of every registered check.
type HealthResult struct {
	// Status is the worst status among Checks.
	Status HealthStatus `json:"status"`

	Checks    map[string]*CheckResult `json:"checks"`
	Timestamp time.Time               `json:"timestamp"`
}

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Status   HealthStatus  `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// DefaultHealthRegistry runs checks concurrently, each under its own
// deadline, so one hung dependency cannot stall readiness.
type DefaultHealthRegistry struct {
	mu       sync.RWMutex
	checkers []HealthChecker
	timeout  time.Duration
}

// HealthRegistryOption configures a DefaultHealthRegistry.
type HealthRegistryOption func(*DefaultHealthRegistry)

// WithCheckTimeout sets the per-check deadline. Zero disables it.
func WithCheckTimeout(d time.Duration) HealthRegistryOption {
	return func(r *DefaultHealthRegistry) {
		r.timeout = d
	}
}

// NewHealthRegistry creates an empty health registry.
func NewHealthRegistry(opts ...HealthRegistryOption) *DefaultHealthRegistry {
	r := &DefaultHealthRegistry{timeout: DefaultCheckTimeout}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a health checker to the registry.
func (r *DefaultHealthRegistry) Register(checker HealthChecker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := checker.Name()
	for _, c := range r.checkers {
		if c.Name() == name {
			return fmt.Errorf("%w: %s", ErrDuplicateChecker, name)
		}
	}

	r.checkers = append(r.checkers, checker)

	return nil
}

// CheckAll runs all registered checks concurrently. A failing check never
// cancels its siblings.
func (r *DefaultHealthRegistry) CheckAll(ctx context.Context) *HealthResult {
	r.mu.RLock()
	checkers := append([]HealthChecker(nil), r.checkers...)
	r.mu.RUnlock()

	results := make([]*CheckResult, len(checkers))

	var g errgroup.Group
	for i, checker := range checkers {
		g.Go(func() error {
			results[i] = r.run(ctx, checker)
			return nil
		})
	}

	_ = g.Wait()

	result := &HealthResult{
		Status:    HealthStatusHealthy,
		Checks:    make(map[string]*CheckResult, len(checkers)),
		Timestamp: time.Now(),
	}

	for i, checker := range checkers {
		result.Checks[checker.Name()] = results[i]
		result.Status = result.Status.worse(results[i].Status)
	}

	return result
}

func (r *DefaultHealthRegistry) run(ctx context.Context, checker HealthChecker) *CheckResult {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)

		defer cancel()
	}

	start := time.Now()
	err := checker.Check(ctx)
	res := &CheckResult{Status: HealthStatusHealthy, Duration: time.Since(start)}

	switch {
	case err == nil:
	case errors.Is(err, ErrDegraded):
		res.Status = HealthStatusDegraded
		res.Message = err.Error()
	default:
		res.Status = HealthStatusUnhealthy
		res.Message = err.Error()
	}

	return res
}
