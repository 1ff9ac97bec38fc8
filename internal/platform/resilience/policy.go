// Package resilience provides the call bridge that wraps an unreliable
// outbound operation with bounded retries and normalizes every failure into
// the domain error taxonomy.
package resilience

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jsamuelsen/mcphub-gateway/internal/domain"
)

// Default policy values.
const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 2 * time.Second
	DefaultMaxBackoff     = 10 * time.Second
	DefaultMultiplier     = 2.0
)

// ErrInvalidPolicy is returned by NewPolicy for out-of-range settings.
var ErrInvalidPolicy = errors.New("invalid retry policy")

// BackoffFunc returns the delay to wait after the given failed attempt.
// Attempts are numbered from 1.
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff returns initial * multiplier^(attempt-1), capped at maxDelay.
// A multiplier below 1 is treated as 1, so the sequence never decreases.
// Without a cap the delay saturates at the largest Duration.
func ExponentialBackoff(initial time.Duration, multiplier float64, maxDelay time.Duration) BackoffFunc {
	if multiplier < 1 {
		multiplier = 1
	}

	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}

		delay := float64(initial) * math.Pow(multiplier, float64(attempt-1))
		if maxDelay > 0 && delay > float64(maxDelay) {
			return maxDelay
		}

		// float64(math.MaxInt64) rounds up to 2^63, which no Duration can hold.
		if delay >= float64(math.MaxInt64) {
			return time.Duration(math.MaxInt64)
		}

		return time.Duration(delay)
	}
}

// ConstantBackoff waits the same delay after every attempt.
func ConstantBackoff(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

// NoBackoff retries immediately.
func NoBackoff() BackoffFunc {
	return ConstantBackoff(0)
}

// KindSet is an immutable set of error kinds.
type KindSet uint8

// NewKindSet builds a set from kinds.
func NewKindSet(kinds ...domain.Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s |= 1 << k
	}

	return s
}

// ParseKindSet builds a set from stable kind tags.
func ParseKindSet(tags []string) (KindSet, error) {
	var s KindSet

	for _, tag := range tags {
		k, err := domain.ParseKind(tag)
		if err != nil {
			return 0, err
		}

		s |= 1 << k
	}

	return s, nil
}

// Has reports whether k is in the set.
func (s KindSet) Has(k domain.Kind) bool {
	return s&(1<<k) != 0
}

// Empty reports whether the set has no members.
func (s KindSet) Empty() bool {
	return s == 0
}

// Kinds returns the members in declaration order.
func (s KindSet) Kinds() []domain.Kind {
	kinds := make([]domain.Kind, 0, len(domain.Kinds))
	for _, k := range domain.Kinds {
		if s.Has(k) {
			kinds = append(kinds, k)
		}
	}

	return kinds
}

func (s KindSet) String() string {
	tags := make([]string, 0, len(domain.Kinds))
	for _, k := range s.Kinds() {
		tags = append(tags, k.String())
	}

	return "{" + strings.Join(tags, ",") + "}"
}

// Policy governs how many times an operation is attempted, how long to wait
// between attempts, and which failures are worth retrying. It is a value
// type; the bridge keeps its own copy.
type Policy struct {
	// MaxAttempts is the total attempt budget including the first call.
	MaxAttempts int

	// Backoff computes the wait after a failed attempt. Nil means no wait.
	Backoff BackoffFunc

	// RetryableKinds lists the kinds that may be retried.
	RetryableKinds KindSet

	// AttemptTimeout bounds a single attempt. Zero disables it.
	AttemptTimeout time.Duration
}

// PolicyConfig is the configuration-facing form of a Policy.
type PolicyConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	AttemptTimeout time.Duration
	RetryableKinds []string
}

// DefaultPolicy retries Network failures three times with 2s, 4s, 8s waits.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		Backoff:        ExponentialBackoff(DefaultInitialBackoff, DefaultMultiplier, DefaultMaxBackoff),
		RetryableKinds: NewKindSet(domain.KindNetwork),
	}
}

// NewPolicy validates cfg and builds an exponential-backoff policy from it.
func NewPolicy(cfg PolicyConfig) (Policy, error) {
	if cfg.MaxAttempts < 1 {
		return Policy{}, fmt.Errorf("%w: max_attempts must be at least 1, got %d", ErrInvalidPolicy, cfg.MaxAttempts)
	}

	if cfg.InitialBackoff < 0 || cfg.MaxBackoff < 0 || cfg.AttemptTimeout < 0 {
		return Policy{}, fmt.Errorf("%w: durations must not be negative", ErrInvalidPolicy)
	}

	retryable, err := ParseKindSet(cfg.RetryableKinds)
	if err != nil {
		return Policy{}, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}

	return Policy{
		MaxAttempts:    cfg.MaxAttempts,
		Backoff:        ExponentialBackoff(cfg.InitialBackoff, cfg.Multiplier, cfg.MaxBackoff),
		RetryableKinds: retryable,
		AttemptTimeout: cfg.AttemptTimeout,
	}, nil
}

// ShouldRetry reports whether a failure of kind k on the given attempt
// leaves room for another attempt.
func (p Policy) ShouldRetry(k domain.Kind, attempt int) bool {
	return p.RetryableKinds.Has(k) && attempt < p.MaxAttempts
}

// Delay returns the wait after the given failed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}

	if d := p.Backoff(attempt); d > 0 {
		return d
	}

	return 0
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}

	return p.MaxAttempts
}
