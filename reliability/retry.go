// Package reliability implements C6: retry/backoff, error classification,
// circuit breaking, fault injection, and graceful degradation (spec.md
// §4.6). The retry engine is adapted directly from the teacher's
// runtime/a2a/retry package, generalized from A2A-specific retryability
// rules to the kernel's own Classifier.
package reliability

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/goa-design/kernel/clock"
	"github.com/goa-design/kernel/kernelerrors"
	"github.com/goa-design/kernel/rng"
)

// RetryConfig configures the backoff schedule for Do (spec.md §4.6 "Retry
// policy").
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	Multiplier        float64
	JitterFactor      float64 // in [0,1]
	Timeout           time.Duration
	// IsRetryable classifies an error as retryable. When nil, an error is
	// retryable if Classify puts it in CategoryTransient or
	// CategoryRecoverable.
	IsRetryable func(error) bool
}

// DefaultRetryConfig returns sensible defaults mirroring the teacher's
// retry.DefaultConfig.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
		Timeout:      30 * time.Second,
	}
}

// ExhaustedError is returned when the attempt budget or cfg.Timeout has been
// exhausted (spec.md §4.6 "Termination"); Attempts is the number of attempts
// actually made.
type ExhaustedError struct {
	Attempts      int
	TotalDuration time.Duration
	LastError     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts over %v: %v", e.Attempts, e.TotalDuration, e.LastError)
}

func (e *ExhaustedError) Unwrap() error { return e.LastError }

// Retrier executes operations under a RetryConfig, using clock for timing
// so tests can run deterministically without real sleeps.
type Retrier struct {
	clock  clock.Clock
	jitter *rng.Jitter
}

// NewRetrier constructs a Retrier. A nil clock uses the real clock.
func NewRetrier(c clock.Clock) *Retrier {
	if c == nil {
		c = clock.NewReal()
	}
	return &Retrier{clock: c, jitter: rng.NewJitter()}
}

// Do executes fn, retrying per cfg until success, a non-retryable error, the
// attempt budget, or cfg.Timeout is exhausted (spec.md §4.6). Both a
// non-retryable failure and an exhausted attempt budget surface as a
// kernelerrors.Error coded CodeRetryExhausted wrapping the underlying cause,
// so C6's failures fit the closed error taxonomy the same way C1's outbox
// errors do (spec.md §7, §8: "Retry attempts = 1 and first call fails
// permanently -> return RETRY_EXHAUSTED wrapping the permanent error").
func (r *Retrier) Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	isRetryable := cfg.IsRetryable
	if isRetryable == nil {
		isRetryable = func(err error) bool {
			return Classify(err).Category == CategoryTransient || Classify(err).Category == CategoryRecoverable
		}
	}

	start := r.clock.Now()
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		attempts = attempt
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return kernelerrors.Wrap(kernelerrors.CodeRetryExhausted,
				fmt.Sprintf("attempt %d failed with a non-retryable error", attempt), err)
		}
		if attempt >= cfg.MaxAttempts {
			break
		}
		if cfg.Timeout > 0 && r.clock.Now().Sub(start) >= cfg.Timeout {
			break
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		backoff := r.calculateBackoff(cfg, attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.clock.After(backoff):
		}
	}

	exhausted := &ExhaustedError{
		Attempts:      attempts,
		TotalDuration: r.clock.Now().Sub(start),
		LastError:     lastErr,
	}
	return kernelerrors.Wrap(kernelerrors.CodeRetryExhausted, exhausted.Error(), exhausted)
}

// calculateBackoff computes the delay for attempt n (1-indexed), per the
// formula in spec.md §4.6: base = min(initial*multiplier^(n-1), max_delay);
// jitter = uniform(-1,1) * jitter_factor * base; delay = max(0, floor(base+jitter)),
// capped again at max_delay so a positive jitter never pushes it past the cap.
func (r *Retrier) calculateBackoff(cfg RetryConfig, attempt int) time.Duration {
	base := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && base > float64(cfg.MaxDelay) {
		base = float64(cfg.MaxDelay)
	}
	if cfg.JitterFactor > 0 {
		jitter := base * cfg.JitterFactor * r.jitter.Signed()
		base += jitter
	}
	if base < 0 {
		base = 0
	}
	if cfg.MaxDelay > 0 && base > float64(cfg.MaxDelay) {
		base = float64(cfg.MaxDelay)
	}
	return time.Duration(base)
}
