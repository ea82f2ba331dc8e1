// Package resilience bounds and retries calls to unreliable upstreams.
// Every provider call is wrapped as Retry(WithTimeout(call)): the timeout
// applies per attempt, never to the whole retry sequence.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Error is a classified upstream failure. Providers and the timeout layer
// set Retryable explicitly so the retry loop does not have to sniff
// error-message text for well-behaved callers.
type Error struct {
	Msg       string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return e.Msg + ": " + e.Err.Error()
		}
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Retryable: true, Err: err}
}

// Transientf builds a retryable error from a format string.
func Transientf(format string, args ...interface{}) error {
	return &Error{Msg: fmt.Sprintf(format, args...), Retryable: true}
}

// Permanent wraps err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Retryable: false, Err: err}
}

// Permanentf builds a non-retryable error from a format string.
func Permanentf(format string, args ...interface{}) error {
	return &Error{Msg: fmt.Sprintf(format, args...), Retryable: false}
}

// retryableFragments is the fallback substring classifier applied to errors
// that carry no explicit classification. "400" is kept for parity with the
// legacy classifier; do not remove it without confirming upstream semantics.
var retryableFragments = []string{
	"400", "429", "500", "502", "503", "504",
	"timeout", "network", "econnreset", "fetch failed",
}

// IsRetryable reports whether err should be retried. A typed *Error wins;
// anything else falls back to case-insensitive substring matching.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Retryable
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range retryableFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

// WithTimeout runs fn with a wall-clock bound of d. If the timer wins the
// derived context is cancelled and a retryable "<name> timed out after <n>ms"
// error is returned; a badly behaved fn may still resolve late, in which case
// its result is discarded.
func WithTimeout[T any](ctx context.Context, d time.Duration, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	callCtx, cancel := context.WithCancel(ctx)

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(callCtx)
		done <- outcome{value: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case out := <-done:
		cancel()
		return out.value, out.err
	case <-timer.C:
		cancel()
		return zero, &Error{
			Msg:       fmt.Sprintf("%s timed out after %dms", name, d.Milliseconds()),
			Retryable: true,
		}
	case <-ctx.Done():
		cancel()
		return zero, ctx.Err()
	}
}

// RetryConfig controls the retry loop around one upstream call.
type RetryConfig struct {
	Name    string
	Retries int           // additional attempts after the first
	Delay   time.Duration // wait before the first retry
	Backoff float64       // multiplier applied to each subsequent wait
}

func (c RetryConfig) normalized() RetryConfig {
	if c.Delay <= 0 {
		c.Delay = time.Second
	}
	if c.Backoff < 1 {
		c.Backoff = 2
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	return c
}

// Retry invokes fn up to Retries+1 times, waiting Delay*Backoff^(k-1) before
// attempt k+1. Attempts are strictly sequential. A non-retryable error, or
// exhausting the budget, returns the last error unchanged.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	cfg = cfg.normalized()

	maxDelay := time.Duration(float64(cfg.Delay) * math.Pow(cfg.Backoff, float64(cfg.Retries)))
	if maxDelay < cfg.Delay {
		maxDelay = cfg.Delay
	}
	policy := retrypolicy.NewBuilder[T]().
		WithBackoffFactor(cfg.Delay, maxDelay, cfg.Backoff).
		WithMaxRetries(cfg.Retries).
		HandleIf(func(_ T, err error) bool { return err != nil && IsRetryable(err) }).
		ReturnLastFailure().
		Build()

	return failsafe.With(policy).WithContext(ctx).Get(func() (T, error) {
		return fn(ctx)
	})
}
