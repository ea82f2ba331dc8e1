package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	var gaps []time.Duration
	last := time.Now()

	start := time.Now()
	v, err := Retry(context.Background(), RetryConfig{Name: "flaky", Retries: 2, Delay: 100 * time.Millisecond, Backoff: 2}, func(ctx context.Context) (int, error) {
		now := time.Now()
		gaps = append(gaps, now.Sub(last))
		last = now
		attempts++
		if attempts < 3 {
			return 0, Transientf("flaky upstream returned 503")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if v != 42 {
		t.Fatalf("expected 42 got %d", v)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts got %d", attempts)
	}
	if gaps[1] < 100*time.Millisecond {
		t.Fatalf("first backoff too short: %v", gaps[1])
	}
	if gaps[2] < 200*time.Millisecond {
		t.Fatalf("second backoff too short: %v", gaps[2])
	}
	if gaps[2] < gaps[1] {
		t.Fatalf("backoff not monotonically increasing: %v then %v", gaps[1], gaps[2])
	}
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Fatalf("total wait too short: %v", elapsed)
	}
}

func TestRetryZeroRetriesFailsImmediately(t *testing.T) {
	attempts := 0
	start := time.Now()
	_, err := Retry(context.Background(), RetryConfig{Name: "once", Retries: 0, Delay: time.Second}, func(ctx context.Context) (int, error) {
		attempts++
		return 0, Transientf("502 bad gateway")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly one attempt, got %d", attempts)
	}
	if time.Since(start) > 200*time.Millisecond {
		t.Fatal("zero-retry call should not wait")
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), RetryConfig{Name: "perm", Retries: 3, Delay: 10 * time.Millisecond}, func(ctx context.Context) (int, error) {
		attempts++
		return 0, Permanentf("x search returned status 401")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("permanent error must not be retried, got %d attempts", attempts)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Fatalf("last error not propagated: %v", err)
	}
}

func TestRetryReturnsLastError(t *testing.T) {
	attempt := 0
	_, err := Retry(context.Background(), RetryConfig{Name: "exhaust", Retries: 1, Delay: 10 * time.Millisecond}, func(ctx context.Context) (int, error) {
		attempt++
		return 0, Transientf("attempt %d: 503", attempt)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "attempt 2") {
		t.Fatalf("expected last attempt's error, got %v", err)
	}
}

func TestWithTimeoutWinsOverBlockedCall(t *testing.T) {
	start := time.Now()
	_, err := WithTimeout(context.Background(), 50*time.Millisecond, "x", func(ctx context.Context) (string, error) {
		block := make(chan struct{})
		<-block // never resolves
		return "", nil
	})
	elapsed := time.Since(start)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if got, want := err.Error(), "x timed out after 50ms"; got != want {
		t.Fatalf("error = %q, want %q", got, want)
	}
	if elapsed > 500*time.Millisecond {
		t.Fatalf("timeout fired too late: %v", elapsed)
	}
	if !IsRetryable(err) {
		t.Fatal("timeouts must classify as retryable")
	}
}

func TestWithTimeoutCancelsDerivedContext(t *testing.T) {
	cancelled := make(chan struct{})
	_, _ = WithTimeout(context.Background(), 20*time.Millisecond, "slow", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		close(cancelled)
		return 0, ctx.Err()
	})
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("call context was not cancelled on timeout")
	}
}

func TestWithTimeoutPassesThroughResult(t *testing.T) {
	v, err := WithTimeout(context.Background(), time.Second, "fast", func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("got %q, %v", v, err)
	}
}

func TestIsRetryableClassification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{Transientf("anything"), true},
		{Permanentf("429 too many requests"), false}, // typed classification wins over substrings
		{errors.New("upstream returned 503 service unavailable"), true},
		{errors.New("fetch failed"), true},
		{errors.New("ECONNRESET while reading body"), true},
		{errors.New("status 400 from upstream"), true}, // legacy classifier parity
		{errors.New("invalid credentials (401)"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
