package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	e := echo.New()
	e.GET("/guarded", func(c echo.Context) error {
		return c.String(http.StatusOK, "in")
	}, RequireAuth([]byte("secret")))

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthAcceptsSignedToken(t *testing.T) {
	secret := []byte("secret")
	tok, err := SignToken("user-7", secret, time.Minute)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}

	e := echo.New()
	e.GET("/guarded", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get("user_id").(string))
	}, RequireAuth(secret))

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "user-7" {
		t.Fatalf("subject not propagated: %q", rec.Body.String())
	}
}

func TestRequireAuthRejectsWrongSecret(t *testing.T) {
	tok, err := SignToken("user-7", []byte("other"), time.Minute)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}

	e := echo.New()
	e.GET("/guarded", func(c echo.Context) error {
		return c.String(http.StatusOK, "in")
	}, RequireAuth([]byte("secret")))

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestOptionalAuthPassesAnonymous(t *testing.T) {
	e := echo.New()
	e.GET("/open", func(c echo.Context) error {
		if c.Get("user_id") != nil {
			t.Fatalf("anonymous request must not carry user_id")
		}
		return c.String(http.StatusOK, "ok")
	}, OptionalAuth([]byte("secret")))

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSchedulerIsDue(t *testing.T) {
	now := time.Now()
	stale := now.Add(-25 * time.Hour)
	fresh := now.Add(-10 * time.Minute)

	if !isDue("@daily", nil) {
		t.Fatalf("never-run monitor must be due")
	}
	if !isDue("@daily", &stale) {
		t.Fatalf("monitor last run 25h ago must be due daily")
	}
	if isDue("@daily", &fresh) {
		t.Fatalf("recently-run daily monitor must not be due")
	}
	if isDue("@hourly", &fresh) {
		t.Fatalf("10 minutes is not an hour")
	}
	if !isDue("0 * * * *", &stale) {
		t.Fatalf("cron schedule with old last run must be due")
	}
	if !isDue("not a cron", nil) {
		t.Fatalf("invalid cron must degrade to daily, due when never run")
	}
}

func TestSchedulerShutdownCancelsRuns(t *testing.T) {
	sched := &Scheduler{Stop: make(chan struct{}), Interval: time.Hour}
	sched.Start()

	sched.Shutdown()
	select {
	case <-sched.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler context not cancelled after shutdown")
	}

	// a second shutdown must not panic on the already-closed channel
	sched.Shutdown()
}
