package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kromahlusenii-ops/civic-voices-sub003/config"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/search"
	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

type stubProvider struct {
	platform models.Platform
	posts    []models.Post
	err      error

	mu      sync.Mutex
	gotOpts models.Options
}

func (p *stubProvider) Platform() models.Platform { return p.platform }
func (p *stubProvider) Configured() bool          { return true }

func (p *stubProvider) Search(ctx context.Context, query string, opts models.Options) (models.Result, error) {
	p.mu.Lock()
	p.gotOpts = opts
	p.mu.Unlock()
	return models.Result{Posts: p.posts}, p.err
}

func testServer(providers ...search.Provider) *Server {
	cfg := &config.Config{}
	cfg.Server.JWTSecret = "test-secret"
	cfg.Server.SearchStreamEnabled = true
	cfg.Platforms.MaxResults = 25
	orch := search.NewOrchestrator(providers, nil, config.ResilienceConfig{
		Delay:           time.Millisecond,
		Backoff:         2.0,
		ProviderTimeout: time.Second,
		AITimeout:       time.Second,
	}, nil, nil)
	return &Server{
		cfg:    cfg,
		orch:   orch,
		gate:   AllowAll{},
		logger: log.New(log.Writer(), "[TEST] ", log.LstdFlags),
	}
}

// sseEvents extracts the event names from a raw SSE body in order.
func sseEvents(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "event: ") {
			out = append(out, strings.TrimPrefix(line, "event: "))
		}
	}
	return out
}

func TestStreamSearchRejectsMissingQuery(t *testing.T) {
	s := testServer()
	e := s.Echo()

	req := httptest.NewRequest(http.MethodGet, "/api/search/stream?sources=x", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "event:") {
		t.Fatalf("validation failure must not write events: %q", rec.Body.String())
	}
}

func TestStreamSearchRejectsUnknownPlatform(t *testing.T) {
	s := testServer()
	e := s.Echo()

	req := httptest.NewRequest(http.MethodGet, "/api/search/stream?q=transit&sources=myspace", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStreamSearchEmitsEventSequence(t *testing.T) {
	posts := []models.Post{{
		ID:        "p1",
		Platform:  models.PlatformBluesky,
		Text:      "the council approved the measure",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
		Likes:     5,
	}}
	s := testServer(&stubProvider{platform: models.PlatformBluesky, posts: posts})
	e := s.Echo()

	req := httptest.NewRequest(http.MethodGet, "/api/search/stream?q=council&sources=bluesky", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("expected event-stream content type, got %q", ct)
	}

	events := sseEvents(rec.Body.String())
	want := []string{"connected", "platform_started", "platform_complete", "stats", "complete"}
	if len(events) != len(want) {
		t.Fatalf("expected %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d: want %s, got %s (%v)", i, want[i], events[i], events)
		}
	}
	if !strings.Contains(rec.Body.String(), `"totalPosts":1`) {
		t.Fatalf("stats payload missing total: %s", rec.Body.String())
	}
}

func TestStreamSearchPartialFailureStaysInBand(t *testing.T) {
	s := testServer(
		&stubProvider{platform: models.PlatformX, err: errors.New("upstream unreachable")},
		&stubProvider{platform: models.PlatformBluesky, posts: []models.Post{{
			ID: "b1", Platform: models.PlatformBluesky, Text: "ok", CreatedAt: time.Now().UTC(),
		}}},
	)
	e := s.Echo()

	req := httptest.NewRequest(http.MethodGet, "/api/search/stream?q=zoning&sources=x,bluesky", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 despite a failing platform, got %d", rec.Code)
	}
	events := sseEvents(rec.Body.String())
	var sawError bool
	for _, ev := range events {
		if ev == "platform_error" {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("expected platform_error event: %v", events)
	}
	if events[len(events)-1] != "complete" {
		t.Fatalf("stream must end with complete: %v", events)
	}
	if !strings.Contains(rec.Body.String(), "X search failed") {
		t.Fatalf("warning missing from complete payload: %s", rec.Body.String())
	}
}

type denyGate struct{}

func (denyGate) CanPerformSearch(ctx context.Context, userID, timeFilter string) error {
	return errors.New("credits exhausted")
}

func TestStreamSearchGateDenial(t *testing.T) {
	s := testServer(&stubProvider{platform: models.PlatformX})
	s.SetGate(denyGate{})
	e := s.Echo()

	req := httptest.NewRequest(http.MethodGet, "/api/search/stream?q=anything&sources=x", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
}

func TestStreamSearchDisabledByConfig(t *testing.T) {
	s := testServer(&stubProvider{platform: models.PlatformX})
	s.cfg.Server.SearchStreamEnabled = false
	e := s.Echo()

	req := httptest.NewRequest(http.MethodGet, "/api/search/stream?q=anything", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestStreamSearchRejectsMissingSources(t *testing.T) {
	s := testServer(&stubProvider{platform: models.PlatformX})
	e := s.Echo()

	for _, target := range []string{
		"/api/search/stream?q=roads",
		"/api/search/stream?q=roads&sources=",
		"/api/search/stream?q=roads&sources=%20,%20",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "event:") {
			t.Fatalf("%s: missing sources must not open a stream", target)
		}
	}
}

func TestParseSearchRequestDefaults(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/search/stream?q=roads&sources=x", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	parsed, err := parseSearchRequest(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed.Sources) != 1 || parsed.Sources[0] != models.PlatformX {
		t.Fatalf("unexpected sources %v", parsed.Sources)
	}
	if parsed.Sort != models.SortRelevance {
		t.Fatalf("missing sort must default to relevance, got %q", parsed.Sort)
	}
}

func TestStreamSearchDefaultsMaxResultsFromConfig(t *testing.T) {
	stub := &stubProvider{platform: models.PlatformX}
	s := testServer(stub)
	e := s.Echo()

	req := httptest.NewRequest(http.MethodGet, "/api/search/stream?q=roads&sources=x", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	stub.mu.Lock()
	got := stub.gotOpts.MaxResults
	stub.mu.Unlock()
	if got != 25 {
		t.Fatalf("omitted limit must fall back to configured max_results, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/search/stream?q=roads&sources=x&limit=7", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	stub.mu.Lock()
	got = stub.gotOpts.MaxResults
	stub.mu.Unlock()
	if got != 7 {
		t.Fatalf("explicit limit must win over the configured default, got %d", got)
	}
}

func TestParseSearchRequestRejectsBadLimit(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/search/stream?q=roads&limit=lots", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if _, err := parseSearchRequest(c); err == nil {
		t.Fatalf("expected limit parse error")
	}
}
