package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/search"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/store"
	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

var serverTracer trace.Tracer = otel.Tracer("civicvoices/internal/server")

// sseSink serializes pipeline events onto one SSE response. Write errors
// are surfaced to the orchestrator, which logs and keeps aggregating; a
// dropped client never aborts a search.
type sseSink struct {
	mu      sync.Mutex
	resp    *echo.Response
	flusher http.Flusher
}

func newSSESink(resp *echo.Response) (*sseSink, error) {
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}
	return &sseSink{resp: resp, flusher: flusher}, nil
}

func (s *sseSink) Send(ev search.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.resp.Write([]byte("event: " + string(ev.EventType()) + "\n")); err != nil {
		return err
	}
	if _, err := s.resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// streamSearch runs one search and streams its progress via Server-Sent
// Events. Validation problems are rejected with a 400 before the stream
// opens; everything after the first event degrades in-band.
func (s *Server) streamSearch(c echo.Context) error {
	req := c.Request()
	ctx := req.Context()
	ctx, span := serverTracer.Start(ctx, "Server.streamSearch")
	defer span.End()
	c.SetRequest(req.WithContext(ctx))

	if !s.cfg.Server.SearchStreamEnabled {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search stream disabled")
	}

	searchReq, err := parseSearchRequest(c)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if searchReq.MaxResults == 0 {
		searchReq.MaxResults = s.cfg.Platforms.MaxResults
	}

	userID, _ := c.Get("user_id").(string)
	if err := s.gate.CanPerformSearch(ctx, userID, searchReq.TimeFilter); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return echo.NewHTTPError(http.StatusPaymentRequired, err.Error())
	}
	if err := s.orch.Validate(searchReq); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	span.SetAttributes(
		attribute.String("search.query", searchReq.Query),
		attribute.Int("search.sources", len(searchReq.Sources)),
	)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	sink, err := newSSESink(resp)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	outcome, err := s.orch.Run(ctx, searchReq, sink)
	if err != nil {
		// Validation already passed, so this cannot happen; log and end
		// the stream rather than writing a late status code.
		s.logger.Printf("search run failed after stream start: %v", err)
		span.RecordError(err)
		return nil
	}

	if s.store != nil {
		s.recordHistory(userID, searchReq, outcome)
	}
	return nil
}

func (s *Server) recordHistory(userID string, req search.Request, outcome *search.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.store.SaveSearch(ctx, store.SearchRecord{
		UserID:     userID,
		Query:      req.Query,
		Sources:    req.Sources,
		Sort:       req.Sort,
		TotalPosts: outcome.Summary.TotalPosts,
		Summary:    outcome.Summary,
		Warnings:   outcome.Warnings,
		DurationMS: outcome.Duration.Milliseconds(),
	}); err != nil {
		s.logger.Printf("history save failed: %v", err)
	}
}

func parseSearchRequest(c echo.Context) (search.Request, error) {
	var req search.Request
	req.Query = strings.TrimSpace(c.QueryParam("q"))

	rawSources := c.QueryParam("sources")
	if strings.TrimSpace(rawSources) == "" {
		return req, fmt.Errorf("at least one source is required")
	}
	for _, name := range strings.Split(rawSources, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p, err := models.ParsePlatform(name)
		if err != nil {
			return req, err
		}
		req.Sources = append(req.Sources, p)
	}

	sort, err := models.ParseSort(c.QueryParam("sort"))
	if err != nil {
		return req, err
	}
	req.Sort = sort
	req.TimeFilter = strings.TrimSpace(c.QueryParam("time"))
	req.Language = strings.TrimSpace(c.QueryParam("lang"))
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return req, fmt.Errorf("invalid limit: %q", raw)
		}
		req.MaxResults = n
	}
	return req, nil
}
