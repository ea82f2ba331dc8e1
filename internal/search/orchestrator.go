// Package search implements the streaming multi-platform search pipeline:
// validate, fan out to every requested provider, collect partial results,
// rank, summarize, optionally enrich with an AI analysis, and emit typed
// progress events along the way. Partial provider failure is a normal
// outcome; only request validation aborts a run.
package search

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kromahlusenii-ops/civic-voices-sub003/config"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/credibility"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/resilience"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/sentiment"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/telemetry"
	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

var searchTracer trace.Tracer = otel.Tracer("civicvoices/internal/search")

// Provider is one platform integration. Unconfigured providers return a
// zero-post result rather than an error.
type Provider interface {
	Platform() models.Platform
	Configured() bool
	Search(ctx context.Context, query string, opts models.Options) (models.Result, error)
}

// Analyzer is the optional LLM enrichment step.
type Analyzer interface {
	Configured() bool
	Analyze(ctx context.Context, query string, posts []models.Post) (*models.AIAnalysis, error)
}

// Request is one validated-or-not search invocation.
type Request struct {
	Query      string
	Sources    []models.Platform
	TimeFilter string
	Language   string
	Sort       models.Sort
	MaxResults int
}

// ValidationError is the only error class that aborts a run before any
// event is emitted. Servers map it to a 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Outcome is the terminal result handed back to the caller alongside the
// event stream, for history recording and headless (scheduled) runs.
type Outcome struct {
	Posts      []models.Post
	Summary    models.Summary
	AIAnalysis *models.AIAnalysis
	Warnings   []string
	Duration   time.Duration
}

// Orchestrator coordinates provider fan-out, ranking and enrichment.
type Orchestrator struct {
	providers map[models.Platform]Provider
	analyzer  Analyzer
	cfg       config.ResilienceConfig
	metrics   *telemetry.Metrics
	logger    *log.Logger
}

// NewOrchestrator builds the pipeline over the given providers. analyzer
// and metrics may be nil.
func NewOrchestrator(providers []Provider, analyzer Analyzer, cfg config.ResilienceConfig, metrics *telemetry.Metrics, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)
	}
	byPlatform := make(map[models.Platform]Provider, len(providers))
	for _, p := range providers {
		byPlatform[p.Platform()] = p
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 30 * time.Second
	}
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = 45 * time.Second
	}
	return &Orchestrator{
		providers: byPlatform,
		analyzer:  analyzer,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// Validate checks the request without running it.
func (o *Orchestrator) Validate(req Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return &ValidationError{Reason: "query is required"}
	}
	if len(req.Sources) == 0 {
		return &ValidationError{Reason: "at least one source is required"}
	}
	return nil
}

// Run executes one search, emitting events to sink as it progresses. The
// returned Outcome mirrors the final complete event. Only validation can
// fail; every later problem is absorbed into events and warnings.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink Sink) (*Outcome, error) {
	if err := o.Validate(req); err != nil {
		return nil, err
	}
	start := time.Now()
	searchID := uuid.NewString()
	ctx, span := searchTracer.Start(ctx, "search.Run", trace.WithAttributes(
		attribute.String("search.id", searchID),
		attribute.String("search.query", req.Query),
		attribute.Int("search.sources", len(req.Sources)),
		attribute.String("search.sort", string(req.Sort)),
	))
	defer span.End()

	if req.TimeFilter == "" {
		req.TimeFilter = "week"
	}
	if req.Sort == "" {
		req.Sort = models.SortRelevance
	}
	sources := dedupSources(req.Sources)

	o.emit(sink, ConnectedEvent{
		SearchID:   searchID,
		Query:      req.Query,
		Sources:    sources,
		TimeFilter: req.TimeFilter,
		Language:   req.Language,
		Sort:       req.Sort,
	})

	agg := newAggContext()
	var wg sync.WaitGroup
	for _, platform := range sources {
		wg.Add(1)
		go func(platform models.Platform) {
			defer wg.Done()
			o.runPlatform(ctx, platform, req, agg, sink)
		}(platform)
	}
	wg.Wait() // settle-all barrier: stats must happen after every task

	posts, counts, warnings := agg.snapshot()
	posts = credibility.ScorePosts(posts)
	posts = sentiment.LabelPosts(posts)
	credSummary := credibility.Summarize(posts)
	timeRange := postTimeRange(posts)

	o.emit(sink, StatsEvent{
		TotalPosts:  len(posts),
		Platforms:   counts,
		Credibility: credSummary,
		TimeRange:   timeRange,
	})

	var analysis *models.AIAnalysis
	if o.analyzer != nil && o.analyzer.Configured() && len(posts) > 0 {
		o.emit(sink, AIAnalysisStartedEvent{})
		result, err := resilience.WithTimeout(ctx, o.cfg.AITimeout, "AI analysis", func(ctx context.Context) (*models.AIAnalysis, error) {
			return o.analyzer.Analyze(ctx, req.Query, posts)
		})
		if err != nil {
			o.logger.Printf("ai analysis failed for %q: %v", req.Query, err)
			warnings = append(warnings, fmt.Sprintf("AI analysis failed: %v", err))
			o.emit(sink, AIAnalysisErrorEvent{Error: err.Error()})
		} else {
			analysis = result
			o.emit(sink, AIAnalysisCompleteEvent{Analysis: analysis})
		}
	}

	overall := ""
	if analysis != nil {
		overall = analysis.Overall
	}
	summary := models.Summary{
		TotalPosts:  len(posts),
		Platforms:   counts,
		Sentiment:   sentiment.Distribution(len(posts), overall),
		TimeRange:   timeRange,
		Credibility: credSummary,
	}

	ranked := credibility.Apply(req.Sort, posts)

	o.emit(sink, CompleteEvent{
		Posts:      ranked,
		Summary:    summary,
		Query:      req.Query,
		Sort:       req.Sort,
		AIAnalysis: analysis,
		Warnings:   warnings,
	})

	duration := time.Since(start)
	o.metrics.ObserveSearch("ok", duration, len(posts))
	span.SetAttributes(attribute.Int("search.total_posts", len(posts)))
	span.SetStatus(codes.Ok, "completed")
	o.logger.Printf("search %q completed: %d posts from %d sources in %v", req.Query, len(posts), len(sources), duration)

	return &Outcome{
		Posts:      ranked,
		Summary:    summary,
		AIAnalysis: analysis,
		Warnings:   warnings,
		Duration:   duration,
	}, nil
}

// runPlatform executes one provider task. It always records exactly one
// count entry for its platform, success or failure, and never lets an error
// escape to the caller.
func (o *Orchestrator) runPlatform(ctx context.Context, platform models.Platform, req Request, agg *aggContext, sink Sink) {
	name := DisplayName(platform)
	taskCtx, span := searchTracer.Start(ctx, "search.platform", trace.WithAttributes(
		attribute.String("platform", string(platform)),
	))
	defer span.End()

	o.emit(sink, PlatformStartedEvent{Platform: platform})

	provider, ok := o.providers[platform]
	if !ok {
		agg.record(platform, nil)
		agg.warn(fmt.Sprintf("%s search failed: no provider registered", name))
		o.emit(sink, PlatformErrorEvent{Platform: platform, Error: "no provider registered"})
		span.SetStatus(codes.Error, "no provider registered")
		return
	}

	opts := models.Options{
		MaxResults: req.MaxResults,
		TimeFilter: req.TimeFilter,
		Language:   req.Language,
	}
	started := time.Now()
	result, err := resilience.Retry(taskCtx, o.retryConfig(name), func(ctx context.Context) (models.Result, error) {
		return resilience.WithTimeout(ctx, o.cfg.ProviderTimeout, name+" search", func(ctx context.Context) (models.Result, error) {
			return provider.Search(ctx, req.Query, opts)
		})
	})
	elapsed := time.Since(started)

	if err != nil {
		agg.record(platform, nil)
		agg.warn(fmt.Sprintf("%s search failed: %v", name, err))
		o.emit(sink, PlatformErrorEvent{Platform: platform, Error: err.Error()})
		o.metrics.ObservePlatform(string(platform), "error", elapsed)
		o.logger.Printf("%s search failed after retries: %v", name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	agg.record(platform, result.Posts)
	agg.warn(result.Warning)
	o.emit(sink, PlatformCompleteEvent{Platform: platform, Posts: result.Posts, Count: len(result.Posts)})
	o.metrics.ObservePlatform(string(platform), "ok", elapsed)
	span.SetAttributes(attribute.Int("platform.posts", len(result.Posts)))
	span.SetStatus(codes.Ok, "completed")
}

func (o *Orchestrator) retryConfig(name string) resilience.RetryConfig {
	return resilience.RetryConfig{
		Name:    name,
		Retries: o.cfg.Retries,
		Delay:   o.cfg.Delay,
		Backoff: o.cfg.Backoff,
	}
}

// emit forwards an event, swallowing sink errors: a disconnected client
// must not abort aggregation.
func (o *Orchestrator) emit(sink Sink, ev Event) {
	if sink == nil {
		return
	}
	if err := sink.Send(ev); err != nil {
		o.logger.Printf("dropping %s event: %v", ev.EventType(), err)
	}
}

func dedupSources(sources []models.Platform) []models.Platform {
	seen := make(map[models.Platform]struct{}, len(sources))
	out := make([]models.Platform, 0, len(sources))
	for _, s := range sources {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func postTimeRange(posts []models.Post) models.TimeRange {
	var tr models.TimeRange
	for _, p := range posts {
		if tr.Start.IsZero() || p.CreatedAt.Before(tr.Start) {
			tr.Start = p.CreatedAt
		}
		if p.CreatedAt.After(tr.End) {
			tr.End = p.CreatedAt
		}
	}
	return tr
}

// DisplayName renders a platform for user-visible warnings.
func DisplayName(p models.Platform) string {
	switch p {
	case models.PlatformX:
		return "X"
	case models.PlatformTikTok:
		return "TikTok"
	case models.PlatformYouTube:
		return "YouTube"
	case models.PlatformBluesky:
		return "Bluesky"
	case models.PlatformTruthSocial:
		return "Truth Social"
	default:
		return string(p)
	}
}
