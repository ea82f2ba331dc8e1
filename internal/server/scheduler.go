package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/search"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/store"
	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

// Scheduler sweeps saved monitors and re-runs the ones whose cron schedule
// is due. Results land in search history; nobody is streaming, so runs go
// through the orchestrator with a nil sink.
type Scheduler struct {
	Store *store.Store
	Orch  *search.Orchestrator
	Rdb   *redis.Client
	Stop  chan struct{}

	// Interval overrides the sweep cadence in tests.
	Interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func (s *Scheduler) Start() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				s.cancel()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// Shutdown stops the sweep loop and cancels in-flight monitor runs. Safe to
// call more than once.
func (s *Scheduler) Shutdown() {
	select {
	case <-s.Stop:
	default:
		close(s.Stop)
	}
}

func (s *Scheduler) tick() {
	ctx := s.ctx
	logger := log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	monitors, err := s.Store.ListAllMonitors(ctx)
	if err != nil {
		logger.Printf("monitor sweep failed: %v", err)
		return
	}
	for _, m := range monitors {
		if !isDue(m.ScheduleCron, m.LastRunAt) {
			continue
		}
		// distributed lock to avoid duplicate runs across replicas
		if s.Rdb != nil {
			lockKey := "civic:sched:lock:" + m.ID
			ok, _ := s.Rdb.SetNX(ctx, lockKey, "1", 2*time.Minute).Result()
			if !ok {
				continue
			}
		}
		go s.runMonitor(ctx, m, logger)
	}
}

func (s *Scheduler) runMonitor(ctx context.Context, m store.Monitor, logger *log.Logger) {
	// jitter to avoid stampedes when many monitors share a schedule
	time.Sleep(time.Duration(250+int64(time.Now().UnixNano()%250)) * time.Millisecond)

	outcome, err := s.Orch.Run(ctx, search.Request{
		Query:      m.Query,
		Sources:    m.Sources,
		TimeFilter: m.TimeFilter,
	}, nil)
	if err != nil {
		logger.Printf("monitor %s run failed: %v", m.ID, err)
		return
	}
	now := time.Now().UTC()
	if _, err := s.Store.SaveSearch(ctx, store.SearchRecord{
		UserID:     m.UserID,
		Query:      m.Query,
		Sources:    m.Sources,
		Sort:       models.SortRelevance,
		TotalPosts: outcome.Summary.TotalPosts,
		Summary:    outcome.Summary,
		Warnings:   outcome.Warnings,
		DurationMS: outcome.Duration.Milliseconds(),
	}); err != nil {
		logger.Printf("monitor %s history save failed: %v", m.ID, err)
	}
	if err := s.Store.MarkMonitorRun(ctx, m.ID, now); err != nil {
		logger.Printf("monitor %s timestamp update failed: %v", m.ID, err)
	}
	logger.Printf("monitor %s ran: %d posts", m.ID, outcome.Summary.TotalPosts)
}

// isDue reports whether a monitor with the given schedule should run now.
// Supports "@daily", "@hourly", and standard 5-field cron expressions;
// unparseable schedules degrade to daily.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		return last == nil || now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		return last == nil || now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			return last == nil || now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		return !expr.Next(*last).After(now)
	}
}
