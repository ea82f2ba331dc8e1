// Package server exposes the streaming search pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/kromahlusenii-ops/civic-voices-sub003/config"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/ai"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/platforms"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/search"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/store"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/telemetry"
)

// Server wires config, storage and the search orchestrator behind echo.
type Server struct {
	cfg    *config.Config
	orch   *search.Orchestrator
	store  *store.Store
	gate   Gate
	sched  *Scheduler
	logger *log.Logger
}

// New builds a Server from configuration. Postgres and Redis are optional:
// without Postgres there is no history or monitors, without Redis no
// provider cache or scheduler locks.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	logger := log.New(log.Writer(), "[SERVER] ", log.LstdFlags)

	var rdb *redis.Client
	if cfg.Storage.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
		}
	}

	var st *store.Store
	if dsn, err := cfg.Storage.Postgres.DSN(); err == nil {
		st, err = store.NewWithDSN(ctx, dsn)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Printf("postgres not configured, history and monitors disabled")
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	providers := platforms.WithCache(platforms.NewProviders(cfg.Platforms), rdb, cfg.Storage.Redis.CacheTTL)
	analyzer := ai.NewAnalyzer(cfg.LLM)
	orch := search.NewOrchestrator(providers, analyzer, cfg.Resilience, metrics, nil)

	s := &Server{
		cfg:    cfg,
		orch:   orch,
		store:  st,
		gate:   AllowAll{},
		logger: logger,
	}
	if rdb != nil && st != nil && cfg.Server.MonitorsEnabled {
		s.sched = &Scheduler{Store: st, Orch: orch, Rdb: rdb, Stop: make(chan struct{})}
		s.sched.Start()
	}
	return s, nil
}

// Close stops the monitor scheduler and releases storage handles.
func (s *Server) Close() {
	if s.sched != nil {
		s.sched.Shutdown()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}

// SetGate replaces the request admission gate. The default admits everyone.
func (s *Server) SetGate(g Gate) {
	if g != nil {
		s.gate = g
	}
}

// Echo assembles the routing table.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	httpLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		httpLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.Use(OptionalAuth([]byte(s.cfg.Server.JWTSecret)))
	api.GET("/search/stream", s.streamSearch)

	if s.store != nil {
		api.GET("/history", s.listSearches)
		if s.cfg.Server.MonitorsEnabled {
			m := api.Group("/monitors", RequireAuth([]byte(s.cfg.Server.JWTSecret)))
			m.POST("", s.createMonitor)
			m.GET("", s.listMonitors)
			m.DELETE("/:id", s.deleteMonitor)
		}
	}
	return e
}

// Run starts the HTTP listener and blocks.
func (s *Server) Run(addr string) error {
	if addr == "" {
		addr = s.cfg.Server.Address
	}
	if addr == "" {
		addr = ":8080"
	}
	if addr[0] != ':' && !hasHost(addr) {
		addr = ":" + addr
	}
	s.logger.Printf("listening on %s", addr)
	return s.Echo().Start(addr)
}

func hasHost(addr string) bool {
	for _, r := range addr {
		if r == ':' {
			return true
		}
	}
	return false
}
