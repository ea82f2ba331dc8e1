package server

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/gorhill/cronexpr"
	"github.com/labstack/echo/v4"

	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/store"
	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

type createMonitorRequest struct {
	Name         string   `json:"name"`
	Query        string   `json:"query"`
	Sources      []string `json:"sources"`
	TimeFilter   string   `json:"timeFilter"`
	ScheduleCron string   `json:"scheduleCron"`
}

func (s *Server) createMonitor(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	var req createMonitorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	if strings.TrimSpace(req.ScheduleCron) == "" {
		req.ScheduleCron = "@daily"
	}
	if req.ScheduleCron != "@daily" && req.ScheduleCron != "@hourly" {
		if _, err := cronexpr.Parse(req.ScheduleCron); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid cron expression")
		}
	}

	sources := make([]models.Platform, 0, len(req.Sources))
	for _, name := range req.Sources {
		p, err := models.ParsePlatform(name)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		sources = append(sources, p)
	}
	if len(sources) == 0 {
		sources = models.Platforms()
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = req.Query
	}

	id, err := s.store.CreateMonitor(c.Request().Context(), store.Monitor{
		UserID:       userID,
		Name:         name,
		Query:        req.Query,
		Sources:      sources,
		TimeFilter:   req.TimeFilter,
		ScheduleCron: req.ScheduleCron,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) listMonitors(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	monitors, err := s.store.ListMonitors(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]map[string]interface{}, 0, len(monitors))
	for _, m := range monitors {
		out = append(out, map[string]interface{}{
			"id":           m.ID,
			"name":         m.Name,
			"query":        m.Query,
			"sources":      m.Sources,
			"timeFilter":   m.TimeFilter,
			"scheduleCron": m.ScheduleCron,
			"lastRunAt":    m.LastRunAt,
			"createdAt":    m.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"monitors": out})
}

func (s *Server) deleteMonitor(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	err := s.store.DeleteMonitor(c.Request().Context(), c.Param("id"), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return echo.NewHTTPError(http.StatusNotFound, "monitor not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
