package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

func (s *Server) listSearches(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	limit := 0
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	recs, err := s.store.ListSearches(c.Request().Context(), userID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]map[string]interface{}, 0, len(recs))
	for _, rec := range recs {
		out = append(out, map[string]interface{}{
			"id":         rec.ID,
			"query":      rec.Query,
			"sources":    rec.Sources,
			"sort":       rec.Sort,
			"totalPosts": rec.TotalPosts,
			"summary":    rec.Summary,
			"warnings":   rec.Warnings,
			"durationMs": rec.DurationMS,
			"createdAt":  rec.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"searches": out})
}
