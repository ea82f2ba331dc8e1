// Package platforms implements one search adapter per supported social
// platform. Every adapter maps upstream responses into the shared Post
// model; an adapter missing credentials yields zero posts instead of an
// error so one missing integration never aborts a search.
package platforms

import (
	"time"

	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

// TimeRange translates a generic time filter ("24h", "week", "30d") into
// absolute UTC bounds. Unrecognised filters fall back to one week.
func TimeRange(timeFilter string) (start, end time.Time) {
	end = time.Now().UTC()
	switch timeFilter {
	case "24h", "day", "1d":
		start = end.Add(-24 * time.Hour)
	case "7d", "week":
		start = end.AddDate(0, 0, -7)
	case "30d", "month":
		start = end.AddDate(0, 0, -30)
	default:
		start = end.AddDate(0, 0, -7)
	}
	return start, end
}

// FilterByTimeRange drops posts outside the filter's bounds. Adapters whose
// upstream cannot filter server-side apply this before returning.
func FilterByTimeRange(posts []models.Post, timeFilter string) []models.Post {
	start, end := TimeRange(timeFilter)
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if p.CreatedAt.Before(start) || p.CreatedAt.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out
}
