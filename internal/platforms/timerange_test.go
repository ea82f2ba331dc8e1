package platforms

import (
	"testing"
	"time"

	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

func TestTimeRangeAliases(t *testing.T) {
	cases := []struct {
		filter string
		want   time.Duration
	}{
		{"24h", 24 * time.Hour},
		{"day", 24 * time.Hour},
		{"1d", 24 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"week", 7 * 24 * time.Hour},
		{"30d", 30 * 24 * time.Hour},
		{"month", 30 * 24 * time.Hour},
		{"", 7 * 24 * time.Hour},
		{"fortnight", 7 * 24 * time.Hour},
	}
	for _, tc := range cases {
		start, end := TimeRange(tc.filter)
		got := end.Sub(start)
		// AddDate spans are calendar-based; allow DST-sized slack.
		if diff := got - tc.want; diff < -2*time.Hour || diff > 2*time.Hour {
			t.Fatalf("filter %q: span %v, want about %v", tc.filter, got, tc.want)
		}
		if end.Location() != time.UTC {
			t.Fatalf("filter %q: end not UTC", tc.filter)
		}
	}
}

func TestFilterByTimeRange(t *testing.T) {
	now := time.Now().UTC()
	posts := []models.Post{
		{ID: "fresh", CreatedAt: now.Add(-time.Hour)},
		{ID: "edge", CreatedAt: now.AddDate(0, 0, -6)},
		{ID: "stale", CreatedAt: now.AddDate(0, 0, -20)},
	}
	got := FilterByTimeRange(posts, "week")
	if len(got) != 2 {
		t.Fatalf("expected 2 posts inside the week, got %d", len(got))
	}
	for _, p := range got {
		if p.ID == "stale" {
			t.Fatalf("stale post survived the filter")
		}
	}
}
