package credibility

import (
	"math"
	"sort"

	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

// SortByRelevance orders posts by a blend of credibility and engagement.
// The blended score is computed into a scratch slice and discarded, so it
// never appears on the posts handed back to callers.
func SortByRelevance(posts []models.Post) []models.Post {
	scores := make([]float64, len(posts))
	for i, p := range posts {
		scores[i] = relevanceScore(p)
	}
	idx := make([]int, len(posts))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	out := make([]models.Post, len(posts))
	for i, j := range idx {
		out[i] = posts[j]
	}
	return out
}

// relevanceScore blends credibility with log-damped engagement so a single
// viral post cannot drown out trusted sources entirely.
func relevanceScore(p models.Post) float64 {
	engagement := float64(p.TotalEngagement())
	if p.Views != nil {
		engagement += float64(*p.Views) / 100
	}
	normalized := math.Log10(engagement+1) / 7 // ~10M engagement saturates
	if normalized > 1 {
		normalized = 1
	}
	return p.CredibilityScore*0.6 + normalized*0.4
}

// SortByRecent orders posts newest first.
func SortByRecent(posts []models.Post) []models.Post {
	out := append([]models.Post(nil), posts...)
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out
}

// SortByEngaged orders posts by total engagement, highest first.
func SortByEngaged(posts []models.Post) []models.Post {
	out := append([]models.Post(nil), posts...)
	sort.SliceStable(out, func(a, b int) bool { return out[a].TotalEngagement() > out[b].TotalEngagement() })
	return out
}

// FilterVerifiedOnly keeps verified-grade posts in their original order.
func FilterVerifiedOnly(posts []models.Post) []models.Post {
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if isVerifiedGrade(p) {
			out = append(out, p)
		}
	}
	return out
}

// Apply runs the named sort strategy over a scored result set.
func Apply(sortBy models.Sort, posts []models.Post) []models.Post {
	switch sortBy {
	case models.SortRecent:
		return SortByRecent(posts)
	case models.SortEngaged:
		return SortByEngaged(posts)
	case models.SortVerified:
		return FilterVerifiedOnly(posts)
	default:
		return SortByRelevance(posts)
	}
}
