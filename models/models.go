package models

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies one supported social source.
type Platform string

const (
	PlatformX           Platform = "x"
	PlatformTikTok      Platform = "tiktok"
	PlatformYouTube     Platform = "youtube"
	PlatformBluesky     Platform = "bluesky"
	PlatformTruthSocial Platform = "truthsocial"
)

// Platforms lists every supported platform in a stable order.
func Platforms() []Platform {
	return []Platform{PlatformX, PlatformTikTok, PlatformYouTube, PlatformBluesky, PlatformTruthSocial}
}

// ParsePlatform validates a caller-supplied platform name.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PlatformX, PlatformTikTok, PlatformYouTube, PlatformBluesky, PlatformTruthSocial:
		return p, nil
	}
	return "", fmt.Errorf("unknown platform: %q", s)
}

// AuthorMetadata carries author-level signals derived during scoring.
type AuthorMetadata struct {
	IsVerified bool `json:"isVerified"`
}

// Post is the normalized social media item shared by every adapter.
// Timestamps are normalized to UTC; engagement counters default to zero,
// except Views which stays nil on platforms that do not expose it.
type Post struct {
	ID           string    `json:"id"`
	Platform     Platform  `json:"platform"`
	URL          string    `json:"url"`
	Text         string    `json:"text"`
	Author       string    `json:"author"`
	AuthorHandle string    `json:"authorHandle"`
	AuthorAvatar string    `json:"authorAvatar,omitempty"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	Likes        int       `json:"likes"`
	Comments     int       `json:"comments"`
	Shares       int       `json:"shares"`
	Views        *int      `json:"views,omitempty"`

	CredibilityScore float64         `json:"credibilityScore"`
	AuthorMetadata   *AuthorMetadata `json:"authorMetadata,omitempty"`

	// EstimatedSentiment is a VADER-derived label, not measured sentiment.
	EstimatedSentiment string `json:"estimatedSentiment,omitempty"`
}

// TotalEngagement sums the engagement counters used by the engaged sort.
func (p Post) TotalEngagement() int {
	return p.Likes + p.Comments + p.Shares
}

// Result is one adapter's contribution: posts plus an optional non-fatal
// advisory the orchestrator surfaces without failing the request.
type Result struct {
	Posts   []Post
	Warning string
}

// Options is the generic options bag handed to every adapter.
type Options struct {
	MaxResults int
	TimeFilter string
	Language   string
}

// Sort names a result ordering strategy.
type Sort string

const (
	SortRelevance Sort = "relevance"
	SortRecent    Sort = "recent"
	SortEngaged   Sort = "engaged"
	SortVerified  Sort = "verified"
)

// ParseSort validates a sort name, defaulting empty input to relevance.
func ParseSort(s string) (Sort, error) {
	if strings.TrimSpace(s) == "" {
		return SortRelevance, nil
	}
	v := Sort(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case SortRelevance, SortRecent, SortEngaged, SortVerified:
		return v, nil
	}
	return "", fmt.Errorf("unknown sort: %q", s)
}

// CredibilitySummary aggregates credibility signals over one result set.
type CredibilitySummary struct {
	AverageScore  float64 `json:"averageScore"`
	Tier1Count    int     `json:"tier1Count"`
	VerifiedCount int     `json:"verifiedCount"`
}

// SentimentCounts is an estimated positive/neutral/negative split. The
// counts always sum to the total post count; they are derived from a fixed
// distribution (optionally keyed by the AI analysis), never measured per post.
type SentimentCounts struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// TimeRange bounds the posts in a result set.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Summary is computed once per request after all providers settle and is
// immutable once emitted.
type Summary struct {
	TotalPosts  int                `json:"totalPosts"`
	Platforms   map[Platform]int   `json:"platforms"`
	Sentiment   SentimentCounts    `json:"sentiment"`
	TimeRange   TimeRange          `json:"timeRange"`
	Credibility CredibilitySummary `json:"credibility"`
}

// AIAnalysis is the optional LLM enrichment attached to a completed search.
type AIAnalysis struct {
	Summary   string   `json:"summary"`
	Overall   string   `json:"overall"`
	KeyThemes []string `json:"keyThemes,omitempty"`
}
