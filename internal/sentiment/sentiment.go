// Package sentiment produces the estimated sentiment attached to search
// results. None of this is measured per-item analysis: the summary split is
// a fixed distribution (optionally keyed by the AI analysis label) and the
// per-post labels come from a VADER lexicon pass. Both are surfaced to
// callers as estimates only.
package sentiment

import (
	"math"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"

	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

const (
	LabelPositive = "positive"
	LabelNeutral  = "neutral"
	LabelNegative = "negative"
)

// Distribution estimates a positive/neutral/negative split over total posts.
// Without an AI label the split is 40/40/20. With a recognised overall label
// the declared sentiment takes the majority (60%), its opposite the small
// share (20%), and the remainder lands in the middle bucket. Unrecognised
// labels fall back to an even three-way split. The counts always sum to total.
func Distribution(total int, overall string) models.SentimentCounts {
	if total <= 0 {
		return models.SentimentCounts{}
	}
	t := float64(total)
	switch strings.ToLower(strings.TrimSpace(overall)) {
	case LabelPositive:
		pos := int(math.Ceil(t * 0.6))
		neg := int(math.Floor(t * 0.2))
		return models.SentimentCounts{Positive: pos, Negative: neg, Neutral: total - pos - neg}
	case LabelNegative:
		neg := int(math.Ceil(t * 0.6))
		pos := int(math.Floor(t * 0.2))
		return models.SentimentCounts{Positive: pos, Negative: neg, Neutral: total - pos - neg}
	case LabelNeutral:
		neu := int(math.Ceil(t * 0.6))
		neg := int(math.Floor(t * 0.2))
		return models.SentimentCounts{Neutral: neu, Negative: neg, Positive: total - neu - neg}
	case "":
		pos := int(math.Round(t * 0.4))
		neu := int(math.Round(t * 0.4))
		if pos+neu > total {
			neu = total - pos
		}
		return models.SentimentCounts{Positive: pos, Neutral: neu, Negative: total - pos - neu}
	default:
		third := total / 3
		return models.SentimentCounts{Positive: third, Negative: third, Neutral: total - 2*third}
	}
}

var (
	analyzer   = govader.NewSentimentIntensityAnalyzer()
	urlPattern = regexp.MustCompile(`https?://\S+|www\.\S+`)
)

// Estimate runs the VADER lexicon over one post's text and returns the
// compound score together with a positive/neutral/negative label.
func Estimate(text string) (float64, string) {
	plain := strings.Join(strings.Fields(urlPattern.ReplaceAllString(text, "")), " ")
	if plain == "" {
		return 0, LabelNeutral
	}
	score := analyzer.PolarityScores(plain).Compound
	switch {
	case score >= 0.20:
		return score, LabelPositive
	case score <= -0.20:
		return score, LabelNegative
	default:
		return score, LabelNeutral
	}
}

// LabelPosts annotates every post with its estimated sentiment label.
func LabelPosts(posts []models.Post) []models.Post {
	for i := range posts {
		_, label := Estimate(posts[i].Text)
		posts[i].EstimatedSentiment = label
	}
	return posts
}
