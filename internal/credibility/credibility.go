// Package credibility assigns trustworthiness scores to normalized posts
// and implements the result-ordering strategies built on top of them.
package credibility

import (
	"math"
	"strings"

	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

const (
	// DefaultScore is assigned when no stronger signal applies.
	DefaultScore = 0.3
	// VerifiedThreshold marks a post as verified-grade even without an
	// explicit platform verification flag.
	VerifiedThreshold = 0.7

	verifiedScore = 0.7
	tier1Score    = 0.9
)

// tier1Handles is the allowlist of platform/account combinations treated as
// inherently higher credibility (newswires, public broadcasters, official
// institutional accounts).
var tier1Handles = map[models.Platform]map[string]struct{}{
	models.PlatformX: {
		"reuters": {}, "ap": {}, "bbcworld": {}, "bbcbreaking": {},
		"afp": {}, "nytimes": {}, "washingtonpost": {}, "guardian": {},
		"wsj": {}, "ft": {}, "cnnbrk": {}, "npr": {},
	},
	models.PlatformYouTube: {
		"reuters": {}, "bbcnews": {}, "apnews": {}, "dwnews": {},
		"aljazeeraenglish": {}, "pbsnewshour": {},
	},
	models.PlatformBluesky: {
		"reuters.com": {}, "apnews.com": {}, "bbc.com": {}, "npr.org": {},
	},
	models.PlatformTikTok: {
		"bbcnews": {}, "washingtonpost": {}, "dw_news": {},
	},
	models.PlatformTruthSocial: {},
}

// IsTier1Source reports whether the platform/handle pair is on the allowlist.
func IsTier1Source(platform models.Platform, handle string) bool {
	handles, ok := tier1Handles[platform]
	if !ok {
		return false
	}
	h := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(handle, "@")))
	_, ok = handles[h]
	return ok
}

// ScorePosts assigns every post a credibility score in [0,1]. Tier-1 sources
// dominate, then platform verification, then a small boost for posts with
// substantial engagement; everything else gets the default.
func ScorePosts(posts []models.Post) []models.Post {
	for i := range posts {
		posts[i].CredibilityScore = scorePost(posts[i])
	}
	return posts
}

func scorePost(p models.Post) float64 {
	score := DefaultScore
	verified := p.AuthorMetadata != nil && p.AuthorMetadata.IsVerified
	if verified {
		score = verifiedScore
	}
	if IsTier1Source(p.Platform, p.AuthorHandle) {
		score = tier1Score
	}
	if p.TotalEngagement() >= 10000 {
		score += 0.05
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Summarize aggregates credibility over a scored result set. An empty input
// yields the zero summary.
func Summarize(posts []models.Post) models.CredibilitySummary {
	if len(posts) == 0 {
		return models.CredibilitySummary{}
	}
	var sum float64
	var tier1, verified int
	for _, p := range posts {
		sum += p.CredibilityScore
		if IsTier1Source(p.Platform, p.AuthorHandle) {
			tier1++
		}
		if isVerifiedGrade(p) {
			verified++
		}
	}
	return models.CredibilitySummary{
		AverageScore:  math.Round(sum/float64(len(posts))*100) / 100,
		Tier1Count:    tier1,
		VerifiedCount: verified,
	}
}

func isVerifiedGrade(p models.Post) bool {
	if p.AuthorMetadata != nil && p.AuthorMetadata.IsVerified {
		return true
	}
	return p.CredibilityScore >= VerifiedThreshold
}
