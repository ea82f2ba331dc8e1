package search

import (
	"sync"

	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

// aggContext is the per-request aggregation buffer. One instance is
// allocated per Run, shared by the platform tasks, and discarded when the
// request ends; no aggregation state outlives a request.
type aggContext struct {
	mu       sync.Mutex
	posts    []models.Post
	counts   map[models.Platform]int
	warnings []string
}

func newAggContext() *aggContext {
	return &aggContext{counts: make(map[models.Platform]int)}
}

// record registers one platform's settled contribution. Every task calls it
// exactly once, success or failure, so the final summary has one count entry
// per requested platform.
func (a *aggContext) record(platform models.Platform, posts []models.Post) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts[platform] = len(posts)
	a.posts = append(a.posts, posts...)
}

func (a *aggContext) warn(msg string) {
	if msg == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.warnings = append(a.warnings, msg)
}

func (a *aggContext) snapshot() ([]models.Post, map[models.Platform]int, []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.posts, a.counts, a.warnings
}
