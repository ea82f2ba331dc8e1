package platforms

import (
	"github.com/kromahlusenii-ops/civic-voices-sub003/config"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/search"
)

// NewProviders builds every platform adapter from configuration. Adapters
// missing credentials are still registered; they return empty results so a
// request naming them degrades instead of erroring.
func NewProviders(cfg config.PlatformsConfig) []search.Provider {
	return []search.Provider{
		NewX(cfg.X),
		NewTikTok(cfg.TikTok),
		NewYouTube(cfg.YouTube),
		NewBluesky(cfg.Bluesky),
		NewTruthSocial(cfg.TruthSocial),
	}
}
