package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kromahlusenii-ops/civic-voices-sub003/config"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/resilience"
	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

const blueskyDefaultEndpoint = "https://public.api.bsky.app"

// Bluesky wraps the public AppView searchPosts XRPC. No credentials are
// needed, so the adapter counts as configured unless explicitly disabled.
type Bluesky struct {
	cfg    config.BlueskyConfig
	logger *log.Logger
}

func NewBluesky(cfg config.BlueskyConfig) *Bluesky {
	return &Bluesky{cfg: cfg, logger: log.New(log.Writer(), "[BLUESKY] ", log.LstdFlags)}
}

func (b *Bluesky) Platform() models.Platform { return models.PlatformBluesky }

func (b *Bluesky) Configured() bool { return b.cfg.Enabled }

func (b *Bluesky) Search(ctx context.Context, query string, opts models.Options) (models.Result, error) {
	if !b.Configured() {
		return models.Result{}, nil
	}

	endpoint := b.cfg.Endpoint
	if endpoint == "" {
		endpoint = blueskyDefaultEndpoint
	}
	start, _ := TimeRange(opts.TimeFilter)

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(clampMaxResults(opts.MaxResults, 1, 100)))
	params.Set("sort", "latest")
	params.Set("since", start.Format(time.RFC3339))
	if opts.Language != "" {
		params.Set("lang", opts.Language)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint+"/xrpc/app.bsky.feed.searchPosts?"+params.Encode(), nil)
	if err != nil {
		return models.Result{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return models.Result{}, resilience.Transient(fmt.Errorf("bluesky search request failed: %w", err))
	}
	defer resp.Body.Close()
	if err := classifyStatus("bluesky", resp.StatusCode); err != nil {
		return models.Result{}, err
	}

	var raw struct {
		Posts []struct {
			URI    string `json:"uri"`
			Author struct {
				Handle      string `json:"handle"`
				DisplayName string `json:"displayName"`
				Avatar      string `json:"avatar"`
			} `json:"author"`
			Record struct {
				Text      string    `json:"text"`
				CreatedAt time.Time `json:"createdAt"`
			} `json:"record"`
			ReplyCount  int `json:"replyCount"`
			RepostCount int `json:"repostCount"`
			LikeCount   int `json:"likeCount"`
			QuoteCount  int `json:"quoteCount"`
		} `json:"posts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.Result{}, resilience.Permanent(fmt.Errorf("bluesky search returned malformed response: %w", err))
	}

	posts := make([]models.Post, 0, len(raw.Posts))
	for _, item := range raw.Posts {
		author := item.Author.DisplayName
		if author == "" {
			author = item.Author.Handle
		}
		posts = append(posts, models.Post{
			ID:           item.URI,
			Platform:     models.PlatformBluesky,
			URL:          blueskyWebURL(item.URI, item.Author.Handle),
			Text:         item.Record.Text,
			Author:       author,
			AuthorHandle: item.Author.Handle,
			AuthorAvatar: item.Author.Avatar,
			CreatedAt:    item.Record.CreatedAt.UTC(),
			Likes:        item.LikeCount,
			Comments:     item.ReplyCount,
			Shares:       item.RepostCount + item.QuoteCount,
		})
	}
	return models.Result{Posts: posts}, nil
}

// blueskyWebURL converts an at:// post URI into a bsky.app permalink.
func blueskyWebURL(uri, handle string) string {
	parts := strings.Split(uri, "/")
	if len(parts) == 0 {
		return ""
	}
	rkey := parts[len(parts)-1]
	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", handle, rkey)
}
