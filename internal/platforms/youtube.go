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

const youtubeDefaultEndpoint = "https://www.googleapis.com/youtube/v3"

// YouTube wraps the YouTube Data API v3. Search results carry no engagement
// numbers, so a second videos.list call fills in statistics; if that call
// fails the posts are returned anyway with a warning.
type YouTube struct {
	cfg    config.YouTubeConfig
	logger *log.Logger
}

func NewYouTube(cfg config.YouTubeConfig) *YouTube {
	return &YouTube{cfg: cfg, logger: log.New(log.Writer(), "[YOUTUBE] ", log.LstdFlags)}
}

func (y *YouTube) Platform() models.Platform { return models.PlatformYouTube }

func (y *YouTube) Configured() bool { return y.cfg.APIKey != "" }

func (y *YouTube) Search(ctx context.Context, query string, opts models.Options) (models.Result, error) {
	if !y.Configured() {
		return models.Result{}, nil
	}

	endpoint := y.cfg.Endpoint
	if endpoint == "" {
		endpoint = youtubeDefaultEndpoint
	}
	start, _ := TimeRange(opts.TimeFilter)

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("order", "relevance")
	params.Set("maxResults", strconv.Itoa(clampMaxResults(opts.MaxResults, 1, 50)))
	params.Set("publishedAfter", start.Format(time.RFC3339))
	if opts.Language != "" {
		params.Set("relevanceLanguage", opts.Language)
	}
	params.Set("key", y.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint+"/search?"+params.Encode(), nil)
	if err != nil {
		return models.Result{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return models.Result{}, resilience.Transient(fmt.Errorf("youtube search request failed: %w", err))
	}
	defer resp.Body.Close()
	if err := classifyStatus("youtube", resp.StatusCode); err != nil {
		return models.Result{}, err
	}

	var raw struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
			Snippet struct {
				PublishedAt  time.Time `json:"publishedAt"`
				ChannelID    string    `json:"channelId"`
				ChannelTitle string    `json:"channelTitle"`
				Title        string    `json:"title"`
				Description  string    `json:"description"`
				Thumbnails   struct {
					Medium struct {
						URL string `json:"url"`
					} `json:"medium"`
				} `json:"thumbnails"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.Result{}, resilience.Permanent(fmt.Errorf("youtube search returned malformed response: %w", err))
	}

	posts := make([]models.Post, 0, len(raw.Items))
	ids := make([]string, 0, len(raw.Items))
	for _, item := range raw.Items {
		if item.ID.VideoID == "" {
			continue
		}
		ids = append(ids, item.ID.VideoID)
		text := item.Snippet.Title
		if item.Snippet.Description != "" {
			text += " — " + item.Snippet.Description
		}
		posts = append(posts, models.Post{
			ID:           item.ID.VideoID,
			Platform:     models.PlatformYouTube,
			URL:          "https://www.youtube.com/watch?v=" + item.ID.VideoID,
			Text:         text,
			Author:       item.Snippet.ChannelTitle,
			AuthorHandle: strings.ToLower(strings.ReplaceAll(item.Snippet.ChannelTitle, " ", "")),
			Thumbnail:    item.Snippet.Thumbnails.Medium.URL,
			CreatedAt:    item.Snippet.PublishedAt.UTC(),
		})
	}

	warning := ""
	if len(ids) > 0 {
		if err := y.fillStatistics(ctx, endpoint, ids, posts); err != nil {
			y.logger.Printf("statistics lookup failed: %v", err)
			warning = "YouTube engagement counts unavailable: " + err.Error()
		}
	}
	return models.Result{Posts: posts, Warning: warning}, nil
}

func (y *YouTube) fillStatistics(ctx context.Context, endpoint string, ids []string, posts []models.Post) error {
	params := url.Values{}
	params.Set("part", "statistics")
	params.Set("id", strings.Join(ids, ","))
	params.Set("key", y.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint+"/videos?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("videos.list returned status %d", resp.StatusCode)
	}

	var raw struct {
		Items []struct {
			ID         string `json:"id"`
			Statistics struct {
				ViewCount    string `json:"viewCount"`
				LikeCount    string `json:"likeCount"`
				CommentCount string `json:"commentCount"`
			} `json:"statistics"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return err
	}

	stats := make(map[string]int, len(raw.Items))
	for i, item := range raw.Items {
		stats[item.ID] = i
	}
	for i := range posts {
		j, ok := stats[posts[i].ID]
		if !ok {
			continue
		}
		s := raw.Items[j].Statistics
		posts[i].Likes = atoiQuiet(s.LikeCount)
		posts[i].Comments = atoiQuiet(s.CommentCount)
		if v := atoiQuiet(s.ViewCount); v > 0 {
			views := v
			posts[i].Views = &views
		}
	}
	return nil
}

func atoiQuiet(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
