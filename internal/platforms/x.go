package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kromahlusenii-ops/civic-voices-sub003/config"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/resilience"
	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

const xDefaultEndpoint = "https://api.twitter.com/2"

// X wraps the X (Twitter) v2 recent search API.
type X struct {
	cfg    config.XConfig
	logger *log.Logger
}

func NewX(cfg config.XConfig) *X {
	return &X{cfg: cfg, logger: log.New(log.Writer(), "[X] ", log.LstdFlags)}
}

func (x *X) Platform() models.Platform { return models.PlatformX }

func (x *X) Configured() bool { return x.cfg.BearerToken != "" }

func (x *X) Search(ctx context.Context, query string, opts models.Options) (models.Result, error) {
	if !x.Configured() {
		return models.Result{}, nil
	}

	endpoint := x.cfg.Endpoint
	if endpoint == "" {
		endpoint = xDefaultEndpoint
	}
	q := query + " -is:retweet"
	if opts.Language != "" {
		q += " lang:" + opts.Language
	}
	start, _ := TimeRange(opts.TimeFilter)

	params := url.Values{}
	params.Set("query", q)
	params.Set("max_results", strconv.Itoa(clampMaxResults(opts.MaxResults, 10, 100)))
	params.Set("start_time", start.Format(time.RFC3339))
	params.Set("tweet.fields", "created_at,public_metrics,author_id")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "name,username,verified,profile_image_url")

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint+"/tweets/search/recent?"+params.Encode(), nil)
	if err != nil {
		return models.Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+x.cfg.BearerToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return models.Result{}, resilience.Transient(fmt.Errorf("x search request failed: %w", err))
	}
	defer resp.Body.Close()
	if err := classifyStatus("x", resp.StatusCode); err != nil {
		return models.Result{}, err
	}

	var raw struct {
		Data []struct {
			ID            string    `json:"id"`
			Text          string    `json:"text"`
			CreatedAt     time.Time `json:"created_at"`
			AuthorID      string    `json:"author_id"`
			PublicMetrics struct {
				LikeCount       int `json:"like_count"`
				ReplyCount      int `json:"reply_count"`
				RetweetCount    int `json:"retweet_count"`
				QuoteCount      int `json:"quote_count"`
				ImpressionCount int `json:"impression_count"`
			} `json:"public_metrics"`
		} `json:"data"`
		Includes struct {
			Users []struct {
				ID              string `json:"id"`
				Name            string `json:"name"`
				Username        string `json:"username"`
				Verified        bool   `json:"verified"`
				ProfileImageURL string `json:"profile_image_url"`
			} `json:"users"`
		} `json:"includes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.Result{}, resilience.Permanent(fmt.Errorf("x search returned malformed response: %w", err))
	}

	users := make(map[string]int, len(raw.Includes.Users))
	for i, u := range raw.Includes.Users {
		users[u.ID] = i
	}

	posts := make([]models.Post, 0, len(raw.Data))
	for _, tw := range raw.Data {
		p := models.Post{
			ID:        tw.ID,
			Platform:  models.PlatformX,
			Text:      tw.Text,
			CreatedAt: tw.CreatedAt.UTC(),
			Likes:     tw.PublicMetrics.LikeCount,
			Comments:  tw.PublicMetrics.ReplyCount,
			Shares:    tw.PublicMetrics.RetweetCount + tw.PublicMetrics.QuoteCount,
		}
		if tw.PublicMetrics.ImpressionCount > 0 {
			views := tw.PublicMetrics.ImpressionCount
			p.Views = &views
		}
		if i, ok := users[tw.AuthorID]; ok {
			u := raw.Includes.Users[i]
			p.Author = u.Name
			p.AuthorHandle = u.Username
			p.AuthorAvatar = u.ProfileImageURL
			p.URL = fmt.Sprintf("https://x.com/%s/status/%s", u.Username, tw.ID)
			if u.Verified {
				p.AuthorMetadata = &models.AuthorMetadata{IsVerified: true}
			}
		} else {
			p.URL = fmt.Sprintf("https://x.com/i/status/%s", tw.ID)
		}
		posts = append(posts, p)
	}
	return models.Result{Posts: posts}, nil
}

// classifyStatus maps an HTTP status to a typed retryability decision:
// rate limits and server errors are transient, everything else non-2xx
// is permanent (auth failures, bad requests).
func classifyStatus(name string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		return resilience.Transientf("%s search returned status %d", name, code)
	default:
		return resilience.Permanentf("%s search returned status %d", name, code)
	}
}

func clampMaxResults(n, min, max int) int {
	if n <= 0 {
		n = max
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
