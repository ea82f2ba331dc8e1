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

	"github.com/PuerkitoBio/goquery"

	"github.com/kromahlusenii-ops/civic-voices-sub003/config"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/resilience"
	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

const truthSocialDefaultEndpoint = "https://truthsocial.com"

// TruthSocial wraps the Mastodon-compatible v2 search API. The upstream
// cannot filter by time server-side, so results are post-filtered; status
// content arrives as HTML and is flattened to plain text.
type TruthSocial struct {
	cfg    config.TruthSocialConfig
	logger *log.Logger
}

func NewTruthSocial(cfg config.TruthSocialConfig) *TruthSocial {
	return &TruthSocial{cfg: cfg, logger: log.New(log.Writer(), "[TRUTHSOCIAL] ", log.LstdFlags)}
}

func (t *TruthSocial) Platform() models.Platform { return models.PlatformTruthSocial }

func (t *TruthSocial) Configured() bool { return t.cfg.AccessToken != "" }

func (t *TruthSocial) Search(ctx context.Context, query string, opts models.Options) (models.Result, error) {
	if !t.Configured() {
		return models.Result{}, nil
	}

	endpoint := t.cfg.Endpoint
	if endpoint == "" {
		endpoint = truthSocialDefaultEndpoint
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "statuses")
	params.Set("limit", strconv.Itoa(clampMaxResults(opts.MaxResults, 1, 40)))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint+"/api/v2/search?"+params.Encode(), nil)
	if err != nil {
		return models.Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.AccessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return models.Result{}, resilience.Transient(fmt.Errorf("truthsocial search request failed: %w", err))
	}
	defer resp.Body.Close()
	if err := classifyStatus("truthsocial", resp.StatusCode); err != nil {
		return models.Result{}, err
	}

	var raw struct {
		Statuses []struct {
			ID              string    `json:"id"`
			CreatedAt       time.Time `json:"created_at"`
			URL             string    `json:"url"`
			Content         string    `json:"content"`
			FavouritesCount int       `json:"favourites_count"`
			RepliesCount    int       `json:"replies_count"`
			ReblogsCount    int       `json:"reblogs_count"`
			Account         struct {
				Username    string `json:"username"`
				DisplayName string `json:"display_name"`
				Avatar      string `json:"avatar"`
				Verified    bool   `json:"verified"`
			} `json:"account"`
		} `json:"statuses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.Result{}, resilience.Permanent(fmt.Errorf("truthsocial search returned malformed response: %w", err))
	}

	posts := make([]models.Post, 0, len(raw.Statuses))
	for _, st := range raw.Statuses {
		author := st.Account.DisplayName
		if author == "" {
			author = st.Account.Username
		}
		p := models.Post{
			ID:           st.ID,
			Platform:     models.PlatformTruthSocial,
			URL:          st.URL,
			Text:         stripHTML(st.Content),
			Author:       author,
			AuthorHandle: st.Account.Username,
			AuthorAvatar: st.Account.Avatar,
			CreatedAt:    st.CreatedAt.UTC(),
			Likes:        st.FavouritesCount,
			Comments:     st.RepliesCount,
			Shares:       st.ReblogsCount,
		}
		if st.Account.Verified {
			p.AuthorMetadata = &models.AuthorMetadata{IsVerified: true}
		}
		posts = append(posts, p)
	}
	// The v2 search endpoint has no since/until parameters.
	return models.Result{Posts: FilterByTimeRange(posts, opts.TimeFilter)}, nil
}

// stripHTML flattens Mastodon status HTML into plain text. On parse failure
// the raw content is returned rather than losing the post.
func stripHTML(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
