package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/kromahlusenii-ops/civic-voices-sub003/config"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/resilience"
	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

const tiktokDefaultEndpoint = "https://open.tiktokapis.com/v2"

// TikTok wraps the TikTok Research API video query endpoint.
type TikTok struct {
	cfg    config.TikTokConfig
	logger *log.Logger
}

func NewTikTok(cfg config.TikTokConfig) *TikTok {
	return &TikTok{cfg: cfg, logger: log.New(log.Writer(), "[TIKTOK] ", log.LstdFlags)}
}

func (t *TikTok) Platform() models.Platform { return models.PlatformTikTok }

func (t *TikTok) Configured() bool { return t.cfg.AccessToken != "" }

func (t *TikTok) Search(ctx context.Context, query string, opts models.Options) (models.Result, error) {
	if !t.Configured() {
		return models.Result{}, nil
	}

	endpoint := t.cfg.Endpoint
	if endpoint == "" {
		endpoint = tiktokDefaultEndpoint
	}
	start, end := TimeRange(opts.TimeFilter)

	body := map[string]interface{}{
		"query": map[string]interface{}{
			"and": []map[string]interface{}{
				{"operation": "IN", "field_name": "keyword", "field_values": []string{query}},
			},
		},
		"start_date": start.Format("20060102"),
		"end_date":   end.Format("20060102"),
		"max_count":  clampMaxResults(opts.MaxResults, 1, 100),
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return models.Result{}, err
	}

	u := endpoint + "/research/video/query/?fields=id,video_description,create_time,username,like_count,comment_count,share_count,view_count"
	req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewBuffer(jsonData))
	if err != nil {
		return models.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.cfg.AccessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return models.Result{}, resilience.Transient(fmt.Errorf("tiktok search request failed: %w", err))
	}
	defer resp.Body.Close()
	if err := classifyStatus("tiktok", resp.StatusCode); err != nil {
		return models.Result{}, err
	}

	var raw struct {
		Data struct {
			Videos []struct {
				ID           int64  `json:"id"`
				Description  string `json:"video_description"`
				CreateTime   int64  `json:"create_time"`
				Username     string `json:"username"`
				LikeCount    int    `json:"like_count"`
				CommentCount int    `json:"comment_count"`
				ShareCount   int    `json:"share_count"`
				ViewCount    int    `json:"view_count"`
			} `json:"videos"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.Result{}, resilience.Permanent(fmt.Errorf("tiktok search returned malformed response: %w", err))
	}

	posts := make([]models.Post, 0, len(raw.Data.Videos))
	for _, v := range raw.Data.Videos {
		views := v.ViewCount
		posts = append(posts, models.Post{
			ID:           fmt.Sprintf("%d", v.ID),
			Platform:     models.PlatformTikTok,
			URL:          fmt.Sprintf("https://www.tiktok.com/@%s/video/%d", v.Username, v.ID),
			Text:         v.Description,
			Author:       v.Username,
			AuthorHandle: v.Username,
			CreatedAt:    time.Unix(v.CreateTime, 0).UTC(),
			Likes:        v.LikeCount,
			Comments:     v.CommentCount,
			Shares:       v.ShareCount,
			Views:        &views,
		})
	}
	return models.Result{Posts: posts}, nil
}
