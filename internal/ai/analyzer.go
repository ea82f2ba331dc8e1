// Package ai enriches a completed search with an LLM-written analysis. The
// call is strictly optional: callers run it under its own timeout and drop
// the result on any failure.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kromahlusenii-ops/civic-voices-sub003/config"
	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

const defaultBaseURL = "https://api.openai.com/v1"

// maxPromptPosts bounds how many posts are quoted in the prompt.
const maxPromptPosts = 30

// Analyzer talks to an OpenAI-compatible chat completions endpoint.
type Analyzer struct {
	cfg        config.LLMConfig
	httpClient *http.Client
	logger     *log.Logger
}

// NewAnalyzer creates an analyzer from config. A missing API key is not an
// error; Configured reports it and callers skip the enrichment step.
func NewAnalyzer(cfg config.LLMConfig) *Analyzer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Analyzer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.New(log.Writer(), "[AI] ", log.LstdFlags),
	}
}

// Configured reports whether an API key is present.
func (a *Analyzer) Configured() bool {
	return strings.TrimSpace(a.cfg.APIKey) != ""
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze asks the model for a short analysis of the gathered posts.
func (a *Analyzer) Analyze(ctx context.Context, query string, posts []models.Post) (*models.AIAnalysis, error) {
	if !a.Configured() {
		return nil, fmt.Errorf("llm api key not configured")
	}

	body := chatRequest{
		Model: a.cfg.Model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(query, posts)},
		},
		Temperature:    a.cfg.Temperature,
		MaxTokens:      a.cfg.MaxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	base := a.cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, "POST", base+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis request returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("empty completion")
	}

	var analysis struct {
		Summary   string   `json:"summary"`
		Overall   string   `json:"overall_sentiment"`
		KeyThemes []string `json:"key_themes"`
	}
	content := parsed.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return nil, fmt.Errorf("model returned malformed analysis: %w", err)
	}
	a.logger.Printf("analysis complete for query %q (%d posts)", query, len(posts))
	return &models.AIAnalysis{
		Summary:   analysis.Summary,
		Overall:   strings.ToLower(strings.TrimSpace(analysis.Overall)),
		KeyThemes: analysis.KeyThemes,
	}, nil
}

const systemPrompt = `You analyze social media search results. Respond with a JSON object: ` +
	`{"summary": "...", "overall_sentiment": "positive"|"neutral"|"negative", "key_themes": ["..."]}. ` +
	`Base the summary only on the provided posts.`

func buildPrompt(query string, posts []models.Post) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search query: %q\n\nPosts:\n", query)
	for i, p := range posts {
		if i >= maxPromptPosts {
			fmt.Fprintf(&b, "... and %d more posts\n", len(posts)-maxPromptPosts)
			break
		}
		text := p.Text
		if runes := []rune(text); len(runes) > 280 {
			text = string(runes[:280]) + "…"
		}
		fmt.Fprintf(&b, "- [%s] @%s (%d likes): %s\n", p.Platform, p.AuthorHandle, p.Likes, text)
	}
	return b.String()
}
