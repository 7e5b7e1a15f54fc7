// Package rewriter calls an OpenAI-compatible API to rewrite scraped and
// filing-derived articles into original on-site copy.
package rewriter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsIngestor/internal/config"
	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// OpenAIRewriter implements ports.Rewriter backed by chat completions.
type OpenAIRewriter struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.Rewriter = (*OpenAIRewriter)(nil)

// NewOpenAIRewriter builds a client from configuration.
func NewOpenAIRewriter(cfg config.Rewriter) *OpenAIRewriter {
	return &OpenAIRewriter{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type rewriteResult struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Content string `json:"content"`
}

// Rewrite asks the model for a rewritten {title, summary, content} JSON
// object. Any failure is returned to the caller, who treats the rewrite as a
// fallible black box and proceeds without it.
func (r *OpenAIRewriter) Rewrite(ctx context.Context, title, content string) (*domain.Rewrite, error) {
	if r.apiKey == "" || r.endpoint == "" || r.model == "" {
		return nil, fmt.Errorf("rewriter misconfigured")
	}

	user := fmt.Sprintf("Rewrite this article. Respond with JSON {\"title\",\"summary\",\"content\"}.\n\nTitle: %s\n\n%s", title, content)
	body, err := json.Marshal(map[string]any{
		"model":           r.model,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(r.systemPrompt)},
			{"role": "user", "content": user},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rewrite request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("rewriter error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("rewriter returned no choices")
	}

	var result rewriteResult
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &result); err != nil {
		return nil, fmt.Errorf("parse rewrite: %w", err)
	}
	if result.Title == "" || result.Content == "" {
		return nil, fmt.Errorf("rewrite incomplete")
	}

	return &domain.Rewrite{
		Title:   result.Title,
		Summary: result.Summary,
		Content: result.Content,
	}, nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You rewrite financial news articles into concise, original copy."
	}
	return prompt
}

// Slugify derives an article slug from a rewritten title.
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
