// Package feed pulls candidate posts from RSS/Atom feeds.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/source"
)

const defaultLimit = 10

// RSSSource fetches feed entries via gofeed.
type RSSSource struct {
	parser *gofeed.Parser
}

var _ source.Strategy = (*RSSSource)(nil)

// NewRSSSource wires an HTTP client into the parser; nil uses a 30s default.
func NewRSSSource(client *http.Client) *RSSSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "NewsIngestor/1.0 (+https://www.usfinancemoves.com)"
	return &RSSSource{parser: parser}
}

// Name identifies the strategy inside the registry.
func (r *RSSSource) Name() string {
	return "rss"
}

// Fetch parses the configured feed URL and maps its most recent entries.
func (r *RSSSource) Fetch(ctx context.Context, req source.Request) ([]domain.Candidate, error) {
	parsed, err := r.parser.ParseURLWithContext(req.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", req.URL, err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	candidates := make([]domain.Candidate, 0, limit)
	for _, item := range parsed.Items {
		if len(candidates) == limit {
			break
		}
		if item.Title == "" || item.Link == "" {
			continue
		}

		published := time.Now().UTC()
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}

		candidates = append(candidates, domain.Candidate{
			Title:      item.Title,
			Summary:    item.Description,
			Content:    content,
			SourceName: req.Name,
			SourceURL:  item.Link,
			Section:    req.Section,
			Tags:       req.Tags,
			Origin:     req.Origin,
			Published:  published,
		})
	}

	return candidates, nil
}
