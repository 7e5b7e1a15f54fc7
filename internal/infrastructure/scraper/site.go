// Package scraper pulls candidate posts from HTML listing pages using
// config-provided selectors.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/source"
)

// Option keys recognized in a source's config block.
const (
	optItemSelector    = "itemSelector"
	optTitleSelector   = "titleSelector"
	optSummarySelector = "summarySelector"
	optLinkSelector    = "linkSelector"
)

// SiteSource scrapes a listing page: the item selector yields article blocks,
// the title/summary/link selectors extract fields from each block. Which
// selectors a site needs is configuration, not code.
type SiteSource struct {
	client *http.Client
}

var _ source.Strategy = (*SiteSource)(nil)

// NewSiteSource wires an HTTP client; nil uses a 30s default.
func NewSiteSource(client *http.Client) *SiteSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SiteSource{client: client}
}

// Name identifies the strategy inside the registry.
func (s *SiteSource) Name() string {
	return "scrape"
}

// Fetch downloads the listing page and extracts one candidate per item block.
func (s *SiteSource) Fetch(ctx context.Context, req source.Request) ([]domain.Candidate, error) {
	itemSel := req.Options[optItemSelector]
	if itemSel == "" {
		return nil, fmt.Errorf("source %s: missing %s option", req.Name, optItemSelector)
	}

	doc, err := s.fetchDocument(ctx, req.URL)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", req.Name, err)
	}

	base, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("source %s: invalid url: %w", req.Name, err)
	}

	var candidates []domain.Candidate
	doc.Find(itemSel).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if req.Limit > 0 && len(candidates) == req.Limit {
			return false
		}

		cand, ok := extractItem(sel, base, req)
		if ok {
			candidates = append(candidates, cand)
		}
		return true
	})

	return candidates, nil
}

func (s *SiteSource) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsIngestor/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func extractItem(sel *goquery.Selection, base *url.URL, req source.Request) (domain.Candidate, bool) {
	titleSel := req.Options[optTitleSelector]
	if titleSel == "" {
		titleSel = "a"
	}
	linkSel := req.Options[optLinkSelector]
	if linkSel == "" {
		linkSel = "a"
	}

	title := strings.TrimSpace(sel.Find(titleSel).First().Text())
	href, _ := sel.Find(linkSel).First().Attr("href")
	if title == "" || href == "" {
		return domain.Candidate{}, false
	}

	link, err := base.Parse(href)
	if err != nil {
		return domain.Candidate{}, false
	}

	summary := ""
	if summarySel := req.Options[optSummarySelector]; summarySel != "" {
		summary = strings.TrimSpace(sel.Find(summarySel).First().Text())
	}

	return domain.Candidate{
		Title:      title,
		Summary:    summary,
		Content:    summary,
		SourceName: req.Name,
		SourceURL:  link.String(),
		Section:    req.Section,
		Tags:       req.Tags,
		Origin:     req.Origin,
		Published:  time.Now().UTC(),
	}, true
}
