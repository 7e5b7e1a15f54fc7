// Package edgar pulls candidate posts from SEC EDGAR full-text search.
package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/source"
)

const (
	defaultSearchURL = "https://efts.sec.gov/LATEST/search-index"
	filingBaseURL    = "https://www.sec.gov/Archives/edgar/data"
)

// FilingSource fetches recent filings (S-4 merger registrations by default)
// from the EDGAR full-text search API.
type FilingSource struct {
	client    *http.Client
	searchURL string
}

var _ source.Strategy = (*FilingSource)(nil)

// NewFilingSource wires an HTTP client; nil uses a 30s default.
func NewFilingSource(client *http.Client) *FilingSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &FilingSource{client: client, searchURL: defaultSearchURL}
}

// Name identifies the strategy inside the registry.
func (f *FilingSource) Name() string {
	return "edgar"
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string `json:"_id"`
			Source struct {
				DisplayNames []string `json:"display_names"`
				FileType     string   `json:"file_type"`
				FileDate     string   `json:"file_date"`
				CIKs         []string `json:"ciks"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Fetch queries EDGAR for recent filings of the configured form type.
func (f *FilingSource) Fetch(ctx context.Context, req source.Request) ([]domain.Candidate, error) {
	form := req.Options["form"]
	if form == "" {
		form = "S-4"
	}

	endpoint := f.searchURL
	if req.URL != "" {
		endpoint = req.URL
	}

	query := url.Values{}
	query.Set("q", fmt.Sprintf("%q", form))
	query.Set("forms", form)
	query.Set("dateRange", "custom")
	query.Set("startdt", time.Now().UTC().AddDate(0, 0, -30).Format("2006-01-02"))
	query.Set("enddt", time.Now().UTC().Format("2006-01-02"))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	// SEC requires an identifying user agent with contact info.
	httpReq.Header.Set("User-Agent", "NewsIngestor/1.0 (contact@usfinancemoves.com)")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search filings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("edgar returned %s", resp.Status)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	candidates := make([]domain.Candidate, 0, limit)
	for _, hit := range decoded.Hits.Hits {
		if len(candidates) == limit {
			break
		}

		company := ""
		if len(hit.Source.DisplayNames) > 0 {
			company = cleanDisplayName(hit.Source.DisplayNames[0])
		}
		if company == "" || len(hit.Source.CIKs) == 0 {
			continue
		}

		filingURL := fmt.Sprintf("%s/%s/%s",
			filingBaseURL,
			strings.TrimLeft(hit.Source.CIKs[0], "0"),
			strings.ReplaceAll(hit.ID, ":", "/"))

		candidates = append(candidates, domain.Candidate{
			Title:      fmt.Sprintf("%s files %s with the SEC", company, form),
			Summary:    fmt.Sprintf("%s submitted a %s registration on %s.", company, form, hit.Source.FileDate),
			SourceName: req.Name,
			SourceURL:  filingURL,
			Section:    req.Section,
			Tags:       req.Tags,
			Origin:     req.Origin,
			Published:  parseFileDate(hit.Source.FileDate),
		})
	}

	return candidates, nil
}

// cleanDisplayName strips the "(CIK 0001234567)" suffix EDGAR appends.
func cleanDisplayName(name string) string {
	if i := strings.Index(name, "(CIK"); i > 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

func parseFileDate(value string) time.Time {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t
	}
	return time.Now().UTC()
}
