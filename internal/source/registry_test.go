package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsIngestor/internal/config"
	"NewsIngestor/internal/domain"
)

type stubStrategy struct {
	name       string
	candidates []domain.Candidate
	err        error
	gotReq     Request
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Fetch(_ context.Context, req Request) ([]domain.Candidate, error) {
	s.gotReq = req
	return s.candidates, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	rss := &stubStrategy{name: "rss"}
	reg.Register(rss)

	got, err := reg.Resolve("rss")
	require.NoError(t, err)
	assert.Same(t, rss, got)

	_, err = reg.Resolve("edgar")
	assert.Error(t, err)
}

func TestMultiSourceAggregatesAndBackfills(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubStrategy{
		name: "rss",
		candidates: []domain.Candidate{
			{Title: "one", SourceURL: "https://a/1"},
			{Title: "two", SourceURL: "https://a/2", SourceName: "keeps-own", Origin: domain.OriginCrypto},
		},
	})

	sources := []config.SourceConfig{{
		Name:     "deal-feed",
		Strategy: "rss",
		URL:      "https://a/feed",
		Section:  "ma",
		Origin:   "RSS",
	}}

	multi := NewMultiSource(reg, sources, 5, discardLogger())
	got, err := multi.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "deal-feed", got[0].SourceName)
	assert.Equal(t, domain.OriginRSS, got[0].Origin)

	// Values set by the strategy are not overwritten.
	assert.Equal(t, "keeps-own", got[1].SourceName)
	assert.Equal(t, domain.OriginCrypto, got[1].Origin)
}

func TestMultiSourceContinuesPastFailures(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	broken := &stubStrategy{name: "scrape", err: errors.New("listing page returned 403")}
	working := &stubStrategy{
		name:       "rss",
		candidates: []domain.Candidate{{Title: "ok", SourceURL: "https://a/1"}},
	}
	reg.Register(broken)
	reg.Register(working)

	sources := []config.SourceConfig{
		{Name: "broken-site", Strategy: "scrape", URL: "https://b"},
		{Name: "unknown", Strategy: "edgar", URL: "https://c"},
		{Name: "deal-feed", Strategy: "rss", URL: "https://a/feed"},
	}

	multi := NewMultiSource(reg, sources, 5, discardLogger())
	got, err := multi.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Title)
}

func TestMultiSourcePassesRequestThrough(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	strategy := &stubStrategy{name: "scrape"}
	reg.Register(strategy)

	sources := []config.SourceConfig{{
		Name:     "pe-wire",
		Strategy: "scrape",
		URL:      "https://pe.example.com/news",
		Section:  "lbo",
		Tags:     []string{"pe"},
		Origin:   "SCRAPED",
		Options:  map[string]string{"itemSelector": "div.article"},
	}}

	multi := NewMultiSource(reg, sources, 7, discardLogger())
	_, err := multi.Fetch(context.Background())
	require.NoError(t, err)

	req := strategy.gotReq
	assert.Equal(t, "pe-wire", req.Name)
	assert.Equal(t, "https://pe.example.com/news", req.URL)
	assert.Equal(t, "lbo", req.Section)
	assert.Equal(t, domain.OriginScraped, req.Origin)
	assert.Equal(t, "div.article", req.Options["itemSelector"])
	assert.Equal(t, 7, req.Limit)
}
