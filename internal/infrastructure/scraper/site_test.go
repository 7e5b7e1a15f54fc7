package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/source"
)

const listingHTML = `<!DOCTYPE html>
<html><body>
<div class="article">
	<h2 class="headline">MegaCorp to acquire SmallCo</h2>
	<p class="teaser">All-cash deal valued at $2bn.</p>
	<a href="/news/megacorp-smallco">Read more</a>
</div>
<div class="article">
	<h2 class="headline">Sponsor exits portfolio company</h2>
	<p class="teaser">Secondary buyout closes.</p>
	<a href="https://other.example.com/exit">Read more</a>
</div>
<div class="article">
	<h2 class="headline"></h2>
	<a href="/news/empty">Read more</a>
</div>
</body></html>`

func scrapeRequest(serverURL string) source.Request {
	return source.Request{
		Name:    "pe-wire",
		URL:     serverURL,
		Section: "lbo",
		Origin:  domain.OriginScraped,
		Limit:   10,
		Options: map[string]string{
			"itemSelector":    "div.article",
			"titleSelector":   "h2.headline",
			"summarySelector": "p.teaser",
			"linkSelector":    "a",
		},
	}
}

func TestSiteFetchExtractsItems(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listingHTML))
	}))
	defer server.Close()

	src := NewSiteSource(server.Client())
	got, err := src.Fetch(context.Background(), scrapeRequest(server.URL))
	require.NoError(t, err)

	// The item without a title is dropped.
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, "MegaCorp to acquire SmallCo", first.Title)
	assert.Equal(t, "All-cash deal valued at $2bn.", first.Summary)
	assert.Equal(t, server.URL+"/news/megacorp-smallco", first.SourceURL, "relative link resolved against page URL")
	assert.Equal(t, "pe-wire", first.SourceName)
	assert.Equal(t, "lbo", first.Section)
	assert.Equal(t, domain.OriginScraped, first.Origin)

	assert.Equal(t, "https://other.example.com/exit", got[1].SourceURL, "absolute links kept as-is")
}

func TestSiteFetchHonorsLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listingHTML))
	}))
	defer server.Close()

	req := scrapeRequest(server.URL)
	req.Limit = 1

	src := NewSiteSource(server.Client())
	got, err := src.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSiteFetchMissingItemSelector(t *testing.T) {
	t.Parallel()

	src := NewSiteSource(nil)
	req := scrapeRequest("http://unused")
	req.Options = nil

	_, err := src.Fetch(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "itemSelector")
}

func TestSiteFetchNon200(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	src := NewSiteSource(server.Client())
	_, err := src.Fetch(context.Background(), scrapeRequest(server.URL))
	assert.Error(t, err)
}

func TestSiteFetchDefaultSelectors(t *testing.T) {
	t.Parallel()

	// With only itemSelector configured, the anchor supplies both title and link.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<ul><li><a href="/a">Anchor headline</a></li></ul>`))
	}))
	defer server.Close()

	req := scrapeRequest(server.URL)
	req.Options = map[string]string{"itemSelector": "li"}

	src := NewSiteSource(server.Client())
	got, err := src.Fetch(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Anchor headline", got[0].Title)
	assert.Equal(t, server.URL+"/a", got[0].SourceURL)
}
