package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// PreFilter is an optional heuristic applied before the fingerprint check.
// Pre-filters must fail open: the pipeline treats an error as "do not skip"
// and keeps ingesting.
type PreFilter interface {
	Name() string
	Skip(ctx context.Context, c domain.Candidate) (bool, error)
}

// CompanyRecency skips a candidate when a post naming the same company was
// stored within the configured number of days. Days <= 0 disables the check.
type CompanyRecency struct {
	posts ports.PostRepository
	days  int
	now   func() time.Time
}

var _ PreFilter = (*CompanyRecency)(nil)

func NewCompanyRecency(posts ports.PostRepository, days int, now func() time.Time) *CompanyRecency {
	if now == nil {
		now = time.Now
	}
	return &CompanyRecency{posts: posts, days: days, now: now}
}

func (f *CompanyRecency) Name() string { return "company-recency" }

func (f *CompanyRecency) Skip(ctx context.Context, c domain.Candidate) (bool, error) {
	if f.days <= 0 {
		return false, nil
	}

	company := primaryCompany(c.Title)
	if company == "" {
		return false, nil
	}

	recent, err := f.posts.List(ctx, ports.PostFilter{
		Status:       domain.StatusPublished,
		CreatedAfter: f.now().AddDate(0, 0, -f.days),
		Limit:        100,
	})
	if err != nil {
		return false, fmt.Errorf("list recent posts: %w", err)
	}

	needle := strings.ToLower(company)
	for _, p := range recent {
		if strings.Contains(strings.ToLower(p.Title), needle) {
			return true, nil
		}
	}
	return false, nil
}

// primaryCompany takes the leading run of capitalized words in a title as the
// company name. Crude, but this filter only has to be roughly right.
func primaryCompany(title string) string {
	var words []string
	for _, w := range strings.Fields(title) {
		r := []rune(w)
		if len(r) == 0 || r[0] < 'A' || r[0] > 'Z' {
			break
		}
		words = append(words, w)
		if len(words) == 3 {
			break
		}
	}
	if len(words) == 0 {
		return ""
	}
	return strings.Join(words, " ")
}

// TitleSimilarity skips a candidate when a very similar title (token-overlap
// Jaccard above cutoff) was stored within the window.
type TitleSimilarity struct {
	posts  ports.PostRepository
	window time.Duration
	cutoff float64
	now    func() time.Time
}

var _ PreFilter = (*TitleSimilarity)(nil)

func NewTitleSimilarity(posts ports.PostRepository, window time.Duration, cutoff float64, now func() time.Time) *TitleSimilarity {
	if now == nil {
		now = time.Now
	}
	return &TitleSimilarity{posts: posts, window: window, cutoff: cutoff, now: now}
}

func (f *TitleSimilarity) Name() string { return "title-similarity" }

func (f *TitleSimilarity) Skip(ctx context.Context, c domain.Candidate) (bool, error) {
	if f.window <= 0 || f.cutoff <= 0 {
		return false, nil
	}

	recent, err := f.posts.List(ctx, ports.PostFilter{
		Status:       domain.StatusPublished,
		CreatedAfter: f.now().Add(-f.window),
		Limit:        200,
	})
	if err != nil {
		return false, fmt.Errorf("list recent posts: %w", err)
	}

	for _, p := range recent {
		if TokenOverlap(c.Title, p.Title) >= f.cutoff {
			return true, nil
		}
	}
	return false, nil
}

// TokenOverlap computes Jaccard similarity over lowercased title tokens.
func TokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,:;!?\"'()")
		if len(tok) > 2 {
			set[tok] = struct{}{}
		}
	}
	return set
}
