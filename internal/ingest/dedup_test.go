package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// fakePostRepo is an in-memory ports.PostRepository for gate tests.
type fakePostRepo struct {
	posts   []domain.Post
	listErr error
	findErr error
}

var _ ports.PostRepository = (*fakePostRepo)(nil)

func (f *fakePostRepo) FindByFingerprint(_ context.Context, hash string) (*domain.Post, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for i := range f.posts {
		if f.posts[i].ContentHash == hash {
			return &f.posts[i], nil
		}
	}
	return nil, nil
}

func (f *fakePostRepo) Insert(_ context.Context, post *domain.Post) error {
	for _, p := range f.posts {
		if p.ContentHash == post.ContentHash {
			return domain.ErrDuplicate
		}
	}
	f.posts = append(f.posts, *post)
	return nil
}

func (f *fakePostRepo) List(_ context.Context, filter ports.PostFilter) ([]domain.Post, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Post
	for _, p := range f.posts {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if !filter.CreatedAfter.IsZero() && p.CreatedAt.Before(filter.CreatedAfter) {
			continue
		}
		out = append(out, p)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakePostRepo) Count(_ context.Context, _ ports.PostFilter) (int, error) {
	return len(f.posts), nil
}

func (f *fakePostRepo) DeleteOlderThan(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

func (f *fakePostRepo) ListWithoutDeliveries(_ context.Context, _ time.Time) ([]domain.Post, error) {
	return nil, nil
}

func TestFingerprintDeterminism(t *testing.T) {
	t.Parallel()

	a := Fingerprint("https://x.com/a", "Deal")
	b := Fingerprint("https://x.com/a", "Deal")
	assert.Equal(t, a, b)

	// Case-insensitive and trimmed.
	assert.Equal(t, a, Fingerprint("HTTPS://X.COM/A", "DEAL"))
	assert.Equal(t, a, Fingerprint("  https://x.com/a", "Deal  "))

	// Different inputs diverge.
	assert.NotEqual(t, a, Fingerprint("https://x.com/b", "Deal"))
	assert.NotEqual(t, a, Fingerprint("https://x.com/a", "Other Deal"))
}

func TestGateAdmitThenReject(t *testing.T) {
	t.Parallel()

	repo := &fakePostRepo{}
	gate := NewGate(repo, nil, nil)
	ctx := context.Background()

	cand := domain.Candidate{
		Title:      "Deal",
		SourceName: "wire",
		SourceURL:  "https://x.com/a",
		Origin:     domain.OriginRSS,
	}

	post, err := gate.Admit(ctx, cand)
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.NotEmpty(t, post.ID)
	assert.Equal(t, Fingerprint(cand.SourceURL, cand.Title), post.ContentHash)
	assert.Equal(t, domain.StatusPublished, post.Status)

	require.NoError(t, repo.Insert(ctx, post))

	// Second admission of the same article, different casing and whitespace.
	dup := domain.Candidate{
		Title:     "  DEAL",
		SourceURL: "HTTPS://X.COM/A  ",
	}
	_, err = gate.Admit(ctx, dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDuplicate))

	assert.Len(t, repo.posts, 1, "exactly one stored post after duplicate admission")
}

func TestGateAdmitPropagatesStoreError(t *testing.T) {
	t.Parallel()

	repo := &fakePostRepo{findErr: errors.New("store down")}
	gate := NewGate(repo, nil, nil)

	_, err := gate.Admit(context.Background(), domain.Candidate{Title: "t", SourceURL: "u"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrDuplicate))
}

func TestGateUsesInjectedClock(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	gate := NewGate(&fakePostRepo{}, func() time.Time { return fixed }, nil)

	post, err := gate.Admit(context.Background(), domain.Candidate{Title: "t", SourceURL: "u"})
	require.NoError(t, err)
	assert.Equal(t, fixed, post.CreatedAt)
}
