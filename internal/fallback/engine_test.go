package fallback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

var testNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

// fakePostRepo applies the same filter semantics the Postgres repository
// does, over an in-memory slice.
type fakePostRepo struct {
	posts   []domain.Post
	listErr error
}

var _ ports.PostRepository = (*fakePostRepo)(nil)

func (f *fakePostRepo) FindByFingerprint(_ context.Context, _ string) (*domain.Post, error) {
	return nil, nil
}

func (f *fakePostRepo) Insert(_ context.Context, post *domain.Post) error {
	f.posts = append(f.posts, *post)
	return nil
}

func (f *fakePostRepo) List(_ context.Context, filter ports.PostFilter) ([]domain.Post, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []domain.Post
	for _, p := range f.posts {
		if filter.Section != "" && p.Section != filter.Section {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if !filter.CreatedAfter.IsZero() && p.CreatedAt.Before(filter.CreatedAfter) {
			continue
		}
		if !filter.CreatedBefore.IsZero() && !p.CreatedAt.Before(filter.CreatedBefore) {
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakePostRepo) Count(_ context.Context, filter ports.PostFilter) (int, error) {
	posts, err := f.List(context.Background(), filter)
	return len(posts), err
}

func (f *fakePostRepo) DeleteOlderThan(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

func (f *fakePostRepo) ListWithoutDeliveries(_ context.Context, _ time.Time) ([]domain.Post, error) {
	return nil, nil
}

func newTestEngine(repo *fakePostRepo) *Engine {
	return NewEngine(repo, Options{
		Thresholds: map[string]int{
			"ma": 3, "lbo": 3, "reg": 3, "cap": 5, "rumor": 2, "all": 30,
		},
		ExclusionWindow: 2 * time.Hour,
		RetentionWindow: 7 * 24 * time.Hour,
		Now:             func() time.Time { return testNow },
	}, nil)
}

func storedPost(id, section string, age time.Duration) domain.Post {
	return domain.Post{
		ID:        id,
		Title:     "stored " + id,
		Section:   section,
		Status:    domain.StatusPublished,
		CreatedAt: testNow.Add(-age),
	}
}

func freshPost(id, section string) domain.Post {
	return domain.Post{
		ID:        id,
		Title:     "fresh " + id,
		Section:   section,
		Status:    domain.StatusPublished,
		CreatedAt: testNow,
	}
}

// Scenario: zero new posts, five eligible fallbacks created 3h ago.
func TestPopulateAllFromFallbacks(t *testing.T) {
	t.Parallel()

	repo := &fakePostRepo{}
	for i := 0; i < 5; i++ {
		repo.posts = append(repo.posts,
			storedPost(fmt.Sprintf("p%d", i), "ma", 3*time.Hour+time.Duration(i)*time.Minute))
	}
	engine := newTestEngine(repo)

	got := engine.Populate(context.Background(), "ma", nil)
	require.Len(t, got, 3)

	// Most recent first.
	assert.Equal(t, "p0", got[0].ID)
	assert.Equal(t, "p1", got[1].ID)
	assert.Equal(t, "p2", got[2].ID)
}

// Scenario: two new posts, threshold 3, one fallback available.
func TestPopulateMixesNewAndFallback(t *testing.T) {
	t.Parallel()

	repo := &fakePostRepo{posts: []domain.Post{
		storedPost("old1", "lbo", 5*time.Hour),
	}}
	engine := newTestEngine(repo)

	fresh := []domain.Post{freshPost("n1", "lbo"), freshPost("n2", "lbo")}
	got := engine.Populate(context.Background(), "lbo", fresh)

	require.Len(t, got, 3)
	assert.Equal(t, "n1", got[0].ID)
	assert.Equal(t, "n2", got[1].ID)
	assert.Equal(t, "old1", got[2].ID)
}

func TestPopulateMixWithoutFallbacksStaysShort(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(&fakePostRepo{})
	fresh := []domain.Post{freshPost("n1", "lbo"), freshPost("n2", "lbo")}

	got := engine.Populate(context.Background(), "lbo", fresh)
	assert.Len(t, got, 2)
}

func TestPopulateEnoughNewPostsTruncatesAtThreshold(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(&fakePostRepo{})
	fresh := []domain.Post{
		freshPost("n1", "ma"), freshPost("n2", "ma"),
		freshPost("n3", "ma"), freshPost("n4", "ma"),
	}

	got := engine.Populate(context.Background(), "ma", fresh)
	require.Len(t, got, 3)
	assert.Equal(t, "n1", got[0].ID)
}

func TestPopulateEmptyStoreReturnsEmpty(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(&fakePostRepo{})
	got := engine.Populate(context.Background(), "reg", nil)
	assert.Empty(t, got, "no content at all is a legitimate terminal case")
}

func TestPopulateExclusionAndRetentionWindows(t *testing.T) {
	t.Parallel()

	// "too-new" sits inside the 2h exclusion window, "too-old" past the 7d
	// retention cutoff. Only "eligible" may surface.
	repo := &fakePostRepo{posts: []domain.Post{
		storedPost("too-new", "ma", 30*time.Minute),
		storedPost("eligible", "ma", 4*time.Hour),
		storedPost("too-old", "ma", 8*24*time.Hour),
	}}
	engine := newTestEngine(repo)

	got := engine.Populate(context.Background(), "ma", nil)
	require.Len(t, got, 1)
	assert.Equal(t, "eligible", got[0].ID)
}

func TestPopulateNeverDuplicatesIDs(t *testing.T) {
	t.Parallel()

	shared := storedPost("shared", "ma", 3*time.Hour)
	repo := &fakePostRepo{posts: []domain.Post{
		shared,
		storedPost("other", "ma", 4*time.Hour),
	}}
	engine := newTestEngine(repo)

	// The caller hands back a post that also sits in the fallback window.
	got := engine.Populate(context.Background(), "ma", []domain.Post{shared})

	seen := map[string]int{}
	for _, p := range got {
		seen[p.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "post %s appears %d times", id, n)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "other", got[1].ID)
}

func TestPopulateDegradesOnStoreError(t *testing.T) {
	t.Parallel()

	repo := &fakePostRepo{listErr: errors.New("store unavailable")}
	engine := newTestEngine(repo)

	fresh := []domain.Post{freshPost("n1", "ma")}
	got := engine.Populate(context.Background(), "ma", fresh)

	require.Len(t, got, 1, "degrades to new posts instead of failing the read path")
	assert.Equal(t, "n1", got[0].ID)
}

func TestPopulateHomepageDrawsFromAllSections(t *testing.T) {
	t.Parallel()

	repo := &fakePostRepo{posts: []domain.Post{
		storedPost("m1", "ma", 3*time.Hour),
		storedPost("c1", "cap", 4*time.Hour),
		storedPost("r1", "rumor", 5*time.Hour),
	}}
	engine := newTestEngine(repo)

	got := engine.PopulateHomepage(context.Background(), nil)
	require.Len(t, got, 3)
	assert.Equal(t, "m1", got[0].ID)
}

func TestThresholdDefault(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(&fakePostRepo{})
	assert.Equal(t, 3, engine.Threshold("unknown-section"))
	assert.Equal(t, 5, engine.Threshold("cap"))
	assert.Equal(t, 30, engine.Threshold(domain.SectionAllKey))
}

// Floor property: result length is min(threshold, new + available fallbacks).
func TestPopulateFloorProperty(t *testing.T) {
	t.Parallel()

	for _, available := range []int{0, 1, 2, 3, 5} {
		for _, fresh := range []int{0, 1, 2, 3, 4} {
			repo := &fakePostRepo{}
			for i := 0; i < available; i++ {
				repo.posts = append(repo.posts,
					storedPost(fmt.Sprintf("f%d", i), "ma", 3*time.Hour+time.Duration(i)*time.Minute))
			}
			engine := newTestEngine(repo)

			var newPosts []domain.Post
			for i := 0; i < fresh; i++ {
				newPosts = append(newPosts, freshPost(fmt.Sprintf("n%d", i), "ma"))
			}

			got := engine.Populate(context.Background(), "ma", newPosts)
			want := fresh + available
			if want > 3 {
				want = 3
			}
			assert.Len(t, got, want, "available=%d fresh=%d", available, fresh)
		}
	}
}
