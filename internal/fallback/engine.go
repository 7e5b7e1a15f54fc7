// Package fallback implements the smart content engine that keeps every
// section, and the homepage, populated to its target size by mixing freshly
// ingested posts with recently published history.
package fallback

import (
	"context"
	"log/slog"
	"time"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

const defaultThreshold = 3

// Options configures thresholds and the fallback selection window.
type Options struct {
	// Thresholds maps section slug (plus the "all" homepage key) to the
	// target population size.
	Thresholds map[string]int
	// ExclusionWindow keeps just-created posts out of the fallback pool so a
	// concurrent ingestion pass cannot feed a section its own "new" posts.
	ExclusionWindow time.Duration
	// RetentionWindow bounds how old a fallback post may be.
	RetentionWindow time.Duration
	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

// Engine decides, per section and for the homepage, which mix of new and
// previously published posts to surface. It is a pure read-path component:
// re-run on every assembly, nothing persisted.
type Engine struct {
	posts  ports.PostRepository
	opts   Options
	logger *slog.Logger
}

// NewEngine wires the post repository. Missing option fields get the
// production defaults (2h exclusion, 7d retention).
func NewEngine(posts ports.PostRepository, opts Options, logger *slog.Logger) *Engine {
	if opts.ExclusionWindow <= 0 {
		opts.ExclusionWindow = 2 * time.Hour
	}
	if opts.RetentionWindow <= 0 {
		opts.RetentionWindow = 7 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{posts: posts, opts: opts, logger: logger}
}

// Threshold returns the target population for a section slug (or the "all"
// homepage key).
func (e *Engine) Threshold(section string) int {
	if t, ok := e.opts.Thresholds[section]; ok {
		return t
	}
	return defaultThreshold
}

// Populate returns the ordered post list for a section. newPosts are assumed
// already ordered most-recent-first by the caller.
//
// If the fallback fetch fails, the engine degrades to returning the new posts
// it has (capped at the threshold) rather than failing the read path.
func (e *Engine) Populate(ctx context.Context, section string, newPosts []domain.Post) []domain.Post {
	return e.populate(ctx, section, section, newPosts)
}

// PopulateHomepage returns the ordered homepage list, drawing fallbacks from
// any section.
func (e *Engine) PopulateHomepage(ctx context.Context, newPosts []domain.Post) []domain.Post {
	return e.populate(ctx, domain.SectionAllKey, "", newPosts)
}

func (e *Engine) populate(ctx context.Context, key, section string, newPosts []domain.Post) []domain.Post {
	target := e.Threshold(key)

	if len(newPosts) >= target {
		e.log("section filled from new posts", key, len(newPosts), 0)
		return newPosts[:target]
	}

	needed := target - len(newPosts)
	fallbacks, err := e.fetchFallbacks(ctx, section, needed, newPosts)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("fallback fetch failed, degrading to new posts",
				"section", key, "error", err)
		}
		return newPosts
	}

	e.log("section mixed", key, len(newPosts), len(fallbacks))
	return append(newPosts, fallbacks...)
}

// fetchFallbacks selects published posts inside the (retention, exclusion)
// window, most-recent-first, skipping any ID already present in newPosts so
// no post appears twice.
func (e *Engine) fetchFallbacks(ctx context.Context, section string, needed int, newPosts []domain.Post) ([]domain.Post, error) {
	now := e.opts.Now()

	// Over-fetch a little so exclusions don't leave the section short.
	candidates, err := e.posts.List(ctx, ports.PostFilter{
		Section:       section,
		Status:        domain.StatusPublished,
		CreatedAfter:  now.Add(-e.opts.RetentionWindow),
		CreatedBefore: now.Add(-e.opts.ExclusionWindow),
		Limit:         needed + len(newPosts),
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(newPosts))
	for _, p := range newPosts {
		seen[p.ID] = struct{}{}
	}

	fallbacks := make([]domain.Post, 0, needed)
	for _, p := range candidates {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		fallbacks = append(fallbacks, p)
		if len(fallbacks) == needed {
			break
		}
	}
	return fallbacks, nil
}

// ContentSummary counts published posts per section, for operator visibility.
func (e *Engine) ContentSummary(ctx context.Context) map[string]int {
	summary := map[string]int{}
	for _, section := range domain.Sections {
		count, err := e.posts.Count(ctx, ports.PostFilter{
			Section: section,
			Status:  domain.StatusPublished,
		})
		if err != nil {
			if e.logger != nil {
				e.logger.Warn("count failed", "section", section, "error", err)
			}
			continue
		}
		summary[section] = count
	}
	return summary
}

func (e *Engine) log(msg, section string, fresh, fallback int) {
	if e.logger != nil {
		e.logger.Info(msg, "section", section, "new", fresh, "fallback", fallback)
	}
}
