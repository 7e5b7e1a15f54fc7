package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"NewsIngestor/internal/delivery"
	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/infrastructure/rewriter"
	"NewsIngestor/internal/ingest"
	"NewsIngestor/internal/ports"
)

// Stats summarizes one ingestion run.
type Stats struct {
	Fetched     int
	Created     int
	Duplicates  int
	Prefiltered int
	Errors      int
	CleanedUp   int
}

// PipelineDeps wires all collaborators into the ingestion run.
type PipelineDeps struct {
	Source     ports.CandidateSource
	Posts      ports.PostRepository
	Deliveries ports.DeliveryRepository
	Gate       *ingest.Gate
	PreFilters []ingest.PreFilter
	Rewriter   ports.Rewriter
	Factory    *delivery.Factory
	// RewriteOrigins lists the origin types whose content is sent through
	// the rewriter to produce an on-site article.
	RewriteOrigins []domain.OriginType
	RetentionDays  int
	Logger         *slog.Logger
}

// Pipeline implements the ingestion workflow: fetch candidates, filter,
// dedup, classify, persist, fan out deliveries.
type Pipeline struct {
	deps PipelineDeps
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if len(deps.RewriteOrigins) == 0 {
		deps.RewriteOrigins = []domain.OriginType{domain.OriginScraped, domain.OriginPEWire}
	}
	return &Pipeline{deps: deps}
}

// Run executes one ingestion batch. Per-item failures are logged and the
// batch continues; only a source-level failure aborts the run.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	candidates, err := p.deps.Source.Fetch(ctx)
	if err != nil {
		return stats, fmt.Errorf("fetch candidates: %w", err)
	}
	stats.Fetched = len(candidates)

	for _, cand := range candidates {
		switch p.processCandidate(ctx, cand) {
		case outcomeCreated:
			stats.Created++
		case outcomeDuplicate:
			stats.Duplicates++
		case outcomePrefiltered:
			stats.Prefiltered++
		case outcomeError:
			stats.Errors++
		}
	}

	if p.deps.RetentionDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -p.deps.RetentionDays)
		deleted, err := p.deps.Posts.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			p.deps.Logger.Error("retention sweep failed", "error", err)
		} else {
			stats.CleanedUp = deleted
		}
	}

	p.deps.Logger.Info("ingestion run finished",
		"fetched", stats.Fetched, "created", stats.Created,
		"duplicates", stats.Duplicates, "prefiltered", stats.Prefiltered,
		"errors", stats.Errors, "cleaned_up", stats.CleanedUp)
	return stats, nil
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeDuplicate
	outcomePrefiltered
	outcomeError
)

func (p *Pipeline) processCandidate(ctx context.Context, cand domain.Candidate) outcome {
	// Optional heuristics fail open: an error must never block ingestion.
	for _, filter := range p.deps.PreFilters {
		skip, err := filter.Skip(ctx, cand)
		if err != nil {
			p.deps.Logger.Warn("pre-filter error ignored",
				"filter", filter.Name(), "title", cand.Title, "error", err)
			continue
		}
		if skip {
			p.deps.Logger.Info("candidate pre-filtered",
				"filter", filter.Name(), "title", cand.Title)
			return outcomePrefiltered
		}
	}

	post, err := p.deps.Gate.Admit(ctx, cand)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return outcomeDuplicate
		}
		p.deps.Logger.Error("admission failed", "title", cand.Title, "error", err)
		return outcomeError
	}

	post.Section = cand.Section
	if post.Section == "" || !domain.ValidSection(post.Section) {
		post.Section = ingest.ClassifySection(cand.Title, cand.Content)
	}
	post.Tags = ingest.MergeTags(post.Tags, ingest.ExtractTags(cand.Title, cand.Content))

	p.maybeRewrite(ctx, post)

	if err := p.deps.Posts.Insert(ctx, post); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return outcomeDuplicate
		}
		p.deps.Logger.Error("insert post failed", "title", post.Title, "error", err)
		return outcomeError
	}

	p.createDeliveries(ctx, post)
	p.deps.Logger.Info("post created",
		"id", post.ID, "section", post.Section, "origin", post.Origin, "title", post.Title)
	return outcomeCreated
}

// maybeRewrite sends qualifying origins through the rewriter. A rewrite
// failure is non-fatal: the post is stored as-is with no article slug, which
// also keeps it off the social channel.
func (p *Pipeline) maybeRewrite(ctx context.Context, post *domain.Post) {
	if p.deps.Rewriter == nil || !p.rewriteEligible(post.Origin) {
		return
	}

	rw, err := p.deps.Rewriter.Rewrite(ctx, post.Title, post.Content)
	if err != nil {
		p.deps.Logger.Warn("rewrite failed, storing original", "title", post.Title, "error", err)
		return
	}

	post.Title = rw.Title
	post.Summary = rw.Summary
	post.Content = rw.Content
	post.Excerpt = ingest.Excerpt(rw.Content, 75)
	post.ArticleSlug = rewriter.Slugify(rw.Title)
}

func (p *Pipeline) rewriteEligible(origin domain.OriginType) bool {
	for _, o := range p.deps.RewriteOrigins {
		if origin == o {
			return true
		}
	}
	return false
}

// createDeliveries fans the post out to its qualifying channels. A failed
// delivery insert is logged, not fatal: the reconciliation sweep can rebuild
// missing rows later.
func (p *Pipeline) createDeliveries(ctx context.Context, post *domain.Post) {
	for _, d := range p.deps.Factory.BuildDeliveries(post) {
		d := d
		if err := p.deps.Deliveries.Insert(ctx, &d); err != nil {
			p.deps.Logger.Error("insert delivery failed",
				"post", post.ID, "channel", d.Channel, "error", err)
		}
	}
}

// Reconcile finds posts created after since that have no delivery rows (for
// example after a crash between post and delivery inserts) and rebuilds
// their deliveries.
func (p *Pipeline) Reconcile(ctx context.Context, since time.Time) (int, error) {
	orphans, err := p.deps.Posts.ListWithoutDeliveries(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("list posts without deliveries: %w", err)
	}

	for i := range orphans {
		p.createDeliveries(ctx, &orphans[i])
	}
	if len(orphans) > 0 {
		p.deps.Logger.Info("reconciled posts without deliveries", "count", len(orphans))
	}
	return len(orphans), nil
}
