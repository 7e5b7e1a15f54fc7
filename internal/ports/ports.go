package ports

import (
	"context"
	"time"

	"NewsIngestor/internal/domain"
)

// PostFilter narrows post listings. Zero values mean "no constraint".
type PostFilter struct {
	Section       string
	Status        domain.PostStatus
	Origin        domain.OriginType
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Limit         int
}

// PostRepository persists posts and answers the queries the gate, fallback
// engine, and sweeps need. Listings are ordered most-recent-first.
type PostRepository interface {
	FindByFingerprint(ctx context.Context, hash string) (*domain.Post, error)
	Insert(ctx context.Context, post *domain.Post) error
	List(ctx context.Context, filter PostFilter) ([]domain.Post, error)
	Count(ctx context.Context, filter PostFilter) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	// ListWithoutDeliveries supports the reconciliation sweep: posts created
	// after since that have no delivery rows at all.
	ListWithoutDeliveries(ctx context.Context, since time.Time) ([]domain.Post, error)
}

// DeliveryRepository owns delivery rows. Status transitions go through the
// dedicated mutators so the state machine stays in one place.
type DeliveryRepository interface {
	Insert(ctx context.Context, d *domain.Delivery) error
	// ListQueued returns queued records for a channel, oldest first.
	ListQueued(ctx context.Context, ch domain.Channel, limit int) ([]domain.Delivery, error)
	// Claim atomically moves queued -> in_progress; false means another
	// worker got there first (or the record is no longer queued).
	Claim(ctx context.Context, id string) (bool, error)
	// Release undoes a claim without consuming an attempt.
	Release(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, at time.Time) error
	MarkRetry(ctx context.Context, id string, attempts int, lastErr string, at time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, lastErr string, at time.Time) error
	// RequeueHeld moves all held records for a channel back to queued after
	// the channel has been re-enabled.
	RequeueHeld(ctx context.Context, ch domain.Channel) (int, error)
}

// Sink performs the external side effect for one channel.
type Sink interface {
	Channel() domain.Channel
	Send(ctx context.Context, payload domain.Payload) error
}

// Rewriter is the fallible text-generation collaborator.
type Rewriter interface {
	Rewrite(ctx context.Context, title, content string) (*domain.Rewrite, error)
}

// CandidateSource produces candidate posts from upstream feeds, scrapes, and
// filings.
type CandidateSource interface {
	Fetch(ctx context.Context) ([]domain.Candidate, error)
}
