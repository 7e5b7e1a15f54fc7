package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// Fingerprint computes the deduplication hash for a candidate: the
// case-insensitive, whitespace-trimmed concatenation of source URL and title,
// digested with SHA-256. Stable across casing and surrounding whitespace.
func Fingerprint(sourceURL, title string) string {
	content := strings.TrimSpace(strings.ToLower(sourceURL + title))
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Gate prevents the same logical article from being stored twice. It only
// decides admit/reject; inserting the admitted post is the caller's job.
type Gate struct {
	posts  ports.PostRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewGate wires the post repository. now may be nil (defaults to time.Now).
func NewGate(posts ports.PostRepository, now func() time.Time, logger *slog.Logger) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{posts: posts, now: now, logger: logger}
}

// Exists reports whether a post with the given fingerprint is already stored.
func (g *Gate) Exists(ctx context.Context, hash string) (bool, error) {
	post, err := g.posts.FindByFingerprint(ctx, hash)
	if err != nil {
		return false, fmt.Errorf("find by fingerprint: %w", err)
	}
	return post != nil, nil
}

// Admit computes the candidate's fingerprint and checks it against the
// store. If absent, it returns a fully constructed Post ready for insertion;
// if present, it returns domain.ErrDuplicate.
func (g *Gate) Admit(ctx context.Context, c domain.Candidate) (*domain.Post, error) {
	hash := Fingerprint(c.SourceURL, c.Title)

	exists, err := g.Exists(ctx, hash)
	if err != nil {
		return nil, err
	}
	if exists {
		if g.logger != nil {
			g.logger.Info("duplicate candidate skipped", "title", c.Title, "source", c.SourceName)
		}
		return nil, fmt.Errorf("candidate %q: %w", c.Title, domain.ErrDuplicate)
	}

	return &domain.Post{
		ID:          uuid.New().String(),
		Title:       c.Title,
		Summary:     c.Summary,
		Excerpt:     Excerpt(c.Content, maxExcerptWords),
		Content:     c.Content,
		SourceName:  c.SourceName,
		SourceURL:   c.SourceURL,
		Tags:        c.Tags,
		ContentHash: hash,
		Status:      domain.StatusPublished,
		Origin:      c.Origin,
		CreatedAt:   g.now().UTC(),
	}, nil
}
