// Package storage persists posts and deliveries in Postgres.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// ErrNotFound is returned when an update targets a missing row.
var ErrNotFound = errors.New("record not found")

const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostRepository persists posts in Postgres.
type PostRepository struct {
	db *sql.DB
}

var _ ports.PostRepository = (*PostRepository)(nil)

// NewPostRepository wires a sql.DB implementation.
func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

const postColumns = "id, title, summary, excerpt, content, source_name, source_url, section_slug, tags, content_hash, status, origin_type, article_slug, created_at"

// FindByFingerprint returns the post with the given content hash, or nil.
func (r *PostRepository) FindByFingerprint(ctx context.Context, hash string) (*domain.Post, error) {
	query, args, err := psql.Select(postColumns).
		From("posts").
		Where(sq.Eq{"content_hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	row := r.db.QueryRowContext(ctx, query, args...)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}
	return post, nil
}

// Insert stores a new post. A concurrent insert of the same fingerprint maps
// to domain.ErrDuplicate via the unique constraint.
func (r *PostRepository) Insert(ctx context.Context, post *domain.Post) error {
	query, args, err := psql.Insert("posts").
		Columns("id", "title", "summary", "excerpt", "content", "source_name",
			"source_url", "section_slug", "tags", "content_hash", "status",
			"origin_type", "article_slug", "created_at").
		Values(post.ID, post.Title, post.Summary, post.Excerpt, post.Content,
			post.SourceName, post.SourceURL, post.Section, pq.StringArray(post.Tags),
			post.ContentHash, post.Status, post.Origin, nullString(post.ArticleSlug),
			post.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("insert post: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// List returns posts matching the filter, most recent first.
func (r *PostRepository) List(ctx context.Context, filter ports.PostFilter) ([]domain.Post, error) {
	builder := psql.Select(postColumns).
		From("posts").
		OrderBy("created_at DESC")

	builder = applyFilter(builder, filter)
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return posts, nil
}

// Count returns the number of posts matching the filter.
func (r *PostRepository) Count(ctx context.Context, filter ports.PostFilter) (int, error) {
	builder := psql.Select("COUNT(*)").From("posts")
	builder = applyFilter(builder, filter)

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes posts created before cutoff; delivery rows cascade.
func (r *PostRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	query, args, err := psql.Delete("posts").
		Where(sq.Lt{"created_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete old posts: %w", err)
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

// ListWithoutDeliveries finds posts created after since that have no delivery
// rows, for the reconciliation sweep.
func (r *PostRepository) ListWithoutDeliveries(ctx context.Context, since time.Time) ([]domain.Post, error) {
	query, args, err := psql.Select(postColumns).
		From("posts").
		Where(sq.Gt{"created_at": since}).
		Where("NOT EXISTS (SELECT 1 FROM deliveries WHERE deliveries.post_id = posts.id)").
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orphan posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return posts, nil
}

func applyFilter(builder sq.SelectBuilder, filter ports.PostFilter) sq.SelectBuilder {
	if filter.Section != "" {
		builder = builder.Where(sq.Eq{"section_slug": filter.Section})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Origin != "" {
		builder = builder.Where(sq.Eq{"origin_type": filter.Origin})
	}
	if !filter.CreatedAfter.IsZero() {
		builder = builder.Where(sq.GtOrEq{"created_at": filter.CreatedAfter})
	}
	if !filter.CreatedBefore.IsZero() {
		builder = builder.Where(sq.Lt{"created_at": filter.CreatedBefore})
	}
	return builder
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*domain.Post, error) {
	var (
		post domain.Post
		tags pq.StringArray
		slug sql.NullString
	)
	err := row.Scan(&post.ID, &post.Title, &post.Summary, &post.Excerpt,
		&post.Content, &post.SourceName, &post.SourceURL, &post.Section,
		&tags, &post.ContentHash, &post.Status, &post.Origin, &slug,
		&post.CreatedAt)
	if err != nil {
		return nil, err
	}
	post.Tags = tags
	post.ArticleSlug = slug.String
	return &post, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// DeliveryRepository persists delivery rows in Postgres.
type DeliveryRepository struct {
	db *sql.DB
}

var _ ports.DeliveryRepository = (*DeliveryRepository)(nil)

// NewDeliveryRepository wires a sql.DB implementation.
func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

const deliveryColumns = "id, post_id, channel, payload, status, attempts, last_error, last_attempt_at, completed_at, created_at"

// Insert stores a new delivery record.
func (r *DeliveryRepository) Insert(ctx context.Context, d *domain.Delivery) error {
	payload, err := json.Marshal(d.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query, args, err := psql.Insert("deliveries").
		Columns("id", "post_id", "channel", "payload", "status", "attempts", "created_at").
		Values(d.ID, d.PostID, d.Channel, payload, d.Status, d.Attempts, d.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// ListQueued returns queued records for a channel, oldest first.
func (r *DeliveryRepository) ListQueued(ctx context.Context, ch domain.Channel, limit int) ([]domain.Delivery, error) {
	builder := psql.Select(deliveryColumns).
		From("deliveries").
		Where(sq.Eq{"channel": ch, "status": domain.DeliveryQueued}).
		OrderBy("created_at ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queued: %w", err)
	}
	defer rows.Close()

	var deliveries []domain.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		deliveries = append(deliveries, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return deliveries, nil
}

// Claim atomically moves a record from queued to in_progress. The WHERE on
// status makes the update a compare-and-swap: zero rows affected means
// another worker owns the record.
func (r *DeliveryRepository) Claim(ctx context.Context, id string) (bool, error) {
	query, args, err := psql.Update("deliveries").
		Set("status", domain.DeliveryInProgress).
		Where(sq.Eq{"id": id, "status": domain.DeliveryQueued}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build claim: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("claim delivery: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected == 1, nil
}

// Release puts a claimed record back to queued without touching attempts.
func (r *DeliveryRepository) Release(ctx context.Context, id string) error {
	return r.update(ctx, id, map[string]any{
		"status": domain.DeliveryQueued,
	})
}

// MarkCompleted finalizes a successful delivery.
func (r *DeliveryRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, map[string]any{
		"status":       domain.DeliveryCompleted,
		"completed_at": at,
	})
}

// MarkRetry records a failed attempt that stays eligible.
func (r *DeliveryRepository) MarkRetry(ctx context.Context, id string, attempts int, lastErr string, at time.Time) error {
	return r.update(ctx, id, map[string]any{
		"status":          domain.DeliveryQueued,
		"attempts":        attempts,
		"last_error":      lastErr,
		"last_attempt_at": at,
	})
}

// MarkFailed records a terminal failure.
func (r *DeliveryRepository) MarkFailed(ctx context.Context, id string, attempts int, lastErr string, at time.Time) error {
	return r.update(ctx, id, map[string]any{
		"status":          domain.DeliveryFailed,
		"attempts":        attempts,
		"last_error":      lastErr,
		"last_attempt_at": at,
	})
}

// RequeueHeld moves all held records for a channel back to queued.
func (r *DeliveryRepository) RequeueHeld(ctx context.Context, ch domain.Channel) (int, error) {
	query, args, err := psql.Update("deliveries").
		Set("status", domain.DeliveryQueued).
		Where(sq.Eq{"channel": ch, "status": domain.DeliveryHeld}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build requeue: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("requeue held: %w", err)
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

func (r *DeliveryRepository) update(ctx context.Context, id string, fields map[string]any) error {
	builder := psql.Update("deliveries").Where(sq.Eq{"id": id})
	for col, val := range fields {
		builder = builder.Set(col, val)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("update delivery %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanDelivery(row rowScanner) (*domain.Delivery, error) {
	var (
		d         domain.Delivery
		payload   []byte
		lastErr   sql.NullString
		attempted sql.NullTime
		completed sql.NullTime
	)
	err := row.Scan(&d.ID, &d.PostID, &d.Channel, &payload, &d.Status,
		&d.Attempts, &lastErr, &attempted, &completed, &d.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, &d.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	d.LastError = lastErr.String
	if attempted.Valid {
		d.LastAttemptAt = &attempted.Time
	}
	if completed.Valid {
		d.CompletedAt = &completed.Time
	}
	return &d, nil
}
