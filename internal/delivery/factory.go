// Package delivery turns persisted posts into durable fan-out work and
// processes the resulting queue against the notification sinks.
package delivery

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"NewsIngestor/internal/domain"
)

const (
	tweetLimit = 280
	// Links are shortened by the platform; reserve this much for the URL
	// plus separating whitespace.
	urlReserve = 25
	// Summaries longer than this crowd out the hashtags and URL.
	maxSummaryLen = 80
)

// FactoryOptions configures delivery construction.
type FactoryOptions struct {
	// SocialEnabled is the site-wide posting feature flag.
	SocialEnabled bool
	// BuildWhenDisabled constructs social records with status held when the
	// flag is off, so payloads can be audited without ever being sent.
	BuildWhenDisabled bool
	// AllowedOrigins is the origin allow-list for the social channel.
	AllowedOrigins []domain.OriginType
	// SiteBaseURL hosts rewritten articles at /article/<slug>.
	SiteBaseURL string
	Hashtags    string
	Now         func() time.Time
}

// Factory builds the delivery records a newly persisted post qualifies for.
type Factory struct {
	opts FactoryOptions
}

// NewFactory applies defaults: SCRAPED and PEWIRE origins qualify for the
// social channel.
func NewFactory(opts FactoryOptions) *Factory {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []domain.OriginType{domain.OriginScraped, domain.OriginPEWire}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Factory{opts: opts}
}

// BuildDeliveries returns the delivery records for a post: always a web
// revalidation delivery, plus a social delivery when the post qualifies.
func (f *Factory) BuildDeliveries(post *domain.Post) []domain.Delivery {
	now := f.opts.Now().UTC()

	deliveries := []domain.Delivery{{
		ID:      uuid.New().String(),
		PostID:  post.ID,
		Channel: domain.ChannelWeb,
		Payload: domain.Payload{
			Paths: []string{"/", "/section/" + post.Section},
		},
		Status:    domain.DeliveryQueued,
		CreatedAt: now,
	}}

	if social, ok := f.buildSocial(post, now); ok {
		deliveries = append(deliveries, social)
	}
	return deliveries
}

// ShouldNotify is the social eligibility predicate: the feature flag is on,
// the post has an on-site article page, and its origin is allow-listed. The
// allow-list is narrow on purpose: the social channel has a hard external
// rate budget, and RSS posts without an on-site page don't drive traffic back.
func (f *Factory) ShouldNotify(post *domain.Post) bool {
	return f.opts.SocialEnabled && f.qualifies(post)
}

func (f *Factory) qualifies(post *domain.Post) bool {
	if post.ArticleSlug == "" {
		return false
	}
	for _, origin := range f.opts.AllowedOrigins {
		if post.Origin == origin {
			return true
		}
	}
	return false
}

func (f *Factory) buildSocial(post *domain.Post, now time.Time) (domain.Delivery, bool) {
	if !f.qualifies(post) {
		return domain.Delivery{}, false
	}

	status := domain.DeliveryQueued
	if !f.opts.SocialEnabled {
		if !f.opts.BuildWhenDisabled {
			return domain.Delivery{}, false
		}
		status = domain.DeliveryHeld
	}

	return domain.Delivery{
		ID:      uuid.New().String(),
		PostID:  post.ID,
		Channel: domain.ChannelSocial,
		Payload: domain.Payload{
			Text: f.ComposeText(post),
		},
		Status:    status,
		CreatedAt: now,
	}, true
}

// ComposeText assembles the social post within the channel's 280-unit limit.
// The title and URL always make it in; the summary and hashtags are dropped
// first when space is tight.
func (f *Factory) ComposeText(post *domain.Post) string {
	url := post.SourceURL
	if post.ArticleSlug != "" {
		url = strings.TrimSuffix(f.opts.SiteBaseURL, "/") + "/article/" + post.ArticleSlug
	}

	text := "📈 " + post.Title

	if s := strings.TrimSpace(post.Summary); s != "" && len([]rune(s)) < maxSummaryLen {
		text += "\n\n" + s
	}

	if f.opts.Hashtags != "" && runeLen(text)+runeLen(f.opts.Hashtags)+urlReserve < tweetLimit {
		text += "\n\n" + f.opts.Hashtags
	}

	if runeLen(text)+urlReserve < tweetLimit {
		text += "\n\n" + url
	}

	if runeLen(text) > tweetLimit {
		text = string([]rune(text)[:tweetLimit-3]) + "..."
	}
	return text
}

func runeLen(s string) int { return len([]rune(s)) }
