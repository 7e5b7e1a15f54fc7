package domain

import (
	"errors"
	"time"
)

// ErrDuplicate signals that a candidate's fingerprint is already stored.
// It is a rejection, not a failure: callers log and skip, never retry.
var ErrDuplicate = errors.New("duplicate content")

// PostStatus enumerates publication states.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
)

// OriginType describes how a post was sourced.
type OriginType string

const (
	OriginRSS     OriginType = "RSS"
	OriginCrypto  OriginType = "CRYPTO"
	OriginScraped OriginType = "SCRAPED"
	OriginPEWire  OriginType = "PEWIRE"
)

// Section slugs are a fixed set; the classifier never emits anything else.
const (
	SectionMA     = "ma"
	SectionLBO    = "lbo"
	SectionReg    = "reg"
	SectionCap    = "cap"
	SectionRumor  = "rumor"
	SectionAllKey = "all" // homepage threshold key, not a real section
)

// Sections lists all valid section slugs.
var Sections = []string{SectionMA, SectionLBO, SectionReg, SectionCap, SectionRumor}

// ValidSection reports whether slug is one of the known sections.
func ValidSection(slug string) bool {
	for _, s := range Sections {
		if s == slug {
			return true
		}
	}
	return false
}

// Candidate is raw content pulled from a feed, scrape, or filing before
// admission through the deduplication gate.
type Candidate struct {
	Title      string
	Summary    string
	Content    string
	SourceName string
	SourceURL  string
	Section    string // optional hint from source config; classifier may override
	Tags       []string
	Origin     OriginType
	Published  time.Time
}

// Post is an admitted, persisted unit of content. Posts are never mutated
// after creation; a retention sweep eventually deletes old rows.
type Post struct {
	ID          string
	Title       string
	Summary     string
	Excerpt     string
	Content     string
	SourceName  string
	SourceURL   string
	Section     string
	Tags        []string
	ContentHash string
	Status      PostStatus
	Origin      OriginType
	ArticleSlug string // non-empty only when the post has an on-site rewritten page
	CreatedAt   time.Time
}

// Rewrite is the output shape of the rewriter collaborator.
type Rewrite struct {
	Title   string
	Summary string
	Content string
}
