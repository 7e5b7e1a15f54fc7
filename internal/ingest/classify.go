package ingest

import (
	"regexp"
	"strings"

	"NewsIngestor/internal/domain"
)

const maxExcerptWords = 75

var whitespaceExpr = regexp.MustCompile(`\s+`)

// CleanText collapses whitespace and unescapes the handful of HTML entities
// feeds commonly leave in titles and summaries.
func CleanText(text string) string {
	text = whitespaceExpr.ReplaceAllString(strings.TrimSpace(text), " ")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
	return replacer.Replace(text)
}

// Excerpt truncates content to at most maxWords words, appending an ellipsis
// when the cut lands mid-thought.
func Excerpt(content string, maxWords int) string {
	content = CleanText(content)
	if content == "" {
		return ""
	}

	words := strings.Fields(content)
	if len(words) <= maxWords {
		return content
	}

	excerpt := strings.Join(words[:maxWords], " ")
	if !strings.HasSuffix(excerpt, ".") && !strings.HasSuffix(excerpt, "!") && !strings.HasSuffix(excerpt, "?") {
		excerpt += "..."
	}
	return excerpt
}

// Section keyword lists, checked in order; first match wins. These are
// deliberately simple: the classifier is a pure function input to the
// fallback engine, not a precision instrument.
var sectionKeywords = []struct {
	section  string
	keywords []string
}{
	{domain.SectionMA, []string{
		"merger", "acquisition", "acquire", "merge", "takeover", "buyout", "deal",
	}},
	{domain.SectionLBO, []string{
		"private equity", "lbo", "leveraged buyout", "pe firm", "kkr", "blackstone",
		"carlyle", "apollo", "bain capital", "tpg", "silver lake", "thoma bravo",
		"going private", "take private",
	}},
	{domain.SectionReg, []string{
		"antitrust", "ftc", "doj", "regulatory", "investigation", "settlement",
		"federal trade commission", "department of justice", "sec filing",
		"merger review", "monopoly",
	}},
	{domain.SectionRumor, []string{
		"crypto", "cryptocurrency", "bitcoin", "ethereum", "altcoin", "blockchain",
		"defi", "nft", "token", "digital asset",
	}},
	{domain.SectionCap, []string{
		"ipo", "public offering", "stock", "equity", "debt", "bond", "securities", "trading",
	}},
}

// ClassifySection assigns a candidate to one of the fixed sections based on
// title and content keywords, defaulting to capital markets.
func ClassifySection(title, content string) string {
	text := strings.ToLower(title + " " + content)

	for _, group := range sectionKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(text, kw) {
				return group.section
			}
		}
	}
	return domain.SectionCap
}

const maxExtractedTags = 5

// ExtractTags turns every section keyword found in the text into a tag,
// capped at maxExtractedTags. Multi-word keywords become hyphenated slugs.
func ExtractTags(title, content string) []string {
	text := strings.ToLower(title + " " + content)

	var tags []string
	seen := map[string]struct{}{}
	for _, group := range sectionKeywords {
		for _, kw := range group.keywords {
			if !strings.Contains(text, kw) {
				continue
			}
			tag := strings.ReplaceAll(kw, " ", "-")
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
			if len(tags) == maxExtractedTags {
				return tags
			}
		}
	}
	return tags
}

// MergeTags appends extra tags to base, dropping duplicates and keeping order.
func MergeTags(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base))
	for _, t := range base {
		seen[t] = struct{}{}
	}

	merged := base
	for _, t := range extra {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		merged = append(merged, t)
	}
	return merged
}
