// File path: internal/kb/intent.go
package kb

import (
	"regexp"
	"strings"
)

// Intent selects the search strategy used for a question.
type Intent string

const (
	IntentPhraseLookup  Intent = "phrase_lookup"
	IntentSectionLookup Intent = "section_lookup"
	IntentKeyword       Intent = "keyword"
	IntentSemantic      Intent = "semantic"
)

// Classification carries the chosen intent along with the extracted phrase
// or statute section when the matching rule produced one.
type Classification struct {
	Intent  Intent `json:"intent"`
	Phrase  string `json:"phrase,omitempty"`
	Section string `json:"section,omitempty"`
}

var (
	// Paired quote styles in the order users actually type them:
	// straight double, curly double, straight single.
	quotePatterns = []*regexp.Regexp{
		regexp.MustCompile(`"([^"]+)"`),
		regexp.MustCompile(`\x{201C}([^\x{201D}]+)\x{201D}`),
		regexp.MustCompile(`'([^']+)'`),
	}

	// Oregon landlord-tenant statutes are cited as chapter.section, e.g.
	// 90.300 or ORS 90.427.
	sectionPattern = regexp.MustCompile(`(?i)(?:ORS\s*)?\b(\d{2,3}\.\d{3})\b`)

	lookupPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bwhere\s+(?:can|do|does|is|are)\b`),
		regexp.MustCompile(`(?i)\bwhich\s+(?:statute|section|law|rule)\b`),
		regexp.MustCompile(`(?i)\bfind\b`),
		regexp.MustCompile(`(?i)\blook\s*up\b`),
		regexp.MustCompile(`(?i)\bsearch\s+for\b`),
	}
)

type classifierRule func(query string) (Classification, bool)

// classifierRules is evaluated in order, first match wins. The ordering is a
// behavioural contract: a quoted phrase dominates a section citation in the
// same sentence because exact wording intent is the stronger signal.
var classifierRules = []classifierRule{
	matchQuotedPhrase,
	matchSectionNumber,
	matchLookupPhrasing,
}

// Classify chooses a search strategy for a raw question. It is pure and
// deterministic; malformed input falls through to semantic search rather
// than erroring.
func Classify(query string) Classification {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Classification{Intent: IntentSemantic}
	}
	for _, rule := range classifierRules {
		if c, ok := rule(trimmed); ok {
			return c
		}
	}
	return Classification{Intent: IntentSemantic}
}

func matchQuotedPhrase(query string) (Classification, bool) {
	for _, pattern := range quotePatterns {
		if m := pattern.FindStringSubmatch(query); m != nil {
			phrase := strings.TrimSpace(m[1])
			if phrase == "" {
				continue
			}
			return Classification{Intent: IntentPhraseLookup, Phrase: phrase}, true
		}
	}
	return Classification{}, false
}

func matchSectionNumber(query string) (Classification, bool) {
	if m := sectionPattern.FindStringSubmatch(query); m != nil {
		return Classification{Intent: IntentSectionLookup, Section: m[1]}, true
	}
	return Classification{}, false
}

func matchLookupPhrasing(query string) (Classification, bool) {
	for _, pattern := range lookupPatterns {
		if pattern.MatchString(query) {
			return Classification{Intent: IntentKeyword}, true
		}
	}
	return Classification{}, false
}
