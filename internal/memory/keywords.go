package memory

import (
	"strings"
	"unicode"
)

// stopwords are common English tokens excluded from keyword extraction.
// Tokens shorter than three runes are dropped before this set is checked,
// so short particles ("a", "we", "is") never reach it.
var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "all": {}, "also": {}, "and": {},
	"any": {}, "are": {}, "been": {}, "before": {}, "but": {},
	"can": {}, "could": {}, "did": {}, "does": {}, "for": {},
	"from": {}, "had": {}, "has": {}, "have": {}, "how": {},
	"into": {}, "its": {}, "just": {}, "like": {}, "may": {},
	"might": {}, "more": {}, "most": {}, "not": {}, "our": {},
	"out": {}, "over": {}, "should": {}, "some": {}, "such": {},
	"than": {}, "that": {}, "the": {}, "their": {}, "them": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"under": {}, "was": {}, "were": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "who": {}, "why": {}, "will": {},
	"with": {}, "would": {}, "you": {}, "your": {},
}

// ExtractKeywords normalizes free text into matchable tokens: lowercase,
// split on any non-alphanumeric rune, drop tokens shorter than three
// runes and stopwords, and dedupe preserving first occurrence.
func ExtractKeywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	keywords := make([]string, 0, len(fields))
	for _, tok := range fields {
		if len([]rune(tok)) < 3 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}
	return keywords
}

// KeywordOverlap returns the fraction of query keywords present in the
// candidate set, in [0, 1]. An empty query scores zero: with nothing to
// match, nothing is relevant.
func KeywordOverlap(query, candidate []string) float64 {
	if len(query) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(candidate))
	for _, kw := range candidate {
		set[kw] = struct{}{}
	}
	matched := 0
	for _, kw := range query {
		if _, ok := set[kw]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}

// SharesKeyword reports whether the two sets have any token in common.
// Used for pairwise coherence scoring.
func SharesKeyword(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	short, long := a, b
	if len(long) < len(short) {
		short, long = long, short
	}
	set := make(map[string]struct{}, len(short))
	for _, kw := range short {
		set[kw] = struct{}{}
	}
	for _, kw := range long {
		if _, ok := set[kw]; ok {
			return true
		}
	}
	return false
}
