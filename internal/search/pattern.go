// Package search turns free text into the wildcard patterns the content
// store's match operator understands, and serves pin recommendations from
// a per-pin cache.
package search

import (
	"regexp"
	"strings"
)

// stopWords are dropped from pattern building. Matching on "the" or "and"
// would relate every pin to every other pin.
var stopWords = map[string]struct{}{
	"the": {}, "is": {}, "and": {}, "or": {}, "but": {}, "a": {}, "an": {},
	"in": {}, "on": {}, "at": {}, "by": {}, "for": {}, "with": {},
	"about": {}, "against": {}, "between": {}, "into": {}, "through": {},
	"during": {}, "before": {}, "after": {}, "above": {}, "below": {},
	"to": {}, "from": {}, "up": {}, "down": {}, "of": {}, "off": {},
	"over": {}, "under": {}, "again": {}, "further": {}, "then": {},
	"once": {}, "here": {}, "there": {}, "when": {}, "where": {}, "why": {},
	"how": {}, "all": {}, "any": {}, "both": {}, "each": {}, "few": {},
	"more": {}, "most": {}, "other": {}, "some": {}, "such": {}, "no": {},
	"nor": {}, "not": {}, "only": {}, "own": {}, "same": {}, "so": {},
	"than": {}, "too": {}, "very": {}, "s": {}, "t": {}, "can": {},
	"will": {}, "just": {}, "don": {}, "should": {}, "now": {}, "it": {},
	"its": {}, "kinda": {}, "sorta": {}, "this": {}, "that": {}, "i": {},
	"my": {}, "your": {}, "their": {}, "his": {}, "her": {},
}

// nonWord strips everything that is not a word character or whitespace,
// so "coffee!!" and "coffee" produce the same pattern.
var nonWord = regexp.MustCompile(`[^\w\s]`)

// BuildPattern tokenizes free text into lowercase prefix patterns:
// punctuation removed, stop words dropped, "*" appended to each keeper.
// Returns nil when nothing survives — callers treat nil as "this field
// contributes no search clause".
func BuildPattern(text string) []string {
	if text == "" {
		return nil
	}

	cleaned := nonWord.ReplaceAllString(strings.ToLower(text), "")

	var patterns []string
	for _, word := range strings.Fields(cleaned) {
		if _, stop := stopWords[word]; stop {
			continue
		}
		patterns = append(patterns, word+"*")
	}
	return patterns
}

// CategoryPatterns turns category names into prefix patterns. Unlike
// BuildPattern there is no stop-word filtering: a category named "Other"
// is a real category, not noise.
func CategoryPatterns(names []string) []string {
	var patterns []string
	for _, name := range names {
		if name == "" {
			continue
		}
		patterns = append(patterns, strings.ToLower(name)+"*")
	}
	return patterns
}
