package tool

import (
	"errors"
	"slices"
	"strings"
)

// ErrEmptyKeywordSet is returned when a keyword set has no usable entries.
var ErrEmptyKeywordSet = errors.New("keyword set is empty")

// KeywordSet is an ordered, deduplicated list of lowercase substrings.
type KeywordSet []string

// Default vocabularies. Matching is plain substring containment on the lowercased
// "name description" text, so short stems also catch inflections (list -> listing).
var (
	defaultSearch = KeywordSet{
		"search", "find", "list", "get", "read", "query", "fetch", "lookup",
		"retrieve", "browse", "view", "show", "describe", "inspect",
	}
	defaultAction = KeywordSet{
		"create", "update", "delete", "remove", "send", "write", "post", "modify",
		"edit", "insert", "execute", "deploy", "merge", "assign", "publish",
		"upload", "cancel",
	}
)

// SearchKeywords returns a copy of the default search vocabulary.
func SearchKeywords() KeywordSet { return slices.Clone(defaultSearch) }

// ActionKeywords returns a copy of the default action vocabulary.
func ActionKeywords() KeywordSet { return slices.Clone(defaultAction) }

// NewKeywordSet trims, lowercases and dedupes words, keeping first-seen order.
func NewKeywordSet(words ...string) (KeywordSet, error) {
	seen := make(map[string]struct{}, len(words))
	out := make(KeywordSet, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	if len(out) == 0 {
		return nil, ErrEmptyKeywordSet
	}
	return out, nil
}

// MatchIn reports whether any keyword occurs in text. text must already be lowercase.
func (k KeywordSet) MatchIn(text string) bool {
	for _, kw := range k {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Matches returns every keyword found in text, in set order.
func (k KeywordSet) Matches(text string) []string {
	var hits []string
	for _, kw := range k {
		if strings.Contains(text, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}
