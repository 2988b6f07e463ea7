package utils

import (
	"sort"
	"strings"
	"unicode"
)

// NormalizeKey lower-cases and trims s and collapses inner whitespace, producing
// the form used for case-insensitive index keys.
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NormalizedSet returns the set of non-empty normalized keys of values.
func NormalizedSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if k := NormalizeKey(v); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// UniqueStrings returns values with duplicates (by normalized key) removed,
// preserving first-seen order and original spelling.
func UniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		k := NormalizeKey(v)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets have similarity 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Intersection returns the sorted keys present in both sets.
func Intersection(a, b map[string]struct{}) []string {
	out := make([]string, 0)
	for k := range a {
		if _, ok := b[k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"can": {}, "do": {}, "does": {}, "for": {}, "from": {}, "has": {}, "have": {}, "how": {},
	"i": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "should": {}, "so": {}, "that": {}, "the": {}, "their": {}, "then": {}, "there": {},
	"these": {}, "this": {}, "to": {}, "was": {}, "we": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "who": {}, "why": {}, "will": {}, "with": {}, "you": {}, "your": {},
}

// IsStopWord reports whether the lower-cased word carries no topical weight.
func IsStopWord(word string) bool {
	_, ok := stopWords[strings.ToLower(word)]
	return ok
}

// Words splits text into lower-cased alphanumeric words. Hyphens and
// underscores stay inside a word so identifiers survive.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
	})
}

// ContentWords is Words without stop words and single characters.
func ContentWords(text string) []string {
	words := Words(text)
	out := words[:0]
	for _, w := range words {
		w = strings.Trim(w, "-_")
		if len(w) < 2 || IsStopWord(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// NGrams returns every contiguous run of 1..n words, joined by single spaces.
func NGrams(words []string, n int) []string {
	var out []string
	for size := 1; size <= n; size++ {
		for i := 0; i+size <= len(words); i++ {
			out = append(out, strings.Join(words[i:i+size], " "))
		}
	}
	return out
}

// Truncate shortens s to at most max runes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
