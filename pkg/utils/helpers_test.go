package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "access token", NormalizeKey("  Access   TOKEN "))
	assert.Equal(t, "", NormalizeKey("   "))
}

func TestJaccard(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		a, b     []string
		expected float64
	}{
		{name: "identical", a: []string{"OAuth", "JWT"}, b: []string{"oauth", "jwt"}, expected: 1},
		{name: "half overlap", a: []string{"a", "b"}, b: []string{"b", "c", "a", "d"}, expected: 0.5},
		{name: "disjoint", a: []string{"a"}, b: []string{"b"}, expected: 0},
		{name: "both empty", a: nil, b: nil, expected: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Jaccard(NormalizedSet(tt.a), NormalizedSet(tt.b)), 1e-9)
		})
	}
}

func TestIntersectionSorted(t *testing.T) {
	t.Parallel()
	got := Intersection(NormalizedSet([]string{"z", "b", "a"}), NormalizedSet([]string{"a", "z"}))
	assert.Equal(t, []string{"a", "z"}, got)
}

func TestUniqueStrings(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"OAuth", "JWT"}, UniqueStrings([]string{"OAuth", "oauth ", "JWT", ""}))
}

func TestContentWords(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"token", "expiry", "24", "hours"}, ContentWords("The token expiry is 24 hours."))
	assert.Equal(t, []string{"proj-123", "ticket"}, ContentWords("PROJ-123 ticket"))
}

func TestNGrams(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"a", "b", "c", "a b", "b c"}, NGrams([]string{"a", "b", "c"}, 2))
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hel...", Truncate("hello world", 6))
}
