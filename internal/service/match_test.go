package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase and trim", "  Hello  ", "hello"},
		{"polish diacritics", "dzień dobry", "dzien dobry"},
		{"already folded", "dzien dobry", "dzien dobry"},
		{"french accents", "Café", "cafe"},
		{"german umlaut", "schön", "schon"},
		{"inner whitespace collapsed", "good   morning", "good morning"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAnswer(tt.input))
		})
	}
}

func TestNormalizeAnswer_Idempotent(t *testing.T) {
	once := NormalizeAnswer("DZIEŃ Dobry ")
	twice := NormalizeAnswer(once)
	assert.Equal(t, once, twice)
}

func TestFastMatch(t *testing.T) {
	assert.True(t, FastMatch("dzień dobry", "dzien dobry"))
	assert.True(t, FastMatch("  HELLO ", "hello"))
	assert.False(t, FastMatch("kot", "pies"))
}

func TestLocalMatch_Exact(t *testing.T) {
	assert.Equal(t, MatchYes, LocalMatch("cat", "cat", "en"))
	assert.Equal(t, MatchYes, LocalMatch("Kot", "kot", "pl"))
}

func TestLocalMatch_Articles(t *testing.T) {
	assert.Equal(t, MatchYes, LocalMatch("cat", "the cat", "en"))
	assert.Equal(t, MatchYes, LocalMatch("la casa", "casa", "es"))
	assert.Equal(t, MatchYes, LocalMatch("Hund", "der Hund", "de"))
}

func TestLocalMatch_VerbPrefixes(t *testing.T) {
	assert.Equal(t, MatchYes, LocalMatch("run", "to run", "en"))
	assert.Equal(t, MatchYes, LocalMatch("laufen", "zu laufen", "de"))
}

func TestLocalMatch_Alternatives(t *testing.T) {
	assert.Equal(t, MatchYes, LocalMatch("hi", "hello / hi", "en"))
	assert.Equal(t, MatchYes, LocalMatch("bye", "goodbye, bye", "en"))
	assert.Equal(t, MatchYes, LocalMatch("hello", "hi or hello", "en"))
}

func TestLocalMatch_TypoTolerance(t *testing.T) {
	// One edit allowed at length 5+.
	assert.Equal(t, MatchYes, LocalMatch("helo", "hello", "en"))
	// Two edits allowed at length 8+.
	assert.Equal(t, MatchYes, LocalMatch("beautifull", "beautiful", "en"))
	// Short words get no tolerance.
	assert.NotEqual(t, MatchYes, LocalMatch("car", "cat", "en"))
}

func TestLocalMatch_DefiniteNo(t *testing.T) {
	assert.Equal(t, MatchNo, LocalMatch("elephant", "cat", "en"))
	assert.Equal(t, MatchNo, LocalMatch("", "cat", "en"))
}

func TestLocalMatch_UnsureGoesToAI(t *testing.T) {
	// Close but not within tolerance: the AI decides.
	assert.Equal(t, MatchUnsure, LocalMatch("huose", "house", "en"))
}
