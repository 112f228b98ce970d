package llm

import (
	"regexp"
	"strings"
)

// tailSize is how many characters the sanitizer holds back between chunks.
// Formatting artifacts can straddle a chunk boundary ("**bol" + "d**"), so
// the tail stays buffered until the next chunk or the final flush.
const tailSize = 50

// artifactPatterns strips model formatting the chat UI renders as noise:
// code fences, bold/italic markers and heading hashes at line starts.
var artifactPatterns = []*regexp.Regexp{
	regexp.MustCompile("```[a-zA-Z]*\n?"),
	regexp.MustCompile(`\*\*([^*]*)\*\*`),
	regexp.MustCompile(`(?m)^#{1,4}\s+`),
}

func stripArtifacts(s string) string {
	for i, re := range artifactPatterns {
		if i == 1 {
			s = re.ReplaceAllString(s, "$1")
			continue
		}
		s = re.ReplaceAllString(s, "")
	}
	return s
}

// StreamSanitizer removes formatting artifacts from a token stream while
// preserving arrival order. Feed returns the text safe to forward now;
// Flush returns whatever the tail still holds once the stream ends.
type StreamSanitizer struct {
	buf strings.Builder
}

func NewStreamSanitizer() *StreamSanitizer {
	return &StreamSanitizer{}
}

// Feed appends a chunk and returns the sanitized text beyond the tail.
func (s *StreamSanitizer) Feed(chunk string) string {
	s.buf.WriteString(chunk)

	// Split on runes so a multibyte character never lands half in the tail.
	cleaned := []rune(stripArtifacts(s.buf.String()))
	if len(cleaned) <= tailSize {
		s.buf.Reset()
		s.buf.WriteString(string(cleaned))
		return ""
	}

	emit := string(cleaned[:len(cleaned)-tailSize])
	s.buf.Reset()
	s.buf.WriteString(string(cleaned[len(cleaned)-tailSize:]))
	return emit
}

// Flush sanitizes and returns the buffered tail.
func (s *StreamSanitizer) Flush() string {
	out := stripArtifacts(s.buf.String())
	s.buf.Reset()
	return out
}
