package service

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Match outcomes of the local answer check. Unsure answers fall through to
// the AI validator.
const (
	MatchYes    = "correct"
	MatchNo     = "incorrect"
	MatchUnsure = "unsure"
)

// diacriticStripper decomposes to NFD, drops combining marks and recomposes,
// so "dzień" folds to "dzien".
var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeAnswer lowercases, trims and folds diacritics. Idempotent:
// normalizing a normalized string is a no-op.
func NormalizeAnswer(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	folded, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		return s
	}
	// Collapse runs of whitespace left by trimming.
	return strings.Join(strings.Fields(folded), " ")
}

// FastMatch is the cheap equality check run before anything else.
func FastMatch(given, expected string) bool {
	return NormalizeAnswer(given) == NormalizeAnswer(expected)
}

// articlesByLanguage lists leading articles safe to strip per language.
var articlesByLanguage = map[string][]string{
	"en": {"the", "a", "an"},
	"es": {"el", "la", "los", "las", "un", "una", "unos", "unas"},
	"fr": {"le", "la", "les", "un", "une", "des"},
	"de": {"der", "die", "das", "ein", "eine", "einen", "einem", "einer"},
	"it": {"il", "lo", "la", "i", "gli", "le", "un", "uno", "una"},
	"pt": {"o", "a", "os", "as", "um", "uma"},
	"nl": {"de", "het", "een"},
}

// verbPrefixesByLanguage lists infinitive markers safe to strip.
var verbPrefixesByLanguage = map[string][]string{
	"en": {"to "},
	"fr": {"se ", "s'"},
	"de": {"zu "},
	"nl": {"te "},
}

func stripArticle(s, lang string) string {
	for _, art := range articlesByLanguage[lang] {
		if rest, ok := strings.CutPrefix(s, art+" "); ok {
			return rest
		}
	}
	return s
}

func stripVerbPrefix(s, lang string) string {
	for _, pfx := range verbPrefixesByLanguage[lang] {
		if rest, ok := strings.CutPrefix(s, pfx); ok {
			return rest
		}
	}
	return s
}

// variants expands a normalized answer into the comparable forms: as-is,
// article-stripped, verb-prefix-stripped, and each "/", "," or " or "
// alternative expanded the same way.
func variants(s, lang string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	for _, alt := range splitAlternatives(s) {
		add(alt)
		add(stripArticle(alt, lang))
		add(stripVerbPrefix(alt, lang))
		add(stripVerbPrefix(stripArticle(alt, lang), lang))
	}
	return out
}

func splitAlternatives(s string) []string {
	s = strings.ReplaceAll(s, " or ", "/")
	s = strings.ReplaceAll(s, ",", "/")
	return strings.Split(s, "/")
}

// levenshtein computes edit distance over runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// typoTolerance scales allowed edit distance with answer length. Short words
// get no tolerance so "cat" never matches "car".
func typoTolerance(length int) int {
	switch {
	case length >= 8:
		return 2
	case length >= 5:
		return 1
	default:
		return 0
	}
}

// LocalMatch compares a student's answer against the expected translation
// without calling the AI. languageCode is the language the expected answer is
// written in, used for article and prefix stripping.
func LocalMatch(given, expected, languageCode string) string {
	g := NormalizeAnswer(given)
	e := NormalizeAnswer(expected)
	if g == "" {
		return MatchNo
	}
	if g == e {
		return MatchYes
	}

	givenForms := variants(g, languageCode)
	expectedForms := variants(e, languageCode)

	best := -1
	for _, gv := range givenForms {
		for _, ev := range expectedForms {
			if gv == ev {
				return MatchYes
			}
			d := levenshtein(gv, ev)
			if best == -1 || d < best {
				best = d
			}
			if d <= typoTolerance(len([]rune(ev))) {
				return MatchYes
			}
		}
	}

	// Far from every form: a definite miss. Anything closer stays unsure and
	// goes to the AI, which understands synonyms the edit distance cannot.
	shortest := len([]rune(e))
	if best > shortest/2 && best > 3 {
		return MatchNo
	}
	return MatchUnsure
}
