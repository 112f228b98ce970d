// Package blog holds the offline content pipeline: canonical URL helpers,
// sitemap generation, duplicate detection and legacy redirects. Everything
// here runs as linear batch jobs from cmd/blogtool; nothing is served at
// request time.
package blog

import (
	"fmt"
	"strings"
)

// DefaultBaseURL is the production site origin.
const DefaultBaseURL = "https://lovelanguages.app"

// NormalizePathname returns the path with a leading slash and exactly one
// trailing slash. Idempotent.
func NormalizePathname(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/") + "/"
}

// CanonicalURL joins the site origin with a normalized pathname.
func CanonicalURL(base, pathname string) string {
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimSuffix(base, "/") + NormalizePathname(pathname)
}

// ArticleURL is the canonical pathname of one article.
func ArticleURL(nativeLang, targetLang, slug string) string {
	return NormalizePathname(fmt.Sprintf("/learn/%s/%s/%s", nativeLang, targetLang, slug))
}

// HubURL is the canonical pathname of a language-pair hub page.
func HubURL(nativeLang, targetLang string) string {
	return NormalizePathname(fmt.Sprintf("/learn/%s/%s", nativeLang, targetLang))
}
