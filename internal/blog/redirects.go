package blog

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/lovelanguages/server/internal/model"
)

// Redirect maps a retired path to its canonical replacement. The JSON file
// is consumed by the edge middleware in front of the site.
type Redirect struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Status int    `json:"status"`
}

// BuildLegacyRedirects maps the old flat /blog/{slug}/ layout onto the
// per-language-pair article URLs.
func BuildLegacyRedirects(articles []model.Article) []Redirect {
	out := make([]Redirect, 0, len(articles))
	for _, a := range articles {
		out = append(out, Redirect{
			From:   NormalizePathname("/blog/" + a.Slug),
			To:     ArticleURL(a.NativeLang, a.TargetLang, a.Slug),
			Status: 301,
		})
	}
	return out
}

// WriteRedirects emits the redirect table as indented JSON.
func WriteRedirects(w io.Writer, redirects []Redirect) error {
	if redirects == nil {
		redirects = []Redirect{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(redirects); err != nil {
		return fmt.Errorf("blog: encoding redirects: %w", err)
	}
	return nil
}
