package blog

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/lovelanguages/server/internal/model"
)

const sitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// Sitemap is the XML urlset document search engines crawl.
type Sitemap struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []SitemapURL `xml:"url"`
}

// SitemapURL is one entry of the urlset.
type SitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// BuildSitemap assembles the urlset: one entry per article plus one per
// language-pair hub. Hubs take the newest lastmod of their articles.
func BuildSitemap(base string, articles []model.Article) *Sitemap {
	sm := &Sitemap{Xmlns: sitemapNamespace}

	type hub struct {
		native, target string
		lastMod        time.Time
	}
	hubs := make(map[string]*hub)
	var hubOrder []string

	for _, a := range articles {
		sm.URLs = append(sm.URLs, SitemapURL{
			Loc:     CanonicalURL(base, ArticleURL(a.NativeLang, a.TargetLang, a.Slug)),
			LastMod: a.UpdatedAt.UTC().Format("2006-01-02"),
		})

		key := a.NativeLang + "/" + a.TargetLang
		h, ok := hubs[key]
		if !ok {
			h = &hub{native: a.NativeLang, target: a.TargetLang}
			hubs[key] = h
			hubOrder = append(hubOrder, key)
		}
		if a.UpdatedAt.After(h.lastMod) {
			h.lastMod = a.UpdatedAt
		}
	}

	for _, key := range hubOrder {
		h := hubs[key]
		sm.URLs = append(sm.URLs, SitemapURL{
			Loc:     CanonicalURL(base, HubURL(h.native, h.target)),
			LastMod: h.lastMod.UTC().Format("2006-01-02"),
		})
	}

	return sm
}

// Encode writes the sitemap as indented XML with the standard declaration.
func (s *Sitemap) Encode(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("blog: encoding sitemap: %w", err)
	}
	return enc.Close()
}
