package xmlexport

import (
	"strings"

	"github.com/yuanying/epubreader/internal/loader"
)

const (
	sitemapChangeFreq = "monthly"
	sitemapPriority   = "0.7"
)

// Sitemap serializes one sitemap URL entry per book.
func Sitemap(site Site, books []*loader.Document) string {
	site = site.withDefaults()
	lastmod := site.Now().UTC().Format("2006-01-02")

	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	for _, doc := range books {
		b.WriteString("  <url>\n")
		writeElement(&b, "    ", "loc", site.ReaderURL(doc))
		writeElement(&b, "    ", "lastmod", lastmod)
		writeElement(&b, "    ", "changefreq", sitemapChangeFreq)
		writeElement(&b, "    ", "priority", sitemapPriority)
		b.WriteString("  </url>\n")
	}
	b.WriteString("</urlset>\n")
	return b.String()
}
