package loader

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuanying/epubreader/internal/epub"
)

// DefaultImageAlt is given to inlined images that carry no alt attribute.
const DefaultImageAlt = "Image from ebook"

// styleEndRe matches a closing style tag in any letter case.
var styleEndRe = regexp.MustCompile(`(?i)</(style)`)

// Rewrite makes chapter markup self-contained: image sources are replaced with
// their inlined data URIs and linked style sheets are hoisted into a single
// <style> block at the end of <head>. References that are not in resources are
// left untouched. chapterPath is the resolved archive path of the chapter.
func Rewrite(markup, chapterPath string, resources Resources) (string, error) {
	content, err := epub.LoadContent("", chapterPath, markup)
	if err != nil {
		return "", err
	}
	rewriteDocument(content, resources)
	return render(content.Document)
}

func rewriteDocument(c *epub.Content, resources Resources) {
	dir := c.Dir()
	inlineImages(c.Document, dir, resources)
	styles := extractStylesheets(c.Document, dir, resources)
	injectStyles(c.Document, styles)
}

func inlineImages(doc *goquery.Document, dir string, resources Resources) {
	doc.Find("img[src]").Each(func(i int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		key := epub.ResolvePath(dir, src)
		if key == "" {
			return
		}
		uri, ok := resources[key]
		if !ok || !strings.HasPrefix(uri, "data:") {
			return
		}
		s.SetAttr("src", uri)
		if _, hasAlt := s.Attr("alt"); !hasAlt {
			s.SetAttr("alt", DefaultImageAlt)
		}
	})
}

// extractStylesheets removes stylesheet links found in resources and returns
// their text in document order.
func extractStylesheets(doc *goquery.Document, dir string, resources Resources) []string {
	var styles []string
	doc.Find("link[href]").Each(func(i int, s *goquery.Selection) {
		if !isStylesheetLink(s) {
			return
		}
		href, _ := s.Attr("href")
		key := epub.ResolvePath(dir, href)
		if key == "" {
			return
		}
		css, ok := resources[key]
		if !ok || strings.HasPrefix(css, "data:") {
			return
		}
		styles = append(styles, css)
		s.Remove()
	})
	return styles
}

// isStylesheetLink reports whether a link names a style sheet through its rel,
// its type or a css href.
func isStylesheetLink(s *goquery.Selection) bool {
	rel, _ := s.Attr("rel")
	typ, _ := s.Attr("type")
	href, _ := s.Attr("href")
	return strings.Contains(strings.ToLower(rel), "stylesheet") ||
		strings.Contains(strings.ToLower(typ), "css") ||
		strings.Contains(strings.ToLower(href), "css")
}

func injectStyles(doc *goquery.Document, styles []string) {
	if len(styles) == 0 {
		return
	}
	head := doc.Find("head").First()
	if head.Length() == 0 {
		return
	}
	cssText := strings.Join(styles, "\n")
	// A closing style tag inside CSS would end the block early
	cssText = styleEndRe.ReplaceAllString(cssText, `<\/${1}`)
	head.AppendHtml("<style>" + cssText + "</style>")
}

func render(doc *goquery.Document) (string, error) {
	html, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to generate HTML: %w", err)
	}
	return html, nil
}
