package loader

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// titleExtractor returns a chapter title candidate, or "" when it finds none.
type titleExtractor func(doc *goquery.Document) string

// titleExtractors are tried in order; the first non-empty result wins.
var titleExtractors = []titleExtractor{
	firstText("h1"),
	firstText("h2"),
	firstText("title"),
}

// ExtractTitle returns the display title found in a chapter document, or "" when
// no extractor matches.
func ExtractTitle(doc *goquery.Document) string {
	for _, extract := range titleExtractors {
		if title := extract(doc); title != "" {
			return title
		}
	}
	return ""
}

// SyntheticTitle is the fallback title of the n-th (1-based) chapter.
func SyntheticTitle(n int) string {
	return fmt.Sprintf("Chapter %d", n)
}

// firstText returns an extractor yielding the first non-empty text of selector.
func firstText(selector string) titleExtractor {
	return func(doc *goquery.Document) string {
		var text string
		doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			text = strings.TrimSpace(s.Text())
			return text == ""
		})
		return text
	}
}
