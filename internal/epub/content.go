package epub

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// xmlDeclRe matches a leading XML declaration, which the HTML parser would
// otherwise turn into a bogus comment.
var xmlDeclRe = regexp.MustCompile(`^\s*<\?xml[^>]*\?>\s*`)

// htmlRootRe detects an html root element.
var htmlRootRe = regexp.MustCompile(`(?i)<html[\s>]`)

// selfClosingRe matches an XHTML self-closing tag such as <title/> or
// <script src="a.js"/>.
var selfClosingRe = regexp.MustCompile(`<([a-zA-Z][\w:.-]*)((?:\s+[^<>"']*(?:"[^"]*"|'[^']*')?)*?)\s*/>`)

// voidElements never take an end tag in HTML.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Content represents a parsed XHTML content document
type Content struct {
	ID       string            // Manifest ID
	Path     string            // Resolved archive path
	Document *goquery.Document // Parsed HTML document
}

// LoadContent parses an XHTML content document.
// Markup without an html root is wrapped in a minimal document shell first.
func LoadContent(id, path, markup string) (*Content, error) {
	markup = xmlDeclRe.ReplaceAllString(markup, "")
	markup = ExpandSelfClosing(markup)
	if !HasDocumentWrapper(markup) {
		markup = WrapDocument(markup)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XHTML: %w", err)
	}

	return &Content{
		ID:       id,
		Path:     path,
		Document: doc,
	}, nil
}

// Dir returns the directory used to resolve references made by the document.
func (c *Content) Dir() string {
	return Dir(c.Path)
}

// ExpandSelfClosing rewrites self-closing non-void elements into an explicit
// start/end pair. The HTML parser ignores the trailing slash, so <title/> or
// <script src="a.js"/> would otherwise swallow the rest of the document.
func ExpandSelfClosing(markup string) string {
	return selfClosingRe.ReplaceAllStringFunc(markup, func(tag string) string {
		m := selfClosingRe.FindStringSubmatch(tag)
		if voidElements[strings.ToLower(m[1])] {
			return tag
		}
		return "<" + m[1] + m[2] + "></" + m[1] + ">"
	})
}

// HasDocumentWrapper reports whether markup contains an html root element.
func HasDocumentWrapper(markup string) bool {
	return htmlRootRe.MatchString(markup)
}

// WrapDocument wraps a markup fragment in a doctype/head/body shell.
func WrapDocument(fragment string) string {
	return "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"/></head><body>" + fragment + "</body></html>"
}
