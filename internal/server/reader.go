package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuanying/epubreader/internal/loader"
)

var errInvalidDataURI = errors.New("invalid data URI")

// readerState builds the reader state of a request for a book of n chapters.
// Absent parameters keep their defaults; out of range values are clamped.
func readerState(q url.Values, n int) (loader.ReaderState, error) {
	s := loader.NewReaderState()
	if v := q.Get("chapter"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("invalid chapter %q", v)
		}
		s.ChapterIndex = i
	}
	if v := q.Get("fontSize"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("invalid font size %q", v)
		}
		s.FontSize = size
	}
	if v := q.Get("fontFamily"); v != "" {
		s.FontFamily = v
	}
	return s.Clamp(n), nil
}

// readerLink is the reader URL of book key at state s, relative to the server root.
func readerLink(key string, s loader.ReaderState) string {
	q := url.Values{}
	q.Set("book", key)
	q.Set("chapter", strconv.Itoa(s.ChapterIndex))
	q.Set("fontSize", strconv.Itoa(s.FontSize))
	q.Set("fontFamily", s.FontFamily)
	return "/reader?" + q.Encode()
}

// renderReaderPage returns the chapter selected by s as a standalone page with
// the reader typography, a title, a description and chapter navigation.
func renderReaderPage(key string, doc *loader.Document, s loader.ReaderState) (string, error) {
	ch, ok := doc.Chapter(s.ChapterIndex)
	if !ok {
		return "", fmt.Errorf("chapter %d not found", s.ChapterIndex)
	}

	page, err := goquery.NewDocumentFromReader(strings.NewReader(ch.Content))
	if err != nil {
		return "", fmt.Errorf("failed to parse chapter: %w", err)
	}

	root := page.Find("html").First()
	if _, ok := root.Attr("lang"); !ok {
		lang := doc.Metadata.Language
		if lang == "" {
			lang = "en"
		}
		root.SetAttr("lang", lang)
	}

	head := page.Find("head").First()
	if strings.TrimSpace(head.Find("title").Text()) == "" {
		head.Find("title").Remove()
		head.AppendHtml("<title></title>")
		head.Find("title").SetText(doc.Title + " - " + ch.Title)
	}
	if head.Find(`meta[name="description"]`).Length() == 0 {
		head.AppendHtml(`<meta name="description"/>`)
		head.Find(`meta[name="description"]`).SetAttr("content", "Reading "+ch.Title+" from "+doc.Title)
	}
	head.AppendHtml("<style>" + s.Stylesheet() + "</style>")

	var nav strings.Builder
	nav.WriteString(`<nav class="reader-nav">`)
	if s.ChapterIndex > 0 {
		fmt.Fprintf(&nav, `<a rel="prev" href="%s">Previous</a>`, html.EscapeString(readerLink(key, s.Prev(len(doc.Chapters)))))
	}
	if s.ChapterIndex < len(doc.Chapters)-1 {
		fmt.Fprintf(&nav, `<a rel="next" href="%s">Next</a>`, html.EscapeString(readerLink(key, s.Next(len(doc.Chapters)))))
	}
	nav.WriteString("</nav>")
	page.Find("body").First().AppendHtml(nav.String())

	out, err := page.Html()
	if err != nil {
		return "", fmt.Errorf("failed to generate HTML: %w", err)
	}
	return out, nil
}

// decodeDataURI splits a base64 data URI into its media type and payload.
func decodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errInvalidDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errInvalidDataURI
	}
	mediaType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, errInvalidDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", errInvalidDataURI, err)
	}
	return mediaType, data, nil
}
