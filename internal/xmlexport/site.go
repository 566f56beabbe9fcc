package xmlexport

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jtacoma/uritemplates"

	"github.com/yuanying/epubreader/internal/loader"
)

const (
	DefaultSiteName   = "EPUB Reader Library"
	DefaultSiteAuthor = "EPUB Reader"
	DefaultBaseURL    = "http://localhost:8080"

	// DefaultReaderTemplate expands to <base>/reader?book=<key>.
	DefaultReaderTemplate = "{+base}/reader{?book}"
)

// Site describes where exported books can be read.
type Site struct {
	BaseURL string
	Name    string

	// Author names the publisher of the catalog feed.
	Author string

	// ReaderTemplate is an RFC 6570 URI template with the variables base and book.
	ReaderTemplate string

	Now func() time.Time
}

func (s Site) withDefaults() Site {
	if s.BaseURL == "" {
		s.BaseURL = DefaultBaseURL
	}
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	if s.Name == "" {
		s.Name = DefaultSiteName
	}
	if s.Author == "" {
		s.Author = DefaultSiteAuthor
	}
	if s.ReaderTemplate == "" {
		s.ReaderTemplate = DefaultReaderTemplate
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

// BookKey identifies a book in reader URLs: its identifier, else its title.
func BookKey(doc *loader.Document) string {
	if doc.Metadata.Identifier != "" {
		return doc.Metadata.Identifier
	}
	return doc.Title
}

// ValidateReaderTemplate reports whether tmpl is a usable reader URL template.
func ValidateReaderTemplate(tmpl string) error {
	if _, err := uritemplates.Parse(tmpl); err != nil {
		return fmt.Errorf("invalid reader template %q: %w", tmpl, err)
	}
	return nil
}

// ReaderURL is the deterministic reader access URL of a book. A template that
// fails to expand falls back to the default layout.
func (s Site) ReaderURL(doc *loader.Document) string {
	s = s.withDefaults()
	key := BookKey(doc)

	tmpl, err := uritemplates.Parse(s.ReaderTemplate)
	if err == nil {
		expanded, err := tmpl.Expand(map[string]interface{}{
			"base": s.BaseURL,
			"book": key,
		})
		if err == nil {
			return expanded
		}
	}
	return s.BaseURL + "/reader?book=" + escapeComponent(key)
}

// escapeComponent percent-encodes a query component, spaces as %20.
func escapeComponent(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
