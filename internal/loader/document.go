package loader

import (
	"encoding/json"

	"github.com/yuanying/epubreader/internal/epub"
)

// Resources maps resolved archive paths to their inlined form: a data URI for
// images, the raw text for style sheets.
type Resources map[string]string

// Chapter is a single rewritten, self-contained content document.
type Chapter struct {
	ID      string // spine idref
	Title   string
	Href    string // resolved archive path
	Content string // rewritten markup
}

// Document is the assembled, immutable model of a loaded book.
type Document struct {
	Title     string
	Chapters  []Chapter
	Resources Resources
	Metadata  epub.Metadata
	CoverPath string // resource key of the cover image, "" when none was found

	// Unlisted holds archive entries the manifest does not declare, in archive order.
	Unlisted []string
}

// Chapter returns the chapter at index, or false when out of range.
func (d *Document) Chapter(index int) (Chapter, bool) {
	if index < 0 || index >= len(d.Chapters) {
		return Chapter{}, false
	}
	return d.Chapters[index], true
}

// Cover returns the inlined cover image data URI.
func (d *Document) Cover() (string, bool) {
	if d.CoverPath == "" {
		return "", false
	}
	uri, ok := d.Resources[d.CoverPath]
	return uri, ok
}

type structuredData struct {
	Context      string              `json:"@context"`
	Type         string              `json:"@type"`
	Name         string              `json:"name"`
	ReadingOrder []structuredChapter `json:"readingOrder"`
}

type structuredChapter struct {
	Type     string `json:"@type"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// StructuredData returns a schema.org Book summary (JSON-LD) listing the
// chapters with their 1-based positions.
func (d *Document) StructuredData() ([]byte, error) {
	sd := structuredData{
		Context:      "https://schema.org",
		Type:         "Book",
		Name:         d.Title,
		ReadingOrder: make([]structuredChapter, 0, len(d.Chapters)),
	}
	for i, ch := range d.Chapters {
		sd.ReadingOrder = append(sd.ReadingOrder, structuredChapter{
			Type:     "Chapter",
			Name:     ch.Title,
			Position: i + 1,
		})
	}
	return json.Marshal(sd)
}
