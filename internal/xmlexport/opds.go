package xmlexport

import (
	"fmt"
	"strings"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/yuanying/epubreader/internal/loader"
)

const (
	acquisitionFeedType = "application/atom+xml;profile=opds-catalog;kind=acquisition"
	acquisitionRel      = "http://opds-spec.org/acquisition"
	epubMediaType       = "application/epub+zip"
)

// Catalog serializes books as an OPDS acquisition feed. Every call generates
// fresh version 4 UUIDs for the feed and each entry.
func Catalog(site Site, books []*loader.Document) (string, error) {
	site = site.withDefaults()
	now := site.Now().UTC().Format(time.RFC3339)

	feedID, err := newURN()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<feed xmlns="http://www.w3.org/2005/Atom"` + "\n")
	b.WriteString(`      xmlns:dc="http://purl.org/dc/terms/"` + "\n")
	b.WriteString(`      xmlns:opds="http://opds-spec.org/2010/catalog">` + "\n")
	writeElement(&b, "  ", "id", feedID)
	writeElement(&b, "  ", "title", site.Name)
	writeElement(&b, "  ", "updated", now)
	b.WriteString("  <author>\n")
	writeElement(&b, "    ", "name", site.Author)
	writeElement(&b, "    ", "uri", site.BaseURL)
	b.WriteString("  </author>\n")
	catalogURL := Escape(site.BaseURL + "/catalog.xml")
	fmt.Fprintf(&b, "  <link rel=\"self\" href=\"%s\" type=\"%s\"/>\n", catalogURL, Escape(acquisitionFeedType))
	fmt.Fprintf(&b, "  <link rel=\"start\" href=\"%s\" type=\"%s\"/>\n", catalogURL, Escape(acquisitionFeedType))

	for _, doc := range books {
		entryID, err := newURN()
		if err != nil {
			return "", err
		}
		md := doc.Metadata

		b.WriteString("  <entry>\n")
		writeElement(&b, "    ", "title", doc.Title)
		writeElement(&b, "    ", "id", entryID)
		writeElement(&b, "    ", "updated", now)
		if md.Creator != "" {
			fmt.Fprintf(&b, "    <author><name>%s</name></author>\n", Escape(md.Creator))
		}
		writeOptional(&b, "    ", "summary", md.Description)
		writeOptional(&b, "    ", "dc:language", md.Language)
		writeOptional(&b, "    ", "dc:publisher", md.Publisher)
		for _, subject := range md.Subjects {
			if subject == "" {
				continue
			}
			fmt.Fprintf(&b, "    <category term=\"%s\"/>\n", Escape(subject))
		}
		fmt.Fprintf(&b, "    <link rel=\"%s\" href=\"%s\" type=\"%s\"/>\n",
			acquisitionRel, Escape(site.ReaderURL(doc)), epubMediaType)
		b.WriteString("  </entry>\n")
	}

	b.WriteString("</feed>\n")
	return b.String(), nil
}

func newURN() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("failed to generate identifier: %w", err)
	}
	return "urn:uuid:" + id.String(), nil
}
