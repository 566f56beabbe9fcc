package xmlexport

import (
	"fmt"
	"strings"

	"github.com/yuanying/epubreader/internal/loader"
)

// ChapterMediaType is declared for every chapter in exported package metadata.
const ChapterMediaType = "application/xhtml+xml"

// PackageMetadata serializes a book's metadata, chapter manifest and spine.
func PackageMetadata(doc *loader.Document) string {
	md := doc.Metadata

	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<epub-metadata xmlns="http://www.idpf.org/2007/opf">` + "\n")
	b.WriteString("  <metadata>\n")
	writeElement(&b, "    ", "title", doc.Title)
	writeOptional(&b, "    ", "creator", md.Creator)
	writeOptional(&b, "    ", "publisher", md.Publisher)
	writeOptional(&b, "    ", "language", md.Language)
	writeOptional(&b, "    ", "identifier", md.Identifier)
	writeOptional(&b, "    ", "date", md.Date)
	writeOptional(&b, "    ", "description", md.Description)
	writeOptional(&b, "    ", "rights", md.Rights)
	for _, subject := range md.Subjects {
		writeOptional(&b, "    ", "subject", subject)
	}
	b.WriteString("  </metadata>\n")

	b.WriteString("  <manifest>\n")
	for _, ch := range doc.Chapters {
		fmt.Fprintf(&b, "    <item id=\"%s\" href=\"%s\" media-type=\"%s\"/>\n",
			Escape(ch.ID), Escape(ch.Href), ChapterMediaType)
	}
	b.WriteString("  </manifest>\n")

	b.WriteString("  <spine>\n")
	for _, ch := range doc.Chapters {
		fmt.Fprintf(&b, "    <itemref idref=\"%s\"/>\n", Escape(ch.ID))
	}
	b.WriteString("  </spine>\n")
	b.WriteString("</epub-metadata>\n")

	return b.String()
}

func writeElement(b *strings.Builder, indent, name, text string) {
	fmt.Fprintf(b, "%s<%s>%s</%s>\n", indent, name, Escape(text), name)
}

// writeOptional omits the element entirely when text is empty.
func writeOptional(b *strings.Builder, indent, name, text string) {
	if text == "" {
		return
	}
	writeElement(b, indent, name, text)
}
