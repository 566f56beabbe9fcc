// Package xmlexport serializes loaded books to XML dialects: package metadata,
// an OPDS acquisition feed and a sitemap. Output is built textually so that
// absent metadata fields produce no element at all.
package xmlexport

import "strings"

// ContentType is the media type of every document produced by this package.
const ContentType = "application/xml"

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Escape replaces the five XML special characters with their entities.
func Escape(s string) string {
	return xmlEscaper.Replace(s)
}
