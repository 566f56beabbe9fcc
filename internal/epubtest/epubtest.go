// Package epubtest builds in-memory EPUB archives for tests.
package epubtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

// File is a single archive entry.
type File struct {
	Name string
	Body []byte
}

// Text returns a text entry.
func Text(name, body string) File {
	return File{Name: name, Body: []byte(body)}
}

// Mimetype returns the stored mimetype entry.
func Mimetype() File {
	return Text("mimetype", "application/epub+zip")
}

// Container returns a container descriptor pointing at packagePath.
func Container(packagePath string) File {
	return Text("META-INF/container.xml", fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="%s" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`, packagePath))
}

// Item is a manifest item used by Package.
type Item struct {
	ID, Href, MediaType string
}

// Package returns a package document with the given metadata XML fragment,
// manifest items and spine idrefs.
func Package(name, metadata string, items []Item, spine ...string) File {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`)
	b.WriteString(metadata)
	b.WriteString("\n  </metadata>\n  <manifest>\n")
	for _, item := range items {
		fmt.Fprintf(&b, "    <item id=%q href=%q media-type=%q/>\n", item.ID, item.Href, item.MediaType)
	}
	b.WriteString("  </manifest>\n  <spine>\n")
	for _, idref := range spine {
		fmt.Fprintf(&b, "    <itemref idref=%q/>\n", idref)
	}
	b.WriteString("  </spine>\n</package>")
	return Text(name, b.String())
}

// Chapter returns an XHTML chapter with the given head and body fragments.
func Chapter(name, head, body string) File {
	return Text(name, `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>`+head+`</head>
<body>`+body+`</body>
</html>`)
}

// Build writes files into a ZIP archive. The mimetype entry is stored uncompressed.
func Build(t testing.TB, files ...File) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		method := zip.Deflate
		if f.Name == "mimetype" {
			method = zip.Store
		}
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.Name, Method: method})
		if err != nil {
			t.Fatalf("failed to create %s: %v", f.Name, err)
		}
		if _, err := fw.Write(f.Body); err != nil {
			t.Fatalf("failed to write %s: %v", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close archive: %v", err)
	}
	return buf.Bytes()
}

// PNG returns an encoded opaque PNG of the given size.
func PNG(t testing.TB, width, height int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// SampleBook returns the two-chapter book used across tests: OEBPS/content.opf
// declares ch1 and ch2, one image referenced from ch1 and one style sheet.
func SampleBook(t testing.TB, pic []byte) []byte {
	t.Helper()
	return Build(t,
		Mimetype(),
		Container("OEBPS/content.opf"),
		Package("OEBPS/content.opf", `    <dc:title>Sample Book</dc:title>
    <dc:creator>John Doe</dc:creator>
    <dc:language>en</dc:language>
    <dc:identifier id="bookid">sample-book-1</dc:identifier>`,
			[]Item{
				{"ch1", "ch1.xhtml", "application/xhtml+xml"},
				{"ch2", "ch2.xhtml", "application/xhtml+xml"},
				{"pic", "images/pic.png", "image/png"},
				{"css", "style.css", "text/css"},
			},
			"ch1", "ch2"),
		Chapter("OEBPS/ch1.xhtml",
			`<title>One</title><link rel="stylesheet" type="text/css" href="style.css"/>`,
			`<h1>Beginning</h1><p>Hello.</p><img src="images/pic.png"/>`),
		Chapter("OEBPS/ch2.xhtml", `<title>Two</title>`, `<p>No heading here.</p>`),
		File{Name: "OEBPS/images/pic.png", Body: pic},
		Text("OEBPS/style.css", "p { margin: 0; }"),
	)
}
