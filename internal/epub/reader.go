package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
)

var (
	utf8BOM       = []byte{0xEF, 0xBB, 0xBF}
	xmlEncodingRe = regexp.MustCompile(`^\s*<\?xml[^>]*?encoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)
)

// maxEntrySize caps the decompressed size of a single entry (zip bomb guard).
const maxEntrySize int64 = 256 * 1024 * 1024

// Archive provides read-only access to the entries of a decompressed EPUB archive.
// It is safe for concurrent reads.
type Archive struct {
	files map[string]*zip.File
	lower map[string]*zip.File
	names []string
}

// Open opens an EPUB archive held in memory.
func Open(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	return newArchive(zr), nil
}

// OpenFile reads an EPUB file from disk and opens it.
func OpenFile(name string) (*Archive, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read EPUB: %w", err)
	}
	return Open(data)
}

func newArchive(zr *zip.Reader) *Archive {
	a := &Archive{
		files: make(map[string]*zip.File, len(zr.File)),
		lower: make(map[string]*zip.File, len(zr.File)),
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := normalizePath(f.Name)
		if _, dup := a.files[name]; dup {
			continue
		}
		a.files[name] = f
		a.names = append(a.names, name)
		if _, ok := a.lower[strings.ToLower(name)]; !ok {
			a.lower[strings.ToLower(name)] = f
		}
	}

	return a
}

// Names returns the entry paths in archive order.
func (a *Archive) Names() []string {
	names := make([]string, len(a.names))
	copy(names, a.names)
	return names
}

// Has reports whether an entry exists at the given path.
func (a *Archive) Has(name string) bool {
	return a.lookup(name) != nil
}

// Read returns the decompressed bytes of an entry.
func (a *Archive) Read(name string) ([]byte, error) {
	f := a.lookup(name)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}

	if f.UncompressedSize64 > uint64(maxEntrySize) {
		return nil, fmt.Errorf("%w: %s too large: %d bytes", ErrResourceUnavailable, name, f.UncompressedSize64)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrResourceUnavailable, name, err)
	}
	defer rc.Close()

	// Read one byte past the limit in case the declared size is forged.
	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrResourceUnavailable, name, err)
	}
	if int64(len(data)) > maxEntrySize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrResourceUnavailable, name, maxEntrySize)
	}

	return data, nil
}

// ReadText returns an entry decoded to UTF-8. An empty encoding label means the
// encoding is sniffed from a BOM or an in-document declaration, defaulting to UTF-8.
func (a *Archive) ReadText(name, encoding string) (string, error) {
	data, err := a.Read(name)
	if err != nil {
		return "", err
	}
	return decodeText(data, encoding)
}

func decodeText(data []byte, label string) (string, error) {
	if label == "" {
		if bytes.HasPrefix(data, utf8BOM) {
			return string(data[len(utf8BOM):]), nil
		}
		if m := xmlEncodingRe.FindSubmatch(data); m != nil {
			label = string(m[1])
		} else if utf8.Valid(data) {
			return string(data), nil
		}
	}

	var (
		enc  encoding.Encoding
		name string
	)
	if label != "" {
		enc, name = charset.Lookup(label)
		if enc == nil {
			return "", fmt.Errorf("%w: unknown encoding %q", ErrResourceUnavailable, label)
		}
	} else {
		enc, name, _ = charset.DetermineEncoding(data, "")
	}

	if name == "utf-8" {
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: decode %s: %v", ErrResourceUnavailable, name, err)
	}
	return string(out), nil
}

func (a *Archive) lookup(name string) *zip.File {
	name = normalizePath(name)
	if f, ok := a.files[name]; ok {
		return f
	}
	return a.lower[strings.ToLower(name)]
}

// normalizePath cleans an archive path and removes "./" and "/" prefixes.
func normalizePath(p string) string {
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return ""
	}
	return path.Clean(p)
}
