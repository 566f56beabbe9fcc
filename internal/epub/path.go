package epub

import (
	"net/url"
	"path"
	"strings"
)

// ResolvePath resolves href against a directory inside the archive.
// A leading slash makes href archive-root-relative. Fragments and queries are
// dropped and percent-escapes decoded. It returns "" when href is empty, absolute
// (has a scheme) or escapes the archive root.
func ResolvePath(baseDir, href string) string {
	href = strings.TrimSpace(href)
	if i := strings.IndexAny(href, "#?"); i >= 0 {
		href = href[:i]
	}
	if href == "" || isExternal(href) {
		return ""
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}

	var joined string
	switch {
	case strings.HasPrefix(href, "/"):
		joined = path.Clean(strings.TrimLeft(href, "/"))
	case baseDir == "" || baseDir == ".":
		joined = path.Clean(href)
	default:
		joined = path.Join(baseDir, href)
	}

	if joined == "." || joined == ".." || strings.HasPrefix(joined, "../") {
		return ""
	}
	return joined
}

// Dir returns the directory of an archive path, "" for root-level entries.
func Dir(p string) string {
	d := path.Dir(p)
	if d == "." || d == "/" {
		return ""
	}
	return d
}

func isExternal(href string) bool {
	u, err := url.Parse(href)
	return err == nil && u.Scheme != ""
}
