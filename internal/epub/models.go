package epub

// DefaultTitle is used when the package document declares no title.
const DefaultTitle = "Untitled"

// Package represents the parsed OPF package document
type Package struct {
	Path          string // archive path of the package document
	Dir           string // directory of the package document ("" at archive root)
	Version       string
	Metadata      Metadata
	Manifest      map[string]ManifestItem // id -> item
	ManifestOrder []string                // ids in document order
	Spine         []SpineItem
	Guide         []GuideReference
	Malformed     []error // excluded manifest items and spine itemrefs, each wrapping ErrMalformedEntry
}

// Metadata represents the metadata section of the package document.
// An empty optional field means the element was absent (or had no text).
type Metadata struct {
	Title       string
	Creator     string // name of the first creator
	Creators    []Creator
	Publisher   string
	Language    string
	Identifier  string
	Date        string
	Description string
	Subjects    []string
	Rights      string
	CoverID     string // EPUB 2.0 cover image manifest item ID (from meta name="cover")
}

// Creator represents a creator (author, editor, etc.) of the book
type Creator struct {
	Name string
	Role string // e.g., "aut" for author, "edt" for editor
}

// ManifestItem represents an item in the manifest.
// Href is relative to the package document's directory.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties []string
}

// SpineItem represents an item reference in the spine
type SpineItem struct {
	IDRef  string
	Linear bool
}

// GuideReference represents a reference element in the EPUB 2.0 guide
type GuideReference struct {
	Type  string
	Title string
	Href  string
}
