package epub

import (
	"errors"
	"fmt"
	"strings"
)

// opfPackage represents the OPF XML structure.
// Element names are matched by local name so that documents with undeclared or
// unusual namespace prefixes still parse.
type opfPackage struct {
	Version  string      `xml:"version,attr"`
	UniqueID string      `xml:"unique-identifier,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
	Spine    opfSpine    `xml:"spine"`
	Guide    opfGuide    `xml:"guide"`
}

// opfMetadata represents the metadata section
type opfMetadata struct {
	Title       []string        `xml:"title"`
	Creator     []opfCreator    `xml:"creator"`
	Language    []string        `xml:"language"`
	Identifier  []opfIdentifier `xml:"identifier"`
	Publisher   []string        `xml:"publisher"`
	Date        []string        `xml:"date"`
	Description []string        `xml:"description"`
	Subject     []string        `xml:"subject"`
	Rights      []string        `xml:"rights"`
	Meta        []opfMeta       `xml:"meta"`
}

type opfCreator struct {
	Name string `xml:",chardata"`
	Role string `xml:"role,attr"`
	ID   string `xml:"id,attr"`
}

type opfIdentifier struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr"`
}

// opfMeta represents a meta element (EPUB 2.0 and 3.0)
type opfMeta struct {
	Name     string `xml:"name,attr"`
	Content  string `xml:"content,attr"` // EPUB 2.0: attribute value
	Value    string `xml:",chardata"`    // EPUB 3.0: element text content
	Property string `xml:"property,attr"`
	Refines  string `xml:"refines,attr"`
}

type opfManifest struct {
	Items []opfManifestItem `xml:"item"`
}

type opfManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type opfSpine struct {
	ItemRefs []opfItemRef `xml:"itemref"`
}

type opfItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

type opfGuide struct {
	References []opfReference `xml:"reference"`
}

type opfReference struct {
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
	Href  string `xml:"href,attr"`
}

// ReadPackage reads and parses the package document at packagePath.
func ReadPackage(a *Archive, packagePath string) (*Package, error) {
	content, err := a.Read(packagePath)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, fmt.Errorf("%w: missing package document", ErrInvalidArchive)
		}
		return nil, fmt.Errorf("%w: unreadable package document: %v", ErrInvalidArchive, err)
	}
	return ParsePackage(content, packagePath)
}

// ParsePackage parses package document content. packagePath is the archive path
// the document was read from and determines the base directory for manifest hrefs.
func ParsePackage(content []byte, packagePath string) (*Package, error) {
	var raw opfPackage
	if err := unmarshalXML(content, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed package document: %v", ErrInvalidArchive, err)
	}

	pkg := &Package{
		Path:     packagePath,
		Dir:      Dir(packagePath),
		Version:  raw.Version,
		Metadata: parseMetadata(&raw.Metadata, raw.UniqueID),
		Manifest: make(map[string]ManifestItem),
	}

	for _, item := range raw.Manifest.Items {
		id := strings.TrimSpace(item.ID)
		href := strings.TrimSpace(item.Href)
		if id == "" || href == "" {
			pkg.Malformed = append(pkg.Malformed,
				fmt.Errorf("%w: manifest item id=%q href=%q", ErrMalformedEntry, id, href))
			continue
		}
		if _, dup := pkg.Manifest[id]; dup {
			pkg.Malformed = append(pkg.Malformed,
				fmt.Errorf("%w: duplicate manifest id %q", ErrMalformedEntry, id))
			continue
		}

		manifestItem := ManifestItem{
			ID:        id,
			Href:      href,
			MediaType: strings.TrimSpace(item.MediaType),
		}
		if item.Properties != "" {
			manifestItem.Properties = strings.Fields(item.Properties)
		}

		pkg.Manifest[id] = manifestItem
		pkg.ManifestOrder = append(pkg.ManifestOrder, id)
	}

	for _, itemRef := range raw.Spine.ItemRefs {
		idref := strings.TrimSpace(itemRef.IDRef)
		if idref == "" {
			pkg.Malformed = append(pkg.Malformed,
				fmt.Errorf("%w: spine itemref without idref", ErrMalformedEntry))
			continue
		}
		pkg.Spine = append(pkg.Spine, SpineItem{
			IDRef:  idref,
			Linear: itemRef.Linear != "no",
		})
	}

	for _, ref := range raw.Guide.References {
		if ref.Href == "" {
			continue
		}
		pkg.Guide = append(pkg.Guide, GuideReference{
			Type:  ref.Type,
			Title: ref.Title,
			Href:  ref.Href,
		})
	}

	return pkg, nil
}

// ResolveHref resolves a manifest href against the package document's directory.
func (p *Package) ResolveHref(href string) string {
	return ResolvePath(p.Dir, href)
}

// Item returns the manifest item for id together with its resolved archive path.
// ok is false when the id is unknown or its href cannot be resolved.
func (p *Package) Item(id string) (item ManifestItem, resolved string, ok bool) {
	item, ok = p.Manifest[id]
	if !ok {
		return ManifestItem{}, "", false
	}
	resolved = p.ResolveHref(item.Href)
	return item, resolved, resolved != ""
}

func parseMetadata(meta *opfMetadata, uniqueID string) Metadata {
	md := Metadata{
		Title:       first(meta.Title),
		Language:    first(meta.Language),
		Publisher:   first(meta.Publisher),
		Date:        first(meta.Date),
		Description: first(meta.Description),
		Rights:      first(meta.Rights),
		Subjects:    []string{},
	}
	if md.Title == "" {
		md.Title = DefaultTitle
	}

	// Identifier (prefer the one marked as unique-identifier)
	for _, id := range meta.Identifier {
		if uniqueID != "" && id.ID == uniqueID {
			md.Identifier = strings.TrimSpace(id.Value)
			break
		}
	}
	if md.Identifier == "" {
		for _, id := range meta.Identifier {
			if v := strings.TrimSpace(id.Value); v != "" {
				md.Identifier = v
				break
			}
		}
	}

	for _, s := range meta.Subject {
		if s = strings.TrimSpace(s); s != "" {
			md.Subjects = append(md.Subjects, s)
		}
	}

	creatorIndex := make(map[string]int)
	for _, c := range meta.Creator {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		if c.ID != "" {
			creatorIndex["#"+c.ID] = len(md.Creators)
		}
		md.Creators = append(md.Creators, Creator{Name: name, Role: c.Role})
	}
	if len(md.Creators) > 0 {
		md.Creator = md.Creators[0].Name
	}

	for _, m := range meta.Meta {
		switch {
		case m.Property == "role" && m.Refines != "":
			// EPUB 3.0 refines creator roles through meta elements
			if idx, ok := creatorIndex[m.Refines]; ok {
				if v := strings.TrimSpace(m.Value); v != "" {
					md.Creators[idx].Role = v
				} else {
					md.Creators[idx].Role = m.Content
				}
			}
		case m.Name == "cover" && m.Content != "" && md.CoverID == "":
			md.CoverID = m.Content
		}
	}

	return md
}

// first returns the first non-empty trimmed value.
func first(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
