package epub

import (
	"path"
	"strings"
)

// CoverInfo holds information about the detected cover image.
type CoverInfo struct {
	ManifestID      string
	Path            string // resolved archive path
	MediaType       string
	DetectionMethod string // "properties", "meta", "guide", "filename"
}

type coverDetector func(p *Package) *CoverInfo

// coverDetectors are tried in priority order.
var coverDetectors = []coverDetector{
	detectCoverByProperty,
	detectCoverByMeta,
	detectCoverByGuide,
	detectCoverByFilename,
}

// DetectCover detects the cover image of the package:
//  1. properties="cover-image" (EPUB 3.0)
//  2. meta name="cover" (EPUB 2.0)
//  3. guide type="cover" pointing at an image item
//  4. filename pattern (basename contains "cover", case-insensitive)
//
// Returns nil if no cover image is found.
func (p *Package) DetectCover() *CoverInfo {
	for _, detect := range coverDetectors {
		if info := detect(p); info != nil {
			return info
		}
	}
	return nil
}

func detectCoverByProperty(p *Package) *CoverInfo {
	for _, id := range p.ManifestOrder {
		item := p.Manifest[id]
		for _, prop := range item.Properties {
			if prop == "cover-image" && IsImage(item.MediaType) {
				return p.coverInfo(item, "properties")
			}
		}
	}
	return nil
}

func detectCoverByMeta(p *Package) *CoverInfo {
	if p.Metadata.CoverID == "" {
		return nil
	}
	item, ok := p.Manifest[p.Metadata.CoverID]
	if !ok || !IsImage(item.MediaType) {
		return nil
	}
	return p.coverInfo(item, "meta")
}

func detectCoverByGuide(p *Package) *CoverInfo {
	for _, ref := range p.Guide {
		if !strings.EqualFold(ref.Type, "cover") {
			continue
		}
		target := p.ResolveHref(ref.Href)
		if target == "" {
			continue
		}
		for _, id := range p.ManifestOrder {
			item := p.Manifest[id]
			if IsImage(item.MediaType) && p.ResolveHref(item.Href) == target {
				return p.coverInfo(item, "guide")
			}
		}
	}
	return nil
}

func detectCoverByFilename(p *Package) *CoverInfo {
	for _, id := range p.ManifestOrder {
		item := p.Manifest[id]
		if !IsImage(item.MediaType) {
			continue
		}
		if strings.Contains(strings.ToLower(path.Base(item.Href)), "cover") {
			return p.coverInfo(item, "filename")
		}
	}
	return nil
}

func (p *Package) coverInfo(item ManifestItem, method string) *CoverInfo {
	resolved := p.ResolveHref(item.Href)
	if resolved == "" {
		return nil
	}
	return &CoverInfo{
		ManifestID:      item.ID,
		Path:            resolved,
		MediaType:       item.MediaType,
		DetectionMethod: method,
	}
}

// IsContentDocument reports whether a media type denotes an HTML/XHTML document.
func IsContentDocument(mediaType string) bool {
	return strings.Contains(strings.ToLower(mediaType), "html")
}

// IsImage reports whether a media type belongs to the image family.
func IsImage(mediaType string) bool {
	return strings.Contains(strings.ToLower(mediaType), "image")
}

// IsStylesheet reports whether a media type belongs to the style sheet family.
func IsStylesheet(mediaType string) bool {
	return strings.Contains(strings.ToLower(mediaType), "css")
}
