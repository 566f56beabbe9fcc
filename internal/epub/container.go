package epub

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html/charset"
)

// ContainerPath is the fixed location of the OCF container descriptor.
const ContainerPath = "META-INF/container.xml"

// Container is the parsed OCF container descriptor.
type Container struct {
	PackagePath string
}

// container.xml structure
type container struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath string `xml:"full-path,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

// ReadContainer locates the package document path from the container descriptor.
func ReadContainer(a *Archive) (Container, error) {
	content, err := a.Read(ContainerPath)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return Container{}, fmt.Errorf("%w: missing container descriptor", ErrInvalidArchive)
		}
		return Container{}, fmt.Errorf("%w: unreadable container descriptor: %v", ErrInvalidArchive, err)
	}

	p, err := parseContainer(content)
	if err != nil {
		return Container{}, err
	}
	return Container{PackagePath: p}, nil
}

func parseContainer(content []byte) (string, error) {
	var c container
	if err := unmarshalXML(content, &c); err != nil {
		return "", fmt.Errorf("%w: malformed container descriptor: %v", ErrInvalidArchive, err)
	}

	// The first rootfile naming a path wins, whatever its media type.
	for _, rf := range c.Rootfiles.Rootfile {
		if fullPath := strings.TrimSpace(rf.FullPath); fullPath != "" {
			return normalizePath(fullPath), nil
		}
	}
	return "", fmt.Errorf("%w: missing package path", ErrInvalidArchive)
}

// unmarshalXML decodes XML honoring non-UTF-8 encoding declarations.
func unmarshalXML(content []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
	dec.CharsetReader = charset.NewReaderLabel
	dec.Strict = false
	return dec.Decode(v)
}
