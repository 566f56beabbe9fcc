package epub

import "errors"

var (
	// ErrCorruptArchive indicates the input bytes are not a readable ZIP archive.
	ErrCorruptArchive = errors.New("epub: corrupt archive")

	// ErrInvalidArchive indicates the archive is a ZIP but not a usable EPUB
	// (missing container descriptor, package path or package document).
	ErrInvalidArchive = errors.New("epub: invalid archive")

	// ErrEntryNotFound indicates the requested entry does not exist in the archive.
	ErrEntryNotFound = errors.New("epub: entry not found")

	// ErrResourceUnavailable indicates a single resource or chapter could not be
	// read or decoded. It is never fatal to a load.
	ErrResourceUnavailable = errors.New("epub: resource unavailable")

	// ErrMalformedEntry indicates a manifest item or spine itemref missing a
	// required attribute.
	ErrMalformedEntry = errors.New("epub: malformed entry")
)
