package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/yuanying/epubreader/internal/loader"
	"github.com/yuanying/epubreader/internal/xmlexport"
)

// Library is an immutable, ordered set of loaded books keyed by book key.
type Library struct {
	books []*loader.Document
	byKey map[string]*loader.Document
}

// NewLibrary indexes books by their key. Later duplicates are ignored.
func NewLibrary(books ...*loader.Document) *Library {
	l := &Library{byKey: make(map[string]*loader.Document, len(books))}
	for _, doc := range books {
		key := xmlexport.BookKey(doc)
		if _, dup := l.byKey[key]; dup {
			continue
		}
		l.byKey[key] = doc
		l.books = append(l.books, doc)
	}
	return l
}

// LoadLibrary loads every .epub file in dir. Books that fail to load are logged
// and skipped.
func LoadLibrary(ctx context.Context, p *loader.Pipeline, dir string, logger *slog.Logger) (*Library, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.epub"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(paths)

	var books []*loader.Document
	for _, path := range paths {
		doc, err := p.LoadFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("failed to load book, skipping", slog.String("path", path), slog.Any("error", err))
			continue
		}
		books = append(books, doc)
	}
	return NewLibrary(books...), nil
}

// Books returns the books in load order.
func (l *Library) Books() []*loader.Document {
	return l.books
}

// Book looks a book up by key.
func (l *Library) Book(key string) (*loader.Document, bool) {
	doc, ok := l.byKey[key]
	return doc, ok
}
