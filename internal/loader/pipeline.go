package loader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yuanying/epubreader/internal/epub"
)

// Pipeline turns EPUB archive bytes into a Document.
// A Pipeline holds no per-load state and may be shared across goroutines.
type Pipeline struct {
	Options Options
	logger  *slog.Logger
	images  *imageTranscoder
}

// NewPipeline creates a new load pipeline.
func NewPipeline(opts Options) *Pipeline {
	opts = opts.withDefaults()
	return &Pipeline{
		Options: opts,
		logger:  opts.Logger,
		images:  newImageTranscoder(opts),
	}
}

// Load parses archive bytes into a Document.
// It fails with epub.ErrCorruptArchive or epub.ErrInvalidArchive; unreadable
// resources and chapters are dropped instead of failing the load.
func (p *Pipeline) Load(ctx context.Context, data []byte) (*Document, error) {
	a, err := epub.Open(data)
	if err != nil {
		return nil, err
	}
	return p.LoadArchive(ctx, a)
}

// LoadFile reads an EPUB file from disk and loads it.
func (p *Pipeline) LoadFile(ctx context.Context, path string) (*Document, error) {
	a, err := epub.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return p.LoadArchive(ctx, a)
}

// LoadArchive loads an already opened archive.
func (p *Pipeline) LoadArchive(ctx context.Context, a *epub.Archive) (*Document, error) {
	c, err := epub.ReadContainer(a)
	if err != nil {
		return nil, err
	}

	pkg, err := epub.ReadPackage(a, c.PackagePath)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("package document parsed",
		slog.String("path", c.PackagePath),
		slog.Int("manifest", len(pkg.Manifest)),
		slog.Int("spine", len(pkg.Spine)))
	for _, err := range pkg.Malformed {
		p.logger.Warn("package entry excluded", slog.Any("error", err))
	}

	resources, err := p.InlineResources(ctx, a, pkg)
	if err != nil {
		return nil, fmt.Errorf("failed to inline resources: %w", err)
	}

	chapters, err := p.AssembleChapters(ctx, a, pkg, resources)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble chapters: %w", err)
	}

	doc := &Document{
		Title:     pkg.Metadata.Title,
		Chapters:  chapters,
		Resources: resources,
		Metadata:  pkg.Metadata,
		Unlisted:  p.checkManifest(a, pkg),
	}
	if cover := pkg.DetectCover(); cover != nil {
		if _, ok := resources[cover.Path]; ok {
			doc.CoverPath = cover.Path
		}
	}

	p.logger.Info("book loaded",
		slog.String("title", doc.Title),
		slog.Int("chapters", len(doc.Chapters)),
		slog.Int("resources", len(doc.Resources)))
	return doc, nil
}

// checkManifest warns about manifest items absent from the archive and returns
// the archive entries the manifest does not declare. The mimetype file,
// META-INF and the package document are not counted.
func (p *Pipeline) checkManifest(a *epub.Archive, pkg *epub.Package) []string {
	declared := map[string]bool{strings.ToLower(pkg.Path): true}
	for _, id := range pkg.ManifestOrder {
		_, resolved, ok := pkg.Item(id)
		if !ok || resolved == "" {
			continue
		}
		declared[strings.ToLower(resolved)] = true
		if !a.Has(resolved) {
			p.logger.Warn("manifest item missing from archive",
				slog.String("id", id), slog.String("path", resolved))
		}
	}

	var unlisted []string
	for _, name := range a.Names() {
		if name == "mimetype" || strings.HasPrefix(name, "META-INF/") {
			continue
		}
		if !declared[strings.ToLower(name)] {
			unlisted = append(unlisted, name)
		}
	}
	if len(unlisted) > 0 {
		p.logger.Debug("archive entries not in manifest", slog.Int("count", len(unlisted)))
	}
	return unlisted
}

// AssembleChapters builds the chapter sequence in spine order. Spine entries
// that do not resolve to a manifest href, or whose content cannot be read, are
// skipped; survivors keep their relative order.
func (p *Pipeline) AssembleChapters(ctx context.Context, a *epub.Archive, pkg *epub.Package, resources Resources) ([]Chapter, error) {
	slots := make([]*Chapter, len(pkg.Spine))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Options.Concurrency)

	for i, spineItem := range pkg.Spine {
		i, spineItem := i, spineItem
		item, resolved, ok := pkg.Item(spineItem.IDRef)
		if !ok {
			p.logger.Warn("spine item not found in manifest, skipping", slog.String("idref", spineItem.IDRef))
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ch, err := p.buildChapter(a, spineItem.IDRef, resolved, resources)
			if err != nil {
				p.logger.Warn("chapter unavailable, skipping",
					slog.String("id", item.ID), slog.String("path", resolved), slog.Any("error", err))
				return nil
			}
			slots[i] = ch
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	chapters := make([]Chapter, 0, len(slots))
	for _, ch := range slots {
		if ch == nil {
			continue
		}
		if ch.Title == "" {
			ch.Title = SyntheticTitle(len(chapters) + 1)
		}
		chapters = append(chapters, *ch)
	}
	return chapters, nil
}

func (p *Pipeline) buildChapter(a *epub.Archive, id, resolved string, resources Resources) (*Chapter, error) {
	markup, err := a.ReadText(resolved, "")
	if err != nil {
		return nil, err
	}

	content, err := epub.LoadContent(id, resolved, markup)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", epub.ErrResourceUnavailable, err)
	}
	rewriteDocument(content, resources)

	html, err := render(content.Document)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", epub.ErrResourceUnavailable, err)
	}

	return &Chapter{
		ID:      id,
		Title:   ExtractTitle(content.Document),
		Href:    resolved,
		Content: html,
	}, nil
}
