package loader

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/yuanying/epubreader/internal/epub"
)

type inlined struct {
	path  string
	value string
}

// InlineResources inlines every image and style sheet declared in the manifest,
// keyed by its resolved archive path. A resource that cannot be read or encoded
// is logged and left out; only context cancellation aborts the whole table.
func (p *Pipeline) InlineResources(ctx context.Context, a *epub.Archive, pkg *epub.Package) (Resources, error) {
	results := make([]*inlined, len(pkg.ManifestOrder))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Options.Concurrency)

	for i, id := range pkg.ManifestOrder {
		i := i
		item := pkg.Manifest[id]
		if epub.IsContentDocument(item.MediaType) {
			continue
		}
		if !epub.IsImage(item.MediaType) && !epub.IsStylesheet(item.MediaType) {
			p.logger.Debug("resource not inlined", slog.String("id", id), slog.String("media_type", item.MediaType))
			continue
		}

		resolved := pkg.ResolveHref(item.Href)
		if resolved == "" {
			p.logger.Warn("resource href unresolvable, skipping", slog.String("id", id), slog.String("href", item.Href))
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			value, err := p.inlineResource(a, item, resolved)
			if err != nil {
				p.logger.Warn("resource unavailable, skipping",
					slog.String("id", item.ID), slog.String("path", resolved), slog.Any("error", err))
				return nil
			}
			results[i] = &inlined{path: resolved, value: value}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	resources := make(Resources, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		resources[r.path] = r.value
	}
	return resources, nil
}

func (p *Pipeline) inlineResource(a *epub.Archive, item epub.ManifestItem, resolved string) (string, error) {
	if epub.IsImage(item.MediaType) {
		data, err := a.Read(resolved)
		if err != nil {
			return "", err
		}
		data, err = p.images.Transcode(item.MediaType, data)
		if err != nil {
			return "", fmt.Errorf("%w: %v", epub.ErrResourceUnavailable, err)
		}
		return DataURI(item.MediaType, data), nil
	}
	return a.ReadText(resolved, "")
}

// DataURI encodes data as a base64 data URI carrying mediaType.
func DataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
