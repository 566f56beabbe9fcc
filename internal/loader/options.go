package loader

import (
	"log/slog"
	"runtime"
)

const (
	defaultJPEGQuality = 85
	defaultMaxPixels   = 100 * 1000 * 1000 // 100 megapixels
)

// Options holds options for the load pipeline.
type Options struct {
	// Concurrency bounds the number of resources or chapters processed at once.
	// Zero means runtime.NumCPU().
	Concurrency int

	// MaxImageWidth downscales raster images wider than this before inlining.
	// Zero disables transcoding so inlined images carry the archive bytes unchanged.
	MaxImageWidth int

	// JPEGQuality is used when a downscaled JPEG is re-encoded.
	JPEGQuality int

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.NumCPU()
	}
	if o.MaxImageWidth < 0 {
		o.MaxImageWidth = 0
	}
	if o.JPEGQuality <= 0 {
		o.JPEGQuality = defaultJPEGQuality
	}
	if o.JPEGQuality > 100 {
		o.JPEGQuality = 100
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
