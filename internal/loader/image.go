package loader

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// imageTranscoder downscales oversized raster images before they are inlined.
type imageTranscoder struct {
	MaxWidth    int
	JPEGQuality int
	MaxPixels   int // Total pixel count limit for decode (width * height)
}

func newImageTranscoder(opts Options) *imageTranscoder {
	return &imageTranscoder{
		MaxWidth:    opts.MaxImageWidth,
		JPEGQuality: opts.JPEGQuality,
		MaxPixels:   defaultMaxPixels,
	}
}

// Transcode returns the bytes to inline for an image. The input is returned
// unchanged when transcoding is disabled, the format is not a raster format
// imaging can encode, or the image already fits.
func (t *imageTranscoder) Transcode(mediaType string, input []byte) ([]byte, error) {
	if t.MaxWidth <= 0 {
		return input, nil
	}
	format, ok := mediaTypeToFormat(mediaType)
	if !ok {
		return input, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}
	if cfg.Width <= t.MaxWidth {
		return input, nil
	}
	pixels := uint64(cfg.Width) * uint64(cfg.Height)
	if t.MaxPixels > 0 && pixels > uint64(t.MaxPixels) {
		return nil, fmt.Errorf("image too large to decode: %dx%d (%d pixels)", cfg.Width, cfg.Height, pixels)
	}

	src, err := imaging.Decode(bytes.NewReader(input), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}
	resized := imaging.Resize(src, t.MaxWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(t.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("image encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

func mediaTypeToFormat(mediaType string) (imaging.Format, bool) {
	switch strings.ToLower(mediaType) {
	case "image/jpeg", "image/jpg":
		return imaging.JPEG, true
	case "image/png":
		return imaging.PNG, true
	case "image/gif":
		return imaging.GIF, true
	case "image/bmp":
		return imaging.BMP, true
	case "image/tiff":
		return imaging.TIFF, true
	default:
		return 0, false
	}
}
