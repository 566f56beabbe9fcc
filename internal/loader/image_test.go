package loader

import (
	"bytes"
	"image/jpeg"
	"testing"

	"github.com/yuanying/epubreader/internal/epubtest"
)

func TestImageTranscoder_Passthrough(t *testing.T) {
	pic := epubtest.PNG(t, 40, 20)
	tests := []struct {
		name      string
		maxWidth  int
		mediaType string
		input     []byte
	}{
		{"disabled", 0, "image/png", pic},
		{"fits", 40, "image/png", pic},
		{"vector", 10, "image/svg+xml", []byte("<svg/>")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &imageTranscoder{MaxWidth: tt.maxWidth, JPEGQuality: 80}
			got, err := tr.Transcode(tt.mediaType, tt.input)
			if err != nil {
				t.Fatalf("Transcode() error = %v", err)
			}
			if !bytes.Equal(got, tt.input) {
				t.Error("Transcode() should return the input unchanged")
			}
		})
	}
}

func TestImageTranscoder_Errors(t *testing.T) {
	tr := &imageTranscoder{MaxWidth: 10, JPEGQuality: 80, MaxPixels: 100}
	if _, err := tr.Transcode("image/png", epubtest.PNG(t, 20, 20)); err == nil {
		t.Error("expected pixel limit error")
	}
	if _, err := tr.Transcode("image/png", []byte("not a png")); err == nil {
		t.Error("expected decode error")
	}
}

func TestImageTranscoder_ReencodesAsDeclaredFormat(t *testing.T) {
	tr := newImageTranscoder(Options{MaxImageWidth: 16}.withDefaults())

	// A PNG declared as JPEG is re-encoded as JPEG
	out, err := tr.Transcode("image/jpeg", epubtest.PNG(t, 32, 8))
	if err != nil {
		t.Fatalf("Transcode() error = %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a jpeg: %v", err)
	}
	if cfg.Width != 16 || cfg.Height != 4 {
		t.Errorf("size = %dx%d, want 16x4", cfg.Width, cfg.Height)
	}
}
