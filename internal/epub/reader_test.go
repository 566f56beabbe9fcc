package epub

import (
	"errors"
	"testing"

	"github.com/yuanying/epubreader/internal/epubtest"
)

func TestOpen_CorruptArchive(t *testing.T) {
	_, err := Open([]byte("definitely not a zip"))
	if !errors.Is(err, ErrCorruptArchive) {
		t.Fatalf("Open() error = %v, want ErrCorruptArchive", err)
	}
}

func TestArchive_Read(t *testing.T) {
	data := epubtest.Build(t,
		epubtest.Mimetype(),
		epubtest.Text("OEBPS/Text/Chapter1.xhtml", "<p>one</p>"),
	)
	a, err := Open(data)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"exact", "OEBPS/Text/Chapter1.xhtml"},
		{"dot prefix", "./OEBPS/Text/Chapter1.xhtml"},
		{"leading slash", "/OEBPS/Text/Chapter1.xhtml"},
		{"unclean", "OEBPS/Images/../Text/Chapter1.xhtml"},
		{"case-insensitive", "oebps/text/chapter1.xhtml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Read(tt.path)
			if err != nil {
				t.Fatalf("Read(%q) failed: %v", tt.path, err)
			}
			if string(got) != "<p>one</p>" {
				t.Errorf("Read(%q) = %q, want %q", tt.path, got, "<p>one</p>")
			}
		})
	}
}

func TestArchive_ReadNotFound(t *testing.T) {
	a, err := Open(epubtest.Build(t, epubtest.Mimetype()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	_, err = a.Read("missing.xhtml")
	if !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Read() error = %v, want ErrEntryNotFound", err)
	}
	if a.Has("missing.xhtml") {
		t.Error("Has() = true, want false")
	}
}

func TestArchive_Names(t *testing.T) {
	a, err := Open(epubtest.Build(t,
		epubtest.Mimetype(),
		epubtest.Container("content.opf"),
		epubtest.Text("content.opf", "<package/>"),
	))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	want := []string{"mimetype", "META-INF/container.xml", "content.opf"}
	got := a.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestArchive_ReadText(t *testing.T) {
	tests := []struct {
		name     string
		body     []byte
		encoding string
		want     string
	}{
		{
			name: "utf-8 without declaration",
			body: []byte("caf\xc3\xa9"),
			want: "café",
		},
		{
			name: "utf-8 BOM stripped",
			body: []byte("\xef\xbb\xbfhello"),
			want: "hello",
		},
		{
			name:     "explicit label",
			body:     []byte("caf\xe9"),
			encoding: "iso-8859-1",
			want:     "café",
		},
		{
			name: "xml declaration",
			body: []byte(`<?xml version="1.0" encoding="windows-1252"?><p>caf` + "\xe9" + `</p>`),
			want: `<?xml version="1.0" encoding="windows-1252"?><p>café</p>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Open(epubtest.Build(t, epubtest.File{Name: "text.txt", Body: tt.body}))
			if err != nil {
				t.Fatalf("Open() failed: %v", err)
			}
			got, err := a.ReadText("text.txt", tt.encoding)
			if err != nil {
				t.Fatalf("ReadText() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("ReadText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestArchive_ReadTextUnknownEncoding(t *testing.T) {
	a, err := Open(epubtest.Build(t, epubtest.Text("text.txt", "x")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	_, err = a.ReadText("text.txt", "no-such-charset")
	if !errors.Is(err, ErrResourceUnavailable) {
		t.Errorf("ReadText() error = %v, want ErrResourceUnavailable", err)
	}
}
