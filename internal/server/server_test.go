package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/yuanying/epubreader/internal/epub"
	"github.com/yuanying/epubreader/internal/epubtest"
	"github.com/yuanying/epubreader/internal/loader"
	"github.com/yuanying/epubreader/internal/xmlexport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var coverBytes = []byte("\x89PNG cover")

func testLibrary() *Library {
	return NewLibrary(
		&loader.Document{
			Title: "First Book",
			Chapters: []loader.Chapter{
				{ID: "c1", Title: "Opening", Href: "c1.xhtml", Content: "<html><body>one</body></html>"},
				{ID: "c2", Title: "Chapter 2", Href: "c2.xhtml", Content: "<html><body>two</body></html>"},
			},
			Resources: loader.Resources{"img/cover.png": loader.DataURI("image/png", coverBytes)},
			Metadata:  epub.Metadata{Title: "First Book", Identifier: "book/1", Creator: "Ann"},
			CoverPath: "img/cover.png",
		},
		&loader.Document{
			Title:    "Second Book",
			Metadata: epub.Metadata{Title: "Second Book"},
		},
		&loader.Document{
			Title:    "Duplicate",
			Metadata: epub.Metadata{Title: "Duplicate", Identifier: "book/1"},
		},
	)
}

func newTestServer() *httptest.Server {
	srv := New(testLibrary(), Options{
		Site:   xmlexport.Site{BaseURL: "https://shelf.test"},
		Logger: discardLogger(),
	})
	return httptest.NewServer(srv.Handler())
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	return resp, string(body)
}

func TestNewLibrary(t *testing.T) {
	lib := testLibrary()
	if n := len(lib.Books()); n != 2 {
		t.Fatalf("Books() count = %d, want 2", n)
	}
	doc, ok := lib.Book("book/1")
	if !ok || doc.Title != "First Book" {
		t.Errorf("Book(book/1) = %v, %v, want First Book", doc, ok)
	}
	if _, ok := lib.Book("Second Book"); !ok {
		t.Error("book without identifier should be keyed by title")
	}
}

func TestXMLEndpoint(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"book", "/api/xml?type=book&bookId=book%2F1", http.StatusOK, "<title>First Book</title>"},
		{"catalog", "/api/xml?type=catalog", http.StatusOK, "<feed"},
		{"sitemap", "/api/xml?type=sitemap", http.StatusOK, "<loc>https://shelf.test/reader?book=Second%20Book</loc>"},
		{"unknown book", "/api/xml?type=book&bookId=nope", http.StatusNotFound, "Book not found."},
		{"missing type", "/api/xml", http.StatusBadRequest, "Invalid request. Please specify a valid type parameter."},
		{"bad type", "/api/xml?type=json", http.StatusBadRequest, "Invalid request."},
		{"catalog file", "/catalog.xml", http.StatusOK, "<name>Ann</name>"},
		{"sitemap file", "/sitemap.xml", http.StatusOK, "<urlset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, ts.URL+tt.path)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.wantStatus, body)
			}
			if !strings.Contains(body, tt.wantBody) {
				t.Errorf("body missing %q:\n%s", tt.wantBody, body)
			}
			if resp.StatusCode == http.StatusOK {
				if ct := resp.Header.Get("Content-Type"); ct != xmlexport.ContentType {
					t.Errorf("Content-Type = %q, want %q", ct, xmlexport.ContentType)
				}
				if cc := resp.Header.Get("Cache-Control"); cc != "max-age=3600" {
					t.Errorf("Cache-Control = %q, want %q", cc, "max-age=3600")
				}
			}
		})
	}
}

func TestChapterEndpoint(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp, body := get(t, ts.URL+"/books/book%2F1/chapters/1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, body)
	}
	if body != "<html><body>two</body></html>" {
		t.Errorf("body = %q", body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}

	for _, path := range []string{"/books/book%2F1/chapters/2", "/books/missing/chapters/0"} {
		if resp, _ := get(t, ts.URL+path); resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestStructuredDataEndpoint(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp, body := get(t, ts.URL+"/books/book%2F1/structured-data")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/ld+json" {
		t.Errorf("Content-Type = %q, want application/ld+json", ct)
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["name"] != "First Book" {
		t.Errorf("name = %v, want First Book", got["name"])
	}
	if order, _ := got["readingOrder"].([]any); len(order) != 2 {
		t.Errorf("readingOrder = %v, want 2 entries", got["readingOrder"])
	}
}

func TestLoadLibrary(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]byte{
		"b.epub":    epubtest.SampleBook(t, epubtest.PNG(t, 2, 2)),
		"a.epub":    []byte("broken"),
		"notes.txt": []byte("ignored"),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	p := loader.NewPipeline(loader.Options{Logger: discardLogger()})
	lib, err := LoadLibrary(context.Background(), p, dir, discardLogger())
	if err != nil {
		t.Fatalf("LoadLibrary failed: %v", err)
	}
	if n := len(lib.Books()); n != 1 {
		t.Fatalf("Books() count = %d, want 1", n)
	}
	if _, ok := lib.Book("sample-book-1"); !ok {
		t.Error("sample book should be keyed by its identifier")
	}
}

func TestReaderEndpoint_CatalogLink(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	_, feed := get(t, ts.URL+"/api/xml?type=catalog")
	m := regexp.MustCompile(`href="https://shelf\.test(/reader\?book=book%2F1)"`).FindStringSubmatch(feed)
	if m == nil {
		t.Fatalf("catalog has no reader link for book/1:\n%s", feed)
	}

	resp, body := get(t, ts.URL+m[1])
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d, want 200: %s", m[1], resp.StatusCode, body)
	}
	if !strings.Contains(body, "<body>one") {
		t.Errorf("reader should open the first chapter:\n%s", body)
	}
}

func TestReaderEndpoint(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		want       []string
		notWant    []string
	}{
		{
			name:       "defaults",
			path:       "/reader?book=book%2F1",
			wantStatus: http.StatusOK,
			want: []string{
				`<html lang="en">`,
				"<title>First Book - Opening</title>",
				`<meta name="description" content="Reading Opening from First Book"/>`,
				"font-family: serif, serif; font-size: 100%;",
				"<body>one",
				`<a rel="next" href="/reader?book=book%2F1&amp;chapter=1&amp;fontFamily=serif&amp;fontSize=100">Next</a>`,
			},
			notWant: []string{`rel="prev"`},
		},
		{
			name:       "chapter and typography clamped",
			path:       "/reader?book=book%2F1&chapter=9&fontSize=999&fontFamily=monospace",
			wantStatus: http.StatusOK,
			want: []string{
				"<body>two",
				"font-family: monospace, serif; font-size: 200%;",
				`<a rel="prev" href="/reader?book=book%2F1&amp;chapter=0&amp;fontFamily=monospace&amp;fontSize=200">Previous</a>`,
			},
			notWant: []string{`rel="next"`},
		},
		{
			name:       "unknown family",
			path:       "/reader?book=book%2F1&fontFamily=%3C%2Fstyle%3E",
			wantStatus: http.StatusOK,
			want:       []string{"font-family: serif, serif;"},
			notWant:    []string{"&lt;/style&gt;"},
		},
		{
			name:       "invalid chapter",
			path:       "/reader?book=book%2F1&chapter=x",
			wantStatus: http.StatusBadRequest,
			want:       []string{"Invalid reader parameters"},
		},
		{
			name:       "unknown book",
			path:       "/reader?book=nope",
			wantStatus: http.StatusNotFound,
			want:       []string{"Book not found."},
		},
		{
			name:       "book without chapters",
			path:       "/reader?book=Second+Book",
			wantStatus: http.StatusNotFound,
			want:       []string{"no readable chapters"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, ts.URL+tt.path)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.wantStatus, body)
			}
			for _, want := range tt.want {
				if !strings.Contains(body, want) {
					t.Errorf("body missing %q:\n%s", want, body)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(body, notWant) {
					t.Errorf("body should not contain %q:\n%s", notWant, body)
				}
			}
		})
	}
}

func TestCoverEndpoint(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp, body := get(t, ts.URL+"/books/book%2F1/cover")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if body != string(coverBytes) {
		t.Errorf("body = %q, want %q", body, coverBytes)
	}

	if resp, _ := get(t, ts.URL+"/books/Second%20Book/cover"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("book without cover status = %d, want 404", resp.StatusCode)
	}
}

func TestDecodeDataURI(t *testing.T) {
	tests := []struct {
		name      string
		uri       string
		wantType  string
		wantData  string
		wantError bool
	}{
		{"png", loader.DataURI("image/png", []byte("abc")), "image/png", "abc", false},
		{"not a data URI", "http://example.com/a.png", "", "", true},
		{"not base64", "data:text/css,body{}", "", "", true},
		{"bad payload", "data:image/png;base64,@@", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mediaType, data, err := decodeDataURI(tt.uri)
			if tt.wantError {
				if !errors.Is(err, errInvalidDataURI) {
					t.Fatalf("decodeDataURI() error = %v, want errInvalidDataURI", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeDataURI() failed: %v", err)
			}
			if mediaType != tt.wantType || string(data) != tt.wantData {
				t.Errorf("decodeDataURI() = %q, %q, want %q, %q", mediaType, data, tt.wantType, tt.wantData)
			}
		})
	}
}
