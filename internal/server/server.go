package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/yuanying/epubreader/internal/loader"
	"github.com/yuanying/epubreader/internal/xmlexport"
)

const xmlCacheControl = "max-age=3600"

// Options configures the HTTP adapter.
type Options struct {
	Site   xmlexport.Site
	Logger *slog.Logger
}

// Server exposes a Library over HTTP.
type Server struct {
	library *Library
	site    xmlexport.Site
	logger  *slog.Logger
}

// New creates a server for library.
func New(library *Library, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		library: library,
		site:    opts.Site,
		logger:  logger,
	}
}

// Handler returns the routed handler wrapped in recovery and request logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter().UseEncodedPath()
	r.HandleFunc("/api/xml", s.handleXML).Methods(http.MethodGet)
	r.HandleFunc("/catalog.xml", s.handleCatalog).Methods(http.MethodGet)
	r.HandleFunc("/sitemap.xml", s.handleSitemap).Methods(http.MethodGet)
	r.HandleFunc("/reader", s.handleReader).Methods(http.MethodGet)
	r.HandleFunc("/books/{id}/cover", s.handleCover).Methods(http.MethodGet)
	r.HandleFunc("/books/{id}/chapters/{index:[0-9]+}", s.handleChapter).Methods(http.MethodGet)
	r.HandleFunc("/books/{id}/structured-data", s.handleStructuredData).Methods(http.MethodGet)

	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.Use(negroni.HandlerFunc(s.logRequest))
	n.UseHandler(r)
	return n
}

func (s *Server) logRequest(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(rw, r)

	status := 0
	if nrw, ok := rw.(negroni.ResponseWriter); ok {
		status = nrw.Status()
	}
	s.logger.Info("request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)))
}

func (s *Server) handleXML(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch q.Get("type") {
	case "book":
		doc, ok := s.library.Book(q.Get("bookId"))
		if !ok {
			http.Error(w, "Book not found.", http.StatusNotFound)
			return
		}
		writeXML(w, xmlexport.PackageMetadata(doc))
	case "catalog":
		s.handleCatalog(w, r)
	case "sitemap":
		s.handleSitemap(w, r)
	default:
		http.Error(w, "Invalid request. Please specify a valid type parameter.", http.StatusBadRequest)
	}
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	out, err := xmlexport.Catalog(s.site, s.library.Books())
	if err != nil {
		s.logger.Error("failed to build catalog", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeXML(w, out)
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	writeXML(w, xmlexport.Sitemap(s.site, s.library.Books()))
}

func (s *Server) handleReader(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := q.Get("book")
	doc, ok := s.library.Book(key)
	if !ok {
		http.Error(w, "Book not found.", http.StatusNotFound)
		return
	}
	if len(doc.Chapters) == 0 {
		http.Error(w, "Book has no readable chapters.", http.StatusNotFound)
		return
	}
	state, err := readerState(q, len(doc.Chapters))
	if err != nil {
		http.Error(w, "Invalid reader parameters: "+err.Error(), http.StatusBadRequest)
		return
	}

	page, err := renderReaderPage(key, doc, state)
	if err != nil {
		s.logger.Error("failed to render reader page",
			slog.String("book", key), slog.Int("chapter", state.ChapterIndex), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

func (s *Server) handleCover(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.book(w, r)
	if !ok {
		return
	}
	uri, ok := doc.Cover()
	if !ok {
		http.Error(w, "Cover not found.", http.StatusNotFound)
		return
	}
	mediaType, data, err := decodeDataURI(uri)
	if err != nil {
		s.logger.Error("failed to decode cover", slog.String("path", doc.CoverPath), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", mediaType)
	_, _ = w.Write(data)
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.book(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		http.Error(w, "Invalid chapter index.", http.StatusBadRequest)
		return
	}
	ch, ok := doc.Chapter(index)
	if !ok {
		http.Error(w, "Chapter not found.", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(ch.Content))
}

func (s *Server) handleStructuredData(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.book(w, r)
	if !ok {
		return
	}
	data, err := doc.StructuredData()
	if err != nil {
		s.logger.Error("failed to build structured data", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/ld+json")
	_, _ = w.Write(data)
}

func (s *Server) book(w http.ResponseWriter, r *http.Request) (*loader.Document, bool) {
	key, err := url.PathUnescape(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid book id.", http.StatusBadRequest)
		return nil, false
	}
	doc, ok := s.library.Book(key)
	if !ok {
		http.Error(w, "Book not found.", http.StatusNotFound)
		return nil, false
	}
	return doc, true
}

func writeXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", xmlexport.ContentType)
	w.Header().Set("Cache-Control", xmlCacheControl)
	_, _ = w.Write([]byte(body))
}
