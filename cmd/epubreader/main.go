package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Machiel/slugify"
	"github.com/spf13/cobra"

	"github.com/yuanying/epubreader/internal/loader"
	"github.com/yuanying/epubreader/internal/server"
	"github.com/yuanying/epubreader/internal/xmlexport"
)

const (
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"
	defaultJPEGQuality = 85
	defaultAddr        = ":8080"
)

var (
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validLogFormats    = []string{"text", "json"}
	validExportFormats = []string{"opf", "opds", "sitemap"}
)

// cliOptions holds settings shared by every subcommand.
type cliOptions struct {
	Load    loader.Options
	Timeout time.Duration
	Logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "epubreader",
		Short: "Load EPUB books into self-contained chapters and export their metadata",
		Long: `epubreader reads EPUB archives entirely in memory, inlines their images and
style sheets into each chapter, and exports book metadata as package metadata
XML, an OPDS catalog feed or a sitemap.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("log-level", defaultLogLevel, "Log level: debug, info, warn, error")
	flags.String("log-format", defaultLogFormat, "Log format: text, json")
	flags.BoolP("verbose", "v", false, "Enable debug logging (overrides --log-level)")
	flags.Int("concurrency", 0, "Resources or chapters processed in parallel (default: number of CPUs)")
	flags.Int("max-image-width", 0, "Downscale inlined images wider than this many pixels (0 keeps originals)")
	flags.Int("jpeg-quality", defaultJPEGQuality, "JPEG quality for downscaled images (1-100)")
	flags.Duration("timeout", 0, "Abort loading a book after this duration (0 disables)")

	root.AddCommand(newInfoCmd(), newExportCmd(), newServeCmd())
	return root
}

func readCLIOptions(cmd *cobra.Command) (cliOptions, error) {
	flags := cmd.Flags()
	logLevel, _ := flags.GetString("log-level")
	logFormat, _ := flags.GetString("log-format")
	verbose, _ := flags.GetBool("verbose")
	concurrency, _ := flags.GetInt("concurrency")
	maxWidth, _ := flags.GetInt("max-image-width")
	quality, _ := flags.GetInt("jpeg-quality")
	timeout, _ := flags.GetDuration("timeout")

	logLevel = strings.ToLower(logLevel)
	logFormat = strings.ToLower(logFormat)
	if !slices.Contains(validLogLevels, logLevel) {
		return cliOptions{}, fmt.Errorf("--log-level must be one of %s", strings.Join(validLogLevels, ", "))
	}
	if !slices.Contains(validLogFormats, logFormat) {
		return cliOptions{}, fmt.Errorf("--log-format must be one of %s", strings.Join(validLogFormats, ", "))
	}
	if concurrency < 0 {
		return cliOptions{}, fmt.Errorf("--concurrency must be >= 0")
	}
	if maxWidth < 0 {
		return cliOptions{}, fmt.Errorf("--max-image-width must be >= 0")
	}
	if quality < 1 || quality > 100 {
		return cliOptions{}, fmt.Errorf("--jpeg-quality must be between 1 and 100")
	}
	if timeout < 0 {
		return cliOptions{}, fmt.Errorf("--timeout must be >= 0")
	}
	if verbose {
		logLevel = "debug"
	}

	logger := buildLogger(cmd.ErrOrStderr(), logLevel, logFormat)
	return cliOptions{
		Load: loader.Options{
			Concurrency:   concurrency,
			MaxImageWidth: maxWidth,
			JPEGQuality:   quality,
			Logger:        logger,
		},
		Timeout: timeout,
		Logger:  logger,
	}, nil
}

// buildLogger creates a slog.Logger writing to w.
func buildLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// loadBooks loads each path in order, bounding each load by opts.Timeout.
func loadBooks(ctx context.Context, opts cliOptions, paths []string) ([]*loader.Document, error) {
	p := loader.NewPipeline(opts.Load)
	books := make([]*loader.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := loadWithTimeout(ctx, opts.Timeout, func(ctx context.Context) (*loader.Document, error) {
			return p.LoadFile(ctx, path)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		books = append(books, doc)
	}
	return books, nil
}

func loadWithTimeout(ctx context.Context, timeout time.Duration, load func(context.Context) (*loader.Document, error)) (*loader.Document, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return load(ctx)
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.epub>",
		Short: "Print metadata, chapters and resources of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			books, err := loadBooks(cmd.Context(), opts, args)
			if err != nil {
				return err
			}
			printInfo(cmd.OutOrStdout(), books[0])
			return nil
		},
	}
}

func printInfo(w io.Writer, doc *loader.Document) {
	md := doc.Metadata
	fmt.Fprintf(w, "Title: %s\n", doc.Title)
	for _, field := range []struct{ name, value string }{
		{"Creator", md.Creator},
		{"Publisher", md.Publisher},
		{"Language", md.Language},
		{"Identifier", md.Identifier},
		{"Date", md.Date},
		{"Rights", md.Rights},
	} {
		if field.value != "" {
			fmt.Fprintf(w, "%s: %s\n", field.name, field.value)
		}
	}
	if len(md.Subjects) > 0 {
		fmt.Fprintf(w, "Subjects: %s\n", strings.Join(md.Subjects, ", "))
	}
	if doc.CoverPath != "" {
		fmt.Fprintf(w, "Cover: %s\n", doc.CoverPath)
	}
	fmt.Fprintf(w, "Resources: %d\n", len(doc.Resources))
	fmt.Fprintf(w, "Chapters: %d\n", len(doc.Chapters))
	for i, ch := range doc.Chapters {
		fmt.Fprintf(w, "  %3d. %s (%s)\n", i+1, ch.Title, ch.Href)
	}
	if len(doc.Unlisted) > 0 {
		fmt.Fprintf(w, "Unlisted entries: %d\n", len(doc.Unlisted))
		for _, name := range doc.Unlisted {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file.epub>...",
		Short: "Export book metadata as XML (opf, opds or sitemap)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			format = strings.ToLower(format)
			if !slices.Contains(validExportFormats, format) {
				return fmt.Errorf("--format must be one of %s", strings.Join(validExportFormats, ", "))
			}
			output, _ := cmd.Flags().GetString("output")
			outputDir, _ := cmd.Flags().GetString("output-dir")
			if outputDir != "" && format != "opf" {
				return fmt.Errorf("--output-dir is only supported with --format opf")
			}
			if outputDir != "" && output != "" {
				return fmt.Errorf("--output and --output-dir are mutually exclusive")
			}
			if format == "opf" && outputDir == "" && len(args) != 1 {
				return fmt.Errorf("--format opf exports exactly one book without --output-dir, got %d", len(args))
			}
			site, err := siteFromFlags(cmd)
			if err != nil {
				return err
			}

			books, err := loadBooks(cmd.Context(), opts, args)
			if err != nil {
				return err
			}

			if outputDir != "" {
				return exportPackageFiles(opts.Logger, outputDir, books)
			}

			out, err := exportXML(format, site, books)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), out)
				return err
			}
			if err := os.WriteFile(output, []byte(out), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			opts.Logger.Info("exported", slog.String("format", format), slog.String("output", output))
			return nil
		},
	}
	cmd.Flags().StringP("format", "f", "opf", "Export format: opf, opds, sitemap")
	cmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringP("output-dir", "d", "", "Write one package metadata file per book into this directory (opf only)")
	addSiteFlags(cmd)
	return cmd
}

func exportXML(format string, site xmlexport.Site, books []*loader.Document) (string, error) {
	switch format {
	case "opf":
		return xmlexport.PackageMetadata(books[0]), nil
	case "opds":
		return xmlexport.Catalog(site, books)
	case "sitemap":
		return xmlexport.Sitemap(site, books), nil
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

// exportPackageFiles writes <slug>.opf for every book into dir.
func exportPackageFiles(logger *slog.Logger, dir string, books []*loader.Document) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	used := make(map[string]bool, len(books))
	for i, doc := range books {
		name := packageFileName(doc, i, used)
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(xmlexport.PackageMetadata(doc)), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		logger.Info("exported", slog.String("format", "opf"), slog.String("output", path))
	}
	return nil
}

// packageFileName derives a unique file name from the book title.
func packageFileName(doc *loader.Document, index int, used map[string]bool) string {
	base := slugify.Slugify(doc.Title)
	if base == "" {
		base = fmt.Sprintf("book-%d", index+1)
	}
	name := base + ".opf"
	for n := 2; used[name]; n++ {
		name = fmt.Sprintf("%s-%d.opf", base, n)
	}
	used[name] = true
	return name
}

func addSiteFlags(cmd *cobra.Command) {
	cmd.Flags().String("base-url", xmlexport.DefaultBaseURL, "Public base URL used in catalog and sitemap links")
	cmd.Flags().String("reader-template", xmlexport.DefaultReaderTemplate, "URI template (variables: base, book) for reader links")
}

func siteFromFlags(cmd *cobra.Command) (xmlexport.Site, error) {
	baseURL, _ := cmd.Flags().GetString("base-url")
	tmpl, _ := cmd.Flags().GetString("reader-template")
	if err := xmlexport.ValidateReaderTemplate(tmpl); err != nil {
		return xmlexport.Site{}, fmt.Errorf("--reader-template: %w", err)
	}
	return xmlexport.Site{BaseURL: baseURL, ReaderTemplate: tmpl}, nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a directory of EPUB books over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			dir, _ := cmd.Flags().GetString("dir")
			addr, _ := cmd.Flags().GetString("addr")
			site, err := siteFromFlags(cmd)
			if err != nil {
				return err
			}

			library, err := server.LoadLibrary(cmd.Context(), loader.NewPipeline(opts.Load), dir, opts.Logger)
			if err != nil {
				return err
			}
			opts.Logger.Info("library loaded", slog.String("dir", dir), slog.Int("books", len(library.Books())))

			srv := server.New(library, server.Options{
				Site:   site,
				Logger: opts.Logger,
			})
			opts.Logger.Info("listening", slog.String("addr", addr))
			return http.ListenAndServe(addr, srv.Handler())
		},
	}
	cmd.Flags().String("dir", ".", "Directory containing .epub files")
	cmd.Flags().String("addr", defaultAddr, "Listen address")
	addSiteFlags(cmd)
	return cmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
