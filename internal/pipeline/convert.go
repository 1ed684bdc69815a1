package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aadjones/kent-repertory-etl/internal/fetch"
	"github.com/aadjones/kent-repertory-etl/internal/logging"
	"github.com/aadjones/kent-repertory-etl/internal/metrics"
	"github.com/aadjones/kent-repertory-etl/internal/parser"
	"github.com/aadjones/kent-repertory-etl/internal/repertory"
	"go.uber.org/zap"
)

// ConverterOptions configures a Converter. Zero values are usable.
type ConverterOptions struct {
	MaxDepth       int
	DefaultSection string
	// RawDir is where bare corpus identifiers are looked up.
	RawDir  string
	Metrics *metrics.Metrics
	Stats   *ConversionStats
	Logger  *zap.Logger
}

// Converter fetches sources and parses them into canonical documents.
type Converter struct {
	fetcher fetch.Fetcher
	opts    ConverterOptions
	log     *zap.Logger
	backoff func(int) time.Duration
}

func NewConverter(f fetch.Fetcher, opts ConverterOptions) *Converter {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Stats == nil {
		opts.Stats = NewConversionStats()
	}
	return &Converter{fetcher: f, opts: opts, log: log, backoff: Backoff}
}

// Stats returns the per-section conversion tally.
func (c *Converter) Stats() *ConversionStats {
	return c.opts.Stats
}

// Result is one converted source.
type Result struct {
	Source      string
	ContentHash string
	Document    *repertory.Document
	Canonical   repertory.CanonicalDocument
	Rubrics     int
	Remedies    int
}

// Resolve maps corpus identifiers to local raw files.
func (c *Converter) Resolve(source string) string {
	return fetch.ResolveSource(source, c.opts.RawDir)
}

// Fetch retrieves the markup for source, retrying transient failures.
func (c *Converter) Fetch(ctx context.Context, source string) (string, error) {
	source = c.Resolve(source)
	markup, err := fetchWithRetry(ctx, c.fetcher, source, c.backoff, c.log)
	if err != nil {
		c.opts.Metrics.FetchFailed(fetch.ErrorKind(err))
		return "", err
	}
	return markup, nil
}

// Parse converts already fetched markup. source is only used to infer page
// hints for corpus files.
func (c *Converter) Parse(source, markup string, hints Hints) (*Result, error) {
	opts := c.Options(source, hints)
	opts.Sink = logging.ParserSink(c.log.With(zap.String("source", source)))

	start := time.Now()
	doc, err := parser.Parse(markup, opts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}
	elapsed := time.Since(start)

	rubrics, remedies := doc.Counts()
	c.opts.Stats.Record(doc, elapsed)
	c.opts.Metrics.ObserveParse(doc.Section, rubrics, remedies, elapsed)

	return &Result{
		Source:      source,
		ContentHash: ContentHashHex([]byte(markup)),
		Document:    doc,
		Canonical:   repertory.Canonicalize(doc),
		Rubrics:     rubrics,
		Remedies:    remedies,
	}, nil
}

// Convert fetches and parses one source.
func (c *Converter) Convert(ctx context.Context, source string, hints Hints) (*Result, error) {
	markup, err := c.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	return c.Parse(source, markup, hints)
}

// Options resolves the parser options for source. Explicit hints win; a
// corpus file name supplies the start page and page range.
func (c *Converter) Options(source string, hints Hints) parser.Options {
	opts := parser.Options{
		Section:   hints.Section,
		StartPage: hints.StartPage,
		PageInfo:  hints.PageInfo,
		MaxDepth:  c.opts.MaxDepth,
	}
	if opts.Section == "" {
		opts.Section = c.opts.DefaultSection
	}
	if num, ok := fetch.ParseIdentifier(source); ok {
		if opts.StartPage == "" {
			opts.StartPage = fetch.StartPage(num)
		}
		if opts.PageInfo == "" {
			opts.PageInfo = fetch.PageRange(num)
		}
	}
	return opts
}

var (
	filenameSpace   = regexp.MustCompile(`\s+`)
	filenameInvalid = regexp.MustCompile(`[^a-z0-9_]`)
)

// OutputFilename derives the JSON file name for a chapter title:
// "Kent Repertory: MIND" -> "chapter_kent_repertory_mind.json".
func OutputFilename(title string) string {
	if strings.TrimSpace(title) == "" {
		title = "chapter"
	}
	clean := strings.ToLower(title)
	clean = filenameSpace.ReplaceAllString(clean, "_")
	clean = filenameInvalid.ReplaceAllString(clean, "")
	return "chapter_" + clean + ".json"
}

// EncodeChapter writes doc as indented JSON without escaping non-ASCII or HTML.
func EncodeChapter(w io.Writer, doc repertory.CanonicalDocument) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteChapter saves doc under dir and returns the file path.
func WriteChapter(dir string, doc repertory.CanonicalDocument) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, OutputFilename(doc.Title))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := EncodeChapter(f, doc); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
