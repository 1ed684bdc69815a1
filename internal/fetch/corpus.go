package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// The repertory is published as numbered files, each covering five pages.
// File number n starts on page n+1 and lives under one of four volume
// directories.
const (
	volumeBase0 = "http://homeoint.org/books/kentrep/"
	volumeBase1 = "http://homeoint.org/books/kentrep1/"
	volumeBase2 = "http://homeoint.org/books/kentrep2/"
	volumeBase3 = "http://homeoint.org/books/kentrep3/"

	// PagesPerFile is the number of printed pages in one corpus file.
	PagesPerFile = 5
	// LastFile is the highest file number in the corpus.
	LastFile = 1420
)

// SourceURL returns the published URL for corpus file num.
func SourceURL(num int) string {
	base := volumeBase0
	switch {
	case num >= 1075:
		base = volumeBase3
	case num >= 725:
		base = volumeBase2
	case num >= 305:
		base = volumeBase1
	}
	return fmt.Sprintf("%skent%04d.htm#P%d", base, num, num+1)
}

// RawFilename is the local name a downloaded file is saved under.
func RawFilename(num int) string {
	return fmt.Sprintf("kent%04d_P%d.html", num, num+1)
}

// StartPage is the page marker of the first page in file num.
func StartPage(num int) string {
	return fmt.Sprintf("P%d", num+1)
}

// PageRange describes the pages covered by file num, e.g. "p. 6-10".
func PageRange(num int) string {
	return fmt.Sprintf("p. %d-%d", num+1, num+PagesPerFile)
}

// Identifiers lists file numbers from start to end inclusive.
func Identifiers(start, end, step int) []int {
	if step <= 0 {
		step = PagesPerFile
	}
	var nums []int
	for n := start; n <= end; n += step {
		nums = append(nums, n)
	}
	return nums
}

var (
	bareIdentifier = regexp.MustCompile(`^\d{1,4}$`)
	fileIdentifier = regexp.MustCompile(`(?i)kent(\d{4})`)
)

// ParseIdentifier extracts a corpus file number from "0005", "kent0005.htm"
// or "data/raw/kent0005_P6.html".
func ParseIdentifier(source string) (int, bool) {
	digits := ""
	if bareIdentifier.MatchString(source) {
		digits = source
	} else if m := fileIdentifier.FindStringSubmatch(filepath.Base(source)); m != nil {
		digits = m[1]
	}
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsIdentifier reports whether source is a bare file number such as "0005".
func IsIdentifier(source string) bool {
	return bareIdentifier.MatchString(source)
}

// ResolveSource maps a bare identifier such as "0005" to its raw file under
// rawDir. Other sources are returned unchanged.
func ResolveSource(source, rawDir string) string {
	if !IsIdentifier(source) {
		return source
	}
	n, ok := ParseIdentifier(source)
	if !ok {
		return source
	}
	return filepath.Join(rawDir, RawFilename(n))
}

// Download saves corpus files to dir using at most concurrency workers.
// Files that fail are logged and reported in the returned count; the error
// is only non-nil when the context is canceled or dir cannot be created.
func Download(ctx context.Context, f Fetcher, nums []int, dir string, concurrency int, logger *zap.Logger) (failed int, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", dir, err)
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]error, len(nums))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, num := range nums {
		g.Go(func() error {
			url := SourceURL(num)
			markup, err := f.Fetch(gctx, url)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				results[i] = err
				logger.Warn("download failed", zap.String("url", url), zap.Error(err))
				return nil
			}
			path := filepath.Join(dir, RawFilename(num))
			if err := os.WriteFile(path, []byte(markup), 0o644); err != nil {
				results[i] = err
				logger.Warn("save failed", zap.String("path", path), zap.Error(err))
				return nil
			}
			logger.Info("downloaded", zap.String("url", url), zap.String("path", path))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	for _, r := range results {
		if r != nil {
			failed++
		}
	}
	return failed, nil
}
