package fetch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
)

// FileFetcher reads saved pages from disk. Files are decoded by BOM or
// <meta charset> when present, as UTF-8 when valid, and as Windows-1252
// otherwise, which is how the original corpus is encoded.
type FileFetcher struct{}

func (FileFetcher) Fetch(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read %s: %w", path, ErrNotFound)
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return Decode(data)
}

// Decode converts raw page bytes to a UTF-8 string.
func Decode(data []byte) (string, error) {
	enc, _, certain := charset.DetermineEncoding(data, "text/html")
	if !certain && !utf8.Valid(data) {
		enc = charmap.Windows1252
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode page: %w", err)
	}
	return string(out), nil
}
