package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aadjones/kent-repertory-etl/internal/fetch"
	"github.com/aadjones/kent-repertory-etl/internal/metrics"
	"github.com/aadjones/kent-repertory-etl/internal/repertory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mindPage = `<html><head><title>Kent Repertory: MIND</title></head><body><dir>
<p><b>ANXIETY</b>: acon., <i>bry.</i></p>
<p><b>FEAR</b>: <font color="red">Acon.</font></p>
</dir></body></html>`

// mapFetcher serves markup by source and fails for unknown sources.
type mapFetcher map[string]string

func (m mapFetcher) Fetch(_ context.Context, source string) (string, error) {
	markup, ok := m[source]
	if !ok {
		return "", fetch.ErrNotFound
	}
	return markup, nil
}

func TestConverterConvert(t *testing.T) {
	m := metrics.New()
	conv := NewConverter(mapFetcher{"mind.html": mindPage}, ConverterOptions{DefaultSection: "MIND", Metrics: m})

	res, err := conv.Convert(context.Background(), "mind.html", Hints{})
	require.NoError(t, err)

	assert.Equal(t, "mind.html", res.Source)
	assert.Equal(t, ContentHashHex([]byte(mindPage)), res.ContentHash)
	assert.Equal(t, 2, res.Rubrics)
	assert.Equal(t, 3, res.Remedies)
	assert.Equal(t, "Kent Repertory: MIND", res.Canonical.Title)
	assert.Equal(t, "MIND", res.Canonical.Section)
	require.Len(t, res.Canonical.Pages, 1)
	assert.Equal(t, "P1", res.Canonical.Pages[0].Page)
	assert.Equal(t, []repertory.CanonicalRemedy{{Name: "Acon.", Grade: 3}}, res.Canonical.Pages[0].Content[1].Remedies)

	mind, ok := conv.Stats().Section("MIND")
	require.True(t, ok)
	assert.Equal(t, 1, mind.Documents)
	assert.Equal(t, 2, mind.Rubrics)
	assert.Equal(t, 3, mind.Remedies)
}

func TestConverterFetchError(t *testing.T) {
	conv := NewConverter(mapFetcher{}, ConverterOptions{})
	_, err := conv.Convert(context.Background(), "missing.html", Hints{})
	assert.ErrorIs(t, err, fetch.ErrNotFound)
}

func TestConverterResolvesIdentifiers(t *testing.T) {
	path := filepath.Join("raw", "kent0005_P6.html")
	conv := NewConverter(mapFetcher{path: mindPage}, ConverterOptions{RawDir: "raw"})

	markup, err := conv.Fetch(context.Background(), "0005")
	require.NoError(t, err)
	assert.Equal(t, mindPage, markup)
	assert.Equal(t, path, conv.Resolve("0005"))
}

func TestConverterOptions(t *testing.T) {
	conv := NewConverter(mapFetcher{}, ConverterOptions{DefaultSection: "MIND", MaxDepth: 10})

	opts := conv.Options("data/raw/kent0005_P6.html", Hints{})
	assert.Equal(t, "MIND", opts.Section)
	assert.Equal(t, "P6", opts.StartPage)
	assert.Equal(t, "p. 6-10", opts.PageInfo)
	assert.Equal(t, 10, opts.MaxDepth)

	opts = conv.Options("data/raw/kent0005_P6.html", Hints{Section: "VERTIGO", StartPage: "P7", PageInfo: "p. 7"})
	assert.Equal(t, "VERTIGO", opts.Section)
	assert.Equal(t, "P7", opts.StartPage)
	assert.Equal(t, "p. 7", opts.PageInfo)

	opts = conv.Options("chapter.html", Hints{})
	assert.Empty(t, opts.StartPage)
	assert.Empty(t, opts.PageInfo)
}

func TestOutputFilename(t *testing.T) {
	assert.Equal(t, "chapter_kent_repertory_mind.json", OutputFilename("Kent Repertory: MIND"))
	assert.Equal(t, "chapter_no_title_found.json", OutputFilename("No title found"))
	assert.Equal(t, "chapter_chapter.json", OutputFilename("  "))
}

func TestWriteChapter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "processed")
	doc := repertory.CanonicalDocument{
		Title:   "Kent: MIND",
		Section: "MIND",
		Pages: []repertory.CanonicalPage{{
			Page:    "P1",
			Content: []repertory.CanonicalRubric{{Rubric: "CAFÉ <b>", Remedies: []repertory.CanonicalRemedy{}}},
		}},
	}

	path, err := WriteChapter(dir, doc)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "chapter_kent_mind.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rubric": "CAFÉ <b>"`)

	var back repertory.CanonicalDocument
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, doc, back)
}

func TestEncodeChapterIndents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeChapter(&buf, repertory.CanonicalDocument{Title: "T"}))
	assert.Contains(t, buf.String(), "\n  \"title\": \"T\"")
}
