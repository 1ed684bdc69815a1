package parser

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/aadjones/kent-repertory-etl/internal/repertory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func htmlPage(markup string) string {
	return "<html><head><title>Kent Repertory: MIND</title></head><body>" + markup + "</body></html>"
}

func TestParseCrossReferenceWithoutColon(t *testing.T) {
	doc, err := Parse(htmlPage("<dir><p>ABANDONED (See Forsaken)</p></dir>"), Options{Section: "MIND"})
	require.NoError(t, err)

	require.Len(t, doc.Pages, 1)
	require.Len(t, doc.Pages[0].Content, 1)
	r := doc.Pages[0].Content[0]
	assert.Equal(t, "ABANDONED", r.Title)
	assert.Equal(t, []string{"Forsaken"}, r.RelatedRubrics)
	assert.Empty(t, r.Remedies)

	out := repertory.Canonicalize(doc)
	data, err := json.Marshal(out.Pages[0].Content[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"rubric":"ABANDONED","related_rubrics":["Forsaken"],"remedies":[]}`, string(data))
}

func TestParseMergesDuplicateRubrics(t *testing.T) {
	markup := htmlPage(`<dir>
		<p><b>AMOROUS</b>: calc.</p>
		<p><b>AMOROUS</b>: calc.</p>
	</dir>`)

	doc, err := Parse(markup, Options{Section: "MIND"})
	require.NoError(t, err)

	require.Len(t, doc.Pages, 1)
	require.Len(t, doc.Pages[0].Content, 1)
	r := doc.Pages[0].Content[0]
	assert.Equal(t, []repertory.Remedy{{Name: "calc.", Grade: repertory.GradePlain}}, r.Remedies)
	assert.Equal(t, "calc. calc.", r.Description)
}

func TestParsePageBreak(t *testing.T) {
	markup := `<dir>
		<p><b>MIND p. 1</b></p>
		<p><b>ANXIETY: remedy1</b></p>
		<p>---------- MIND p. 5</p>
		<p><b>DEPRESSIVE: remedy2</b></p>
	</dir>`

	doc, err := Parse(markup, Options{})
	require.NoError(t, err)

	assert.Equal(t, "MIND", doc.Section)
	assert.Equal(t, PlaceholderTitle, doc.Title)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, "P1", doc.Pages[0].Page)
	assert.Equal(t, []string{"ANXIETY"}, titles(doc.Pages[0].Content))
	assert.Equal(t, "P5", doc.Pages[1].Page)
	assert.Equal(t, []string{"DEPRESSIVE"}, titles(doc.Pages[1].Content))
	assert.Equal(t, "P5", doc.Pages[1].Content[0].Page)
}

func TestParseDecorativeLineKeepsRubricOpen(t *testing.T) {
	markup := htmlPage(`<dir>
		<p><b>ANXIETY</b>: acon.</p>
		<p>---------->>>>></p>
		<p>at night in bed</p>
	</dir>`)

	doc, err := Parse(markup, Options{Section: "MIND"})
	require.NoError(t, err)

	require.Len(t, doc.Pages, 1)
	require.Len(t, doc.Pages[0].Content, 1)
	r := doc.Pages[0].Content[0]
	assert.Equal(t, "ANXIETY", r.Title)
	assert.Equal(t, "acon. at night in bed", r.Description)
}

func TestParseBoundaryWinsOverHeader(t *testing.T) {
	markup := htmlPage(`<dir>
		<p><b>ANXIETY</b>: acon.</p>
		<p><b>MIND p. 2</b></p>
		<p><b>BUSINESS</b>: nux-v.</p>
	</dir>`)

	doc, err := Parse(markup, Options{Section: "MIND"})
	require.NoError(t, err)

	require.Len(t, doc.Pages, 2)
	assert.Equal(t, []string{"ANXIETY"}, titles(doc.Pages[0].Content))
	assert.Equal(t, "P2", doc.Pages[1].Page)
	assert.Equal(t, []string{"BUSINESS"}, titles(doc.Pages[1].Content))
	for _, pg := range doc.Pages {
		for _, r := range pg.Content {
			assert.NotContains(t, r.Title, "p. 2")
		}
	}
}

func TestParseNestedOutline(t *testing.T) {
	markup := htmlPage(`<dir>
		<p><b>ANXIETY</b>: acon., <i>bry.</i></p>
		<dir>
			<p><b>morning</b>: <b>Graph.</b></p>
			<p><b>evening</b>: puls.</p>
		</dir>
		<p><b>BUSINESS</b>: nux-v.</p>
	</dir>`)

	doc, err := Parse(markup, Options{Section: "MIND"})
	require.NoError(t, err)

	require.Len(t, doc.Pages, 1)
	content := doc.Pages[0].Content
	assert.Equal(t, []string{"ANXIETY", "BUSINESS"}, titles(content))
	assert.Equal(t, []string{"morning", "evening"}, titles(content[0].Subrubrics))
	assert.Equal(t, []repertory.Remedy{
		{Name: "acon.", Grade: repertory.GradePlain},
		{Name: "bry.", Grade: repertory.GradeSecondary},
	}, content[0].Remedies)
	assert.Equal(t, repertory.GradePrimary, content[0].Subrubrics[0].Remedies[0].Grade)
}

func TestParseListItemsAndLineBreaks(t *testing.T) {
	markup := htmlPage(`<ul>
		<li><b>FEAR</b>: acon.<br><b>FORGETFUL</b>: anac.
			<ul><li>morning: nux-v.</li></ul>
		</li>
	</ul>`)

	doc, err := Parse(markup, Options{Section: "MIND"})
	require.NoError(t, err)

	require.Len(t, doc.Pages, 1)
	content := doc.Pages[0].Content
	assert.Equal(t, []string{"FEAR", "FORGETFUL"}, titles(content))
	assert.Equal(t, []string{"morning"}, titles(content[1].Subrubrics))
}

func TestParseOrphanedSublistFloatsUp(t *testing.T) {
	markup := htmlPage(`<dir>
		<dir><p><b>sub</b>: x.</p></dir>
		<p><b>TOP</b>: y.</p>
	</dir>`)

	doc, err := Parse(markup, Options{Section: "MIND"})
	require.NoError(t, err)

	require.Len(t, doc.Pages, 1)
	assert.Equal(t, []string{"sub", "TOP"}, titles(doc.Pages[0].Content))
}

func TestParseContinuationSeedsRubric(t *testing.T) {
	doc, err := Parse(htmlPage("<dir><p>sadness after eating</p></dir>"), Options{Section: "MIND"})
	require.NoError(t, err)

	require.Len(t, doc.Pages, 1)
	assert.Equal(t, []string{"sadness after eating"}, titles(doc.Pages[0].Content))
}

func TestParseDropsDecorativeHeader(t *testing.T) {
	markup := htmlPage(`<dir>
		<p><b>-----</b>: acon.</p>
		<p><b>ANXIETY</b>: bry.</p>
	</dir>`)

	var events []Event
	doc, err := Parse(markup, Options{Section: "MIND", Sink: func(e Event) { events = append(events, e) }})
	require.NoError(t, err)

	require.Len(t, doc.Pages, 1)
	assert.Equal(t, []string{"ANXIETY"}, titles(doc.Pages[0].Content))

	var dropped int
	for _, e := range events {
		if e.Kind == EventHeaderDropped {
			dropped++
		}
	}
	assert.Equal(t, 1, dropped)
}

func TestParseDropsRestatedSectionTitle(t *testing.T) {
	markup := htmlPage(`<dir>
		<p>MIND p. 1</p>
		<p><b>MIND</b></p>
		<p><b>ANXIETY</b>: bry.</p>
	</dir>`)

	doc, err := Parse(markup, Options{})
	require.NoError(t, err)

	assert.Equal(t, "Kent Repertory: MIND", doc.Title)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, []string{"ANXIETY"}, titles(doc.Pages[0].Content))
}

func TestParseDefaults(t *testing.T) {
	var events []Event
	doc, err := Parse("<p><b>ANXIETY</b>: bry.</p>", Options{Sink: func(e Event) { events = append(events, e) }})
	require.NoError(t, err)

	assert.Equal(t, PlaceholderTitle, doc.Title)
	assert.Equal(t, UnknownSection, doc.Section)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, DefaultPage, doc.Pages[0].Page)

	kinds := make(map[EventKind]bool)
	for _, e := range events {
		kinds[e.Kind] = true
	}
	assert.True(t, kinds[EventPlaceholderTitle])
	assert.True(t, kinds[EventSectionUnresolved])
}

func TestParseStartPageAndPageInfo(t *testing.T) {
	doc, err := Parse(htmlPage("<dir><p><b>ANXIETY</b>: bry.</p></dir>"), Options{
		Section:   "MIND",
		StartPage: "6",
		PageInfo:  "p. 6-10",
	})
	require.NoError(t, err)

	assert.Equal(t, "p. 6-10", doc.PageInfo)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, "P6", doc.Pages[0].Page)
}

func TestParseThreadsPageAcrossLists(t *testing.T) {
	markup := htmlPage(`
		<dir><p><b>ANXIETY</b>: bry.</p><p>MIND p. 7</p></dir>
		<dir><p><b>BUSINESS</b>: nux-v.</p></dir>`)

	doc, err := Parse(markup, Options{Section: "MIND"})
	require.NoError(t, err)

	require.Len(t, doc.Pages, 2)
	assert.Equal(t, "P7", doc.Pages[1].Page)
	assert.Equal(t, []string{"BUSINESS"}, titles(doc.Pages[1].Content))
}

func TestParseThreadsPageOutOfNestedList(t *testing.T) {
	markup := htmlPage(`<dir>
		<p><b>ANXIETY</b>: acon.</p>
		<dir><p>morning</p><p>MIND p. 7</p></dir>
		<p><b>FEAR</b>: bry.</p>
	</dir>`)

	doc, err := Parse(markup, Options{Section: "MIND"})
	require.NoError(t, err)

	require.Len(t, doc.Pages, 2)
	assert.Equal(t, "P1", doc.Pages[0].Page)
	assert.Equal(t, []string{"ANXIETY"}, titles(doc.Pages[0].Content))
	assert.Equal(t, []string{"morning"}, titles(doc.Pages[0].Content[0].Subrubrics))
	assert.Equal(t, "P7", doc.Pages[1].Page)
	assert.Equal(t, []string{"FEAR"}, titles(doc.Pages[1].Content))
	assert.Equal(t, "P7", doc.Pages[1].Content[0].Page)
}

func TestParsePageReferenceInCrossReference(t *testing.T) {
	markup := htmlPage(`<dir>
		<p><b>ANXIETY</b> (See Fear, MIND p. 45): acon.</p>
		<p><b>BUSINESS</b>: nux-v.</p>
	</dir>`)

	var events []Event
	doc, err := Parse(markup, Options{Section: "MIND", Sink: func(e Event) { events = append(events, e) }})
	require.NoError(t, err)

	require.Len(t, doc.Pages, 1)
	assert.Equal(t, "P1", doc.Pages[0].Page)
	content := doc.Pages[0].Content
	require.Equal(t, []string{"ANXIETY", "BUSINESS"}, titles(content))
	assert.Equal(t, []string{"Fear", "MIND p. 45"}, content[0].RelatedRubrics)
	assert.Equal(t, []repertory.Remedy{{Name: "acon.", Grade: repertory.GradePlain}}, content[0].Remedies)
	for _, e := range events {
		assert.NotEqual(t, EventBoundary, e.Kind)
	}
}

func TestParseDecorativeTitleAfterBoundary(t *testing.T) {
	collect := func(markup string) (*repertory.Document, int) {
		var dropped int
		doc, err := Parse(htmlPage(markup), Options{Section: "MIND", Sink: func(e Event) {
			if e.Kind == EventHeaderDropped {
				dropped++
			}
		}})
		require.NoError(t, err)
		return doc, dropped
	}

	t.Run("kept when paged by a boundary", func(t *testing.T) {
		doc, dropped := collect(`<dir><p>MIND p. 3</p><p>--- ( )</p></dir>`)
		require.Len(t, doc.Pages, 1)
		assert.Equal(t, "P3", doc.Pages[0].Page)
		assert.Equal(t, []string{"---"}, titles(doc.Pages[0].Content))
		assert.Zero(t, dropped)
	})

	t.Run("dropped on the starting page", func(t *testing.T) {
		doc, dropped := collect(`<dir><p>--- ( )</p></dir>`)
		assert.Empty(t, doc.Pages)
		assert.Equal(t, 1, dropped)
	})
}

func TestParseNeverKeepsEmptyTitle(t *testing.T) {
	for name, markup := range map[string]string{
		"after boundary":   `<dir><p>MIND p. 3</p><p>()</p></dir>`,
		"starting page":    `<dir><p>( )</p></dir>`,
		"before a rubric":  `<dir><p>MIND p. 3</p><p>()</p><p><b>ANXIETY</b>: acon.</p></dir>`,
		"in a nested list": `<dir><p>MIND p. 3</p><dir><p>( )</p></dir></dir>`,
	} {
		t.Run(name, func(t *testing.T) {
			var dropped int
			doc, err := Parse(htmlPage(markup), Options{Section: "MIND", Sink: func(e Event) {
				if e.Kind == EventHeaderDropped {
					dropped++
				}
			}})
			require.NoError(t, err)

			assert.Equal(t, 1, dropped)
			for _, pg := range doc.Pages {
				repertory.Walk(pg.Content, func(r *repertory.Rubric, _ int) {
					assert.NotEmpty(t, strings.TrimSpace(r.Title))
				})
			}
		})
	}
}

func TestParseTooDeep(t *testing.T) {
	markup := strings.Repeat("<dir>", 10) + "<p><b>X</b></p>" + strings.Repeat("</dir>", 10)

	_, err := Parse(markup, Options{Section: "MIND", MaxDepth: 5})
	require.ErrorIs(t, err, ErrTooDeep)

	_, err = Parse(markup, Options{Section: "MIND"})
	require.NoError(t, err)
}

func TestParseTitlesAndRemediesAreClean(t *testing.T) {
	markup := htmlPage(`<dir>
		<p><b>FEAR (of dark) (see Anxiety)</b>: acon., acon., <b>bell.</b></p>
		<dir><p>night: bry., bry.</p></dir>
		<p>DELUSION: (see Imagination) calc.</p>
		<p><b>fear</b>: acon., stram.</p>
	</dir>`)

	doc, err := Parse(markup, Options{Section: "MIND"})
	require.NoError(t, err)

	for _, pg := range doc.Pages {
		seen := make(map[string]bool)
		for _, r := range pg.Content {
			key := strings.ToLower(r.Title)
			assert.False(t, seen[key], "duplicate top-level title %q", r.Title)
			seen[key] = true
		}
		repertory.Walk(pg.Content, func(r *repertory.Rubric, _ int) {
			assert.NotContains(t, r.Title, ":")
			assert.NotContains(t, r.Title, "(")
			pairs := make(map[repertory.Remedy]bool)
			for _, rem := range r.Remedies {
				assert.False(t, pairs[rem], "duplicate remedy %v in %q", rem, r.Title)
				pairs[rem] = true
			}
		})
	}
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	markup := htmlPage(`<dir>
		<p><b>ANXIETY</b>: acon., <i>bry.</i></p>
		<dir><p><b>morning</b></p></dir>
		<p>MIND p. 2</p>
		<p>ABANDONED (See Forsaken)</p>
	</dir>`)
	doc, err := Parse(markup, Options{Section: "MIND", PageInfo: "p. 1-5"})
	require.NoError(t, err)

	first, err := json.Marshal(repertory.Canonicalize(doc))
	require.NoError(t, err)

	var decoded repertory.CanonicalDocument
	require.NoError(t, json.Unmarshal(first, &decoded))
	second, err := json.Marshal(decoded.Prune())
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	assert.NotContains(t, string(first), "description")
}

func TestParseReader(t *testing.T) {
	doc, err := ParseReader(strings.NewReader(htmlPage("<dir><p>MIND p. 1</p><p><b>ANXIETY</b>: bry.</p></dir>")), Options{})
	require.NoError(t, err)
	assert.Equal(t, "MIND", doc.Section)
}
