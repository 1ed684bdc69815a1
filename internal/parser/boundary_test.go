package parser

import (
	"testing"

	"github.com/aadjones/kent-repertory-etl/internal/repertory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(rs []*repertory.Rubric) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Title)
	}
	return out
}

func TestGroupByPageFlatBoundaries(t *testing.T) {
	rubrics := []*repertory.Rubric{
		{Title: "VERTIGO p.100"},
		{Title: "Rubric A"},
		{Title: "VERTIGO p.101"},
		{Title: "Rubric C"},
	}

	groups := GroupByPage(rubrics, "VERTIGO")

	require.Len(t, groups, 2)
	assert.Equal(t, "P100", groups[0].Page)
	assert.Equal(t, []string{"Rubric A"}, titles(groups[0].Content))
	assert.Equal(t, "P101", groups[1].Page)
	assert.Equal(t, []string{"Rubric C"}, titles(groups[1].Content))
}

func TestGroupByPageStampTransitions(t *testing.T) {
	rubrics := []*repertory.Rubric{
		{Title: "A", Page: "P1"},
		{Title: "B", Page: "P1"},
		{Title: "C", Page: "P5"},
		{Title: "D"},
	}

	groups := GroupByPage(rubrics, "MIND")

	require.Len(t, groups, 2)
	assert.Equal(t, "P1", groups[0].Page)
	assert.Equal(t, []string{"A", "B"}, titles(groups[0].Content))
	assert.Equal(t, "P5", groups[1].Page)
	assert.Equal(t, []string{"C", "D"}, titles(groups[1].Content))
}

func TestGroupByPageDropsRestatedSection(t *testing.T) {
	rubrics := []*repertory.Rubric{
		{Title: "Mind", Page: "P1"},
		{Title: "ANXIETY", Page: "P1"},
	}

	groups := GroupByPage(rubrics, "MIND")

	require.Len(t, groups, 1)
	assert.Equal(t, []string{"ANXIETY"}, titles(groups[0].Content))
}

func TestGroupByPageDefaultPage(t *testing.T) {
	groups := GroupByPage([]*repertory.Rubric{{Title: "A"}}, "")
	require.Len(t, groups, 1)
	assert.Equal(t, DefaultPage, groups[0].Page)
}

func TestSeedSection(t *testing.T) {
	assert.Equal(t, "MIND", SeedSection("Kent Repertory KENT p. 3 MIND p. 1 ANXIETY"))
	assert.Equal(t, "VERTIGO", SeedSection("intro VERTIGO P.100"))
	assert.Equal(t, "", SeedSection("no markers here"))
}

func TestNormalizeSubjectTitle(t *testing.T) {
	assert.Equal(t, "MIND", NormalizeSubjectTitle("MIND p. 1"))
	assert.Equal(t, "MIND", NormalizeSubjectTitle("MIND"))
}

func TestPageMarkerStripsLeadingZeros(t *testing.T) {
	assert.Equal(t, "P5", pageMarker("005"))
	assert.Equal(t, "P0", pageMarker("0"))
}
