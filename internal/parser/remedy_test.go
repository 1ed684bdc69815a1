package parser

import (
	"testing"

	"github.com/aadjones/kent-repertory-etl/internal/repertory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRemedyListGrades(t *testing.T) {
	got := ParseRemedyList(`<b><font color="#ff0000">Acon.</font></b>, alum., <i><font color="#0000ff">tarent.</font></i>`)

	require.Len(t, got, 3)
	assert.Equal(t, []repertory.Remedy{
		{Name: "Acon.", Grade: repertory.GradePrimary},
		{Name: "alum.", Grade: repertory.GradePlain},
		{Name: "tarent.", Grade: repertory.GradeSecondary},
	}, got)
}

func TestParseRemedyListSkipsBlanksAndKeepsDuplicates(t *testing.T) {
	got := ParseRemedyList(" calc., , <b> </b>, calc.,")

	assert.Equal(t, []repertory.Remedy{
		{Name: "calc.", Grade: repertory.GradePlain},
		{Name: "calc.", Grade: repertory.GradePlain},
	}, got)
}

func TestParseRemedyListCommaInsideTag(t *testing.T) {
	got := ParseRemedyList(`<font color="#0000ff" face="Arial, Helvetica">bry.</font>, nux-v.`)

	require.Len(t, got, 2)
	assert.Equal(t, repertory.Remedy{Name: "bry.", Grade: repertory.GradeSecondary}, got[0])
	assert.Equal(t, "nux-v.", got[1].Name)
}

func TestGradeRemedy(t *testing.T) {
	tests := []struct {
		snippet string
		want    repertory.Grade
	}{
		{"puls.", repertory.GradePlain},
		{"<b>Bell.</b>", repertory.GradePrimary},
		{"<strong>Bell.</strong>", repertory.GradePrimary},
		{"<i>puls.</i>", repertory.GradeSecondary},
		{"<em>puls.</em>", repertory.GradeSecondary},
		{`<font color="RED">Sulph.</font>`, repertory.GradePrimary},
		{`<font color="#F00">Sulph.</font>`, repertory.GradePrimary},
		{`<span style="font-weight: bold; color: red">Sulph.</span>`, repertory.GradePrimary},
		{`<font color="blue">sep.</font>`, repertory.GradeSecondary},
		// A colour marker decides the grade even inside a bold wrapper.
		{`<b><font color="#0000ff">sep.</font></b>`, repertory.GradeSecondary},
		{`<font color="#0000ff">a</font><font color="#ff0000">b</font>`, repertory.GradePrimary},
	}
	for _, tt := range tests {
		got := GradeRemedy(tt.snippet)
		assert.Equal(t, tt.want, got.Grade, "grade for %q", tt.snippet)
	}
}

func TestGradeRemedyName(t *testing.T) {
	got := GradeRemedy("  <b> Nux-v. </b> ")
	assert.Equal(t, "Nux-v.", got.Name)
}
