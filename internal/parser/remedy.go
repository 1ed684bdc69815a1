package parser

import (
	"strings"

	"github.com/aadjones/kent-repertory-etl/internal/repertory"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type emphasis int

const (
	emphasisNone emphasis = iota
	emphasisSecondary
	emphasisPrimary
)

// The corpus marks primary remedies in red and secondary ones in blue.
var emphasisColors = map[string]emphasis{
	"#ff0000": emphasisPrimary,
	"#f00":    emphasisPrimary,
	"red":     emphasisPrimary,
	"#0000ff": emphasisSecondary,
	"#00f":    emphasisSecondary,
	"blue":    emphasisSecondary,
}

// GradeRemedy parses a single remedy mention and grades it by emphasis.
// Colour markers are scanned in document order: the first primary marker
// wins outright, secondary markers raise the grade to 2. Without any colour
// marker a bold wrapper gives 3 and an italic wrapper gives 2.
func GradeRemedy(snippet string) repertory.Remedy {
	nodes := parseFragment(snippet)
	grade := repertory.GradePlain
	marked := false

	walkNodes(nodes, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch colorEmphasis(n) {
		case emphasisPrimary:
			grade = repertory.GradePrimary
			marked = true
			return false
		case emphasisSecondary:
			grade = max(grade, repertory.GradeSecondary)
			marked = true
		}
		return true
	})

	if !marked {
		switch {
		case hasElement(nodes, atom.B, atom.Strong):
			grade = repertory.GradePrimary
		case hasElement(nodes, atom.I, atom.Em):
			grade = repertory.GradeSecondary
		}
	}

	return repertory.Remedy{Name: textOf(nodes), Grade: grade}
}

func colorEmphasis(n *html.Node) emphasis {
	if n.DataAtom == atom.Font {
		if e, ok := emphasisColors[normalizeColor(attr(n, "color"))]; ok {
			return e
		}
	}
	for _, decl := range strings.Split(attr(n, "style"), ";") {
		key, val, ok := strings.Cut(decl, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "color") {
			continue
		}
		if e, ok := emphasisColors[normalizeColor(val)]; ok {
			return e
		}
	}
	return emphasisNone
}

func normalizeColor(c string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(c), `"'`))
}

// ParseRemedyList splits a remedy section on text-level commas and grades
// each non-blank part. Order is preserved; duplicates are kept.
func ParseRemedyList(section string) []repertory.Remedy {
	var remedies []repertory.Remedy
	for _, part := range splitOutsideTags(section, ',') {
		if visibleText(part) == "" {
			continue
		}
		remedies = append(remedies, GradeRemedy(part))
	}
	return remedies
}
