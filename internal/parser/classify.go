package parser

import (
	"strings"

	"golang.org/x/net/html/atom"
)

// Kind is the role a block of outline text plays.
type Kind int

const (
	KindContinuation Kind = iota
	KindDecorative
	KindBoundary
	KindHeader
)

func (k Kind) String() string {
	switch k {
	case KindDecorative:
		return "decorative"
	case KindBoundary:
		return "boundary"
	case KindHeader:
		return "header"
	default:
		return "continuation"
	}
}

// Classification is the result of classifying one outline text block.
type Classification struct {
	Kind    Kind
	Text    string // visible text, whitespace collapsed
	Page    string // boundary only, e.g. "P5"
	Section string // boundary only, set when no section keyword is known
}

// Classifier decides whether a block of markup is noise, a page boundary,
// a rubric header or continuation text.
type Classifier struct {
	boundary *boundaryMatcher
}

// NewClassifier returns a classifier for the given section keyword. An
// empty keyword accepts any uppercase section token in boundary markers.
func NewClassifier(section string) *Classifier {
	return &Classifier{boundary: newBoundaryMatcher(section)}
}

// Classify inspects one text block's raw markup. Boundary markers take
// precedence over every other kind, then decorative noise, then headers.
func (c *Classifier) Classify(raw string) Classification {
	nodes := parseFragment(raw)
	text := textOf(nodes)

	if page, section, ok := c.boundary.match(text); ok {
		return Classification{Kind: KindBoundary, Text: text, Page: page, Section: section}
	}
	if IsDecorative(text) {
		return Classification{Kind: KindDecorative, Text: text}
	}
	if hasElement(nodes, atom.B, atom.Strong) ||
		indexOutsideTags(raw, ':') >= 0 ||
		len(ExtractRelated(raw)) > 0 {
		return Classification{Kind: KindHeader, Text: text}
	}
	return Classification{Kind: KindContinuation, Text: text}
}

// IsDecorative reports whether text is visual separator noise: empty, only
// hyphens and spaces, only hyphens and arrows, or containing an arrow run.
func IsDecorative(text string) bool {
	s := strings.TrimSpace(text)
	if s == "" {
		return true
	}
	if strings.Contains(s, ">>>") {
		return true
	}
	return strings.Trim(s, "-> \t\u00a0") == ""
}
