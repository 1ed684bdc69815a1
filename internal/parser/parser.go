// Package parser extracts rubrics and graded remedies from repertory HTML.
package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/aadjones/kent-repertory-etl/internal/repertory"
	"golang.org/x/net/html"
)

const (
	// PlaceholderTitle is used when the markup has no <title>.
	PlaceholderTitle = "No title found"
	// DefaultMaxDepth bounds element nesting inside the outline.
	DefaultMaxDepth = 32
)

// EventKind identifies a parser observation.
type EventKind string

const (
	EventBoundary          EventKind = "boundary"
	EventHeaderDropped     EventKind = "header_dropped"
	EventPlaceholderTitle  EventKind = "placeholder_title"
	EventSectionSeeded     EventKind = "section_seeded"
	EventSectionUnresolved EventKind = "section_unresolved"
	EventMerged            EventKind = "merged"
)

// Event is an optional observability hook; parsing never depends on it.
type Event struct {
	Kind    EventKind
	Page    string
	Section string
	Text    string
	Count   int
}

// EventSink receives parser events. A nil sink discards them.
type EventSink func(Event)

// Options carries the optional hints for a parse.
type Options struct {
	Section   string // Section keyword; inferred from the text when empty
	StartPage string // Page before the first boundary, "P6" or "6"; default "P1"
	PageInfo  string // Copied to Document.PageInfo, e.g. "p. 6-10"
	MaxDepth  int    // Nesting limit; DefaultMaxDepth when <= 0
	Sink      EventSink
}

// Parse converts one repertory HTML file into a Document. Malformed markup is
// tolerated; the only error is ErrTooDeep.
func Parse(markup string, opts Options) (*repertory.Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	emit := opts.Sink
	if emit == nil {
		emit = func(Event) {}
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	doc := &repertory.Document{
		Title:    findTitle(root),
		PageInfo: strings.TrimSpace(opts.PageInfo),
	}
	if doc.Title == "" {
		doc.Title = PlaceholderTitle
		emit(Event{Kind: EventPlaceholderTitle})
	}

	keyword := strings.ToUpper(strings.TrimSpace(opts.Section))
	if keyword == "" {
		keyword = SeedSection(textContent(root, " "))
		if keyword != "" {
			emit(Event{Kind: EventSectionSeeded, Section: keyword})
		}
	}

	b := &builder{
		classifier: NewClassifier(keyword),
		maxDepth:   maxDepth,
		emit:       emit,
	}
	ctx := pageContext{page: normalizeStartPage(opts.StartPage), section: keyword}

	var rubrics []*repertory.Rubric
	for _, r := range outlineRoots(root) {
		var level []*repertory.Rubric
		level, ctx, err = b.build(r, ctx, 1)
		if err != nil {
			return nil, err
		}
		rubrics = append(rubrics, level...)
	}

	doc.Section = keyword
	if doc.Section == "" {
		doc.Section = ctx.section
	}
	if doc.Section == "" {
		doc.Section = UnknownSection
		emit(Event{Kind: EventSectionUnresolved, Section: UnknownSection})
	}

	for _, g := range GroupByPage(rubrics, keyword) {
		merged := Merge(g.Content)
		if n := len(g.Content) - len(merged); n > 0 {
			emit(Event{Kind: EventMerged, Page: g.Page, Count: n})
		}
		repertory.Walk(merged, func(r *repertory.Rubric, depth int) {
			if depth > 0 {
				r.Remedies = DedupRemedies(r.Remedies)
				r.RelatedRubrics = dedupStrings(r.RelatedRubrics)
			}
		})
		g.Content = merged
		doc.Pages = append(doc.Pages, g)
	}
	return doc, nil
}

// ParseReader reads markup from r and parses it.
func ParseReader(r io.Reader, opts Options) (*repertory.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markup: %w", err)
	}
	return Parse(string(data), opts)
}

// outlineRoots returns the outermost outline elements in document order, or
// the body when the document has none.
func outlineRoots(root *html.Node) []*html.Node {
	var roots []*html.Node
	var find func(n *html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode && outlineElements[n.DataAtom] {
			roots = append(roots, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(root)
	if len(roots) > 0 {
		return roots
	}
	if body := findBody(root); body != nil {
		return []*html.Node{body}
	}
	return []*html.Node{root}
}

func normalizeStartPage(page string) string {
	page = strings.TrimSpace(page)
	if page == "" {
		return DefaultPage
	}
	digits := strings.TrimLeft(page, "Pp")
	if digits != "" && strings.Trim(digits, "0123456789") == "" {
		return pageMarker(digits)
	}
	return page
}
