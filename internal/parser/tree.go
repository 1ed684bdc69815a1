package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/aadjones/kent-repertory-etl/internal/repertory"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrTooDeep is returned when the outline nests deeper than the configured limit.
var ErrTooDeep = errors.New("outline nesting too deep")

// outline elements open a new rubric level.
var outlineElements = map[atom.Atom]bool{
	atom.Dir:  true,
	atom.Ul:   true,
	atom.Ol:   true,
	atom.Menu: true,
	atom.Dl:   true,
}

// block elements end the current line of text; their children are walked in
// place at the same level.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Li: true, atom.Dt: true, atom.Dd: true,
	atom.Div: true, atom.Center: true, atom.Blockquote: true, atom.Section: true,
	atom.Article: true, atom.Pre: true, atom.Address: true, atom.Form: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Table: true, atom.Tbody: true, atom.Thead: true, atom.Tr: true, atom.Td: true, atom.Th: true,
	atom.Body: true, atom.Html: true,
}

var skippedElements = map[atom.Atom]bool{
	atom.Head: true, atom.Title: true, atom.Script: true, atom.Style: true,
}

// levelState is the accumulator for one outline level.
type levelState struct {
	out  []*repertory.Rubric
	open *repertory.Rubric
	// openPaged is set when the open rubric was stamped with a page taken
	// from a boundary marker rather than the starting page.
	openPaged bool
	line      []*html.Node
}

type builder struct {
	classifier *Classifier
	maxDepth   int
	emit       EventSink
}

// build walks the children of one outline element and returns the rubrics of
// that level together with the page context in effect after the walk.
func (b *builder) build(n *html.Node, ctx pageContext, depth int) ([]*repertory.Rubric, pageContext, error) {
	if depth > b.maxDepth {
		return nil, ctx, fmt.Errorf("depth %d: %w", depth, ErrTooDeep)
	}
	st := &levelState{}
	ctx, err := b.walkChildren(n, st, ctx, depth)
	if err != nil {
		return nil, ctx, err
	}
	ctx = b.endLine(st, ctx)
	b.flush(st)
	return st.out, ctx, nil
}

func (b *builder) walkChildren(n *html.Node, st *levelState, ctx pageContext, depth int) (pageContext, error) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		var err error
		if ctx, err = b.visit(c, st, ctx, depth); err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

func (b *builder) visit(n *html.Node, st *levelState, ctx pageContext, depth int) (pageContext, error) {
	switch n.Type {
	case html.TextNode:
		st.line = append(st.line, n)
		return ctx, nil
	case html.ElementNode:
	default:
		return ctx, nil
	}

	switch {
	case skippedElements[n.DataAtom]:
		return ctx, nil

	case outlineElements[n.DataAtom]:
		ctx = b.endLine(st, ctx)
		subs, next, err := b.build(n, ctx, depth+1)
		if err != nil {
			return ctx, err
		}
		if st.open != nil {
			st.open.Subrubrics = append(st.open.Subrubrics, subs...)
		} else {
			st.out = append(st.out, subs...)
		}
		return next, nil

	case n.DataAtom == atom.Br || n.DataAtom == atom.Hr:
		return b.endLine(st, ctx), nil

	case blockElements[n.DataAtom]:
		if depth+1 > b.maxDepth {
			return ctx, fmt.Errorf("depth %d: %w", depth+1, ErrTooDeep)
		}
		ctx = b.endLine(st, ctx)
		ctx, err := b.walkChildren(n, st, ctx, depth+1)
		if err != nil {
			return ctx, err
		}
		return b.endLine(st, ctx), nil

	case hasStructure(n):
		// Inline wrapper around blocks or line breaks, e.g. <font> around
		// several paragraphs.
		if depth+1 > b.maxDepth {
			return ctx, fmt.Errorf("depth %d: %w", depth+1, ErrTooDeep)
		}
		return b.walkChildren(n, st, ctx, depth+1)

	default:
		st.line = append(st.line, n)
		return ctx, nil
	}
}

// hasStructure reports whether any descendant of n breaks lines or opens a
// level.
func hasStructure(n *html.Node) bool {
	found := false
	walkNodes([]*html.Node{n}, func(c *html.Node) bool {
		if c != n && c.Type == html.ElementNode &&
			(outlineElements[c.DataAtom] || blockElements[c.DataAtom] || c.DataAtom == atom.Br || c.DataAtom == atom.Hr) {
			found = true
			return false
		}
		return true
	})
	return found
}

// endLine classifies and applies the pending line of inline content.
func (b *builder) endLine(st *levelState, ctx pageContext) pageContext {
	if len(st.line) == 0 {
		return ctx
	}
	var buf bytes.Buffer
	for _, n := range st.line {
		_ = html.Render(&buf, n)
	}
	st.line = st.line[:0]
	return b.applyLine(buf.String(), st, ctx)
}

func (b *builder) applyLine(raw string, st *levelState, ctx pageContext) pageContext {
	cls := b.classifier.Classify(raw)
	switch cls.Kind {
	case KindBoundary:
		ctx.page = cls.Page
		if cls.Section != "" {
			ctx.section = cls.Section
		}
		ctx.fromBoundary = true
		b.emit(Event{Kind: EventBoundary, Page: ctx.page, Section: ctx.section, Text: cls.Text})

	case KindDecorative:

	case KindHeader:
		b.push(st)
		r := newHeaderRubric(raw, ctx.page)
		if IsDecorative(r.Title) {
			b.emit(Event{Kind: EventHeaderDropped, Page: ctx.page, Text: cls.Text})
			st.open, st.openPaged = nil, false
			return ctx
		}
		st.open, st.openPaged = r, ctx.fromBoundary

	case KindContinuation:
		if st.open != nil {
			st.open.Description = joinText(st.open.Description, cls.Text)
			return ctx
		}
		title := CleanHeader(cls.Text)
		if title == "" {
			b.emit(Event{Kind: EventHeaderDropped, Page: ctx.page, Text: cls.Text})
			return ctx
		}
		st.open = &repertory.Rubric{Title: title, Page: ctx.page}
		st.openPaged = ctx.fromBoundary
	}
	return ctx
}

// newHeaderRubric builds a rubric from header markup. The first text-level
// colon separates the title part from the remedy list.
func newHeaderRubric(raw, page string) *repertory.Rubric {
	left, right, hasColon := splitFirst(raw, ':')
	r := &repertory.Rubric{
		Title:          CleanHeader(visibleText(left)),
		RelatedRubrics: ExtractRelated(left),
		Page:           page,
	}
	if hasColon {
		r.Remedies = ParseRemedyList(right)
		r.Description = visibleText(right)
	}
	return r
}

// push closes the open rubric before a new header.
func (b *builder) push(st *levelState) {
	if st.open != nil && !IsDecorative(st.open.Title) {
		st.out = append(st.out, st.open)
	}
	st.open, st.openPaged = nil, false
}

// flush closes the open rubric at the end of a level. A decorative-looking
// title survives only when its page came from a boundary marker, and an empty
// title never does.
func (b *builder) flush(st *levelState) {
	if st.open == nil {
		return
	}
	keep := !IsDecorative(st.open.Title) || (st.openPaged && strings.TrimSpace(st.open.Title) != "")
	if keep {
		st.out = append(st.out, st.open)
	} else {
		b.emit(Event{Kind: EventHeaderDropped, Page: st.open.Page, Text: st.open.Title})
	}
	st.open, st.openPaged = nil, false
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
