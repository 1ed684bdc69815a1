package parser

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// parseFragment parses markup leniently as the content of a <div>. Broken
// or unmatched tags never fail; the worst case is misattributed text.
func parseFragment(markup string) []*html.Node {
	context := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil
	}
	return nodes
}

// visibleText returns the rendered text of a markup fragment with
// whitespace runs collapsed.
func visibleText(markup string) string {
	return textOf(parseFragment(markup))
}

func textOf(nodes []*html.Node) string {
	var buf strings.Builder
	for _, n := range nodes {
		collectText(n, &buf, "")
	}
	return collapseSpace(buf.String())
}

// textContent returns the text below n, with sep written between text nodes.
func textContent(n *html.Node, sep string) string {
	var buf strings.Builder
	collectText(n, &buf, sep)
	return collapseSpace(buf.String())
}

func collectText(n *html.Node, buf *strings.Builder, sep string) {
	switch n.Type {
	case html.TextNode:
		if sep != "" && buf.Len() > 0 {
			buf.WriteString(sep)
		}
		buf.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style:
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, buf, sep)
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// hasElement reports whether any node in the forest is one of the given elements.
func hasElement(nodes []*html.Node, atoms ...atom.Atom) bool {
	found := false
	walkNodes(nodes, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			for _, a := range atoms {
				if n.DataAtom == a {
					found = true
					return false
				}
			}
		}
		return true
	})
	return found
}

// walkNodes visits the forest in document order until fn returns false.
func walkNodes(nodes []*html.Node, fn func(*html.Node) bool) {
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if !fn(n) {
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	for _, n := range nodes {
		if !walk(n) {
			return
		}
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// indexOutsideTags returns the index of the first sep in markup that is
// part of text content rather than tag or comment syntax, or -1.
func indexOutsideTags(markup string, sep byte) int {
	inTag := false
	var quote byte
	for i := 0; i < len(markup); i++ {
		ch := markup[i]
		switch {
		case inTag && quote != 0:
			if ch == quote {
				quote = 0
			}
		case inTag:
			switch ch {
			case '"', '\'':
				quote = ch
			case '>':
				inTag = false
			}
		case ch == '<':
			if strings.HasPrefix(markup[i:], "<!--") {
				end := strings.Index(markup[i+4:], "-->")
				if end < 0 {
					return -1
				}
				i += 4 + end + 2
				continue
			}
			inTag = true
		case ch == sep:
			return i
		}
	}
	return -1
}

// splitFirst splits markup around the first text-level sep.
func splitFirst(markup string, sep byte) (before, after string, found bool) {
	i := indexOutsideTags(markup, sep)
	if i < 0 {
		return markup, "", false
	}
	return markup[:i], markup[i+1:], true
}

// splitOutsideTags splits markup on every text-level sep.
func splitOutsideTags(markup string, sep byte) []string {
	var parts []string
	for {
		before, after, found := splitFirst(markup, sep)
		parts = append(parts, before)
		if !found {
			return parts
		}
		markup = after
	}
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func findTitle(n *html.Node) string {
	if t := findElement(n, atom.Title); t != nil {
		return textContent(t, "")
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	return findElement(n, atom.Body)
}
