package parser

import (
	"regexp"
	"strings"
)

var (
	firstParenGroup = regexp.MustCompile(`\(([^)]*)\)`)
	innerParenGroup = regexp.MustCompile(`\s*\([^()]*\)`)
	seePrefix       = regexp.MustCompile(`(?i)^see\b`)
)

// ExtractRelated returns the cross-referenced rubric names from the first
// parenthesised group of a header, e.g. "ABANDONED (See Forsaken)" ->
// ["Forsaken"]. Later groups are ignored.
func ExtractRelated(header string) []string {
	m := firstParenGroup.FindStringSubmatch(header)
	if m == nil {
		return nil
	}
	text := visibleText(m[1])
	text = strings.TrimSpace(seePrefix.ReplaceAllString(text, ""))

	var related []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		related = append(related, part)
	}
	return related
}

// CleanHeader removes every parenthesised group from a header's text. Any
// stray colon is dropped too, so the result is safe to use as a title.
func CleanHeader(text string) string {
	for {
		next := innerParenGroup.ReplaceAllString(text, "")
		if next == text {
			break
		}
		text = next
	}
	text = strings.ReplaceAll(text, ":", " ")
	return collapseSpace(text)
}
