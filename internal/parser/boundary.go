package parser

import (
	"regexp"
	"strings"

	"github.com/aadjones/kent-repertory-etl/internal/repertory"
)

const (
	// DefaultPage is the page in effect before any boundary is seen.
	DefaultPage = "P1"
	// UnknownSection is used when no section can be resolved.
	UnknownSection = "UNKNOWN"
)

var (
	// <SECTION> p. <N> where SECTION is a single uppercase token of 3+ letters.
	anySectionBoundary = regexp.MustCompile(`\b([A-Z]{3,})\s+[pP]\.?\s*(\d+)\b`)
	anySectionLine     = regexp.MustCompile(`^` + markerLead + `([A-Z]{3,})\s+[pP]\.?\s*(\d+)` + markerTail)
	anySectionTitle    = regexp.MustCompile(`^\s*([A-Z]{3,})\s+[pP]\.?\s*(\d+)\b`)

	pageSuffix = regexp.MustCompile(`(?i)\s*\bp\.?\s*\d+\b`)
)

// A boundary line may carry separator dashes and arrows around the marker
// but no other text.
const (
	markerLead = `[-> \t\x{00a0}]*`
	markerTail = `[-<> \t\x{00a0}]*$`
)

// mastheadToken appears as "KENT p. N" style text on every file and never
// names a section.
const mastheadToken = "KENT"

// boundaryMatcher recognises page/section boundary markers, either for a
// known section keyword or for any uppercase section token.
type boundaryMatcher struct {
	keyword string
	line    *regexp.Regexp
	prefix  *regexp.Regexp
}

func newBoundaryMatcher(keyword string) *boundaryMatcher {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return &boundaryMatcher{line: anySectionLine, prefix: anySectionTitle}
	}
	quoted := regexp.QuoteMeta(keyword)
	quoted = strings.Join(strings.Fields(quoted), `\s+`)
	return &boundaryMatcher{
		keyword: keyword,
		line:    regexp.MustCompile(`(?i)^` + markerLead + quoted + `\s*p\.?\s*(\d+)` + markerTail),
		prefix:  regexp.MustCompile(`(?i)^\s*` + quoted + `\s*p\.?\s*(\d+)\b`),
	}
}

// match reports whether text is a boundary line: the marker alone, optionally
// framed by separator characters. Markers embedded in other text, such as a
// cross-reference "(See Fear, MIND p. 45)", do not match.
func (m *boundaryMatcher) match(text string) (page, section string, ok bool) {
	return m.find(m.line, text)
}

// matchTitle reports whether a rubric title is itself a boundary marker.
func (m *boundaryMatcher) matchTitle(title string) (page string, ok bool) {
	page, _, ok = m.find(m.prefix, title)
	return page, ok
}

func (m *boundaryMatcher) find(re *regexp.Regexp, text string) (page, section string, ok bool) {
	sub := re.FindStringSubmatch(text)
	if sub == nil {
		return "", "", false
	}
	if m.keyword != "" {
		return pageMarker(sub[1]), "", true
	}
	return pageMarker(sub[2]), strings.ToUpper(sub[1]), true
}

func pageMarker(num string) string {
	num = strings.TrimLeft(num, "0")
	if num == "" {
		num = "0"
	}
	return "P" + num
}

// SeedSection scans rendered document text for the first "<SECTION> p. <N>"
// marker and returns its section, skipping the masthead. Returns "" when
// nothing matches.
func SeedSection(text string) string {
	for _, sub := range anySectionBoundary.FindAllStringSubmatch(text, -1) {
		section := strings.ToUpper(strings.TrimSpace(sub[1]))
		if section == mastheadToken || len(section) < 3 {
			continue
		}
		return section
	}
	return ""
}

// NormalizeSubjectTitle strips a trailing page marker: "MIND p. 1" -> "MIND".
func NormalizeSubjectTitle(title string) string {
	return strings.TrimSpace(pageSuffix.ReplaceAllString(title, ""))
}

// pageContext is the boundary tracker state threaded through the tree walk.
type pageContext struct {
	page         string
	section      string
	fromBoundary bool // page was set by a boundary marker
}

// GroupByPage splits a flat sequence of top-level rubrics into page groups.
// A new group starts at a page transition between consecutive rubric page
// stamps, or when a rubric's title is itself a boundary marker (that rubric
// is consumed). Rubrics whose title merely restates the section keyword are
// dropped.
func GroupByPage(rubrics []*repertory.Rubric, keyword string) []repertory.PageGroup {
	m := newBoundaryMatcher(keyword)
	var groups []repertory.PageGroup
	open := func(page string) {
		groups = append(groups, repertory.PageGroup{Page: page})
	}

	var stamp string
	for _, r := range rubrics {
		if page, ok := m.matchTitle(r.Title); ok {
			open(page)
			continue
		}
		if m.keyword != "" && strings.EqualFold(NormalizeSubjectTitle(r.Title), m.keyword) {
			continue
		}

		switch {
		case len(groups) == 0:
			page := r.Page
			if page == "" {
				page = DefaultPage
			}
			open(page)
		case r.Page != "" && stamp != "" && r.Page != stamp:
			open(r.Page)
		}
		if r.Page != "" {
			stamp = r.Page
		}
		cur := &groups[len(groups)-1]
		cur.Content = append(cur.Content, r)
	}
	return groups
}
