package repertory

// Document is the root of a parsed repertory file.
type Document struct {
	Title    string      // Document title (from <title> or placeholder)
	Section  string      // Repertory section, e.g. "MIND" (empty if absent)
	PageInfo string      // Pages covered by the source file, e.g. "p. 1-5"
	Pages    []PageGroup // Top-level rubrics grouped by source page
}

// PageGroup holds the top-level rubrics that start on one source page.
type PageGroup struct {
	Page    string    // Page marker, e.g. "P5"
	Content []*Rubric // Top-level only; nesting lives in Rubric.Subrubrics
}

// Rubric is a named symptom category.
type Rubric struct {
	Title          string    // Cleaned heading: no colon, no parenthetical
	RelatedRubrics []string  // Cross-references, first-appearance order
	Remedies       []Remedy  // Graded remedies
	Description    string    // Free text after the colon plus continuation lines
	Subrubrics     []*Rubric // Nested children
	Page           string    // Page marker in effect when created (empty if absent)
}

// Grade encodes the typographic emphasis of a remedy mention.
type Grade int

const (
	GradePlain     Grade = 1
	GradeSecondary Grade = 2 // italic / blue
	GradePrimary   Grade = 3 // bold / red
)

// Remedy is a graded remedy mention.
type Remedy struct {
	Name  string
	Grade Grade
}

// Walk visits every rubric in the tree depth-first, parents before children.
func Walk(rubrics []*Rubric, fn func(r *Rubric, depth int)) {
	var walk func(rs []*Rubric, depth int)
	walk = func(rs []*Rubric, depth int) {
		for _, r := range rs {
			fn(r, depth)
			walk(r.Subrubrics, depth+1)
		}
	}
	walk(rubrics, 0)
}

// Counts returns the number of rubrics (all depths) and remedies in the document.
func (d *Document) Counts() (rubrics, remedies int) {
	for _, pg := range d.Pages {
		Walk(pg.Content, func(r *Rubric, _ int) {
			rubrics++
			remedies += len(r.Remedies)
		})
	}
	return rubrics, remedies
}
