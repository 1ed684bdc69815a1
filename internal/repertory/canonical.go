package repertory

import "strings"

// CanonicalDocument is the machine-readable output schema.
type CanonicalDocument struct {
	Title    string          `json:"title,omitempty"`
	Section  string          `json:"section,omitempty"`
	PageInfo string          `json:"page_info,omitempty"`
	Pages    []CanonicalPage `json:"pages,omitempty"`
}

// CanonicalPage is one page group in the output schema.
type CanonicalPage struct {
	Page    string            `json:"page,omitempty"`
	Content []CanonicalRubric `json:"content,omitempty"`
}

// CanonicalRubric is one rubric in the output schema. Remedies is always
// emitted, even when empty.
type CanonicalRubric struct {
	Rubric         string            `json:"rubric,omitempty"`
	RelatedRubrics []string          `json:"related_rubrics,omitempty"`
	Remedies       []CanonicalRemedy `json:"remedies"`
	Subcontent     []CanonicalRubric `json:"subcontent,omitempty"`
}

// CanonicalRemedy is one remedy in the output schema.
type CanonicalRemedy struct {
	Name  string `json:"name,omitempty"`
	Grade Grade  `json:"grade"`
}

// Canonicalize maps a Document to the output schema. Descriptions and page
// stamps are dropped; empty values are pruned.
func Canonicalize(d *Document) CanonicalDocument {
	out := CanonicalDocument{
		Title:    d.Title,
		Section:  d.Section,
		PageInfo: d.PageInfo,
	}
	for _, pg := range d.Pages {
		out.Pages = append(out.Pages, CanonicalPage{
			Page:    pg.Page,
			Content: canonicalRubrics(pg.Content),
		})
	}
	return out.Prune()
}

func canonicalRubrics(rubrics []*Rubric) []CanonicalRubric {
	if len(rubrics) == 0 {
		return nil
	}
	out := make([]CanonicalRubric, 0, len(rubrics))
	for _, r := range rubrics {
		cr := CanonicalRubric{
			Rubric:         strings.TrimSpace(r.Title),
			RelatedRubrics: append([]string(nil), r.RelatedRubrics...),
			Remedies:       make([]CanonicalRemedy, 0, len(r.Remedies)),
			Subcontent:     canonicalRubrics(r.Subrubrics),
		}
		for _, rem := range r.Remedies {
			cr.Remedies = append(cr.Remedies, CanonicalRemedy{Name: rem.Name, Grade: rem.Grade})
		}
		out = append(out, cr)
	}
	return out
}

// Prune removes empty strings, empty sequences and entries that become empty
// after pruning. Remedies are always kept as a (possibly empty) sequence.
// Prune is idempotent.
func (d CanonicalDocument) Prune() CanonicalDocument {
	out := CanonicalDocument{
		Title:    strings.TrimSpace(d.Title),
		Section:  strings.TrimSpace(d.Section),
		PageInfo: strings.TrimSpace(d.PageInfo),
	}
	for _, p := range d.Pages {
		cp := CanonicalPage{
			Page:    strings.TrimSpace(p.Page),
			Content: pruneRubrics(p.Content),
		}
		if cp.Page == "" && len(cp.Content) == 0 {
			continue
		}
		out.Pages = append(out.Pages, cp)
	}
	return out
}

func pruneRubrics(rubrics []CanonicalRubric) []CanonicalRubric {
	var out []CanonicalRubric
	for _, r := range rubrics {
		cr := CanonicalRubric{
			Rubric:     r.Rubric,
			Remedies:   make([]CanonicalRemedy, 0, len(r.Remedies)),
			Subcontent: pruneRubrics(r.Subcontent),
		}
		for _, rel := range r.RelatedRubrics {
			if rel != "" {
				cr.RelatedRubrics = append(cr.RelatedRubrics, rel)
			}
		}
		cr.Remedies = append(cr.Remedies, r.Remedies...)
		out = append(out, cr)
	}
	return out
}
