package parser

import (
	"strings"

	"github.com/aadjones/kent-repertory-etl/internal/repertory"
	"golang.org/x/text/unicode/norm"
)

func mergeKey(title string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(title)))
}

// Merge consolidates sibling rubrics that share a normalized title. Output
// order follows first appearance. Later duplicates contribute their
// description, remedies, related rubrics and subrubrics to the first one;
// remedies and related rubrics are then deduplicated. Subrubrics are kept
// as-is. The input rubrics are not modified.
func Merge(rubrics []*repertory.Rubric) []*repertory.Rubric {
	var order []*repertory.Rubric
	byKey := make(map[string]*repertory.Rubric, len(rubrics))

	for _, r := range rubrics {
		key := mergeKey(r.Title)
		acc, ok := byKey[key]
		if !ok {
			acc = cloneRubric(r)
			byKey[key] = acc
			order = append(order, acc)
			continue
		}
		acc.Description = joinText(acc.Description, r.Description)
		acc.Remedies = append(acc.Remedies, r.Remedies...)
		acc.RelatedRubrics = append(acc.RelatedRubrics, r.RelatedRubrics...)
		acc.Subrubrics = append(acc.Subrubrics, r.Subrubrics...)
	}

	for _, r := range order {
		r.Remedies = DedupRemedies(r.Remedies)
		r.RelatedRubrics = dedupStrings(r.RelatedRubrics)
	}
	return order
}

func cloneRubric(r *repertory.Rubric) *repertory.Rubric {
	c := *r
	c.Remedies = append([]repertory.Remedy(nil), r.Remedies...)
	c.RelatedRubrics = append([]string(nil), r.RelatedRubrics...)
	c.Subrubrics = append([]*repertory.Rubric(nil), r.Subrubrics...)
	return &c
}

// DedupRemedies drops repeated (name, grade) pairs, keeping first-seen order.
func DedupRemedies(remedies []repertory.Remedy) []repertory.Remedy {
	if len(remedies) == 0 {
		return remedies
	}
	seen := make(map[repertory.Remedy]bool, len(remedies))
	out := remedies[:0:0]
	for _, rem := range remedies {
		if seen[rem] {
			continue
		}
		seen[rem] = true
		out = append(out, rem)
	}
	return out
}

func dedupStrings(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]bool, len(values))
	out := values[:0:0]
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
