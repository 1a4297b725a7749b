package chunker

import (
	"regexp"
	"sort"
	"strings"
)

// headingRule is one predicate in the ordered heading detector. Rules are
// evaluated in order; where two rules match the same position, the earlier
// rule labels the boundary.
type headingRule struct {
	// name tags the kind of heading, e.g. "section", "article".
	name string

	// re locates headings. Group 1 is the heading token ("Section 4.2"),
	// group 2 the clause number ("4.2").
	re *regexp.Regexp

	// inline allows matches after a sentence terminator, not only at line
	// start. Keyword headings ("Section 2: ...") frequently continue on the
	// same line in extracted text.
	inline bool
}

// linePrefix anchors a rule at a line start; inlinePrefix also accepts a
// position right after a sentence boundary.
const (
	linePrefix   = `(?m)(?:^)\s*`
	inlinePrefix = `(?m)(?:^|[.!?;]\s+)\s*`
)

// headingRules is the ordered rule set, checked top to bottom.
var headingRules = []headingRule{
	{
		name:   "section",
		re:     regexp.MustCompile(inlinePrefix + `(?i)(section\s+(\d+[a-z]?(?:\.\d+)*))`),
		inline: true,
	},
	{
		name:   "article",
		re:     regexp.MustCompile(inlinePrefix + `(?i)(article\s+(\d+(?:\.\d+)*|[IVXLCDM]+))`),
		inline: true,
	},
	{
		name:   "clause",
		re:     regexp.MustCompile(inlinePrefix + `(?i)(clause\s+(\d+(?:\.\d+)*))`),
		inline: true,
	},
	{
		name:   "rule",
		re:     regexp.MustCompile(inlinePrefix + `(?i)(rule\s+(\d+(?:\.\d+)*))`),
		inline: true,
	},
	{
		name: "numbered",
		re:   regexp.MustCompile(linePrefix + `((\d+(?:\.\d+)*)[.)])\s+\S`),
	},
	{
		name: "lettered",
		re:   regexp.MustCompile(linePrefix + `(\(([a-z])\))\s+\S`),
	},
	{
		name: "roman",
		re:   regexp.MustCompile(linePrefix + `(\(([ivxlcdm]+)\))\s+\S`),
	},
}

// boundary marks the start of a detected section.
type boundary struct {
	// pos is the byte offset of the heading token in the source text.
	pos int

	// rule is the index of the matching rule (lower wins on ties).
	rule int

	// title is the heading token, e.g. "Section 1".
	title string

	// clause is the captured clause number, e.g. "1" or "4.2".
	clause string
}

// findBoundaries locates all section boundaries in text. Boundaries come
// back ordered by position with duplicate positions resolved in rule order.
func findBoundaries(text string) []boundary {
	var all []boundary
	for ri, rule := range headingRules {
		for _, m := range rule.re.FindAllStringSubmatchIndex(text, -1) {
			// Group 1 holds the heading token; its start is the boundary.
			start, end := m[2], m[3]
			if start < 0 {
				continue
			}
			clause := ""
			if m[4] >= 0 {
				clause = text[m[4]:m[5]]
			}
			all = append(all, boundary{
				pos:    start,
				rule:   ri,
				title:  strings.TrimSpace(text[start:end]),
				clause: clause,
			})
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].pos != all[j].pos {
			return all[i].pos < all[j].pos
		}
		return all[i].rule < all[j].rule
	})

	// First match wins at each position.
	deduped := all[:0]
	lastPos := -1
	for _, b := range all {
		if b.pos == lastPos {
			continue
		}
		deduped = append(deduped, b)
		lastPos = b.pos
	}
	return deduped
}
