package chunker

import (
	"regexp"
	"strings"
)

// OCR output and copy-pasted legal text carry predictable artifacts; the
// replacements here keep the chunker's heading patterns and sentence
// splitting reliable.
var (
	// isolatedL matches a lone lowercase "l" between word boundaries, which
	// OCR commonly produces for the pronoun "I".
	isolatedL = regexp.MustCompile(`(^|[\s"'(])l([\s.,;:!?")]|$)`)

	// horizontalWhitespace collapses runs of spaces and tabs.
	horizontalWhitespace = regexp.MustCompile(`[ \t]+`)

	// excessNewlines collapses three or more newlines to a paragraph break.
	excessNewlines = regexp.MustCompile(`\n{3,}`)
)

// asciiReplacer maps typographic punctuation to ASCII equivalents.
var asciiReplacer = strings.NewReplacer(
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"–", "-", // en dash
	"—", "-", // em dash
	"…", "...", // ellipsis
	" ", " ", // non-breaking space
)

// Normalize prepares raw extracted text for chunking: typographic
// punctuation becomes ASCII, whitespace runs collapse (newlines survive,
// since heading detection is line-oriented), and the isolated lowercase "l"
// OCR artifact is corrected.
func Normalize(text string) string {
	text = asciiReplacer.Replace(text)
	text = isolatedL.ReplaceAllString(text, "${1}I${2}")
	text = horizontalWhitespace.ReplaceAllString(text, " ")
	text = excessNewlines.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
