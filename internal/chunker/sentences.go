package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// span is a half-open [Start, End) byte range into the scanned text.
type span struct {
	Start int
	End   int
}

// splitSentences splits text into sentence spans. A sentence ends at ".",
// "!" or "?" followed by whitespace and a capital letter. This is
// abbreviation-unaware, which is an acceptable approximation for legal
// prose.
func splitSentences(text string) []span {
	var spans []span
	start := 0

	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}

		// Require at least one whitespace rune after the terminator.
		j := i + 1
		for j < len(text) {
			r, size := utf8.DecodeRuneInString(text[j:])
			if !unicode.IsSpace(r) {
				break
			}
			j += size
		}
		if j == i+1 || j >= len(text) {
			continue
		}

		next, _ := utf8.DecodeRuneInString(text[j:])
		if !unicode.IsUpper(next) {
			continue
		}

		if trimmed := strings.TrimSpace(text[start : i+1]); trimmed != "" {
			spans = append(spans, trimSpan(text, start, i+1))
		}
		start = j
		i = j - 1
	}

	if trimmed := strings.TrimSpace(text[start:]); trimmed != "" {
		spans = append(spans, trimSpan(text, start, len(text)))
	}
	return spans
}

// trimSpan shrinks [start, end) to exclude surrounding whitespace.
func trimSpan(text string, start, end int) span {
	for start < end {
		r, size := utf8.DecodeRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	return span{Start: start, End: end}
}

// lastWords returns the trailing n whitespace-separated words of s.
func lastWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[len(words)-n:], " ")
}
