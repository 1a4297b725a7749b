// Package chunker splits normalized legal text into retrieval-sized chunks
// aligned to section and clause boundaries.
//
// The chunker scans for legal heading patterns (Section N, Article N,
// Clause N.M, Rule N, numbered and lettered sub-items) with an ordered
// first-match-wins rule set. Sections that fit the size limit become single
// chunks tagged with their heading; oversized sections split along sentence
// boundaries with a bounded word overlap carried between adjacent chunks.
// Documents with no recognizable headings fall back to a pure sliding
// window over sentences.
package chunker

import "strings"

// Defaults for chunk sizing. Token counts are estimated as length/4.
const (
	DefaultMaxTokens     = 500
	DefaultOverlapTokens = 50
)

// Chunk is one retrieval unit of a document.
type Chunk struct {
	// Index is the position of the chunk within its document, contiguous
	// from 0.
	Index int

	// Content is the chunk text, including any leading overlap carried from
	// the previous chunk.
	Content string

	// Section is the heading token that opened this chunk's section, e.g.
	// "Section 4". Empty for unlabeled text.
	Section string

	// ClauseNumber is the number captured from the heading, e.g. "4" or
	// "4.2". Empty for unlabeled text.
	ClauseNumber string

	// StartOffset and EndOffset are byte offsets of the chunk's own span in
	// the source text. The duplicated overlap region is not included, and
	// offsets are approximate pointers for citation display rather than
	// guaranteed byte-exact spans.
	StartOffset int
	EndOffset   int
}

// Chunker splits text into chunks.
type Chunker struct {
	maxTokens     int
	overlapTokens int
}

// New creates a Chunker. Non-positive arguments select the defaults.
func New(maxTokens, overlapTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlapTokens <= 0 {
		overlapTokens = DefaultOverlapTokens
	}
	if overlapTokens >= maxTokens {
		overlapTokens = maxTokens / 10
	}
	return &Chunker{maxTokens: maxTokens, overlapTokens: overlapTokens}
}

// EstimateTokens approximates the token count of text as length/4.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// Chunk splits text into chunks. Empty or whitespace-only text yields zero
// chunks; callers must treat that as unusable content.
func (c *Chunker) Chunk(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	boundaries := findBoundaries(text)
	if len(boundaries) == 0 {
		chunks := c.slidingWindow(text, 0, "", "")
		return reindex(chunks)
	}

	var chunks []Chunk

	// Text before the first heading is an unlabeled preamble.
	if pre := text[:boundaries[0].pos]; strings.TrimSpace(pre) != "" {
		chunks = append(chunks, c.chunkSection(pre, 0, "", "")...)
	}

	for i, b := range boundaries {
		end := len(text)
		if i+1 < len(boundaries) {
			end = boundaries[i+1].pos
		}
		chunks = append(chunks, c.chunkSection(text[b.pos:end], b.pos, b.title, b.clause)...)
	}

	return reindex(chunks)
}

// chunkSection emits one chunk for a section that fits the limit, or splits
// it along sentence boundaries. base is the section's byte offset in the
// source text.
func (c *Chunker) chunkSection(section string, base int, title, clause string) []Chunk {
	sp := trimSpan(section, 0, len(section))
	content := section[sp.Start:sp.End]
	if content == "" {
		return nil
	}

	if EstimateTokens(content) <= c.maxTokens {
		return []Chunk{{
			Content:      content,
			Section:      title,
			ClauseNumber: clause,
			StartOffset:  base + sp.Start,
			EndOffset:    base + sp.End,
		}}
	}

	return c.slidingWindow(section, base, title, clause)
}

// slidingWindow accumulates sentences up to the size limit, carrying a
// trailing word overlap into each subsequent chunk. A single sentence that
// alone exceeds the limit becomes its own chunk; sentences are never split.
func (c *Chunker) slidingWindow(text string, base int, title, clause string) []Chunk {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []Chunk
	var cur []span
	var curLen int // running char length incl. joining spaces
	overlap := ""

	flush := func() {
		if len(cur) == 0 {
			return
		}
		parts := make([]string, 0, len(cur)+1)
		if overlap != "" {
			parts = append(parts, overlap)
		}
		for _, s := range cur {
			parts = append(parts, text[s.Start:s.End])
		}
		body := strings.Join(parts, " ")
		chunks = append(chunks, Chunk{
			Content:      body,
			Section:      title,
			ClauseNumber: clause,
			StartOffset:  base + cur[0].Start,
			EndOffset:    base + cur[len(cur)-1].End,
		})
		overlap = lastWords(body, c.overlapTokens)
		cur = cur[:0]
		curLen = 0
	}

	for _, s := range sentences {
		sentLen := s.End - s.Start
		addition := sentLen
		if curLen > 0 {
			addition++ // joining space
		}
		projected := curLen + addition
		if overlap != "" {
			projected += len(overlap) + 1
		}
		if curLen > 0 && projected/4 > c.maxTokens {
			flush()
			addition = sentLen
		}
		cur = append(cur, s)
		curLen += addition
	}
	flush()

	return chunks
}

// reindex assigns contiguous indices once all chunks for a document are
// known.
func reindex(chunks []Chunk) []Chunk {
	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks
}
