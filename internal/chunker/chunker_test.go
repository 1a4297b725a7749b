package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEmptyText(t *testing.T) {
	c := New(0, 0)

	assert.Nil(t, c.Chunk(""))
	assert.Nil(t, c.Chunk("   \n\t  \n"))
}

func TestChunkTwoSectionScenario(t *testing.T) {
	c := New(DefaultMaxTokens, DefaultOverlapTokens)

	text := "Section 1: Payment is due within 30 days. Section 2: Termination requires 30 days notice."
	chunks := c.Chunk(text)

	require.Len(t, chunks, 2)
	assert.Equal(t, "1", chunks[0].ClauseNumber)
	assert.Equal(t, "2", chunks[1].ClauseNumber)
	assert.Equal(t, "Section 1", chunks[0].Section)
	assert.Equal(t, "Section 2", chunks[1].Section)
	assert.Contains(t, chunks[0].Content, "Payment is due within 30 days")
	assert.Contains(t, chunks[1].Content, "Termination requires 30 days notice")
	for _, ch := range chunks {
		assert.LessOrEqual(t, EstimateTokens(ch.Content), DefaultMaxTokens)
	}
}

func TestChunkHeadingKinds(t *testing.T) {
	c := New(0, 0)

	text := strings.Join([]string{
		"Article II",
		"The agreement commences on the effective date.",
		"Clause 3.1",
		"Fees are payable quarterly.",
		"Rule 4",
		"Disputes go to arbitration.",
		"5. Confidential information stays confidential.",
		"(a) Including trade secrets.",
	}, "\n")

	chunks := c.Chunk(text)
	require.Len(t, chunks, 5)

	assert.Equal(t, "Article II", chunks[0].Section)
	assert.Equal(t, "II", chunks[0].ClauseNumber)
	assert.Equal(t, "Clause 3.1", chunks[1].Section)
	assert.Equal(t, "3.1", chunks[1].ClauseNumber)
	assert.Equal(t, "Rule 4", chunks[2].Section)
	assert.Equal(t, "4", chunks[2].ClauseNumber)
	assert.Equal(t, "5.", chunks[3].Section)
	assert.Equal(t, "5", chunks[3].ClauseNumber)
	assert.Equal(t, "(a)", chunks[4].Section)
	assert.Equal(t, "a", chunks[4].ClauseNumber)
}

func TestChunkPreambleBeforeFirstHeading(t *testing.T) {
	c := New(0, 0)

	text := "This agreement is entered into by the parties.\nSection 1: Scope."
	chunks := c.Chunk(text)

	require.Len(t, chunks, 2)
	assert.Empty(t, chunks[0].Section)
	assert.Contains(t, chunks[0].Content, "entered into by the parties")
	assert.Equal(t, "Section 1", chunks[1].Section)
}

func TestChunkNoHeadingsFallback(t *testing.T) {
	c := New(0, 0)

	text := "The quick brown fox jumps over the lazy dog. Another plain sentence follows here. And a third one closes it."
	chunks := c.Chunk(text)

	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Empty(t, ch.Section)
		assert.Empty(t, ch.ClauseNumber)
	}
}

func TestChunkLargeSectionSplitsWithOverlap(t *testing.T) {
	c := New(DefaultMaxTokens, DefaultOverlapTokens)

	var sb strings.Builder
	sb.WriteString("Section 7: Obligations of the Parties.\n")
	for i := 0; i < 80; i++ {
		fmt.Fprintf(&sb, "The party of record shall deliver the executed instrument to the counterparty without undue delay in instance %d. ", i)
	}

	chunks := c.Chunk(sb.String())
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, "Section 7", ch.Section)
		assert.Equal(t, "7", ch.ClauseNumber)
		assert.LessOrEqual(t, EstimateTokens(ch.Content), DefaultMaxTokens,
			"chunk %d exceeds the size limit", i)
	}

	// Each follow-up chunk starts with the previous chunk's trailing words.
	for i := 1; i < len(chunks); i++ {
		overlap := lastWords(chunks[i-1].Content, DefaultOverlapTokens)
		assert.True(t, strings.HasPrefix(chunks[i].Content, overlap),
			"chunk %d missing overlap prefix", i)
	}
}

func TestChunkOffsetsMonotonic(t *testing.T) {
	c := New(0, 0)

	var sb strings.Builder
	for s := 1; s <= 4; s++ {
		fmt.Fprintf(&sb, "Section %d\n", s)
		for i := 0; i < 30; i++ {
			fmt.Fprintf(&sb, "Obligation number %d of this section binds both signatories fully. ", i)
		}
		sb.WriteString("\n")
	}
	text := sb.String()

	chunks := c.Chunk(text)
	require.NotEmpty(t, chunks)

	for i, ch := range chunks {
		assert.GreaterOrEqual(t, ch.StartOffset, 0)
		assert.LessOrEqual(t, ch.EndOffset, len(text))
		assert.Less(t, ch.StartOffset, ch.EndOffset)
		if i > 0 {
			assert.GreaterOrEqual(t, ch.StartOffset, chunks[i-1].EndOffset,
				"non-overlap spans of chunks %d and %d overlap", i-1, i)
		}
	}
}

func TestChunkIndicesContiguous(t *testing.T) {
	c := New(0, 0)

	text := "Section 1: One. Section 2: Two. Section 3: Three."
	chunks := c.Chunk(text)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
	}
}

func TestChunkExactLimitSingleChunk(t *testing.T) {
	c := New(DefaultMaxTokens, DefaultOverlapTokens)

	// Section body sized to land exactly at the token limit.
	heading := "Section 9: "
	body := strings.Repeat("abcd", DefaultMaxTokens-len(heading)/4)
	text := heading + body
	require.Equal(t, DefaultMaxTokens, EstimateTokens(text))

	chunks := c.Chunk(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, "9", chunks[0].ClauseNumber)
}

func TestChunkOversizedSentenceKeptWhole(t *testing.T) {
	c := New(50, 10)

	// One sentence alone exceeding the limit is never split mid-sentence.
	long := "This single sentence rambles on " + strings.Repeat("and on ", 60) + "until it ends."
	chunks := c.Chunk(long)

	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "until it ends.")
}

func TestSplitSentences(t *testing.T) {
	spans := splitSentences("First sentence here. Second one follows! Third asks a question? Yes.")
	require.Len(t, spans, 4)
}

func TestSplitSentencesNoTerminator(t *testing.T) {
	spans := splitSentences("a fragment with no terminator")
	require.Len(t, spans, 1)
}

func TestSplitSentencesLowercaseContinuation(t *testing.T) {
	// "30 days. thereafter" does not split because the next letter is not a
	// capital.
	spans := splitSentences("Payment is due in 30 days. thereafter interest accrues.")
	require.Len(t, spans, 1)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "smart quotes and dashes",
			in:   "“Agreement” — the parties’ terms…",
			want: `"Agreement" - the parties' terms...`,
		},
		{
			name: "isolated lowercase l",
			in:   "l hereby agree that l will comply.",
			want: "I hereby agree that I will comply.",
		},
		{
			name: "whitespace collapse keeps newlines",
			in:   "Section 1\t\t has   spaces\nSection  2",
			want: "Section 1 has spaces\nSection 2",
		},
		{
			name: "excess newlines collapse",
			in:   "one\n\n\n\ntwo",
			want: "one\n\ntwo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}
