package rag

import (
	"fmt"
	"strings"
)

// disclaimerText closes every generated answer and is returned as its own
// response field so clients can render it separately from the answer body.
const disclaimerText = "This is not legal advice. Consult a qualified attorney for guidance on your specific situation."

// answerSystemPrompt frames every answer generation call. It pins the model
// to the retrieved excerpts and requires the non-advice disclaimer.
const answerSystemPrompt = `You are a legal document assistant. Answer questions using ONLY the provided document excerpts.

Rules:
- Base every statement on the excerpts. If the excerpts do not contain the answer, say so plainly.
- Cite excerpts by their bracketed number, e.g. [1], when you rely on them.
- Quote exact contract or statute language where it matters.
- Explain legal terms in plain language a non-lawyer can follow.
- Do not speculate about provisions that are not in the excerpts.
- End every answer with: "` + disclaimerText + `"`

// summarySystemPrompt frames document summary generation at ingestion time.
const summarySystemPrompt = `You are a legal document assistant. Write a concise summary of the document text you are given: its type, the parties involved if identifiable, and its key provisions. Three to five sentences. Do not add commentary or advice.`

// noInformationAnswer is returned when retrieval finds nothing relevant.
// This is a valid outcome, not an error.
const noInformationAnswer = `I could not find information relevant to your question in the available documents. The documents may not cover this topic, or it may be phrased differently than your question.`

// buildContextBlock renders retrieved chunks as numbered excerpts for the
// generation prompt. Order follows retrieval ranking.
func buildContextBlock(chunks []retrievedChunk) string {
	var b strings.Builder
	b.WriteString("Document excerpts:\n\n")
	for i, c := range chunks {
		b.WriteString(fmt.Sprintf("[%d]", i+1))
		if c.Section != "" {
			b.WriteString(" (")
			b.WriteString(c.Section)
			b.WriteString(")")
		}
		b.WriteString("\n")
		b.WriteString(c.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}

// buildAnswerPrompt assembles the user turn for answer generation.
func buildAnswerPrompt(question string, chunks []retrievedChunk) string {
	var b strings.Builder
	b.WriteString(buildContextBlock(chunks))
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
