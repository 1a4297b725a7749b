package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/lexgrove/lexrag/internal/docstore"
	"github.com/lexgrove/lexrag/internal/llm"
	"github.com/lexgrove/lexrag/internal/vectorstore"
)

// maxSnippetChars bounds citation snippets.
const maxSnippetChars = 200

// QueryRequest is a question scoped to an owner and optionally to one
// document.
type QueryRequest struct {
	OwnerID string

	// DocumentID narrows retrieval to one document when non-empty;
	// otherwise all of the owner's documents are searched.
	DocumentID string

	Question string

	// TopK overrides the configured retrieval depth when positive.
	TopK int
}

// QueryResult is a generated answer with its supporting citations.
type QueryResult struct {
	Answer     string
	Confidence float32

	// Disclaimer is the fixed non-advice notice, carried on every result
	// including no-information outcomes and excerpt-only answers.
	Disclaimer string

	// NoInformation is set when retrieval found nothing relevant. The
	// answer then says so; this is a valid outcome, not an error.
	NoInformation bool

	Citations []docstore.Citation
	Provider  string

	// TokensUsed is the token count the generation backend reported, zero
	// when no generation call was made.
	TokensUsed int
}

// retrievedChunk is a search hit decoded for prompt assembly.
type retrievedChunk struct {
	ChunkID    string
	DocumentID string
	ChunkIndex int
	Section    string
	Content    string
	Score      float32
}

// Query answers a question from the owner's indexed documents.
//
// The question is embedded with the same provider used at ingestion time,
// the top chunks are retrieved under an owner or document filter, and the
// generation provider composes an answer from those excerpts only.
func (p *Pipeline) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Query")
	defer span.End()
	started := time.Now()

	if req.OwnerID == "" {
		return nil, ErrOwnerRequired
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrQuestionRequired
	}
	span.SetAttributes(
		attribute.String("owner_id", req.OwnerID),
		attribute.Bool("document_scoped", req.DocumentID != ""),
	)

	vector, err := p.embedder.EmbedQuery(ctx, req.Question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	filter := map[string]any{"owner_id": req.OwnerID}
	if req.DocumentID != "" {
		filter = map[string]any{"document_id": req.DocumentID}
	}
	topK := req.TopK
	if topK <= 0 {
		topK = p.options.TopK
	}

	hits, err := p.index.Search(ctx, vector, vectorstore.SearchOptions{
		Limit:  topK,
		Filter: filter,
	})
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	var result *QueryResult
	if len(hits) == 0 {
		result = &QueryResult{
			Answer:        noInformationAnswer,
			Confidence:    0,
			Disclaimer:    disclaimerText,
			NoInformation: true,
			Provider:      p.generatorName(),
		}
	} else {
		result, err = p.answer(ctx, req.Question, decodeHits(hits))
		if err != nil {
			return nil, err
		}
	}

	p.persistQuery(ctx, req, result, time.Since(started))
	p.logger.Info("query answered",
		zap.String("owner_id", req.OwnerID),
		zap.Int("citations", len(result.Citations)),
		zap.Float32("confidence", result.Confidence),
		zap.Bool("no_information", result.NoInformation))
	return result, nil
}

// answer generates the answer text and assembles citations in retrieval
// order.
func (p *Pipeline) answer(ctx context.Context, question string, chunks []retrievedChunk) (*QueryResult, error) {
	citations := make([]docstore.Citation, len(chunks))
	var scoreSum float32
	for i, c := range chunks {
		citations[i] = docstore.Citation{
			DocumentID: c.DocumentID,
			ChunkID:    c.ChunkID,
			ChunkIndex: c.ChunkIndex,
			Section:    c.Section,
			Snippet:    truncateSnippet(c.Content, maxSnippetChars),
			Score:      c.Score,
		}
		scoreSum += c.Score
	}
	confidence := scoreSum / float32(len(chunks))
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0 {
		confidence = 0
	}

	answer := ""
	tokens := 0
	if p.generator != nil {
		generated, err := p.generator.Chat(ctx, answerSystemPrompt, []llm.Message{
			{Role: "user", Content: buildAnswerPrompt(question, chunks)},
		})
		if err != nil {
			return nil, fmt.Errorf("generating answer: %w", err)
		}
		answer = strings.TrimSpace(generated.Content)
		tokens = generated.TokensUsed
	} else {
		answer = buildContextBlock(chunks)
	}

	return &QueryResult{
		Answer:     answer,
		Confidence: confidence,
		Disclaimer: disclaimerText,
		Citations:  citations,
		Provider:   p.generatorName(),
		TokensUsed: tokens,
	}, nil
}

// decodeHits converts search results into retrieval chunks, preserving
// ranking order.
func decodeHits(hits []vectorstore.SearchResult) []retrievedChunk {
	out := make([]retrievedChunk, len(hits))
	for i, h := range hits {
		out[i] = retrievedChunk{
			ChunkID:    h.ID,
			DocumentID: payloadString(h.Payload, "document_id"),
			ChunkIndex: payloadInt(h.Payload, "chunk_index"),
			Section:    payloadString(h.Payload, "section"),
			Content:    h.Content,
			Score:      h.Score,
		}
	}
	return out
}

// persistQuery records the exchange and a usage event. Both are best
// effort; persistence failures never fail the query.
func (p *Pipeline) persistQuery(ctx context.Context, req QueryRequest, result *QueryResult, took time.Duration) {
	record := &docstore.QueryRecord{
		ID:             uuid.NewString(),
		OwnerID:        req.OwnerID,
		DocumentID:     req.DocumentID,
		Question:       req.Question,
		Answer:         result.Answer,
		Confidence:     result.Confidence,
		Citations:      result.Citations,
		Provider:       result.Provider,
		DurationMillis: took.Milliseconds(),
	}
	if err := p.store.SaveQueryRecord(ctx, record); err != nil {
		p.logger.Warn("failed to persist query record", zap.Error(err))
	}
	if err := p.store.RecordUsage(ctx, &docstore.UsageEvent{
		ID:         uuid.NewString(),
		OwnerID:    req.OwnerID,
		Kind:       "query",
		DocumentID: req.DocumentID,
		Provider:   result.Provider,
		Tokens:     result.TokensUsed,
	}); err != nil {
		p.logger.Warn("failed to record query usage", zap.Error(err))
	}
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		if v == nil {
			return ""
		}
		return fmt.Sprint(v)
	}
}

func payloadInt(payload map[string]any, key string) int {
	if payload == nil {
		return 0
	}
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		var n int
		_, _ = fmt.Sscanf(v, "%d", &n)
		return n
	default:
		return 0
	}
}
