package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/lexgrove/lexrag/internal/chunker"
	"github.com/lexgrove/lexrag/internal/docstore"
	"github.com/lexgrove/lexrag/internal/llm"
	"github.com/lexgrove/lexrag/internal/vectorstore"
)

// IngestRequest describes an uploaded document.
type IngestRequest struct {
	OwnerID  string
	Filename string
	FileType string
	DocType  string
	Data     []byte
}

// Ingest registers the document and stores its raw bytes, leaving it in
// pending status. Process completes the pipeline; callers that want
// fire-and-forget run Process in a goroutine.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*docstore.Document, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Ingest")
	defer span.End()

	if req.OwnerID == "" {
		return nil, ErrOwnerRequired
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrEmptyDocument)
	}

	doc := &docstore.Document{
		ID:        uuid.NewString(),
		OwnerID:   req.OwnerID,
		Filename:  req.Filename,
		FileType:  req.FileType,
		DocType:   req.DocType,
		Status:    docstore.StatusPending,
		SizeBytes: int64(len(req.Data)),
	}
	span.SetAttributes(
		attribute.String("document_id", doc.ID),
		attribute.Int("size_bytes", len(req.Data)),
	)

	if err := p.blobs.Put(ctx, doc.ID, req.Data); err != nil {
		return nil, fmt.Errorf("storing document bytes: %w", err)
	}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		_ = p.blobs.Delete(ctx, doc.ID)
		return nil, err
	}

	p.logger.Info("document registered",
		zap.String("document_id", doc.ID),
		zap.String("owner_id", doc.OwnerID),
		zap.String("filename", doc.Filename))
	return doc, nil
}

// Process runs the full extraction, chunking, embedding and indexing
// pipeline for a registered document. The document always ends in a
// terminal status: completed on success, failed with a reason otherwise.
func (p *Pipeline) Process(ctx context.Context, documentID string) error {
	ctx, span := tracer.Start(ctx, "Pipeline.Process")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", documentID))

	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if err := p.store.UpdateDocumentStatus(ctx, documentID, docstore.StatusProcessing, ""); err != nil {
		return err
	}

	if err := p.process(ctx, doc); err != nil {
		span.RecordError(err)
		p.logger.Warn("document processing failed",
			zap.String("document_id", documentID),
			zap.Error(err))
		if statusErr := p.store.UpdateDocumentStatus(ctx, documentID, docstore.StatusFailed, err.Error()); statusErr != nil {
			p.logger.Error("failed to record failure status",
				zap.String("document_id", documentID),
				zap.Error(statusErr))
		}
		return err
	}
	return nil
}

func (p *Pipeline) process(ctx context.Context, doc *docstore.Document) error {
	data, err := p.blobs.Get(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("loading document bytes: %w", err)
	}

	result, err := p.extractor.Extract(ctx, data, doc.FileType)
	if err != nil {
		return fmt.Errorf("extracting text: %w", err)
	}

	text := chunker.Normalize(result.Text)
	chunks := p.chunker.Chunk(text)
	if len(chunks) == 0 {
		return ErrEmptyDocument
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}

	records := make([]docstore.Chunk, len(chunks))
	points := make([]vectorstore.Point, len(chunks))
	now := time.Now()
	for i, c := range chunks {
		chunkID := uuid.NewString()
		records[i] = docstore.Chunk{
			ID:         chunkID,
			DocumentID: doc.ID,
			OwnerID:    doc.OwnerID,
			Index:      c.Index,
			Content:    c.Content,
			Section:    c.Section,
			Clause:     c.ClauseNumber,
			StartOff:   c.StartOffset,
			EndOff:     c.EndOffset,
			CreatedAt:  now,
		}
		points[i] = vectorstore.Point{
			ID:     chunkID,
			Vector: vectors[i],
			Payload: map[string]any{
				"content":     c.Content,
				"document_id": doc.ID,
				"owner_id":    doc.OwnerID,
				"chunk_index": c.Index,
				"section":     c.Section,
				"doc_type":    doc.DocType,
			},
		}
	}

	if err := p.store.PutChunks(ctx, records); err != nil {
		return fmt.Errorf("persisting chunks: %w", err)
	}
	if err := p.index.Upsert(ctx, points); err != nil {
		return fmt.Errorf("indexing chunks: %w", err)
	}

	summary, summaryTokens := p.summarize(ctx, text)
	doc.Summary = summary
	doc.PageCount = result.PageCount
	doc.ChunkCount = len(chunks)
	doc.Degraded = result.Metadata["degraded"] == "true"
	doc.Status = docstore.StatusCompleted
	doc.StatusReason = ""
	if err := p.store.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("finalizing document: %w", err)
	}

	if err := p.store.RecordUsage(ctx, &docstore.UsageEvent{
		ID:         uuid.NewString(),
		OwnerID:    doc.OwnerID,
		Kind:       "ingest",
		DocumentID: doc.ID,
		Provider:   p.generatorName(),
		Chunks:     len(chunks),
		Tokens:     summaryTokens,
	}); err != nil {
		p.logger.Warn("failed to record ingest usage", zap.Error(err))
	}

	p.logger.Info("document processed",
		zap.String("document_id", doc.ID),
		zap.Int("chunks", len(chunks)),
		zap.Int("pages", doc.PageCount),
		zap.Bool("degraded", doc.Degraded))
	return nil
}

// summarize generates a short document summary from the leading text,
// returning the summary and the tokens the generation call consumed.
// Summaries are best effort; a generation failure never fails ingestion.
func (p *Pipeline) summarize(ctx context.Context, text string) (string, int) {
	lead := truncateAtRune(text, p.options.SummaryMaxChars)

	if p.generator == nil {
		return fallbackSummary(lead), 0
	}
	summary, err := p.generator.Chat(ctx, summarySystemPrompt, []llm.Message{
		{Role: "user", Content: lead},
	})
	if err != nil {
		p.logger.Warn("summary generation failed, using leading text", zap.Error(err))
		return fallbackSummary(lead), 0
	}
	return strings.TrimSpace(summary.Content), summary.TokensUsed
}

// fallbackSummary truncates the leading text when no generator is available.
func fallbackSummary(text string) string {
	const max = 400
	text = strings.TrimSpace(text)
	return truncateSnippet(text, max)
}

// DeleteDocument removes a document everywhere: vector index, chunk and
// metadata records, and the stored bytes.
func (p *Pipeline) DeleteDocument(ctx context.Context, documentID string) error {
	ctx, span := tracer.Start(ctx, "Pipeline.DeleteDocument")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", documentID))

	if _, err := p.store.GetDocument(ctx, documentID); err != nil {
		return err
	}
	if err := p.index.DeleteByFilter(ctx, map[string]any{"document_id": documentID}); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	if err := p.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if err := p.blobs.Delete(ctx, documentID); err != nil {
		p.logger.Warn("failed to delete document bytes",
			zap.String("document_id", documentID),
			zap.Error(err))
	}

	p.logger.Info("document deleted", zap.String("document_id", documentID))
	return nil
}

func (p *Pipeline) generatorName() string {
	if p.generator == nil {
		return "none"
	}
	return p.generator.Name()
}
