// Package rag wires extraction, chunking, embedding, vector search and
// generation into the document ingestion and question answering pipeline.
package rag

import (
	"errors"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/lexgrove/lexrag/internal/blobstore"
	"github.com/lexgrove/lexrag/internal/chunker"
	"github.com/lexgrove/lexrag/internal/docstore"
	"github.com/lexgrove/lexrag/internal/embeddings"
	"github.com/lexgrove/lexrag/internal/extract"
	"github.com/lexgrove/lexrag/internal/llm"
	"github.com/lexgrove/lexrag/internal/vectorstore"
)

var tracer = otel.Tracer("lexrag.rag")

var (
	// ErrEmptyDocument indicates extraction produced no chunkable text.
	ErrEmptyDocument = errors.New("document produced no text")

	// ErrQuestionRequired indicates a query with an empty question.
	ErrQuestionRequired = errors.New("question is required")

	// ErrOwnerRequired indicates a request without an owner.
	ErrOwnerRequired = errors.New("owner is required")
)

// Options holds pipeline tunables.
type Options struct {
	// TopK is the default number of chunks retrieved per query.
	TopK int

	// SummaryMaxChars bounds the text sent to the summary generation call.
	SummaryMaxChars int
}

// ApplyDefaults sets default values for unset fields.
func (o *Options) ApplyDefaults() {
	if o.TopK <= 0 {
		o.TopK = 5
	}
	if o.SummaryMaxChars <= 0 {
		o.SummaryMaxChars = 8000
	}
}

// Pipeline is the document ingestion and question answering engine.
//
// The generation provider may be nil: ingestion then skips LLM summaries
// and queries return retrieved excerpts without a generated answer.
type Pipeline struct {
	store     docstore.Store
	blobs     blobstore.Store
	extractor *extract.Extractor
	chunker   *chunker.Chunker
	embedder  embeddings.Provider
	index     vectorstore.Index
	generator llm.Provider
	options   Options
	logger    *zap.Logger
}

// New creates a Pipeline. store, blobs, extractor, chunker, embedder and
// index are required; generator may be nil.
func New(
	store docstore.Store,
	blobs blobstore.Store,
	extractor *extract.Extractor,
	chk *chunker.Chunker,
	embedder embeddings.Provider,
	index vectorstore.Index,
	generator llm.Provider,
	options Options,
	logger *zap.Logger,
) *Pipeline {
	options.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:     store,
		blobs:     blobs,
		extractor: extractor,
		chunker:   chk,
		embedder:  embedder,
		index:     index,
		generator: generator,
		options:   options,
		logger:    logger,
	}
}

// truncateSnippet bounds citation snippets for display.
func truncateSnippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return truncateAtRune(s, max-3) + "..."
}

// truncateAtRune cuts s at no more than max bytes without splitting a UTF-8
// sequence.
func truncateAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
