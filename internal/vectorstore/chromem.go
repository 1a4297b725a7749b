package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("lexrag.vectorstore.chromem")

// ChromemConfig holds configuration for the embedded chromem-go index.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Collection is the collection for chunk vectors.
	Collection string

	// Dimension is the vector dimension; must match the embedding provider.
	Dimension int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.local/share/lexrag/vectorstore"
	}
	if c.Collection == "" {
		c.Collection = "lexrag_chunks"
	}
}

// Validate validates the configuration.
func (c ChromemConfig) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// ChromemIndex is an Index implementation backed by embedded chromem-go.
//
// chromem-go is pure Go with persistence to gob files, so it needs no
// external database service. Vectors are precomputed by the pipeline's
// embedding provider; chromem's own embedding hook is never invoked.
type ChromemIndex struct {
	db     *chromem.DB
	config ChromemConfig

	// ensureMu serializes lazy collection creation.
	ensureMu   sync.Mutex
	collection *chromem.Collection
}

// NewChromemIndex creates a ChromemIndex with persistent storage at the
// configured path.
func NewChromemIndex(config ChromemConfig) (*ChromemIndex, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	path, err := expandHome(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating directory %s: %v", ErrNotConfigured, path, err)
	}

	db, err := chromem.NewPersistentDB(path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: opening chromem DB: %v", ErrNotConfigured, err)
	}

	return &ChromemIndex{db: db, config: config}, nil
}

// precomputedEmbeddingFunc rejects any attempt to embed inside the store;
// the pipeline always supplies vectors.
func precomputedEmbeddingFunc(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("embedding inside the index is not supported; vectors are precomputed")
}

// ensureCollection creates the backing collection if absent.
// GetOrCreateCollection is idempotent, so concurrent callers are safe; the
// mutex only avoids redundant calls.
func (c *ChromemIndex) ensureCollection() (*chromem.Collection, error) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.collection != nil {
		return c.collection, nil
	}

	collection, err := c.db.GetOrCreateCollection(c.config.Collection, nil, precomputedEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: getting/creating collection %s: %v", ErrQueryFailed, c.config.Collection, err)
	}
	c.collection = collection
	return collection, nil
}

// Upsert inserts or replaces points by ID.
func (c *ChromemIndex) Upsert(ctx context.Context, points []Point) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Upsert")
	defer span.End()

	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if err := checkDimension(p.Vector, c.config.Dimension); err != nil {
			span.RecordError(err)
			return err
		}
	}

	collection, err := c.ensureCollection()
	if err != nil {
		span.RecordError(err)
		return err
	}

	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		content, _ := p.Payload["content"].(string)
		docs[i] = chromem.Document{
			ID:        p.ID,
			Content:   content,
			Metadata:  payloadToStrings(p.Payload),
			Embedding: p.Vector,
		}
	}

	// Concurrency 1: embeddings are precomputed, nothing to parallelize.
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: adding documents: %v", ErrQueryFailed, err)
	}
	return nil
}

// Search performs similarity search with the precomputed query vector.
func (c *ChromemIndex) Search(ctx context.Context, vector []float32, opts SearchOptions) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Search")
	defer span.End()

	if err := checkDimension(vector, c.config.Dimension); err != nil {
		span.RecordError(err)
		return nil, err
	}
	limit := normalizeLimit(opts.Limit)

	collection, err := c.ensureCollection()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// chromem requires nResults <= document count.
	count := collection.Count()
	if count == 0 {
		return []SearchResult{}, nil
	}
	if limit > count {
		limit = count
	}

	hits, err := collection.QueryEmbedding(ctx, vector, limit, payloadToStrings(opts.Filter), nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: querying collection: %v", ErrQueryFailed, err)
	}

	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		payload := make(map[string]any, len(h.Metadata)+1)
		for k, v := range h.Metadata {
			payload[k] = v
		}
		payload["content"] = h.Content
		results[i] = SearchResult{
			ID:      h.ID,
			Content: h.Content,
			Score:   h.Similarity,
			Payload: payload,
		}
	}
	return results, nil
}

// DeleteByFilter removes all points matching the payload filter.
func (c *ChromemIndex) DeleteByFilter(ctx context.Context, filter map[string]any) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.DeleteByFilter")
	defer span.End()

	if len(filter) == 0 {
		return fmt.Errorf("delete filter cannot be empty")
	}

	collection, err := c.ensureCollection()
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := collection.Delete(ctx, payloadToStrings(filter), nil); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: deleting documents: %v", ErrQueryFailed, err)
	}
	return nil
}

// Dimension returns the configured vector dimension.
func (c *ChromemIndex) Dimension() int {
	return c.config.Dimension
}

// Close is a no-op; chromem persists on write.
func (c *ChromemIndex) Close() error {
	return nil
}

// payloadToStrings converts a payload to chromem's string metadata,
// skipping the content key, which is stored in the document body.
func payloadToStrings(payload map[string]any) map[string]string {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		if k == "content" {
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
