package vectorstore

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var fallbackTracer = otel.Tracer("lexrag.vectorstore.fallback")

// defaultFallbackMaxPoints bounds the in-memory fallback so an extended
// primary outage cannot exhaust memory.
const defaultFallbackMaxPoints = 10000

// FallbackIndex wraps a primary Index with a bounded in-memory fallback.
//
// When the primary reports ErrNotConfigured (unreachable or not set up),
// operations transparently go to the fallback so ingestion and query keep
// working with reduced durability. Other errors pass through unchanged.
type FallbackIndex struct {
	primary  Index
	fallback *MemoryIndex
	logger   *zap.Logger

	mu       sync.Mutex
	degraded bool
}

// NewFallbackIndex creates a FallbackIndex around the primary. maxPoints
// bounds the fallback working set; zero or negative uses the default.
func NewFallbackIndex(primary Index, maxPoints int, logger *zap.Logger) *FallbackIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxPoints <= 0 {
		maxPoints = defaultFallbackMaxPoints
	}
	return &FallbackIndex{
		primary:  primary,
		fallback: NewMemoryIndex(primary.Dimension(), maxPoints),
		logger:   logger,
	}
}

// Degraded reports whether any operation has fallen back to memory.
func (f *FallbackIndex) Degraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

func (f *FallbackIndex) markDegraded(op string, err error) {
	f.mu.Lock()
	first := !f.degraded
	f.degraded = true
	f.mu.Unlock()
	if first {
		f.logger.Warn("primary vector index unavailable, using in-memory fallback",
			zap.String("operation", op),
			zap.Error(err))
	}
}

// Upsert writes to the primary, falling back to memory when the primary is
// not configured.
func (f *FallbackIndex) Upsert(ctx context.Context, points []Point) error {
	ctx, span := fallbackTracer.Start(ctx, "FallbackIndex.Upsert")
	defer span.End()

	err := f.primary.Upsert(ctx, points)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotConfigured) {
		return err
	}

	f.markDegraded("upsert", err)
	span.SetAttributes(attribute.Bool("fallback", true))
	return f.fallback.Upsert(ctx, points)
}

// Search queries the primary, falling back to memory when the primary is
// not configured.
func (f *FallbackIndex) Search(ctx context.Context, vector []float32, opts SearchOptions) ([]SearchResult, error) {
	ctx, span := fallbackTracer.Start(ctx, "FallbackIndex.Search")
	defer span.End()

	results, err := f.primary.Search(ctx, vector, opts)
	if err == nil {
		return results, nil
	}
	if !errors.Is(err, ErrNotConfigured) {
		return nil, err
	}

	f.markDegraded("search", err)
	span.SetAttributes(attribute.Bool("fallback", true))
	return f.fallback.Search(ctx, vector, opts)
}

// DeleteByFilter deletes from both the primary and the fallback; points may
// exist in either after a partial outage.
func (f *FallbackIndex) DeleteByFilter(ctx context.Context, filter map[string]any) error {
	ctx, span := fallbackTracer.Start(ctx, "FallbackIndex.DeleteByFilter")
	defer span.End()

	primaryErr := f.primary.DeleteByFilter(ctx, filter)
	if primaryErr != nil && errors.Is(primaryErr, ErrNotConfigured) {
		f.markDegraded("delete", primaryErr)
		span.SetAttributes(attribute.Bool("fallback", true))
		primaryErr = nil
	}
	if err := f.fallback.DeleteByFilter(ctx, filter); err != nil {
		return err
	}
	return primaryErr
}

// Dimension returns the primary's vector dimension.
func (f *FallbackIndex) Dimension() int {
	return f.primary.Dimension()
}

// Close closes the primary index.
func (f *FallbackIndex) Close() error {
	return f.primary.Close()
}

var _ Index = (*FallbackIndex)(nil)
