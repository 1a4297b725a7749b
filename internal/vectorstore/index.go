// Package vectorstore defines the vector index interface and its
// implementations.
//
// An Index stores unit-normalized embedding vectors keyed by chunk ID with
// an arbitrary payload, and answers nearest-neighbor queries by cosine
// similarity, optionally filtered by payload equality predicates.
// Implementations lazily create their backing collection on first use;
// creation is idempotent and safe under concurrent callers.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector index operations.
var (
	// ErrNotConfigured indicates no backing store is reachable or
	// configured. Callers may degrade to a fallback search.
	ErrNotConfigured = errors.New("vector index not configured")

	// ErrQueryFailed indicates a transient search error from the backend.
	ErrQueryFailed = errors.New("vector query failed")

	// ErrDimensionMismatch indicates a vector whose dimension differs from
	// the index's. Mismatched vectors must never be silently compared.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// collectionNamePattern validates collection names: lowercase letters,
// numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Point is a vector with its payload, keyed by the chunk ID it represents.
type Point struct {
	// ID is the unique point identifier, reused from the chunk ID.
	ID string

	// Vector is the unit-normalized embedding.
	Vector []float32

	// Payload carries filterable metadata. The pipeline stores document_id,
	// owner_id, chunk_index, section and doc_type.
	Payload map[string]any
}

// SearchResult is one nearest-neighbor hit, ordered descending by score.
type SearchResult struct {
	// ID is the point identifier.
	ID string

	// Content is the stored chunk text, when the backend carries it in the
	// payload under "content".
	Content string

	// Score is the cosine similarity to the query vector.
	Score float32

	// Payload is the stored metadata.
	Payload map[string]any
}

// SearchOptions bounds and filters a search.
type SearchOptions struct {
	// Limit is the maximum number of results. Non-positive means 10.
	Limit int

	// Filter restricts results to points whose payload matches every
	// key/value equality predicate.
	Filter map[string]any
}

// maxSearchLimit caps a single search to keep result sets bounded.
const maxSearchLimit = 1000

// Index is the vector index contract.
type Index interface {
	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to opts.Limit results ordered by descending cosine
	// similarity, restricted by opts.Filter.
	Search(ctx context.Context, vector []float32, opts SearchOptions) ([]SearchResult, error)

	// DeleteByFilter removes all points whose payload matches every
	// key/value equality predicate in filter.
	DeleteByFilter(ctx context.Context, filter map[string]any) error

	// Dimension returns the vector dimension the index accepts.
	Dimension() int

	// Close releases backend resources.
	Close() error
}

// normalizeLimit applies the default and the cap to a requested limit.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > maxSearchLimit {
		return maxSearchLimit
	}
	return limit
}

// checkDimension verifies that vector matches the index dimension.
func checkDimension(vector []float32, dimension int) error {
	if len(vector) != dimension {
		return fmt.Errorf("%w: got %d, index expects %d", ErrDimensionMismatch, len(vector), dimension)
	}
	return nil
}

// matchesFilter reports whether payload satisfies every equality predicate
// in filter. Values compare by their string form so numeric payloads
// survive backend round-trips (int vs int64 vs float64).
func matchesFilter(payload, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := payload[k]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
