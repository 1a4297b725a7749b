package vectorstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryIndex is a bounded, in-process brute-force cosine index.
//
// It backs tests, offline use, and the degraded fallback path when a remote
// backend is unreachable. Search is exact: every stored vector is compared
// against the query.
type MemoryIndex struct {
	dimension int
	maxPoints int

	mu     sync.RWMutex
	points map[string]Point
	order  []string // insertion order, for eviction
}

// NewMemoryIndex creates a MemoryIndex. dimension must be positive; maxPoints
// bounds the working set and non-positive means unbounded.
func NewMemoryIndex(dimension, maxPoints int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		maxPoints: maxPoints,
		points:    make(map[string]Point),
	}
}

// Upsert inserts or replaces points by ID. When the bound is exceeded, the
// oldest points are evicted first.
func (m *MemoryIndex) Upsert(ctx context.Context, points []Point) error {
	for _, p := range points {
		if err := checkDimension(p.Vector, m.dimension); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range points {
		if _, exists := m.points[p.ID]; !exists {
			m.order = append(m.order, p.ID)
		}
		m.points[p.ID] = p
	}

	if m.maxPoints > 0 {
		for len(m.points) > m.maxPoints && len(m.order) > 0 {
			oldest := m.order[0]
			m.order = m.order[1:]
			delete(m.points, oldest)
		}
	}
	return nil
}

// Search performs exact cosine search over all stored points.
func (m *MemoryIndex) Search(ctx context.Context, vector []float32, opts SearchOptions) ([]SearchResult, error) {
	if err := checkDimension(vector, m.dimension); err != nil {
		return nil, err
	}
	limit := normalizeLimit(opts.Limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]SearchResult, 0, len(m.points))
	for _, p := range m.points {
		if opts.Filter != nil && !matchesFilter(p.Payload, opts.Filter) {
			continue
		}
		r := SearchResult{
			ID:      p.ID,
			Score:   dot(vector, p.Vector),
			Payload: p.Payload,
		}
		if content, ok := p.Payload["content"].(string); ok {
			r.Content = content
		}
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteByFilter removes all points matching the filter.
func (m *MemoryIndex) DeleteByFilter(ctx context.Context, filter map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.order[:0]
	for _, id := range m.order {
		p, ok := m.points[id]
		if !ok {
			continue
		}
		if matchesFilter(p.Payload, filter) {
			delete(m.points, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return nil
}

// Dimension returns the vector dimension the index accepts.
func (m *MemoryIndex) Dimension() int {
	return m.dimension
}

// Len returns the number of stored points.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

// Close is a no-op.
func (m *MemoryIndex) Close() error {
	return nil
}

// dot computes the dot product of two equal-length vectors. For
// unit-normalized inputs this is the cosine similarity.
func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

var _ Index = (*MemoryIndex)(nil)
