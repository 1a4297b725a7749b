package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and zero-dependency runs.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]Document
	chunks    map[string][]Chunk
	queries   []QueryRecord
	usage     []UsageEvent
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]Document),
		chunks:    make(map[string][]Chunk),
	}
}

// CreateDocument inserts a new document record.
func (s *MemoryStore) CreateDocument(_ context.Context, doc *Document) error {
	if err := validateDocument(doc); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.documents[doc.ID]; exists {
		return fmt.Errorf("%w: document %s already exists", ErrInvalidDocument, doc.ID)
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument returns the document or ErrNotFound.
func (s *MemoryStore) GetDocument(_ context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	out := doc
	return &out, nil
}

// ListDocuments returns documents for an owner, newest first.
func (s *MemoryStore) ListDocuments(_ context.Context, opts ListOptions) ([]Document, error) {
	if opts.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidDocument)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Document
	for _, doc := range s.documents {
		if doc.OwnerID != opts.OwnerID {
			continue
		}
		if opts.Status != "" && doc.Status != opts.Status {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// UpdateDocument replaces the stored record.
func (s *MemoryStore) UpdateDocument(_ context.Context, doc *Document) error {
	if err := validateDocument(doc); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; !ok {
		return fmt.Errorf("%w: document %s", ErrNotFound, doc.ID)
	}
	doc.UpdatedAt = time.Now()
	s.documents[doc.ID] = *doc
	return nil
}

// UpdateDocumentStatus transitions the document's lifecycle state.
func (s *MemoryStore) UpdateDocumentStatus(_ context.Context, id string, status Status, reason string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidDocument, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	if doc.Status.Terminal() && !status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, doc.Status, status)
	}
	doc.Status = status
	doc.StatusReason = reason
	doc.UpdatedAt = time.Now()
	s.documents[id] = doc
	return nil
}

// DeleteDocument removes the document and cascades to its chunks.
func (s *MemoryStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}

// PutChunks inserts chunk records in a batch.
func (s *MemoryStore) PutChunks(_ context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, c := range chunks {
		if c.ID == "" || c.DocumentID == "" {
			return fmt.Errorf("chunk ID and document ID are required")
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		s.chunks[c.DocumentID] = append(s.chunks[c.DocumentID], c)
	}
	return nil
}

// GetChunks returns a document's chunks ordered by Index.
func (s *MemoryStore) GetChunks(_ context.Context, documentID string) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Chunk, len(s.chunks[documentID]))
	copy(out, s.chunks[documentID])
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// SaveQueryRecord persists a question/answer exchange.
func (s *MemoryStore) SaveQueryRecord(_ context.Context, record *QueryRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("query record ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	s.queries = append(s.queries, *record)
	return nil
}

// ListQueryRecords returns an owner's query history, newest first,
// optionally bounded to a creation-time range.
func (s *MemoryStore) ListQueryRecords(_ context.Context, opts QueryListOptions) ([]QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []QueryRecord
	for _, r := range s.queries {
		if r.OwnerID != opts.OwnerID {
			continue
		}
		if !opts.Since.IsZero() && r.CreatedAt.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && !r.CreatedAt.Before(opts.Until) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// SetQueryFeedback updates the feedback on a stored query record.
func (s *MemoryStore) SetQueryFeedback(_ context.Context, ownerID, id, feedback string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.queries {
		if s.queries[i].ID == id && s.queries[i].OwnerID == ownerID {
			s.queries[i].Feedback = feedback
			return nil
		}
	}
	return fmt.Errorf("%w: query record %s", ErrNotFound, id)
}

// RecordUsage persists a usage event.
func (s *MemoryStore) RecordUsage(_ context.Context, event *UsageEvent) error {
	if event == nil || event.ID == "" {
		return fmt.Errorf("usage event ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	s.usage = append(s.usage, *event)
	return nil
}

// UsageEvents returns a copy of recorded events for inspection in tests.
func (s *MemoryStore) UsageEvents() []UsageEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]UsageEvent, len(s.usage))
	copy(out, s.usage)
	return out
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
