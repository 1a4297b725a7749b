package docstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/timshannon/badgerhold/v4"
	"go.uber.org/zap"
)

// BadgerStore is a Store backed by embedded BadgerDB via badgerhold.
// It is the durable default for single-node deployments.
type BadgerStore struct {
	store  *badgerhold.Store
	logger *zap.Logger
}

// NewBadgerStore opens (or creates) a badger database at path.
func NewBadgerStore(path string, logger *zap.Logger) (*BadgerStore, error) {
	if path == "" {
		return nil, fmt.Errorf("badger path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	path, err := expandHome(path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating badger directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("opening badger store: %w", err)
	}

	logger.Info("document store opened", zap.String("path", path))
	return &BadgerStore{store: store, logger: logger}, nil
}

// CreateDocument inserts a new document record.
func (s *BadgerStore) CreateDocument(_ context.Context, doc *Document) error {
	if err := validateDocument(doc); err != nil {
		return err
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = StatusPending
	}

	if err := s.store.Insert(doc.ID, doc); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("%w: document %s already exists", ErrInvalidDocument, doc.ID)
		}
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// GetDocument returns the document or ErrNotFound.
func (s *BadgerStore) GetDocument(_ context.Context, id string) (*Document, error) {
	var doc Document
	if err := s.store.Get(id, &doc); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return &doc, nil
}

// ListDocuments returns documents for an owner, newest first.
func (s *BadgerStore) ListDocuments(_ context.Context, opts ListOptions) ([]Document, error) {
	if opts.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidDocument)
	}

	query := badgerhold.Where("OwnerID").Eq(opts.OwnerID)
	if opts.Status != "" {
		query = query.And("Status").Eq(opts.Status)
	}

	var docs []Document
	if err := s.store.Find(&docs, query); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	if opts.Limit > 0 && len(docs) > opts.Limit {
		docs = docs[:opts.Limit]
	}
	return docs, nil
}

// UpdateDocument replaces the stored record.
func (s *BadgerStore) UpdateDocument(_ context.Context, doc *Document) error {
	if err := validateDocument(doc); err != nil {
		return err
	}

	doc.UpdatedAt = time.Now()
	if err := s.store.Update(doc.ID, doc); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("%w: document %s", ErrNotFound, doc.ID)
		}
		return fmt.Errorf("updating document: %w", err)
	}
	return nil
}

// UpdateDocumentStatus transitions the document's lifecycle state.
func (s *BadgerStore) UpdateDocumentStatus(ctx context.Context, id string, status Status, reason string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidDocument, status)
	}

	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc.Status.Terminal() && !status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, doc.Status, status)
	}

	doc.Status = status
	doc.StatusReason = reason
	return s.UpdateDocument(ctx, doc)
}

// DeleteDocument removes the document and cascades to its chunks.
func (s *BadgerStore) DeleteDocument(_ context.Context, id string) error {
	if err := s.store.Delete(id, &Document{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("%w: document %s", ErrNotFound, id)
		}
		return fmt.Errorf("deleting document: %w", err)
	}
	if err := s.store.DeleteMatching(&Chunk{}, badgerhold.Where("DocumentID").Eq(id)); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// PutChunks inserts chunk records in a batch.
func (s *BadgerStore) PutChunks(_ context.Context, chunks []Chunk) error {
	now := time.Now()
	for _, c := range chunks {
		if c.ID == "" || c.DocumentID == "" {
			return fmt.Errorf("chunk ID and document ID are required")
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if err := s.store.Upsert(c.ID, &c); err != nil {
			return fmt.Errorf("storing chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// GetChunks returns a document's chunks ordered by Index.
func (s *BadgerStore) GetChunks(_ context.Context, documentID string) ([]Chunk, error) {
	var chunks []Chunk
	if err := s.store.Find(&chunks, badgerhold.Where("DocumentID").Eq(documentID)); err != nil {
		return nil, fmt.Errorf("getting chunks: %w", err)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

// SaveQueryRecord persists a question/answer exchange.
func (s *BadgerStore) SaveQueryRecord(_ context.Context, record *QueryRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("query record ID is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if err := s.store.Upsert(record.ID, record); err != nil {
		return fmt.Errorf("storing query record: %w", err)
	}
	return nil
}

// ListQueryRecords returns an owner's query history, newest first,
// optionally bounded to a creation-time range.
func (s *BadgerStore) ListQueryRecords(_ context.Context, opts QueryListOptions) ([]QueryRecord, error) {
	query := badgerhold.Where("OwnerID").Eq(opts.OwnerID)
	if !opts.Since.IsZero() {
		query = query.And("CreatedAt").Ge(opts.Since)
	}
	if !opts.Until.IsZero() {
		query = query.And("CreatedAt").Lt(opts.Until)
	}

	var records []QueryRecord
	if err := s.store.Find(&records, query); err != nil {
		return nil, fmt.Errorf("listing query records: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].CreatedAt.After(records[j].CreatedAt) })
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}
	return records, nil
}

// SetQueryFeedback updates the feedback on a stored query record.
func (s *BadgerStore) SetQueryFeedback(_ context.Context, ownerID, id, feedback string) error {
	var record QueryRecord
	if err := s.store.Get(id, &record); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("%w: query record %s", ErrNotFound, id)
		}
		return fmt.Errorf("getting query record: %w", err)
	}
	if record.OwnerID != ownerID {
		return fmt.Errorf("%w: query record %s", ErrNotFound, id)
	}

	record.Feedback = feedback
	if err := s.store.Update(id, &record); err != nil {
		return fmt.Errorf("updating query record: %w", err)
	}
	return nil
}

// RecordUsage persists a usage event.
func (s *BadgerStore) RecordUsage(_ context.Context, event *UsageEvent) error {
	if event == nil || event.ID == "" {
		return fmt.Errorf("usage event ID is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if err := s.store.Upsert(event.ID, event); err != nil {
		return fmt.Errorf("storing usage event: %w", err)
	}
	return nil
}

// Close closes the underlying badger database.
func (s *BadgerStore) Close() error {
	return s.store.Close()
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

var _ Store = (*BadgerStore)(nil)
