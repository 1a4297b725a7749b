// Package docstore persists document metadata, chunk records, query history
// and usage events. Vector data lives in the vector index; this package is
// the system of record for everything else.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidDocument indicates a document record failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidTransition indicates a status change would demote a
	// document out of a terminal status.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Status is the ingestion lifecycle state of a document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is an end state. Terminal statuses
// may replace each other but never revert to pending or processing.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Document is the metadata record for an uploaded document.
type Document struct {
	ID       string `badgerhold:"key"`
	OwnerID  string `badgerholdIndex:"OwnerID"`
	Filename string
	FileType string

	// DocType is a caller-supplied classification such as "contract"
	// or "statute". Free-form.
	DocType string

	Status       Status
	StatusReason string

	// Summary is generated at ingestion time from the leading text.
	Summary string

	PageCount  int
	ChunkCount int
	SizeBytes  int64

	// Degraded marks documents whose text came from the printable-run
	// fallback rather than a structured parser.
	Degraded bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is a persisted chunk record mirroring what was indexed.
type Chunk struct {
	ID         string `badgerhold:"key"`
	DocumentID string `badgerholdIndex:"DocumentID"`
	OwnerID    string
	Index      int
	Content    string
	Section    string
	Clause     string
	StartOff   int
	EndOff     int
	CreatedAt  time.Time
}

// Citation points a query answer back at a retrieved chunk.
type Citation struct {
	DocumentID string
	ChunkID    string
	ChunkIndex int
	Section    string
	Snippet    string
	Score      float32
}

// QueryRecord is a persisted question/answer exchange.
type QueryRecord struct {
	ID         string `badgerhold:"key"`
	OwnerID    string `badgerholdIndex:"OwnerID"`
	DocumentID string
	Question   string
	Answer     string
	Confidence float32
	Citations  []Citation
	Provider   string

	// DurationMillis is the wall-clock time the query took end to end.
	DurationMillis int64

	// Feedback is user-supplied and mutable after the fact, e.g.
	// "helpful" or "unhelpful". Empty until set.
	Feedback string

	CreatedAt time.Time
}

// UsageEvent records a billable pipeline operation.
type UsageEvent struct {
	ID         string `badgerhold:"key"`
	OwnerID    string `badgerholdIndex:"OwnerID"`
	Kind       string
	DocumentID string
	Provider   string
	Chunks     int

	// Tokens is the generation token count the backend reported for the
	// operation, zero when no generation call was made.
	Tokens int

	CreatedAt time.Time
}

// QueryListOptions filters query history listings.
type QueryListOptions struct {
	// OwnerID restricts results to one owner. Required.
	OwnerID string

	// Since and Until bound CreatedAt when non-zero; Since is inclusive,
	// Until exclusive.
	Since time.Time
	Until time.Time

	// Limit caps results; zero means no cap.
	Limit int
}

// ListOptions filters document listings.
type ListOptions struct {
	// OwnerID restricts results to one owner. Required.
	OwnerID string

	// Status restricts results to one lifecycle state when non-empty.
	Status Status

	// Limit caps results; zero means no cap.
	Limit int
}

// Store persists documents, chunks, query records and usage events.
type Store interface {
	// CreateDocument inserts a new document record.
	CreateDocument(ctx context.Context, doc *Document) error

	// GetDocument returns the document or ErrNotFound.
	GetDocument(ctx context.Context, id string) (*Document, error)

	// ListDocuments returns documents for an owner, newest first.
	ListDocuments(ctx context.Context, opts ListOptions) ([]Document, error)

	// UpdateDocument replaces the stored record.
	UpdateDocument(ctx context.Context, doc *Document) error

	// UpdateDocumentStatus transitions the document's lifecycle state.
	// Demoting a terminal document returns ErrInvalidTransition.
	UpdateDocumentStatus(ctx context.Context, id string, status Status, reason string) error

	// DeleteDocument removes the document and cascades to its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// PutChunks inserts chunk records in a batch.
	PutChunks(ctx context.Context, chunks []Chunk) error

	// GetChunks returns a document's chunks ordered by Index.
	GetChunks(ctx context.Context, documentID string) ([]Chunk, error)

	// SaveQueryRecord persists a question/answer exchange.
	SaveQueryRecord(ctx context.Context, record *QueryRecord) error

	// ListQueryRecords returns an owner's query history, newest first,
	// optionally bounded to a creation-time range.
	ListQueryRecords(ctx context.Context, opts QueryListOptions) ([]QueryRecord, error)

	// SetQueryFeedback updates the feedback on a stored query record.
	// Returns ErrNotFound for an unknown or other-owner record.
	SetQueryFeedback(ctx context.Context, ownerID, id, feedback string) error

	// RecordUsage persists a usage event.
	RecordUsage(ctx context.Context, event *UsageEvent) error

	// Close releases store resources.
	Close() error
}

func validateDocument(doc *Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: ID is required", ErrInvalidDocument)
	}
	if doc.OwnerID == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidDocument)
	}
	if doc.Status != "" && !doc.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidDocument, doc.Status)
	}
	return nil
}
