package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// storeFactories runs each test against every Store implementation.
var storeFactories = map[string]func(t *testing.T) Store{
	"memory": func(t *testing.T) Store {
		return NewMemoryStore()
	},
	"badger": func(t *testing.T) Store {
		store, err := NewBadgerStore(t.TempDir(), zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	},
}

func testDocument(id, owner string) *Document {
	return &Document{
		ID:       id,
		OwnerID:  owner,
		Filename: "contract.pdf",
		FileType: "pdf",
		DocType:  "contract",
	}
}

func TestStore_DocumentLifecycle(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			doc := testDocument("d1", "u1")
			require.NoError(t, store.CreateDocument(ctx, doc))
			assert.Equal(t, StatusPending, doc.Status)
			assert.False(t, doc.CreatedAt.IsZero())

			got, err := store.GetDocument(ctx, "d1")
			require.NoError(t, err)
			assert.Equal(t, "contract.pdf", got.Filename)
			assert.Equal(t, StatusPending, got.Status)

			// Duplicate insert is rejected.
			err = store.CreateDocument(ctx, testDocument("d1", "u1"))
			assert.ErrorIs(t, err, ErrInvalidDocument)

			_, err = store.GetDocument(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_StatusTransitions(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			require.NoError(t, store.CreateDocument(ctx, testDocument("d1", "u1")))
			require.NoError(t, store.UpdateDocumentStatus(ctx, "d1", StatusProcessing, ""))
			require.NoError(t, store.UpdateDocumentStatus(ctx, "d1", StatusFailed, "empty document"))

			got, err := store.GetDocument(ctx, "d1")
			require.NoError(t, err)
			assert.Equal(t, StatusFailed, got.Status)
			assert.Equal(t, "empty document", got.StatusReason)

			// Terminal states never revert to in-flight ones.
			err = store.UpdateDocumentStatus(ctx, "d1", StatusProcessing, "")
			assert.ErrorIs(t, err, ErrInvalidTransition)

			// Terminal to terminal is allowed (retry that succeeded).
			require.NoError(t, store.UpdateDocumentStatus(ctx, "d1", StatusCompleted, ""))
			got, err = store.GetDocument(ctx, "d1")
			require.NoError(t, err)
			assert.Equal(t, StatusCompleted, got.Status)
		})
	}
}

func TestStore_ListDocuments(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			docA := testDocument("d1", "u1")
			docA.CreatedAt = time.Now().Add(-2 * time.Hour)
			docB := testDocument("d2", "u1")
			docB.CreatedAt = time.Now().Add(-1 * time.Hour)
			docC := testDocument("d3", "u2")
			require.NoError(t, store.CreateDocument(ctx, docA))
			require.NoError(t, store.CreateDocument(ctx, docB))
			require.NoError(t, store.CreateDocument(ctx, docC))
			require.NoError(t, store.UpdateDocumentStatus(ctx, "d1", StatusCompleted, ""))

			docs, err := store.ListDocuments(ctx, ListOptions{OwnerID: "u1"})
			require.NoError(t, err)
			require.Len(t, docs, 2)
			assert.Equal(t, "d2", docs[0].ID, "newest first")

			docs, err = store.ListDocuments(ctx, ListOptions{OwnerID: "u1", Status: StatusCompleted})
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, "d1", docs[0].ID)

			docs, err = store.ListDocuments(ctx, ListOptions{OwnerID: "u1", Limit: 1})
			require.NoError(t, err)
			assert.Len(t, docs, 1)

			_, err = store.ListDocuments(ctx, ListOptions{})
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestStore_ChunksCascade(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			require.NoError(t, store.CreateDocument(ctx, testDocument("d1", "u1")))
			require.NoError(t, store.PutChunks(ctx, []Chunk{
				{ID: "c2", DocumentID: "d1", OwnerID: "u1", Index: 1, Content: "second"},
				{ID: "c1", DocumentID: "d1", OwnerID: "u1", Index: 0, Content: "first", Section: "Section 1"},
			}))

			chunks, err := store.GetChunks(ctx, "d1")
			require.NoError(t, err)
			require.Len(t, chunks, 2)
			assert.Equal(t, "first", chunks[0].Content, "ordered by index")
			assert.Equal(t, "Section 1", chunks[0].Section)

			require.NoError(t, store.DeleteDocument(ctx, "d1"))
			_, err = store.GetDocument(ctx, "d1")
			assert.ErrorIs(t, err, ErrNotFound)

			chunks, err = store.GetChunks(ctx, "d1")
			require.NoError(t, err)
			assert.Empty(t, chunks, "chunks cascade with the document")
		})
	}
}

func TestStore_QueryRecords(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			require.NoError(t, store.SaveQueryRecord(ctx, &QueryRecord{
				ID:             "q1",
				OwnerID:        "u1",
				Question:       "What are the payment terms?",
				Answer:         "Net 30.",
				Confidence:     0.82,
				Provider:       "claude",
				DurationMillis: 350,
				Citations: []Citation{
					{DocumentID: "d1", ChunkID: "c1", ChunkIndex: 0, Section: "Section 2", Snippet: "Payment is due...", Score: 0.82},
				},
				CreatedAt: time.Now().Add(-time.Minute),
			}))
			require.NoError(t, store.SaveQueryRecord(ctx, &QueryRecord{
				ID: "q2", OwnerID: "u1", Question: "later", CreatedAt: time.Now(),
			}))
			require.NoError(t, store.SaveQueryRecord(ctx, &QueryRecord{
				ID: "q3", OwnerID: "u2", Question: "other owner",
			}))

			records, err := store.ListQueryRecords(ctx, QueryListOptions{OwnerID: "u1"})
			require.NoError(t, err)
			require.Len(t, records, 2)
			assert.Equal(t, "q2", records[0].ID, "newest first")
			require.Len(t, records[1].Citations, 1)
			assert.Equal(t, "Section 2", records[1].Citations[0].Section)
			assert.Equal(t, int64(350), records[1].DurationMillis)

			records, err = store.ListQueryRecords(ctx, QueryListOptions{OwnerID: "u1", Limit: 1})
			require.NoError(t, err)
			assert.Len(t, records, 1)
		})
	}
}

func TestStore_QueryRecordTimeRange(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			base := time.Now().Add(-time.Hour).Truncate(time.Second)
			for i, id := range []string{"q1", "q2", "q3"} {
				require.NoError(t, store.SaveQueryRecord(ctx, &QueryRecord{
					ID: id, OwnerID: "u1", Question: id,
					CreatedAt: base.Add(time.Duration(i) * time.Minute),
				}))
			}

			records, err := store.ListQueryRecords(ctx, QueryListOptions{
				OwnerID: "u1",
				Since:   base.Add(time.Minute),
			})
			require.NoError(t, err)
			require.Len(t, records, 2)
			assert.Equal(t, "q3", records[0].ID)

			// Since is inclusive, Until exclusive.
			records, err = store.ListQueryRecords(ctx, QueryListOptions{
				OwnerID: "u1",
				Since:   base.Add(time.Minute),
				Until:   base.Add(2 * time.Minute),
			})
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, "q2", records[0].ID)
		})
	}
}

func TestStore_SetQueryFeedback(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			require.NoError(t, store.SaveQueryRecord(ctx, &QueryRecord{
				ID: "q1", OwnerID: "u1", Question: "payment terms",
			}))

			require.NoError(t, store.SetQueryFeedback(ctx, "u1", "q1", "helpful"))
			records, err := store.ListQueryRecords(ctx, QueryListOptions{OwnerID: "u1"})
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, "helpful", records[0].Feedback)

			// Feedback is mutable after the fact.
			require.NoError(t, store.SetQueryFeedback(ctx, "u1", "q1", "unhelpful"))
			records, err = store.ListQueryRecords(ctx, QueryListOptions{OwnerID: "u1"})
			require.NoError(t, err)
			assert.Equal(t, "unhelpful", records[0].Feedback)

			assert.ErrorIs(t, store.SetQueryFeedback(ctx, "u1", "missing", "x"), ErrNotFound)
			// Another owner's record is indistinguishable from a missing one.
			assert.ErrorIs(t, store.SetQueryFeedback(ctx, "u2", "q1", "x"), ErrNotFound)
		})
	}
}

func TestStore_UsageEvents(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			require.NoError(t, store.RecordUsage(ctx, &UsageEvent{
				ID: "e1", OwnerID: "u1", Kind: "ingest", DocumentID: "d1", Chunks: 4,
			}))
			err := store.RecordUsage(ctx, &UsageEvent{})
			assert.Error(t, err)
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, Status("bogus").Valid())
}

func TestNewStore_Factory(t *testing.T) {
	store, err := NewStore("memory", "", zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = NewStore("postgres", "", zap.NewNop())
	assert.Error(t, err)

	store, err = NewStore("badger", t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, store)
	require.NoError(t, store.Close())
}
