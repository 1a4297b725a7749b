package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTEIProviderEmbedDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embed", r.URL.Path)

		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		inputs := req.Inputs.([]any)

		vectors := make([][]float32, len(inputs))
		for i := range vectors {
			vectors[i] = []float32{1, 0, 0}
		}
		require.NoError(t, json.NewEncoder(w).Encode(vectors))
	}))
	defer srv.Close()

	p, err := NewTEIProvider(Config{Provider: "tei", BaseURL: srv.URL, Dimension: 3})
	require.NoError(t, err)

	vectors, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0, 0}, vectors[0])
}

func TestTEIProviderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := NewTEIProvider(Config{Provider: "tei", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), []string{"a"})
	require.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestDetectDimensionFromModel(t *testing.T) {
	assert.Equal(t, 384, detectDimensionFromModel("BAAI/bge-small-en-v1.5"))
	assert.Equal(t, 768, detectDimensionFromModel("BAAI/bge-base-en-v1.5"))
	assert.Equal(t, 1024, detectDimensionFromModel("BAAI/bge-large-en-v1.5"))
}
