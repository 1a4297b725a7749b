package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashProviderDeterministic(t *testing.T) {
	p, err := NewHashProvider(DefaultDimension)
	require.NoError(t, err)

	ctx := context.Background()
	text := "Payment is due within thirty days of the invoice date."

	a, err := p.EmbedQuery(ctx, text)
	require.NoError(t, err)
	b, err := p.EmbedQuery(ctx, text)
	require.NoError(t, err)

	assert.Equal(t, a, b, "same text must embed to bit-identical vectors")
}

func TestHashProviderUnitNorm(t *testing.T) {
	p, err := NewHashProvider(DefaultDimension)
	require.NoError(t, err)

	vec, err := p.EmbedQuery(context.Background(), "termination clause with notice period")
	require.NoError(t, err)
	require.Len(t, vec, DefaultDimension)

	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-5)
}

func TestHashProviderZeroVectorForNoTokens(t *testing.T) {
	p, err := NewHashProvider(64)
	require.NoError(t, err)

	vec, err := p.EmbedQuery(context.Background(), "!!! ... ---")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestHashProviderDisjointTokensNearOrthogonal(t *testing.T) {
	// At a large dimension, texts sharing no tokens should have cosine
	// similarity near zero.
	p, err := NewHashProvider(4096)
	require.NoError(t, err)

	ctx := context.Background()
	a, err := p.EmbedQuery(ctx, "payment invoice remittance deadline")
	require.NoError(t, err)
	b, err := p.EmbedQuery(ctx, "arbitration venue jurisdiction governing")
	require.NoError(t, err)

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	assert.InDelta(t, 0.0, dot, 0.1)
}

func TestHashProviderSharedVocabulary(t *testing.T) {
	p, err := NewHashProvider(DefaultDimension)
	require.NoError(t, err)

	ctx := context.Background()
	a, err := p.EmbedQuery(ctx, "payment is due within thirty days")
	require.NoError(t, err)
	b, err := p.EmbedQuery(ctx, "what are the payment terms and due dates")
	require.NoError(t, err)
	c, err := p.EmbedQuery(ctx, "governing law and arbitration venue")
	require.NoError(t, err)

	cos := func(x, y []float32) float64 {
		var dot float64
		for i := range x {
			dot += float64(x[i]) * float64(y[i])
		}
		return dot
	}
	assert.Greater(t, cos(a, b), cos(a, c),
		"overlapping vocabulary must score higher than disjoint")
}

func TestHashProviderEmbedDocuments(t *testing.T) {
	p, err := NewHashProvider(128)
	require.NoError(t, err)

	vectors, err := p.EmbedDocuments(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, vec := range vectors {
		assert.Len(t, vec, 128)
	}

	_, err = p.EmbedDocuments(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"section", "1", "payment", "due"}, tokenize("Section 1: Payment, due!"))
	assert.Empty(t, tokenize("..."))
}

func TestNewProviderFactory(t *testing.T) {
	p, err := NewProvider(Config{Provider: "hash", Dimension: 64})
	require.NoError(t, err)
	assert.Equal(t, 64, p.Dimension())

	_, err = NewProvider(Config{Provider: "word2vec"})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewProvider(Config{Provider: "tei"})
	require.ErrorIs(t, err, ErrInvalidConfig)
}
