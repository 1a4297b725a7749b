package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultDimension is the hash provider's default vector size, matching the
// dimension of the small sentence-embedding models the TEI provider serves.
const DefaultDimension = 384

// hashSalts are the salted hash variants each token is projected through.
var hashSalts = [3]string{"lex:a", "lex:b", "lex:c"}

// bigramWeight scales adjacent-word bigram contributions, capturing local
// word order with less influence than unigram term frequency.
const bigramWeight = 0.5

// HashProvider is a deterministic, offline embedding provider.
//
// It projects term frequencies into a fixed-dimension space via salted
// hashes with hash-derived signs, a SimHash-style construction. Texts with
// shared vocabulary land near each other; disjoint vocabularies are close
// to orthogonal at realistic dimensions. It is the default when no trained
// embedding model is configured; real deployments substitute a sentence
// embedding model behind the same Provider interface.
type HashProvider struct {
	dimension int
}

// NewHashProvider creates a HashProvider. Non-positive dimension selects
// DefaultDimension.
func NewHashProvider(dimension int) (*HashProvider, error) {
	if dimension < 0 {
		return nil, fmt.Errorf("%w: dimension cannot be negative", ErrInvalidConfig)
	}
	if dimension == 0 {
		dimension = DefaultDimension
	}
	return &HashProvider{dimension: dimension}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *HashProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = p.embed(text)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *HashProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.embed(text), nil
}

// Dimension returns the embedding dimension.
func (p *HashProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op; the provider holds no resources.
func (p *HashProvider) Close() error {
	return nil
}

// embed computes the unit-normalized projection of text. Input with no
// recognized tokens yields the all-zero vector.
func (p *HashProvider) embed(text string) []float32 {
	vec := make([]float32, p.dimension)

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return vec
	}

	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}

	for tok, count := range tf {
		p.accumulate(vec, tok, float32(count))
	}

	// Adjacent-word bigrams capture local word order.
	for i := 0; i+1 < len(tokens); i++ {
		p.accumulate(vec, tokens[i]+" "+tokens[i+1], bigramWeight)
	}

	normalize(vec)
	return vec
}

// accumulate adds weight at each salted hash projection of token, with the
// sign taken from the hash itself.
func (p *HashProvider) accumulate(vec []float32, token string, weight float32) {
	for _, salt := range hashSalts {
		h := fnv.New64a()
		h.Write([]byte(salt))
		h.Write([]byte(token))
		sum := h.Sum64()

		idx := int(sum % uint64(p.dimension))
		if int64(sum) < 0 {
			vec[idx] -= weight
		} else {
			vec[idx] += weight
		}
	}
}

// tokenize lowercases and splits text into alphanumeric words.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// normalize scales vec to unit Euclidean length in place. The zero vector
// stays zero.
func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	inv := 1.0 / math.Sqrt(sumSq)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
}
