package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8420", cfg.Server.Addr)
	assert.Equal(t, "hash", cfg.Embeddings.Provider)
	assert.Equal(t, 384, cfg.Embeddings.Dimension)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, "lexrag_chunks", cfg.VectorStore.Collection)
	assert.Equal(t, 500, cfg.Pipeline.MaxChunkTokens)
	assert.Equal(t, 50, cfg.Pipeline.OverlapTokens)
	assert.Equal(t, 5, cfg.Pipeline.TopK)
	assert.Equal(t, 8000, cfg.Pipeline.SummaryMaxChars)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  addr: ":9000"
vectorstore:
  provider: memory
  collection: test_chunks
pipeline:
  top_k: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.VectorStore.Provider)
	assert.Equal(t, "test_chunks", cfg.VectorStore.Collection)
	assert.Equal(t, 3, cfg.Pipeline.TopK)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LEXRAG_SERVER_ADDR", ":7777")
	t.Setenv("LEXRAG_VECTORSTORE_PROVIDER", "memory")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.VectorStore.Provider)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("LEXRAG_VECTORSTORE_PROVIDER", "pinecone")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vectorstore provider")
}

func TestValidateOverlapBound(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	cfg.Pipeline.OverlapTokens = cfg.Pipeline.MaxChunkTokens

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap_tokens")
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("sk-ant-very-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "sk-ant-very-secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
}

func TestDurationParsing(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, time.Duration(d))

	err := d.UnmarshalText([]byte("-5s"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative")
}

func TestTransformEnvKey(t *testing.T) {
	assert.Equal(t, "server.addr", transformEnvKey("LEXRAG_SERVER_ADDR"))
	assert.Equal(t, "server.max_upload_bytes", transformEnvKey("LEXRAG_SERVER_MAX_UPLOAD_BYTES"))
	assert.Equal(t, "llm.anthropic_api_key", transformEnvKey("LEXRAG_LLM_ANTHROPIC_API_KEY"))
}
