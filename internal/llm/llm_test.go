package llm

import (
	"context"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProvider_Selection(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	tests := []struct {
		name     string
		config   Config
		wantName string
		wantErr  error
	}{
		{
			name:    "no credentials",
			config:  Config{},
			wantErr: ErrNoProviderConfigured,
		},
		{
			name:     "claude preferred when both keys present",
			config:   Config{AnthropicAPIKey: "sk-a", GeminiAPIKey: "g-k"},
			wantName: "claude",
		},
		{
			name:     "gemini when only gemini key present",
			config:   Config{GeminiAPIKey: "g-k"},
			wantName: "gemini",
		},
		{
			name:     "explicit claude",
			config:   Config{Provider: "claude", AnthropicAPIKey: "sk-a"},
			wantName: "claude",
		},
		{
			name:    "explicit claude without key",
			config:  Config{Provider: "claude"},
			wantErr: ErrNoProviderConfigured,
		},
		{
			name:    "explicit gemini without key",
			config:  Config{Provider: "gemini"},
			wantErr: ErrNoProviderConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(ctx, tt.config, logger)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, provider.Name())
			assert.NoError(t, provider.Close())
		})
	}
}

func TestNewProvider_UnknownBackend(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Provider: "llama"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown llm provider")
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, 1024, cfg.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
}

func TestToClaudeMessages(t *testing.T) {
	msgs := toClaudeMessages([]Message{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
		{Role: "other", Content: "fallback"},
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
}

func TestToGeminiContents(t *testing.T) {
	contents := toGeminiContents([]Message{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
	})
	require.Len(t, contents, 2)
	assert.Equal(t, "user", string(contents[0].Role))
	assert.Equal(t, "model", string(contents[1].Role))
	require.Len(t, contents[0].Parts, 1)
	assert.Equal(t, "question", contents[0].Parts[0].Text)
}

func TestClaudeProvider_ChatRequiresMessages(t *testing.T) {
	p := NewClaudeProvider(Config{AnthropicAPIKey: "sk-a"}, zap.NewNop())
	_, err := p.Chat(context.Background(), "system", nil)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestClaudeText(t *testing.T) {
	blocks := []anthropic.ContentBlockUnion{
		{Type: "text", Text: "Net 30 applies. "},
		{Type: "tool_use"},
		{Type: "text", Text: "See Section 2."},
	}
	assert.Equal(t, "Net 30 applies. See Section 2.", claudeText(blocks))
	assert.Empty(t, claudeText(nil))
	assert.Empty(t, claudeText([]anthropic.ContentBlockUnion{{Type: "tool_use"}}))
}
