// Package llm provides chat completion providers for answer and summary
// generation. Claude and Gemini backends are supported; selection is by
// explicit configuration or by credential availability.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNoProviderConfigured indicates no generation backend has credentials.
	ErrNoProviderConfigured = errors.New("no llm provider configured")

	// ErrGenerationFailed indicates the backend call failed.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrEmptyResponse indicates the backend returned no usable text.
	ErrEmptyResponse = errors.New("empty response from llm")
)

// Message is a single turn in a conversation.
type Message struct {
	// Role is "user" or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// Result is a generated completion.
type Result struct {
	// Content is the generated text.
	Content string

	// TokensUsed is the total token count the backend reported for the
	// call, input and output combined. Zero when the backend reports none.
	TokensUsed int
}

// Provider generates chat completions.
type Provider interface {
	// Chat generates a completion for the conversation. The system prompt
	// is passed separately from the turn history.
	Chat(ctx context.Context, system string, messages []Message) (*Result, error)

	// Name identifies the backend for logging and usage records.
	Name() string

	// Close releases provider resources.
	Close() error
}

// Config holds generation provider settings.
type Config struct {
	// Provider forces a backend: "claude" or "gemini". Empty selects by
	// credential availability (claude preferred).
	Provider string

	// Model overrides the provider's default model.
	Model string

	AnthropicAPIKey string
	GeminiAPIKey    string

	// MaxTokens caps generated answer length.
	MaxTokens int

	// Temperature for generation; legal answers want it low.
	Temperature float64

	// Timeout bounds a single generation call.
	Timeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
}

// NewProvider creates a Provider for the configured backend.
//
// With an explicit Provider the matching credential is required. Without
// one, claude is preferred when its key is present, then gemini; no
// credential at all returns ErrNoProviderConfigured.
func NewProvider(ctx context.Context, config Config, logger *zap.Logger) (Provider, error) {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	switch config.Provider {
	case "claude":
		if config.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("%w: claude selected but anthropic api key missing", ErrNoProviderConfigured)
		}
		return NewClaudeProvider(config, logger), nil
	case "gemini":
		if config.GeminiAPIKey == "" {
			return nil, fmt.Errorf("%w: gemini selected but gemini api key missing", ErrNoProviderConfigured)
		}
		return NewGeminiProvider(ctx, config, logger)
	case "":
		if config.AnthropicAPIKey != "" {
			return NewClaudeProvider(config, logger), nil
		}
		if config.GeminiAPIKey != "" {
			return NewGeminiProvider(ctx, config, logger)
		}
		return nil, ErrNoProviderConfigured
	default:
		return nil, fmt.Errorf("unknown llm provider %q (supported: claude, gemini)", config.Provider)
	}
}
