package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var claudeTracer = otel.Tracer("lexrag.llm.claude")

const defaultClaudeModel = "claude-sonnet-4-20250514"

// ClaudeProvider generates completions with the Anthropic Messages API.
type ClaudeProvider struct {
	client anthropic.Client
	config Config
	logger *zap.Logger
}

// NewClaudeProvider creates a ClaudeProvider.
func NewClaudeProvider(config Config, logger *zap.Logger) *ClaudeProvider {
	config.ApplyDefaults()
	if config.Model == "" {
		config.Model = defaultClaudeModel
	}
	return &ClaudeProvider{
		client: anthropic.NewClient(option.WithAPIKey(config.AnthropicAPIKey)),
		config: config,
		logger: logger,
	}
}

// Chat generates a completion for the conversation.
func (p *ClaudeProvider) Chat(ctx context.Context, system string, messages []Message) (*Result, error) {
	ctx, span := claudeTracer.Start(ctx, "ClaudeProvider.Chat")
	defer span.End()
	span.SetAttributes(
		attribute.String("model", p.config.Model),
		attribute.Int("message_count", len(messages)),
	)

	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: no messages", ErrGenerationFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: int64(p.config.MaxTokens),
		Messages:  toClaudeMessages(messages),
	}
	if p.config.Temperature > 0 {
		params.Temperature = anthropic.Float(p.config.Temperature)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	text := claudeText(resp.Content)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	tokens := int(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	span.SetAttributes(attribute.Int("tokens_used", tokens))
	p.logger.Debug("claude completion generated",
		zap.String("model", p.config.Model),
		zap.Int("response_chars", len(text)),
		zap.Int("tokens_used", tokens))
	return &Result{Content: text, TokensUsed: tokens}, nil
}

// claudeText concatenates the text blocks of a response, skipping tool-use
// and other non-text block types.
func claudeText(blocks []anthropic.ContentBlockUnion) string {
	var out strings.Builder
	for _, block := range blocks {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String()
}

// Name returns the backend identifier.
func (p *ClaudeProvider) Name() string {
	return "claude"
}

// Close releases resources; the Anthropic client needs no explicit cleanup.
func (p *ClaudeProvider) Close() error {
	return nil
}

func toClaudeMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

var _ Provider = (*ClaudeProvider)(nil)
