package llm

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

var geminiTracer = otel.Tracer("lexrag.llm.gemini")

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider generates completions with the Google Gemini API.
type GeminiProvider struct {
	client *genai.Client
	config Config
	logger *zap.Logger
}

// NewGeminiProvider creates a GeminiProvider.
func NewGeminiProvider(ctx context.Context, config Config, logger *zap.Logger) (*GeminiProvider, error) {
	config.ApplyDefaults()
	if config.Model == "" {
		config.Model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing genai client: %w", err)
	}

	return &GeminiProvider{client: client, config: config, logger: logger}, nil
}

// Chat generates a completion for the conversation.
func (p *GeminiProvider) Chat(ctx context.Context, system string, messages []Message) (*Result, error) {
	ctx, span := geminiTracer.Start(ctx, "GeminiProvider.Chat")
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

	genConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(p.config.Temperature)),
		MaxOutputTokens: int32(p.config.MaxTokens),
	}
	if system != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.config.Model, toGeminiContents(messages), genConfig)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	var out strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					out.WriteString(part.Text)
				}
			}
			if out.Len() > 0 {
				break
			}
		}
	}
	if out.Len() == 0 {
		return nil, ErrEmptyResponse
	}

	var tokens int
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	span.SetAttributes(attribute.Int("tokens_used", tokens))
	p.logger.Debug("gemini completion generated",
		zap.String("model", p.config.Model),
		zap.Int("response_chars", out.Len()),
		zap.Int("tokens_used", tokens))
	return &Result{Content: out.String(), TokensUsed: tokens}, nil
}

// Name returns the backend identifier.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Close releases resources; the genai client needs no explicit cleanup.
func (p *GeminiProvider) Close() error {
	return nil
}

func toGeminiContents(messages []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(m.Content)},
		})
	}
	return out
}

var _ Provider = (*GeminiProvider)(nil)
