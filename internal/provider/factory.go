// Package provider builds the language-model and embedding clients the
// gateway talks to. A single Factory is created at startup and handed to the
// components that need providers.
package provider

import (
	"context"
	"fmt"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/openai"
	goopenai "github.com/sashabaranov/go-openai"
)

// Embedding providers
const (
	EmbeddingOpenAI = "openai"
	EmbeddingGemini = "gemini"
	EmbeddingHash   = "hash"
)

type Config struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string

	ChatModel    string
	SummaryModel string
	Temperature  float32
	MaxTokens    int
	Timeout      time.Duration

	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingDimensions int
}

type Factory struct {
	cfg Config
}

func NewFactory(cfg Config) *Factory {
	return &Factory{cfg: cfg}
}

// Generator returns the conversation model.
func (f *Factory) Generator(ctx context.Context) (*ChatGenerator, error) {
	return f.chat(ctx, f.cfg.ChatModel)
}

// Summarizer returns the model used for history and context summaries. It
// falls back to the conversation model when none is configured.
func (f *Factory) Summarizer(ctx context.Context) (*ChatGenerator, error) {
	name := f.cfg.SummaryModel
	if name == "" {
		name = f.cfg.ChatModel
	}
	return f.chat(ctx, name)
}

func (f *Factory) chat(ctx context.Context, modelName string) (*ChatGenerator, error) {
	if f.cfg.OpenAIAPIKey == "" && f.cfg.OpenAIBaseURL == "" {
		return nil, fmt.Errorf("%w: chat model needs an API key or base URL", domain.ErrProviderNotEnabled)
	}

	cfg := &einoopenai.ChatModelConfig{
		APIKey:  f.cfg.OpenAIAPIKey,
		BaseURL: f.cfg.OpenAIBaseURL,
		Model:   modelName,
		Timeout: f.cfg.Timeout,
	}
	if f.cfg.MaxTokens > 0 {
		maxTokens := f.cfg.MaxTokens
		cfg.MaxTokens = &maxTokens
	}
	if f.cfg.Temperature > 0 {
		temperature := f.cfg.Temperature
		cfg.Temperature = &temperature
	}

	cm, err := einoopenai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating chat model: %w", err)
	}
	return NewChatGenerator(cm), nil
}

// Embedder returns the configured embedding provider wrapped in a
// CheckedEmbedder that enforces count and dimension.
func (f *Factory) Embedder(ctx context.Context) (*CheckedEmbedder, error) {
	dim := f.cfg.EmbeddingDimensions
	if dim <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrMissingDimension, dim)
	}

	var inner Embedder
	switch f.cfg.EmbeddingProvider {
	case EmbeddingOpenAI, "":
		if f.cfg.OpenAIAPIKey == "" && f.cfg.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("%w: openai embeddings need an API key or base URL", domain.ErrProviderNotEnabled)
		}
		inner = openai.NewClientWithConfig(openai.Config{
			APIKey:              f.cfg.OpenAIAPIKey,
			BaseURL:             f.cfg.OpenAIBaseURL,
			EmbeddingModel:      goopenai.EmbeddingModel(f.cfg.EmbeddingModel),
			EmbeddingDimensions: dim,
		})
	case EmbeddingGemini:
		if f.cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("%w: gemini embeddings need an API key", domain.ErrProviderNotEnabled)
		}
		g, err := NewGeminiEmbedder(ctx, f.cfg.GeminiAPIKey, f.cfg.EmbeddingModel, dim)
		if err != nil {
			return nil, err
		}
		inner = g
	case EmbeddingHash:
		inner = NewHashEmbedder(dim)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrProviderNotEnabled, f.cfg.EmbeddingProvider)
	}

	return NewCheckedEmbedder(inner, dim), nil
}
