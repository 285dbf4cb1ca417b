package provider

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiEmbeddingModel is used when no model is configured.
const DefaultGeminiEmbeddingModel = "gemini-embedding-001"

// GeminiEmbedder calls the Gemini API embedContent endpoint with one content
// per text.
type GeminiEmbedder struct {
	models     *genai.Models
	model      string
	dimensions int32
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimensions int) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiEmbeddingModel
	}
	return &GeminiEmbedder{
		models:     client.Models,
		model:      model,
		dimensions: int32(dimensions),
	}, nil
}

func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: t}}}
	}

	var config *genai.EmbedContentConfig
	if g.dimensions > 0 {
		dim := g.dimensions
		config = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	resp, err := g.models.EmbedContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to embed with gemini: %w", err)
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		out = append(out, e.Values)
	}
	return out, nil
}
