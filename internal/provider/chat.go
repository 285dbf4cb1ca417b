package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatGenerator adapts an eino tool-calling chat model to the generation
// contract: messages plus an optional tool set in, one assistant message out.
type ChatGenerator struct {
	model model.ToolCallingChatModel
}

func NewChatGenerator(m model.ToolCallingChatModel) *ChatGenerator {
	return &ChatGenerator{model: m}
}

func (g *ChatGenerator) Generate(ctx context.Context, messages []*schema.Message, tools []*schema.ToolInfo) (*schema.Message, error) {
	m := g.model
	if len(tools) > 0 {
		bound, err := g.model.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("failed to bind tools: %w", err)
		}
		m = bound
	}

	msg, err := m.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to generate: %w", err)
	}
	return msg, nil
}
