package provider

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/chefbot/config"
	openai_provider "github.com/mohammad-safakhou/chefbot/provider/openai"
)

// Message is one entry in a model conversation.
type Message = openai_provider.Message

// ToolCall is a tool invocation requested by the model.
type ToolCall = openai_provider.ToolCall

// ToolDef describes a callable tool exposed to the model for one request.
type ToolDef = openai_provider.ToolDef

// Provider is the interface that all LLM implementations must satisfy.
type Provider interface {
	ChatCompletion(ctx context.Context, messages []Message, tools []ToolDef) (Message, error)
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates a new LLM client based on the provided configuration.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, errors.New("llm.api_key not set")
		}
		return openai_provider.NewClient(cfg), nil
	case "anthropic":
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider: " + cfg.Provider)
	}
}
