// Package ai provides generative-model enrichment for pipelines: a
// Provider abstraction over the Gemini and Anthropic APIs plus a DoFn that
// prompts a model once per element.
package ai

import (
	"context"
	"fmt"
)

// Provider sends a single prompt to a generative model and returns the
// text response.
type Provider interface {
	// Generate sends a prompt and returns the complete text response.
	Generate(ctx context.Context, prompt string) (string, error)

	// Name returns the provider name for logging and display.
	Name() string

	// Model returns the model identifier being used.
	Model() string
}

// Config contains common configuration for providers.
type Config struct {
	// Model is the model identifier. Each provider has its own default.
	Model string `json:"model,omitempty"`

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int `json:"max_tokens,omitempty"`

	// APIKey overrides the provider's environment-variable lookup.
	APIKey string `json:"api_key,omitempty"`
}

const defaultMaxTokens = 1024

// NewProvider constructs a provider by name: "gemini", "anthropic" or
// "mock".
func NewProvider(ctx context.Context, name string, cfg Config) (Provider, error) {
	switch name {
	case "gemini":
		return NewGeminiProvider(ctx, cfg)
	case "anthropic":
		return NewAnthropicProvider(cfg)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}
