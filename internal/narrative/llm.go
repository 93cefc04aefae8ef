// Package narrative turns retrieved transcript context into an answer. It
// defines a provider-agnostic LLM interface with OpenAI and langchaingo
// implementations plus a deterministic mock, the pure prompt template, and the
// Generator that invokes the model on an already-assembled prompt.
package narrative

import (
	"context"
	"errors"
)

var (
	ErrCompletionFailed = errors.New("completion request failed")
	ErrInvalidConfig    = errors.New("invalid LLM configuration")
)

// LLM defines the interface for interacting with language models.
// Implementations must be stateless and thread-safe.
type LLM interface {
	// Generate produces text from a prompt using the configured model.
	// Returns the generated text or an error if generation fails.
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMConfig holds common configuration options for LLM providers.
type LLMConfig struct {
	// Model specifies the model identifier (e.g., "gpt-4o")
	Model string

	// Temperature controls randomness (0.0 = deterministic, 2.0 = very random)
	Temperature float32

	// MaxTokens limits the response length (0 = use provider default)
	MaxTokens int

	// APIKey is the authentication key for the provider
	APIKey string

	// BaseURL points at an OpenAI-compatible host (empty = provider default)
	BaseURL string
}

// DefaultLLMConfig returns the defaults for transcript question answering.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Model:       "gpt-4o",
		Temperature: 0.2,
	}
}
