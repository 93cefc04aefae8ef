package narrative

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// LangChainLLM implements LLM through langchaingo so any OpenAI-compatible
// chat service (Ollama, vLLM, LM Studio) can answer questions.
type LangChainLLM struct {
	client llms.Model
	config LLMConfig
	logger *slog.Logger
}

// NewLangChainLLM creates a langchaingo-backed LLM. An empty APIKey sends
// "none", which local services accept.
func NewLangChainLLM(config LLMConfig) (*LangChainLLM, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("%w: missing model name", ErrInvalidConfig)
	}
	token := config.APIKey
	if token == "" {
		token = "none"
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(config.Model),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return newLangChainLLM(client, config), nil
}

func newLangChainLLM(client llms.Model, config LLMConfig) *LangChainLLM {
	return &LangChainLLM{
		client: client,
		config: config,
		logger: slog.Default().With("component", "langchain-llm"),
	}
}

// Generate sends the prompt as a single human message and returns the first choice.
func (l *LangChainLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", ErrInvalidConfig)
	}

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}
	callOpts := []llms.CallOption{llms.WithTemperature(float64(l.config.Temperature))}
	if l.config.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(l.config.MaxTokens))
	}

	response, err := l.client.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		l.logger.Error("failed to generate content", "model", l.config.Model, "err", err)
		return "", fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: no response generated", ErrCompletionFailed)
	}

	return response.Choices[0].Content, nil
}
