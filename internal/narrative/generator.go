package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Answer is the model's reply to a question about the transcript.
type Answer struct {
	// Text is the generated answer content
	Text string `json:"text"`

	// Insufficient is true when the model said the context did not contain the answer
	Insufficient bool `json:"insufficient"`

	// Model is the LLM model used to generate this answer
	Model string `json:"model"`

	// GeneratedAt is when this answer was created
	GeneratedAt time.Time `json:"generated_at"`
}

// Generator produces answers using an LLM.
// It invokes the LLM on an already-assembled prompt.
type Generator struct {
	llm    LLM
	config LLMConfig
	logger *slog.Logger
}

// NewGenerator creates an answer generator with the given LLM implementation.
func NewGenerator(llm LLM, config LLMConfig, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		llm:    llm,
		config: config,
		logger: logger.With("component", "generator"),
	}
}

// Answer invokes the LLM with an already-assembled prompt.
// It must not perform retrieval or prompt construction.
func (g *Generator) Answer(ctx context.Context, prompt string) (*Answer, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("%w: LLM is required", ErrCompletionFailed)
	}
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrCompletionFailed)
	}

	start := time.Now()
	text, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		if !errors.Is(err, ErrCompletionFailed) {
			err = fmt.Errorf("%w: %w", ErrCompletionFailed, err)
		}
		return nil, err
	}

	text = strings.TrimSpace(text)
	g.logger.Debug("answer generated", "model", g.config.Model, "chars", len(text), "elapsed", time.Since(start))

	return &Answer{
		Text:         text,
		Insufficient: IsInsufficient(text),
		Model:        g.config.Model,
		GeneratedAt:  time.Now(),
	}, nil
}

var insufficientPhrases = []string{
	"don't know",
	"do not know",
	"dont know",
	"not enough information",
	"context is insufficient",
}

// IsInsufficient reports whether an answer declines for lack of context.
func IsInsufficient(text string) bool {
	t := strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	for _, p := range insufficientPhrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}
