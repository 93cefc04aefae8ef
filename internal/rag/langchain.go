package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChainConfig points the langchaingo embedder at an OpenAI-compatible host.
type LangChainConfig struct {
	BaseURL   string // e.g. "http://localhost:11434/v1"; empty uses api.openai.com
	Token     string // "none" for local services without authentication
	Model     string
	Dimension int // expected vector size, 0 if unknown
}

// LangChainEmbedder implements Embedder through langchaingo, which lets the
// pipeline use any OpenAI-compatible embedding service.
type LangChainEmbedder struct {
	embedder  embeddings.Embedder
	model     string
	dimension int
	logger    *slog.Logger
}

// NewLangChainEmbedder creates an embedder for the configured host and model.
func NewLangChainEmbedder(config LangChainConfig) (*LangChainEmbedder, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("%w: missing model name", ErrEmbeddingFailed)
	}
	token := config.Token
	if token == "" {
		token = "none"
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(config.Model),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	return newLangChainEmbedder(embedder, config.Model, config.Dimension), nil
}

func newLangChainEmbedder(e embeddings.Embedder, model string, dimension int) *LangChainEmbedder {
	return &LangChainEmbedder{
		embedder:  e,
		model:     model,
		dimension: dimension,
		logger:    slog.Default().With("component", "langchain-embedder"),
	}
}

// GetModel returns the embedding model identifier
func (e *LangChainEmbedder) GetModel() string {
	return e.model
}

// GetDimension returns the configured embedding dimension
func (e *LangChainEmbedder) GetDimension() int {
	return e.dimension
}

// Embed generates embeddings for texts in a single EmbedDocuments call.
func (e *LangChainEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyTexts
	}

	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: requested %d embeddings, received %d", ErrEmbeddingFailed, len(texts), len(vectors))
	}

	records := make([]EmbeddingRecord, len(texts))
	for i, v := range vectors {
		if e.dimension > 0 && len(v) != e.dimension {
			return nil, fmt.Errorf("%w: %w: expected %d, got %d", ErrEmbeddingFailed, ErrDimensionMismatch, e.dimension, len(v))
		}
		records[i] = EmbeddingRecord{
			Text:      texts[i],
			Embedding: v,
			Index:     i,
			Model:     e.model,
		}
	}
	return records, nil
}
