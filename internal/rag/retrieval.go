package rag

import (
	"context"
	"errors"
	"fmt"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 4

// Retriever provides semantic retrieval over an already built Index.
type Retriever struct {
	embedder Embedder
	index    Index
	topK     int
}

// NewRetriever creates a new Retriever instance. A topK of 0 selects DefaultTopK.
// The embedder may be nil when only Retrieve is used.
func NewRetriever(embedder Embedder, index Index, topK int) (*Retriever, error) {
	if index == nil {
		return nil, fmt.Errorf("index cannot be nil")
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}

	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
	}, nil
}

// TopK returns the number of chunks each query asks for.
func (r *Retriever) TopK() int {
	return r.topK
}

// Retrieve returns the chunks most similar to an already embedded question.
// It only reads the index.
func (r *Retriever) Retrieve(ctx context.Context, questionEmbedding []float32) (RetrievedSet, error) {
	return r.index.Query(ctx, questionEmbedding, r.topK)
}

// RetrieveForQuestion embeds question and retrieves against it. An embedding
// failure is reported as ErrEmbeddingFailed; there is no fallback query.
func (r *Retriever) RetrieveForQuestion(ctx context.Context, question string) (RetrievedSet, error) {
	if r.embedder == nil {
		return nil, fmt.Errorf("%w: embedder cannot be nil", ErrEmbeddingFailed)
	}

	vec, err := EmbedText(ctx, r.embedder, question)
	if err != nil {
		if !errors.Is(err, ErrEmbeddingFailed) {
			err = fmt.Errorf("%w: question: %w", ErrEmbeddingFailed, err)
		}
		return nil, err
	}

	return r.Retrieve(ctx, vec)
}
