// Package rag implements the retrieval half of the question-answering pipeline:
// embedding transcript chunks, searching them by similarity and assembling the
// retrieved text into a prompt context.
package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Yates-Labs/tubeqa/internal/chunker"
)

// Common errors for index operations
var (
	ErrIndexBuild        = errors.New("index build failed")
	ErrEmptyIndex        = errors.New("index is empty")
	ErrInvalidTopK       = errors.New("top-k must be at least 1")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Metric selects how similarity between two embeddings is measured.
type Metric string

const (
	// MetricCosine scores by cosine similarity; higher is more similar.
	MetricCosine Metric = "COSINE"
	// MetricL2 scores by negated Euclidean distance so that higher is still more similar.
	MetricL2 Metric = "L2"
)

// ParseMetric maps a configuration value onto a Metric.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, "":
		return MetricCosine, nil
	case MetricL2:
		return MetricL2, nil
	}
	return "", fmt.Errorf("unknown similarity metric %q", s)
}

// ScoredChunk is a chunk paired with its similarity to a query.
type ScoredChunk struct {
	Chunk chunker.Chunk `json:"chunk"`
	Score float32       `json:"score"`
}

// RetrievedSet is ordered by descending score, ties in chunk order.
type RetrievedSet []ScoredChunk

// Texts returns the chunk texts in set order.
func (s RetrievedSet) Texts() []string {
	texts := make([]string, len(s))
	for i, sc := range s {
		texts[i] = sc.Chunk.Text
	}
	return texts
}

// Index is an ephemeral similarity index over the chunks of one transcript.
// An index is built once and then only read.
type Index interface {
	// Build stores chunks with their embeddings; chunks[i] pairs with embeddings[i].
	Build(ctx context.Context, chunks []chunker.Chunk, embeddings [][]float32) error

	// Query returns the min(k, Len()) entries most similar to query.
	Query(ctx context.Context, query []float32, k int) (RetrievedSet, error)

	// Len returns the number of indexed entries.
	Len() int

	// Close releases the index and anything it holds.
	Close() error
}

// ValidateEntries checks the Build contract and returns the shared embedding dimension.
func ValidateEntries(chunks []chunker.Chunk, embeddings [][]float32) (int, error) {
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: no chunks to index", ErrIndexBuild)
	}
	if len(chunks) != len(embeddings) {
		return 0, fmt.Errorf("%w: %d chunks but %d embeddings", ErrIndexBuild, len(chunks), len(embeddings))
	}

	dim := len(embeddings[0])
	if dim == 0 {
		return 0, fmt.Errorf("%w: empty embedding for chunk 0", ErrIndexBuild)
	}
	for i, e := range embeddings {
		if len(e) != dim {
			return 0, fmt.Errorf("%w: embedding %d has dimension %d, expected %d", ErrIndexBuild, i, len(e), dim)
		}
	}
	return dim, nil
}

// ValidateQuery checks the Query contract against an index of n entries and dimension dim.
func ValidateQuery(query []float32, k, n, dim int) error {
	if k < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidTopK, k)
	}
	if n == 0 {
		return ErrEmptyIndex
	}
	if len(query) != dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, dim, len(query))
	}
	return nil
}

// SortScored orders set by descending score, breaking ties by chunk index.
func SortScored(set RetrievedSet) {
	sort.SliceStable(set, func(i, j int) bool {
		if set[i].Score != set[j].Score {
			return set[i].Score > set[j].Score
		}
		return set[i].Chunk.Index < set[j].Chunk.Index
	})
}
