// Package store provides rag.Index implementations: an in-process exhaustive
// index and a Milvus-backed index with the same contract.
package store

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/Yates-Labs/tubeqa/internal/chunker"
	"github.com/Yates-Labs/tubeqa/internal/rag"
)

// MemoryIndex scores every entry against the query. Exact and deterministic;
// transcripts are small enough that a linear scan is fast.
type MemoryIndex struct {
	mu         sync.RWMutex
	metric     rag.Metric
	dimension  int
	chunks     []chunker.Chunk
	embeddings [][]float32
}

var _ rag.Index = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty index using metric. An empty metric selects cosine.
func NewMemoryIndex(metric rag.Metric) *MemoryIndex {
	if metric == "" {
		metric = rag.MetricCosine
	}
	return &MemoryIndex{metric: metric}
}

// Build stores copies of chunks and embeddings.
func (m *MemoryIndex) Build(ctx context.Context, chunks []chunker.Chunk, embeddings [][]float32) error {
	dim, err := rag.ValidateEntries(chunks, embeddings)
	if err != nil {
		return err
	}
	if m.metric != rag.MetricCosine && m.metric != rag.MetricL2 {
		return fmt.Errorf("%w: unsupported metric %q", rag.ErrIndexBuild, m.metric)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.chunks) > 0 {
		return fmt.Errorf("%w: index already built", rag.ErrIndexBuild)
	}

	m.chunks = append([]chunker.Chunk(nil), chunks...)
	m.embeddings = make([][]float32, len(embeddings))
	for i, e := range embeddings {
		m.embeddings[i] = append([]float32(nil), e...)
	}
	m.dimension = dim
	return nil
}

// Query scores all entries and returns the best k.
func (m *MemoryIndex) Query(ctx context.Context, query []float32, k int) (rag.RetrievedSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := rag.ValidateQuery(query, k, len(m.chunks), m.dimension); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scored := make(rag.RetrievedSet, len(m.chunks))
	for i, c := range m.chunks {
		scored[i] = rag.ScoredChunk{Chunk: c, Score: similarity(m.metric, query, m.embeddings[i])}
	}
	rag.SortScored(scored)

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// Len returns the number of indexed entries.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// Close drops all entries.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = nil
	m.embeddings = nil
	m.dimension = 0
	return nil
}

func similarity(metric rag.Metric, a, b []float32) float32 {
	if metric == rag.MetricL2 {
		return float32(-euclidean(a, b))
	}
	return float32(cosine(a, b))
}

// cosine is 0 when either vector has zero magnitude.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
