package rag

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yates-Labs/tubeqa/internal/chunker"
)

// mockEmbedder implements Embedder interface for testing
type mockEmbedder struct {
	embedFunc func(ctx context.Context, texts []string) ([]EmbeddingRecord, error)
	calls     atomic.Int32
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	m.calls.Add(1)
	if m.embedFunc != nil {
		return m.embedFunc(ctx, texts)
	}
	// Default: a 3-dimensional vector derived from the text length
	records := make([]EmbeddingRecord, len(texts))
	for i, text := range texts {
		records[i] = EmbeddingRecord{
			Text:      text,
			Embedding: []float32{float32(len(text)), 1, 0},
			Index:     i,
			Model:     "mock",
		}
	}
	return records, nil
}

func (m *mockEmbedder) GetModel() string  { return "mock" }
func (m *mockEmbedder) GetDimension() int { return 3 }

// mockIndex implements Index interface for testing
type mockIndex struct {
	queryFunc func(ctx context.Context, query []float32, k int) (RetrievedSet, error)
	lastQuery []float32
	lastK     int
	built     bool
}

func (m *mockIndex) Build(ctx context.Context, chunks []chunker.Chunk, embeddings [][]float32) error {
	m.built = true
	return nil
}

func (m *mockIndex) Query(ctx context.Context, query []float32, k int) (RetrievedSet, error) {
	m.lastQuery = query
	m.lastK = k
	if m.queryFunc != nil {
		return m.queryFunc(ctx, query, k)
	}
	return RetrievedSet{}, nil
}

func (m *mockIndex) Len() int     { return 0 }
func (m *mockIndex) Close() error { return nil }

func TestNewRetriever(t *testing.T) {
	idx := &mockIndex{}

	r, err := NewRetriever(nil, idx, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, r.TopK())

	r, err = NewRetriever(nil, idx, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, r.TopK())

	_, err = NewRetriever(nil, idx, -1)
	assert.ErrorIs(t, err, ErrInvalidTopK)

	_, err = NewRetriever(&mockEmbedder{}, nil, 4)
	assert.Error(t, err)
}

func TestRetriever_Retrieve(t *testing.T) {
	want := RetrievedSet{
		{Chunk: chunker.Chunk{Index: 2, Text: "two"}, Score: 0.9},
		{Chunk: chunker.Chunk{Index: 0, Text: "zero"}, Score: 0.5},
	}
	idx := &mockIndex{queryFunc: func(ctx context.Context, query []float32, k int) (RetrievedSet, error) {
		return want, nil
	}}

	r, err := NewRetriever(nil, idx, 2)
	require.NoError(t, err)

	got, err := r.Retrieve(context.Background(), []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []float32{1, 2, 3}, idx.lastQuery)
	assert.Equal(t, 2, idx.lastK)
	assert.False(t, idx.built, "retrieval must not modify the index")
}

func TestRetriever_RetrievePropagatesIndexErrors(t *testing.T) {
	idx := &mockIndex{queryFunc: func(ctx context.Context, query []float32, k int) (RetrievedSet, error) {
		return nil, ErrEmptyIndex
	}}
	r, err := NewRetriever(nil, idx, 4)
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), []float32{1})
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestRetriever_RetrieveForQuestion(t *testing.T) {
	emb := &mockEmbedder{}
	idx := &mockIndex{}
	r, err := NewRetriever(emb, idx, 3)
	require.NoError(t, err)

	_, err = r.RetrieveForQuestion(context.Background(), "what is fusion?")
	require.NoError(t, err)
	assert.Equal(t, int32(1), emb.calls.Load())
	assert.Equal(t, []float32{15, 1, 0}, idx.lastQuery)
	assert.Equal(t, 3, idx.lastK)
}

func TestRetriever_RetrieveForQuestionEmbeddingFailure(t *testing.T) {
	emb := &mockEmbedder{embedFunc: func(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
		return nil, errors.New("service unavailable")
	}}
	idx := &mockIndex{}
	r, err := NewRetriever(emb, idx, 4)
	require.NoError(t, err)

	_, err = r.RetrieveForQuestion(context.Background(), "anything")
	require.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "service unavailable")
	assert.Nil(t, idx.lastQuery, "index must not be queried without a question embedding")
}

func TestRetriever_RetrieveForQuestionNoEmbedder(t *testing.T) {
	r, err := NewRetriever(nil, &mockIndex{}, 4)
	require.NoError(t, err)

	_, err = r.RetrieveForQuestion(context.Background(), "q")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestEmbedText_EmptyResult(t *testing.T) {
	emb := &mockEmbedder{embedFunc: func(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
		return []EmbeddingRecord{}, nil
	}}
	_, err := EmbedText(context.Background(), emb, "q")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestAssembleContext(t *testing.T) {
	tests := []struct {
		name string
		set  RetrievedSet
		want string
	}{
		{"empty", RetrievedSet{}, ""},
		{"single", RetrievedSet{{Chunk: chunker.Chunk{Text: "only"}}}, "only"},
		{
			"keeps set order and duplicates",
			RetrievedSet{
				{Chunk: chunker.Chunk{Index: 3, Text: "c"}, Score: 0.9},
				{Chunk: chunker.Chunk{Index: 1, Text: "a"}, Score: 0.8},
				{Chunk: chunker.Chunk{Index: 2, Text: "a"}, Score: 0.7},
			},
			"c\n\na\n\na",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssembleContext(tt.set))
		})
	}
}

func TestValidateEntries(t *testing.T) {
	chunks := []chunker.Chunk{{Index: 0, Text: "a"}, {Index: 1, Text: "b"}}

	dim, err := ValidateEntries(chunks, [][]float32{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, 2, dim)

	_, err = ValidateEntries(nil, nil)
	assert.ErrorIs(t, err, ErrIndexBuild)

	_, err = ValidateEntries(chunks, [][]float32{{1, 2}})
	assert.ErrorIs(t, err, ErrIndexBuild)

	_, err = ValidateEntries(chunks, [][]float32{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrIndexBuild)

	_, err = ValidateEntries(chunks, [][]float32{{}, {}})
	assert.ErrorIs(t, err, ErrIndexBuild)
}

func TestValidateQuery(t *testing.T) {
	assert.NoError(t, ValidateQuery([]float32{1, 2}, 1, 3, 2))
	assert.ErrorIs(t, ValidateQuery([]float32{1, 2}, 0, 3, 2), ErrInvalidTopK)
	assert.ErrorIs(t, ValidateQuery([]float32{1, 2}, 1, 0, 2), ErrEmptyIndex)
	assert.ErrorIs(t, ValidateQuery([]float32{1}, 1, 3, 2), ErrDimensionMismatch)
}

func TestSortScored(t *testing.T) {
	set := RetrievedSet{
		{Chunk: chunker.Chunk{Index: 4}, Score: 0.1},
		{Chunk: chunker.Chunk{Index: 2}, Score: 0.5},
		{Chunk: chunker.Chunk{Index: 0}, Score: 0.5},
		{Chunk: chunker.Chunk{Index: 1}, Score: 0.9},
	}
	SortScored(set)

	order := make([]int, len(set))
	for i, sc := range set {
		order[i] = sc.Chunk.Index
	}
	assert.Equal(t, []int{1, 0, 2, 4}, order)
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, MetricCosine, m)

	m, err = ParseMetric("L2")
	require.NoError(t, err)
	assert.Equal(t, MetricL2, m)

	_, err = ParseMetric("IP")
	assert.Error(t, err)
}
