package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/Yates-Labs/tubeqa/internal/chunker"
	"github.com/Yates-Labs/tubeqa/internal/rag"
)

// Common errors for Milvus operations
var (
	ErrConnectionFailed = errors.New("failed to connect to Milvus")
	ErrCollectionFailed = errors.New("failed to prepare Milvus collection")
	ErrSearchFailed     = errors.New("failed to search vectors")
)

const (
	fieldID        = "chunk_index"
	fieldText      = "text"
	fieldStart     = "start"
	fieldEnd       = "end"
	fieldEmbedding = "embedding"

	maxTextBytes = 65535
)

// MilvusConfig holds configuration for the Milvus connection
type MilvusConfig struct {
	Address          string     // Milvus server address (e.g., "localhost:19530")
	CollectionPrefix string     // Per-run collections are named <prefix>_<uuid>
	Metric           rag.Metric // Similarity metric (default: COSINE)
}

// DefaultMilvusConfig returns the default local Milvus configuration
func DefaultMilvusConfig() MilvusConfig {
	return MilvusConfig{
		Address:          "localhost:19530",
		CollectionPrefix: "tubeqa",
		Metric:           rag.MetricCosine,
	}
}

// MilvusIndex implements rag.Index over a Milvus collection that lives only as
// long as the index: it is created by Build and dropped by Close.
type MilvusIndex struct {
	mu         sync.Mutex
	client     client.Client
	config     MilvusConfig
	collection string
	created    bool
	dimension  int
	count      int
	logger     *slog.Logger
}

var _ rag.Index = (*MilvusIndex)(nil)

// NewMilvusIndex connects to Milvus. No collection exists until Build.
func NewMilvusIndex(ctx context.Context, config MilvusConfig, logger *slog.Logger) (*MilvusIndex, error) {
	if config.Metric == "" {
		config.Metric = rag.MetricCosine
	}
	if _, err := metricType(config.Metric); err != nil {
		return nil, err
	}
	if config.CollectionPrefix == "" {
		config.CollectionPrefix = DefaultMilvusConfig().CollectionPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}

	c, err := client.NewGrpcClient(ctx, config.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return &MilvusIndex{
		client:     c,
		config:     config,
		collection: collectionName(config.CollectionPrefix),
		logger:     logger.With("component", "milvus-index"),
	}, nil
}

// collectionName returns a unique, Milvus-safe collection name.
func collectionName(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "_")
}

func metricType(m rag.Metric) (entity.MetricType, error) {
	switch m {
	case rag.MetricCosine:
		return entity.COSINE, nil
	case rag.MetricL2:
		return entity.L2, nil
	}
	return "", fmt.Errorf("unsupported metric %q", m)
}

// Build creates the collection, inserts all entries and loads it for search.
func (m *MilvusIndex) Build(ctx context.Context, chunks []chunker.Chunk, embeddings [][]float32) error {
	dim, err := rag.ValidateEntries(chunks, embeddings)
	if err != nil {
		return err
	}
	for i, c := range chunks {
		if len(c.Text) > maxTextBytes {
			return fmt.Errorf("%w: chunk %d exceeds %d bytes", ErrCollectionFailed, i, maxTextBytes)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count > 0 {
		return fmt.Errorf("%w: index already built", rag.ErrIndexBuild)
	}

	if err := m.createCollection(ctx, dim); err != nil {
		return fmt.Errorf("%w: %v", ErrCollectionFailed, err)
	}
	m.dimension = dim

	ids := make([]int64, len(chunks))
	texts := make([]string, len(chunks))
	starts := make([]int64, len(chunks))
	ends := make([]int64, len(chunks))
	for i, c := range chunks {
		ids[i] = int64(c.Index)
		texts[i] = c.Text
		starts[i] = int64(c.Start)
		ends[i] = int64(c.End)
	}

	columns := []entity.Column{
		entity.NewColumnInt64(fieldID, ids),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnInt64(fieldStart, starts),
		entity.NewColumnInt64(fieldEnd, ends),
		entity.NewColumnFloatVector(fieldEmbedding, dim, embeddings),
	}

	if _, err := m.client.Insert(ctx, m.collection, "", columns...); err != nil {
		return fmt.Errorf("%w: insert: %v", ErrCollectionFailed, err)
	}
	if err := m.client.Flush(ctx, m.collection, false); err != nil {
		return fmt.Errorf("%w: flush: %v", ErrCollectionFailed, err)
	}
	if err := m.client.LoadCollection(ctx, m.collection, false); err != nil {
		return fmt.Errorf("%w: load: %v", ErrCollectionFailed, err)
	}

	m.count = len(chunks)
	m.logger.Debug("built collection", "collection", m.collection, "entries", m.count, "dimension", dim)
	return nil
}

// createCollection defines the schema and a FLAT index, which searches exhaustively.
func (m *MilvusIndex) createCollection(ctx context.Context, dim int) error {
	schema := &entity.Schema{
		CollectionName: m.collection,
		Description:    "transcript chunks for a single question-answering run",
		Fields: []*entity.Field{
			{
				Name:       fieldID,
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
			},
			{
				Name:     fieldText,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": fmt.Sprintf("%d", maxTextBytes),
				},
			},
			{
				Name:     fieldStart,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     fieldEnd,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     fieldEmbedding,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", dim),
				},
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	m.created = true

	mt, _ := metricType(m.config.Metric)
	idx, err := entity.NewIndexFlat(mt)
	if err != nil {
		return fmt.Errorf("failed to create index config: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.collection, fieldEmbedding, idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Query searches the collection and returns up to k entries by descending similarity.
func (m *MilvusIndex) Query(ctx context.Context, query []float32, k int) (rag.RetrievedSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := rag.ValidateQuery(query, k, m.count, m.dimension); err != nil {
		return nil, err
	}
	if k > m.count {
		k = m.count
	}

	sp, err := entity.NewIndexFlatSearchParam()
	if err != nil {
		return nil, fmt.Errorf("failed to create search params: %w", err)
	}

	mt, _ := metricType(m.config.Metric)
	results, err := m.client.Search(
		ctx,
		m.collection,
		nil, // partition names
		"",  // no filter
		[]string{fieldText, fieldStart, fieldEnd},
		[]entity.Vector{entity.FloatVector(query)},
		fieldEmbedding,
		mt,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	if len(results) == 0 {
		return rag.RetrievedSet{}, nil
	}

	set, err := parseResult(results[0], m.config.Metric)
	if err != nil {
		return nil, err
	}
	rag.SortScored(set)
	return set, nil
}

// parseResult converts one Milvus search result into scored chunks. L2 scores
// are distances and are negated so that higher is more similar.
func parseResult(res client.SearchResult, metric rag.Metric) (rag.RetrievedSet, error) {
	if res.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, res.Err)
	}

	ids, ok := res.IDs.(*entity.ColumnInt64)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected id column type", ErrSearchFailed)
	}

	set := make(rag.RetrievedSet, res.ResultCount)
	for i := 0; i < res.ResultCount; i++ {
		score := res.Scores[i]
		if metric == rag.MetricL2 {
			score = -score
		}
		set[i] = rag.ScoredChunk{
			Chunk: chunker.Chunk{Index: int(ids.Data()[i])},
			Score: score,
		}
	}

	for _, field := range res.Fields {
		switch col := field.(type) {
		case *entity.ColumnVarChar:
			if col.Name() != fieldText {
				continue
			}
			for i := range set {
				set[i].Chunk.Text = col.Data()[i]
			}
		case *entity.ColumnInt64:
			for i := range set {
				switch col.Name() {
				case fieldStart:
					set[i].Chunk.Start = int(col.Data()[i])
				case fieldEnd:
					set[i].Chunk.End = int(col.Data()[i])
				}
			}
		}
	}
	return set, nil
}

// Len returns the number of indexed entries.
func (m *MilvusIndex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Close drops the run's collection and closes the Milvus connection.
func (m *MilvusIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}

	var errs []error
	if m.created {
		if err := m.client.DropCollection(context.Background(), m.collection); err != nil {
			errs = append(errs, fmt.Errorf("failed to drop collection %s: %w", m.collection, err))
		} else {
			m.logger.Debug("dropped collection", "collection", m.collection)
		}
	}
	if err := m.client.Close(); err != nil {
		errs = append(errs, err)
	}

	m.client = nil
	m.created = false
	m.count = 0
	m.dimension = 0
	return errors.Join(errs...)
}
