package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Yates-Labs/tubeqa/internal/chunker"
	"github.com/Yates-Labs/tubeqa/internal/narrative"
	"github.com/Yates-Labs/tubeqa/internal/rag"
	"github.com/Yates-Labs/tubeqa/internal/rag/store"
)

// Provider and backend names accepted in Config.
const (
	ProviderOpenAI    = "openai"
	ProviderLangChain = "langchain"

	BackendMemory = "memory"
	BackendMilvus = "milvus"
)

// ErrInvalidConfig is returned by Validate and ConfigFromEnv.
var ErrInvalidConfig = errors.New("invalid pipeline configuration")

// Config holds everything a Pipeline needs. Nothing is read from the
// environment after construction.
type Config struct {
	// APIKey authenticates the OpenAI embedder and LLM
	APIKey string

	// Timeout bounds a whole Run
	Timeout time.Duration

	// Languages is the caption language preference, most preferred first
	Languages []string

	// ChunkSize and ChunkOverlap are measured in characters
	ChunkSize    int
	ChunkOverlap int

	// TopK is the number of chunks retrieved per question
	TopK int

	// Metric is the similarity measure used by the index
	Metric rag.Metric

	// EmbeddingProvider selects the embedder: "openai" or "langchain"
	EmbeddingProvider  string
	EmbeddingModel     string
	EmbeddingDimension int
	EmbeddingBaseURL   string // langchain provider only

	// EmbedBatchSize texts are sent per call, EmbedWorkers calls run at once
	EmbedBatchSize int
	EmbedWorkers   int

	// LLMProvider selects the answering model: "openai" or "langchain"
	LLMProvider string
	LLM         narrative.LLMConfig

	// IndexBackend selects the vector index: "memory" or "milvus"
	IndexBackend string
	Milvus       store.MilvusConfig
}

// DefaultConfig returns sensible defaults for the pipeline.
func DefaultConfig() Config {
	batch := rag.DefaultBatchOptions()
	return Config{
		Timeout:            2 * time.Minute,
		Languages:          []string{"en"},
		ChunkSize:          chunker.DefaultChunkSize,
		ChunkOverlap:       chunker.DefaultChunkOverlap,
		TopK:               rag.DefaultTopK,
		Metric:             rag.MetricCosine,
		EmbeddingProvider:  ProviderOpenAI,
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingDimension: 1536,
		EmbedBatchSize:     batch.BatchSize,
		EmbedWorkers:       batch.Workers,
		LLMProvider:        ProviderOpenAI,
		LLM:                narrative.DefaultLLMConfig(),
		IndexBackend:       BackendMemory,
		Milvus:             store.DefaultMilvusConfig(),
	}
}

// Validate checks structural settings. Credentials are checked when the
// collaborators that need them are created.
func (c Config) Validate() error {
	var problems []string

	if c.Timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.ChunkSize <= 0 {
		problems = append(problems, "chunk size must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		problems = append(problems, "chunk overlap must be non-negative and smaller than chunk size")
	}
	if c.TopK < 1 {
		problems = append(problems, "top-k must be at least 1")
	}
	if _, err := rag.ParseMetric(string(c.Metric)); err != nil {
		problems = append(problems, err.Error())
	}
	if c.EmbeddingProvider != ProviderOpenAI && c.EmbeddingProvider != ProviderLangChain {
		problems = append(problems, fmt.Sprintf("unknown embedding provider %q", c.EmbeddingProvider))
	}
	if c.EmbeddingModel == "" {
		problems = append(problems, "embedding model is required")
	}
	if c.EmbeddingDimension < 0 {
		problems = append(problems, "embedding dimension must not be negative")
	}
	if c.LLMProvider != ProviderOpenAI && c.LLMProvider != ProviderLangChain {
		problems = append(problems, fmt.Sprintf("unknown LLM provider %q", c.LLMProvider))
	}
	if c.LLM.Model == "" {
		problems = append(problems, "LLM model is required")
	}
	if c.IndexBackend != BackendMemory && c.IndexBackend != BackendMilvus {
		problems = append(problems, fmt.Sprintf("unknown index backend %q", c.IndexBackend))
	}
	if c.IndexBackend == BackendMilvus && c.Milvus.Address == "" {
		problems = append(problems, "milvus address is required for the milvus backend")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// ConfigFromEnv overlays environment variables on DefaultConfig. Only the
// command-line entry point calls it.
//
//	OPENAI_API_KEY                  API key for OpenAI providers
//	TUBEQA_TIMEOUT                  run timeout, e.g. "90s"
//	TUBEQA_LANGUAGES                comma-separated caption languages
//	TUBEQA_CHUNK_SIZE               characters per chunk
//	TUBEQA_CHUNK_OVERLAP            characters shared by consecutive chunks
//	TUBEQA_TOP_K                    chunks retrieved per question
//	TUBEQA_METRIC                   COSINE or L2
//	TUBEQA_EMBEDDING_PROVIDER       openai or langchain
//	TUBEQA_EMBEDDING_MODEL          embedding model name
//	TUBEQA_EMBEDDING_DIMENSION      embedding vector size (0 = model default)
//	TUBEQA_EMBEDDING_BASE_URL       OpenAI-compatible host for langchain embeddings
//	TUBEQA_LLM_PROVIDER             openai or langchain
//	TUBEQA_LLM_MODEL                chat model name
//	TUBEQA_LLM_BASE_URL             OpenAI-compatible host for the chat model
//	TUBEQA_INDEX_BACKEND            memory or milvus
//	MILVUS_ADDRESS                  Milvus host:port
func ConfigFromEnv() (Config, error) {
	c := DefaultConfig()
	var errs []error

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}

	str("OPENAI_API_KEY", &c.APIKey)
	c.LLM.APIKey = c.APIKey

	if v := strings.TrimSpace(os.Getenv("TUBEQA_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TUBEQA_TIMEOUT: %w", err))
		} else {
			c.Timeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("TUBEQA_LANGUAGES")); v != "" {
		c.Languages = splitList(v)
	}

	num("TUBEQA_CHUNK_SIZE", &c.ChunkSize)
	num("TUBEQA_CHUNK_OVERLAP", &c.ChunkOverlap)
	num("TUBEQA_TOP_K", &c.TopK)

	var metric string
	str("TUBEQA_METRIC", &metric)
	if metric != "" {
		c.Metric = rag.Metric(strings.ToUpper(metric))
		c.Milvus.Metric = c.Metric
	}

	str("TUBEQA_EMBEDDING_PROVIDER", &c.EmbeddingProvider)
	str("TUBEQA_EMBEDDING_MODEL", &c.EmbeddingModel)
	num("TUBEQA_EMBEDDING_DIMENSION", &c.EmbeddingDimension)
	str("TUBEQA_EMBEDDING_BASE_URL", &c.EmbeddingBaseURL)

	str("TUBEQA_LLM_PROVIDER", &c.LLMProvider)
	str("TUBEQA_LLM_MODEL", &c.LLM.Model)
	str("TUBEQA_LLM_BASE_URL", &c.LLM.BaseURL)

	str("TUBEQA_INDEX_BACKEND", &c.IndexBackend)
	str("MILVUS_ADDRESS", &c.Milvus.Address)

	if len(errs) > 0 {
		return c, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return c, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
