package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yates-Labs/tubeqa/internal/narrative"
	"github.com/Yates-Labs/tubeqa/internal/rag"
	"github.com/Yates-Labs/tubeqa/internal/rag/store"
	"github.com/Yates-Labs/tubeqa/internal/transcript"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 2*time.Minute, config.Timeout)
	assert.Equal(t, []string{"en"}, config.Languages)
	assert.Equal(t, 1000, config.ChunkSize)
	assert.Equal(t, 200, config.ChunkOverlap)
	assert.Equal(t, 4, config.TopK)
	assert.Equal(t, rag.MetricCosine, config.Metric)
	assert.Equal(t, ProviderOpenAI, config.EmbeddingProvider)
	assert.Equal(t, "text-embedding-3-small", config.EmbeddingModel)
	assert.Equal(t, "gpt-4o", config.LLM.Model)
	assert.InDelta(t, 0.2, config.LLM.Temperature, 1e-6)
	assert.Equal(t, BackendMemory, config.IndexBackend)
	assert.NoError(t, config.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }},
		{"overlap equals size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"zero top-k", func(c *Config) { c.TopK = 0 }},
		{"unknown metric", func(c *Config) { c.Metric = "IP" }},
		{"unknown embedding provider", func(c *Config) { c.EmbeddingProvider = "cohere" }},
		{"missing embedding model", func(c *Config) { c.EmbeddingModel = "" }},
		{"negative dimension", func(c *Config) { c.EmbeddingDimension = -1 }},
		{"unknown LLM provider", func(c *Config) { c.LLMProvider = "bard" }},
		{"missing LLM model", func(c *Config) { c.LLM.Model = "" }},
		{"unknown backend", func(c *Config) { c.IndexBackend = "faiss" }},
		{"milvus without address", func(c *Config) {
			c.IndexBackend = BackendMilvus
			c.Milvus.Address = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(&config)
			assert.ErrorIs(t, config.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfig_ValidateAllowsMissingAPIKey(t *testing.T) {
	config := DefaultConfig()
	config.APIKey = ""
	assert.NoError(t, config.Validate())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TUBEQA_TIMEOUT", "45s")
	t.Setenv("TUBEQA_LANGUAGES", "de, en ,")
	t.Setenv("TUBEQA_CHUNK_SIZE", "500")
	t.Setenv("TUBEQA_CHUNK_OVERLAP", "50")
	t.Setenv("TUBEQA_TOP_K", "6")
	t.Setenv("TUBEQA_METRIC", "l2")
	t.Setenv("TUBEQA_EMBEDDING_PROVIDER", "langchain")
	t.Setenv("TUBEQA_EMBEDDING_MODEL", "nomic-embed-text")
	t.Setenv("TUBEQA_EMBEDDING_DIMENSION", "0")
	t.Setenv("TUBEQA_EMBEDDING_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("TUBEQA_LLM_PROVIDER", "langchain")
	t.Setenv("TUBEQA_LLM_MODEL", "llama3")
	t.Setenv("TUBEQA_LLM_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("TUBEQA_INDEX_BACKEND", "milvus")
	t.Setenv("MILVUS_ADDRESS", "milvus:19530")

	config, err := ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", config.APIKey)
	assert.Equal(t, "sk-test", config.LLM.APIKey)
	assert.Equal(t, 45*time.Second, config.Timeout)
	assert.Equal(t, []string{"de", "en"}, config.Languages)
	assert.Equal(t, 500, config.ChunkSize)
	assert.Equal(t, 50, config.ChunkOverlap)
	assert.Equal(t, 6, config.TopK)
	assert.Equal(t, rag.MetricL2, config.Metric)
	assert.Equal(t, rag.MetricL2, config.Milvus.Metric)
	assert.Equal(t, ProviderLangChain, config.EmbeddingProvider)
	assert.Equal(t, "nomic-embed-text", config.EmbeddingModel)
	assert.Equal(t, 0, config.EmbeddingDimension)
	assert.Equal(t, "http://localhost:11434/v1", config.EmbeddingBaseURL)
	assert.Equal(t, ProviderLangChain, config.LLMProvider)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, "http://localhost:11434/v1", config.LLM.BaseURL)
	assert.Equal(t, BackendMilvus, config.IndexBackend)
	assert.Equal(t, "milvus:19530", config.Milvus.Address)
	assert.NoError(t, config.Validate())
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"OPENAI_API_KEY", "TUBEQA_TIMEOUT", "TUBEQA_CHUNK_SIZE", "TUBEQA_INDEX_BACKEND", "MILVUS_ADDRESS"} {
		t.Setenv(key, "")
	}

	config, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Timeout, config.Timeout)
	assert.Equal(t, DefaultConfig().ChunkSize, config.ChunkSize)
	assert.Equal(t, BackendMemory, config.IndexBackend)
	assert.Empty(t, config.APIKey)
}

func TestConfigFromEnv_BadValues(t *testing.T) {
	t.Setenv("TUBEQA_TIMEOUT", "soon")
	t.Setenv("TUBEQA_TOP_K", "four")

	_, err := ConfigFromEnv()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "TUBEQA_TIMEOUT")
	assert.Contains(t, err.Error(), "TUBEQA_TOP_K")
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid url", fmt.Errorf("%w: %q", ErrInvalidURL, "x"), "Invalid video URL."},
		{"captions disabled", fmt.Errorf("%w: no tracks", transcript.ErrCaptionsDisabled), "No captions available for this video."},
		{"fetch", fmt.Errorf("%w: HTTP 429", transcript.ErrFetch), "Error fetching transcript: HTTP 429"},
		{"bare fetch", transcript.ErrFetch, "Error fetching transcript: unknown error"},
		{"empty transcript", fmt.Errorf("%w: transcript has no text", rag.ErrIndexBuild), "The transcript for this video is empty."},
		{"empty index", rag.ErrEmptyIndex, "The transcript for this video is empty."},
		{"embedding", fmt.Errorf("%w: quota exceeded", rag.ErrEmbeddingFailed), "Error generating embeddings: quota exceeded"},
		{"nested embedding", fmt.Errorf("batch 2: %w", fmt.Errorf("%w: quota exceeded", rag.ErrEmbeddingFailed)), "Error generating embeddings: quota exceeded"},
		{"completion", fmt.Errorf("%w: model overloaded", narrative.ErrCompletionFailed), "Error generating answer: model overloaded"},
		{"timeout", fmt.Errorf("fetching: %w", context.DeadlineExceeded), "The request timed out."},
		{"timeout inside fetch", fmt.Errorf("%w: %w", transcript.ErrFetch, context.DeadlineExceeded), "The request timed out."},
		{"milvus", fmt.Errorf("%w: dial tcp", store.ErrConnectionFailed), "Error: failed to connect to Milvus: dial tcp"},
		{"other", errors.New("boom"), "Error: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
