// Package orchestrator wires the transcript, chunking, retrieval and answer
// stages into a single question-answering run over one video.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Yates-Labs/tubeqa/internal/chunker"
	"github.com/Yates-Labs/tubeqa/internal/narrative"
	"github.com/Yates-Labs/tubeqa/internal/rag"
	"github.com/Yates-Labs/tubeqa/internal/rag/store"
	"github.com/Yates-Labs/tubeqa/internal/transcript"
	"github.com/Yates-Labs/tubeqa/internal/video"
)

// IndexFactory creates an empty index for one run.
type IndexFactory func(ctx context.Context) (rag.Index, error)

// Option customizes a Pipeline.
type Option func(*Pipeline) error

// WithFetcher replaces the YouTube transcript fetcher.
func WithFetcher(f transcript.Fetcher) Option {
	return func(p *Pipeline) error {
		if f == nil {
			return errors.New("fetcher cannot be nil")
		}
		p.fetcher = f
		return nil
	}
}

// WithEmbedder replaces the embedder selected by Config.EmbeddingProvider.
func WithEmbedder(e rag.Embedder) Option {
	return func(p *Pipeline) error {
		if e == nil {
			return errors.New("embedder cannot be nil")
		}
		p.embedder = e
		return nil
	}
}

// WithLLM replaces the model selected by Config.LLMProvider.
func WithLLM(l narrative.LLM) Option {
	return func(p *Pipeline) error {
		if l == nil {
			return errors.New("LLM cannot be nil")
		}
		p.llm = l
		return nil
	}
}

// WithIndexFactory replaces the index selected by Config.IndexBackend.
func WithIndexFactory(f IndexFactory) Option {
	return func(p *Pipeline) error {
		if f == nil {
			return errors.New("index factory cannot be nil")
		}
		p.newIndex = f
		return nil
	}
}

// WithTokenCounter reports prompt sizes in Result.PromptTokens.
func WithTokenCounter(c narrative.TokenCounter) Option {
	return func(p *Pipeline) error {
		p.counter = c
		return nil
	}
}

// WithLogger sets the logger used by the pipeline and the components it creates.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) error {
		if l != nil {
			p.logger = l
		}
		return nil
	}
}

// Pipeline answers questions about one video at a time. A Pipeline holds no
// per-video state, so Run may be called concurrently.
type Pipeline struct {
	config    Config
	fetcher   transcript.Fetcher
	splitter  *chunker.Splitter
	embedder  rag.Embedder
	llm       narrative.LLM
	generator *narrative.Generator
	newIndex  IndexFactory
	counter   narrative.TokenCounter
	logger    *slog.Logger
}

// Result describes a completed run.
type Result struct {
	RunID           string
	VideoID         string
	TranscriptChars int
	Chunks          int
	Retrieved       rag.RetrievedSet
	Context         string
	Prompt          string
	PromptTokens    int // 0 when no token counter is configured
	Answer          *narrative.Answer
	Elapsed         time.Duration
}

// NewPipeline validates config and creates the collaborators that options
// did not supply.
func NewPipeline(config Config, opts ...Option) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{config: config, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	splitter, err := chunker.New(
		chunker.WithChunkSize(config.ChunkSize),
		chunker.WithChunkOverlap(config.ChunkOverlap),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	p.splitter = splitter

	if p.fetcher == nil {
		p.fetcher = transcript.NewYouTubeFetcher(
			transcript.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
			transcript.WithLanguages(config.Languages...),
			transcript.WithLogger(p.logger),
		)
	}
	if p.embedder == nil {
		if p.embedder, err = newEmbedder(config); err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
	}
	if p.llm == nil {
		if p.llm, err = newLLM(config); err != nil {
			return nil, fmt.Errorf("failed to create LLM: %w", err)
		}
	}
	if p.newIndex == nil {
		p.newIndex = newIndexFactory(config, p.logger)
	}

	p.generator = narrative.NewGenerator(p.llm, config.LLM, p.logger)
	p.logger = p.logger.With("component", "pipeline")
	return p, nil
}

func newEmbedder(config Config) (rag.Embedder, error) {
	if config.EmbeddingProvider == ProviderLangChain {
		return rag.NewLangChainEmbedder(rag.LangChainConfig{
			BaseURL:   config.EmbeddingBaseURL,
			Token:     config.APIKey,
			Model:     config.EmbeddingModel,
			Dimension: config.EmbeddingDimension,
		})
	}
	return rag.NewOpenAIEmbedder(config.APIKey, config.EmbeddingModel, config.EmbeddingDimension)
}

func newLLM(config Config) (narrative.LLM, error) {
	llmConfig := config.LLM
	if llmConfig.APIKey == "" {
		llmConfig.APIKey = config.APIKey
	}
	if config.LLMProvider == ProviderLangChain {
		return narrative.NewLangChainLLM(llmConfig)
	}
	return narrative.NewOpenAILLM(llmConfig)
}

func newIndexFactory(config Config, logger *slog.Logger) IndexFactory {
	if config.IndexBackend == BackendMilvus {
		milvus := config.Milvus
		milvus.Metric = config.Metric
		return func(ctx context.Context) (rag.Index, error) {
			return store.NewMilvusIndex(ctx, milvus, logger)
		}
	}
	return func(context.Context) (rag.Index, error) {
		return store.NewMemoryIndex(config.Metric), nil
	}
}

// Run answers question using the transcript of the video at rawURL. Every
// call builds and discards its own index. A failure caused by Config.Timeout
// also matches context.DeadlineExceeded, whichever stage it interrupted.
func (p *Pipeline) Run(ctx context.Context, rawURL, question string) (_ *Result, err error) {
	start := time.Now()

	videoID, ok := video.ExtractID(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()
	defer func() {
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
	}()

	result := &Result{RunID: uuid.NewString(), VideoID: videoID}
	logger := p.logger.With("run_id", result.RunID, "video_id", videoID)

	logger.Info("fetching transcript")
	tr, err := p.fetcher.Fetch(ctx, videoID)
	if err != nil {
		if !errors.Is(err, transcript.ErrCaptionsDisabled) && !errors.Is(err, transcript.ErrFetch) {
			err = fmt.Errorf("%w: %w", transcript.ErrFetch, err)
		}
		return nil, err
	}

	text := tr.Text()
	result.TranscriptChars = len([]rune(text))

	chunks := p.splitter.Split(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: transcript has no text", rag.ErrIndexBuild)
	}
	result.Chunks = len(chunks)
	logger.Info("split transcript", "chars", result.TranscriptChars, "chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := rag.EmbedAll(ctx, p.embedder, texts, rag.BatchOptions{
		BatchSize: p.config.EmbedBatchSize,
		Workers:   p.config.EmbedWorkers,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	index, err := p.newIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	defer func() {
		if cerr := index.Close(); cerr != nil {
			logger.Warn("failed to release index", "error", cerr)
		}
	}()

	if err := index.Build(ctx, chunks, embeddings); err != nil {
		return nil, err
	}
	logger.Debug("built index", "entries", index.Len())

	retriever, err := rag.NewRetriever(p.embedder, index, p.config.TopK)
	if err != nil {
		return nil, err
	}
	retrieved, err := retriever.RetrieveForQuestion(ctx, question)
	if err != nil {
		return nil, err
	}
	result.Retrieved = retrieved
	logger.Info("retrieved context", "chunks", len(retrieved))

	result.Context = rag.AssembleContext(retrieved)
	result.Prompt = narrative.BuildPrompt(narrative.PromptInput{
		Context:  result.Context,
		Question: question,
	})
	if p.counter != nil {
		result.PromptTokens = p.counter.CountTokens(result.Prompt)
		logger.Debug("assembled prompt", "tokens", result.PromptTokens)
	}

	answer, err := p.generator.Answer(ctx, result.Prompt)
	if err != nil {
		return nil, err
	}
	result.Answer = answer
	result.Elapsed = time.Since(start)

	logger.Info("answered question", "insufficient", answer.Insufficient, "elapsed", result.Elapsed)
	return result, nil
}
