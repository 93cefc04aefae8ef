package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// BatchOptions controls how EmbedAll splits work across embedding calls.
type BatchOptions struct {
	// BatchSize is the number of texts sent per Embed call
	BatchSize int

	// Workers is the number of batches embedded concurrently
	Workers int

	// Logger receives per-batch debug output; nil uses slog.Default()
	Logger *slog.Logger
}

// DefaultBatchOptions returns sensible defaults for chunk embedding.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		BatchSize: 64,
		Workers:   4,
	}
}

// EmbedAll embeds texts in batches on a bounded worker pool. The result is
// index-aligned with texts regardless of the order batches complete in. The
// first failing batch cancels the rest and its error is returned.
func EmbedAll(ctx context.Context, embedder Embedder, texts []string, opts BatchOptions) ([][]float32, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder cannot be nil", ErrEmbeddingFailed)
	}
	if len(texts) == 0 {
		return nil, ErrEmptyTexts
	}

	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = DefaultBatchOptions().BatchSize
	}
	batches := (len(texts) + batchSize - 1) / batchSize

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > batches {
		workers = batches
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "embed-batch")

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("%w: worker pool: %v", ErrEmbeddingFailed, err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	results := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}

			records, err := embedder.Embed(ctx, batch)
			if err != nil {
				fail(fmt.Errorf("batch starting at %d: %w", start, err))
				return
			}
			if len(records) != len(batch) {
				fail(fmt.Errorf("%w: batch starting at %d: requested %d embeddings, received %d",
					ErrEmbeddingFailed, start, len(batch), len(records)))
				return
			}
			for i, r := range records {
				results[start+i] = r.Embedding
			}
			logger.Debug("embedded batch", "start", start, "size", len(batch))
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("%w: submit batch starting at %d: %v", ErrEmbeddingFailed, start, submitErr))
			break
		}
	}

	wg.Wait()

	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
	}
	if firstErr != nil {
		if !errors.Is(firstErr, ErrEmbeddingFailed) {
			firstErr = fmt.Errorf("%w: %w", ErrEmbeddingFailed, firstErr)
		}
		return nil, firstErr
	}

	dim := len(results[0])
	for i, v := range results {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("%w: %w: text %d has dimension %d, expected %d",
				ErrEmbeddingFailed, ErrDimensionMismatch, i, len(v), dim)
		}
	}

	return results, nil
}
