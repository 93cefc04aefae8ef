package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/tubeqa/internal/narrative"
	"github.com/Yates-Labs/tubeqa/internal/orchestrator"
	"github.com/Yates-Labs/tubeqa/internal/rag"
)

var (
	topK        int
	backend     string
	metric      string
	showContext bool
	showTokens  bool
)

// errReported marks a failure whose message was already printed.
var errReported = errors.New("question could not be answered")

var askCmd = &cobra.Command{
	Use:   "ask [video-url] [question]",
	Short: "Ask a question about a YouTube video",
	Long: `Ask a natural language question about a YouTube video using RAG (Retrieval-Augmented Generation).

This command:
1. Fetches the video's transcript
2. Splits it into overlapping chunks and embeds them
3. Retrieves the chunks most similar to your question
4. Generates an answer using only those chunks

Required environment variables:
  OPENAI_API_KEY     - OpenAI API key for embeddings and LLM

Optional environment variables:
  TUBEQA_INDEX_BACKEND  - memory (default) or milvus
  MILVUS_ADDRESS        - Milvus server address (default: localhost:19530)

Examples:
  tubeqa ask https://www.youtube.com/watch?v=dQw4w9WgXcQ "What is the song about?"
  tubeqa ask https://youtu.be/dQw4w9WgXcQ "Who is singing?" --topk 6
  tubeqa ask https://www.youtube.com/embed/dQw4w9WgXcQ "Summarize the chorus" --show-context`,
	Args: cobra.ExactArgs(2),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().IntVar(&topK, "topk", 0, "Number of transcript chunks to retrieve (default 4)")
	askCmd.Flags().StringVar(&backend, "backend", "", "Vector index backend: memory or milvus")
	askCmd.Flags().StringVar(&metric, "metric", "", "Similarity metric: COSINE or L2")
	askCmd.Flags().BoolVar(&showContext, "show-context", false, "Print the retrieved transcript chunks")
	askCmd.Flags().BoolVar(&showTokens, "tokens", false, "Report the prompt size in tokens")
}

func runAsk(cmd *cobra.Command, args []string) error {
	url := args[0]
	question := args[1]
	ctx := context.Background()
	out := cmd.OutOrStdout()

	config, err := orchestrator.ConfigFromEnv()
	if err != nil {
		return err
	}
	if topK > 0 {
		config.TopK = topK
	}
	if backend != "" {
		config.IndexBackend = backend
	}
	if metric != "" {
		config.Metric = rag.Metric(strings.ToUpper(metric))
	}

	var opts []orchestrator.Option
	opts = append(opts, orchestrator.WithLogger(slog.Default()))
	if showTokens {
		counter, err := narrative.NewTiktokenCounter(config.LLM.Model)
		if err != nil {
			slog.Warn("token counting disabled", "error", err)
		} else {
			opts = append(opts, orchestrator.WithTokenCounter(counter))
		}
	}

	pipeline, err := orchestrator.NewPipeline(config, opts...)
	if err != nil {
		return fmt.Errorf("%s failed to create pipeline: %w", errorStyle.Render("Error:"), err)
	}

	// Print question
	fmt.Fprintln(out)
	fmt.Fprintln(out, headerStyle.Render("Question:"))
	fmt.Fprintln(out, questionStyle.Render(question))
	fmt.Fprintln(out)

	result, err := pipeline.Run(ctx, url, question)
	if err != nil {
		slog.Debug("run failed", "error", err)
		fmt.Fprintln(out, errorStyle.Render(orchestrator.UserMessage(err)))
		return errReported
	}

	if showContext {
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Context (%d of %d chunks):", len(result.Retrieved), result.Chunks)))
		for _, sc := range result.Retrieved {
			label := fmt.Sprintf("#%d [%d:%d] score %.3f", sc.Chunk.Index, sc.Chunk.Start, sc.Chunk.End, sc.Score)
			fmt.Fprintln(out, numberStyle.Render(label))
			fmt.Fprintln(out, contextStyle.Render(sc.Chunk.Text))
			fmt.Fprintln(out)
		}
	}

	// Print answer
	fmt.Fprintln(out, headerStyle.Render("Answer:"))
	fmt.Fprintln(out)
	fmt.Fprintln(out, answerStyle.Render(strings.TrimSpace(result.Answer.Text)))
	fmt.Fprintln(out)

	if showTokens && result.PromptTokens > 0 {
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Prompt used %d tokens", result.PromptTokens)))
	}
	return nil
}
