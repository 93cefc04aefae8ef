package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/tubeqa/internal/chunker"
	"github.com/Yates-Labs/tubeqa/internal/orchestrator"
	"github.com/Yates-Labs/tubeqa/internal/transcript"
	"github.com/Yates-Labs/tubeqa/internal/video"
)

var (
	showChunks bool
	exportFile string
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript [video-url]",
	Short: "Fetch and display a video's transcript",
	Long: `Fetch the transcript of a YouTube video and print its text.

With --chunks the transcript is split the same way "ask" splits it and each
chunk is printed with its character range.

Examples:
  tubeqa transcript https://www.youtube.com/watch?v=dQw4w9WgXcQ
  tubeqa transcript https://youtu.be/dQw4w9WgXcQ --chunks
  tubeqa transcript https://youtu.be/dQw4w9WgXcQ --export transcript.json`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscript,
}

func init() {
	rootCmd.AddCommand(transcriptCmd)
	transcriptCmd.Flags().BoolVar(&showChunks, "chunks", false, "Print the transcript as retrieval chunks")
	transcriptCmd.Flags().StringVar(&exportFile, "export", "", "Export the transcript segments to a JSON file: --export <filename>")
}

func runTranscript(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	config, err := orchestrator.ConfigFromEnv()
	if err != nil {
		return err
	}

	videoID, ok := video.ExtractID(args[0])
	if !ok {
		fmt.Fprintln(out, errorStyle.Render(orchestrator.UserMessage(orchestrator.ErrInvalidURL)))
		return errReported
	}

	ctx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	fetcher := transcript.NewYouTubeFetcher(transcript.WithLanguages(config.Languages...))
	tr, err := fetcher.Fetch(ctx, videoID)
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render(orchestrator.UserMessage(err)))
		return errReported
	}

	if exportFile != "" {
		return exportTranscript(out, tr, exportFile)
	}

	text := tr.Text()
	if !showChunks {
		fmt.Fprintln(out, text)
		return nil
	}

	splitter, err := chunker.New(
		chunker.WithChunkSize(config.ChunkSize),
		chunker.WithChunkOverlap(config.ChunkOverlap),
	)
	if err != nil {
		return err
	}

	chunks := splitter.Split(text)
	for _, c := range chunks {
		fmt.Fprintln(out, numberStyle.Render(fmt.Sprintf("#%d [%d:%d] %d chars", c.Index, c.Start, c.End, c.Len())))
		fmt.Fprintln(out, contextStyle.Render(c.Text))
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ %d segments, %d chunks (%s, generated: %t)",
		len(tr.Segments), len(chunks), tr.Language, tr.Generated)))
	return nil
}

func exportTranscript(out io.Writer, tr *transcript.Transcript, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tr); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Exported %d segments to %s", len(tr.Segments), filename)))
	return nil
}
