package orchestrator

import (
	"context"
	"errors"
	"strings"

	"github.com/Yates-Labs/tubeqa/internal/narrative"
	"github.com/Yates-Labs/tubeqa/internal/rag"
	"github.com/Yates-Labs/tubeqa/internal/transcript"
)

// ErrInvalidURL is returned when no video identifier can be found in the input.
var ErrInvalidURL = errors.New("invalid video URL")

// UserMessage maps a Run error to the message shown to the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out."
	case errors.Is(err, ErrInvalidURL):
		return "Invalid video URL."
	case errors.Is(err, transcript.ErrCaptionsDisabled):
		return "No captions available for this video."
	case errors.Is(err, transcript.ErrFetch):
		return "Error fetching transcript: " + cause(err, transcript.ErrFetch)
	case errors.Is(err, rag.ErrIndexBuild), errors.Is(err, rag.ErrEmptyIndex):
		return "The transcript for this video is empty."
	case errors.Is(err, rag.ErrEmbeddingFailed):
		return "Error generating embeddings: " + cause(err, rag.ErrEmbeddingFailed)
	case errors.Is(err, narrative.ErrCompletionFailed):
		return "Error generating answer: " + cause(err, narrative.ErrCompletionFailed)
	}
	return "Error: " + err.Error()
}

// cause returns the part of err's message after sentinel's own text.
func cause(err, sentinel error) string {
	msg := err.Error()
	marker := sentinel.Error() + ": "
	if i := strings.Index(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	if msg == sentinel.Error() {
		return "unknown error"
	}
	return msg
}
