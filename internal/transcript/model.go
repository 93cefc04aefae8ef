// Package transcript retrieves the spoken-text transcript of a video.
//
// A Fetcher returns the ordered caption fragments for a video identifier. The
// pipeline only consumes the joined text; timing is kept so callers can map
// retrieved spans back to the video.
package transcript

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrCaptionsDisabled indicates the video has no caption tracks at all.
	ErrCaptionsDisabled = errors.New("captions are disabled for this video")

	// ErrFetch covers every other retrieval failure (network, invalid id, region lock, parse errors).
	ErrFetch = errors.New("transcript fetch failed")
)

// Segment is a single caption fragment.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`    // seconds from the beginning of the video
	Duration float64 `json:"duration"` // seconds
}

// Transcript is the ordered list of caption fragments for one video.
type Transcript struct {
	VideoID   string    `json:"video_id"`
	Language  string    `json:"language,omitempty"`
	Generated bool      `json:"generated"` // true for auto-generated (ASR) captions
	Segments  []Segment `json:"segments"`
}

// Text joins the fragment texts with single spaces, in fragment order.
func (t *Transcript) Text() string {
	if t == nil || len(t.Segments) == 0 {
		return ""
	}
	parts := make([]string, len(t.Segments))
	for i, s := range t.Segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}

// Fetcher returns the transcript for a video identifier.
// Implementations return errors wrapping ErrCaptionsDisabled or ErrFetch.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) (*Transcript, error)
}
