package transcript

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Yates-Labs/tubeqa/internal/video"
)

const (
	defaultBaseURL    = "https://www.youtube.com"
	playerMarker      = "ytInitialPlayerResponse = "
	userAgent         = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxWatchPageBytes = 6 << 20
	maxCaptionBytes   = 2 << 20
)

var tagRe = regexp.MustCompile(`<[^>]*>`)

type playerResponse struct {
	Captions *struct {
		Renderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

type timedText struct {
	Lines []struct {
		Start    float64 `xml:"start,attr"`
		Duration float64 `xml:"dur,attr"`
		Text     string  `xml:",chardata"`
	} `xml:"text"`
}

// YouTubeFetcher scrapes the watch page for caption tracks and downloads the
// timedtext XML of the best matching track.
type YouTubeFetcher struct {
	client    *http.Client
	baseURL   string
	languages []string
	logger    *slog.Logger
}

// FetcherOption configures a YouTubeFetcher.
type FetcherOption func(*YouTubeFetcher)

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *YouTubeFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithLanguages sets the caption language preference, most preferred first.
func WithLanguages(langs ...string) FetcherOption {
	return func(f *YouTubeFetcher) {
		if len(langs) > 0 {
			f.languages = langs
		}
	}
}

// WithBaseURL overrides the site root the watch page is requested from.
func WithBaseURL(u string) FetcherOption {
	return func(f *YouTubeFetcher) {
		f.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) FetcherOption {
	return func(f *YouTubeFetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewYouTubeFetcher creates a fetcher preferring English captions.
func NewYouTubeFetcher(opts ...FetcherOption) *YouTubeFetcher {
	f := &YouTubeFetcher{
		client:    &http.Client{Timeout: 30 * time.Second},
		baseURL:   defaultBaseURL,
		languages: []string{"en"},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "youtube-fetcher")
	return f
}

// Fetch returns the caption fragments for videoID.
func (f *YouTubeFetcher) Fetch(ctx context.Context, videoID string) (*Transcript, error) {
	if !video.IsValidID(videoID) {
		return nil, fmt.Errorf("%w: invalid video id %q", ErrFetch, videoID)
	}

	player, err := f.fetchPlayerResponse(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	if ps := player.PlayabilityStatus; ps != nil && ps.Status != "" && ps.Status != "OK" {
		reason := ps.Reason
		if reason == "" {
			reason = ps.Status
		}
		return nil, fmt.Errorf("%w: video unplayable: %s", ErrFetch, reason)
	}
	if player.Captions == nil || len(player.Captions.Renderer.CaptionTracks) == 0 {
		return nil, ErrCaptionsDisabled
	}

	track := pickTrack(player.Captions.Renderer.CaptionTracks, f.languages)
	f.logger.Debug("selected caption track",
		"video_id", videoID, "language", track.LanguageCode, "kind", track.Kind)

	segments, err := f.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	return &Transcript{
		VideoID:   videoID,
		Language:  track.LanguageCode,
		Generated: track.Kind == "asr",
		Segments:  segments,
	}, nil
}

func (f *YouTubeFetcher) fetchPlayerResponse(ctx context.Context, videoID string) (*playerResponse, error) {
	watchURL := video.WatchURL(videoID)
	if f.baseURL != defaultBaseURL {
		watchURL = f.baseURL + strings.TrimPrefix(watchURL, defaultBaseURL)
	}
	body, err := f.get(ctx, watchURL, maxWatchPageBytes)
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}

	idx := strings.Index(string(body), playerMarker)
	if idx < 0 {
		return nil, errors.New("player response not found in watch page")
	}
	raw := extractJSON(body[idx+len(playerMarker):])
	if raw == nil {
		return nil, errors.New("malformed player response")
	}

	var player playerResponse
	if err := json.Unmarshal(raw, &player); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}
	return &player, nil
}

func (f *YouTubeFetcher) fetchTimedText(ctx context.Context, captionURL string) ([]Segment, error) {
	body, err := f.get(ctx, captionURL, maxCaptionBytes)
	if err != nil {
		return nil, fmt.Errorf("timedtext: %w", err)
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}

	segments := make([]Segment, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		text := cleanCaption(line.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Text:     text,
			Start:    line.Start,
			Duration: line.Duration,
		})
	}
	return segments, nil
}

func (f *YouTubeFetcher) get(ctx context.Context, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// pickTrack prefers a manual track in a preferred language, then an auto-generated one,
// then a manual English track, then any English track, then the first track.
func pickTrack(tracks []captionTrack, langs []string) captionTrack {
	for _, lang := range langs {
		for _, t := range tracks {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t
			}
		}
	}
	for _, lang := range langs {
		for _, t := range tracks {
			if t.LanguageCode == lang {
				return t
			}
		}
	}
	for _, t := range tracks {
		if strings.HasPrefix(t.LanguageCode, "en") && t.Kind != "asr" {
			return t
		}
	}
	for _, t := range tracks {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t
		}
	}
	return tracks[0]
}

// cleanCaption decodes entities (captions are often double-escaped) and strips markup.
func cleanCaption(s string) string {
	s = html.UnescapeString(html.UnescapeString(s))
	s = tagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// extractJSON returns the balanced JSON object at the start of b, or nil.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr, escaped := false, false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
