// Package chunker splits transcript text into overlapping, bounded chunks
// suitable for independent embedding.
//
// Text is first cut recursively on a priority-ordered list of separators,
// descending to a finer separator only for pieces that are still longer than
// the chunk size. The resulting pieces are merged greedily up to the chunk
// size, and every chunk after the first starts ChunkOverlap characters before
// the end of the previous one. Sizes and offsets are counted in characters
// (runes), not bytes.
package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// ErrInvalidConfig is returned by New for unusable size, overlap or separator settings.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// DefaultSeparators are regular expressions from coarsest to finest:
// paragraph break, line break, sentence end, word break, and character level ("").
var DefaultSeparators = []string{`\n\n`, `\n`, `[.!?] `, ` `, ``}

// Chunk is a contiguous span of the source text.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Start int    `json:"start"` // character offset, inclusive
	End   int    `json:"end"`   // character offset, exclusive
}

// Len returns the chunk length in characters.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Splitter is safe for concurrent use once constructed.
type Splitter struct {
	size       int
	overlap    int
	patterns   []string
	separators []*regexp.Regexp // nil entry means character level
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the target maximum chunk length in characters.
func WithChunkSize(n int) Option {
	return func(s *Splitter) { s.size = n }
}

// WithChunkOverlap sets how many characters consecutive chunks share.
func WithChunkOverlap(n int) Option {
	return func(s *Splitter) { s.overlap = n }
}

// WithSeparators replaces the separator hierarchy. Patterns are regular
// expressions ordered coarsest first; "" splits into single characters.
// Without a trailing "" an unsplittable piece longer than the chunk size is
// kept whole.
func WithSeparators(patterns ...string) Option {
	return func(s *Splitter) { s.patterns = patterns }
}

// New creates a Splitter with the default size, overlap and separators unless overridden.
func New(opts ...Option) (*Splitter, error) {
	s := &Splitter{
		size:     DefaultChunkSize,
		overlap:  DefaultChunkOverlap,
		patterns: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, s.size)
	}
	if s.overlap < 0 || s.overlap >= s.size {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", ErrInvalidConfig, s.size, s.overlap)
	}

	s.separators = make([]*regexp.Regexp, len(s.patterns))
	for i, p := range s.patterns {
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: separator %q: %v", ErrInvalidConfig, p, err)
		}
		s.separators[i] = re
	}
	return s, nil
}

// ChunkSize returns the configured chunk size.
func (s *Splitter) ChunkSize() int { return s.size }

// ChunkOverlap returns the configured chunk overlap.
func (s *Splitter) ChunkOverlap() int { return s.overlap }

// Split cuts text into ordered chunks. Empty text yields no chunks.
func (s *Splitter) Split(text string) []Chunk {
	if text == "" {
		return nil
	}
	d := newDocument(text)
	pieces := s.atomize(d, span{0, d.length()}, s.separators)
	return s.merge(d, pieces)
}

// Reconstruct rebuilds the source text from the non-overlapping part of each chunk.
func Reconstruct(chunks []Chunk) string {
	var b strings.Builder
	covered := 0
	for _, c := range chunks {
		if c.End <= covered {
			continue
		}
		skip := covered - c.Start
		if skip < 0 {
			skip = 0
		}
		b.WriteString(string([]rune(c.Text)[skip:]))
		covered = c.End
	}
	return b.String()
}

type span struct {
	start, end int
}

func (sp span) len() int { return sp.end - sp.start }

// document maps character offsets onto byte offsets of the source text.
type document struct {
	text    string
	offsets []int // offsets[i] is the byte offset of character i; the last entry is len(text)
}

func newDocument(text string) *document {
	offsets := make([]int, 0, len(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(text))
	return &document{text: text, offsets: offsets}
}

func (d *document) length() int { return len(d.offsets) - 1 }

func (d *document) slice(sp span) string {
	return d.text[d.offsets[sp.start]:d.offsets[sp.end]]
}

func (d *document) charIndex(byteOffset int) int {
	return sort.SearchInts(d.offsets, byteOffset)
}

// splitAfter cuts sp after every separator match; the separator stays with the preceding piece.
func (d *document) splitAfter(sp span, re *regexp.Regexp) []span {
	base := d.offsets[sp.start]
	var parts []span
	start := sp.start
	for _, m := range re.FindAllStringIndex(d.slice(sp), -1) {
		cut := d.charIndex(base + m[1])
		if cut <= start || cut >= sp.end {
			continue
		}
		parts = append(parts, span{start, cut})
		start = cut
	}
	return append(parts, span{start, sp.end})
}

// atomize returns contiguous pieces covering sp, each no longer than the chunk
// size unless no separator is left to cut it.
func (s *Splitter) atomize(d *document, sp span, seps []*regexp.Regexp) []span {
	if sp.len() <= s.size || len(seps) == 0 {
		return []span{sp}
	}

	sep, rest := seps[0], seps[1:]
	if sep == nil {
		out := make([]span, 0, sp.len())
		for i := sp.start; i < sp.end; i++ {
			out = append(out, span{i, i + 1})
		}
		return out
	}

	parts := d.splitAfter(sp, sep)
	if len(parts) == 1 {
		return s.atomize(d, sp, rest)
	}

	out := make([]span, 0, len(parts))
	for _, p := range parts {
		if p.len() <= s.size {
			out = append(out, p)
			continue
		}
		out = append(out, s.atomize(d, p, rest)...)
	}
	return out
}

// merge packs pieces into chunks of at most size characters. Each chunk after
// the first backs up by overlap characters; the back-up shrinks when the next
// piece would not otherwise fit and is dropped before an oversized piece.
func (s *Splitter) merge(d *document, pieces []span) []Chunk {
	var chunks []Chunk
	prev := span{}
	next := 0

	for next < len(pieces) {
		start := prev.end
		if len(chunks) > 0 {
			start = prev.end - s.overlap
			if fit := pieces[next].end - s.size; start < fit {
				start = fit
			}
			if start <= prev.start {
				start = prev.start + 1
			}
			if start > prev.end {
				start = prev.end
			}
		}

		end := start
		j := next
		for j < len(pieces) && pieces[j].end-start <= s.size {
			end = pieces[j].end
			j++
		}
		if j == next {
			// oversized atomic piece: keep it whole
			end = pieces[next].end
			j = next + 1
		}

		sp := span{start, end}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  d.slice(sp),
			Start: start,
			End:   end,
		})
		prev = sp
		next = j
	}
	return chunks
}
