package narrative

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts model tokens in a piece of text.
type TokenCounter interface {
	CountTokens(text string) int
}

// TiktokenCounter counts tokens with the BPE encoding of an OpenAI model.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the encoding for model, falling back to cl100k_base
// for models tiktoken does not know. The encoding is downloaded on first use
// unless TIKTOKEN_CACHE_DIR already holds it.
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding: %w", err)
	}
	return &TiktokenCounter{encoding: enc}, nil
}

// CountTokens returns the number of tokens in text.
func (t *TiktokenCounter) CountTokens(text string) int {
	if t == nil || t.encoding == nil {
		return 0
	}
	return len(t.encoding.Encode(text, nil, nil))
}
