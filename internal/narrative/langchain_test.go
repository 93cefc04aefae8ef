package narrative

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// fakeModel implements langchaingo's llms.Model.
type fakeModel struct {
	response *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	return f.response, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestLangChainLLM_Generate(t *testing.T) {
	fake := &fakeModel{response: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "From the transcript: yes."}},
	}}
	config := LLMConfig{Model: "llama3", Temperature: 0.2, MaxTokens: 256}
	l := newLangChainLLM(fake, config)

	got, err := l.Generate(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, "From the transcript: yes.", got)

	require.Len(t, fake.messages, 1)
	assert.Equal(t, schema.ChatMessageTypeHuman, fake.messages[0].Role)
	require.Len(t, fake.messages[0].Parts, 1)
	assert.Equal(t, llms.TextContent{Text: "the prompt"}, fake.messages[0].Parts[0])
	assert.InDelta(t, 0.2, fake.opts.Temperature, 1e-6)
	assert.Equal(t, 256, fake.opts.MaxTokens)
}

func TestLangChainLLM_GenerateErrors(t *testing.T) {
	l := newLangChainLLM(&fakeModel{err: errors.New("connection refused")}, LLMConfig{Model: "m"})
	_, err := l.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrCompletionFailed)

	l = newLangChainLLM(&fakeModel{response: &llms.ContentResponse{}}, LLMConfig{Model: "m"})
	_, err = l.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrCompletionFailed)

	_, err = l.Generate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewLangChainLLM(t *testing.T) {
	_, err := NewLangChainLLM(LLMConfig{BaseURL: "http://localhost:11434/v1"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	l, err := NewLangChainLLM(LLMConfig{Model: "llama3", BaseURL: "http://localhost:11434/v1"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}
