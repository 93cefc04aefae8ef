package narrative

import "strings"

const (
	promptPreamble = "You are a helpful assistant. Answer ONLY the provided transcript context. " +
		"If the context is insufficient, just say you don't know. \n\n "
	questionMarker = "\n\n Question: "
)

// PromptInput holds the two template variables.
type PromptInput struct {
	Context  string
	Question string
}

// BuildPrompt fills the answering template with the assembled context and the
// user's question, both inserted verbatim.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder
	b.Grow(len(promptPreamble) + len(in.Context) + len(questionMarker) + len(in.Question))
	b.WriteString(promptPreamble)
	b.WriteString(in.Context)
	b.WriteString(questionMarker)
	b.WriteString(in.Question)
	return b.String()
}

// ParsePrompt recovers the template variables from a prompt produced by BuildPrompt.
func ParsePrompt(prompt string) (PromptInput, bool) {
	rest, ok := strings.CutPrefix(prompt, promptPreamble)
	if !ok {
		return PromptInput{}, false
	}
	i := strings.LastIndex(rest, questionMarker)
	if i < 0 {
		return PromptInput{}, false
	}
	return PromptInput{
		Context:  rest[:i],
		Question: rest[i+len(questionMarker):],
	}, true
}
