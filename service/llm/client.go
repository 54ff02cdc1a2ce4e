package llm

import "context"

// Request is a single-turn generation request.
type Request struct {
	// Model overrides the client default when set.
	Model string
	// Temperature overrides the client default when non-nil.
	Temperature *float64

	SystemPrompt string
	Prompt       string
}

// Response carries the generated text and usage accounting.
type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Client generates completions. The agent service depends on this interface
// only, so tests can substitute a canned implementation.
type Client interface {
	Generate(ctx context.Context, request *Request) (*Response, error)
}
