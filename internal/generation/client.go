package generation

import (
	"context"
	"time"
)

// Message roles understood by ModelClient implementations.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one turn of a model conversation.
type Message struct {
	Role    string
	Content string
}

// Usage records the token counters reported by the provider for one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResult is the decoded outcome of a structured completion.
type ChatResult struct {
	// Fields is the parsed JSON object returned by the model.
	Fields map[string]any

	// Content is the raw response text before JSON decoding.
	Content string

	Usage   Usage
	Model   string
	Elapsed time.Duration
}

// ModelClient defines the interface for requesting structured JSON
// completions from a language model. This interface serves as a boundary
// between the application core and external AI/LLM services.
type ModelClient interface {
	// ChatJSON sends the conversation to the model and decodes the response
	// as a single JSON object. maxTokens bounds the completion length; zero
	// means the client default.
	//
	// Returns ErrInvalidResponse when the response is not valid JSON,
	// ErrContentBlocked when safety filters refuse the content, and
	// ErrTransientFailure for provider errors that may resolve on retry.
	ChatJSON(ctx context.Context, messages []Message, maxTokens int) (*ChatResult, error)
}
