package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrEmptyPrompt is returned when there is no user content to send.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
)
