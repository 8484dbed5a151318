// Package generation provides interfaces and types for interacting with
// external AI/LLM services. It abstracts the details of LLM API integration
// (Gemini), allowing the summarization engine to request structured JSON
// completions without coupling to a specific provider.
package generation
