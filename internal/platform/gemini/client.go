package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/Zhong-Ze-Wei/podcast/internal/config"
	"github.com/Zhong-Ze-Wei/podcast/internal/generation"
)

// temperature for structured extraction calls. Low to keep output shapes
// stable across retries.
const temperature float32 = 0.2

// Client implements the generation.ModelClient interface using Google's
// Gemini API.
type Client struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains LLM-specific configuration
	config config.LLMConfig

	// client is the Gemini API client for making requests
	client *genai.Client

	// model is the name of the Gemini model to use
	model string
}

var _ generation.ModelClient = (*Client)(nil)

// NewClient creates a new Gemini-backed model client.
//
// Parameters:
//   - ctx: Context for the operation, which can be used for cancellation
//   - logger: A structured logger for operation logging
//   - cfg: LLM configuration containing API key, model name, and retry settings
//
// Returns:
//   - A properly initialized Client or an error if initialization fails
func NewClient(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &Client{
		logger: logger,
		config: cfg,
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// ChatJSON sends the conversation to Gemini and decodes the response as a
// single JSON object. It retries transient API failures with exponential
// backoff and jitter; permanent failures (blocked content, malformed
// responses) return immediately.
func (c *Client) ChatJSON(ctx context.Context, messages []generation.Message, maxTokens int) (*generation.ChatResult, error) {
	contents, systemInstruction, err := buildContents(messages)
	if err != nil {
		return nil, err
	}

	genCfg := &genai.GenerateContentConfig{
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(temperature),
		SystemInstruction: systemInstruction,
	}
	if maxTokens > 0 {
		genCfg.MaxOutputTokens = int32(maxTokens)
	}

	maxRetries := c.config.MaxRetries
	if maxRetries < 0 {
		c.logger.WarnContext(ctx, "invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}
	baseDelaySeconds := c.config.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		baseDelaySeconds = 2
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; attempt <= maxRetries; attempt++ {
		attemptNum := attempt + 1
		c.logger.InfoContext(ctx, "making Gemini API call",
			"model", c.model,
			"attempt", attemptNum,
			"max_attempts", maxRetries+1)

		start := time.Now()
		resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, genCfg)
		if err == nil {
			result, decodeErr := c.decodeResponse(resp, time.Since(start))
			if decodeErr == nil {
				c.logger.InfoContext(ctx, "Gemini API call successful", "attempt", attemptNum)
				return result, nil
			}
			// Decode problems are permanent for this attempt's purposes.
			c.logger.ErrorContext(ctx, "Gemini response rejected",
				"attempt", attemptNum,
				"error", decodeErr)
			return nil, decodeErr
		}

		c.logger.ErrorContext(ctx, "Gemini API call failed",
			"attempt", attemptNum,
			"error", err)

		if attempt >= maxRetries {
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, maxRetries, err)
		}

		// delay = baseDelay * (2^attempt) * (0.5 + rand(0, 0.5))
		backoffSeconds := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		jitterFactor := 0.5 + rng.Float64()*0.5
		delay := time.Duration(backoffSeconds * jitterFactor * float64(time.Second))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.logger.WarnContext(ctx, "API call cancelled during retry delay",
				"attempt", attemptNum,
				"ctx_err", ctx.Err())
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}

	return nil, generation.ErrTransientFailure
}

// decodeResponse maps a raw Gemini response to a ChatResult.
func (c *Client) decodeResponse(resp *genai.GenerateContentResponse, elapsed time.Duration) (*generation.ChatResult, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}

	raw := text.String()
	fields, err := decodeJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}

	result := &generation.ChatResult{
		Fields:  fields,
		Content: raw,
		Model:   c.model,
		Elapsed: elapsed,
	}
	if resp.UsageMetadata != nil {
		result.Usage = generation.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return result, nil
}

// buildContents converts generic messages to genai contents, splitting off
// the system instruction.
func buildContents(messages []generation.Message) ([]*genai.Content, *genai.Content, error) {
	var contents []*genai.Content
	var system *genai.Content

	for _, msg := range messages {
		switch msg.Role {
		case generation.RoleSystem:
			system = &genai.Content{Parts: []*genai.Part{{Text: msg.Content}}}
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}

	if len(contents) == 0 {
		return nil, nil, ErrEmptyPrompt
	}
	return contents, system, nil
}

// decodeJSONObject parses the model output as a JSON object, tolerating a
// markdown code fence around it. Models occasionally wrap JSON in ```json
// fences even when asked not to.
func decodeJSONObject(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
