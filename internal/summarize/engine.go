package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Zhong-Ze-Wei/podcast/internal/generation"
	"github.com/Zhong-Ze-Wei/podcast/internal/store"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
)

// DefaultMaxRetries is how many corrective attempts follow the first call
// when validation fails.
const DefaultMaxRetries = 2

// Request describes one summarization run.
type Request struct {
	// TemplateName selects the stored template.
	TemplateName string

	// EnabledBlocks selects optional blocks. Nil means template defaults;
	// an empty slice disables all optional blocks.
	EnabledBlocks []string

	// Params holds enumerated parameter values, e.g. {"length": "long"}.
	Params map[string]string

	// Title and Guest are substituted into the prompt skeleton.
	Title string
	Guest string
}

// Result is the outcome of a successful summarization.
type Result struct {
	// Fields is the validated (possibly default-filled) extraction.
	Fields map[string]any

	// RawOutput is the model response text of the accepted attempt.
	RawOutput string

	Usage   generation.Usage
	Model   string
	Elapsed time.Duration

	TemplateName  string
	EnabledBlocks []string

	// Lenient is true when validation never passed and missing required
	// fields were filled with defaults instead.
	Lenient bool

	// Attempts counts model calls made, including the accepted one.
	Attempts int
}

// Config holds engine tuning knobs. Zero values fall back to defaults.
type Config struct {
	MaxRetries int
	MaxChars   int
	Strictness Strictness
}

// Engine orchestrates template loading, prompt building, model calls, and
// schema validation with bounded retry.
//
// Validation failures and transport failures spend the same retry budget but
// end differently: exhausted validation degrades to a lenient result with
// defaults filled, while exhausted transport failures propagate the error.
type Engine struct {
	templates  store.TemplateStore
	client     generation.ModelClient
	builder    *PromptBuilder
	validator  *SchemaValidator
	maxRetries int
	logger     *slog.Logger
}

// NewEngine creates a summarization engine.
func NewEngine(templates store.TemplateStore, client generation.ModelClient, config Config, logger *slog.Logger) *Engine {
	maxRetries := config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	return &Engine{
		templates:  templates,
		client:     client,
		builder:    NewPromptBuilder(config.MaxChars),
		validator:  NewSchemaValidator(config.Strictness, logger),
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Summarize generates a structured extraction of the transcript using the
// requested template.
//
// Returns store.ErrTemplateNotFound when the template does not exist or is
// inactive, and the underlying generation error when the model remains
// unreachable for the whole retry budget.
func (e *Engine) Summarize(ctx context.Context, transcript string, req Request) (*Result, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("%w: transcript", domain.ErrEmptyContent)
	}

	template, err := e.templates.GetByName(ctx, req.TemplateName)
	if err != nil {
		return nil, err
	}
	if !template.IsActive {
		return nil, store.ErrTemplateNotFound
	}

	enabledIDs := EnabledBlockIDs(template, req.EnabledBlocks)
	messages := e.builder.Build(template, transcript, req.EnabledBlocks, req.Params, PromptContext{
		Title: req.Title,
		Guest: req.Guest,
	})
	maxTokens := e.builder.MaxTokens(template, req.Params)

	e.logger.Info("starting summarization",
		"template", req.TemplateName,
		"enabled_blocks", enabledIDs,
		"max_tokens", maxTokens)

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		chat, err := e.client.ChatJSON(ctx, messages, maxTokens)
		if err != nil {
			lastErr = err
			e.logger.Error("model call failed",
				"template", req.TemplateName,
				"attempt", attempt+1,
				"error", err)
			if attempt >= e.maxRetries {
				return nil, err
			}
			continue
		}

		valid, problems := e.validator.Validate(chat.Fields, template, req.EnabledBlocks)
		if valid {
			return e.result(chat, req.TemplateName, enabledIDs, false, attempt+1), nil
		}

		e.logger.Warn("validation failed",
			"template", req.TemplateName,
			"attempt", attempt+1,
			"problems", problems)

		if attempt >= e.maxRetries {
			chat.Fields = e.validator.FillRequiredDefaults(chat.Fields, template)
			e.logger.Warn("retry budget exhausted, filling required defaults",
				"template", req.TemplateName)
			return e.result(chat, req.TemplateName, enabledIDs, true, attempt+1), nil
		}

		messages = addCorrectionHint(messages, problems)
	}

	// Unreachable: the loop always returns at attempt == maxRetries.
	return nil, lastErr
}

func (e *Engine) result(chat *generation.ChatResult, templateName string, enabledIDs []string, lenient bool, attempts int) *Result {
	return &Result{
		Fields:        chat.Fields,
		RawOutput:     chat.Content,
		Usage:         chat.Usage,
		Model:         chat.Model,
		Elapsed:       chat.Elapsed,
		TemplateName:  templateName,
		EnabledBlocks: enabledIDs,
		Lenient:       lenient,
		Attempts:      attempts,
	}
}

// addCorrectionHint appends the validation problems to the last user message
// so the next attempt sees what to fix.
func addCorrectionHint(messages []generation.Message, problems []string) []generation.Message {
	var sb strings.Builder
	sb.WriteString("\n\nIMPORTANT: Your previous response had validation issues:\n")
	for _, problem := range problems {
		sb.WriteString("- ")
		sb.WriteString(problem)
		sb.WriteString("\n")
	}
	sb.WriteString("\nPlease ensure your response includes all required fields with correct types.")

	out := make([]generation.Message, len(messages))
	copy(out, messages)
	if len(out) > 0 && out[len(out)-1].Role == generation.RoleUser {
		out[len(out)-1].Content += sb.String()
	}
	return out
}
