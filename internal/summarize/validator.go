package summarize

import (
	"fmt"
	"log/slog"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
)

// Strictness controls how hard the validator pushes back on model output.
type Strictness string

// Validation strictness levels.
//
//   - strict: required and block fields must exist with correct types
//   - normal: required fields must exist, block absences only logged
//   - relaxed: required field presence only, types ignored
const (
	StrictnessStrict  Strictness = "strict"
	StrictnessNormal  Strictness = "normal"
	StrictnessRelaxed Strictness = "relaxed"
)

// SchemaValidator checks model output against a template's expected schema.
// It never mutates the data it inspects.
type SchemaValidator struct {
	strictness Strictness
	logger     *slog.Logger
}

// NewSchemaValidator creates a validator. An empty strictness defaults to
// normal.
func NewSchemaValidator(strictness Strictness, logger *slog.Logger) *SchemaValidator {
	if strictness == "" {
		strictness = StrictnessNormal
	}
	return &SchemaValidator{strictness: strictness, logger: logger}
}

// Validate checks data against the template schema for the given block
// selection. It returns whether the data is acceptable plus the list of
// problems found; the list drives retry correction hints, so messages are
// written for the model to read.
func (v *SchemaValidator) Validate(data map[string]any, template *domain.Template, enabledBlocks []string) (bool, []string) {
	var errs []string

	for _, field := range template.Locked.RequiredFields {
		value, ok := data[field.Key]
		if !ok {
			errs = append(errs, fmt.Sprintf("missing required field: %s", field.Key))
			continue
		}
		if v.strictness == StrictnessStrict {
			if msg := typeMismatch(field.Key, field.Type, value); msg != "" {
				errs = append(errs, msg)
			}
		}
	}

	for _, block := range ResolveBlocks(template, enabledBlocks) {
		key := block.OutputField.Key
		if key == "" {
			continue
		}

		value, ok := data[key]
		if !ok {
			if v.strictness == StrictnessStrict {
				errs = append(errs, fmt.Sprintf("missing field from block '%s': %s", block.ID, key))
			} else if v.logger != nil {
				v.logger.Warn("missing optional field in model output",
					"block_id", block.ID,
					"field", key)
			}
			continue
		}

		if v.strictness == StrictnessStrict {
			if msg := typeMismatch(key, block.OutputField.Type, value); msg != "" {
				errs = append(errs, msg)
			}
		}
	}

	return len(errs) == 0, errs
}

// FillRequiredDefaults returns a copy of data with missing required fields
// filled by type-appropriate empty values. Block fields are never filled;
// only the locked required fields get defaults.
func (v *SchemaValidator) FillRequiredDefaults(data map[string]any, template *domain.Template) map[string]any {
	result := make(map[string]any, len(data))
	for key, value := range data {
		result[key] = value
	}

	for _, field := range template.Locked.RequiredFields {
		if _, ok := result[field.Key]; ok {
			continue
		}
		switch field.Type {
		case domain.FieldTypeArray:
			result[field.Key] = []any{}
		case domain.FieldTypeObject:
			result[field.Key] = map[string]any{}
		default:
			result[field.Key] = ""
		}
		if v.logger != nil {
			v.logger.Warn("added default value for missing required field", "field", field.Key)
		}
	}

	return result
}

// typeMismatch reports a human-readable problem when the decoded JSON value
// does not match the declared field type. Returns "" on match. JSON decoding
// yields string, []any, and map[string]any for the three declared types.
func typeMismatch(key string, expected domain.FieldType, value any) string {
	switch expected {
	case domain.FieldTypeString:
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("field '%s' must be string, got %T", key, value)
		}
	case domain.FieldTypeArray:
		if _, ok := value.([]any); !ok {
			return fmt.Sprintf("field '%s' must be array, got %T", key, value)
		}
	case domain.FieldTypeObject:
		if _, ok := value.(map[string]any); !ok {
			return fmt.Sprintf("field '%s' must be object, got %T", key, value)
		}
	}
	return ""
}
