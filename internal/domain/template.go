package domain

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
)

// FieldType describes the JSON shape of an extracted output field.
type FieldType string

// Supported output field types.
const (
	FieldTypeString FieldType = "string"
	FieldTypeArray  FieldType = "array"
	FieldTypeObject FieldType = "object"
)

// Common validation errors for Template.
var (
	ErrEmptyTemplateName     = errors.New("template name cannot be empty")
	ErrEmptySystemDirective  = errors.New("template system directive cannot be empty")
	ErrEmptyOutputContract   = errors.New("template output contract cannot be empty")
	ErrDuplicateBlockID      = errors.New("duplicate block ID in template")
	ErrDuplicateRequiredKey  = errors.New("duplicate required field key in template")
	ErrInvalidFieldType      = errors.New("invalid output field type")
	ErrUnknownPlaceholder    = errors.New("unknown placeholder in prompt skeleton")
	ErrEmptyParameterDefault = errors.New("parameter default must be one of its options")
)

// RequiredField is a field every response for the template must contain,
// regardless of which optional blocks are enabled.
type RequiredField struct {
	Key         string    `json:"key"`
	Type        FieldType `json:"type"`
	Description string    `json:"description,omitempty"`
}

// LockedSection is the caller-immutable part of a template.
type LockedSection struct {
	SystemDirective string          `json:"system_directive"`
	OutputContract  string          `json:"output_contract"`
	RequiredFields  []RequiredField `json:"required_fields"`
}

// OutputField describes the schema entry a block contributes to the expected
// model output.
type OutputField struct {
	Key         string    `json:"key"`
	Type        FieldType `json:"type"`
	Items       any       `json:"items,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Block is an optional, independently toggleable unit of prompt instruction
// plus its declared output field. Order determines both the instruction
// sequence and the schema field sequence; ties keep insertion order.
type Block struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	PromptFragment   string      `json:"prompt_fragment"`
	OutputField      OutputField `json:"output_field"`
	EnabledByDefault bool        `json:"enabled_by_default"`
	Order            int         `json:"order"`
}

// ParameterOption is one allowed value for an enumerated parameter.
type ParameterOption struct {
	Value     string `json:"value"`
	Label     string `json:"label,omitempty"`
	TokenHint int    `json:"token_hint,omitempty"`
}

// ParameterDef is an enumerated template parameter. Each option value maps
// to an instruction string; parameters are never free text so that prompts
// stay deterministic.
type ParameterDef struct {
	Name          string            `json:"name"`
	Label         string            `json:"label,omitempty"`
	Options       []ParameterOption `json:"options"`
	Default       string            `json:"default"`
	PromptMapping map[string]string `json:"prompt_mapping"`
}

// PromptSection is one named section of the prompt skeleton. Text may contain
// {placeholder} substitution points drawn from the fixed placeholder set;
// unknown placeholders fail Validate at registration time, not at generation
// time.
type PromptSection struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Placeholder names the skeleton may reference.
const (
	PlaceholderTitle               = "title"
	PlaceholderGuest               = "guest"
	PlaceholderLengthInstruction   = "length_instruction"
	PlaceholderLanguageInstruction = "language_instruction"
	PlaceholderBlockInstructions   = "block_instructions"
	PlaceholderOutputContract      = "output_contract"
	PlaceholderSchema              = "schema"
	PlaceholderContent             = "content"
)

var knownPlaceholders = map[string]bool{
	PlaceholderTitle:               true,
	PlaceholderGuest:               true,
	PlaceholderLengthInstruction:   true,
	PlaceholderLanguageInstruction: true,
	PlaceholderBlockInstructions:   true,
	PlaceholderOutputContract:      true,
	PlaceholderSchema:              true,
	PlaceholderContent:             true,
}

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Template is a named configuration describing how to build a structured
// extraction prompt: a locked section, a catalogue of optional blocks,
// enumerated parameters, and a prompt skeleton.
type Template struct {
	ID          uuid.UUID               `json:"id"`
	Name        string                  `json:"name"`
	DisplayName string                  `json:"display_name,omitempty"`
	Description string                  `json:"description,omitempty"`
	IsSystem    bool                    `json:"is_system"`
	IsActive    bool                    `json:"is_active"`
	Locked      LockedSection           `json:"locked"`
	Blocks      []Block                 `json:"blocks"`
	Parameters  map[string]ParameterDef `json:"parameters,omitempty"`
	Skeleton    []PromptSection         `json:"skeleton"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// Validate checks the template's structural invariants. It is called at
// registration time so that malformed templates are rejected before any
// generation attempt.
func (t *Template) Validate() error {
	if t.Name == "" {
		return ErrEmptyTemplateName
	}
	if t.Locked.SystemDirective == "" {
		return ErrEmptySystemDirective
	}
	if t.Locked.OutputContract == "" {
		return ErrEmptyOutputContract
	}

	seenKeys := make(map[string]bool, len(t.Locked.RequiredFields))
	for _, field := range t.Locked.RequiredFields {
		if field.Key == "" {
			return fmt.Errorf("%w: required field with empty key", ErrValidation)
		}
		if seenKeys[field.Key] {
			return fmt.Errorf("%w: %q", ErrDuplicateRequiredKey, field.Key)
		}
		seenKeys[field.Key] = true
		if !validFieldType(field.Type) {
			return fmt.Errorf("%w: required field %q has type %q", ErrInvalidFieldType, field.Key, field.Type)
		}
	}

	seenBlocks := make(map[string]bool, len(t.Blocks))
	for _, block := range t.Blocks {
		if block.ID == "" {
			return fmt.Errorf("%w: block with empty ID", ErrValidation)
		}
		if seenBlocks[block.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateBlockID, block.ID)
		}
		seenBlocks[block.ID] = true
		if block.OutputField.Key != "" && !validFieldType(block.OutputField.Type) {
			return fmt.Errorf("%w: block %q declares type %q", ErrInvalidFieldType, block.ID, block.OutputField.Type)
		}
	}

	for name, param := range t.Parameters {
		if err := validateParameter(name, param); err != nil {
			return err
		}
	}

	for _, section := range t.Skeleton {
		for _, match := range placeholderPattern.FindAllStringSubmatch(section.Text, -1) {
			if !knownPlaceholders[match[1]] {
				return fmt.Errorf("%w: {%s} in section %q", ErrUnknownPlaceholder, match[1], section.Name)
			}
		}
	}

	return nil
}

// SortedBlocks returns the template's blocks ordered by Order, preserving
// insertion order for equal values.
func (t *Template) SortedBlocks() []Block {
	blocks := make([]Block, len(t.Blocks))
	copy(blocks, t.Blocks)
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Order < blocks[j].Order
	})
	return blocks
}

// BlockByID returns the block with the given id, if present.
func (t *Template) BlockByID(id string) (Block, bool) {
	for _, block := range t.Blocks {
		if block.ID == id {
			return block, true
		}
	}
	return Block{}, false
}

func validateParameter(name string, param ParameterDef) error {
	if len(param.Options) == 0 {
		return fmt.Errorf("%w: parameter %q has no options", ErrValidation, name)
	}
	if param.Default != "" {
		found := false
		for _, opt := range param.Options {
			if opt.Value == param.Default {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: parameter %q default %q", ErrEmptyParameterDefault, name, param.Default)
		}
	}
	return nil
}

func validFieldType(t FieldType) bool {
	switch t {
	case FieldTypeString, FieldTypeArray, FieldTypeObject:
		return true
	default:
		return false
	}
}
