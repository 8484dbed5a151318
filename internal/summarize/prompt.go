package summarize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
	"github.com/Zhong-Ze-Wei/podcast/internal/generation"
)

// DefaultMaxChars is the transcript length above which truncation kicks in.
const DefaultMaxChars = 100000

// defaultMaxTokens is the completion budget when neither the params nor the
// template say otherwise.
const defaultMaxTokens = 4096

// PromptContext carries per-episode values substituted into the skeleton.
type PromptContext struct {
	Title string
	Guest string
}

// PromptBuilder renders template skeletons into model conversations.
type PromptBuilder struct {
	maxChars int
}

// NewPromptBuilder creates a PromptBuilder. A non-positive maxChars falls
// back to DefaultMaxChars.
func NewPromptBuilder(maxChars int) *PromptBuilder {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &PromptBuilder{maxChars: maxChars}
}

// Build renders the template into a system plus user message pair. A nil
// enabledBlocks selects the template's default blocks; an explicit empty
// slice disables all optional blocks.
func (b *PromptBuilder) Build(
	template *domain.Template,
	transcript string,
	enabledBlocks []string,
	params map[string]string,
	pctx PromptContext,
) []generation.Message {
	active := ResolveBlocks(template, enabledBlocks)

	title := pctx.Title
	if title == "" {
		title = "Unknown"
	}
	guest := pctx.Guest
	if guest == "" {
		guest = "Unknown"
	}

	replacements := map[string]string{
		domain.PlaceholderTitle:               title,
		domain.PlaceholderGuest:               guest,
		domain.PlaceholderLengthInstruction:   paramInstruction(template, params, "length"),
		domain.PlaceholderLanguageInstruction: paramInstruction(template, params, "language"),
		domain.PlaceholderBlockInstructions:   blockInstructions(active),
		domain.PlaceholderOutputContract:      template.Locked.OutputContract,
		domain.PlaceholderSchema:              dynamicSchema(template, active),
		domain.PlaceholderContent:             b.Truncate(transcript),
	}

	var sections []string
	for _, section := range template.Skeleton {
		sections = append(sections, substitute(section.Text, replacements))
	}

	return []generation.Message{
		{Role: generation.RoleSystem, Content: template.Locked.SystemDirective},
		{Role: generation.RoleUser, Content: strings.Join(sections, "\n\n")},
	}
}

// MaxTokens resolves the completion budget for a generation.
//
// Priority: explicit max_tokens in params, then the token hint of the chosen
// length option, then the default option of a max_tokens parameter, then the
// package fallback.
func (b *PromptBuilder) MaxTokens(template *domain.Template, params map[string]string) int {
	if raw, ok := params["max_tokens"]; ok {
		var n int
		if _, err := fmt.Sscanf(raw, "%d", &n); err == nil && n > 0 {
			return n
		}
	}

	if lengthDef, ok := template.Parameters["length"]; ok {
		if value, ok := params["length"]; ok {
			for _, opt := range lengthDef.Options {
				if opt.Value == value && opt.TokenHint > 0 {
					return opt.TokenHint
				}
			}
		}
	}

	if tokensDef, ok := template.Parameters["max_tokens"]; ok && tokensDef.Default != "" {
		var n int
		if _, err := fmt.Sscanf(tokensDef.Default, "%d", &n); err == nil && n > 0 {
			return n
		}
	}

	return defaultMaxTokens
}

// Truncate shortens text that exceeds the builder's character budget, keeping
// 60% of the budget from the head and 30% from the tail with a single elision
// marker between them. Text within the budget passes through untouched, so
// the operation is idempotent. Counts are in runes so multibyte content never
// gets split mid-character.
func (b *PromptBuilder) Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= b.maxChars {
		return text
	}

	headSize := b.maxChars * 6 / 10
	tailSize := b.maxChars * 3 / 10

	head := string(runes[:headSize])
	tail := string(runes[len(runes)-tailSize:])

	return fmt.Sprintf("%s\n\n[... content truncated, total %d characters ...]\n\n%s",
		head, len(runes), tail)
}

// ResolveBlocks returns the active blocks for a request, ordered by block
// Order. A nil selection means the template defaults; an explicit selection
// keeps only blocks whose IDs appear in it, silently ignoring unknown IDs.
func ResolveBlocks(template *domain.Template, enabledBlocks []string) []domain.Block {
	var active []domain.Block
	if enabledBlocks == nil {
		for _, block := range template.Blocks {
			if block.EnabledByDefault {
				active = append(active, block)
			}
		}
	} else {
		wanted := make(map[string]bool, len(enabledBlocks))
		for _, id := range enabledBlocks {
			wanted[id] = true
		}
		for _, block := range template.Blocks {
			if wanted[block.ID] {
				active = append(active, block)
			}
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Order < active[j].Order
	})
	return active
}

// EnabledBlockIDs returns the IDs of the blocks ResolveBlocks would activate.
func EnabledBlockIDs(template *domain.Template, enabledBlocks []string) []string {
	active := ResolveBlocks(template, enabledBlocks)
	ids := make([]string, 0, len(active))
	for _, block := range active {
		ids = append(ids, block.ID)
	}
	return ids
}

// blockInstructions renders the numbered extraction instructions for the
// active blocks. Returns an empty string when no blocks are active.
func blockInstructions(blocks []domain.Block) string {
	if len(blocks) == 0 {
		return ""
	}

	lines := []string{"Please analyze and extract the following:"}
	for i, block := range blocks {
		if block.PromptFragment == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. **%s**: %s", i+1, block.Name, block.PromptFragment))
	}
	return strings.Join(lines, "\n")
}

// dynamicSchema renders the expected JSON structure from the template's
// required fields plus the active blocks' output fields, as an indented JSON
// example the model can mirror.
func dynamicSchema(template *domain.Template, blocks []domain.Block) string {
	schema := make(map[string]string)
	var order []string

	add := func(key, desc string) {
		if _, ok := schema[key]; !ok {
			order = append(order, key)
		}
		schema[key] = desc
	}

	for _, field := range template.Locked.RequiredFields {
		switch field.Key {
		case "tldr":
			add(field.Key, "string (1-2 sentence summary, required)")
		case "tags":
			add(field.Key, "[string] (3-5 relevant tags, required)")
		default:
			add(field.Key, fmt.Sprintf("%s (required)", field.Type))
		}
	}

	for _, block := range blocks {
		field := block.OutputField
		if field.Key == "" {
			continue
		}
		switch field.Type {
		case domain.FieldTypeArray:
			switch items := field.Items.(type) {
			case string:
				add(field.Key, fmt.Sprintf("[%s] (%s)", items, field.Description))
			case map[string]any:
				encoded, err := json.Marshal(items)
				if err != nil {
					add(field.Key, fmt.Sprintf("[...] (%s)", field.Description))
				} else {
					add(field.Key, fmt.Sprintf("[%s] (%s)", encoded, field.Description))
				}
			default:
				add(field.Key, fmt.Sprintf("[...] (%s)", field.Description))
			}
		case domain.FieldTypeObject:
			add(field.Key, fmt.Sprintf("object (%s)", field.Description))
		default:
			add(field.Key, fmt.Sprintf("string (%s)", field.Description))
		}
	}

	var sb strings.Builder
	sb.WriteString("Expected JSON structure:\n```json\n{\n")
	for i, key := range order {
		encoded, _ := json.Marshal(schema[key])
		sb.WriteString(fmt.Sprintf("  %q: %s", key, encoded))
		if i < len(order)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n```")
	return sb.String()
}

// paramInstruction resolves a parameter to its mapped instruction text using
// the caller's value or the parameter default. Unknown values and missing
// parameters yield an empty string.
func paramInstruction(template *domain.Template, params map[string]string, name string) string {
	def, ok := template.Parameters[name]
	if !ok {
		return ""
	}

	value := params[name]
	if value == "" {
		value = def.Default
	}
	if value == "" {
		return ""
	}

	return def.PromptMapping[value]
}

// substitute replaces {placeholder} markers with their values. Unknown
// markers never reach here; Template.Validate rejects them at registration.
func substitute(text string, replacements map[string]string) string {
	for key, value := range replacements {
		text = strings.ReplaceAll(text, "{"+key+"}", value)
	}
	return text
}
