package summarize

import (
	"context"
	"fmt"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
	"github.com/Zhong-Ze-Wei/podcast/internal/store"
)

// RegisterDefaults validates and upserts the built-in system templates.
// Called at startup so a fresh database always has a working template set.
// A template that fails validation aborts registration; the built-ins are
// compiled in, so that is a programming error worth failing loudly on.
func RegisterDefaults(ctx context.Context, templates store.TemplateStore) error {
	for _, template := range DefaultTemplates() {
		if err := template.Validate(); err != nil {
			return fmt.Errorf("built-in template %q is invalid: %w", template.Name, err)
		}
		if err := templates.Upsert(ctx, template); err != nil {
			return fmt.Errorf("failed to register template %q: %w", template.Name, err)
		}
	}
	return nil
}

// DefaultTemplates returns the built-in system templates. Each call returns
// fresh values safe for the caller to mutate.
func DefaultTemplates() []*domain.Template {
	return []*domain.Template{
		investmentTemplate(),
		techTemplate(),
		startupTemplate(),
		learningTemplate(),
		interviewTemplate(),
	}
}

const commonSystemDirective = "You are a professional content analyst. Your task is to analyze podcast transcripts and generate structured summaries. Always output valid JSON only, no other text."

const commonOutputContract = `Output strictly in JSON format with the required fields.
Ensure all JSON is properly formatted and valid.
Do not include any text outside the JSON structure.`

func commonLocked() domain.LockedSection {
	return domain.LockedSection{
		SystemDirective: commonSystemDirective,
		OutputContract:  commonOutputContract,
		RequiredFields: []domain.RequiredField{
			{Key: "tldr", Type: domain.FieldTypeString, Description: "1-2 sentence summary"},
			{Key: "tags", Type: domain.FieldTypeArray, Description: "3-5 relevant tags"},
		},
	}
}

func commonParameters() map[string]domain.ParameterDef {
	return map[string]domain.ParameterDef{
		"length": {
			Name:  "length",
			Label: "Summary Length",
			Options: []domain.ParameterOption{
				{Value: "short", Label: "Short", TokenHint: 2000},
				{Value: "medium", Label: "Medium", TokenHint: 4096},
				{Value: "long", Label: "Long", TokenHint: 8000},
			},
			Default: "medium",
			PromptMapping: map[string]string{
				"short":  "Be concise. Keep each section under 50 words. Focus on the most essential points only.",
				"medium": "Provide moderate detail. Each section should be 50-150 words.",
				"long":   "Be thorough and detailed. Each section should be 150-300 words. Include examples and nuances.",
			},
		},
		"language": {
			Name:  "language",
			Label: "Output Language",
			Options: []domain.ParameterOption{
				{Value: "en", Label: "English"},
				{Value: "zh", Label: "Chinese"},
			},
			Default: "en",
			PromptMapping: map[string]string{
				"en": "Output all content in English.",
				"zh": "Output all content in Chinese (Simplified).",
			},
		},
	}
}

func commonSkeleton() []domain.PromptSection {
	return []domain.PromptSection{
		{Name: "task", Text: "Analyze the following podcast transcript."},
		{Name: "podcast_info", Text: "## Podcast Information\nTitle: {title}\nGuest: {guest}"},
		{Name: "requirements", Text: "## Analysis Requirements\n{length_instruction}\n{language_instruction}\n\n{block_instructions}"},
		{Name: "output_format", Text: "## Output Format\n{output_contract}\n\n{schema}"},
		{Name: "transcript", Text: "## Transcript\n{content}"},
	}
}

// commonBlocks is the shared block catalogue. Templates pick from it and
// flip EnabledByDefault per their focus.
func commonBlocks() map[string]domain.Block {
	return map[string]domain.Block{
		"core_content": {
			ID:               "core_content",
			Name:             "Core Content",
			PromptFragment:   "Identify and summarize the main topic and core message of this podcast episode.",
			OutputField:      domain.OutputField{Key: "core_content", Type: domain.FieldTypeString, Description: "The main topic and core message"},
			EnabledByDefault: true,
			Order:            1,
		},
		"guest_background": {
			ID:               "guest_background",
			Name:             "Guest Background",
			PromptFragment:   "Extract the guest's professional background, expertise, and relevant experience.",
			OutputField:      domain.OutputField{Key: "guest_background", Type: domain.FieldTypeString, Description: "Guest's professional background and expertise"},
			EnabledByDefault: true,
			Order:            2,
		},
		"unique_insights": {
			ID:               "unique_insights",
			Name:             "Unique Insights",
			PromptFragment:   "Identify unique, contrarian, or particularly insightful viewpoints expressed.",
			OutputField:      domain.OutputField{Key: "unique_insights", Type: domain.FieldTypeArray, Items: "string", Description: "List of unique or contrarian insights"},
			EnabledByDefault: true,
			Order:            3,
		},
		"key_points": {
			ID:             "key_points",
			Name:           "Key Points",
			PromptFragment: "Extract 5-8 most important points or takeaways from the discussion.",
			OutputField:    domain.OutputField{Key: "key_points", Type: domain.FieldTypeArray, Items: "string", Description: "List of key points"},
			Order:          4,
		},
		"key_quotes": {
			ID:             "key_quotes",
			Name:           "Key Quotes",
			PromptFragment: "Extract important direct quotes from speakers, especially memorable or impactful statements.",
			OutputField: domain.OutputField{
				Key:         "key_quotes",
				Type:        domain.FieldTypeArray,
				Items:       map[string]any{"speaker": "string", "quote": "string", "context": "string"},
				Description: "Notable quotes with speaker and context",
			},
			Order: 5,
		},
		"action_items": {
			ID:             "action_items",
			Name:           "Action Items",
			PromptFragment: "List actionable takeaways that listeners can implement.",
			OutputField:    domain.OutputField{Key: "action_items", Type: domain.FieldTypeArray, Items: "string", Description: "Actionable recommendations"},
			Order:          6,
		},
		"investment_signals": {
			ID:             "investment_signals",
			Name:           "Investment Signals",
			PromptFragment: "Extract bullish/bearish/neutral signals with target company, sector, reasoning and confidence level (high/medium/low).",
			OutputField: domain.OutputField{
				Key:  "investment_signals",
				Type: domain.FieldTypeArray,
				Items: map[string]any{
					"type":       "bullish/bearish/neutral",
					"target":     "company or ticker",
					"sector":     "industry sector",
					"reason":     "brief reasoning",
					"confidence": "high/medium/low",
				},
				Description: "Investment signals with sentiment analysis",
			},
			Order: 10,
		},
		"mentioned_tickers": {
			ID:             "mentioned_tickers",
			Name:           "Mentioned Tickers",
			PromptFragment: "List all public company stock tickers mentioned in the discussion.",
			OutputField:    domain.OutputField{Key: "mentioned_tickers", Type: domain.FieldTypeArray, Items: "string", Description: "Stock ticker symbols mentioned"},
			Order:          11,
		},
		"market_insights": {
			ID:             "market_insights",
			Name:           "Market Insights",
			PromptFragment: "Extract insights about market trends, industry dynamics, and economic factors.",
			OutputField:    domain.OutputField{Key: "market_insights", Type: domain.FieldTypeArray, Items: "string", Description: "Market and industry insights"},
			Order:          12,
		},
		"risk_alerts": {
			ID:             "risk_alerts",
			Name:           "Risk Alerts",
			PromptFragment: "Identify risks, uncertainties, negative factors, and potential downsides mentioned.",
			OutputField:    domain.OutputField{Key: "risk_alerts", Type: domain.FieldTypeArray, Items: "string", Description: "Risk factors and warnings"},
			Order:          13,
		},
		"technologies": {
			ID:             "technologies",
			Name:           "Technologies",
			PromptFragment: "List technologies, frameworks, tools, and technical concepts discussed.",
			OutputField:    domain.OutputField{Key: "technologies", Type: domain.FieldTypeArray, Items: "string", Description: "Technologies and tools mentioned"},
			Order:          20,
		},
		"product_insights": {
			ID:             "product_insights",
			Name:           "Product Insights",
			PromptFragment: "Extract product design decisions, feature discussions, and UX considerations.",
			OutputField:    domain.OutputField{Key: "product_insights", Type: domain.FieldTypeArray, Items: "string", Description: "Product and design insights"},
			Order:          21,
		},
		"tech_trends": {
			ID:             "tech_trends",
			Name:           "Tech Trends",
			PromptFragment: "Identify technology trends, emerging patterns, and future predictions.",
			OutputField:    domain.OutputField{Key: "tech_trends", Type: domain.FieldTypeArray, Items: "string", Description: "Technology trends and predictions"},
			Order:          22,
		},
		"business_model": {
			ID:             "business_model",
			Name:           "Business Model",
			PromptFragment: "Describe the business model, revenue streams, and monetization strategies discussed.",
			OutputField:    domain.OutputField{Key: "business_model", Type: domain.FieldTypeString, Description: "Business model description"},
			Order:          30,
		},
		"growth_tactics": {
			ID:             "growth_tactics",
			Name:           "Growth Tactics",
			PromptFragment: "Extract growth strategies, customer acquisition methods, and scaling approaches.",
			OutputField:    domain.OutputField{Key: "growth_tactics", Type: domain.FieldTypeArray, Items: "string", Description: "Growth and scaling strategies"},
			Order:          31,
		},
		"lessons_learned": {
			ID:             "lessons_learned",
			Name:           "Lessons Learned",
			PromptFragment: "Identify mistakes, failures, and lessons learned from experience.",
			OutputField:    domain.OutputField{Key: "lessons_learned", Type: domain.FieldTypeArray, Items: "string", Description: "Lessons from experience"},
			Order:          32,
		},
		"key_concepts": {
			ID:             "key_concepts",
			Name:           "Key Concepts",
			PromptFragment: "Explain key concepts, terminology, and ideas introduced in the discussion.",
			OutputField: domain.OutputField{
				Key:         "key_concepts",
				Type:        domain.FieldTypeArray,
				Items:       map[string]any{"concept": "string", "explanation": "string"},
				Description: "Key concepts with explanations",
			},
			Order: 40,
		},
		"examples": {
			ID:             "examples",
			Name:           "Examples",
			PromptFragment: "Extract concrete examples, case studies, and real-world applications mentioned.",
			OutputField:    domain.OutputField{Key: "examples", Type: domain.FieldTypeArray, Items: "string", Description: "Examples and case studies"},
			Order:          41,
		},
		"resources": {
			ID:             "resources",
			Name:           "Resources",
			PromptFragment: "List books, articles, tools, websites, or other resources recommended.",
			OutputField:    domain.OutputField{Key: "resources", Type: domain.FieldTypeArray, Items: "string", Description: "Recommended resources"},
			Order:          42,
		},
		"life_lessons": {
			ID:             "life_lessons",
			Name:           "Life Lessons",
			PromptFragment: "Extract personal life lessons, wisdom, and philosophy shared by the guest.",
			OutputField:    domain.OutputField{Key: "life_lessons", Type: domain.FieldTypeArray, Items: "string", Description: "Personal life lessons and wisdom"},
			Order:          50,
		},
		"controversial_views": {
			ID:             "controversial_views",
			Name:           "Controversial Views",
			PromptFragment: "Identify controversial, unconventional, or debate-worthy opinions expressed.",
			OutputField:    domain.OutputField{Key: "controversial_views", Type: domain.FieldTypeArray, Items: "string", Description: "Controversial or unconventional opinions"},
			Order:          51,
		},
	}
}

// pick selects blocks from the catalogue by ID. IDs listed in asDefault are
// additionally flipped to enabled-by-default.
func pick(catalogue map[string]domain.Block, ids []string, asDefault ...string) []domain.Block {
	flip := make(map[string]bool, len(asDefault))
	for _, id := range asDefault {
		flip[id] = true
	}

	blocks := make([]domain.Block, 0, len(ids))
	for _, id := range ids {
		block := catalogue[id]
		if flip[id] {
			block.EnabledByDefault = true
		}
		blocks = append(blocks, block)
	}
	return blocks
}

func systemTemplate(name, displayName, description string) *domain.Template {
	return &domain.Template{
		Name:        name,
		DisplayName: displayName,
		Description: description,
		IsSystem:    true,
		IsActive:    true,
		Locked:      commonLocked(),
		Parameters:  commonParameters(),
		Skeleton:    commonSkeleton(),
	}
}

func investmentTemplate() *domain.Template {
	t := systemTemplate("investment", "Investment Analysis",
		"Extract investment signals, stock mentions, and market insights from finance podcasts.")
	t.Locked.SystemDirective = "You are a senior financial analyst and investment researcher specializing in technology stocks and US equities. Your task is to analyze podcast content and extract information valuable for investment decisions. Always output valid JSON only, no other text."
	t.Blocks = pick(commonBlocks(), []string{
		"core_content", "guest_background", "unique_insights",
		"investment_signals", "mentioned_tickers", "market_insights",
		"key_quotes", "risk_alerts", "action_items",
	}, "investment_signals", "mentioned_tickers", "market_insights", "risk_alerts")
	return t
}

func techTemplate() *domain.Template {
	t := systemTemplate("tech", "Tech & Product",
		"Analyze technology discussions, product insights, and tech industry trends.")
	t.Locked.SystemDirective = "You are a technology analyst specializing in software development, product management, and tech industry trends. Your task is to extract technical insights and product knowledge. Always output valid JSON only, no other text."
	t.Blocks = pick(commonBlocks(), []string{
		"core_content", "guest_background", "unique_insights",
		"technologies", "product_insights", "tech_trends",
		"key_quotes", "action_items", "resources",
	}, "technologies", "product_insights", "tech_trends")
	return t
}

func startupTemplate() *domain.Template {
	t := systemTemplate("startup", "Startup & Business",
		"Extract business models, growth strategies, and entrepreneurship lessons.")
	t.Locked.SystemDirective = "You are a business analyst specializing in startups, entrepreneurship, and growth strategies. Your task is to extract actionable business insights. Always output valid JSON only, no other text."
	t.Blocks = pick(commonBlocks(), []string{
		"core_content", "guest_background", "unique_insights",
		"business_model", "growth_tactics", "lessons_learned",
		"key_quotes", "action_items", "resources",
	}, "business_model", "growth_tactics", "lessons_learned")
	return t
}

func learningTemplate() *domain.Template {
	t := systemTemplate("learning", "Learning Notes",
		"General-purpose learning summary with key concepts and actionable takeaways.")
	t.Blocks = pick(commonBlocks(), []string{
		"core_content", "guest_background", "key_points",
		"key_concepts", "examples", "action_items", "resources",
	}, "key_points", "key_concepts", "action_items")
	return t
}

func interviewTemplate() *domain.Template {
	t := systemTemplate("interview", "Interview & Stories",
		"Focus on personal stories, life lessons, and memorable quotes from interviews.")
	t.Blocks = pick(commonBlocks(), []string{
		"core_content", "guest_background", "unique_insights",
		"key_quotes", "life_lessons", "controversial_views", "resources",
	}, "key_quotes", "life_lessons", "controversial_views")
	return t
}
