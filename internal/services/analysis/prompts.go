package analysis

import (
	"fmt"

	"article-analyzer/internal/config"
)

const summarySystemPrompt = "You are a helpful assistant that summarizes articles clearly and concisely."

const summaryTemplate = `Please provide a concise summary of the following article. Focus on:
- Main events or topics discussed
- Key people or organizations mentioned
- Important outcomes or implications
- Timeline if relevant

Keep the summary between 3-5 sentences and make it informative yet accessible.

Article text:
%s

Summary:`

const entityTemplate = `Analyze the following article and extract ALL nationalities, countries, or geographic regions mentioned.
Include:
%s
Return ONLY a JSON array of strings with the %s found, without any markdown formatting or code block.
If none are found, return an empty array [].
Avoid duplicates and use standard country/nationality names.

Example format: ["American", "Chinese", "German", "France", "United Kingdom"]

Article text:
%s

Nationalities/Countries (JSON array only):`

type entityVariant struct {
	system   string
	includes string
	noun     string
}

var entityVariants = map[string]entityVariant{
	config.ProfileNationalities: {
		system: "You are a helpful assistant that extracts nationalities and countries from text. Always respond with valid JSON.",
		includes: `- Countries explicitly mentioned
- Nationalities of people mentioned (e.g., "American", "Chinese", "British")
- Geographic regions that represent nations (e.g., "United States", "United Kingdom")
`,
		noun: "nationalities/countries",
	},
	config.ProfileExtended: {
		system: "You are a helpful assistant that extracts nationalities, countries, people, organizations from text. Always respond with valid JSON.",
		includes: `- Countries mentioned
- Nationalities of people mentioned (e.g., "American", "Chinese", "British")
- Geographic regions that represent nations (e.g., "United States", "United Kingdom")
- People mentioned (e.g., "Donald Trump", "Taylor Swift", "Xi Jin Ping")
- Organizations mentioned (e.g., "McKinsey", "HSBC", "DBS")
`,
		noun: "nationalities/countries/people/organizations",
	},
}

// PromptPair holds the rendered prompts for one article.
type PromptPair struct {
	Summary  string
	Entities string
}

// PromptBuilder renders prompts for a profile. It holds no per-request state.
type PromptBuilder struct {
	variant entityVariant
}

// NewPromptBuilder returns a builder for profile; unknown profiles use the extended variant.
func NewPromptBuilder(profile string) *PromptBuilder {
	v, ok := entityVariants[profile]
	if !ok {
		v = entityVariants[config.ProfileExtended]
	}
	return &PromptBuilder{variant: v}
}

// Build embeds text verbatim into both templates.
func (b *PromptBuilder) Build(text string) PromptPair {
	return PromptPair{
		Summary:  fmt.Sprintf(summaryTemplate, text),
		Entities: fmt.Sprintf(entityTemplate, b.variant.includes, b.variant.noun, text),
	}
}

func (b *PromptBuilder) SummarySystem() string { return summarySystemPrompt }
func (b *PromptBuilder) EntitySystem() string  { return b.variant.system }
