package history

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/theimaginaryfoundation/browse-o-bot/history/fileutils"
	"github.com/theimaginaryfoundation/browse-o-bot/history/provider"
)

// Placeholders substituted into the user message of each template.
const (
	PlaceholderTitle   = "[Title]"
	PlaceholderContent = "[Text content]"

	PlaceholderCombinedDescriptions = "{combined_descriptions}"
	PlaceholderCombinedCategories   = "{combined_categories}"
	PlaceholderCombinedTopics       = "{combined_topics}"

	PlaceholderTopCategories      = "{top_categories}"
	PlaceholderTopTopics          = "{top_topics}"
	PlaceholderSampleDescriptions = "{sample_descriptions}"
)

// ChunkAnalysisResponse is the structured output expected for one chunk.
type ChunkAnalysisResponse struct {
	Description string   `json:"description" jsonschema:"description=One or two sentences describing what the page is about."`
	Category    string   `json:"category" jsonschema:"description=A single broad category such as Technology, News, Shopping, Entertainment, Education, Finance, Health, or Reference."`
	Topics      []string `json:"topics" jsonschema:"description=Up to three short topic phrases."`
}

// ConsolidatedAnalysisResponse is the structured output for a multi-chunk consolidation.
type ConsolidatedAnalysisResponse struct {
	Description string   `json:"description" jsonschema:"description=One or two sentences describing the whole page."`
	Category    string   `json:"category" jsonschema:"description=The single best category for the whole page."`
	Topics      []string `json:"topics" jsonschema:"description=The three most representative topics."`
}

const defaultChunkSystem = `You analyze web pages from a person's browsing history.
Describe what the page is about, pick one broad category, and list up to three topics.
Base your answer only on the provided text. Return only JSON matching the schema.`

const defaultChunkUser = `Page title: [Title]

Page text (may be a fragment of a longer page):
"""
[Text content]
"""`

const defaultConsolidationSystem = `You merge partial analyses of one long web page into a single analysis.
Return only JSON matching the schema.`

const defaultConsolidationUser = `The page was analyzed in several fragments.

Fragment descriptions:
{combined_descriptions}

Fragment categories:
{combined_categories}

Fragment topics:
{combined_topics}

Write one description for the whole page, choose the single best category, and pick the three most representative topics.`

const defaultSummarySystem = `You write short, friendly recaps of a person's recent web browsing.
Write two or three paragraphs of plain prose. Do not use headings or lists.`

const defaultSummaryUser = `Most visited categories:
{top_categories}

Most frequent topics:
{top_topics}

Sample page descriptions:
{sample_descriptions}

Summarize what this person has been reading about and what seems to interest them most.`

// DefaultChunkTemplate is the built-in per-chunk analysis prompt.
func DefaultChunkTemplate() PromptTemplate {
	return PromptTemplate{
		Name: "chunk_analysis",
		Messages: []provider.Message{
			{Role: "system", Content: defaultChunkSystem},
			{Role: "user", Content: defaultChunkUser},
		},
		ResponseSchema: provider.GenerateSchema[ChunkAnalysisResponse](),
	}
}

// DefaultConsolidationTemplate is the built-in multi-chunk consolidation prompt.
func DefaultConsolidationTemplate() PromptTemplate {
	return PromptTemplate{
		Name: "consolidation",
		Messages: []provider.Message{
			{Role: "system", Content: defaultConsolidationSystem},
			{Role: "user", Content: defaultConsolidationUser},
		},
		ResponseSchema: provider.GenerateSchema[ConsolidatedAnalysisResponse](),
	}
}

// DefaultSummaryTemplate is the built-in browsing summary prompt. It has no schema.
func DefaultSummaryTemplate() PromptTemplate {
	return PromptTemplate{
		Name: "browsing_summary",
		Messages: []provider.Message{
			{Role: "system", Content: defaultSummarySystem},
			{Role: "user", Content: defaultSummaryUser},
		},
	}
}

// WriteDefaultTemplates writes the built-in templates as JSON files into dir and returns their paths.
func WriteDefaultTemplates(dir string, overwrite bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("WriteDefaultTemplates: mkdir: %w", err)
	}
	var paths []string
	for _, t := range []PromptTemplate{DefaultChunkTemplate(), DefaultConsolidationTemplate(), DefaultSummaryTemplate()} {
		p := filepath.Join(dir, t.Name+".json")
		if !overwrite && fileutils.FileExists(p) {
			return paths, fmt.Errorf("WriteDefaultTemplates: %s already exists", p)
		}
		if err := fileutils.WriteJSONFileAtomic(p, t, true); err != nil {
			return paths, fmt.Errorf("WriteDefaultTemplates: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
