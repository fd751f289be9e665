package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/theimaginaryfoundation/browse-o-bot/history/fileutils"
	"github.com/theimaginaryfoundation/browse-o-bot/history/provider"
	"go.uber.org/zap"
)

const (
	TopCategories         = 5
	TopTopics             = 10
	MaxSampleDescriptions = 10
)

// BrowsingSummarizer writes a prose recap from aggregate counts and sample descriptions.
type BrowsingSummarizer struct {
	Gateway  provider.Gateway
	Template PromptTemplate
	Logger   *zap.Logger
}

func NewBrowsingSummarizer(g provider.Gateway, tmpl PromptTemplate, logger *zap.Logger) *BrowsingSummarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowsingSummarizer{Gateway: g, Template: tmpl, Logger: logger}
}

// Summarize renders the template and returns the model's plain-text answer.
func (s *BrowsingSummarizer) Summarize(ctx context.Context, counts AggregateCounts, records []RecordAnalysis) (string, error) {
	var descriptions []string
	for _, r := range records {
		if d := strings.TrimSpace(r.Description); d != "" {
			descriptions = append(descriptions, d)
		}
	}
	if len(descriptions) == 0 {
		s.Logger.Warn("no descriptions found; summary may be less specific")
	}
	if len(counts.Categories) == 0 {
		s.Logger.Warn("no category data; summary may be less specific")
	}
	if len(counts.Topics) == 0 {
		s.Logger.Warn("no topic data; summary may be less specific")
	}

	samples := "N/A"
	if len(descriptions) > 0 {
		if len(descriptions) > MaxSampleDescriptions {
			descriptions = descriptions[:MaxSampleDescriptions]
		}
		samples = bulletList(descriptions)
	}

	msgs, err := s.Template.Render(map[string]string{
		PlaceholderTopCategories:      FormatTopCounts(counts.Categories, TopCategories),
		PlaceholderTopTopics:          FormatTopCounts(counts.Topics, TopTopics),
		PlaceholderSampleDescriptions: samples,
	})
	if err != nil {
		return "", fmt.Errorf("%w: summary prompt: %v", ErrConfiguration, err)
	}

	comp, err := s.Gateway.Complete(ctx, provider.Request{Messages: msgs})
	if err != nil {
		return "", fmt.Errorf("Summarize: %w", err)
	}
	text := strings.TrimSpace(comp.Text)
	if text == "" {
		return "", errors.New("Summarize: model returned an empty summary")
	}
	return text, nil
}

// WriteSummary persists a summary as markdown, atomically.
func WriteSummary(path, summary string) error {
	if err := fileutils.WriteFileAtomicSameDir(path, []byte(strings.TrimSpace(summary)+"\n"), 0o644); err != nil {
		return fmt.Errorf("WriteSummary: %w", err)
	}
	return nil
}

type CountEntry struct {
	Name  string
	Count int
}

// TopCounts returns the n largest entries by count, ties broken by name.
func TopCounts(m map[string]int, n int) []CountEntry {
	entries := make([]CountEntry, 0, len(m))
	for k, v := range m {
		entries = append(entries, CountEntry{Name: k, Count: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// FormatTopCounts renders "- name (count)" lines, or "N/A" for an empty map.
func FormatTopCounts(m map[string]int, n int) string {
	if len(m) == 0 {
		return "N/A"
	}
	top := TopCounts(m, n)
	lines := make([]string, len(top))
	for i, e := range top {
		lines[i] = fmt.Sprintf("- %s (%d)", e.Name, e.Count)
	}
	return strings.Join(lines, "\n")
}
