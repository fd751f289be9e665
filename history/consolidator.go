package history

import (
	"context"
	"errors"
	"strings"

	"github.com/theimaginaryfoundation/browse-o-bot/history/provider"
	"go.uber.org/zap"
)

const (
	maxFallbackTopics = 3

	summarizationFailedMarker = " (Summarization failed)"
	templateErrorMarker       = " (Summarization failed - template error)"
)

// Consolidator turns the chunk results of one record into a single RecordAnalysis.
type Consolidator struct {
	Gateway  provider.Gateway
	Template PromptTemplate
	Logger   *zap.Logger
}

func NewConsolidator(g provider.Gateway, tmpl PromptTemplate, logger *zap.Logger) *Consolidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consolidator{Gateway: g, Template: tmpl, Logger: logger}
}

// Consolidate merges results for rec. totalChunks is the number of chunks the record was split
// into; a single-chunk record is passed through, multi-chunk records are re-summarized with a
// deterministic fallback. An empty Description means nothing succeeded.
func (c *Consolidator) Consolidate(ctx context.Context, rec HistoryRecord, totalChunks int, res ChunkResults) (RecordAnalysis, error) {
	out := RecordAnalysis{RecordID: rec.ID, Title: rec.Title, URL: rec.URL}
	log := c.Logger.With(zap.Int64("record_id", rec.ID))

	if res.Empty() {
		log.Warn("no chunk results; nothing to consolidate")
		return out, nil
	}

	if totalChunks <= 1 {
		out.Description = res.Descriptions[0]
		if len(res.Categories) > 0 {
			out.Category = res.Categories[0]
		}
		out.Topics = capTopics(dedupeOrdered(res.Topics), maxFallbackTopics)
		return out, nil
	}

	log.Info("consolidating chunk analyses", zap.Int("results", len(res.Descriptions)), zap.Int("chunks", totalChunks))
	msgs, err := c.Template.Render(map[string]string{
		PlaceholderCombinedDescriptions: bulletList(res.Descriptions),
		PlaceholderCombinedCategories:   bulletList(res.Categories),
		PlaceholderCombinedTopics:       bulletList(dedupeOrdered(res.Topics)),
	})
	if err != nil {
		log.Error("consolidation template unusable; using fallback", zap.Error(err))
		return fallbackAnalysis(out, res, templateErrorMarker), nil
	}

	comp, err := c.Gateway.Complete(ctx, provider.Request{
		Messages: msgs,
		Schema:   c.Template.Schema("final_page_analysis_schema"),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		log.Error("consolidation call failed; using fallback",
			zap.String("kind", string(provider.KindOf(err))), zap.Error(err))
		return fallbackAnalysis(out, res, summarizationFailedMarker), nil
	}

	merged, err := ParseChunkAnalysis(comp.Data)
	if err == nil && strings.TrimSpace(merged.Description) == "" {
		err = errors.New("consolidation returned an empty description")
	}
	if err != nil {
		log.Error("incomplete consolidation; using fallback", zap.Error(err), zap.Any("result", comp.Data))
		return fallbackAnalysis(out, res, summarizationFailedMarker), nil
	}
	out.Description = merged.Description
	out.Category = merged.Category
	out.Topics = merged.Topics
	return out, nil
}

func fallbackAnalysis(out RecordAnalysis, res ChunkResults, marker string) RecordAnalysis {
	out.Description = res.Descriptions[0] + marker
	out.Category = modeOf(res.Categories)
	out.Topics = capTopics(dedupeOrdered(res.Topics), maxFallbackTopics)
	return out
}

// modeOf returns the most frequent value; ties go to the value seen first.
func modeOf(values []string) string {
	counts := make(map[string]int, len(values))
	var best string
	bestCount := 0
	for _, v := range values {
		counts[v]++
	}
	for _, v := range values {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}

// dedupeOrdered removes exact duplicates, keeping first-seen order.
func dedupeOrdered(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func capTopics(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
