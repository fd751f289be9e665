package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/theimaginaryfoundation/browse-o-bot/history/provider"
	"go.uber.org/zap"
)

// ChunkResults holds the successful chunk answers for one record, in chunk order.
// Lengths may be smaller than the chunk count; Topics is flattened across chunks.
type ChunkResults struct {
	Descriptions []string
	Categories   []string
	Topics       []string
}

func (r ChunkResults) Empty() bool { return len(r.Descriptions) == 0 }

// ChunkAnalyzer asks the gateway about each chunk of a record.
type ChunkAnalyzer struct {
	Gateway  provider.Gateway
	Template PromptTemplate
	Logger   *zap.Logger
}

func NewChunkAnalyzer(g provider.Gateway, tmpl PromptTemplate, logger *zap.Logger) *ChunkAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChunkAnalyzer{Gateway: g, Template: tmpl, Logger: logger}
}

// Analyze runs chunks sequentially. Failed chunks contribute nothing.
// Only context cancellation is returned as an error.
func (a *ChunkAnalyzer) Analyze(ctx context.Context, title string, chunks []ContentChunk) (ChunkResults, error) {
	var out ChunkResults
	schema := a.Template.Schema("chunk_analysis")
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		log := a.Logger.With(
			zap.Int64("record_id", c.RecordID),
			zap.Int("chunk", c.Index+1),
			zap.Int("chunks", c.TotalChunks),
		)
		log.Debug("analyzing chunk")

		msgs, err := a.Template.Render(map[string]string{
			PlaceholderTitle:   title,
			PlaceholderContent: c.Text,
		})
		if err != nil {
			log.Warn("skipping chunk", zap.Error(err))
			continue
		}

		res, err := a.Gateway.Complete(ctx, provider.Request{Messages: msgs, Schema: schema})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			log.Error("chunk analysis failed", zap.String("kind", string(provider.KindOf(err))), zap.Error(err))
			continue
		}

		ca, err := ParseChunkAnalysis(res.Data)
		if err != nil {
			log.Error("incomplete chunk analysis", zap.Error(err), zap.Any("result", res.Data))
			continue
		}
		out.Descriptions = append(out.Descriptions, ca.Description)
		out.Categories = append(out.Categories, ca.Category)
		out.Topics = append(out.Topics, ca.Topics...)
	}
	return out, nil
}

// ParseChunkAnalysis requires description, category, and topics. Topics may be a
// single string or a list of strings.
func ParseChunkAnalysis(data map[string]any) (ChunkAnalysis, error) {
	if data == nil {
		return ChunkAnalysis{}, errors.New("ParseChunkAnalysis: no result")
	}
	desc, ok := data["description"].(string)
	if !ok {
		return ChunkAnalysis{}, errors.New("ParseChunkAnalysis: missing description")
	}
	cat, ok := data["category"].(string)
	if !ok {
		return ChunkAnalysis{}, errors.New("ParseChunkAnalysis: missing category")
	}
	raw, ok := data["topics"]
	if !ok {
		return ChunkAnalysis{}, errors.New("ParseChunkAnalysis: missing topics")
	}
	topics, err := topicList(raw)
	if err != nil {
		return ChunkAnalysis{}, fmt.Errorf("ParseChunkAnalysis: %w", err)
	}
	return ChunkAnalysis{Description: desc, Category: cat, Topics: topics}, nil
}

func topicList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("topic %v is %T, want string", item, item)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, errors.New("topics is null")
	default:
		return nil, fmt.Errorf("topics is %T, want string or list", raw)
	}
}

func bulletList(items []string) string {
	var b strings.Builder
	for i, s := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(s)
	}
	return b.String()
}
