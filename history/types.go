package history

import (
	"errors"

	"github.com/theimaginaryfoundation/browse-o-bot/history/provider"
)

var (
	// ErrConfiguration is fatal for a run (bad credentials, endpoint, template, or limits).
	ErrConfiguration = provider.ErrConfiguration

	// ErrInputNotFound is fatal: a required file (database, prompt, analysis) is missing.
	ErrInputNotFound = errors.New("input not found")

	// ErrTemplate means a prompt template has no user message to render into.
	// It is absorbed at chunk or record scope.
	ErrTemplate = errors.New("prompt template has no user message")
)

// HistoryRecord is one visited page read from the history store.
type HistoryRecord struct {
	ID      int64  `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ContentChunk is a bounded slice of a record's content.
type ContentChunk struct {
	RecordID    int64
	Index       int
	Text        string
	TotalChunks int
}

// ChunkAnalysis is the model's answer for one chunk.
type ChunkAnalysis struct {
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Topics      []string `json:"topics"`
}

// RecordAnalysis is the final per-record output. A record counts as analyzed
// only when Description is non-empty.
type RecordAnalysis struct {
	RecordID    int64    `json:"record_id"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Category    string   `json:"category,omitempty"`
	Topics      []string `json:"topics,omitempty"`
}

func (r RecordAnalysis) Analyzed() bool { return r.Description != "" }

// AggregateCounts is the serialized form of an Aggregator.
type AggregateCounts struct {
	Categories map[string]int `json:"categories"`
	Topics     map[string]int `json:"topics"`
}
