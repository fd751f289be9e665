package history

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/theimaginaryfoundation/browse-o-bot/history/provider"
	"go.uber.org/zap/zaptest"
)

var testRecord = HistoryRecord{ID: 7, URL: "https://example.com/a", Title: "A page", Content: "..."}

func TestConsolidate_NoResultsHasNoDescription(t *testing.T) {
	t.Parallel()

	g := &fakeGateway{fn: func(provider.Request) (provider.Completion, error) {
		t.Fatalf("gateway should not be called")
		return provider.Completion{}, nil
	}}
	c := NewConsolidator(g, DefaultConsolidationTemplate(), zaptest.NewLogger(t))
	got, err := c.Consolidate(context.Background(), testRecord, 3, ChunkResults{})
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if got.Analyzed() {
		t.Fatalf("got=%+v, want no description", got)
	}
}

func TestConsolidate_SingleChunkPassThrough(t *testing.T) {
	t.Parallel()

	g := &fakeGateway{fn: func(provider.Request) (provider.Completion, error) {
		t.Fatalf("gateway should not be called")
		return provider.Completion{}, nil
	}}
	c := NewConsolidator(g, DefaultConsolidationTemplate(), zaptest.NewLogger(t))
	res := ChunkResults{
		Descriptions: []string{"About Go"},
		Categories:   []string{"Tech"},
		Topics:       []string{"Go", "go", "Go", "Testing", "Fuzzing", "Extra"},
	}
	got, err := c.Consolidate(context.Background(), testRecord, 1, res)
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	want := RecordAnalysis{
		RecordID: 7, Title: "A page", URL: "https://example.com/a",
		Description: "About Go", Category: "Tech",
		Topics: []string{"Go", "go", "Testing"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestConsolidate_MultiChunkUsesModelVerbatim(t *testing.T) {
	t.Parallel()

	var prompt string
	g := &fakeGateway{fn: func(req provider.Request) (provider.Completion, error) {
		prompt = lastUserMessage(req)
		return dataCompletion("Whole page", "Science", []any{"a", "b", "c", "d"}), nil
	}}
	c := NewConsolidator(g, DefaultConsolidationTemplate(), zaptest.NewLogger(t))
	res := ChunkResults{
		Descriptions: []string{"one", "two"},
		Categories:   []string{"Tech", "Science"},
		Topics:       []string{"x", "y", "x"},
	}
	got, err := c.Consolidate(context.Background(), testRecord, 2, res)
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if got.Description != "Whole page" || got.Category != "Science" {
		t.Fatalf("got=%+v", got)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, got.Topics); diff != "" {
		t.Fatalf("topics should not be truncated (-want +got):\n%s", diff)
	}
	for _, want := range []string{"- one\n- two", "- Tech\n- Science", "- x\n- y"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "- y\n- x") {
		t.Fatalf("topics not de-duplicated in prompt:\n%s", prompt)
	}
	if g.callsWithSchema("final_page_analysis_schema") != 1 {
		t.Fatalf("consolidation schema not sent")
	}
}

func TestConsolidate_FallbackOnFailure(t *testing.T) {
	t.Parallel()

	cases := map[string]func(provider.Request) (provider.Completion, error){
		"gateway failure": func(provider.Request) (provider.Completion, error) { return provider.Completion{}, transportFailure() },
		"missing fields": func(provider.Request) (provider.Completion, error) {
			return provider.Completion{Data: map[string]any{"description": "only"}}, nil
		},
		"empty description": func(provider.Request) (provider.Completion, error) {
			return dataCompletion(" ", "Tech", []any{"Go"}), nil
		},
	}
	for name, fn := range cases {
		g := &fakeGateway{fn: fn}
		c := NewConsolidator(g, DefaultConsolidationTemplate(), zaptest.NewLogger(t))
		res := ChunkResults{
			Descriptions: []string{"first desc", "second desc", "third desc"},
			Categories:   []string{"News", "Tech", "Tech"},
			Topics:       []string{"a", "b", "a", "c", "d"},
		}
		got, err := c.Consolidate(context.Background(), testRecord, 3, res)
		if err != nil {
			t.Fatalf("%s: Consolidate: %v", name, err)
		}
		want := RecordAnalysis{
			RecordID: 7, Title: "A page", URL: "https://example.com/a",
			Description: "first desc (Summarization failed)",
			Category:    "Tech",
			Topics:      []string{"a", "b", "c"},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("%s: mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestConsolidate_TemplateErrorFallback(t *testing.T) {
	t.Parallel()

	g := &fakeGateway{fn: func(provider.Request) (provider.Completion, error) {
		t.Fatalf("gateway should not be called")
		return provider.Completion{}, nil
	}}
	tmpl := PromptTemplate{Messages: []provider.Message{{Role: "system", Content: "x"}}}
	c := NewConsolidator(g, tmpl, zaptest.NewLogger(t))
	res := ChunkResults{Descriptions: []string{"d1", "d2"}, Categories: []string{"A", "B"}}
	got, err := c.Consolidate(context.Background(), testRecord, 2, res)
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if got.Description != "d1 (Summarization failed - template error)" {
		t.Fatalf("Description=%q", got.Description)
	}
	if got.Category != "A" {
		t.Fatalf("Category=%q, want first-encountered tie winner A", got.Category)
	}
}

func TestModeOf_TieBreaksFirstEncountered(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"b", "a"}, "b"},
		{[]string{"a", "b", "b", "a"}, "a"},
		{[]string{"a", "b", "b"}, "b"},
		{[]string{"c", "a", "b", "a", "b"}, "a"},
	}
	for _, tc := range cases {
		if got := modeOf(tc.in); got != tc.want {
			t.Fatalf("modeOf(%v)=%q, want %q", tc.in, got, tc.want)
		}
	}
}
