package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/theimaginaryfoundation/browse-o-bot/history/provider"
	"go.uber.org/zap/zaptest"
)

func TestFormatTopCounts(t *testing.T) {
	t.Parallel()

	if got := FormatTopCounts(nil, 5); got != "N/A" {
		t.Fatalf("empty=%q, want N/A", got)
	}
	m := map[string]int{"b": 3, "a": 3, "c": 5, "d": 1}
	want := "- c (5)\n- a (3)\n- b (3)"
	if got := FormatTopCounts(m, 3); got != want {
		t.Fatalf("got=%q, want %q", got, want)
	}
}

func TestBrowsingSummarizer_RendersPromptAndCallsPlainText(t *testing.T) {
	t.Parallel()

	var req provider.Request
	g := &fakeGateway{fn: func(r provider.Request) (provider.Completion, error) {
		req = r
		return provider.Completion{Text: "  You mostly read about Go.  "}, nil
	}}
	s := NewBrowsingSummarizer(g, DefaultSummaryTemplate(), zaptest.NewLogger(t))

	var records []RecordAnalysis
	for i := 0; i < 12; i++ {
		records = append(records, RecordAnalysis{Description: fmt.Sprintf("desc %02d", i)})
	}
	counts := AggregateCounts{
		Categories: map[string]int{"Tech": 4, "News": 2},
		Topics:     map[string]int{},
	}
	got, err := s.Summarize(context.Background(), counts, records)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "You mostly read about Go." {
		t.Fatalf("summary=%q", got)
	}
	if req.Schema != nil {
		t.Fatalf("summary request should be plain text")
	}
	user := lastUserMessage(req)
	for _, want := range []string{"- Tech (4)\n- News (2)", "Most frequent topics:\nN/A", "- desc 09"} {
		if !strings.Contains(user, want) {
			t.Fatalf("prompt missing %q:\n%s", want, user)
		}
	}
	if strings.Contains(user, "desc 10") {
		t.Fatalf("prompt has more than %d sample descriptions", MaxSampleDescriptions)
	}
}

func TestBrowsingSummarizer_EmptyOutputIsError(t *testing.T) {
	t.Parallel()

	g := &fakeGateway{fn: func(provider.Request) (provider.Completion, error) {
		return provider.Completion{Text: "   "}, nil
	}}
	s := NewBrowsingSummarizer(g, DefaultSummaryTemplate(), nil)
	if _, err := s.Summarize(context.Background(), AggregateCounts{}, nil); err == nil {
		t.Fatalf("expected error for empty summary")
	}
}

func TestWriteSummary(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "day", "2024-05-15_browsing_summary.md")
	if err := WriteSummary(p, "\nhello\n\n"); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "hello\n" {
		t.Fatalf("file=%q", string(b))
	}
}
