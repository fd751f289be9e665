package history

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func TestSplitContent_FitsIsSingleChunk(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "short", strings.Repeat("x", 4000)} {
		got := SplitContent(s, 4000, 200)
		if len(got) != 1 || got[0] != s {
			t.Fatalf("len(s)=%d: chunks=%d, want exactly the input", len(s), len(got))
		}
	}
}

func TestSplitContent_OverlappingWindows(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("a", 3800) + strings.Repeat("b", 3800) + strings.Repeat("c", 1400)
	got := SplitContent(content, 4000, 200)
	if len(got) != 3 {
		t.Fatalf("chunks=%d, want 3", len(got))
	}
	want := []string{content[0:4000], content[3800:7800], content[7600:9000]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("chunks mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitContent_OverlapNotSmallerThanMaxStepsFullWindow(t *testing.T) {
	t.Parallel()

	got := SplitContent("abcdefghij", 4, 4)
	want := []string{"abcd", "efgh", "ij"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("chunks mismatch (-want +got):\n%s", diff)
	}
	got = SplitContent("abcdefghij", 4, 9)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("overlap>max mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitContent_CoversEveryRune(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("0123456789", 137)
	for _, tc := range []struct{ max, overlap int }{{100, 0}, {100, 10}, {64, 63}, {7, 3}, {1000, 999}} {
		chunks := SplitContent(content, tc.max, tc.overlap)
		step := tc.max - tc.overlap
		if step <= 0 {
			step = tc.max
		}
		covered := 0
		for i, c := range chunks {
			start := i * step
			if !strings.HasPrefix(content[start:], c) {
				t.Fatalf("max=%d overlap=%d: chunk %d does not start at %d", tc.max, tc.overlap, i, start)
			}
			if len(c) > tc.max {
				t.Fatalf("chunk %d len=%d > max %d", i, len(c), tc.max)
			}
			if end := start + len(c); end > covered {
				covered = end
			}
		}
		if covered != len(content) {
			t.Fatalf("max=%d overlap=%d: covered=%d, want %d", tc.max, tc.overlap, covered, len(content))
		}
		again := SplitContent(content, tc.max, tc.overlap)
		if len(again) != len(chunks) {
			t.Fatalf("chunk count not deterministic: %d vs %d", len(again), len(chunks))
		}
	}
}

func TestSplitContent_DoesNotSplitRunes(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("héllo wörld ", 50)
	for _, c := range SplitContent(content, 33, 5) {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk is not valid UTF-8: %q", c)
		}
		if n := utf8.RuneCountInString(c); n > 33 {
			t.Fatalf("chunk runes=%d, want <= 33", n)
		}
	}
}

func TestBuildChunks(t *testing.T) {
	t.Parallel()

	rec := HistoryRecord{ID: 42, Content: "abcdefghij"}
	got := BuildChunks(rec, ChunkOptions{MaxLength: 4, Overlap: 1})
	want := []ContentChunk{
		{RecordID: 42, Index: 0, Text: "abcd", TotalChunks: 3},
		{RecordID: 42, Index: 1, Text: "defg", TotalChunks: 3},
		{RecordID: 42, Index: 2, Text: "ghij", TotalChunks: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("chunks mismatch (-want +got):\n%s", diff)
	}
}

func TestChunkOptions_Validate(t *testing.T) {
	t.Parallel()

	if err := (ChunkOptions{MaxLength: 4000, Overlap: 200}).Validate(); err != nil {
		t.Fatalf("valid options: %v", err)
	}
	for _, o := range []ChunkOptions{{MaxLength: 0}, {MaxLength: -1}, {MaxLength: 10, Overlap: -1}} {
		if err := o.Validate(); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("%+v: err=%v, want ErrConfiguration", o, err)
		}
	}
}
