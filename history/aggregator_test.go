package history

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAggregator_CaseVariantsShareFirstDisplayForm(t *testing.T) {
	t.Parallel()

	agg := NewAggregator()
	agg.Add(RecordAnalysis{Description: "d", Category: "Tech", Topics: []string{"AI", "machine learning"}})
	agg.Add(RecordAnalysis{Description: "d", Category: "Tech", Topics: []string{"ai", " Machine Learning ", ""}})
	agg.Add(RecordAnalysis{Description: "d", Category: "News"})

	want := AggregateCounts{
		Categories: map[string]int{"Tech": 2, "News": 1},
		Topics:     map[string]int{"Ai": 2, "Machine Learning": 2},
	}
	if diff := cmp.Diff(want, agg.Counts()); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregator_IgnoresUnanalyzedRecordsAndEmptyCategory(t *testing.T) {
	t.Parallel()

	agg := NewAggregator()
	agg.Add(RecordAnalysis{Category: "Tech", Topics: []string{"x"}})
	agg.Add(RecordAnalysis{Description: "d", Topics: []string{"x"}})

	got := agg.Counts()
	if len(got.Categories) != 0 {
		t.Fatalf("categories=%v, want none", got.Categories)
	}
	if got.Topics["X"] != 1 {
		t.Fatalf("topics=%v, want X:1", got.Topics)
	}
}

func TestAggregator_Merge(t *testing.T) {
	t.Parallel()

	a := NewAggregator()
	a.Add(RecordAnalysis{Description: "d", Category: "Tech", Topics: []string{"golang"}})
	b := NewAggregator()
	b.Add(RecordAnalysis{Description: "d", Category: "Tech", Topics: []string{"GOLANG", "rust"}})
	b.Add(RecordAnalysis{Description: "d", Category: "Games"})

	a.Merge(b)
	a.Merge(nil)
	want := AggregateCounts{
		Categories: map[string]int{"Tech": 2, "Games": 1},
		Topics:     map[string]int{"Golang": 2, "Rust": 1},
	}
	if diff := cmp.Diff(want, a.Counts()); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregator_CountsIsSnapshot(t *testing.T) {
	t.Parallel()

	agg := NewAggregator()
	agg.Add(RecordAnalysis{Description: "d", Category: "Tech"})
	snap := agg.Counts()
	agg.Add(RecordAnalysis{Description: "d", Category: "Tech"})
	if snap.Categories["Tech"] != 1 {
		t.Fatalf("snapshot changed: %v", snap.Categories)
	}
}
