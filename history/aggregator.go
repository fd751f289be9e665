package history

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Aggregator counts categories and topics across analyzed records.
// Topics are matched case-insensitively and keyed by the title-cased form of the
// first variant seen. An Aggregator is not safe for concurrent use; give each worker
// its own and Merge them.
type Aggregator struct {
	categories map[string]int
	topics     map[string]int
	// topicKeys maps folded topic -> display key in topics.
	topicKeys map[string]string

	fold  cases.Caser
	title cases.Caser
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		categories: make(map[string]int),
		topics:     make(map[string]int),
		topicKeys:  make(map[string]string),
		fold:       cases.Fold(),
		title:      cases.Title(language.Und),
	}
}

// Add folds one record into the counts. Records without a description are ignored.
func (a *Aggregator) Add(r RecordAnalysis) {
	if !r.Analyzed() {
		return
	}
	a.AddFields(r.Category, r.Topics)
}

// AddFields counts a category (if non-empty) and each non-empty topic.
func (a *Aggregator) AddFields(category string, topics []string) {
	if c := strings.TrimSpace(category); c != "" {
		a.categories[c]++
	}
	for _, t := range topics {
		a.addTopic(t, 1)
	}
}

func (a *Aggregator) addTopic(topic string, n int) {
	t := strings.TrimSpace(topic)
	if t == "" || n <= 0 {
		return
	}
	folded := a.fold.String(t)
	key, ok := a.topicKeys[folded]
	if !ok {
		key = a.title.String(t)
		a.topicKeys[folded] = key
	}
	a.topics[key] += n
}

// Merge adds other's counts into a. Topic keys already present in a win.
func (a *Aggregator) Merge(other *Aggregator) {
	if other == nil {
		return
	}
	for c, n := range other.categories {
		a.categories[c] += n
	}
	for t, n := range other.topics {
		a.addTopic(t, n)
	}
}

// Counts returns a snapshot of the current counts.
func (a *Aggregator) Counts() AggregateCounts {
	out := AggregateCounts{
		Categories: make(map[string]int, len(a.categories)),
		Topics:     make(map[string]int, len(a.topics)),
	}
	for k, v := range a.categories {
		out.Categories[k] = v
	}
	for k, v := range a.topics {
		out.Topics[k] = v
	}
	return out
}
