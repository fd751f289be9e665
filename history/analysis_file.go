package history

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/theimaginaryfoundation/browse-o-bot/history/fileutils"
)

const (
	blockSeparator = "\n---\n\n"
	topicSeparator = ", "
)

// Sink receives each analyzed record.
type Sink interface {
	Write(r RecordAnalysis) error
}

// AnalysisWriter appends one text block per record to the day's analysis file.
type AnalysisWriter struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// CreateAnalysisWriter creates (or truncates) path and its parent directory.
func CreateAnalysisWriter(path string) (*AnalysisWriter, error) {
	if path == "" {
		return nil, errors.New("CreateAnalysisWriter: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("CreateAnalysisWriter: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("CreateAnalysisWriter: open: %w", err)
	}
	return &AnalysisWriter{path: path, f: f}, nil
}

func (w *AnalysisWriter) Path() string { return w.path }

// Write appends r as a single block. Records without a description are rejected.
func (w *AnalysisWriter) Write(r RecordAnalysis) error {
	if !r.Analyzed() {
		return fmt.Errorf("AnalysisWriter.Write: record %d has no description", r.RecordID)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return errors.New("AnalysisWriter.Write: writer is closed")
	}
	if _, err := io.WriteString(w.f, FormatAnalysisBlock(r)); err != nil {
		return fmt.Errorf("AnalysisWriter.Write: %w", err)
	}
	return nil
}

func (w *AnalysisWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// FormatAnalysisBlock renders one record in its file form (see FileForm).
func FormatAnalysisBlock(r RecordAnalysis) string {
	r = FileForm(r)
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", r.Title)
	fmt.Fprintf(&b, "URL: %s\n", r.URL)
	fmt.Fprintf(&b, "Description: %s\n", r.Description)
	if r.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", r.Category)
	}
	if len(r.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(r.Topics, topicSeparator))
	}
	b.WriteString(blockSeparator)
	return b.String()
}

// FileForm returns r as ParseAnalysis reads it back: every field on one line, and commas
// inside a topic replaced with semicolons so the topic list splits the same way.
func FileForm(r RecordAnalysis) RecordAnalysis {
	r.Title = fileutils.SingleLine(r.Title)
	r.URL = fileutils.SingleLine(r.URL)
	r.Description = fileutils.SingleLine(r.Description)
	r.Category = fileutils.SingleLine(r.Category)
	if len(r.Topics) > 0 {
		topics := make([]string, 0, len(r.Topics))
		for _, t := range r.Topics {
			if t = strings.ReplaceAll(fileutils.SingleLine(t), ",", ";"); t != "" {
				topics = append(topics, t)
			}
		}
		r.Topics = topics
	}
	return r
}

// ParseAnalysis reads blocks back from an analysis file. Field prefixes are matched
// case-insensitively; record ids are not stored and come back as zero.
func ParseAnalysis(r io.Reader) ([]RecordAnalysis, error) {
	var out []RecordAnalysis
	var cur RecordAnalysis
	started := false
	flush := func() {
		if started && cur.Description != "" {
			out = append(out, cur)
		}
		cur = RecordAnalysis{}
		started = false
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "---" {
			flush()
			continue
		}
		name, value, ok := splitField(line)
		if !ok {
			continue
		}
		switch name {
		case "title":
			if started && cur.Title != "" {
				flush()
			}
			cur.Title = value
		case "url":
			cur.URL = value
		case "description":
			cur.Description = value
		case "category":
			cur.Category = value
		case "topics":
			cur.Topics = splitTopics(value)
		default:
			continue
		}
		started = true
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ParseAnalysis: scan: %w", err)
	}
	flush()
	return out, nil
}

// ReadAnalysisFile opens and parses path. A missing file is ErrInputNotFound.
func ReadAnalysisFile(path string) ([]RecordAnalysis, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: analysis file %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("ReadAnalysisFile: open: %w", err)
	}
	defer f.Close()
	return ParseAnalysis(f)
}

var analysisFields = []string{"title", "url", "description", "category", "topics"}

func splitField(line string) (string, string, bool) {
	i := strings.IndexByte(line, ':')
	if i <= 0 {
		return "", "", false
	}
	name := strings.ToLower(line[:i])
	for _, f := range analysisFields {
		if name == f {
			return name, strings.TrimSpace(line[i+1:]), true
		}
	}
	return "", "", false
}

func splitTopics(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
