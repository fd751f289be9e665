package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/theimaginaryfoundation/browse-o-bot/history/fileutils"
)

const DateLayout = "2006-01-02"

// RunPaths are the per-day artifact locations under an output directory.
type RunPaths struct {
	Dir      string
	Analysis string
	Counts   string
	Summary  string
}

// PathsFor returns the artifact paths for day under outDir: <out>/<date>/<date>_*.
func PathsFor(outDir string, day time.Time) RunPaths {
	return PathsForDate(outDir, day.Format(DateLayout))
}

func PathsForDate(outDir, date string) RunPaths {
	dir := filepath.Join(outDir, date)
	return RunPaths{
		Dir:      dir,
		Analysis: filepath.Join(dir, date+"_raw_analysis.md"),
		Counts:   filepath.Join(dir, date+"_extracted_data.json"),
		Summary:  filepath.Join(dir, date+"_browsing_summary.md"),
	}
}

var leadingDate = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`)

// DateFromFilename extracts the leading YYYY-MM-DD of a file name, if any.
func DateFromFilename(path string) (string, bool) {
	m := leadingDate.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// CountRecords re-derives aggregate counts from parsed analysis records.
func CountRecords(records []RecordAnalysis) AggregateCounts {
	agg := NewAggregator()
	for _, r := range records {
		agg.Add(r)
	}
	return agg.Counts()
}

// WriteCounts writes counts as indented JSON, atomically.
func WriteCounts(path string, c AggregateCounts) error {
	if c.Categories == nil {
		c.Categories = map[string]int{}
	}
	if c.Topics == nil {
		c.Topics = map[string]int{}
	}
	if err := fileutils.WriteJSONFileAtomic(path, c, true); err != nil {
		return fmt.Errorf("WriteCounts: %w", err)
	}
	return nil
}

// ReadCounts loads a counts file. A missing file is ErrInputNotFound.
func ReadCounts(path string) (AggregateCounts, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return AggregateCounts{}, fmt.Errorf("%w: counts file %s", ErrInputNotFound, path)
		}
		return AggregateCounts{}, fmt.Errorf("ReadCounts: read file: %w", err)
	}
	var c AggregateCounts
	if err := json.Unmarshal(b, &c); err != nil {
		return AggregateCounts{}, fmt.Errorf("ReadCounts: unmarshal: %w", err)
	}
	return c, nil
}

// ExtractCounts parses an analysis file and writes its counts to countsPath.
func ExtractCounts(analysisPath, countsPath string) (AggregateCounts, error) {
	records, err := ReadAnalysisFile(analysisPath)
	if err != nil {
		return AggregateCounts{}, err
	}
	c := CountRecords(records)
	if err := WriteCounts(countsPath, c); err != nil {
		return AggregateCounts{}, err
	}
	return c, nil
}
