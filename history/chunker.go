package history

import "fmt"

// ChunkOptions bounds chunk length and overlap, both measured in runes.
type ChunkOptions struct {
	MaxLength int
	Overlap   int
}

func (o ChunkOptions) Validate() error {
	if o.MaxLength <= 0 {
		return fmt.Errorf("%w: max content length must be > 0 (got %d)", ErrConfiguration, o.MaxLength)
	}
	if o.Overlap < 0 {
		return fmt.Errorf("%w: chunk overlap must be >= 0 (got %d)", ErrConfiguration, o.Overlap)
	}
	return nil
}

// SplitContent splits content into overlapping windows of at most maxLength runes.
// Content that fits is returned as a single chunk. Windows advance by maxLength-overlap,
// or by maxLength when the overlap would stall progress; the last window is the tail.
func SplitContent(content string, maxLength, overlap int) []string {
	runes := []rune(content)
	if maxLength <= 0 || len(runes) <= maxLength {
		return []string{content}
	}

	step := maxLength - overlap
	if step <= 0 {
		step = maxLength
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + maxLength
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// BuildChunks splits a record's content into indexed chunks.
func BuildChunks(rec HistoryRecord, opts ChunkOptions) []ContentChunk {
	parts := SplitContent(rec.Content, opts.MaxLength, opts.Overlap)
	out := make([]ContentChunk, len(parts))
	for i, p := range parts {
		out[i] = ContentChunk{
			RecordID:    rec.ID,
			Index:       i,
			Text:        p,
			TotalChunks: len(parts),
		}
	}
	return out
}
