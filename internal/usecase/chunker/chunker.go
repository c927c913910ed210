// Package chunker splits documents into fixed-size overlapping windows.
package chunker

import (
	"fmt"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
)

// Config is the window length and the overlap between consecutive windows,
// both in characters.
type Config struct {
	Size    int
	Overlap int
}

// Validate enforces 0 <= Overlap < Size.
func (c Config) Validate() error {
	if c.Size <= 0 || c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("size=%d overlap=%d: %w", c.Size, c.Overlap, domain.ErrInvalidChunkConfig)
	}
	return nil
}

// Split chunks every document in order. Chunk i of a document starts at
// i*(Size-Overlap); the last chunk ends at the end of the text.
func Split(docs []domain.Document, cfg Config) ([]domain.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var out []domain.Chunk
	for _, d := range docs {
		out = appendChunks(out, d, cfg)
	}
	return out, nil
}

// Count returns how many chunks a text of n characters yields.
func Count(n int, cfg Config) int {
	switch {
	case n == 0:
		return 0
	case n <= cfg.Size:
		return 1
	}
	step := cfg.Size - cfg.Overlap
	return (n - cfg.Overlap + step - 1) / step
}

func appendChunks(out []domain.Chunk, d domain.Document, cfg Config) []domain.Chunk {
	runes := []rune(d.RawText)
	n := len(runes)
	step := cfg.Size - cfg.Overlap

	for start := 0; start < n; start += step {
		end := min(start+cfg.Size, n)
		out = append(out, domain.Chunk{
			Text:     string(runes[start:end]),
			SourceID: d.SourceID,
			Offset:   start,
		})
		if end == n {
			break
		}
	}
	return out
}
