package chunking

import (
	"strings"
	"unicode"
)

// Splitter cuts text into overlapping rune windows, preferring to end a
// window on whitespace.
type Splitter struct {
	ChunkSize int
	Overlap   int
	MaxChunks int
}

func NewSplitter(chunkSize, overlap, maxChunks int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	if maxChunks <= 0 {
		maxChunks = 32
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
		MaxChunks: maxChunks,
	}
}

// Split returns at most MaxChunks non-empty windows in source order.
func (s *Splitter) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.ChunkSize {
		return []string{string(runes)}
	}

	out := make([]string, 0, s.MaxChunks)
	for start := 0; start < len(runes) && len(out) < s.MaxChunks; {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.softBoundary(runes, start, end)
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		for next < end && next > 0 && !unicode.IsSpace(runes[next-1]) {
			next++
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// softBoundary moves end back to the last whitespace within the final fifth
// of the window.
func (s *Splitter) softBoundary(runes []rune, start, end int) int {
	floor := end - s.ChunkSize/5
	if floor <= start {
		return end
	}
	for i := end; i > floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
