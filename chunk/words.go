package chunk

import (
	"strings"
	"unicode"
)

// WordSplitter splits text after every ChunkSize words.
// Segments are slices of the original text, so line breaks inside a segment survive.
type WordSplitter struct {
	ChunkSize int
}

// SplitText implements textsplitter.TextSplitter.
func (s *WordSplitter) SplitText(text string) ([]string, error) {
	size := s.ChunkSize
	if size < 1 {
		size = DefaultChunkSize
	}

	var (
		segments []string
		start    = -1
		words    = 0
		inWord   = false
	)
	for i, r := range text {
		space := unicode.IsSpace(r)
		if !space && !inWord {
			if words == size {
				segments = append(segments, strings.TrimSpace(text[start:i]))
				start, words = -1, 0
			}
			if start == -1 {
				start = i
			}
			words++
		}
		inWord = !space
	}
	if start != -1 {
		segments = append(segments, strings.TrimSpace(text[start:]))
	}
	return segments, nil
}
