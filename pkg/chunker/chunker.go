// Package chunker splits extracted document text into overlapping
// fixed-size passages with stable rune offsets. Splitting is a pure
// function of (text, options), which is what keeps chunk fingerprints
// stable across re-ingestion.
package chunker

import (
	"errors"
	"strings"
)

// ErrInvalidConfig is returned when the size/overlap pair cannot make
// forward progress over the input.
var ErrInvalidConfig = errors.New("chunker: invalid chunk config")

type Options struct {
	Size    int // target chunk size in runes
	Overlap int // runes shared between consecutive chunks
}

func DefaultOptions() Options {
	return Options{Size: 800, Overlap: 80}
}

// TextChunk is one passage of the input. Start and End are rune offsets
// into the original text; End is exclusive.
type TextChunk struct {
	Content string
	Index   int
	Start   int
	End     int
}

func (o Options) validate() error {
	if o.Size <= 0 || o.Overlap < 0 || o.Overlap >= o.Size {
		return ErrInvalidConfig
	}
	return nil
}

// Split cuts text into overlapping windows of opts.Size runes, advancing
// by opts.Size-opts.Overlap each step, so every rune falls in at least
// one window. Whitespace-only windows are dropped; Index stays
// contiguous over the emitted chunks.
func Split(text string, opts Options) ([]TextChunk, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	stride := opts.Size - opts.Overlap

	var chunks []TextChunk
	idx := 0
	for start := 0; start < len(runes); start += stride {
		end := start + opts.Size
		if end > len(runes) {
			end = len(runes)
		}

		content := string(runes[start:end])
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, TextChunk{
				Content: content,
				Index:   idx,
				Start:   start,
				End:     end,
			})
			idx++
		}

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}
