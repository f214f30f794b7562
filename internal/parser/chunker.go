package parser

import (
	"strings"
	"unicode/utf8"

	"emprenix/internal/models"
)

const (
	DefaultChunkSize    = 1000 // characters
	DefaultChunkOverlap = 200  // characters
	DefaultSeparator    = "\n"
)

// SplitText cuts text into overlapping chunks of at most size characters.
//
// Boundaries fall on separator whenever possible: the text is split on the
// separator and the pieces are merged back while they fit. A piece that is
// longer than size on its own is cut into fixed windows of size characters,
// each starting size-overlap characters after the previous one. After a chunk
// is emitted, its trailing pieces totalling at most overlap characters are
// carried into the next chunk.
func SplitText(text string, size, overlap int, separator string) []models.Chunk {
	size, overlap = normalizeChunkParams(size, overlap)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var pieces []string
	for _, piece := range splitOnSeparator(text, separator) {
		if runeLen(piece) > size {
			pieces = append(pieces, fixedWindows(piece, size, overlap)...)
			continue
		}
		pieces = append(pieces, piece)
	}

	var chunks []models.Chunk
	emit := func(current []string) {
		content := strings.TrimSpace(strings.Join(current, separator))
		if content == "" {
			return
		}
		chunks = append(chunks, models.Chunk{Index: len(chunks), Content: content})
	}

	sepLen := runeLen(separator)
	var current []string
	total := 0
	for _, piece := range pieces {
		pieceLen := runeLen(piece)
		if len(current) > 0 && total+sepLen+pieceLen > size {
			emit(current)
			// keep a tail of at most overlap characters that still leaves room for piece
			for len(current) > 0 && (total > overlap || total+sepLen+pieceLen > size) {
				total -= runeLen(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, piece)
		total += pieceLen
	}
	if len(current) > 0 {
		emit(current)
	}

	return chunks
}

func normalizeChunkParams(size, overlap int) (int, int) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}
	return size, overlap
}

func splitOnSeparator(text, separator string) []string {
	var parts []string
	if separator == "" {
		parts = []string{text}
	} else {
		parts = strings.Split(text, separator)
	}
	pieces := parts[:0]
	for _, p := range parts {
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

// fixedWindows is the length fallback for a piece with no usable separator.
func fixedWindows(piece string, size, overlap int) []string {
	runes := []rune(piece)
	step := size - overlap
	var windows []string
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		windows = append(windows, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return windows
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
