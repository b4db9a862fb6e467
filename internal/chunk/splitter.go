package chunk

import "strings"

// defaultSeparators are tried in order when looking for a cut point:
// paragraph break, line break, sentence end, then word boundary. A hard cut
// at the size limit is the last resort.
var defaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// piece is a split fragment with its start offset in the original text.
// Offsets are what let the chunker attribute a fragment to a page.
type piece struct {
	text  string
	start int
}

// splitter is a length-bounded text splitter with overlap. It prefers to
// cut on the separators above, searching each window back to front, and
// only falls back to a hard cut when no separator lands in range.
type splitter struct {
	size       int
	overlap    int
	separators []string
}

func newSplitter(size, overlap int) splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return splitter{size: size, overlap: overlap, separators: defaultSeparators}
}

// split cuts text into pieces of at most size characters, consecutive
// pieces sharing roughly overlap characters. Piece start offsets are
// strictly increasing.
func (s splitter) split(text string) []piece {
	if text == "" {
		return nil
	}

	var pieces []piece
	pos := 0
	for pos < len(text) {
		remaining := len(text) - pos
		if remaining <= s.size {
			pieces = append(pieces, piece{text: text[pos:], start: pos})
			break
		}

		window := text[pos : pos+s.size]
		cut := s.findCut(window)
		pieces = append(pieces, piece{text: text[pos : pos+cut], start: pos})

		next := pos + cut - s.overlap
		if next <= pos {
			next = pos + cut
		}
		pos = next
	}
	return pieces
}

// findCut returns the window-relative end offset for the next piece.
// The last occurrence of the highest-priority separator wins, provided it
// leaves a non-trivial piece behind; otherwise the window is cut hard.
func (s splitter) findCut(window string) int {
	minCut := s.size / 4
	for _, sep := range s.separators {
		idx := strings.LastIndex(window, sep)
		if idx >= minCut {
			return idx + len(sep)
		}
	}
	return len(window)
}
