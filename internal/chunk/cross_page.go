package chunk

import (
	"sort"
	"strconv"
	"strings"
)

// CrossPageChunker splits one document's pages into overlapping passages.
// Page texts are concatenated before splitting so passages may cross page
// boundaries; each passage is attributed to the page it starts on. The
// chunker holds no per-document state and is safe to reuse.
type CrossPageChunker struct {
	Size    int
	Overlap int
}

// NewCrossPageChunker returns a chunker with the default size and overlap.
func NewCrossPageChunker() *CrossPageChunker {
	return &CrossPageChunker{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap}
}

// ChunkDocument splits the given pages, which must already be sorted by
// page number, into the document's flat chunk sequence. Pages with empty
// text are ignored. Returns nil when nothing remains to index.
func (c *CrossPageChunker) ChunkDocument(pages []Page) []*Chunk {
	kept := make([]Page, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return nil
	}

	// Concatenate page texts, recording each page's start offset.
	var sb strings.Builder
	starts := make([]int, len(kept))
	for i, p := range kept {
		if i > 0 {
			sb.WriteString(pageSeparator)
		}
		starts[i] = sb.Len()
		sb.WriteString(p.Text)
	}
	text := sb.String()

	pieces := newSplitter(c.Size, c.Overlap).split(text)

	chunks := make([]*Chunk, 0, len(pieces))
	for _, pc := range pieces {
		trimmed := strings.TrimSpace(pc.text)
		if trimmed == "" {
			continue
		}
		origin := kept[originPageIndex(starts, pc.start)]

		md := make(map[string]string, len(origin.Metadata)+6)
		for k, v := range origin.Metadata {
			md[k] = v
		}
		md[MetaSource] = origin.DocumentID
		md[MetaPage] = strconv.Itoa(origin.PageNumber)
		md[MetaTotalPages] = strconv.Itoa(origin.TotalPages)
		md[MetaCrossPage] = "true"

		chunks = append(chunks, &Chunk{
			Text:       trimmed,
			DocumentID: origin.DocumentID,
			OriginPage: origin.PageNumber,
			Metadata:   md,
		})
	}

	// Index and count are only known once empty pieces are dropped.
	for i, ch := range chunks {
		ch.Index = i
		ch.Count = len(chunks)
		ch.Metadata[MetaChunkIndex] = strconv.Itoa(i)
		ch.Metadata[MetaChunkCount] = strconv.Itoa(len(chunks))
	}
	return chunks
}

// originPageIndex returns the index of the page whose start offset is the
// largest one not exceeding the chunk's start offset.
func originPageIndex(starts []int, offset int) int {
	i := sort.SearchInts(starts, offset+1) - 1
	if i < 0 {
		i = 0
	}
	return i
}
