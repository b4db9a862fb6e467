// Package chunk splits a document's concatenated page text into overlapping
// passages while preserving which page and heading context each passage
// came from. Chunks are the unit of retrieval for the whole system.
package chunk

// Chunk size defaults, in characters. 800/150 keeps a passage inside a
// single rules topic while the overlap preserves sentences cut at the seam.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 150
)

// Metadata keys set on every chunk.
const (
	MetaSource     = "source"
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
	MetaChunkIndex = "chunk_index"
	MetaChunkCount = "chunk_count"
	MetaCrossPage  = "cross_page"
)

// pageSeparator joins consecutive page texts in the concatenation. It
// doubles as the highest-priority split point.
const pageSeparator = "\n\n"

// Page is one physical page of extracted text, already annotated with its
// heading context by the structure analyzer.
type Page struct {
	DocumentID string
	PageNumber int
	TotalPages int
	Text       string
	Metadata   map[string]string
}

// Chunk is a bounded passage of document text with provenance metadata.
// Immutable once created.
type Chunk struct {
	Text       string
	DocumentID string

	// OriginPage is the page on which the chunk's text begins. A chunk may
	// run past the end of that page into the next one.
	OriginPage int

	// Index is the chunk's 0-based position in the document's output
	// sequence; Count is the total number of chunks for the document.
	Index int
	Count int

	Metadata map[string]string
}
