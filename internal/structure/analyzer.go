// Package structure infers a document's heading hierarchy from per-span
// font statistics. Extracted PDF text carries no explicit outline, so the
// analyzer watches the font sizes a document actually uses, clusters them,
// and maps the clusters to heading levels 1..6.
package structure

import (
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMinPagesSeen is the number of pages a font size must appear on
	// before it participates in heading-level clustering. Sizes used on a
	// single page (drop caps, cover art) are noise.
	DefaultMinPagesSeen = 2

	// MaxHeadingLevels caps the heading hierarchy depth.
	MaxHeadingLevels = 6

	// sizeClusterGap is the point-size gap that starts a new cluster.
	sizeClusterGap = 1.0

	// maxHeadingLength is the character length above which non-level-1 text
	// is assumed to be body copy rather than a heading.
	maxHeadingLength = 100
)

// FontSpan is one run of text sharing a single font style, as reported by
// the PDF extraction collaborator.
type FontSpan struct {
	Font   string  `json:"font"`
	Size   float64 `json:"size"`
	Bold   bool    `json:"bold"`
	Italic bool    `json:"italic"`
	Text   string  `json:"text"`
}

// styleKey identifies a distinct (font, size, flags) combination.
type styleKey struct {
	font   string
	size   float64
	bold   bool
	italic bool
}

// styleStat accumulates how often and on which pages a style appears.
type styleStat struct {
	spans int
	pages map[int]struct{}
}

// Analyzer maintains running font statistics for a single document and
// classifies spans as headings once enough pages have been sampled.
// It is not safe for concurrent use; one analyzer serves one ingest stream.
type Analyzer struct {
	minPages   int
	documentID string

	pagesSeen int
	stats     map[styleKey]*styleStat

	// sizeLevel maps a font size to its heading level (1..6).
	// Rebuilt after every observed page once the sampling threshold is met.
	sizeLevel map[float64]int

	path []pathEntry
}

type pathEntry struct {
	level int
	text  string
}

// NewAnalyzer creates an analyzer with the default sampling threshold.
func NewAnalyzer() *Analyzer {
	return NewAnalyzerWithMinPages(DefaultMinPagesSeen)
}

// NewAnalyzerWithMinPages creates an analyzer that requires a size to be
// seen on at least minPages pages before it can become a heading level.
func NewAnalyzerWithMinPages(minPages int) *Analyzer {
	if minPages < 1 {
		minPages = DefaultMinPagesSeen
	}
	return &Analyzer{
		minPages: minPages,
		stats:    make(map[styleKey]*styleStat),
	}
}

// ResetForDocument clears page statistics and the heading path for a new
// document. The size-to-level mapping learned so far is kept until the new
// document's own sampling pass replaces it, so early pages of the next
// document still classify against a sane baseline.
func (a *Analyzer) ResetForDocument(id string) {
	a.documentID = id
	a.pagesSeen = 0
	a.stats = make(map[styleKey]*styleStat)
	a.path = nil
}

// DocumentID returns the document the analyzer is currently scanning.
func (a *Analyzer) DocumentID() string { return a.documentID }

// Ready reports whether the sampling pass has produced a size-to-level
// mapping. Before this, Classify treats everything as body text.
func (a *Analyzer) Ready() bool { return len(a.sizeLevel) > 0 }

// ObservePage feeds one page of font spans into the running statistics.
// Pages must be observed in page order. Once the sampling threshold is met
// the size clusters are recomputed after every page.
func (a *Analyzer) ObservePage(pageNumber int, spans []FontSpan) {
	a.pagesSeen++
	for _, s := range spans {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		key := styleKey{font: s.Font, size: s.Size, bold: s.Bold, italic: s.Italic}
		st, ok := a.stats[key]
		if !ok {
			st = &styleStat{pages: make(map[int]struct{})}
			a.stats[key] = st
		}
		st.spans++
		st.pages[pageNumber] = struct{}{}
	}
	if a.pagesSeen >= a.minPages {
		a.rebuildLevels()
	}
}

// rebuildLevels clusters the qualifying font sizes into at most six heading
// levels. Sizes are sorted descending; a gap larger than sizeClusterGap
// starts a new cluster; level 1 is the largest cluster.
func (a *Analyzer) rebuildLevels() {
	pagesBySize := make(map[float64]map[int]struct{})
	for key, st := range a.stats {
		set, ok := pagesBySize[key.size]
		if !ok {
			set = make(map[int]struct{})
			pagesBySize[key.size] = set
		}
		for p := range st.pages {
			set[p] = struct{}{}
		}
	}

	sizes := make([]float64, 0, len(pagesBySize))
	for size, pages := range pagesBySize {
		if len(pages) >= a.minPages {
			sizes = append(sizes, size)
		}
	}
	if len(sizes) == 0 {
		return
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sizes)))

	levels := make(map[float64]int, len(sizes))
	level := 1
	for i, size := range sizes {
		if i > 0 && sizes[i-1]-size > sizeClusterGap {
			level++
		}
		if level > MaxHeadingLevels {
			break
		}
		levels[size] = level
	}
	a.sizeLevel = levels
}

// Classify decides whether a span is a heading and at which level.
// Level-1 sizes are always headings. Lower levels additionally require the
// span to look like a heading: bold, short, or ending with a colon.
func (a *Analyzer) Classify(text string, size float64, bold bool) (bool, int) {
	level, ok := a.sizeLevel[size]
	if !ok || level < 1 {
		return false, 0
	}
	if level == 1 {
		return true, 1
	}
	trimmed := strings.TrimSpace(text)
	if bold || utf8.RuneCountInString(trimmed) < maxHeadingLength || strings.HasSuffix(trimmed, ":") {
		return true, level
	}
	return false, 0
}

// UpdateContext pushes a heading onto the path stack, truncating the stack
// to level-1 entries first so a new section closes any deeper nesting.
func (a *Analyzer) UpdateContext(text string, level int) {
	if level < 1 {
		return
	}
	if level > MaxHeadingLevels {
		level = MaxHeadingLevels
	}
	if len(a.path) > level-1 {
		a.path = a.path[:level-1]
	}
	a.path = append(a.path, pathEntry{level: level, text: strings.TrimSpace(text)})
}

// AnnotatePage observes a page's spans and threads every heading found on
// it through the path stack, returning the context in effect at the end of
// the page. This is the per-page entry point used by the ingest pipeline.
func (a *Analyzer) AnnotatePage(pageNumber int, spans []FontSpan) Context {
	a.ObservePage(pageNumber, spans)
	for _, s := range spans {
		if isHeading, level := a.Classify(s.Text, s.Size, s.Bold); isHeading {
			a.UpdateContext(s.Text, level)
		}
	}
	return a.CurrentContext()
}
