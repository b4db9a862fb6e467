package async

import (
	"sync"
	"time"
)

// RebuildStage is the current phase of a rebuild run.
type RebuildStage string

const (
	StageStaging   RebuildStage = "staging"
	StageEmbedding RebuildStage = "embedding"
	StageIndexing  RebuildStage = "indexing"
	StageSwapping  RebuildStage = "swapping"
	StageDone      RebuildStage = "done"
)

// RebuildSnapshot is an immutable copy of rebuild progress.
type RebuildSnapshot struct {
	Stage         string  `json:"stage"`
	DocsTotal     int     `json:"docs_total"`
	DocsProcessed int     `json:"docs_processed"`
	ChunksTotal   int     `json:"chunks_total"`
	ChunksIndexed int     `json:"chunks_indexed"`
	ProgressPct   float64 `json:"progress_pct"`
	ElapsedSec    int     `json:"elapsed_seconds"`
	LastError     string  `json:"last_error,omitempty"`
}

// RebuildProgress tracks one run's progress for status queries.
type RebuildProgress struct {
	mu sync.RWMutex

	stage         RebuildStage
	docsTotal     int
	docsProcessed int
	chunksTotal   int
	chunksIndexed int
	startTime     time.Time
	lastError     string
}

// NewRebuildProgress creates a tracker starting in the staging stage.
func NewRebuildProgress() *RebuildProgress {
	return &RebuildProgress{stage: StageStaging, startTime: time.Now()}
}

// SetStage moves to a new stage.
func (p *RebuildProgress) SetStage(stage RebuildStage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = stage
}

// SetDocsTotal records how many documents the run covers.
func (p *RebuildProgress) SetDocsTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docsTotal = total
}

// DocDone increments the processed-document counter.
func (p *RebuildProgress) DocDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docsProcessed++
}

// AddChunks adds to the chunk totals.
func (p *RebuildProgress) AddChunks(total, indexed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunksTotal += total
	p.chunksIndexed += indexed
}

// SetError records the most recent non-fatal error.
func (p *RebuildProgress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastError = message
}

// Snapshot returns a copy of the current state.
func (p *RebuildProgress) Snapshot() RebuildSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var pct float64
	if p.docsTotal > 0 {
		pct = float64(p.docsProcessed) / float64(p.docsTotal) * 100.0
	}
	return RebuildSnapshot{
		Stage:         string(p.stage),
		DocsTotal:     p.docsTotal,
		DocsProcessed: p.docsProcessed,
		ChunksTotal:   p.chunksTotal,
		ChunksIndexed: p.chunksIndexed,
		ProgressPct:   pct,
		ElapsedSec:    int(time.Since(p.startTime).Seconds()),
		LastError:     p.lastError,
	}
}
