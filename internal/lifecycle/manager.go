package lifecycle

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loreseek/loreseek/internal/async"
	"github.com/loreseek/loreseek/internal/blob"
	"github.com/loreseek/loreseek/internal/embed"
	"github.com/loreseek/loreseek/internal/errors"
	"github.com/loreseek/loreseek/internal/ingest"
	"github.com/loreseek/loreseek/internal/store"
)

// RunStatus is the state of a rebuild run.
type RunStatus string

const (
	StatusStaging    RunStatus = "staging"
	StatusSwapping   RunStatus = "swapping"
	StatusCommitted  RunStatus = "committed"
	StatusRolledBack RunStatus = "rolled_back"

	// StatusNeedsReconciliation marks a run whose alias swap outcome is
	// unknown. Nothing is deleted; an operator must resolve it.
	StatusNeedsReconciliation RunStatus = "needs_reconciliation"
)

// LiveSuffix builds the live alias name for a base collection name.
const LiveSuffix = "_live"

// LiveAlias returns the stable alias queries bind to for a base.
func LiveAlias(base string) string { return base + LiveSuffix }

// Blob key prefixes for operational state.
const (
	reconcileKeyPrefix = "reconcile/"
	historyKeyPrefix   = "history/"
)

// historyLimit caps retained run records per base.
const historyLimit = 20

// RunResult is the outcome of one rebuild run.
type RunResult struct {
	RunID         string    `json:"run_id"`
	Bases         []string  `json:"bases"`
	Status        RunStatus `json:"status"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	DocsProcessed int       `json:"docs_processed"`
	DocsFailed    int       `json:"docs_failed"`
	ChunksIndexed int       `json:"chunks_indexed"`
	Error         string    `json:"error,omitempty"`
}

// Config tunes the lifecycle manager.
type Config struct {
	// AdminTimeout bounds administrative index-service calls (alias
	// swap, collection deletion).
	AdminTimeout time.Duration
}

// DefaultConfig returns the standard lifecycle configuration.
func DefaultConfig() Config {
	return Config{AdminTimeout: 60 * time.Second}
}

// Manager coordinates rebuild runs. At most one run per base name may
// be staging or swapping at a time; runs for disjoint bases proceed
// concurrently.
type Manager struct {
	svc      store.IndexService
	pipeline *Pipeline
	embedder embed.Embedder
	sources  map[string]ingest.DocumentSource
	blobs    blob.Store
	sink     async.Sink
	cfg      Config

	mu       sync.Mutex
	active   map[string]bool
	progress map[string]*async.RebuildProgress
}

// NewManager creates a lifecycle manager. sources maps each base
// collection name to the document source that feeds it.
func NewManager(svc store.IndexService, embedder embed.Embedder, sources map[string]ingest.DocumentSource, blobs blob.Store, sink async.Sink, cfg Config) *Manager {
	if cfg.AdminTimeout <= 0 {
		cfg.AdminTimeout = DefaultConfig().AdminTimeout
	}
	if sink == nil {
		sink = async.NewSlogSink(nil)
	}
	if blobs == nil {
		blobs = blob.NewMemoryStore()
	}
	return &Manager{
		svc:      svc,
		pipeline: NewPipeline(embedder),
		embedder: embedder,
		sources:  sources,
		blobs:    blobs,
		sink:     sink,
		cfg:      cfg,
		active:   make(map[string]bool),
		progress: make(map[string]*async.RebuildProgress),
	}
}

// Progress returns the progress tracker for a base's current or most
// recent run, if any.
func (m *Manager) Progress(base string) (*async.RebuildProgress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[base]
	return p, ok
}

// tempName builds the staging collection name for one base and run.
func tempName(base, runID string) string {
	return fmt.Sprintf("%s_temp_%s", base, runID)
}

func newRunID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	return hex.EncodeToString(buf)
}

// Rebuild stages fresh collections for the given bases, ingests every
// document, and atomically repoints the live aliases. A failed run
// never affects current traffic.
func (m *Manager) Rebuild(ctx context.Context, bases []string) (*RunResult, error) {
	if len(bases) == 0 {
		return nil, fmt.Errorf("no base collection names given")
	}
	for _, base := range bases {
		if _, ok := m.sources[base]; !ok {
			return nil, fmt.Errorf("no document source configured for base %s", base)
		}
		if m.needsReconciliation(ctx, base) {
			return nil, errors.New(errors.ErrCodeSwapAtomicityUnknown,
				fmt.Sprintf("base %s needs manual reconciliation before it can be rebuilt", base), nil).
				WithDetail("base", base)
		}
	}

	if err := m.acquire(bases); err != nil {
		return nil, err
	}
	defer m.release(bases)

	result := &RunResult{
		RunID:     newRunID(),
		Bases:     bases,
		Status:    StatusStaging,
		StartedAt: time.Now(),
	}
	progress := async.NewRebuildProgress()
	m.mu.Lock()
	for _, base := range bases {
		m.progress[base] = progress
	}
	m.mu.Unlock()

	m.sink.Emit(async.EventMilestone, map[string]any{
		"run_id": result.RunID, "status": string(StatusStaging), "bases": bases,
	})

	staged, err := m.stage(ctx, result, progress)
	if err != nil {
		m.rollback(context.WithoutCancel(ctx), result, staged)
		m.finish(ctx, result, err)
		return result, err
	}

	if err := m.swap(ctx, result, staged); err != nil {
		m.finish(ctx, result, err)
		return result, err
	}

	progress.SetStage(async.StageDone)
	m.finish(ctx, result, nil)
	return result, nil
}

func (m *Manager) needsReconciliation(ctx context.Context, base string) bool {
	_, err := m.blobs.Get(ctx, reconcileKeyPrefix+base)
	return err == nil
}

// acquire marks all bases active, or fails without mutating anything if
// any base already has a run in flight.
func (m *Manager) acquire(bases []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, base := range bases {
		if m.active[base] {
			return errors.New(errors.ErrCodeRebuildInProgress,
				fmt.Sprintf("a rebuild for base %s is already in progress", base), nil).
				WithDetail("base", base)
		}
	}
	for _, base := range bases {
		m.active[base] = true
	}
	return nil
}

func (m *Manager) release(bases []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, base := range bases {
		delete(m.active, base)
	}
}

// stage creates the temporary collections and runs the full ingest
// pipeline against them. Document-level failures are skipped and
// counted; run-level failures (index writes, cancellation) abort.
// Returns the base -> temp collection mapping for whatever was created.
func (m *Manager) stage(ctx context.Context, result *RunResult, progress *async.RebuildProgress) (map[string]string, error) {
	staged := make(map[string]string, len(result.Bases))
	dims := m.embedder.Dimensions()

	for _, base := range result.Bases {
		temp := tempName(base, result.RunID)
		if err := m.svc.CreateCollection(ctx, temp, dims); err != nil {
			return staged, fmt.Errorf("create staging collection %s: %w", temp, err)
		}
		staged[base] = temp

		hybrid, err := store.NewHybridIndex(ctx, m.svc, temp)
		if err != nil {
			return staged, fmt.Errorf("open staging index %s: %w", temp, err)
		}

		err = m.ingestBase(ctx, base, hybrid, result, progress)
		closeErr := hybrid.Close()
		if err != nil {
			return staged, err
		}
		if closeErr != nil {
			slog.Warn("failed to close staging index", "collection", temp, "error", closeErr)
		}
	}
	return staged, nil
}

func (m *Manager) ingestBase(ctx context.Context, base string, hybrid *store.HybridIndex, result *RunResult, progress *async.RebuildProgress) error {
	source := m.sources[base]
	ids, err := source.List(ctx)
	if err != nil {
		return fmt.Errorf("list documents for base %s: %w", base, err)
	}
	progress.SetDocsTotal(len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			// Cancellation is a staging failure: roll back, leave live
			// aliases untouched.
			return err
		}

		doc, err := source.Load(ctx, id)
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeMalformedDocument) || errors.HasCode(err, errors.ErrCodeBlobNotFound) {
				m.recordDocFailure(result, progress, base, id, err)
				continue
			}
			return fmt.Errorf("load document %s: %w", id, err)
		}

		payloads, vectors, err := m.pipeline.ProcessDocument(ctx, doc)
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeMalformedDocument) {
				m.recordDocFailure(result, progress, base, id, err)
				continue
			}
			return fmt.Errorf("process document %s: %w", id, err)
		}

		progress.SetStage(async.StageIndexing)
		if err := hybrid.Upsert(ctx, payloads, vectors); err != nil {
			// Staging does not silently skip failed batches.
			return fmt.Errorf("index document %s: %w", id, err)
		}

		result.DocsProcessed++
		result.ChunksIndexed += len(payloads)
		progress.DocDone()
		progress.AddChunks(len(payloads), len(payloads))
		m.sink.Emit(async.EventProgress, map[string]any{
			"run_id": result.RunID, "base": base, "document": id, "chunks": len(payloads),
		})
	}
	return nil
}

func (m *Manager) recordDocFailure(result *RunResult, progress *async.RebuildProgress, base, id string, err error) {
	result.DocsFailed++
	progress.DocDone()
	progress.SetError(err.Error())
	slog.Warn("skipping document", "base", base, "document", id, "error", err)
	m.sink.Emit(async.EventError, map[string]any{
		"run_id": result.RunID, "base": base, "document": id, "error": err.Error(),
	})
}

// swap atomically repoints every base's live alias at its staged
// collection, then deletes the replaced generations best-effort.
func (m *Manager) swap(ctx context.Context, result *RunResult, staged map[string]string) error {
	result.Status = StatusSwapping
	m.sink.Emit(async.EventMilestone, map[string]any{
		"run_id": result.RunID, "status": string(StatusSwapping),
	})

	var ops []store.AliasOp
	old := make(map[string]string)
	for _, base := range result.Bases {
		alias := LiveAlias(base)
		if current, err := m.svc.ResolveAlias(ctx, alias); err == nil {
			old[base] = current
			ops = append(ops, store.AliasOp{Action: store.AliasDelete, Alias: alias})
		}
		ops = append(ops, store.AliasOp{Action: store.AliasCreate, Alias: alias, Collection: staged[base]})
	}

	swapCtx, cancel := context.WithTimeout(ctx, m.cfg.AdminTimeout)
	err := m.svc.UpdateAliases(swapCtx, ops)
	cancel()
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
			// Outcome unknown: the batch may or may not have applied.
			// Delete nothing, escalate, and block further rebuilds of
			// these bases until an operator reconciles.
			return m.escalate(context.WithoutCancel(ctx), result, err)
		}
		// Clean rejection: nothing visible changed, roll back staging.
		m.rollback(context.WithoutCancel(ctx), result, staged)
		return errors.Wrap(errors.ErrCodeIndexWrite, fmt.Errorf("alias swap rejected: %w", err))
	}

	result.Status = StatusCommitted

	// The old generations are unreachable now; deletion failures are
	// logged, never fatal.
	for base, collection := range old {
		delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.AdminTimeout)
		if err := m.svc.DeleteCollection(delCtx, collection); err != nil {
			wrapped := errors.New(errors.ErrCodeRollbackCleanup,
				fmt.Sprintf("delete replaced collection %s", collection), err)
			slog.Warn("old generation cleanup failed", "base", base, "collection", collection, "error", wrapped)
			m.sink.Emit(async.EventError, map[string]any{
				"run_id": result.RunID, "base": base, "collection": collection, "error": wrapped.Error(),
			})
		}
		cancel()
	}
	return nil
}

// escalate records the unknown-outcome state durably and marks the run.
func (m *Manager) escalate(ctx context.Context, result *RunResult, cause error) error {
	result.Status = StatusNeedsReconciliation
	escErr := errors.New(errors.ErrCodeSwapAtomicityUnknown,
		"alias swap outcome unknown, manual reconciliation required", cause).
		WithDetail("run_id", result.RunID)

	marker, _ := json.Marshal(map[string]any{
		"run_id": result.RunID,
		"time":   time.Now().UTC(),
		"error":  cause.Error(),
	})
	for _, base := range result.Bases {
		if err := m.blobs.Put(ctx, reconcileKeyPrefix+base, marker); err != nil {
			// If the marker cannot be persisted the in-memory rejection
			// still holds for this process; log loudly.
			slog.Error("failed to persist reconciliation marker", "base", base, "error", err)
		}
	}
	m.sink.Emit(async.EventError, map[string]any{
		"run_id": result.RunID, "status": string(StatusNeedsReconciliation), "error": escErr.Error(),
	})
	return escErr
}

// rollback deletes every staged collection for the run. Deletion
// failures do not change the terminal status; the protected guarantee
// is that no live alias was mutated.
func (m *Manager) rollback(ctx context.Context, result *RunResult, staged map[string]string) {
	result.Status = StatusRolledBack
	for base, temp := range staged {
		delCtx, cancel := context.WithTimeout(ctx, m.cfg.AdminTimeout)
		if err := m.svc.DeleteCollection(delCtx, temp); err != nil {
			wrapped := errors.New(errors.ErrCodeRollbackCleanup,
				fmt.Sprintf("delete staging collection %s", temp), err)
			slog.Warn("rollback cleanup failed", "base", base, "collection", temp, "error", wrapped)
			m.sink.Emit(async.EventError, map[string]any{
				"run_id": result.RunID, "base": base, "collection": temp, "error": wrapped.Error(),
			})
		}
		cancel()
	}
}

// finish stamps the result, appends it to each base's history, and
// emits the completion event.
func (m *Manager) finish(ctx context.Context, result *RunResult, runErr error) {
	result.FinishedAt = time.Now()
	if runErr != nil && result.Error == "" {
		result.Error = runErr.Error()
	}

	histCtx := context.WithoutCancel(ctx)
	for _, base := range result.Bases {
		if err := m.appendHistory(histCtx, base, result); err != nil {
			slog.Warn("failed to persist run history", "base", base, "error", err)
		}
	}

	m.sink.Emit(async.EventCompletion, map[string]any{
		"run_id":         result.RunID,
		"status":         string(result.Status),
		"docs_processed": result.DocsProcessed,
		"docs_failed":    result.DocsFailed,
		"chunks_indexed": result.ChunksIndexed,
	})
}

func (m *Manager) appendHistory(ctx context.Context, base string, result *RunResult) error {
	var runs []RunResult
	if data, err := m.blobs.Get(ctx, historyKeyPrefix+base); err == nil {
		// A corrupt history blob falls back to an empty list.
		_ = json.Unmarshal(data, &runs)
	}
	runs = append(runs, *result)
	if len(runs) > historyLimit {
		runs = runs[len(runs)-historyLimit:]
	}
	data, err := json.Marshal(runs)
	if err != nil {
		return err
	}
	return m.blobs.Put(ctx, historyKeyPrefix+base, data)
}

// History returns the recorded runs for a base, oldest first.
func (m *Manager) History(ctx context.Context, base string) ([]RunResult, error) {
	data, err := m.blobs.Get(ctx, historyKeyPrefix+base)
	if stderrors.Is(err, blob.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var runs []RunResult
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("parse history for %s: %w", base, err)
	}
	return runs, nil
}

// Reconciliations lists bases currently blocked on manual
// reconciliation.
func (m *Manager) Reconciliations(ctx context.Context) ([]string, error) {
	keys, err := m.blobs.List(ctx, reconcileKeyPrefix)
	if err != nil {
		return nil, err
	}
	bases := make([]string, 0, len(keys))
	for _, key := range keys {
		bases = append(bases, key[len(reconcileKeyPrefix):])
	}
	return bases, nil
}

// ClearReconciliation removes a base's escalation marker after an
// operator has verified the alias state.
func (m *Manager) ClearReconciliation(ctx context.Context, base string) error {
	return m.blobs.Delete(ctx, reconcileKeyPrefix+base)
}
