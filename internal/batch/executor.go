package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/formweaver/formweaver/api/schemas"
	"github.com/formweaver/formweaver/internal/config"
)

// -- Sentinel Errors --

var (
	// ErrNoScheduledBatch is returned by ExecuteBatch when the profile has no
	// batch waiting in the scheduled state.
	ErrNoScheduledBatch = errors.New("no scheduled batch for profile")
	// ErrUnknownBatch is returned when a batch id is not present in the
	// registry.
	ErrUnknownBatch = errors.New("unknown batch id")
	// ErrBatchFinalized is returned when a lifecycle operation targets a batch
	// already in a terminal state.
	ErrBatchFinalized = errors.New("batch already finalized")
)

// ExecutionResult is the aggregate outcome of one ExecuteBatch call.
type ExecutionResult struct {
	BatchID  string
	Results  []any
	Failures []schemas.FailureRecord
}

// Engine owns the batch lifecycle: scheduling, sequential per-row execution,
// progress persistence, and lifecycle event emission. The registry is mutated
// only by the engine itself; persistence happens synchronously after every
// state change through the injected store.
type Engine struct {
	cfg       config.Interface
	logger    *zap.Logger
	store     schemas.BatchStore
	processor schemas.RowProcessor
	events    *notifier

	// sem bounds the number of concurrently running batches. Row order
	// within a single batch stays strictly sequential regardless.
	sem *semaphore.Weighted

	mu      sync.Mutex
	batches map[string]*schemas.Batch
}

// Option configures an Engine.
type Option func(*Engine)

// WithListener registers a lifecycle event listener at construction time.
func WithListener(l schemas.EventListener) Option {
	return func(e *Engine) {
		e.events.Subscribe(l)
	}
}

// NewEngine builds a batch engine around the given store and row processor.
func NewEngine(
	cfg config.Interface,
	logger *zap.Logger,
	store schemas.BatchStore,
	processor schemas.RowProcessor,
	opts ...Option,
) (*Engine, error) {
	if store == nil {
		return nil, errors.New("batch engine requires a store")
	}
	if processor == nil {
		return nil, errors.New("batch engine requires a row processor")
	}

	maxBatches := cfg.Batch().MaxConcurrentBatches
	if maxBatches < 1 {
		maxBatches = 1
	}

	log := logger.With(zap.String("component", "batch"))
	e := &Engine{
		cfg:       cfg,
		logger:    log,
		store:     store,
		processor: processor,
		events:    newNotifier(log),
		sem:       semaphore.NewWeighted(maxBatches),
		batches:   make(map[string]*schemas.Batch),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Subscribe adds a lifecycle event listener after construction.
func (e *Engine) Subscribe(l schemas.EventListener) {
	e.events.Subscribe(l)
}

// Recover reloads previously persisted batches into the registry. Batches
// left in the running state by a crash are marked failed; their rows may
// have partially executed and must not be silently replayed.
func (e *Engine) Recover(ctx context.Context) error {
	persisted, err := e.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted batches: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for id, b := range persisted {
		if b == nil {
			continue
		}
		if b.Status == schemas.BatchRunning {
			b.Status = schemas.BatchFailed
			b.UpdatedAt = time.Now().UTC()
			b.Logs = append(b.Logs, "interrupted mid-run; marked failed on recovery")
			if err := e.store.Save(ctx, id, snapshotBatch(b)); err != nil {
				e.logger.Warn("Failed to persist recovery transition",
					zap.String("batch_id", id), zap.Error(err))
			}
		}
		e.batches[id] = b
	}

	e.logger.Info("Batch registry recovered", zap.Int("count", len(e.batches)))
	return nil
}

// ScheduleBatchRun creates a new batch in the scheduled state and persists
// it. A persistence failure here is surfaced, not swallowed: a batch that
// was never durably scheduled must not appear schedulable.
func (e *Engine) ScheduleBatchRun(ctx context.Context, profile string, batchCfg schemas.BatchConfig) (string, error) {
	if profile == "" {
		return "", errors.New("profile must not be empty")
	}

	now := time.Now().UTC()
	b := &schemas.Batch{
		ID:        uuid.NewString(),
		Profile:   profile,
		Config:    batchCfg,
		Status:    schemas.BatchScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.store.Save(ctx, b.ID, snapshotBatch(b)); err != nil {
		return "", fmt.Errorf("failed to persist scheduled batch %s: %w", b.ID, err)
	}

	e.mu.Lock()
	e.batches[b.ID] = b
	e.mu.Unlock()

	e.logger.Info("Batch scheduled",
		zap.String("batch_id", b.ID),
		zap.String("profile", profile))
	return b.ID, nil
}

// ExecuteBatch runs the most recently scheduled batch for the profile
// against the given input rows. Rows are processed strictly sequentially;
// per-row failures are recorded and do not abort the run. The call fails
// synchronously only when no scheduled batch exists for the profile.
func (e *Engine) ExecuteBatch(ctx context.Context, profile string, inputRows []any) (*ExecutionResult, error) {
	// The slot is held before the batch is claimed: a failed Acquire must
	// leave the batch schedulable, so claiming first would strand it.
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire batch slot: %w", err)
	}
	defer e.sem.Release(1)

	b := e.claimScheduled(profile)
	if b == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoScheduledBatch, profile)
	}

	log := e.logger.With(zap.String("batch_id", b.ID), zap.String("profile", profile))

	e.mutate(b, func(b *schemas.Batch) {
		b.Status = schemas.BatchRunning
		b.InputRows = inputRows
		b.Progress = schemas.Progress{Total: len(inputRows)}
	})
	e.persist(ctx, b, log)
	e.events.Emit(schemas.BatchEvent{Type: schemas.EventBatchStarted, BatchID: b.ID})
	log.Info("Batch started", zap.Int("rows", len(inputRows)))

	rowDelay := b.Config.RowDelay
	if rowDelay == 0 {
		rowDelay = e.cfg.Batch().RowDelay
	}
	// The limiter spaces rows at the configured delay; the first row passes
	// through its burst allowance immediately.
	var limiter *rate.Limiter
	if rowDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(rowDelay), 1)
	}

	result := &ExecutionResult{BatchID: b.ID}
	for i, row := range inputRows {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				log.Warn("Row pacing interrupted", zap.Error(err))
			}
		}

		out, err := e.processRow(ctx, profile, row)
		e.mutate(b, func(b *schemas.Batch) {
			if err != nil {
				b.Failures = append(b.Failures, schemas.FailureRecord{
					Row:     row,
					Profile: profile,
					Error:   err.Error(),
					Attempt: 1,
				})
				b.Progress.Failed++
			} else {
				b.Progress.Succeeded++
			}
			b.Progress.Processed++
		})
		if err != nil {
			log.Warn("Row failed", zap.Int("row", i), zap.Error(err))
		} else {
			result.Results = append(result.Results, out)
		}

		e.persist(ctx, b, log)
		e.events.Emit(schemas.BatchEvent{
			Type:     schemas.EventBatchProgress,
			BatchID:  b.ID,
			Progress: progressSnapshot(b),
		})

		if b.Config.StopOnCaptcha && errors.Is(err, schemas.ErrCaptchaDetected) {
			log.Warn("CAPTCHA wall hit, aborting remaining rows",
				zap.Int("remaining", len(inputRows)-i-1))
			e.mutate(b, func(b *schemas.Batch) {
				b.Logs = append(b.Logs, fmt.Sprintf("aborted at row %d: captcha detected", i))
			})
			break
		}
	}

	var summary *schemas.BatchSummary
	e.mutate(b, func(b *schemas.Batch) {
		if len(b.Failures) == 0 {
			b.Status = schemas.BatchCompleted
		} else {
			b.Status = schemas.BatchFailed
		}
		b.Summary = &schemas.BatchSummary{
			Total:       b.Progress.Total,
			Succeeded:   b.Progress.Succeeded,
			Failed:      b.Progress.Failed,
			CompletedAt: time.Now().UTC(),
		}
		summary = &schemas.BatchSummary{}
		*summary = *b.Summary
		result.Failures = append(result.Failures, b.Failures...)
	})
	e.persist(ctx, b, log)
	e.events.Emit(schemas.BatchEvent{
		Type:    schemas.EventBatchCompleted,
		BatchID: b.ID,
		Summary: summary,
	})

	log.Info("Batch finished",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))
	return result, nil
}

// TrackBatchProgress returns a defensive copy of the batch's progress, or
// nil when the id is unknown.
func (e *Engine) TrackBatchProgress(batchID string) *schemas.Progress {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.batches[batchID]
	if !ok {
		return nil
	}
	snap := b.Progress
	return &snap
}

// HandleBatchCompletion is the out-of-band finalize hook for callers that
// manage completion themselves. It refuses to move a failed batch forward;
// re-finalizing a completed batch just refreshes the summary.
func (e *Engine) HandleBatchCompletion(ctx context.Context, batchID string, summary schemas.BatchSummary) error {
	e.mu.Lock()
	b, ok := e.batches[batchID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBatch, batchID)
	}
	// A failed batch is terminal and stays failed; a completed one may have
	// its summary refreshed.
	if b.Status.Terminal() && b.Status != schemas.BatchCompleted {
		return fmt.Errorf("%w: %q is %s", ErrBatchFinalized, batchID, b.Status)
	}

	e.mutate(b, func(b *schemas.Batch) {
		b.Status = schemas.BatchCompleted
		s := summary
		b.Summary = &s
	})
	e.mu.Lock()
	snap := snapshotBatch(b)
	e.mu.Unlock()
	if err := e.store.Save(ctx, b.ID, snap); err != nil {
		return fmt.Errorf("failed to persist finalized batch %s: %w", b.ID, err)
	}

	s := summary
	e.events.Emit(schemas.BatchEvent{
		Type:    schemas.EventBatchFinalized,
		BatchID: b.ID,
		Summary: &s,
	})
	return nil
}

// -- Internals --

// claimScheduled atomically selects and detaches the most recently scheduled
// batch for the profile so two ExecuteBatch calls cannot claim the same one.
func (e *Engine) claimScheduled(profile string) *schemas.Batch {
	e.mu.Lock()
	defer e.mu.Unlock()

	var latest *schemas.Batch
	for _, b := range e.batches {
		if b.Profile != profile || b.Status != schemas.BatchScheduled {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			latest = b
		}
	}
	if latest != nil {
		// Claimed batches leave the scheduled state immediately; the
		// running transition is persisted by the caller.
		latest.Status = schemas.BatchRunning
		latest.UpdatedAt = time.Now().UTC()
	}
	return latest
}

// processRow invokes the external row processor with panic containment. A
// panicking processor counts as a failed row, not a dead engine.
func (e *Engine) processRow(ctx context.Context, profile string, row any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("row processor panicked: %v", r)
		}
	}()
	return e.processor.ProcessRow(ctx, profile, row)
}

// mutate applies fn to the batch under the registry lock and bumps
// UpdatedAt.
func (e *Engine) mutate(b *schemas.Batch, fn func(*schemas.Batch)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(b)
	b.UpdatedAt = time.Now().UTC()
}

// persist writes the batch state through the store. Progress persistence is
// advisory: failures are logged and execution continues, since the
// in-memory registry remains authoritative for the run.
func (e *Engine) persist(ctx context.Context, b *schemas.Batch, log *zap.Logger) {
	e.mu.Lock()
	snap := snapshotBatch(b)
	e.mu.Unlock()
	if err := e.store.Save(ctx, b.ID, snap); err != nil {
		log.Warn("Failed to persist batch state", zap.Error(err))
	}
}

func progressSnapshot(b *schemas.Batch) *schemas.Progress {
	snap := b.Progress
	return &snap
}

// snapshotBatch deep-copies the mutable parts of a batch so queued store
// writes never observe a later mutation.
func snapshotBatch(b *schemas.Batch) *schemas.Batch {
	snap := *b
	if b.InputRows != nil {
		snap.InputRows = append([]any(nil), b.InputRows...)
	}
	if b.Logs != nil {
		snap.Logs = append([]string(nil), b.Logs...)
	}
	if b.Failures != nil {
		snap.Failures = append([]schemas.FailureRecord(nil), b.Failures...)
	}
	if b.Summary != nil {
		s := *b.Summary
		snap.Summary = &s
	}
	return &snap
}

// pause sleeps for d or until the context is cancelled.
func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
