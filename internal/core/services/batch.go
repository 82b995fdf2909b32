package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/core/ports/driven"
	"github.com/radnorm/radnorm/internal/core/ports/driving"
	"github.com/radnorm/radnorm/internal/logger"
)

// Orchestrator defaults.
const (
	DefaultWorkers      = 4
	DefaultStoreTimeout = 10 * time.Second
	DefaultRetryBackoff = 250 * time.Millisecond
)

// Ensure Orchestrator implements the interface.
var _ driving.Ingestor = (*Orchestrator)(nil)

// jobState is the orchestrator's private view of one running job.
type jobState struct {
	job       domain.BatchJob
	items     []domain.ItemResult
	cancelled bool
	fatal     error
	done      chan struct{}
}

// Orchestrator drives batches of raw inputs through the ingestion
// pipeline: parse, fingerprint, detect, map, extract, persist. It owns
// each BatchJob for its lifetime and emits a progress event after every
// resolved item and at completion.
type Orchestrator struct {
	parsers       driven.ParserRegistry
	registry      *CaseRegistry
	fingerprinter *Fingerprinter
	mapper        *Mapper
	extractor     *KeywordExtractor
	store         driven.DocumentStore
	progress      *ProgressChannel

	workers      int
	storeTimeout time.Duration
	retryBackoff time.Duration

	mu   sync.Mutex
	jobs map[string]*jobState
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithWorkers bounds the worker pool.
func WithWorkers(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithStoreTimeout sets the per-item persistence timeout.
func WithStoreTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.storeTimeout = d
		}
	}
}

// WithRetryBackoff sets the delay before the single conflict retry.
func WithRetryBackoff(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.retryBackoff = d
		}
	}
}

// NewOrchestrator creates a batch orchestrator.
func NewOrchestrator(
	parsers driven.ParserRegistry,
	registry *CaseRegistry,
	mapper *Mapper,
	extractor *KeywordExtractor,
	store driven.DocumentStore,
	progress *ProgressChannel,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		parsers:       parsers,
		registry:      registry,
		fingerprinter: NewFingerprinter(),
		mapper:        mapper,
		extractor:     extractor,
		store:         store,
		progress:      progress,
		workers:       DefaultWorkers,
		storeTimeout:  DefaultStoreTimeout,
		retryBackoff:  DefaultRetryBackoff,
		jobs:          make(map[string]*jobState),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit accepts a batch and returns its job id immediately.
func (o *Orchestrator) Submit(ctx context.Context, inputs []domain.RawInput, opts driving.IngestOptions) (string, error) {
	if len(inputs) == 0 {
		return "", fmt.Errorf("%w: empty batch", domain.ErrInvalidInput)
	}

	job := domain.BatchJob{
		ID:         ulid.Make().String(),
		Status:     domain.JobPending,
		TotalItems: len(inputs),
		CreatedAt:  time.Now().UTC(),
	}
	if err := o.store.SaveJob(ctx, job); err != nil {
		return "", fmt.Errorf("save job: %w", err)
	}

	state := &jobState{
		job:   job,
		items: make([]domain.ItemResult, len(inputs)),
		done:  make(chan struct{}),
	}
	o.mu.Lock()
	o.jobs[job.ID] = state
	o.mu.Unlock()

	o.publishSnapshot(state)

	workers := o.workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}
	timeout := o.storeTimeout
	if opts.StoreTimeout > 0 {
		timeout = time.Duration(opts.StoreTimeout) * time.Second
	}

	logger.Info("Job %s accepted: %d items, %d workers", job.ID, len(inputs), workers)
	go o.run(state, inputs, workers, timeout)

	return job.ID, nil
}

// run processes the batch in the background. Items are dispatched in
// submission order across a bounded worker pool; cancellation is checked
// between items so in-flight items always finish.
func (o *Orchestrator) run(state *jobState, inputs []domain.RawInput, workers int, timeout time.Duration) {
	ctx := context.Background()

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, raw := range inputs {
		o.mu.Lock()
		if state.cancelled || state.fatal != nil {
			o.mu.Unlock()
			break
		}
		if state.job.Status == domain.JobPending {
			if err := state.job.TransitionTo(domain.JobProcessing); err != nil {
				o.mu.Unlock()
				break
			}
			snapshot := state.job
			o.mu.Unlock()
			o.saveSnapshot(ctx, snapshot)
		} else {
			o.mu.Unlock()
		}

		sem <- struct{}{}

		// The pool may have been saturated for a while; re-check so an
		// item admitted before cancellation does not start after it.
		o.mu.Lock()
		if state.cancelled || state.fatal != nil {
			o.mu.Unlock()
			<-sem
			break
		}
		o.mu.Unlock()

		wg.Add(1)
		go func(idx int, item domain.RawInput) {
			defer wg.Done()
			defer func() { <-sem }()

			result := o.processItem(ctx, state.job.ID, item, timeout)
			o.resolveItem(ctx, state, idx, result)
		}(i, raw)
	}

	wg.Wait()
	o.finish(ctx, state)
}

// resolveItem records one item's outcome, bumps the counters and emits the
// progress event. Counter updates and event emission happen under the job
// mutex so observed counts are monotonically non-decreasing.
func (o *Orchestrator) resolveItem(ctx context.Context, state *jobState, idx int, result domain.ItemResult) {
	o.mu.Lock()
	state.items[idx] = result
	state.job.ProcessedCount++
	if result.Err != nil {
		state.job.ErrorCount++
		if errors.Is(result.Err, domain.ErrStoreUnavailable) {
			state.fatal = result.Err
		}
	}
	snapshot := state.job

	// Once cancellation is requested, in-flight items still resolve but
	// their events must no longer report the job as processing.
	eventStatus := state.job.Status
	if state.cancelled && !eventStatus.Terminal() {
		eventStatus = domain.JobCancelled
	}
	event := domain.ProgressEvent{
		JobID:       state.job.ID,
		Current:     state.job.ProcessedCount,
		Total:       state.job.TotalItems,
		Percentage:  state.job.Percentage(),
		CurrentItem: result.SourceIdentifier,
		Status:      eventStatus,
	}
	o.progress.Publish(event)
	o.mu.Unlock()

	if result.Err != nil {
		logger.Warn("Item %s failed: %v", result.SourceIdentifier, result.Err)
	} else {
		logger.Debug("Item %s done (case %s)", result.SourceIdentifier, result.CaseName)
	}
	o.saveSnapshot(ctx, snapshot)
}

// finish drives the job to its terminal state and emits the final event.
func (o *Orchestrator) finish(ctx context.Context, state *jobState) {
	o.mu.Lock()
	terminal := domain.JobCompleted
	switch {
	case state.fatal != nil:
		terminal = domain.JobFailed
	case state.cancelled:
		terminal = domain.JobCancelled
	}
	if err := state.job.TransitionTo(terminal); err != nil {
		logger.Warn("Job %s: %v", state.job.ID, err)
	}
	snapshot := state.job
	event := domain.ProgressEvent{
		JobID:      state.job.ID,
		Current:    state.job.ProcessedCount,
		Total:      state.job.TotalItems,
		Percentage: state.job.Percentage(),
		Status:     state.job.Status,
	}
	o.progress.Publish(event)
	close(state.done)
	o.mu.Unlock()

	o.saveSnapshot(ctx, snapshot)
	logger.Info("Job %s %s: %d/%d items, %d errors",
		snapshot.ID, snapshot.Status, snapshot.ProcessedCount, snapshot.TotalItems, snapshot.ErrorCount)
}

// processItem runs one input through the full pipeline.
func (o *Orchestrator) processItem(ctx context.Context, jobID string, raw domain.RawInput, timeout time.Duration) domain.ItemResult {
	result := domain.ItemResult{SourceIdentifier: raw.SourceIdentifier}

	root, err := o.parsers.Parse(ctx, &raw)
	if err != nil {
		result.Err = err
		return result
	}

	fp := o.fingerprinter.Extract(root)
	detection := o.registry.Detect(fp)
	result.CaseName = detection.Case.Name
	if detection.LowConfidence {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%v: best score %.2f below threshold, using %q",
				domain.ErrUnmatchedSchema, detection.Confidence, detection.Case.Name))
	}

	mapped, err := o.mapper.Map(root, detection.Case)
	if err != nil {
		result.Err = err
		return result
	}
	result.Warnings = append(result.Warnings, mapped.Warnings...)

	status := domain.StatusComplete
	links, err := o.extractor.Extract(ctx, mapped.Payload, detection.Case.KeywordFields)
	if err != nil {
		// Non-fatal: the document persists without keyword links.
		result.Warnings = append(result.Warnings, err.Error())
		links = nil
		status = domain.StatusPartial
	}

	sum := sha256.Sum256(raw.Content)
	item := driven.UpsertItem{
		Document: domain.CanonicalDocument{
			ID:               uuid.New().String(),
			SourceIdentifier: raw.SourceIdentifier,
			ContentHash:      hex.EncodeToString(sum[:]),
			CaseName:         detection.Case.Name,
			Confidence:       detection.Confidence,
			Status:           status,
			JobID:            jobID,
		},
		Content: domain.CanonicalContent{Payload: mapped.Payload},
		Links:   links,
	}

	upsert, err := o.persist(ctx, item, timeout)
	if err != nil {
		result.Err = err
		return result
	}
	result.DocumentID = upsert.DocumentID
	result.Created = upsert.Created
	return result
}

// persist writes the item with a per-item timeout, retrying once with
// backoff on persistence conflicts. A store timeout is an item-level
// conflict, never a batch-level fault.
func (o *Orchestrator) persist(ctx context.Context, item driven.UpsertItem, timeout time.Duration) (*driven.UpsertResult, error) {
	attempt := func() (*driven.UpsertResult, error) {
		tctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		res, err := o.store.Upsert(tctx, item)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: store timeout after %s", domain.ErrPersistenceConflict, timeout)
		}
		return res, err
	}

	res, err := attempt()
	if err != nil && errors.Is(err, domain.ErrPersistenceConflict) {
		logger.Debug("Persistence conflict for %s, retrying once", item.Document.SourceIdentifier)
		time.Sleep(o.retryBackoff)
		res, err = attempt()
	}
	return res, err
}

// Status returns a snapshot of the job, falling back to the store for
// jobs from earlier runs.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (*domain.BatchJob, error) {
	o.mu.Lock()
	state, ok := o.jobs[jobID]
	if ok {
		snapshot := state.job
		o.mu.Unlock()
		return &snapshot, nil
	}
	o.mu.Unlock()

	return o.store.GetJob(ctx, jobID)
}

// Cancel requests cooperative cancellation: in-flight items finish, no
// new items start.
func (o *Orchestrator) Cancel(_ context.Context, jobID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	state, ok := o.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %q: %w", jobID, domain.ErrNotFound)
	}
	if state.job.Status.Terminal() {
		return fmt.Errorf("job %q: %w", jobID, domain.ErrJobTerminal)
	}
	state.cancelled = true
	logger.Info("Job %s cancellation requested", jobID)
	return nil
}

// Wait blocks until the job reaches a terminal state.
func (o *Orchestrator) Wait(ctx context.Context, jobID string) (*domain.BatchSummary, error) {
	o.mu.Lock()
	state, ok := o.jobs[jobID]
	o.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("job %q: %w", jobID, domain.ErrNotFound)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-state.done:
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	summary := &domain.BatchSummary{
		JobID:  state.job.ID,
		Status: state.job.Status,
		Total:  state.job.TotalItems,
		Items:  append([]domain.ItemResult(nil), state.items...),
	}
	for _, item := range state.items {
		switch {
		case item.Err != nil:
			summary.Failed++
		case item.DocumentID != "":
			summary.Succeeded++
		}
	}
	return summary, nil
}

// Subscribe attaches a progress observer.
func (o *Orchestrator) Subscribe() (<-chan domain.ProgressEvent, func()) {
	return o.progress.Subscribe()
}

// publishSnapshot emits the job's current snapshot as an event.
func (o *Orchestrator) publishSnapshot(state *jobState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress.Publish(domain.ProgressEvent{
		JobID:      state.job.ID,
		Current:    state.job.ProcessedCount,
		Total:      state.job.TotalItems,
		Percentage: state.job.Percentage(),
		Status:     state.job.Status,
	})
}

// saveSnapshot persists a job snapshot, logging rather than failing on
// store errors: progress reporting must not abort the batch.
func (o *Orchestrator) saveSnapshot(ctx context.Context, job domain.BatchJob) {
	if err := o.store.SaveJob(ctx, job); err != nil {
		logger.Warn("Persisting job %s snapshot: %v", job.ID, err)
	}
}
