package domain

import (
	"fmt"
	"time"
)

// JobStatus is the batch job state machine:
//
//	pending → processing → {completed, failed, cancelled}
//
// A job is terminal once status leaves processing.
type JobStatus string

const (
	// JobPending is the initial state when a job is accepted.
	JobPending JobStatus = "pending"

	// JobProcessing means the first item has begun.
	JobProcessing JobStatus = "processing"

	// JobCompleted means all items have been attempted, regardless of
	// individual item failures.
	JobCompleted JobStatus = "completed"

	// JobFailed means a system-level fault prevented continuing.
	JobFailed JobStatus = "failed"

	// JobCancelled means an external cancellation was observed before
	// natural completion. In-flight items were allowed to finish.
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// validTransitions enumerates the state machine edges.
var validTransitions = map[JobStatus][]JobStatus{
	JobPending:    {JobProcessing, JobCancelled, JobFailed},
	JobProcessing: {JobCompleted, JobFailed, JobCancelled},
}

// BatchJob is one run of the orchestrator over a set of inputs.
// It is owned exclusively by the orchestrator for its lifetime; readers
// only ever see snapshots.
type BatchJob struct {
	// ID is the unique job identifier (ULID, time-sortable).
	ID string

	// Status is the current state machine position.
	Status JobStatus

	// TotalItems is the number of inputs submitted.
	TotalItems int

	// ProcessedCount is the number of items that have resolved,
	// success or failure. Monotonically non-decreasing.
	ProcessedCount int

	// ErrorCount is the number of items that failed.
	ErrorCount int

	// CreatedAt is when the job was accepted.
	CreatedAt time.Time

	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// TransitionTo moves the job to the next state, enforcing the state machine.
// Transitions out of a terminal state return ErrJobTerminal.
func (j *BatchJob) TransitionTo(next JobStatus) error {
	if j.Status == next {
		return nil
	}
	if j.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrJobTerminal, j.Status, next)
	}
	for _, allowed := range validTransitions[j.Status] {
		if allowed == next {
			j.Status = next
			if next.Terminal() {
				j.CompletedAt = time.Now().UTC()
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, next)
}

// Percentage returns the completed fraction in [0,100].
func (j *BatchJob) Percentage() float64 {
	if j.TotalItems == 0 {
		return 100
	}
	return float64(j.ProcessedCount) / float64(j.TotalItems) * 100
}

// ProgressEvent is a point-in-time snapshot of a batch job's completion
// state. Ephemeral: transmitted to observers, never persisted.
type ProgressEvent struct {
	// JobID identifies the batch job.
	JobID string `json:"job_id"`

	// Current is the monotonically increasing completed-item count.
	Current int `json:"current"`

	// Total is the number of items in the batch.
	Total int `json:"total"`

	// Percentage is Current/Total in [0,100].
	Percentage float64 `json:"percentage"`

	// CurrentItem is the source identifier of the item that just resolved,
	// empty on job-level events.
	CurrentItem string `json:"current_item,omitempty"`

	// Status is the job status at the time of the event.
	Status JobStatus `json:"status"`
}

// ItemResult records how one batch item resolved.
type ItemResult struct {
	// SourceIdentifier names the input item.
	SourceIdentifier string

	// DocumentID is the persisted document, empty when the item failed.
	DocumentID string

	// CaseName is the detected parse case.
	CaseName string

	// Created is true when the upsert inserted a new document, false for
	// an idempotent no-op or an in-place update.
	Created bool

	// Err is the item-level failure, nil on success.
	Err error

	// Warnings are non-fatal notes (unmatched schema, keyword extraction).
	Warnings []string
}

// BatchSummary is returned to callers when a job finishes.
type BatchSummary struct {
	// JobID identifies the batch job.
	JobID string

	// Status is the terminal status.
	Status JobStatus

	// Total, Succeeded and Failed are the item counts.
	Total     int
	Succeeded int
	Failed    int

	// Items holds the per-item detail in submission order.
	Items []ItemResult
}
