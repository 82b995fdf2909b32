package driving

import (
	"context"

	"github.com/radnorm/radnorm/internal/core/domain"
)

// IngestOptions tunes one batch run.
type IngestOptions struct {
	// Workers bounds the worker pool. <= 0 uses the orchestrator default.
	Workers int

	// StoreTimeout is the per-item persistence timeout in seconds.
	// <= 0 uses the orchestrator default.
	StoreTimeout int
}

// Ingestor accepts batches of raw inputs and drives them through the
// ingestion pipeline.
type Ingestor interface {
	// Submit accepts a batch and returns its job id immediately.
	// Processing continues in the background; observe it via Subscribe,
	// poll Status, or block on Wait.
	Submit(ctx context.Context, inputs []domain.RawInput, opts IngestOptions) (string, error)

	// Status returns a snapshot of the job.
	Status(ctx context.Context, jobID string) (*domain.BatchJob, error)

	// Cancel requests cooperative cancellation. In-flight items finish,
	// no new items start.
	Cancel(ctx context.Context, jobID string) error

	// Wait blocks until the job reaches a terminal state and returns the
	// completion summary.
	Wait(ctx context.Context, jobID string) (*domain.BatchSummary, error)

	// Subscribe attaches a progress observer. The returned cancel func
	// detaches it. Late subscribers receive the most recent event first.
	Subscribe() (<-chan domain.ProgressEvent, func())
}
