package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radnorm/radnorm/internal/adapters/driven/storage/memory"
	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/core/ports/driven"
	"github.com/radnorm/radnorm/internal/core/ports/driving"
	"github.com/radnorm/radnorm/internal/parsers"
)

const headerXML = `<LidcReadMessage>
  <ResponseHeader>
    <StudyInstanceUID>1.3.6.1.4.%d</StudyInstanceUID>
    <SeriesInstanceUID>1.3.6.1.5.%d</SeriesInstanceUID>
  </ResponseHeader>
</LidcReadMessage>`

func headerCase() domain.ParseCase {
	return domain.ParseCase{
		Name: "header_only",
		Reference: domain.StructuralFingerprint{Tokens: []string{
			"/LidcReadMessage",
			"/LidcReadMessage/ResponseHeader",
			"/LidcReadMessage/ResponseHeader/StudyInstanceUID",
			"/LidcReadMessage/ResponseHeader/SeriesInstanceUID",
		}},
		Mappings: []domain.FieldMapping{
			{Field: "study_instance_uid", Source: "/ResponseHeader/StudyInstanceUID", Kind: domain.KindString, Required: true},
			{Field: "series_instance_uid", Source: "/ResponseHeader/SeriesInstanceUID", Kind: domain.KindString, Required: true},
		},
	}
}

func xmlInput(n int) domain.RawInput {
	return domain.RawInput{
		SourceIdentifier: fmt.Sprintf("scan-%03d.xml", n),
		MediaType:        "application/xml",
		Content:          []byte(fmt.Sprintf(headerXML, n, n)),
	}
}

func newTestOrchestrator(t *testing.T, store driven.DocumentStore, opts ...OrchestratorOption) *Orchestrator {
	t.Helper()

	registry := NewCaseRegistry()
	require.NoError(t, registry.Register(headerCase()))

	return NewOrchestrator(
		parsers.NewDefaultRegistry(),
		registry,
		NewMapper(),
		NewKeywordExtractor(nil),
		store,
		NewProgressChannel(),
		opts...,
	)
}

func TestSubmitRejectsEmptyBatch(t *testing.T) {
	o := newTestOrchestrator(t, memory.NewDocumentStore())
	_, err := o.Submit(context.Background(), nil, driving.IngestOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBatchMixedOutcomes(t *testing.T) {
	store := memory.NewDocumentStore()
	o := newTestOrchestrator(t, store)
	ctx := context.Background()

	inputs := []domain.RawInput{
		xmlInput(1),
		{SourceIdentifier: "broken.xml", MediaType: "application/xml", Content: []byte("<unclosed>")},
		xmlInput(2),
	}

	jobID, err := o.Submit(ctx, inputs, driving.IngestOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	summary, err := o.Wait(ctx, jobID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobCompleted, summary.Status)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	// One item-level parse failure never aborts the batch.
	job, err := o.Status(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 3, job.ProcessedCount)
	assert.Equal(t, 1, job.ErrorCount)

	count, err := store.DocumentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, item := range summary.Items {
		if item.Err != nil {
			assert.Equal(t, "broken.xml", item.SourceIdentifier)
			assert.ErrorIs(t, item.Err, domain.ErrParse)
			continue
		}
		assert.Equal(t, "header_only", item.CaseName)
		assert.True(t, item.Created)
	}
}

func TestBatchIdempotentResubmit(t *testing.T) {
	store := memory.NewDocumentStore()
	o := newTestOrchestrator(t, store)
	ctx := context.Background()

	inputs := []domain.RawInput{xmlInput(1), xmlInput(2)}

	first, err := o.Submit(ctx, inputs, driving.IngestOptions{})
	require.NoError(t, err)
	_, err = o.Wait(ctx, first)
	require.NoError(t, err)

	second, err := o.Submit(ctx, inputs, driving.IngestOptions{})
	require.NoError(t, err)
	summary, err := o.Wait(ctx, second)
	require.NoError(t, err)

	// Re-importing identical content is a no-op per item.
	assert.Equal(t, 2, summary.Succeeded)
	for _, item := range summary.Items {
		assert.False(t, item.Created)
		assert.NotEmpty(t, item.DocumentID)
	}

	count, err := store.DocumentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestBatchUnmatchedSchemaUsesFallback(t *testing.T) {
	store := memory.NewDocumentStore()
	o := newTestOrchestrator(t, store)
	ctx := context.Background()

	alien := domain.RawInput{
		SourceIdentifier: "alien.json",
		MediaType:        "application/json",
		Content:          []byte(`{"totally": {"different": "shape"}, "structure": true}`),
	}

	jobID, err := o.Submit(ctx, []domain.RawInput{alien}, driving.IngestOptions{})
	require.NoError(t, err)
	summary, err := o.Wait(ctx, jobID)
	require.NoError(t, err)

	// Unmatched schemas persist through the fallback with a warning.
	assert.Equal(t, domain.JobCompleted, summary.Status)
	require.Equal(t, 1, summary.Succeeded)
	item := summary.Items[0]
	assert.Equal(t, FallbackCaseName, item.CaseName)
	require.NotEmpty(t, item.Warnings)

	doc, err := store.Get(ctx, item.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, FallbackCaseName, doc.CaseName)
}

func TestBatchCancelStopsDispatch(t *testing.T) {
	store := &slowStore{DocumentStore: memory.NewDocumentStore(), delay: 50 * time.Millisecond}
	o := newTestOrchestrator(t, store, WithWorkers(1))
	ctx := context.Background()

	inputs := make([]domain.RawInput, 20)
	for i := range inputs {
		inputs[i] = xmlInput(i)
	}

	jobID, err := o.Submit(ctx, inputs, driving.IngestOptions{})
	require.NoError(t, err)

	// Let a few items through, then cancel.
	time.Sleep(120 * time.Millisecond)
	require.NoError(t, o.Cancel(ctx, jobID))

	summary, err := o.Wait(ctx, jobID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobCancelled, summary.Status)
	job, err := o.Status(ctx, jobID)
	require.NoError(t, err)
	assert.Less(t, job.ProcessedCount, job.TotalItems)

	// Cancelling a terminal job is rejected.
	assert.ErrorIs(t, o.Cancel(ctx, jobID), domain.ErrJobTerminal)
}

func TestBatchCancelSilencesInFlightEvents(t *testing.T) {
	store := &slowStore{DocumentStore: memory.NewDocumentStore(), delay: 300 * time.Millisecond}
	o := newTestOrchestrator(t, store, WithWorkers(1))
	ctx := context.Background()

	events, unsubscribe := o.Subscribe()
	defer unsubscribe()

	inputs := []domain.RawInput{xmlInput(1), xmlInput(2), xmlInput(3)}
	jobID, err := o.Submit(ctx, inputs, driving.IngestOptions{})
	require.NoError(t, err)

	// Cancel while the first item is still inside the slow store. It will
	// resolve anyway, and its event must not report the job as processing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, o.Cancel(ctx, jobID))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.JobID != jobID {
				continue
			}
			if ev.Current >= 1 {
				assert.Equal(t, domain.JobCancelled, ev.Status,
					"event for item %q emitted after cancellation", ev.CurrentItem)
			}
			if ev.Status.Terminal() {
				assert.Equal(t, domain.JobCancelled, ev.Status)
				return
			}
		case <-deadline:
			t.Fatal("no terminal progress event")
		}
	}
}

func TestBatchPersistRetriesConflict(t *testing.T) {
	store := &conflictStore{DocumentStore: memory.NewDocumentStore(), failures: 1}
	o := newTestOrchestrator(t, store, WithWorkers(1), WithRetryBackoff(time.Millisecond))
	ctx := context.Background()

	jobID, err := o.Submit(ctx, []domain.RawInput{xmlInput(1)}, driving.IngestOptions{})
	require.NoError(t, err)
	summary, err := o.Wait(ctx, jobID)
	require.NoError(t, err)

	// One conflict consumes the single retry and the item still lands.
	assert.Equal(t, domain.JobCompleted, summary.Status)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 2, store.calls)
}

func TestBatchPersistConflictExhaustsRetry(t *testing.T) {
	store := &conflictStore{DocumentStore: memory.NewDocumentStore(), failures: 2}
	o := newTestOrchestrator(t, store, WithWorkers(1), WithRetryBackoff(time.Millisecond))
	ctx := context.Background()

	jobID, err := o.Submit(ctx, []domain.RawInput{xmlInput(1)}, driving.IngestOptions{})
	require.NoError(t, err)
	summary, err := o.Wait(ctx, jobID)
	require.NoError(t, err)

	// A conflict on the retry fails the item, not the job.
	assert.Equal(t, domain.JobCompleted, summary.Status)
	assert.Equal(t, 1, summary.Failed)
	require.NotNil(t, summary.Items[0].Err)
	assert.ErrorIs(t, summary.Items[0].Err, domain.ErrPersistenceConflict)
}

func TestBatchStoreOutageFailsJob(t *testing.T) {
	store := &failingStore{DocumentStore: memory.NewDocumentStore()}
	o := newTestOrchestrator(t, store, WithWorkers(1))
	ctx := context.Background()

	jobID, err := o.Submit(ctx, []domain.RawInput{xmlInput(1), xmlInput(2), xmlInput(3)}, driving.IngestOptions{})
	require.NoError(t, err)

	summary, err := o.Wait(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, summary.Status)
}

func TestBatchProgressEventsAreMonotonic(t *testing.T) {
	o := newTestOrchestrator(t, memory.NewDocumentStore())
	ctx := context.Background()

	events, cancel := o.Subscribe()
	defer cancel()

	inputs := []domain.RawInput{xmlInput(1), xmlInput(2), xmlInput(3), xmlInput(4)}
	jobID, err := o.Submit(ctx, inputs, driving.IngestOptions{})
	require.NoError(t, err)

	last := -1
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.JobID != jobID {
				continue
			}
			assert.GreaterOrEqual(t, ev.Current, last)
			assert.Equal(t, 4, ev.Total)
			last = ev.Current
			if ev.Status.Terminal() {
				assert.Equal(t, 4, ev.Current)
				assert.InDelta(t, 100.0, ev.Percentage, 1e-9)
				return
			}
		case <-deadline:
			t.Fatal("no terminal progress event")
		}
	}
}

func TestStatusUnknownJob(t *testing.T) {
	o := newTestOrchestrator(t, memory.NewDocumentStore())
	_, err := o.Status(context.Background(), "no-such-job")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = o.Cancel(context.Background(), "no-such-job")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWaitHonoursContext(t *testing.T) {
	store := &slowStore{DocumentStore: memory.NewDocumentStore(), delay: 200 * time.Millisecond}
	o := newTestOrchestrator(t, store, WithWorkers(1))

	inputs := make([]domain.RawInput, 10)
	for i := range inputs {
		inputs[i] = xmlInput(i)
	}
	jobID, err := o.Submit(context.Background(), inputs, driving.IngestOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = o.Wait(ctx, jobID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, o.Cancel(context.Background(), jobID))
	_, err = o.Wait(context.Background(), jobID)
	require.NoError(t, err)
}

// slowStore delays upserts to keep jobs in flight during tests.
type slowStore struct {
	driven.DocumentStore
	delay time.Duration
}

func (s *slowStore) Upsert(ctx context.Context, item driven.UpsertItem) (*driven.UpsertResult, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.DocumentStore.Upsert(ctx, item)
}

// conflictStore reports write contention for the first failures calls,
// then delegates to the wrapped store.
type conflictStore struct {
	driven.DocumentStore
	failures int
	calls    int
}

func (s *conflictStore) Upsert(ctx context.Context, item driven.UpsertItem) (*driven.UpsertResult, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, fmt.Errorf("%w: database is locked", domain.ErrPersistenceConflict)
	}
	return s.DocumentStore.Upsert(ctx, item)
}

// failingStore simulates a store outage on writes.
type failingStore struct {
	driven.DocumentStore
}

func (s *failingStore) Upsert(context.Context, driven.UpsertItem) (*driven.UpsertResult, error) {
	return nil, fmt.Errorf("%w: connection refused", domain.ErrStoreUnavailable)
}
