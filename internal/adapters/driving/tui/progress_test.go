package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/core/ports/driving"
)

// stubIngestor feeds a scripted event stream to the model.
type stubIngestor struct {
	events    chan domain.ProgressEvent
	detached  bool
	cancelled []string
}

var _ driving.Ingestor = (*stubIngestor)(nil)

func newStubIngestor() *stubIngestor {
	return &stubIngestor{events: make(chan domain.ProgressEvent, 8)}
}

func (s *stubIngestor) Submit(context.Context, []domain.RawInput, driving.IngestOptions) (string, error) {
	return "", nil
}

func (s *stubIngestor) Status(context.Context, string) (*domain.BatchJob, error) {
	return nil, domain.ErrNotFound
}

func (s *stubIngestor) Cancel(_ context.Context, jobID string) error {
	s.cancelled = append(s.cancelled, jobID)
	return nil
}

func (s *stubIngestor) Wait(context.Context, string) (*domain.BatchSummary, error) {
	return nil, domain.ErrNotFound
}

func (s *stubIngestor) Subscribe() (<-chan domain.ProgressEvent, func()) {
	return s.events, func() { s.detached = true }
}

// deliver runs the model's pending event command and applies the result.
func deliver(t *testing.T, model *ProgressModel) (tea.Model, tea.Cmd) {
	t.Helper()
	cmd := model.nextEvent()
	require.NotNil(t, cmd)
	return model.Update(cmd())
}

func TestProgressModelAppliesMatchingEvents(t *testing.T) {
	ingestor := newStubIngestor()
	model := NewProgressModel(ingestor, "job-1")

	ingestor.events <- domain.ProgressEvent{
		JobID: "job-1", Current: 2, Total: 5, Percentage: 40,
		CurrentItem: "scan_002.xml", Status: domain.JobProcessing,
	}

	updated, cmd := deliver(t, model)
	require.NotNil(t, cmd, "non-terminal event should keep listening")

	got, seen := updated.(*ProgressModel).LastEvent()
	require.True(t, seen)
	assert.Equal(t, 2, got.Current)
	assert.Equal(t, "scan_002.xml", got.CurrentItem)
	assert.False(t, updated.(*ProgressModel).Done())
}

func TestProgressModelIgnoresOtherJobs(t *testing.T) {
	ingestor := newStubIngestor()
	model := NewProgressModel(ingestor, "job-1")

	ingestor.events <- domain.ProgressEvent{JobID: "job-2", Current: 9, Total: 9}

	updated, _ := deliver(t, model)

	_, seen := updated.(*ProgressModel).LastEvent()
	assert.False(t, seen)
}

func TestProgressModelQuitsOnTerminalEvent(t *testing.T) {
	ingestor := newStubIngestor()
	model := NewProgressModel(ingestor, "job-1")

	ingestor.events <- domain.ProgressEvent{
		JobID: "job-1", Current: 5, Total: 5, Percentage: 100,
		Status: domain.JobCompleted,
	}

	updated, cmd := deliver(t, model)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.True(t, updated.(*ProgressModel).Done())
	assert.True(t, ingestor.detached)
}

func TestProgressModelQuitsWhenStreamCloses(t *testing.T) {
	ingestor := newStubIngestor()
	model := NewProgressModel(ingestor, "job-1")

	close(ingestor.events)

	updated, cmd := deliver(t, model)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.True(t, updated.(*ProgressModel).Done())
}

func TestProgressModelCtrlCRequestsCancel(t *testing.T) {
	ingestor := newStubIngestor()
	model := NewProgressModel(ingestor, "job-1")

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Nil(t, cmd, "cancel waits for the terminal event")
	assert.Equal(t, []string{"job-1"}, ingestor.cancelled)
	assert.False(t, updated.(*ProgressModel).Done())
}

func TestProgressModelDetachesOnQuitKey(t *testing.T) {
	ingestor := newStubIngestor()
	model := NewProgressModel(ingestor, "job-1")

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.True(t, updated.(*ProgressModel).Done())
	assert.True(t, ingestor.detached)
}

func TestProgressModelViewShowsCounts(t *testing.T) {
	ingestor := newStubIngestor()
	model := NewProgressModel(ingestor, "job-1")

	ingestor.events <- domain.ProgressEvent{
		JobID: "job-1", Current: 3, Total: 4, Percentage: 75,
		Status: domain.JobProcessing,
	}
	updated, _ := deliver(t, model)

	view := updated.(*ProgressModel).View()
	assert.Contains(t, view, "job-1")
	assert.Contains(t, view, "3/4 items")
}
