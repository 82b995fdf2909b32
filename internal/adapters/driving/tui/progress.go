// Package tui renders live batch progress with Bubbletea.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/core/ports/driving"
)

// eventMsg wraps one progress event from the subscription.
type eventMsg domain.ProgressEvent

// streamClosedMsg signals that the progress stream ended.
type streamClosedMsg struct{}

// ProgressModel follows one batch job until it reaches a terminal state.
// It implements tea.Model for use with Bubbletea.
type ProgressModel struct {
	ingestor driving.Ingestor
	jobID    string

	events <-chan domain.ProgressEvent
	detach func()

	styles *Styles
	bar    progress.Model
	spin   spinner.Model

	last  domain.ProgressEvent
	seen  bool
	done  bool
	width int
}

// Ensure ProgressModel implements tea.Model.
var _ tea.Model = (*ProgressModel)(nil)

// NewProgressModel creates a progress view subscribed to the ingestor's
// event stream, filtered to the given job.
func NewProgressModel(ingestor driving.Ingestor, jobID string) *ProgressModel {
	events, detach := ingestor.Subscribe()

	s := DefaultStyles()
	spin := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(s.Normal.Foreground(DefaultTheme().Primary)),
	)

	return &ProgressModel{
		ingestor: ingestor,
		jobID:    jobID,
		events:   events,
		detach:   detach,
		styles:   s,
		bar:      progress.New(progress.WithDefaultGradient()),
		spin:     spin,
		width:    60,
	}
}

// Init implements tea.Model.
func (m *ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.nextEvent())
}

// nextEvent blocks on the subscription until an event arrives.
func (m *ProgressModel) nextEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(event)
	}
}

// Update implements tea.Model.
func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 8
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			// Request cooperative cancellation; the terminal event ends
			// the view.
			_ = m.ingestor.Cancel(context.Background(), m.jobID)
			return m, nil
		case "q", "esc":
			m.finish()
			return m, tea.Quit
		}
		return m, nil

	case eventMsg:
		event := domain.ProgressEvent(msg)
		if event.JobID != m.jobID {
			return m, m.nextEvent()
		}
		m.last = event
		m.seen = true
		if event.Status.Terminal() {
			m.finish()
			return m, tea.Quit
		}
		return m, m.nextEvent()

	case streamClosedMsg:
		m.finish()
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// finish detaches the subscription exactly once.
func (m *ProgressModel) finish() {
	if m.done {
		return
	}
	m.done = true
	m.detach()
}

// View implements tea.Model.
func (m *ProgressModel) View() string {
	title := m.styles.Title.Render("Ingesting batch " + m.jobID)

	if !m.seen {
		return fmt.Sprintf("%s\n\n  %s waiting for progress...\n", title, m.spin.View())
	}

	bar := m.bar.ViewAs(m.last.Percentage / 100)
	counts := m.styles.Normal.Render(
		fmt.Sprintf("%d/%d items", m.last.Current, m.last.Total))

	status := m.statusLine()

	item := ""
	if m.last.CurrentItem != "" && !m.last.Status.Terminal() {
		item = "\n  " + m.styles.Muted.Render(m.last.CurrentItem)
	}

	help := ""
	if !m.done {
		help = "\n\n" + m.styles.Help.Render("ctrl+c cancel job, q detach")
	}

	return fmt.Sprintf("%s\n\n  %s %s  %s%s%s\n", title, bar, counts, status, item, help)
}

// statusLine renders the job status in its severity colour.
func (m *ProgressModel) statusLine() string {
	switch m.last.Status {
	case domain.JobCompleted:
		return m.styles.Success.Render("completed")
	case domain.JobFailed:
		return m.styles.Error.Render("failed")
	case domain.JobCancelled:
		return m.styles.Warning.Render("cancelled")
	default:
		return m.spin.View() + m.styles.Normal.Render(string(m.last.Status))
	}
}

// LastEvent returns the most recent event applied to the model.
func (m *ProgressModel) LastEvent() (domain.ProgressEvent, bool) {
	return m.last, m.seen
}

// Done reports whether the model has detached from the stream.
func (m *ProgressModel) Done() bool {
	return m.done
}

// RunProgress runs the progress view until the job finishes or the user
// detaches. The job itself keeps running after detach.
func RunProgress(ingestor driving.Ingestor, jobID string) error {
	model := NewProgressModel(ingestor, jobID)
	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("progress view: %w", err)
	}
	return nil
}
