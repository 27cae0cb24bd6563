package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/litlab/internal/models"
)

// Poll schedule while waiting on a lab job.
const (
	pollInitial  = time.Second
	pollMax      = 8 * time.Second
	pollDeadline = 5 * time.Minute
)

// errWaitTimeout is returned when a job is still running at the deadline.
var errWaitTimeout = errors.New("job still running")

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// statusFunc loads the current state of a job.
type statusFunc func(ctx context.Context, jobID string) (*models.LabJob, error)

// newPollBackOff doubles the poll interval from one to eight seconds and
// stops after deadline. A non-positive deadline uses five minutes.
func newPollBackOff(deadline time.Duration) *backoff.ExponentialBackOff {
	if deadline <= 0 {
		deadline = pollDeadline
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = pollInitial
	b.MaxInterval = pollMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = deadline
	b.Reset()
	return b
}

// tickMsg triggers polling the job status
type tickMsg time.Time

// jobUpdateMsg carries the updated job data
type jobUpdateMsg struct {
	job *models.LabJob
	err error
}

// waitModel is the bubbletea model for a running lab job.
type waitModel struct {
	status   statusFunc
	jobID    string
	job      *models.LabJob
	backoff  backoff.BackOff
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	timedOut bool
	err      error
}

func newWaitModel(status statusFunc, job *models.LabJob, b backoff.BackOff) waitModel {
	return waitModel{
		status:  status,
		jobID:   job.ID,
		job:     job,
		backoff: b,
		progress: progress.New(
			progress.WithDefaultBlend(),
			progress.WithWidth(40),
		),
		theme: defaultTheme,
	}
}

// Init polls once right away; later polls follow the backoff.
func (m waitModel) Init() tea.Cmd {
	return m.fetchJob()
}

// Update handles messages and returns the updated model.
func (m waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.done = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchJob()

	case jobUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("fetch job status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.job = msg.job
		switch m.job.State {
		case models.JobStateSucceeded:
			m.done = true
			return m, tea.Quit
		case models.JobStateFailed:
			m.done = true
			m.err = jobError(m.job)
			return m, tea.Quit
		}

		cmd := m.next()
		if cmd == nil {
			m.timedOut = true
			m.done = true
			m.err = errWaitTimeout
			return m, tea.Quit
		}
		return m, cmd

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// next schedules the following poll, or returns nil once the backoff stops.
func (m waitModel) next() tea.Cmd {
	d := m.backoff.NextBackOff()
	if d == backoff.Stop {
		return nil
	}
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// View renders the progress display.
func (m waitModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m waitModel) renderContent() string {
	if m.done {
		return m.finalView()
	}
	if m.job == nil {
		return "Loading job status...\n"
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.job.State))
	bar := m.progress.ViewAs(stateProgress(m.job.State))
	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")
	return fmt.Sprintf("%s %s %s\n%s\n", status, bar, m.job.Mode(), hint)
}

func (m waitModel) finalView() string {
	if m.quitting || m.timedOut {
		msg := fmt.Sprintf("\nJob %s continues in background.\nUse 'litlab jobs %s' to check status.\n",
			m.jobID, m.jobID)
		return m.theme.hintStyle().Render(msg)
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Job failed: %s\n", m.err))
	}

	var b strings.Builder
	b.WriteString(m.theme.completedStyle().Render("✓ Completed") + "\n")
	if m.job != nil {
		fmt.Fprintf(&b, "  Lessons created: %d\n", len(m.job.LessonIDs))
	}
	return b.String()
}

// stateProgress maps a job state to a rough completion fraction.
func stateProgress(s models.JobState) float64 {
	switch s {
	case models.JobStateQueued:
		return 0.1
	case models.JobStateProcessing:
		return 0.5
	default:
		return 1
	}
}

// fetchJob loads the job in a command so Update never blocks.
func (m waitModel) fetchJob() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		job, err := m.status(ctx, m.jobID)
		return jobUpdateMsg{job: job, err: err}
	}
}

// RunJobProgress shows a running job until it reaches a terminal state.
// Ctrl+C and the deadline leave the job running and return the last seen
// state without error.
func RunJobProgress(status statusFunc, job *models.LabJob, deadline time.Duration) (*models.LabJob, error) {
	if job.State.IsTerminal() {
		return job, jobError(job)
	}

	p := tea.NewProgram(newWaitModel(status, job, newPollBackOff(deadline)))
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}

	m, ok := final.(waitModel)
	if !ok {
		return job, nil
	}
	if m.quitting || m.timedOut {
		return m.job, nil
	}
	return m.job, m.err
}

func jobError(job *models.LabJob) error {
	if job.State != models.JobStateFailed {
		return nil
	}
	if job.Error == "" {
		return errors.New("job failed with unknown error")
	}
	return errors.New(job.Error)
}
