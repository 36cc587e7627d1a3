package cli

import (
	"context"
	"fmt"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/cryoet-tools/morphorun/internal/runner"
	"github.com/cryoet-tools/morphorun/internal/status"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

// Style functions for dynamic theming
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

// sinkEventMsg carries one status update from the worker pool.
type sinkEventMsg struct {
	event status.Event
}

// jobDoneMsg carries the final summary once all items finished.
type jobDoneMsg struct {
	summary runner.Summary
}

// progressModel is the bubbletea model for job progress. It consumes
// the channel sink's events until the job closes the sink, then reads
// the final summary from done.
type progressModel struct {
	events <-chan status.Event
	done   <-chan runner.Summary
	cancel context.CancelFunc

	stageName  string
	statusText string
	percent    int
	progress   progress.Model
	theme      Theme

	summary   runner.Summary
	finished  bool
	cancelled bool
}

// newProgressModel creates a new progress model.
func newProgressModel(stageName string, events <-chan status.Event, done <-chan runner.Summary, cancel context.CancelFunc) progressModel {
	// Create progress bar with color blend
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		events:     events,
		done:       done,
		cancel:     cancel,
		stageName:  stageName,
		statusText: "starting",
		progress:   prog,
		theme:      defaultTheme,
	}
}

// Init returns the initial command (start listening for events).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		m.waitForEvent(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Cancel the job; remaining items drain as failures and the
			// summary still arrives, so keep listening instead of quitting.
			m.cancelled = true
			m.cancel()
			return m, nil
		}

	case sinkEventMsg:
		switch msg.event.Kind {
		case status.EventStatus:
			m.statusText = msg.event.Text
		case status.EventProgress:
			m.percent = msg.event.Percent
		case status.EventClear:
			m.statusText = ""
			m.percent = 0
		}
		return m, m.waitForEvent()

	case jobDoneMsg:
		m.summary = msg.summary
		m.finished = true
		return m, tea.Quit

	case progress.FrameMsg:
		// Update progress bar animation
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.finished {
		return m.finalView()
	}

	stage := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.stageName))
	bar := m.progress.ViewAs(float64(m.percent) / 100)

	line := fmt.Sprintf("%s %s %3d%%", stage, bar, m.percent)
	if m.statusText != "" {
		line += "  " + m.statusText
	}
	if m.cancelled {
		hint := m.theme.hintStyle().Render("Cancelling, waiting for running items...")
		return fmt.Sprintf("%s\n%s\n", line, hint)
	}

	hint := m.theme.hintStyle().Render("Press Ctrl+C to cancel")
	return fmt.Sprintf("%s\n%s\n", line, hint)
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	s := m.summary
	if m.cancelled {
		return m.theme.errorStyle().Render(
			fmt.Sprintf("\n✗ Cancelled: %d of %d items finished\n", s.Succeeded, s.Total))
	}

	if s.Failed > 0 {
		out := m.theme.errorStyle().Render(
			fmt.Sprintf("\n✗ Completed with errors: %d succeeded, %d failed\n", s.Succeeded, s.Failed))
		for _, r := range s.Results {
			if r.Success {
				continue
			}
			out += fmt.Sprintf("  • %s (exit %d)\n", r.ItemID, r.ExitCode)
		}
		return out
	}

	return m.theme.completedStyle().Render(
		fmt.Sprintf("\n✓ Completed: %d items\n", s.Succeeded))
}

// waitForEvent blocks on the sink channel in a command goroutine. A
// closed channel means the job is over, so read the summary instead.
func (m progressModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		if ev, ok := <-m.events; ok {
			return sinkEventMsg{event: ev}
		}
		return jobDoneMsg{summary: <-m.done}
	}
}

// RunJobProgress runs the interactive progress UI for a stage job and
// returns the final summary. cancel is invoked when the user aborts;
// the UI stays up until the drained summary arrives.
func RunJobProgress(stageName string, events <-chan status.Event, done <-chan runner.Summary, cancel context.CancelFunc) (runner.Summary, error) {
	model := newProgressModel(stageName, events, done, cancel)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return runner.Summary{}, fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		return m.summary, nil
	}
	return runner.Summary{}, nil
}
