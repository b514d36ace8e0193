package cli

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/complycheck/internal/models"
)

// recentRows is how many verdicts the progress view keeps on screen.
const recentRows = 5

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Warning:    lipgloss.Color("#FFAF00"), // amber
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
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

// verdictStyle colors a requirement status.
func (t Theme) verdictStyle(s models.Status) lipgloss.Style {
	switch s {
	case models.StatusCompliant:
		return lipgloss.NewStyle().Foreground(t.Success)
	case models.StatusPartiallyCompliant:
		return lipgloss.NewStyle().Foreground(t.Warning)
	case models.StatusNonCompliant, models.StatusError:
		return lipgloss.NewStyle().Foreground(t.Error)
	default:
		return lipgloss.NewStyle()
	}
}

// updateMsg carries one update from the task stream.
type updateMsg models.TaskUpdate

// streamClosedMsg reports that the update channel was closed.
type streamClosedMsg struct{}

// progressModel is the bubbletea model for task progress.
type progressModel struct {
	taskID   string
	updates  <-chan models.TaskUpdate
	last     *models.TaskUpdate
	rows     []models.EvaluationRow
	progress progress.Model
	theme    Theme
	quitHint string
	done     bool
	quitting bool
}

// newProgressModel creates a progress model reading from updates.
func newProgressModel(taskID string, updates <-chan models.TaskUpdate, quitHint string) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		taskID:   taskID,
		updates:  updates,
		progress: prog,
		theme:    defaultTheme,
		quitHint: quitHint,
	}
}

// Init starts reading the stream.
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		waitForUpdate(m.updates),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case updateMsg:
		u := models.TaskUpdate(msg)
		m.last = &u
		if u.LatestRow != nil {
			m.rows = append(m.rows, *u.LatestRow)
			if len(m.rows) > recentRows {
				m.rows = m.rows[len(m.rows)-recentRows:]
			}
		}
		if u.Terminal {
			m.done = true
			return m, tea.Quit
		}
		return m, waitForUpdate(m.updates)

	case streamClosedMsg:
		m.done = true
		return m, tea.Quit

	case progress.FrameMsg:
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

func (m progressModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}
	if m.last == nil {
		return "Waiting for task " + m.taskID + "...\n"
	}

	u := m.last
	var b strings.Builder
	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", u.Phase))
	counts := ""
	if u.Summary.Total > 0 {
		counts = fmt.Sprintf("%d/%d requirements", u.Summary.Processed, u.Summary.Total)
	}
	fmt.Fprintf(&b, "%s %s %s\n", status, m.progress.ViewAs(float64(u.Progress)/100), counts)
	fmt.Fprintf(&b, "%s\n", u.Message)

	for _, r := range m.rows {
		fmt.Fprintf(&b, "  %-12s %s\n", r.RequirementID, m.theme.verdictStyle(r.Status).Render(string(r.Status)))
	}

	b.WriteString(m.theme.hintStyle().Render(m.quitHint))
	b.WriteString("\n")
	return b.String()
}

func (m progressModel) finalView() string {
	if m.quitting {
		return ""
	}
	if m.last == nil {
		return m.theme.errorStyle().Render("\n✗ Stream ended before any update\n")
	}

	switch m.last.Status {
	case models.TaskCompleted:
		s := m.last.Summary
		return m.theme.completedStyle().Render("✓ Completed") +
			fmt.Sprintf("  %d compliant, %d partial, %d non-compliant, %d errors\n",
				s.Compliant, s.PartiallyCompliant, s.NonCompliant, s.Error)
	case models.TaskCancelled:
		return m.theme.hintStyle().Render(fmt.Sprintf("Cancelled after %d requirements\n", m.last.Summary.Processed))
	case models.TaskFailed:
		return m.theme.errorStyle().Render(fmt.Sprintf("✗ Failed: %s\n", m.last.Error))
	default:
		return m.theme.hintStyle().Render(fmt.Sprintf("Stream ended while %s\n", m.last.Status))
	}
}

// waitForUpdate reads the next update in a command so Update never blocks.
func waitForUpdate(ch <-chan models.TaskUpdate) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return updateMsg(u)
	}
}

// ProgressResult is what the progress UI observed.
type ProgressResult struct {
	Last     *models.TaskUpdate
	Quitting bool
}

// RunTaskProgress shows the interactive progress UI until the task ends,
// the stream closes or the user quits. quitHint is shown under the bar.
func RunTaskProgress(taskID string, updates <-chan models.TaskUpdate, quitHint string) (ProgressResult, error) {
	p := tea.NewProgram(newProgressModel(taskID, updates, quitHint))

	finalModel, err := p.Run()
	if err != nil {
		return ProgressResult{}, fmt.Errorf("progress UI error: %w", err)
	}

	m, ok := finalModel.(progressModel)
	if !ok {
		return ProgressResult{}, nil
	}
	return ProgressResult{Last: m.last, Quitting: m.quitting}, nil
}
