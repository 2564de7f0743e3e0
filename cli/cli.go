// cli/cli.go
package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/simbacat/simbacat/harness"
)

const (
	padding  = 2
	maxWidth = 80
)

// Job is a long-running operation that reports progress through report.
// It must return once ctx is cancelled.
type Job func(ctx context.Context, report harness.ProgressFunc) error

type progressMsg harness.Progress

type doneMsg struct{ err error }

// progressModel shows a spinner, a progress bar and the latest run of every
// engine while a Job runs.
type progressModel struct {
	title   string
	total   int
	spinner spinner.Model
	bar     progress.Model
	// engines holds the latest update per engine, so concurrent sweeps show
	// one line per workspace.
	engines map[string]harness.Progress
	done    int

	start       time.Time
	finished    bool
	interrupted bool
	err         error
	cancel      context.CancelFunc
}

func newProgressModel(title string, total int, cancel context.CancelFunc) *progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = maxWidth - padding*2

	return &progressModel{
		title:   title,
		total:   total,
		spinner: s,
		bar:     bar,
		engines: map[string]harness.Progress{},
		start:   time.Now(),
		cancel:  cancel,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.interrupted = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-padding*2-4, maxWidth)
		return m, nil

	case progressMsg:
		p := harness.Progress(msg)
		m.engines[p.Engine] = p
		m.done = max(m.done, p.Done)
		if p.Total > 0 {
			m.total = p.Total
		}
		return m, nil

	case doneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) percent() float64 {
	if m.total <= 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

func (m *progressModel) View() string {
	elapsed := fmt.Sprintf("%.1fs", time.Since(m.start).Seconds())
	pad := strings.Repeat(" ", padding)

	if m.finished {
		if m.err != nil {
			errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
			return pad + errorStyle.Render(fmt.Sprintf("✗ %s failed after %s: %v", m.title, elapsed, m.err)) + "\n"
		}
		return fmt.Sprintf("%s✓ %s: %d/%d runs in %s\n", pad, m.title, m.done, m.total, elapsed)
	}
	if m.interrupted {
		return pad + "Cancelling...\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s%s %s  %d/%d runs  %s\n", pad, m.spinner.View(), m.title, m.done, m.total, elapsed)
	b.WriteString(pad + m.bar.ViewAs(m.percent()) + "\n")

	names := make([]string, 0, len(m.engines))
	for name := range m.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	faint := lipgloss.NewStyle().Faint(true)
	for _, name := range names {
		b.WriteString(pad + faint.Render(describe(m.engines[name])) + "\n")
	}
	b.WriteString(pad + faint.Render("(q to cancel)") + "\n")
	return b.String()
}

// describe renders one engine's latest run, e.g. "engine-1: value 0.5, run 3".
func describe(p harness.Progress) string {
	if p.Swept {
		return fmt.Sprintf("%s: value %v, run %d", p.Engine, p.Value, p.Run)
	}
	return fmt.Sprintf("%s: run %d", p.Engine, p.Run)
}

// RunProgress runs job while drawing its progress on stderr. Pressing q or
// ctrl+c cancels the job's context; RunProgress still waits for the job to
// return and reports its error.
func RunProgress(ctx context.Context, title string, total int, job Job, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newProgressModel(title, total, cancel)
	opts = append([]tea.ProgramOption{tea.WithOutput(os.Stderr), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(m, opts...)

	result := make(chan error, 1)
	go func() {
		err := job(ctx, func(pr harness.Progress) { p.Send(progressMsg(pr)) })
		result <- err
		p.Send(doneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		if jobErr := <-result; jobErr != nil {
			return jobErr
		}
		return fmt.Errorf("progress view: %w", err)
	}
	return <-result
}
