package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gaugeworks/cloudgauge/pkg/audit"
)

// scanDoneMsg delivers the pipeline outcome to the activity screen.
type scanDoneMsg struct {
	res *audit.Result
	err error
}

type tickMsg time.Time

// ScanModel is the activity screen shown while the pipeline runs, so an
// interactive session is not a frozen prompt during a multi-region scan.
type ScanModel struct {
	spinner spinner.Model
	run     func() (*audit.Result, error)

	scope   string
	started time.Time
	elapsed time.Duration

	done     bool
	quitting bool
	res      *audit.Result
	err      error
}

func NewScanModel(scope string, run func() (*audit.Result, error)) ScanModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = special

	return ScanModel{
		spinner: s,
		run:     run,
		scope:   scope,
		started: time.Now(),
	}
}

// RunScan drives the pipeline behind an activity screen and returns its
// outcome. Quitting before the pipeline finishes reports an error; the
// terminal is handed back either way.
func RunScan(scope string, run func() (*audit.Result, error)) (*audit.Result, error) {
	p := tea.NewProgram(NewScanModel(scope, run))
	out, err := p.Run()
	if err != nil {
		return nil, err
	}
	m, ok := out.(ScanModel)
	if !ok || !m.done {
		return nil, errors.New("scan canceled")
	}
	return m.res, m.err
}

func (m ScanModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick(), m.start())
}

// start runs the pipeline off the event loop and reports back as a message.
func (m ScanModel) start() tea.Cmd {
	run := m.run
	return func() tea.Msg {
		res, err := run()
		return scanDoneMsg{res: res, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		m.elapsed = time.Since(m.started)
		return m, tick()

	case scanDoneMsg:
		m.done = true
		m.res = msg.res
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m ScanModel) View() string {
	if m.done || m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("CLOUDGAUGE") + "\n\n")
	b.WriteString(fmt.Sprintf("  %s %s\n", m.spinner.View(), textStyle.Render("Auditing "+m.scope)))
	b.WriteString("  " + subtle.Render(fmt.Sprintf("elapsed %s", m.elapsed.Round(time.Second))) + "\n\n")
	b.WriteString("  " + subtle.Render("q: cancel") + "\n")
	return b.String()
}
