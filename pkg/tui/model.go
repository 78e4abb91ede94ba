// Package tui is an interactive browser over a completed scan result. It
// renders a findings list, a per-finding detail pane, and an inventory tree
// grouped by region and type. The result is never mutated; every view is a
// projection.
package tui

import (
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gaugeworks/cloudgauge/pkg/audit"
	"github.com/gaugeworks/cloudgauge/pkg/audit/findings"
	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

type ViewState int

const (
	ViewStateList ViewState = iota
	ViewStateDetail
	ViewStateInventory
)

// inventoryLine is one row of the flattened region/type/resource tree.
// Record is nil for region and type header lines.
type inventoryLine struct {
	Text   string
	Level  int
	Record *inventory.ResourceRecord
}

type Model struct {
	res *audit.Result

	// state
	state    ViewState
	quitting bool
	width    int
	height   int

	// data
	rows   []findings.Finding
	filter findings.Category

	// navigation
	cursor    int
	invLines  []inventoryLine
	invCursor int
}

// NewModel builds the browser over a finished result.
func NewModel(res *audit.Result) Model {
	m := Model{res: res, state: ViewStateList}
	m.rebuild()
	m.buildInventory()
	return m
}

// Run opens the browser and blocks until the user quits.
func Run(res *audit.Result) error {
	p := tea.NewProgram(NewModel(res))
	_, err := p.Run()
	return err
}

// rebuild refreshes the visible rows from the result, applying the active
// category filter. Rows order by severity, then savings descending.
func (m *Model) rebuild() {
	m.rows = m.rows[:0]
	if m.res == nil || m.res.Findings == nil {
		return
	}
	for _, f := range m.res.Findings.All() {
		if m.filter != "" && f.Category != m.filter {
			continue
		}
		m.rows = append(m.rows, f)
	}
	sort.SliceStable(m.rows, func(i, j int) bool {
		a, b := m.rows[i], m.rows[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra < rb
		}
		return a.EstimatedMonthlySavingsUSD > b.EstimatedMonthlySavingsUSD
	})
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "up", "k":
			if m.state == ViewStateInventory {
				if m.invCursor > 0 {
					m.invCursor--
				}
			} else if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.state == ViewStateInventory {
				if m.invCursor < len(m.invLines)-1 {
					m.invCursor++
				}
			} else if m.cursor < len(m.rows)-1 {
				m.cursor++
			}

		case "enter", " ":
			if m.state == ViewStateList && len(m.rows) > 0 {
				m.state = ViewStateDetail
			} else if m.state == ViewStateDetail {
				m.state = ViewStateList
			}

		case "esc":
			m.state = ViewStateList

		case "tab":
			if m.state == ViewStateInventory {
				m.state = ViewStateList
			} else {
				m.state = ViewStateInventory
			}

		case "1":
			m.setFilter(findings.CategoryBottleneck)
		case "2":
			m.setFilter(findings.CategoryCost)
		case "3":
			m.setFilter(findings.CategorySecurity)
		case "a":
			m.setFilter("")
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

// setFilter applies a category filter; selecting the active one clears it.
func (m *Model) setFilter(c findings.Category) {
	if m.filter == c {
		c = ""
	}
	m.filter = c
	m.cursor = 0
	m.state = ViewStateList
	m.rebuild()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.res == nil || m.res.Findings == nil {
		return "\n  No scan result to display.\n"
	}

	s := strings.Builder{}
	s.WriteString(m.viewHUD())
	s.WriteString("\n")

	switch m.state {
	case ViewStateDetail:
		s.WriteString(m.viewDetails())
	case ViewStateInventory:
		s.WriteString(m.viewInventory())
	default:
		s.WriteString(m.viewList())
	}

	s.WriteString("\n")
	s.WriteString(m.viewHelp())
	return s.String()
}

// record resolves a finding's resource key back to its inventory record.
func (m Model) record(k *inventory.Key) (inventory.ResourceRecord, bool) {
	if k == nil || m.res.Inventory == nil {
		return inventory.ResourceRecord{}, false
	}
	for _, rec := range m.res.Inventory.Regions[k.Region][k.Type] {
		if rec.ID == k.ID {
			return rec, true
		}
	}
	return inventory.ResourceRecord{}, false
}
