package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gaugeworks/cloudgauge/pkg/audit/findings"
)

func (m Model) viewHUD() string {
	rep := m.res.Findings

	segTitle := titleStyle.Render("CLOUDGAUGE")

	scope := strings.Join(m.res.Regions, ", ")
	if m.res.Account != "" {
		scope = m.res.Account + " | " + scope
	}
	segScope := subtle.Render("[ " + scope + " ]")

	segWaste := hudLabelStyle.Render("WASTE:") +
		hudValueStyle.Render(fmt.Sprintf("$%.2f/mo", rep.TotalSavings()))

	segScore := hudLabelStyle.Render("SECURITY:") +
		scoreColor(rep.SecurityScore).Render(fmt.Sprintf("%d/100", rep.SecurityScore))

	parts := []string{segTitle, " ", segScope, "  ", segWaste, "  ", segScore}
	if m.res.Partial {
		parts = append(parts, "  ", warning.Render("[PARTIAL]"))
	}

	return hudStyle.Render(lipgloss.JoinHorizontal(lipgloss.Center, parts...))
}

func scoreColor(score int) lipgloss.Style {
	switch {
	case score >= 80:
		return special
	case score >= 50:
		return warning
	default:
		return danger
	}
}

func (m Model) viewList() string {
	s := strings.Builder{}

	rows := m.rows
	if len(rows) == 0 {
		if m.filter != "" {
			return "\n   " + subtle.Render("No findings in this category.") + "\n"
		}
		return "\n   " + iconSafe.Render() + subtle.Render("  No findings. Estate looks healthy.") + "\n"
	}

	headerTxt := fmt.Sprintf("  %-10s %-24s | %-20s | %-10s | %s",
		"SEVERITY", "RULE", "RESOURCE", "SAVINGS", "MESSAGE")
	s.WriteString(dimStyle.Render(headerTxt) + "\n")

	if m.filter != "" {
		s.WriteString(warning.Render(fmt.Sprintf("   [FILTER: %s]", m.filter)) + "\n")
	} else {
		s.WriteString(dimStyle.Render("  "+strings.Repeat("─", 76)) + "\n")
	}

	start, end := m.calculateWindow(len(rows))
	for i := start; i < end; i++ {
		f := rows[i]

		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}

		resID := "-"
		if f.Resource != nil {
			resID = f.Resource.ID
		}
		if len(resID) > 20 {
			resID = resID[:17] + "..."
		}

		rule := f.Rule
		if len(rule) > 24 {
			rule = rule[:24]
		}

		msg := f.Message
		if len(msg) > 40 {
			msg = msg[:37] + "..."
		}

		baseLine := fmt.Sprintf("%-10s %-24s | %-20s | %-10s | %s",
			severityTag(f.Severity), rule, resID,
			fmt.Sprintf("$%.2f", f.EstimatedMonthlySavingsUSD), msg)

		switch f.Severity {
		case findings.SeverityCritical:
			baseLine = danger.Render(baseLine)
		case findings.SeverityHigh:
			baseLine = warning.Render(baseLine)
		}

		line := cursor + baseLine
		if i == m.cursor {
			s.WriteString(listSelectedStyle.Render(line) + "\n")
		} else {
			s.WriteString(listNormalStyle.Render(line) + "\n")
		}
	}

	if end < len(rows) {
		s.WriteString(dimStyle.Render(fmt.Sprintf("   ... %d more", len(rows)-end)) + "\n")
	}

	return s.String()
}

func (m Model) viewHelp() string {
	switch m.state {
	case ViewStateDetail:
		return helpStyle("esc: back | up/down: prev/next finding | q: quit")
	case ViewStateInventory:
		return helpStyle("tab: findings | up/down: navigate | q: quit")
	default:
		return helpStyle("enter: details | 1/2/3: filter bottleneck/cost/security | a: all | tab: inventory | q: quit")
	}
}

func severityTag(s findings.Severity) string {
	return "[" + strings.ToUpper(string(s)) + "]"
}

func helpStyle(s string) string {
	return subtle.Render(s)
}

func (m Model) calculateWindow(total int) (int, int) {
	windowSize := m.height - 8 // HUD, header, footer
	if windowSize < 5 {
		windowSize = 5
	}

	start := m.cursor - (windowSize / 2)
	if start < 0 {
		start = 0
	}

	end := start + windowSize
	if end > total {
		end = total
		start = end - windowSize
		if start < 0 {
			start = 0
		}
	}
	return start, end
}
