package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gaugeworks/cloudgauge/pkg/audit/findings"
)

func (m Model) viewDetails() string {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return "\n   " + subtle.Render("No finding selected.")
	}
	f := m.rows[m.cursor]

	header := detailsHeaderStyle.Render(
		fmt.Sprintf("%s : %s", strings.ToUpper(string(f.Category)), f.Rule))

	intel := []string{severityBadge(f.Severity).Render() + "  " + textStyle.Render(f.Message)}
	if f.EstimatedMonthlySavingsUSD > 0 {
		intel = append(intel, special.Render(
			fmt.Sprintf("MONTHLY WASTE: $%.2f", f.EstimatedMonthlySavingsUSD)))
	}
	if f.Resource != nil {
		if entry, ok := m.res.ResourceCosts[*f.Resource]; ok {
			source := "billed"
			if entry.IsEstimated {
				source = "estimated"
			}
			intel = append(intel, warning.Render(
				fmt.Sprintf("MONTHLY COST:  $%.2f (%s)", entry.AmountUSD, source)))
		}
	}

	var props []string
	props = append(props, fmt.Sprintf("%-16s : %s", "Severity", string(f.Severity)))
	if f.Resource != nil {
		props = append(props,
			fmt.Sprintf("%-16s : %s", "Resource", f.Resource.ID),
			fmt.Sprintf("%-16s : %s", "Type", string(f.Resource.Type)),
			fmt.Sprintf("%-16s : %s", "Region", f.Resource.Region))
	}
	if rec, ok := m.record(f.Resource); ok {
		if rec.Name != "" {
			props = append(props, fmt.Sprintf("%-16s : %s", "Name", rec.Name))
		}
		if rec.State != "" {
			props = append(props, fmt.Sprintf("%-16s : %s", "State", rec.State))
		}
		var tagKeys []string
		for k := range rec.Tags {
			tagKeys = append(tagKeys, k)
		}
		sort.Strings(tagKeys)
		for _, k := range tagKeys {
			props = append(props, fmt.Sprintf("%-16s : %s", "tag:"+k, rec.Tags[k]))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinVertical(lipgloss.Left, intel...),
		"",
		dimStyle.Render(strings.Join(props, "\n")),
	)

	if f.Recommendation != "" {
		content = lipgloss.JoinVertical(lipgloss.Left,
			content,
			"",
			highlight.Render("RECOMMENDED:"),
			f.Recommendation,
		)
	}

	return detailsBoxStyle.Render(content)
}

func severityBadge(s findings.Severity) lipgloss.Style {
	switch s {
	case findings.SeverityCritical:
		return badgeCritical
	case findings.SeverityHigh:
		return badgeHigh
	case findings.SeverityMedium:
		return badgeMedium
	case findings.SeverityLow:
		return badgeLow
	default:
		return badgeInfo
	}
}
