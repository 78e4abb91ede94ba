package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/gaugeworks/cloudgauge/pkg/audit"
	"github.com/gaugeworks/cloudgauge/pkg/audit/cost"
	"github.com/gaugeworks/cloudgauge/pkg/audit/findings"
)

var (
	colorGreen  = lipgloss.Color("#00FF99")
	colorPurple = lipgloss.Color("#874BFD")
	colorText   = lipgloss.Color("#E2E8F0")
	colorSub    = lipgloss.Color("#64748B")
	colorDanger = lipgloss.Color("#FF0055")
	colorWarn   = lipgloss.Color("#F59E0B")

	subtle    = lipgloss.NewStyle().Foreground(colorSub)
	highlight = lipgloss.NewStyle().Foreground(colorPurple).Bold(true)
	special   = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	danger    = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	warning   = lipgloss.NewStyle().Foreground(colorWarn)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSub).
			Padding(0, 2).
			MarginRight(1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(colorPurple).
			Bold(true).
			MarginTop(1)

	badgeCritical = lipgloss.NewStyle().Foreground(colorDanger).Bold(true).SetString("[CRITICAL]")
	badgeHigh     = lipgloss.NewStyle().Foreground(colorWarn).SetString("[HIGH]")
	badgeMedium   = lipgloss.NewStyle().Foreground(colorText).SetString("[MEDIUM]")
	badgeLow      = lipgloss.NewStyle().Foreground(colorSub).SetString("[LOW]")
	badgeInfo     = lipgloss.NewStyle().Foreground(colorPurple).SetString("[INFO]")
)

// Summary renders the post-scan terminal report: KPI cards, quick wins,
// bottlenecks, and the security checklist.
func Summary(res *audit.Result) string {
	if res == nil || res.Findings == nil {
		return ""
	}
	rep := res.Findings

	var b strings.Builder

	meta := fmt.Sprintf("account %s | %s | %s",
		res.Account,
		strings.Join(res.Regions, ", "),
		res.Duration.Round(time.Millisecond))
	b.WriteString(highlight.Render("CLOUDGAUGE AUDIT") + "  " + subtle.Render(meta) + "\n\n")

	resources := 0
	if res.Inventory != nil {
		resources = res.Inventory.TotalRecords()
	}
	waste := rep.TotalSavings()
	wasteStr := special.Render(fmt.Sprintf("$%.2f/mo", waste))
	if waste > 0 {
		wasteStr = danger.Render(fmt.Sprintf("$%.2f/mo", waste))
	}
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		card("RESOURCES", fmt.Sprintf("%d", resources)),
		card("MONTHLY WASTE", wasteStr),
		card("SECURITY", scoreStyle(rep.SecurityScore).Render(fmt.Sprintf("%d/100", rep.SecurityScore))),
		card("FINDINGS", fmt.Sprintf("%d", len(rep.All()))),
	)
	b.WriteString(cards + "\n")

	if len(rep.QuickWins) > 0 {
		b.WriteString(sectionStyle.Render("QUICK WINS") + "\n")
		for i, f := range rep.QuickWins {
			b.WriteString(fmt.Sprintf(" %d. %s  %-22s %s\n",
				i+1,
				special.Render(fmt.Sprintf("$%8.2f/mo", f.EstimatedMonthlySavingsUSD)),
				f.Rule,
				subtle.Render(resourceLabel(f))))
		}
	}

	if len(rep.Bottlenecks) > 0 {
		b.WriteString(sectionStyle.Render("BOTTLENECKS") + "\n")
		for _, f := range rep.Bottlenecks {
			b.WriteString(fmt.Sprintf(" %s %s %s\n",
				severityBadge(f.Severity), resourceLabel(f), subtle.Render(f.Message)))
		}
	}

	if len(rep.SecurityFindings) > 0 {
		b.WriteString(sectionStyle.Render("SECURITY") + "\n")
		for _, f := range rep.SecurityFindings {
			b.WriteString(fmt.Sprintf(" %s %s %s\n",
				severityBadge(f.Severity), resourceLabel(f), subtle.Render(f.Message)))
		}
	}
	for _, sk := range rep.SkippedChecks {
		b.WriteString(subtle.Render(fmt.Sprintf(" [SKIPPED] %s: %s", sk.Check, sk.Reason)) + "\n")
	}

	if rep.Suppressed > 0 {
		b.WriteString(subtle.Render(fmt.Sprintf("\n%d finding(s) suppressed by policy", rep.Suppressed)) + "\n")
	}
	if res.Partial {
		b.WriteString(warning.Render(fmt.Sprintf(
			"\nPartial result: %d probe unit(s) skipped, see diagnostics in the JSON export", res.DiagnosticCount())) + "\n")
	}

	return b.String()
}

// CostSummary renders the spend report for the cost command.
func CostSummary(rep *cost.Report) string {
	if rep == nil {
		return ""
	}

	var b strings.Builder
	title := fmt.Sprintf("SPEND LAST %d DAYS", rep.Days)
	b.WriteString(highlight.Render(title) + "  " + special.Render(fmt.Sprintf("$%.2f", rep.TotalUSD)) + "\n")

	b.WriteString(sectionStyle.Render("BY SERVICE") + "\n")
	for _, e := range rep.ByService {
		b.WriteString(costRow(e))
	}
	if len(rep.ByRegion) > 0 {
		b.WriteString(sectionStyle.Render("BY REGION") + "\n")
		for _, e := range rep.ByRegion {
			b.WriteString(costRow(e))
		}
	}
	for _, note := range rep.Notes {
		b.WriteString(subtle.Render(" note: "+note) + "\n")
	}
	return b.String()
}

func costRow(e cost.Entry) string {
	cells := int(e.PercentageOfTotal / 100 * 24)
	if cells > 24 {
		cells = 24
	}
	bar := special.Render(strings.Repeat("█", cells)) + subtle.Render(strings.Repeat("░", 24-cells))
	return fmt.Sprintf(" %-44s %10s  %s %5.1f%%\n",
		truncate(e.Key, 44), fmt.Sprintf("$%.2f", e.AmountUSD), bar, e.PercentageOfTotal)
}

func card(label, val string) string {
	return cardStyle.Render(subtle.Render(label) + "\n" + val)
}

func scoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 80:
		return special
	case score >= 50:
		return warning
	default:
		return danger
	}
}

func severityBadge(s findings.Severity) string {
	switch s {
	case findings.SeverityCritical:
		return badgeCritical.String()
	case findings.SeverityHigh:
		return badgeHigh.String()
	case findings.SeverityMedium:
		return badgeMedium.String()
	case findings.SeverityLow:
		return badgeLow.String()
	default:
		return badgeInfo.String()
	}
}

func resourceLabel(f findings.Finding) string {
	if f.Resource == nil {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", f.Resource.ID, f.Resource.Region)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
