package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorGreen   = lipgloss.Color("#00FF99") // Success / Savings
	colorPurple  = lipgloss.Color("#874BFD") // Headers / Border
	colorText    = lipgloss.Color("#E2E8F0") // Main Text
	colorSub     = lipgloss.Color("#64748B") // Subtext
	colorDanger  = lipgloss.Color("#FF0055") // Critical
	colorWarning = lipgloss.Color("#F59E0B") // Warning

	subtle    = lipgloss.NewStyle().Foreground(colorSub)
	dimStyle  = lipgloss.NewStyle().Foreground(colorSub)
	textStyle = lipgloss.NewStyle().Foreground(colorText)
	highlight = lipgloss.NewStyle().Foreground(colorPurple).Bold(true)
	special   = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	danger    = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	warning   = lipgloss.NewStyle().Foreground(colorWarning)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorPurple).
			Bold(true).
			Padding(0, 1)

	// HUD Styles
	hudStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPurple).
			Padding(0, 1).
			Foreground(colorText)

	hudLabelStyle = lipgloss.NewStyle().
			Foreground(colorSub).
			Bold(true).
			MarginRight(1)

	hudValueStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	// List Styles
	listSelectedStyle = lipgloss.NewStyle().
				Foreground(colorText).
				Background(lipgloss.Color("#331832")).
				Bold(true)

	listNormalStyle = lipgloss.NewStyle().
			Foreground(colorSub)

	// Icon Styles (Text Based - No Emojis)
	badgeCritical = lipgloss.NewStyle().Foreground(colorDanger).SetString("[CRITICAL]")
	badgeHigh     = lipgloss.NewStyle().Foreground(colorWarning).SetString("[HIGH]")
	badgeMedium   = lipgloss.NewStyle().Foreground(colorPurple).SetString("[MEDIUM]")
	badgeLow      = lipgloss.NewStyle().Foreground(colorSub).SetString("[LOW]")
	badgeInfo     = lipgloss.NewStyle().Foreground(colorSub).SetString("[INFO]")
	iconSafe      = lipgloss.NewStyle().Foreground(colorGreen).SetString("[SAFE]")

	// Details Pane
	detailsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorGreen).
			Padding(1, 2).
			MarginTop(1)

	detailsHeaderStyle = lipgloss.NewStyle().
				Foreground(colorPurple).
				Bold(true).
				Underline(true).
				MarginBottom(1)
)
