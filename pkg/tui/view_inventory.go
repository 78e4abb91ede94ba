package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

// viewInventory renders the discovered estate as a region/type tree.
func (m Model) viewInventory() string {
	s := strings.Builder{}

	headerTxt := fmt.Sprintf("   %-50s | %-12s | %s",
		"INVENTORY (Region -> Type -> Resource)", "STATE", "NAME")
	s.WriteString(dimStyle.Render(headerTxt) + "\n")
	s.WriteString(dimStyle.Render("   "+strings.Repeat("─", 60)) + "\n")

	if len(m.invLines) == 0 {
		return "\n\n   " + subtle.Render("No resources discovered.")
	}

	start, end := m.calculateInventoryWindow(len(m.invLines))
	for i := start; i < end; i++ {
		line := m.invLines[i]
		isSelected := i == m.invCursor

		treePart := line.Text
		if len(treePart) > 50 {
			treePart = treePart[:47] + "..."
		}

		state, name := "", ""
		if line.Record != nil {
			state = line.Record.State
			name = line.Record.Name
		}

		displayLine := fmt.Sprintf(" %-50s | %-12s | %s", treePart, state, name)
		if isSelected {
			s.WriteString(listSelectedStyle.Render(displayLine) + "\n")
		} else {
			s.WriteString(listNormalStyle.Render(displayLine) + "\n")
		}
	}

	if end < len(m.invLines) {
		s.WriteString(dimStyle.Render(fmt.Sprintf("   ... %d more", len(m.invLines)-end)) + "\n")
	}

	return s.String()
}

// buildInventory flattens the region/type/resource hierarchy into display
// lines. Records are copied before sorting so the inventory stays untouched.
func (m *Model) buildInventory() {
	m.invLines = nil
	if m.res == nil || m.res.Inventory == nil {
		return
	}
	inv := m.res.Inventory

	var regions []string
	for r := range inv.Regions {
		regions = append(regions, r)
	}
	sort.Strings(regions)

	var lines []inventoryLine
	for _, region := range regions {
		byType := inv.Regions[region]

		var types []inventory.ResourceType
		for t := range byType {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

		total := 0
		for _, t := range types {
			total += len(byType[t])
		}
		lines = append(lines, inventoryLine{
			Text:  fmt.Sprintf("[R] %s (%d resources)", region, total),
			Level: 0,
		})

		for ti, t := range types {
			isLastType := ti == len(types)-1
			typePrefix := "├── "
			childIndent := "│   "
			if isLastType {
				typePrefix = "└── "
				childIndent = "    "
			}

			recs := byType[t]
			lines = append(lines, inventoryLine{
				Text:  fmt.Sprintf("%s[T] %s (%d)", typePrefix, t, len(recs)),
				Level: 1,
			})

			sorted := make([]inventory.ResourceRecord, len(recs))
			copy(sorted, recs)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

			for ri := range sorted {
				recPrefix := childIndent + "├── "
				if ri == len(sorted)-1 {
					recPrefix = childIndent + "└── "
				}
				lines = append(lines, inventoryLine{
					Text:   recPrefix + sorted[ri].ID,
					Level:  2,
					Record: &sorted[ri],
				})
			}
		}
	}
	m.invLines = lines
}

func (m Model) calculateInventoryWindow(total int) (int, int) {
	windowSize := m.height - 8
	if windowSize < 5 {
		windowSize = 5
	}

	start := m.invCursor - (windowSize / 2)
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
