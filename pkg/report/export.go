// Package report turns a scan result into artifacts: machine-readable
// JSON and CSV exports plus a styled terminal summary.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/gaugeworks/cloudgauge/pkg/audit"
	"github.com/gaugeworks/cloudgauge/pkg/audit/findings"
)

// Item is one finding flattened for export.
type Item struct {
	Category       string  `json:"category"`
	Severity       string  `json:"severity"`
	Rule           string  `json:"rule"`
	ResourceID     string  `json:"resource_id"`
	ResourceType   string  `json:"resource_type"`
	Region         string  `json:"region"`
	Message        string  `json:"message"`
	Recommendation string  `json:"recommendation"`
	MonthlySavings float64 `json:"monthly_savings"`
}

// Items flattens every finding in the report, sorted by estimated monthly
// savings descending. Ties keep the report's own ordering, so the output
// is deterministic for identical inputs.
func Items(rep *findings.Report) []Item {
	if rep == nil {
		return nil
	}
	var items []Item
	for _, f := range rep.All() {
		item := Item{
			Category:       string(f.Category),
			Severity:       string(f.Severity),
			Rule:           f.Rule,
			Message:        f.Message,
			Recommendation: f.Recommendation,
			MonthlySavings: f.EstimatedMonthlySavingsUSD,
		}
		if f.Resource != nil {
			item.ResourceID = f.Resource.ID
			item.ResourceType = string(f.Resource.Type)
			item.Region = f.Resource.Region
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].MonthlySavings > items[j].MonthlySavings
	})
	return items
}

// WriteJSON writes the full scan result to path, indented for humans and
// diff tools alike.
func WriteJSON(res *audit.Result, path string) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// WriteCSV writes the flattened findings to path, one row per finding,
// highest savings first.
func WriteCSV(rep *findings.Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{
		"Category",
		"Severity",
		"Rule",
		"ResourceID",
		"Type",
		"Region",
		"MonthlySavings",
		"Message",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, item := range Items(rep) {
		record := []string{
			item.Category,
			item.Severity,
			item.Rule,
			item.ResourceID,
			item.ResourceType,
			item.Region,
			fmt.Sprintf("$%.2f", item.MonthlySavings),
			item.Message,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
