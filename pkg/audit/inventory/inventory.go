package inventory

import (
	"sort"

	"github.com/gaugeworks/cloudgauge/pkg/audit/faults"
)

// Diagnostic records one failed probe unit. The class is derived from the
// error, never free text, so callers can tell a missing permission from a
// region that needs opt-in.
type Diagnostic struct {
	Region  string       `json:"region"`
	Type    ResourceType `json:"type"`
	Class   faults.Class `json:"class"`
	Message string       `json:"message"`
}

// Inventory is the aggregated result of one discovery run. Records are
// grouped by region then type; Summary counts records per type across all
// regions; Diagnostics lists every failed unit. A populated Diagnostics
// alongside populated Regions is the normal partial-result shape.
type Inventory struct {
	Regions     map[string]map[ResourceType][]ResourceRecord `json:"regions"`
	Summary     map[ResourceType]int                         `json:"summary"`
	Diagnostics []Diagnostic                                 `json:"diagnostics"`
}

// NewInventory returns an empty inventory ready for aggregation.
func NewInventory() *Inventory {
	return &Inventory{
		Regions: make(map[string]map[ResourceType][]ResourceRecord),
		Summary: make(map[ResourceType]int),
	}
}

// Add appends records under one region and type and updates the summary.
// The orchestrator is the usual caller; mock assemblies use it directly.
func (inv *Inventory) Add(region string, t ResourceType, recs []ResourceRecord) {
	byType, ok := inv.Regions[region]
	if !ok {
		byType = make(map[ResourceType][]ResourceRecord)
		inv.Regions[region] = byType
	}
	byType[t] = append(byType[t], recs...)
	inv.Summary[t] += len(recs)
}

// TotalRecords returns the record count across all regions and types.
func (inv *Inventory) TotalRecords() int {
	total := 0
	for _, n := range inv.Summary {
		total += n
	}
	return total
}

// Records flattens the inventory deterministically: regions sorted, types
// sorted within a region, records in the order their probe returned them.
func (inv *Inventory) Records() []ResourceRecord {
	regions := make([]string, 0, len(inv.Regions))
	for r := range inv.Regions {
		regions = append(regions, r)
	}
	sort.Strings(regions)

	var out []ResourceRecord
	for _, region := range regions {
		byType := inv.Regions[region]
		types := make([]ResourceType, 0, len(byType))
		for t := range byType {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
		for _, t := range types {
			out = append(out, byType[t]...)
		}
	}
	return out
}

// ByKind returns all records of one kind, in Records order.
func (inv *Inventory) ByKind(kind Kind) []ResourceRecord {
	var out []ResourceRecord
	for _, rec := range inv.Records() {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out
}
