// Package cost attributes spend to services, regions, and individual
// resources, preferring authoritative billing data and falling back to
// rate-table estimates that are always flagged as such.
package cost

import (
	"context"
	"time"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

// Scope names the grouping level of a cost entry.
type Scope string

const (
	ScopeService  Scope = "service"
	ScopeRegion   Scope = "region"
	ScopeResource Scope = "resource"
)

// Entry is one group's cost within a scope. IsEstimated marks figures
// computed from the rate table rather than the billing system, so callers
// never conflate precision levels.
type Entry struct {
	Scope             Scope   `json:"scope"`
	Key               string  `json:"key"`
	AmountUSD         float64 `json:"amountUSD"`
	PercentageOfTotal float64 `json:"percentageOfTotal"`
	IsEstimated       bool    `json:"isEstimated"`
}

// Period is the trailing window costs are computed over.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TrailingDays returns the period covering the given number of whole days
// ending at now.
func TrailingDays(days int, now time.Time) Period {
	end := now.UTC()
	return Period{Start: end.AddDate(0, 0, -days), End: end}
}

// Hours returns the window length in hours.
func (p Period) Hours() float64 {
	return p.End.Sub(p.Start).Hours()
}

// Days returns the window length in days.
func (p Period) Days() float64 {
	return p.Hours() / 24
}

// Report is the aggregated cost view for one window. Every group the
// billing backend returned appears, including $0.00 groups, so an absent
// group always means "not billed", never "rounded away". Notes record
// groupings the backend could not provide.
type Report struct {
	Days      int      `json:"days"`
	Period    Period   `json:"period"`
	TotalUSD  float64  `json:"totalUSD"`
	ByService []Entry  `json:"byService"`
	ByRegion  []Entry  `json:"byRegion,omitempty"`
	Notes     []string `json:"notes,omitempty"`
}

// Usage carries observed metric figures the estimator needs for
// consumption-billed resources.
type Usage struct {
	// Invocations is the total invocation count over the period.
	Invocations float64
	// AvgDurationMS is the mean execution duration in milliseconds.
	AvgDurationMS float64
}

// UsageMap indexes usage hints by resource.
type UsageMap map[inventory.Key]Usage

// BillingSource is the authoritative billing backend. Implementations
// return classified errors; a backend without region grouping returns an
// Unsupported fault from TotalsByRegion.
type BillingSource interface {
	// TotalsByService returns spend per service over [start, end),
	// restricted to regions when the list is non-empty.
	TotalsByService(ctx context.Context, regions []string, start, end time.Time) (map[string]float64, error)
	// TotalsByRegion returns spend per region over [start, end).
	TotalsByRegion(ctx context.Context, regions []string, start, end time.Time) (map[string]float64, error)
	// CostByTag returns spend attributed to each value of the allocation
	// tag key over [start, end).
	CostByTag(ctx context.Context, tagKey string, start, end time.Time) (map[string]float64, error)
}
