// Package metrics collects provider metrics for discovered resources and
// turns raw datapoints into per-statistic series.
package metrics

import (
	"context"
	"time"

	"github.com/gaugeworks/cloudgauge/pkg/audit/faults"
	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

// Series is one statistic of one metric for one resource. When the provider
// returned no datapoints, Value is nil, SampleCount is zero, and Note
// explains the likely cause; "0" and "no data" are never conflated.
type Series struct {
	Resource    inventory.Key       `json:"resource"`
	Metric      string              `json:"metric"`
	Unit        string              `json:"unit,omitempty"`
	Statistic   inventory.Statistic `json:"statistic,omitempty"`
	Value       *float64            `json:"value,omitempty"`
	SampleCount int                 `json:"sampleCount"`
	Note        string              `json:"note,omitempty"`
}

// Diagnostic records one failed (resource, metric) query.
type Diagnostic struct {
	Resource inventory.Key `json:"resource"`
	Metric   string        `json:"metric"`
	Class    faults.Class  `json:"class"`
	Message  string        `json:"message"`
}

// Result is the aggregated outcome of one collection run.
type Result struct {
	Series      map[inventory.Key][]Series `json:"series"`
	Diagnostics []Diagnostic               `json:"diagnostics"`
}

// Find returns the series for one metric and statistic of a resource.
func (r *Result) Find(key inventory.Key, metric string, stat inventory.Statistic) (Series, bool) {
	for _, s := range r.Series[key] {
		if s.Metric == metric && s.Statistic == stat {
			return s, true
		}
	}
	return Series{}, false
}

// Value returns the numeric value for one metric statistic of a resource.
// Note-only series and absent series both report false.
func (r *Result) Value(key inventory.Key, metric string, stat inventory.Statistic) (float64, bool) {
	s, ok := r.Find(key, metric, stat)
	if !ok || s.Value == nil {
		return 0, false
	}
	return *s.Value, true
}

// HasData reports whether any series for the metric carries a value.
func (r *Result) HasData(key inventory.Key, metric string) bool {
	for _, s := range r.Series[key] {
		if s.Metric == metric && s.Value != nil {
			return true
		}
	}
	return false
}

// Datapoint is one aggregation period of provider data.
type Datapoint struct {
	Timestamp   time.Time
	Average     float64
	Maximum     float64
	Sum         float64
	SampleCount float64
}

// Querier fetches raw datapoints for one provider-side series. The provider
// aggregates at the requested period granularity over [start, end); the
// collector never re-aggregates across different periods.
type Querier interface {
	Query(ctx context.Context, region string, q inventory.MetricQuery, period time.Duration, start, end time.Time) ([]Datapoint, error)
}
