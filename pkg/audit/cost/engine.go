package cost

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaugeworks/cloudgauge/pkg/audit/faults"
	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
	"github.com/gaugeworks/cloudgauge/pkg/config"
)

// Engine attributes spend. Aggregate views come from the billing backend;
// per-resource figures prefer tag-attributed billing data and fall back to
// rate-table estimates.
type Engine struct {
	billing BillingSource
	rates   *RateTable
	log     *slog.Logger
	tagKey  string
	retry   faults.RetryPolicy
	now     func() time.Time
}

// NewEngine builds a cost engine. A nil rate table uses the default
// catalog; a nil logger discards.
func NewEngine(billing BillingSource, rates *RateTable, log *slog.Logger) *Engine {
	if rates == nil {
		rates = DefaultRateTable()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		billing: billing,
		rates:   rates,
		log:     log,
		tagKey:  config.AllocationTagKey,
		retry:   faults.DefaultRetryPolicy(),
		now:     time.Now,
	}
}

// SetAllocationTag overrides the tag key used for authoritative attribution.
func (e *Engine) SetAllocationTag(key string) {
	if key != "" {
		e.tagKey = key
	}
}

// SetRetryPolicy overrides the bounded retry for billing calls.
func (e *Engine) SetRetryPolicy(p faults.RetryPolicy) {
	e.retry = p
}

// Rates exposes the table so callers can refine it before estimation.
func (e *Engine) Rates() *RateTable {
	return e.rates
}

// AggregateCost reports spend grouped by service, and by region when the
// backend supports it, over the trailing days. Every returned group is
// kept regardless of magnitude; groups are sorted descending by amount and
// carry their percentage of the grand total. A failed region grouping
// degrades to a note instead of failing the report.
func (e *Engine) AggregateCost(ctx context.Context, regions []string, days int) (*Report, error) {
	if days <= 0 {
		days = 30
	}

	tr := otel.Tracer("cloudgauge/cost")
	ctx, span := tr.Start(ctx, "cost.aggregate", trace.WithAttributes(
		attribute.Int("cost.days", days),
	))
	defer span.End()

	end := e.now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -days)

	var byService map[string]float64
	err := e.retry.Do(ctx, func(ctx context.Context) error {
		var qerr error
		byService, qerr = e.billing.TotalsByService(ctx, regions, start, end)
		return qerr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("cost totals by service: %w", err)
	}

	report := &Report{
		Days:     days,
		Period:   Period{Start: start, End: end},
		TotalUSD: sumTotals(byService),
	}
	report.ByService = entriesFromTotals(ScopeService, byService)

	var byRegion map[string]float64
	err = e.retry.Do(ctx, func(ctx context.Context) error {
		var qerr error
		byRegion, qerr = e.billing.TotalsByRegion(ctx, regions, start, end)
		return qerr
	})
	if err != nil {
		e.log.Warn("cost by region unavailable", "class", faults.ClassOf(err), "error", err)
		report.Notes = append(report.Notes, fmt.Sprintf("cost by region unavailable: %v", err))
	} else {
		report.ByRegion = entriesFromTotals(ScopeRegion, byRegion)
	}

	span.SetAttributes(attribute.Float64("cost.total_usd", report.TotalUSD))
	e.log.Info("cost aggregation completed", "days", days,
		"total_usd", report.TotalUSD, "services", len(report.ByService))
	return report, nil
}

// PerResourceCost attributes spend to each resource. Tag-attributed billing
// figures win; resources without one get a rate-table estimate flagged
// IsEstimated. Resources with neither are absent from the map. Attribution
// backend failures degrade to the estimate path rather than failing the
// call.
func (e *Engine) PerResourceCost(ctx context.Context, resources []inventory.ResourceRecord, period Period, usage UsageMap) map[inventory.Key]Entry {
	tr := otel.Tracer("cloudgauge/cost")
	ctx, span := tr.Start(ctx, "cost.per_resource", trace.WithAttributes(
		attribute.Int("cost.resources", len(resources)),
	))
	defer span.End()

	var tagged map[string]float64
	if e.billing != nil {
		err := e.retry.Do(ctx, func(ctx context.Context) error {
			var qerr error
			tagged, qerr = e.billing.CostByTag(ctx, e.tagKey, period.Start, period.End)
			return qerr
		})
		if err != nil {
			e.log.Warn("tag attribution unavailable, using estimates",
				"tag", e.tagKey, "class", faults.ClassOf(err), "error", err)
			span.RecordError(err)
		}
	}

	entries := make(map[inventory.Key]Entry, len(resources))
	for _, rec := range resources {
		key := rec.Key()
		if v := rec.Tags[e.tagKey]; v != "" {
			if amount, ok := tagged[v]; ok {
				entries[key] = Entry{Scope: ScopeResource, Key: key.String(), AmountUSD: amount}
				continue
			}
		}
		if entry, ok := e.estimate(rec, period, usage[key]); ok {
			entries[key] = entry
		}
	}

	var total float64
	for _, entry := range entries {
		total += entry.AmountUSD
	}
	if total > 0 {
		for k, entry := range entries {
			entry.PercentageOfTotal = entry.AmountUSD / total * 100
			entries[k] = entry
		}
	}

	span.SetAttributes(attribute.Int("cost.attributed", len(entries)))
	return entries
}

// estimate computes a rate-table figure for one resource. The second return
// is false when no rate rule covers the resource.
func (e *Engine) estimate(rec inventory.ResourceRecord, period Period, use Usage) (Entry, bool) {
	var amount float64
	monthShare := period.Days() / 30

	switch rec.Kind {
	case inventory.KindCompute:
		class, _ := rec.StringAttr(inventory.AttrInstanceClass)
		rate, ok := e.rates.ComputeRate(class)
		if !ok {
			return Entry{}, false
		}
		amount = rate * e.hoursRunning(rec, period)

	case inventory.KindDatabase:
		class, _ := rec.StringAttr(inventory.AttrInstanceClass)
		rate, ok := e.rates.DatabaseRate(class)
		if !ok {
			return Entry{}, false
		}
		sizeGB, _ := rec.FloatAttr(inventory.AttrSizeGB)
		amount = rate*e.hoursRunning(rec, period) +
			sizeGB*e.rates.DatabaseStorageGBMonth*monthShare

	case inventory.KindFunction:
		memMB, _ := rec.FloatAttr(inventory.AttrMemoryMB)
		gbSeconds := use.Invocations * (use.AvgDurationMS / 1000) * (memMB / 1024)
		amount = e.rates.FunctionPerMillionRequests*use.Invocations/1e6 +
			e.rates.FunctionGBSecond*gbSeconds

	case inventory.KindVolume:
		sizeGB, ok := rec.FloatAttr(inventory.AttrSizeGB)
		if !ok {
			return Entry{}, false
		}
		class, _ := rec.StringAttr(inventory.AttrStorageClass)
		amount = sizeGB * e.rates.StorageRate(class) * monthShare

	case inventory.KindSnapshot:
		sizeGB, ok := rec.FloatAttr(inventory.AttrSizeGB)
		if !ok {
			return Entry{}, false
		}
		amount = sizeGB * e.rates.StorageRate("snapshot") * monthShare

	case inventory.KindObjectStore:
		bytes, ok := rec.FloatAttr(inventory.AttrStoredBytes)
		if !ok {
			return Entry{}, false
		}
		amount = bytes / (1 << 30) * e.rates.StorageRate("standard") * monthShare

	case inventory.KindLoadBalancer:
		amount = e.rates.LoadBalancerHourly * period.Hours()

	case inventory.KindNetwork:
		amount = e.rates.NATGatewayHourly * period.Hours()

	case inventory.KindCache:
		class, _ := rec.StringAttr(inventory.AttrInstanceClass)
		rate, ok := e.rates.CacheRate(class)
		if !ok {
			return Entry{}, false
		}
		nodes, hasNodes := rec.FloatAttr(inventory.AttrNodeCount)
		if !hasNodes || nodes < 1 {
			nodes = 1
		}
		amount = rate * nodes * period.Hours()

	case inventory.KindWarehouse:
		class, _ := rec.StringAttr(inventory.AttrInstanceClass)
		rate, ok := e.rates.WarehouseRate(class)
		if !ok {
			return Entry{}, false
		}
		nodes, hasNodes := rec.FloatAttr(inventory.AttrNodeCount)
		if !hasNodes || nodes < 1 {
			nodes = 1
		}
		amount = rate * nodes * period.Hours()

	case inventory.KindCluster:
		amount = e.rates.ClusterHourly * period.Hours()

	case inventory.KindAddress:
		attached, _ := rec.StringAttr(inventory.AttrAttachedTo)
		if attached != "" {
			amount = 0
			break
		}
		amount = e.rates.AddressHourly * period.Hours()

	case inventory.KindRegistry:
		bytes, ok := rec.FloatAttr(inventory.AttrStoredBytes)
		if !ok {
			return Entry{}, false
		}
		amount = bytes / (1 << 30) * e.rates.StorageRate("registry") * monthShare

	case inventory.KindLogGroup:
		bytes, ok := rec.FloatAttr(inventory.AttrStoredBytes)
		if !ok {
			return Entry{}, false
		}
		amount = bytes / (1 << 30) * e.rates.LogGBMonth * monthShare

	default:
		return Entry{}, false
	}

	return Entry{
		Scope:       ScopeResource,
		Key:         rec.Key().String(),
		AmountUSD:   amount,
		IsEstimated: true,
	}, true
}

// hoursRunning bounds billable hours by the resource's observed lifetime.
// Stopped resources accrue no compute hours.
func (e *Engine) hoursRunning(rec inventory.ResourceRecord, period Period) float64 {
	switch rec.State {
	case "", "running", "available", "in-use", "active":
	default:
		return 0
	}
	hours := period.Hours()
	if launch, ok := rec.TimeAttr(inventory.AttrLaunchTime); ok {
		if alive := period.End.Sub(launch).Hours(); alive >= 0 && alive < hours {
			hours = alive
		}
	}
	return hours
}

func sumTotals(totals map[string]float64) float64 {
	var sum float64
	for _, v := range totals {
		sum += v
	}
	return sum
}

// entriesFromTotals converts a grouped totals map into sorted entries with
// percentages of the scope total. Zero-total scopes leave percentages at
// zero rather than dividing by zero.
func entriesFromTotals(scope Scope, totals map[string]float64) []Entry {
	total := sumTotals(totals)
	entries := make([]Entry, 0, len(totals))
	for key, amount := range totals {
		entry := Entry{Scope: scope, Key: key, AmountUSD: amount}
		if total > 0 {
			entry.PercentageOfTotal = amount / total * 100
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AmountUSD != entries[j].AmountUSD {
			return entries[i].AmountUSD > entries[j].AmountUSD
		}
		return entries[i].Key < entries[j].Key
	})
	return entries
}
