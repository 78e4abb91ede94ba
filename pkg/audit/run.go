package audit

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaugeworks/cloudgauge/pkg/audit/cost"
	"github.com/gaugeworks/cloudgauge/pkg/audit/findings"
	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
	"github.com/gaugeworks/cloudgauge/pkg/audit/metrics"
	"github.com/gaugeworks/cloudgauge/pkg/audit/policy"
)

// Result is everything one scan produced.
type Result struct {
	Account   string    `json:"account,omitempty"`
	Regions   []string  `json:"regions"`
	StartedAt time.Time `json:"startedAt"`
	// Duration is the wall-clock pipeline time in nanoseconds.
	Duration      time.Duration                `json:"duration"`
	Inventory     *inventory.Inventory         `json:"inventory"`
	Metrics       *metrics.Result              `json:"metrics,omitempty"`
	Costs         *cost.Report                 `json:"costs,omitempty"`
	ResourceCosts map[inventory.Key]cost.Entry `json:"resourceCosts,omitempty"`
	Findings      *findings.Report             `json:"findings"`
	// Partial marks a scan that skipped units; the skips are recorded as
	// diagnostics on the stage that hit them.
	Partial bool `json:"partial,omitempty"`
}

// DiagnosticCount totals the per-unit failures across pipeline stages.
func (r *Result) DiagnosticCount() int {
	n := 0
	if r.Inventory != nil {
		n += len(r.Inventory.Diagnostics)
	}
	if r.Metrics != nil {
		n += len(r.Metrics.Diagnostics)
	}
	return n
}

// Run executes the pipeline: discovery, cluster enrichment, metric
// collection, cost attribution, and findings analysis. Zero regions or
// zero types is the only hard error; everything else degrades into
// diagnostics. In strict mode a degraded scan returns both the result and
// ErrPartialResult.
func (e *Engine) Run(ctx context.Context) (res *Result, err error) {
	ctx, span := e.Tracer.Start(ctx, "audit.Run")
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, e.recordPanic(ctx, r)
		}
	}()

	cfg := e.config
	started := time.Now().UTC()

	e.Logger.Info("starting audit",
		"regions", cfg.Regions, "types", len(cfg.Types), "concurrency", cfg.Concurrency)

	orch := inventory.NewOrchestrator(e.registry, e.Logger, cfg.Concurrency)
	inv, err := orch.Discover(ctx, cfg.Regions, cfg.Types, cfg.Filters)
	if err != nil {
		span.SetStatus(codes.Error, "discovery failed")
		return nil, err
	}
	records := inv.Records()

	if e.enricher != nil {
		// Attribute maps are shared with the inventory, so enrichment
		// through the flattened view sticks.
		e.enricher.Enrich(ctx, records)
	}

	var metricsResult *metrics.Result
	if e.querier != nil {
		collector := metrics.NewCollector(e.registry, e.querier, e.Logger, cfg.Concurrency)
		metricsResult = collector.Collect(ctx, records, cfg.Metrics.Period, cfg.Metrics.Lookback)
	}

	if e.refiner != nil {
		if missing := e.rates.MissingComputeClasses(instanceClasses(records)); len(missing) > 0 {
			e.refiner.RefineCompute(ctx, e.rates, cfg.Regions[0], missing)
		}
	}

	var costReport *cost.Report
	var resourceCosts map[inventory.Key]cost.Entry
	if e.billing != nil {
		costEngine := cost.NewEngine(e.billing, e.rates, e.Logger)
		if cfg.AllocationTag != "" {
			costEngine.SetAllocationTag(cfg.AllocationTag)
		}
		report, aggErr := costEngine.AggregateCost(ctx, cfg.Regions, cfg.CostDays)
		if aggErr != nil {
			e.Logger.Warn("cost aggregation failed", "error", aggErr)
		} else {
			costReport = report
		}
		period := cost.TrailingDays(cfg.CostDays, started)
		resourceCosts = costEngine.PerResourceCost(ctx, records, period, usageFrom(records, metricsResult))
	}

	fEngine := findings.NewEngine(e.Logger)
	if e.policy != nil {
		e.policy.SetResolver(resolverFor(inv))
		fEngine.SetSuppressor(e.policy)
	}
	var posture *findings.Posture
	if e.posture != nil {
		posture = e.posture.Collect(ctx)
	}
	analysis := fEngine.Evaluate(ctx, findings.Inputs{
		Inventory:  inv,
		Metrics:    metricsResult,
		Costs:      resourceCosts,
		Posture:    posture,
		Rates:      e.rates,
		Thresholds: cfg.Thresholds,
		Heuristics: cfg.Heuristics,
		Security:   cfg.Security,
		Now:        started,
	})

	res = &Result{
		Account:       e.account,
		Regions:       cfg.Regions,
		StartedAt:     started,
		Duration:      time.Since(started),
		Inventory:     inv,
		Metrics:       metricsResult,
		Costs:         costReport,
		ResourceCosts: resourceCosts,
		Findings:      analysis,
	}
	res.Partial = e.degraded(inv, metricsResult, costReport)

	span.SetAttributes(
		attribute.Int("scan.resources", inv.TotalRecords()),
		attribute.Int("scan.findings", len(analysis.All())),
		attribute.Bool("scan.partial", res.Partial),
	)

	if res.Partial {
		span.SetAttributes(attribute.Int("scan.diagnostics", res.DiagnosticCount()))
		if cfg.StrictMode {
			e.Logger.Error("strict mode: failing on partial results")
			return res, ErrPartialResult
		}
		e.Logger.Warn("scan finished with partial results", "diagnostics", res.DiagnosticCount())
	}

	e.Logger.Info("audit complete",
		"resources", inv.TotalRecords(),
		"findings", len(analysis.All()),
		"duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

// AggregateCost returns the account billing rollup for the configured
// window without running discovery. Unlike the scan pipeline, a billing
// failure here is a hard error; the caller asked for exactly this data.
func (e *Engine) AggregateCost(ctx context.Context) (*cost.Report, error) {
	if e.billing == nil {
		return nil, errors.New("no billing source configured")
	}
	ctx, span := e.Tracer.Start(ctx, "audit.AggregateCost")
	defer span.End()

	costEngine := cost.NewEngine(e.billing, e.rates, e.Logger)
	if e.config.AllocationTag != "" {
		costEngine.SetAllocationTag(e.config.AllocationTag)
	}
	return costEngine.AggregateCost(ctx, e.config.Regions, e.config.CostDays)
}

// degraded reports whether any stage skipped units or failed outright.
func (e *Engine) degraded(inv *inventory.Inventory, m *metrics.Result, costs *cost.Report) bool {
	if len(inv.Diagnostics) > 0 {
		return true
	}
	if m != nil && len(m.Diagnostics) > 0 {
		return true
	}
	if e.billing != nil && costs == nil {
		return true
	}
	return false
}

// usageFrom derives observed event-driven usage from collected metrics so
// cost estimation prices invocations instead of provisioned hours.
func usageFrom(records []inventory.ResourceRecord, m *metrics.Result) cost.UsageMap {
	if m == nil {
		return nil
	}
	usage := make(cost.UsageMap)
	for _, rec := range records {
		if rec.Kind != inventory.KindFunction {
			continue
		}
		key := rec.Key()
		var u cost.Usage
		seen := false
		if v, ok := m.Value(key, inventory.MetricInvocations, inventory.StatTotal); ok {
			u.Invocations = v
			seen = true
		}
		if v, ok := m.Value(key, inventory.MetricDuration, inventory.StatAverage); ok {
			u.AvgDurationMS = v
			seen = true
		}
		if seen {
			usage[key] = u
		}
	}
	return usage
}

// instanceClasses lists the class of every compute record, so the pricing
// backend only looks up classes the estate actually runs.
func instanceClasses(records []inventory.ResourceRecord) []string {
	var classes []string
	for _, rec := range records {
		if rec.Kind != inventory.KindCompute {
			continue
		}
		if class, ok := rec.StringAttr(inventory.AttrInstanceClass); ok && class != "" {
			classes = append(classes, class)
		}
	}
	return classes
}

func resolverFor(inv *inventory.Inventory) policy.Resolver {
	index := make(map[inventory.Key]inventory.ResourceRecord, inv.TotalRecords())
	for _, rec := range inv.Records() {
		index[rec.Key()] = rec
	}
	return func(key inventory.Key) (inventory.ResourceRecord, bool) {
		rec, ok := index[key]
		return rec, ok
	}
}

// recordPanic converts a pipeline panic into an error after recording it
// on the trace. The engine can be embedded in a long-lived process; a
// crashing scan must not take the host down.
func (e *Engine) recordPanic(ctx context.Context, r any) error {
	stack := debug.Stack()
	_, span := e.Tracer.Start(ctx, "audit.Panic")
	err := fmt.Errorf("audit pipeline panicked: %v", r)
	span.RecordError(err, trace.WithStackTrace(true))
	span.SetStatus(codes.Error, "panic")
	span.SetAttributes(attribute.String("crash.reason", fmt.Sprintf("%v", r)))
	span.End()
	e.Logger.Error("audit pipeline panicked", "error", r, "stack", string(stack))
	return err
}
