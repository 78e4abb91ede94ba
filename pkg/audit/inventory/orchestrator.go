package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaugeworks/cloudgauge/pkg/audit/faults"
	"github.com/gaugeworks/cloudgauge/pkg/worker"
)

// unit is one (region, type) probe execution.
type unit struct {
	region string
	rtype  ResourceType
}

// Orchestrator fans discovery out over the Cartesian product of regions and
// resource types with per-unit fault isolation: a failing unit becomes a
// diagnostic, never an aborted run.
type Orchestrator struct {
	registry *ProbeRegistry
	log      *slog.Logger
	limit    int
	retry    faults.RetryPolicy
}

// NewOrchestrator builds an orchestrator over registry. A nil logger
// discards; a non-positive limit falls back to 8 workers.
func NewOrchestrator(registry *ProbeRegistry, log *slog.Logger, limit int) *Orchestrator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if limit <= 0 {
		limit = 8
	}
	return &Orchestrator{
		registry: registry,
		log:      log,
		limit:    limit,
		retry:    faults.DefaultRetryPolicy(),
	}
}

// SetRetryPolicy overrides the bounded retry applied to Throttled and
// Transient probe failures.
func (o *Orchestrator) SetRetryPolicy(p faults.RetryPolicy) {
	o.retry = p
}

// Discover runs every (region, type) unit and aggregates the outcomes into
// an Inventory. Zero regions or zero types is the only hard error; every
// unit-level failure is recovered into a diagnostic. Cancellation keeps the
// outcomes of units that already completed and records the rest as
// abandoned.
func (o *Orchestrator) Discover(ctx context.Context, regions []string, types []ResourceType, filters Filters) (*Inventory, error) {
	if len(regions) == 0 {
		return nil, errors.New("discovery requires at least one region")
	}
	if len(types) == 0 {
		return nil, errors.New("discovery requires at least one resource type")
	}
	if err := filters.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filters: %w", err)
	}

	units := buildUnits(regions, types)

	tr := otel.Tracer("cloudgauge/inventory")
	ctx, span := tr.Start(ctx, "inventory.discover", trace.WithAttributes(
		attribute.Int("discovery.units", len(units)),
	))
	defer span.End()

	o.log.Info("discovery starting", "regions", len(regions), "types", len(types), "units", len(units))

	outcomes := worker.Map(ctx, units, o.limit, func(ctx context.Context, u unit) ([]ResourceRecord, error) {
		return o.probe(ctx, u, filters)
	})

	// Single-aggregator merge: outcomes arrive in unit order, so grouping
	// and diagnostics are deterministic regardless of completion order.
	inv := NewInventory()
	for _, out := range outcomes {
		u := out.Unit
		switch {
		case !out.Started:
			msg := "abandoned before start"
			if out.Err != nil {
				msg = fmt.Sprintf("abandoned before start: %v", out.Err)
			}
			inv.Diagnostics = append(inv.Diagnostics, Diagnostic{
				Region: u.region, Type: u.rtype, Class: faults.Transient, Message: msg,
			})
		case out.Err != nil:
			inv.Diagnostics = append(inv.Diagnostics, Diagnostic{
				Region: u.region, Type: u.rtype, Class: faults.ClassOf(out.Err), Message: out.Err.Error(),
			})
		default:
			inv.Add(u.region, u.rtype, out.Value)
		}
	}

	span.SetAttributes(
		attribute.Int("discovery.records", inv.TotalRecords()),
		attribute.Int("discovery.diagnostics", len(inv.Diagnostics)),
	)
	o.log.Info("discovery completed", "records", inv.TotalRecords(), "diagnostics", len(inv.Diagnostics))
	return inv, nil
}

func (o *Orchestrator) probe(ctx context.Context, u unit, filters Filters) (recs []ResourceRecord, err error) {
	tr := otel.Tracer("cloudgauge/inventory")
	ctx, span := tr.Start(ctx, "inventory.probe", trace.WithAttributes(
		attribute.String("region", u.region),
		attribute.String("resource.type", string(u.rtype)),
	))
	defer span.End()

	executed, failed, seconds := instruments()
	start := time.Now()
	defer func() {
		attrs := metric.WithAttributes(
			attribute.String("region", u.region),
			attribute.String("resource.type", string(u.rtype)),
		)
		executed.Add(ctx, 1, attrs)
		seconds.Record(ctx, time.Since(start).Seconds(), attrs)
		if err != nil {
			failed.Add(ctx, 1, attrs)
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			err = faults.Newf(faults.Transient, string(u.rtype), "probe panic: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	entry, ok := o.registry.Lookup(u.rtype)
	if !ok {
		return nil, faults.Newf(faults.Unsupported, "registry", "no probe registered for type %q", u.rtype)
	}

	o.log.Debug("probe starting", "region", u.region, "type", u.rtype)
	err = o.retry.Do(ctx, func(ctx context.Context) error {
		var derr error
		recs, derr = entry.Discover(ctx, u.region, filters)
		return derr
	})
	if err != nil {
		o.log.Warn("probe failed", "region", u.region, "type", u.rtype,
			"class", faults.ClassOf(err), "error", err)
		return nil, err
	}

	// Stamp identity and kind so probes cannot disagree with their unit.
	for i := range recs {
		recs[i].Region = u.region
		recs[i].Type = u.rtype
		recs[i].Kind = entry.Kind
	}
	o.log.Debug("probe completed", "region", u.region, "type", u.rtype, "records", len(recs))
	return recs, nil
}

// buildUnits dedupes and sorts both axes so unit order, and therefore
// aggregation and diagnostics order, is stable across runs.
func buildUnits(regions []string, types []ResourceType) []unit {
	rs := dedupeSorted(regions)
	ts := make([]string, len(types))
	for i, t := range types {
		ts[i] = string(t)
	}
	tds := dedupeSorted(ts)

	units := make([]unit, 0, len(rs)*len(tds))
	for _, r := range rs {
		for _, t := range tds {
			units = append(units, unit{region: r, rtype: ResourceType(t)})
		}
	}
	return units
}

func dedupeSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
