package metrics

import (
	"context"
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
	"github.com/gaugeworks/cloudgauge/pkg/worker"
)

const genericNoDataNote = "no datapoints returned in the lookback window"

// query is one (resource, definition) collection unit.
type query struct {
	rec inventory.ResourceRecord
	def inventory.MetricDefinition
}

// Collector fans metric queries out per (resource, metric) with the same
// fault isolation discovery applies per (region, type). Provider throttling
// feeds an adaptive governor instead of a fixed pool size because metric
// APIs rate-limit far more aggressively than describe calls.
type Collector struct {
	registry *inventory.ProbeRegistry
	querier  Querier
	log      *slog.Logger
	maxConc  int
	retry    faults.RetryPolicy
	now      func() time.Time
}

// NewCollector builds a collector over the registry's metric catalogs.
func NewCollector(registry *inventory.ProbeRegistry, querier Querier, log *slog.Logger, concurrency int) *Collector {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if concurrency <= 0 {
		concurrency = config.DefaultConcurrency
	}
	return &Collector{
		registry: registry,
		querier:  querier,
		log:      log,
		maxConc:  concurrency,
		retry:    faults.DefaultRetryPolicy(),
		now:      time.Now,
	}
}

// SetRetryPolicy overrides the bounded retry for Throttled/Transient queries.
func (c *Collector) SetRetryPolicy(p faults.RetryPolicy) {
	c.retry = p
}

// Collect gathers every defined metric for every resource over the lookback
// window at the given period granularity. Non-positive period or lookback
// fall back to the defaults. Failures never abort the run; they become
// per-query diagnostics. Cancellation keeps completed queries.
func (c *Collector) Collect(ctx context.Context, resources []inventory.ResourceRecord, period, lookback time.Duration) *Result {
	defaults := config.DefaultMetricsConfig()
	if period <= 0 {
		period = defaults.Period
	}
	if lookback <= 0 {
		lookback = defaults.Lookback
	}

	var units []query
	for _, rec := range resources {
		for _, def := range c.registry.MetricDefs(rec) {
			units = append(units, query{rec: rec, def: def})
		}
	}

	tr := otel.Tracer("cloudgauge/metrics")
	ctx, span := tr.Start(ctx, "metrics.collect", trace.WithAttributes(
		attribute.Int("metrics.queries", len(units)),
	))
	defer span.End()

	c.log.Info("metric collection starting", "resources", len(resources), "queries", len(units))

	end := c.now().UTC()
	start := end.Add(-lookback)
	gov := worker.NewAIMD(c.maxConc, 1, c.maxConc)

	outcomes := worker.MapAdaptive(ctx, units, gov, func(err error) bool {
		return faults.ClassOf(err) == faults.Throttled
	}, func(ctx context.Context, u query) ([]Series, error) {
		return c.collectOne(ctx, u, period, start, end)
	})

	result := &Result{Series: make(map[inventory.Key][]Series)}
	for _, out := range outcomes {
		u := out.Unit
		key := u.rec.Key()
		switch {
		case !out.Started:
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				Resource: key, Metric: u.def.Name, Class: faults.Transient,
				Message: "abandoned before start",
			})
		case out.Err != nil:
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				Resource: key, Metric: u.def.Name, Class: faults.ClassOf(out.Err),
				Message: out.Err.Error(),
			})
		default:
			result.Series[key] = append(result.Series[key], out.Value...)
		}
	}

	span.SetAttributes(attribute.Int("metrics.diagnostics", len(result.Diagnostics)))
	c.log.Info("metric collection completed",
		"resources", len(result.Series), "diagnostics", len(result.Diagnostics))
	return result
}

func (c *Collector) collectOne(ctx context.Context, u query, period time.Duration, start, end time.Time) (series []Series, err error) {
	tr := otel.Tracer("cloudgauge/metrics")
	ctx, span := tr.Start(ctx, "metrics.query", trace.WithAttributes(
		attribute.String("resource", u.rec.Key().String()),
		attribute.String("metric", u.def.Name),
	))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err = faults.Newf(faults.Transient, u.def.Name, "metric query panic: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if u.def.Period > 0 {
		period = u.def.Period
	}

	var points []Datapoint
	err = c.retry.Do(ctx, func(ctx context.Context) error {
		var qerr error
		points, qerr = c.querier.Query(ctx, u.rec.Region, u.def.Query, period, start, end)
		return qerr
	})
	if err != nil {
		c.log.Warn("metric query failed", "resource", u.rec.Key().String(),
			"metric", u.def.Name, "class", faults.ClassOf(err), "error", err)
		return nil, err
	}

	return buildSeries(u.rec.Key(), u.def, points), nil
}

// buildSeries turns raw datapoints into one Series per requested statistic.
// Zero datapoints produce exactly one note-only Series so callers can tell
// "no visibility" from "healthy and idle".
func buildSeries(key inventory.Key, def inventory.MetricDefinition, points []Datapoint) []Series {
	if len(points) == 0 {
		note := def.NoDataNote
		if note == "" {
			note = genericNoDataNote
		}
		return []Series{{
			Resource: key,
			Metric:   def.Name,
			Unit:     def.Unit,
			Note:     note,
		}}
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	series := make([]Series, 0, len(def.Statistics))
	for _, stat := range def.Statistics {
		v := reduce(stat, points)
		series = append(series, Series{
			Resource:    key,
			Metric:      def.Name,
			Unit:        def.Unit,
			Statistic:   stat,
			Value:       &v,
			SampleCount: len(points),
		})
	}
	return series
}

// reduce applies one statistic over period-aggregated datapoints. The
// provider already aggregated within each period; statistics of different
// periods are never mixed because one query uses one period.
func reduce(stat inventory.Statistic, points []Datapoint) float64 {
	switch stat {
	case inventory.StatCurrent:
		return points[len(points)-1].Average
	case inventory.StatAverage:
		var sum float64
		for _, p := range points {
			sum += p.Average
		}
		return sum / float64(len(points))
	case inventory.StatMaximum:
		max := points[0].Maximum
		for _, p := range points[1:] {
			if p.Maximum > max {
				max = p.Maximum
			}
		}
		return max
	case inventory.StatTotal:
		var sum float64
		for _, p := range points {
			sum += p.Sum
		}
		return sum
	default:
		return 0
	}
}
