package findings

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

// Bottleneck rule names.
const (
	RuleCPUSaturation        = "cpu-saturation"
	RuleCPUHigh              = "cpu-high"
	RuleCPUUnderutilized     = "cpu-underutilized"
	RuleMemoryPressure       = "memory-pressure"
	RuleConnectionSaturation = "connection-saturation"
	RuleInsufficientData     = "insufficient-data"
)

// bottlenecks evaluates utilization pressure per resource. A resource can
// carry a saturation finding and an underutilization finding at once: a
// spiky workload peaks high while averaging low, and both facts matter.
func (e *Engine) bottlenecks(ctx context.Context, in Inputs) []Finding {
	_, span := otel.Tracer(tracerName).Start(ctx, "findings.bottlenecks")
	defer span.End()

	var out []Finding
	for _, rec := range in.records() {
		out = append(out, resourceBottlenecks(rec, in)...)
	}
	span.SetAttributes(attribute.Int("findings.count", len(out)))
	return out
}

func resourceBottlenecks(rec inventory.ResourceRecord, in Inputs) []Finding {
	key := rec.Key()
	var out []Finding

	avg, avgOK := in.metricValue(key, inventory.MetricCPU, inventory.StatAverage)
	peak, peakOK := in.metricValue(key, inventory.MetricCPU, inventory.StatMaximum)

	switch {
	case peakOK && peak > 90:
		out = append(out, Finding{
			Category:       CategoryBottleneck,
			Severity:       SeverityCritical,
			Rule:           RuleCPUSaturation,
			Resource:       keyOf(rec),
			Message:        fmt.Sprintf("%s peaked at %.1f%% CPU during the lookback window", displayName(rec), peak),
			Recommendation: "scale up or spread the workload before it starts shedding load",
		})
	case peakOK && peak > in.Thresholds.CPUHighPct:
		out = append(out, Finding{
			Category:       CategoryBottleneck,
			Severity:       SeverityHigh,
			Rule:           RuleCPUHigh,
			Resource:       keyOf(rec),
			Message:        fmt.Sprintf("%s peaked at %.1f%% CPU during the lookback window", displayName(rec), peak),
			Recommendation: "watch the trend; headroom is thinning",
		})
	}

	if avgOK && avg < in.Thresholds.CPULowPct {
		out = append(out, Finding{
			Category:       CategoryBottleneck,
			Severity:       SeverityInfo,
			Rule:           RuleCPUUnderutilized,
			Resource:       keyOf(rec),
			Message:        fmt.Sprintf("%s averaged %.1f%% CPU during the lookback window", displayName(rec), avg),
			Recommendation: "a smaller size would likely carry this workload",
		})
	}

	// No value for either statistic: either the metric is not tracked for
	// this kind, or it was queried and came back empty. Only the latter is
	// worth a finding, and the note says why it happened.
	if !avgOK && !peakOK {
		if note, ok := in.metricNote(key, inventory.MetricCPU); ok {
			out = append(out, Finding{
				Category: CategoryBottleneck,
				Severity: SeverityInfo,
				Rule:     RuleInsufficientData,
				Resource: keyOf(rec),
				Message:  fmt.Sprintf("insufficient metric data for %s: %s", displayName(rec), note),
			})
		}
	}

	if mem, ok := in.metricValue(key, inventory.MetricMemory, inventory.StatAverage); ok && mem > in.Thresholds.MemoryHighPct {
		out = append(out, Finding{
			Category:       CategoryBottleneck,
			Severity:       SeverityHigh,
			Rule:           RuleMemoryPressure,
			Resource:       keyOf(rec),
			Message:        fmt.Sprintf("%s averaged %.1f%% memory use during the lookback window", displayName(rec), mem),
			Recommendation: "add memory or move to a memory-optimized class",
		})
	}

	if maxConn, ok := rec.FloatAttr(inventory.AttrMaxConnections); ok && maxConn > 0 {
		if conns, ok := in.metricValue(key, inventory.MetricConnections, inventory.StatMaximum); ok {
			if pct := conns / maxConn * 100; pct > in.Thresholds.ConnectionSaturationPct {
				out = append(out, Finding{
					Category:       CategoryBottleneck,
					Severity:       SeverityHigh,
					Rule:           RuleConnectionSaturation,
					Resource:       keyOf(rec),
					Message:        fmt.Sprintf("%s reached %.0f of %.0f connections (%.0f%%)", displayName(rec), conns, maxConn, pct),
					Recommendation: "raise the connection limit or add pooling in front",
				})
			}
		}
	}

	return out
}

func displayName(rec inventory.ResourceRecord) string {
	if rec.Name != "" {
		return rec.Name
	}
	return rec.ID
}
