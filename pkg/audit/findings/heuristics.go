package findings

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gaugeworks/cloudgauge/pkg/audit/cost"
	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

// monthHours projects an hourly rate onto a 30-day month.
const monthHours = 24 * 30

// tableIdleOpsTotal is the consumed-operation total under which a
// provisioned table counts as idle over the lookback window.
const tableIdleOpsTotal = 100.0

func defaultHeuristics() []CostHeuristic {
	return []CostHeuristic{
		&IdleComputeHeuristic{},
		&RightSizeHeuristic{},
		&UnattachedVolumeHeuristic{},
		&AgedSnapshotHeuristic{},
		&OversizedDatabaseHeuristic{},
		&ColdBucketHeuristic{},
		&UnboundedLogRetentionHeuristic{},
		&RegistryLifecycleHeuristic{},
		&IdleLoadBalancerHeuristic{},
		&IdleNATGatewayHeuristic{},
		&EmptyClusterHeuristic{},
		&ProvisionedTableHeuristic{},
		&UnattachedAddressHeuristic{},
	}
}

// costOptimizations runs every registered heuristic and merges their
// findings in registration order.
func (e *Engine) costOptimizations(ctx context.Context, in Inputs) []Finding {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "findings.costOptimizations")
	defer span.End()

	results := make([][]Finding, len(e.heuristics))
	var wg sync.WaitGroup
	for i, h := range e.heuristics {
		wg.Add(1)
		go func(i int, h CostHeuristic) {
			defer wg.Done()
			_, hspan := otel.Tracer(tracerName).Start(ctx, "Heuristic."+h.Name())
			defer hspan.End()
			defer func() {
				if r := recover(); r != nil {
					e.log.Error("heuristic panicked", "heuristic", h.Name(), "panic", r)
				}
			}()

			results[i] = h.Evaluate(in)

			var savings float64
			for _, f := range results[i] {
				savings += f.EstimatedMonthlySavingsUSD
			}
			hspan.SetAttributes(
				attribute.Int("waste_items_found", len(results[i])),
				attribute.Float64("projected_savings_usd", savings),
			)
		}(i, h)
	}
	wg.Wait()

	var out []Finding
	for _, fs := range results {
		out = append(out, fs...)
	}
	span.SetAttributes(attribute.Int("findings.count", len(out)))
	return out
}

// runningState reports whether a resource is accruing compute charges.
func runningState(state string) bool {
	switch state {
	case "", "running", "available", "in-use", "active":
		return true
	}
	return false
}

// IdleComputeHeuristic flags instances whose average CPU sat below the idle
// threshold across the whole lookback window.
type IdleComputeHeuristic struct{}

func (h *IdleComputeHeuristic) Name() string { return "idle-compute" }

func (h *IdleComputeHeuristic) Evaluate(in Inputs) []Finding {
	var out []Finding
	for _, rec := range in.byKind(inventory.KindCompute) {
		if !runningState(rec.State) {
			continue
		}
		// Fresh instances have not had a chance to show load yet.
		if launch, ok := rec.TimeAttr(inventory.AttrLaunchTime); ok {
			if in.now().Sub(launch) < in.Heuristics.IdleInstance.MinUptime {
				continue
			}
		}
		avg, ok := in.metricValue(rec.Key(), inventory.MetricCPU, inventory.StatAverage)
		if !ok || avg >= in.Heuristics.IdleInstance.CPUThreshold {
			continue
		}

		var savings float64
		class, _ := rec.StringAttr(inventory.AttrInstanceClass)
		if rate, ok := in.Rates.ComputeRate(class); ok {
			savings = rate * monthHours
		}
		out = append(out, Finding{
			Category:                   CategoryCost,
			Severity:                   SeverityMedium,
			Rule:                       h.Name(),
			Resource:                   keyOf(rec),
			Message:                    fmt.Sprintf("%s averaged %.1f%% CPU over the lookback window", displayName(rec), avg),
			Recommendation:             "stop or terminate the instance if the workload has moved on",
			EstimatedMonthlySavingsUSD: savings,
		})
	}
	return out
}

// RightSizeHeuristic flags instances running above idle but below the
// right-size band ceilings, and prices the next size down.
type RightSizeHeuristic struct{}

func (h *RightSizeHeuristic) Name() string { return "right-size-compute" }

func (h *RightSizeHeuristic) Evaluate(in Inputs) []Finding {
	var out []Finding
	for _, rec := range in.byKind(inventory.KindCompute) {
		if !runningState(rec.State) {
			continue
		}
		key := rec.Key()
		avg, ok := in.metricValue(key, inventory.MetricCPU, inventory.StatAverage)
		if !ok || avg < in.Heuristics.IdleInstance.CPUThreshold || avg > in.Heuristics.RightSize.AvgCeilingPct {
			continue
		}
		peak, ok := in.metricValue(key, inventory.MetricCPU, inventory.StatMaximum)
		if !ok || peak >= in.Heuristics.RightSize.MaxCeilingPct {
			continue
		}

		class, _ := rec.StringAttr(inventory.AttrInstanceClass)
		smaller, ok := cost.DownsizeClass(class)
		if !ok {
			continue
		}
		rate, haveRate := in.Rates.ComputeRate(class)
		smallerRate, haveSmaller := in.Rates.ComputeRate(smaller)
		if !haveRate || !haveSmaller || smallerRate >= rate {
			continue
		}
		out = append(out, Finding{
			Category:                   CategoryCost,
			Severity:                   SeverityLow,
			Rule:                       h.Name(),
			Resource:                   keyOf(rec),
			Message:                    fmt.Sprintf("%s averaged %.1f%% CPU with a %.1f%% peak", displayName(rec), avg, peak),
			Recommendation:             fmt.Sprintf("downsize from %s to %s", class, smaller),
			EstimatedMonthlySavingsUSD: (rate - smallerRate) * monthHours,
		})
	}
	return out
}

// UnattachedVolumeHeuristic flags volumes no instance is using. The full
// monthly rate is recoverable, so no proration applies.
type UnattachedVolumeHeuristic struct{}

func (h *UnattachedVolumeHeuristic) Name() string { return "unattached-volume" }

func (h *UnattachedVolumeHeuristic) Evaluate(in Inputs) []Finding {
	var out []Finding
	for _, rec := range in.byKind(inventory.KindVolume) {
		attached, _ := rec.StringAttr(inventory.AttrAttachedTo)
		if attached != "" {
			continue
		}
		if hasAnyTag(rec, in.Heuristics.UnattachedVolume.IgnoreTags) {
			continue
		}
		sizeGB, _ := rec.FloatAttr(inventory.AttrSizeGB)
		class, _ := rec.StringAttr(inventory.AttrStorageClass)
		out = append(out, Finding{
			Category:                   CategoryCost,
			Severity:                   SeverityMedium,
			Rule:                       h.Name(),
			Resource:                   keyOf(rec),
			Message:                    fmt.Sprintf("%s (%.0f GiB) is not attached to anything", displayName(rec), sizeGB),
			Recommendation:             "snapshot the volume and delete it",
			EstimatedMonthlySavingsUSD: sizeGB * in.Rates.StorageRate(class),
		})
	}
	return out
}

// AgedSnapshotHeuristic flags snapshots past the review age.
type AgedSnapshotHeuristic struct{}

func (h *AgedSnapshotHeuristic) Name() string { return "aged-snapshot" }

func (h *AgedSnapshotHeuristic) Evaluate(in Inputs) []Finding {
	maxAge := in.Heuristics.SnapshotAge.MaxAge
	if maxAge <= 0 {
		return nil
	}
	var out []Finding
	for _, rec := range in.byKind(inventory.KindSnapshot) {
		created, ok := rec.TimeAttr(inventory.AttrCreatedAt)
		if !ok {
			continue
		}
		age := in.now().Sub(created)
		if age < maxAge {
			continue
		}
		sizeGB, _ := rec.FloatAttr(inventory.AttrSizeGB)
		out = append(out, Finding{
			Category:                   CategoryCost,
			Severity:                   SeverityLow,
			Rule:                       h.Name(),
			Resource:                   keyOf(rec),
			Message:                    fmt.Sprintf("%s is %.0f days old", displayName(rec), age.Hours()/24),
			Recommendation:             "delete the snapshot if nothing still restores from it",
			EstimatedMonthlySavingsUSD: sizeGB * in.Rates.StorageRate("snapshot"),
		})
	}
	return out
}

// OversizedDatabaseHeuristic flags databases that pair low CPU with a large
// standing pool of freeable memory.
type OversizedDatabaseHeuristic struct{}

func (h *OversizedDatabaseHeuristic) Name() string { return "oversized-database" }

func (h *OversizedDatabaseHeuristic) Evaluate(in Inputs) []Finding {
	var out []Finding
	for _, rec := range in.byKind(inventory.KindDatabase) {
		key := rec.Key()
		avg, ok := in.metricValue(key, inventory.MetricCPU, inventory.StatAverage)
		if !ok || avg >= in.Heuristics.OversizedDB.CPUThreshold {
			continue
		}
		free, ok := in.metricValue(key, inventory.MetricFreeableMemory, inventory.StatAverage)
		if !ok || free < in.Heuristics.OversizedDB.FreeMemoryFloorBytes {
			continue
		}

		var savings float64
		recommendation := "consider a smaller instance class"
		class, _ := rec.StringAttr(inventory.AttrInstanceClass)
		if smaller, ok := cost.DownsizeClass(class); ok {
			rate, haveRate := in.Rates.DatabaseRate(class)
			smallerRate, haveSmaller := in.Rates.DatabaseRate(smaller)
			if haveRate && haveSmaller && smallerRate < rate {
				savings = (rate - smallerRate) * monthHours
				recommendation = fmt.Sprintf("downsize from %s to %s", class, smaller)
			}
		}
		out = append(out, Finding{
			Category:                   CategoryCost,
			Severity:                   SeverityMedium,
			Rule:                       h.Name(),
			Resource:                   keyOf(rec),
			Message:                    fmt.Sprintf("%s averaged %.1f%% CPU with %.1f GiB freeable memory", displayName(rec), avg, free/(1<<30)),
			Recommendation:             recommendation,
			EstimatedMonthlySavingsUSD: savings,
		})
	}
	return out
}

// ColdBucketHeuristic flags large object stores that nothing reads and that
// have no lifecycle policy moving data to a colder tier.
type ColdBucketHeuristic struct{}

func (h *ColdBucketHeuristic) Name() string { return "cold-bucket" }

func (h *ColdBucketHeuristic) Evaluate(in Inputs) []Finding {
	var out []Finding
	for _, rec := range in.byKind(inventory.KindObjectStore) {
		if managed, ok := rec.BoolAttr(inventory.AttrLifecyclePolicy); ok && managed {
			continue
		}
		bytes, ok := rec.FloatAttr(inventory.AttrStoredBytes)
		if !ok || bytes < in.Heuristics.StorageClass.MinSizeBytes {
			continue
		}
		reads, ok := in.metricValue(rec.Key(), inventory.MetricReadOps, inventory.StatTotal)
		if !ok || reads >= in.Heuristics.StorageClass.ReadOpsThreshold {
			continue
		}

		gb := bytes / (1 << 30)
		delta := in.Rates.StorageRate("standard") - in.Rates.StorageRate("glacier")
		out = append(out, Finding{
			Category:                   CategoryCost,
			Severity:                   SeverityLow,
			Rule:                       h.Name(),
			Resource:                   keyOf(rec),
			Message:                    fmt.Sprintf("%s holds %.0f GiB but served %.0f reads over the window", displayName(rec), gb, reads),
			Recommendation:             "add a lifecycle policy transitioning cold objects to an archive tier",
			EstimatedMonthlySavingsUSD: gb * delta,
		})
	}
	return out
}

// UnboundedLogRetentionHeuristic flags large log groups that never expire
// events.
type UnboundedLogRetentionHeuristic struct{}

func (h *UnboundedLogRetentionHeuristic) Name() string { return "unbounded-log-retention" }

func (h *UnboundedLogRetentionHeuristic) Evaluate(in Inputs) []Finding {
	var out []Finding
	for _, rec := range in.byKind(inventory.KindLogGroup) {
		if days, ok := rec.FloatAttr(inventory.AttrRetentionDays); ok && days > 0 {
			continue
		}
		bytes, ok := rec.FloatAttr(inventory.AttrStoredBytes)
		if !ok || bytes < in.Heuristics.LogRetention.MinStoredBytes {
			continue
		}
		gb := bytes / (1 << 30)
		out = append(out, Finding{
			Category:                   CategoryCost,
			Severity:                   SeverityMedium,
			Rule:                       h.Name(),
			Resource:                   keyOf(rec),
			Message:                    fmt.Sprintf("%s stores %.0f GiB with retention set to never expire", displayName(rec), gb),
			Recommendation:             "set a retention period so old events stop accruing storage",
			EstimatedMonthlySavingsUSD: gb * in.Rates.LogGBMonth,
		})
	}
	return out
}

// RegistryLifecycleHeuristic flags image registries with no lifecycle
// policy to expire stale images.
type RegistryLifecycleHeuristic struct{}

func (h *RegistryLifecycleHeuristic) Name() string { return "registry-lifecycle" }

func (h *RegistryLifecycleHeuristic) Evaluate(in Inputs) []Finding {
	var out []Finding
	for _, rec := range in.byKind(inventory.KindRegistry) {
		if managed, ok := rec.BoolAttr(inventory.AttrLifecyclePolicy); ok && managed {
			continue
		}
		var savings float64
		if bytes, ok := rec.FloatAttr(inventory.AttrStoredBytes); ok {
			savings = bytes / (1 << 30) * in.Rates.StorageRate("registry")
		}
		out = append(out, Finding{
			Category:                   CategoryCost,
			Severity:                   SeverityLow,
			Rule:                       h.Name(),
			Resource:                   keyOf(rec),
			Message:                    fmt.Sprintf("%s has no lifecycle policy", displayName(rec)),
			Recommendation:             "add a lifecycle policy expiring untagged images",
			EstimatedMonthlySavingsUSD: savings,
		})
	}
	return out
}

// IdleLoadBalancerHeuristic flags load balancers that served almost no
// requests over the window.
type IdleLoadBalancerHeuristic struct{}

func (h *IdleLoadBalancerHeuristic) Name() string { return "idle-load-balancer" }

func (h *IdleLoadBalancerHeuristic) Evaluate(in Inputs) []Finding {
	var out []Finding
	for _, rec := range in.byKind(inventory.KindLoadBalancer) {
		reqs, ok := in.metricValue(rec.Key(), inventory.MetricRequests, inventory.StatTotal)
		if !ok || reqs >= in.Heuristics.IdleLoadBalancer.RequestThreshold {
			continue
		}
		out = append(out, Finding{
			Category:                   CategoryCost,
			Severity:                   SeverityMedium,
			Rule:                       h.Name(),
			Resource:                   keyOf(rec),
			Message:                    fmt.Sprintf("%s served %.0f requests over the lookback window", displayName(rec), reqs),
			Recommendation:             "delete the load balancer if its targets are gone",
			EstimatedMonthlySavingsUSD: in.Rates.LoadBalancerHourly * monthHours,
		})
	}
	return out
}

// IdleNATGatewayHeuristic flags gateways with near-zero connection
// activity.
type IdleNATGatewayHeuristic struct{}

func (h *IdleNATGatewayHeuristic) Name() string { return "idle-nat-gateway" }

func (h *IdleNATGatewayHeuristic) Evaluate(in Inputs) []Finding {
	var out []Finding
	for _, rec := range in.byKind(inventory.KindNetwork) {
		conns, ok := in.metricValue(rec.Key(), inventory.MetricActiveConnections, inventory.StatTotal)
		if !ok || conns >= in.Heuristics.IdleNATGateway.ConnectionThreshold {
			continue
		}
		out = append(out, Finding{
			Category:                   CategoryCost,
			Severity:                   SeverityMedium,
			Rule:                       h.Name(),
			Resource:                   keyOf(rec),
			Message:                    fmt.Sprintf("%s tracked %.0f connections over the lookback window", displayName(rec), conns),
			Recommendation:             "delete the gateway; private subnets without egress traffic do not need one",
			EstimatedMonthlySavingsUSD: in.Rates.NATGatewayHourly * monthHours,
		})
	}
	return out
}

// EmptyClusterHeuristic flags clusters paying for a control plane with no
// worker nodes behind it.
type EmptyClusterHeuristic struct{}

func (h *EmptyClusterHeuristic) Name() string { return "empty-cluster" }

func (h *EmptyClusterHeuristic) Evaluate(in Inputs) []Finding {
	var out []Finding
	for _, rec := range in.byKind(inventory.KindCluster) {
		nodes, ok := rec.FloatAttr(inventory.AttrNodeCount)
		if !ok || nodes > 0 {
			continue
		}
		out = append(out, Finding{
			Category:                   CategoryCost,
			Severity:                   SeverityMedium,
			Rule:                       h.Name(),
			Resource:                   keyOf(rec),
			Message:                    fmt.Sprintf("%s has no worker nodes", displayName(rec)),
			Recommendation:             "delete the cluster or repoint workloads at it",
			EstimatedMonthlySavingsUSD: in.Rates.ClusterHourly * monthHours,
		})
	}
	return out
}

// ProvisionedTableHeuristic flags provisioned-capacity tables without
// autoscaling that consumed almost nothing.
type ProvisionedTableHeuristic struct{}

func (h *ProvisionedTableHeuristic) Name() string { return "provisioned-table" }

func (h *ProvisionedTableHeuristic) Evaluate(in Inputs) []Finding {
	var out []Finding
	for _, rec := range in.byKind(inventory.KindTable) {
		mode, _ := rec.StringAttr(inventory.AttrBillingMode)
		if mode != "PROVISIONED" {
			continue
		}
		if scaling, ok := rec.BoolAttr(inventory.AttrAutoscaling); ok && scaling {
			continue
		}
		key := rec.Key()
		reads, readsOK := in.metricValue(key, inventory.MetricReadOps, inventory.StatTotal)
		writes, writesOK := in.metricValue(key, inventory.MetricWriteOps, inventory.StatTotal)
		if !readsOK || !writesOK || reads+writes >= tableIdleOpsTotal {
			continue
		}
		out = append(out, Finding{
			Category:       CategoryCost,
			Severity:       SeverityLow,
			Rule:           h.Name(),
			Resource:       keyOf(rec),
			Message:        fmt.Sprintf("%s is provisioned without autoscaling and consumed %.0f operations", displayName(rec), reads+writes),
			Recommendation: "switch the table to on-demand capacity",
		})
	}
	return out
}

// UnattachedAddressHeuristic flags reserved addresses nothing uses.
type UnattachedAddressHeuristic struct{}

func (h *UnattachedAddressHeuristic) Name() string { return "unattached-address" }

func (h *UnattachedAddressHeuristic) Evaluate(in Inputs) []Finding {
	var out []Finding
	for _, rec := range in.byKind(inventory.KindAddress) {
		attached, _ := rec.StringAttr(inventory.AttrAttachedTo)
		if attached != "" {
			continue
		}
		recommendation := "release the address"
		if referenced, ok := rec.BoolAttr(inventory.AttrDNSReferenced); ok && referenced {
			recommendation = "a DNS record still resolves to this address; repoint it before releasing"
		}
		out = append(out, Finding{
			Category:                   CategoryCost,
			Severity:                   SeverityLow,
			Rule:                       h.Name(),
			Resource:                   keyOf(rec),
			Message:                    fmt.Sprintf("%s is reserved but not attached", displayName(rec)),
			Recommendation:             recommendation,
			EstimatedMonthlySavingsUSD: in.Rates.AddressHourly * monthHours,
		})
	}
	return out
}

func hasAnyTag(rec inventory.ResourceRecord, keys []string) bool {
	for _, k := range keys {
		if _, ok := rec.Tags[k]; ok {
			return true
		}
	}
	return false
}
