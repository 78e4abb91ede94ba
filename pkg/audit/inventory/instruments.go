package inventory

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Unit instruments are process-global: every orchestrator shares one set,
// registered against whatever meter provider the host application
// installed. Without one they are no-ops, same as spans without an
// exporter.
var (
	instrumentsOnce sync.Once
	unitsExecuted   metric.Int64Counter
	unitsFailed     metric.Int64Counter
	unitSeconds     metric.Float64Histogram
)

func instruments() (metric.Int64Counter, metric.Int64Counter, metric.Float64Histogram) {
	instrumentsOnce.Do(func() {
		meter := otel.Meter("cloudgauge/inventory")
		unitsExecuted, _ = meter.Int64Counter("cloudgauge.probe.units",
			metric.WithDescription("Discovery units executed"))
		unitsFailed, _ = meter.Int64Counter("cloudgauge.probe.failures",
			metric.WithDescription("Discovery units that exhausted their retry budget"))
		unitSeconds, _ = meter.Float64Histogram("cloudgauge.probe.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Wall-clock seconds per discovery unit"))
	})
	return unitsExecuted, unitsFailed, unitSeconds
}
