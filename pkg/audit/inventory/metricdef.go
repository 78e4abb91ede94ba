package inventory

import "time"

// Statistic names an aggregation the metrics collector can request.
type Statistic string

const (
	// StatCurrent selects the newest datapoint in the window.
	StatCurrent Statistic = "current"
	// StatAverage is the mean of per-period averages.
	StatAverage Statistic = "average"
	// StatMaximum is the max of per-period maxima.
	StatMaximum Statistic = "maximum"
	// StatTotal is the sum of per-period sums.
	StatTotal Statistic = "total"
)

// Engine-facing metric names. Probes map these onto provider-side series so
// the analysis passes can reason about "cpu" without knowing namespaces.
const (
	MetricCPU               = "cpu"
	MetricMemory            = "memory"
	MetricConnections       = "connections"
	MetricInvocations       = "invocations"
	MetricDuration          = "duration"
	MetricRequests          = "requests"
	MetricStorageBytes      = "storage_bytes"
	MetricObjectCount       = "object_count"
	MetricReadOps           = "read_ops"
	MetricWriteOps          = "write_ops"
	MetricFreeableMemory    = "freeable_memory"
	MetricActiveConnections = "active_connections"
)

// MetricQuery identifies the provider-side series to fetch.
type MetricQuery struct {
	Namespace  string            `json:"namespace"`
	MetricName string            `json:"metricName"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
}

// MetricDefinition describes one metric to collect for a resource: the
// engine-facing name, the provider query behind it, the statistics to
// request, and the explanation emitted when the provider returns no
// datapoints. The note is configuration data, not inference; definitions
// without one fall back to a generic explanation.
type MetricDefinition struct {
	Name       string      `json:"name"`
	Unit       string      `json:"unit,omitempty"`
	Statistics []Statistic `json:"statistics"`
	Query      MetricQuery `json:"query"`
	// Period overrides the collector's default granularity; metrics the
	// provider refreshes once per day need a daily period to return data.
	Period     time.Duration `json:"period,omitempty"`
	NoDataNote string        `json:"noDataNote,omitempty"`
}
