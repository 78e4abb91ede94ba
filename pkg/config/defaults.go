// Package config defines default configuration, thresholds, and analysis parameters.
package config

import "time"

// Thresholds defines the utilization boundaries used by the findings engine.
type Thresholds struct {
	// CPUHighPct marks a resource as a bottleneck candidate at or above this average CPU.
	CPUHighPct float64 `mapstructure:"cpu_high_pct"`
	// CPULowPct marks a resource as underutilized at or below this average CPU.
	CPULowPct float64 `mapstructure:"cpu_low_pct"`
	// MemoryHighPct marks a resource as memory constrained at or above this average.
	MemoryHighPct float64 `mapstructure:"memory_high_pct"`
	// ConnectionSaturationPct flags databases whose connection usage exceeds this share of the configured maximum.
	ConnectionSaturationPct float64 `mapstructure:"connection_saturation_pct"`
}

// MetricsConfig defines the sampling window for metric collection.
type MetricsConfig struct {
	// Period is the aggregation interval requested from the provider.
	Period time.Duration `mapstructure:"period"`
	// Lookback is how far back the collection window starts.
	Lookback time.Duration `mapstructure:"lookback"`
}

// Defaults.
const (
	DefaultRegion = "us-east-1"
	// DefaultConcurrency bounds the discovery and collection worker pools.
	DefaultConcurrency = 8
	// AllocationTagKey is the cost allocation tag consulted before falling back
	// to the resource's own tags.
	AllocationTagKey = "cloudgauge:resource"
)

// DefaultThresholds returns the standard utilization boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUHighPct:              80.0,
		CPULowPct:               10.0,
		MemoryHighPct:           85.0,
		ConnectionSaturationPct: 90.0,
	}
}

// DefaultMetricsConfig returns the standard collection window.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Period:   1 * time.Hour,
		Lookback: 14 * 24 * time.Hour,
	}
}
