package config

import "time"

// HeuristicConfig defines settings for cost optimization heuristics.
type HeuristicConfig struct {
	IdleInstance     IdleInstanceConfig     `mapstructure:"idle_instance"`
	RightSize        RightSizeConfig        `mapstructure:"right_size"`
	UnattachedVolume UnattachedVolumeConfig `mapstructure:"unattached_volume"`
	SnapshotAge      SnapshotAgeConfig      `mapstructure:"snapshot_age"`
	OversizedDB      OversizedDBConfig      `mapstructure:"oversized_db"`
	StorageClass     StorageClassConfig     `mapstructure:"storage_class"`
	LogRetention     LogRetentionConfig     `mapstructure:"log_retention"`
	IdleLoadBalancer IdleLoadBalancerConfig `mapstructure:"idle_load_balancer"`
	IdleNATGateway   IdleNATGatewayConfig   `mapstructure:"idle_nat_gateway"`
	QuickWinCount    int                    `mapstructure:"quick_win_count"`
}

type IdleInstanceConfig struct {
	// CPUThreshold is the average CPU percentage below which an instance counts as idle.
	CPUThreshold float64 `mapstructure:"cpu_threshold"`
	// MinUptime is the minimum observed lifetime before the heuristic applies.
	MinUptime time.Duration `mapstructure:"min_uptime"`
}

type RightSizeConfig struct {
	// AvgCeilingPct is the average CPU upper bound of the right-size band.
	AvgCeilingPct float64 `mapstructure:"avg_ceiling_pct"`
	// MaxCeilingPct is the peak CPU upper bound of the right-size band.
	MaxCeilingPct float64 `mapstructure:"max_ceiling_pct"`
}

type UnattachedVolumeConfig struct {
	// IgnoreTags is a list of tag keys that exempt a volume.
	IgnoreTags []string `mapstructure:"ignore_tags"`
}

type SnapshotAgeConfig struct {
	// MaxAge is the age past which a snapshot is flagged for review.
	MaxAge time.Duration `mapstructure:"max_age"`
}

type OversizedDBConfig struct {
	// CPUThreshold is the average CPU percentage below which a database counts as oversized.
	CPUThreshold float64 `mapstructure:"cpu_threshold"`
	// FreeMemoryFloorBytes requires at least this much consistently free memory.
	FreeMemoryFloorBytes float64 `mapstructure:"free_memory_floor_bytes"`
}

type StorageClassConfig struct {
	// MinSizeBytes is the bucket size above which lifecycle advice is emitted.
	MinSizeBytes float64 `mapstructure:"min_size_bytes"`
	// ReadOpsThreshold is the total read operations over the window below which
	// the bucket counts as cold.
	ReadOpsThreshold float64 `mapstructure:"read_ops_threshold"`
}

type LogRetentionConfig struct {
	// MinStoredBytes is the log group size above which unbounded retention is flagged.
	MinStoredBytes float64 `mapstructure:"min_stored_bytes"`
}

type IdleLoadBalancerConfig struct {
	// RequestThreshold is the total request count over the window below which
	// a load balancer counts as idle.
	RequestThreshold float64 `mapstructure:"request_threshold"`
}

type IdleNATGatewayConfig struct {
	// ConnectionThreshold is the total connection count over the window below
	// which a gateway counts as idle.
	ConnectionThreshold float64 `mapstructure:"connection_threshold"`
}

// DefaultHeuristicConfig returns a configuration with sensible default values.
func DefaultHeuristicConfig() HeuristicConfig {
	return HeuristicConfig{
		IdleInstance: IdleInstanceConfig{
			CPUThreshold: 5.0,
			MinUptime:    24 * time.Hour,
		},
		RightSize: RightSizeConfig{
			AvgCeilingPct: 20.0,
			MaxCeilingPct: 40.0,
		},
		UnattachedVolume: UnattachedVolumeConfig{
			IgnoreTags: []string{},
		},
		SnapshotAge: SnapshotAgeConfig{
			MaxAge: 90 * 24 * time.Hour,
		},
		OversizedDB: OversizedDBConfig{
			CPUThreshold:         20.0,
			FreeMemoryFloorBytes: 4 * 1024 * 1024 * 1024,
		},
		StorageClass: StorageClassConfig{
			MinSizeBytes:     128 * 1024 * 1024 * 1024,
			ReadOpsThreshold: 100,
		},
		LogRetention: LogRetentionConfig{
			MinStoredBytes: 10 * 1024 * 1024 * 1024,
		},
		IdleLoadBalancer: IdleLoadBalancerConfig{
			RequestThreshold: 100,
		},
		IdleNATGateway: IdleNATGatewayConfig{
			ConnectionThreshold: 100,
		},
		QuickWinCount: 5,
	}
}
