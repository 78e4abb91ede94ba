package cost

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RateTable holds the unit prices behind every estimate. It ships with a
// static on-demand catalog, can be overlaid from a YAML file, and can be
// refined from the provider's pricing API. Estimates derived from it target
// a ±10% tolerance; they are approximations, not guarantees.
//
// The table is built before a run and read afterwards; it is not safe for
// concurrent mutation.
type RateTable struct {
	ComputeHourly              map[string]float64 `yaml:"compute_hourly"`
	DatabaseHourly             map[string]float64 `yaml:"database_hourly"`
	CacheHourly                map[string]float64 `yaml:"cache_hourly"`
	WarehouseHourly            map[string]float64 `yaml:"warehouse_hourly"`
	StorageGBMonth             map[string]float64 `yaml:"storage_gb_month"`
	DatabaseStorageGBMonth     float64            `yaml:"database_storage_gb_month"`
	FunctionPerMillionRequests float64            `yaml:"function_per_million_requests"`
	FunctionGBSecond           float64            `yaml:"function_gb_second"`
	LoadBalancerHourly         float64            `yaml:"load_balancer_hourly"`
	NATGatewayHourly           float64            `yaml:"nat_gateway_hourly"`
	ClusterHourly              float64            `yaml:"cluster_hourly"`
	AddressHourly              float64            `yaml:"address_hourly"`
	LogGBMonth                 float64            `yaml:"log_gb_month"`
}

// DefaultRateTable returns the static us-east-1 on-demand catalog.
func DefaultRateTable() *RateTable {
	return &RateTable{
		ComputeHourly: map[string]float64{
			"t3.nano":    0.0052,
			"t3.micro":   0.0104,
			"t3.small":   0.0208,
			"t3.medium":  0.0416,
			"t3.large":   0.0832,
			"t3.xlarge":  0.1664,
			"t3.2xlarge": 0.3328,
			"m5.large":   0.096,
			"m5.xlarge":  0.192,
			"m5.2xlarge": 0.384,
			"m5.4xlarge": 0.768,
			"m6g.large":  0.077,
			"m6g.xlarge": 0.154,
			"c5.large":   0.085,
			"c5.xlarge":  0.17,
			"c5.2xlarge": 0.34,
			"c6g.large":  0.068,
			"c6g.xlarge": 0.136,
			"r5.large":   0.126,
			"r5.xlarge":  0.252,
			"r6g.large":  0.1008,
		},
		DatabaseHourly: map[string]float64{
			"db.t3.micro":  0.017,
			"db.t3.small":  0.034,
			"db.t3.medium": 0.068,
			"db.t3.large":  0.136,
			"db.m5.large":  0.171,
			"db.m5.xlarge": 0.342,
			"db.r5.large":  0.24,
			"db.r5.xlarge": 0.48,
		},
		CacheHourly: map[string]float64{
			"cache.t3.micro":  0.017,
			"cache.t3.small":  0.034,
			"cache.t3.medium": 0.068,
			"cache.m5.large":  0.156,
			"cache.r5.large":  0.216,
		},
		WarehouseHourly: map[string]float64{
			"dc2.large":   0.25,
			"dc2.8xlarge": 4.80,
			"ra3.xlplus":  1.086,
			"ra3.4xlarge": 3.26,
		},
		StorageGBMonth: map[string]float64{
			"gp2":      0.10,
			"gp3":      0.08,
			"io1":      0.125,
			"st1":      0.045,
			"sc1":      0.015,
			"standard": 0.023,
			"snapshot": 0.05,
			"glacier":  0.004,
			"registry": 0.10,
		},
		DatabaseStorageGBMonth:     0.115,
		FunctionPerMillionRequests: 0.20,
		FunctionGBSecond:           0.0000166667,
		LoadBalancerHourly:         0.0225,
		NATGatewayHourly:           0.045,
		ClusterHourly:              0.10,
		AddressHourly:              0.005,
		LogGBMonth:                 0.03,
	}
}

// rateOverlay mirrors RateTable with optional scalars so a YAML file
// replaces only the keys it names.
type rateOverlay struct {
	ComputeHourly              map[string]float64 `yaml:"compute_hourly"`
	DatabaseHourly             map[string]float64 `yaml:"database_hourly"`
	CacheHourly                map[string]float64 `yaml:"cache_hourly"`
	WarehouseHourly            map[string]float64 `yaml:"warehouse_hourly"`
	StorageGBMonth             map[string]float64 `yaml:"storage_gb_month"`
	DatabaseStorageGBMonth     *float64           `yaml:"database_storage_gb_month"`
	FunctionPerMillionRequests *float64           `yaml:"function_per_million_requests"`
	FunctionGBSecond           *float64           `yaml:"function_gb_second"`
	LoadBalancerHourly         *float64           `yaml:"load_balancer_hourly"`
	NATGatewayHourly           *float64           `yaml:"nat_gateway_hourly"`
	ClusterHourly              *float64           `yaml:"cluster_hourly"`
	AddressHourly              *float64           `yaml:"address_hourly"`
	LogGBMonth                 *float64           `yaml:"log_gb_month"`
}

// LoadRateTable applies a YAML overlay on top of the default catalog. An
// empty path returns the defaults unchanged.
func LoadRateTable(path string) (*RateTable, error) {
	table := DefaultRateTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate table: %w", err)
	}
	var overlay rateOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse rate table %s: %w", path, err)
	}

	mergeRates(table.ComputeHourly, overlay.ComputeHourly)
	mergeRates(table.DatabaseHourly, overlay.DatabaseHourly)
	mergeRates(table.CacheHourly, overlay.CacheHourly)
	mergeRates(table.WarehouseHourly, overlay.WarehouseHourly)
	mergeRates(table.StorageGBMonth, overlay.StorageGBMonth)
	if overlay.DatabaseStorageGBMonth != nil {
		table.DatabaseStorageGBMonth = *overlay.DatabaseStorageGBMonth
	}
	if overlay.FunctionPerMillionRequests != nil {
		table.FunctionPerMillionRequests = *overlay.FunctionPerMillionRequests
	}
	if overlay.FunctionGBSecond != nil {
		table.FunctionGBSecond = *overlay.FunctionGBSecond
	}
	if overlay.LoadBalancerHourly != nil {
		table.LoadBalancerHourly = *overlay.LoadBalancerHourly
	}
	if overlay.NATGatewayHourly != nil {
		table.NATGatewayHourly = *overlay.NATGatewayHourly
	}
	if overlay.ClusterHourly != nil {
		table.ClusterHourly = *overlay.ClusterHourly
	}
	if overlay.AddressHourly != nil {
		table.AddressHourly = *overlay.AddressHourly
	}
	if overlay.LogGBMonth != nil {
		table.LogGBMonth = *overlay.LogGBMonth
	}
	return table, nil
}

func mergeRates(dst, src map[string]float64) {
	for k, v := range src {
		dst[k] = v
	}
}

// Family fallback rates for compute classes outside the catalog, keyed by
// family prefix letter.
var familyHourly = map[byte]float64{
	't': 0.04,
	'm': 0.10,
	'c': 0.09,
	'r': 0.13,
}

// ComputeRate returns the hourly rate for an instance class, falling back
// to a family approximation when the exact class is unknown.
func (t *RateTable) ComputeRate(class string) (float64, bool) {
	if rate, ok := t.ComputeHourly[class]; ok {
		return rate, true
	}
	if class == "" {
		return 0, false
	}
	if rate, ok := familyHourly[class[0]]; ok {
		if strings.Contains(class, "xlarge") {
			return rate * 2, true
		}
		return rate, true
	}
	return 0, false
}

// DatabaseRate returns the hourly rate for a database class.
func (t *RateTable) DatabaseRate(class string) (float64, bool) {
	rate, ok := t.DatabaseHourly[class]
	return rate, ok
}

// CacheRate returns the hourly rate for a cache node class.
func (t *RateTable) CacheRate(class string) (float64, bool) {
	rate, ok := t.CacheHourly[class]
	return rate, ok
}

// WarehouseRate returns the hourly per-node rate for a warehouse class.
func (t *RateTable) WarehouseRate(class string) (float64, bool) {
	rate, ok := t.WarehouseHourly[class]
	return rate, ok
}

// StorageRate returns the GB-month rate for a storage class, defaulting to
// gp3 for unknown block-storage tiers.
func (t *RateTable) StorageRate(class string) float64 {
	if rate, ok := t.StorageGBMonth[class]; ok {
		return rate
	}
	return t.StorageGBMonth["gp3"]
}

// SetComputeRate records a refined rate, typically from the pricing API.
func (t *RateTable) SetComputeRate(class string, hourly float64) {
	t.ComputeHourly[class] = hourly
}

// SetDatabaseRate records a refined database rate.
func (t *RateTable) SetDatabaseRate(class string, hourly float64) {
	t.DatabaseHourly[class] = hourly
}

// MissingComputeClasses returns the classes with no exact catalog entry,
// deduplicated, preserving first-seen order. These are the candidates for
// pricing API refinement.
func (t *RateTable) MissingComputeClasses(classes []string) []string {
	seen := make(map[string]struct{}, len(classes))
	var out []string
	for _, c := range classes {
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		if _, ok := t.ComputeHourly[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// sizeLadder orders size suffixes for downsizing recommendations.
var sizeLadder = []string{"nano", "micro", "small", "medium", "large", "xlarge", "2xlarge", "4xlarge", "8xlarge", "12xlarge", "16xlarge", "24xlarge"}

// DownsizeClass returns the next size down within the same family, such as
// t3.large to t3.medium. The smallest size has nowhere to go.
func DownsizeClass(class string) (string, bool) {
	idx := strings.LastIndex(class, ".")
	if idx < 0 {
		return "", false
	}
	family, size := class[:idx], class[idx+1:]
	for i, s := range sizeLadder {
		if s == size {
			if i == 0 {
				return "", false
			}
			return family + "." + sizeLadder[i-1], true
		}
	}
	return "", false
}
