package awsprobe

import (
	"context"
	"errors"
	"time"

	"github.com/gaugeworks/cloudgauge/pkg/audit/cost"
	"github.com/gaugeworks/cloudgauge/pkg/audit/faults"
	"github.com/gaugeworks/cloudgauge/pkg/audit/findings"
	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
	"github.com/gaugeworks/cloudgauge/pkg/audit/metrics"
	"github.com/gaugeworks/cloudgauge/pkg/config"
)

const (
	day = 24 * time.Hour
	gib = 1 << 30
)

// Mock estate regions. The second region stays sparse so multi-region
// output is visible without drowning the interesting fixtures.
const (
	mockPrimaryRegion   = "us-east-1"
	mockSecondaryRegion = "eu-west-1"
)

// errMockDenied simulates a region the demo credentials cannot audit.
var errMockDenied = errors.New("not authorized to perform ec2:DescribeSecurityGroups")

// MockProvider serves a fixed two-region estate with no credentials and no
// network: discovery, metrics, billing, and account posture all come from
// seeded fixtures. Every analysis pass has at least one fixture that trips
// it and one that stays healthy, so a demo run produces a representative
// report end to end.
type MockProvider struct {
	records []inventory.ResourceRecord
	querier *mockQuerier
}

// NewMockProvider seeds the estate relative to now so age-gated findings
// stay stable wherever the clock is. A zero now means the current time.
func NewMockProvider(now time.Time) *MockProvider {
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &MockProvider{
		records: mockRecords(now),
		querier: &mockQuerier{series: mockSeriesSeed()},
	}
}

// Regions returns the regions the seeded estate spans.
func (m *MockProvider) Regions() []string {
	return []string{mockPrimaryRegion, mockSecondaryRegion}
}

// Registry mirrors the live probe registry over the seeded estate, reusing
// the real metric catalogs so collection issues the same queries a live
// run would.
func (m *MockProvider) Registry() *inventory.ProbeRegistry {
	reg := inventory.NewProbeRegistry()
	reg.MustRegister(inventory.Entry{Type: TypeInstance, Kind: inventory.KindCompute, Discover: m.discover(TypeInstance), MetricDefs: instanceMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeVolume, Kind: inventory.KindVolume, Discover: m.discover(TypeVolume), MetricDefs: volumeMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeSnapshot, Kind: inventory.KindSnapshot, Discover: m.discover(TypeSnapshot)})
	reg.MustRegister(inventory.Entry{Type: TypeAddress, Kind: inventory.KindAddress, Discover: m.discover(TypeAddress)})
	reg.MustRegister(inventory.Entry{Type: TypeNATGateway, Kind: inventory.KindNetwork, Discover: m.discover(TypeNATGateway), MetricDefs: natMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeSecurityGroup, Kind: inventory.KindSecurityGroup, Discover: m.discover(TypeSecurityGroup)})
	reg.MustRegister(inventory.Entry{Type: TypeDatabase, Kind: inventory.KindDatabase, Discover: m.discover(TypeDatabase), MetricDefs: databaseMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeFunction, Kind: inventory.KindFunction, Discover: m.discover(TypeFunction), MetricDefs: functionMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeBucket, Kind: inventory.KindObjectStore, Discover: m.discover(TypeBucket), MetricDefs: bucketMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeLoadBalancer, Kind: inventory.KindLoadBalancer, Discover: m.discover(TypeLoadBalancer), MetricDefs: loadBalancerMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeTable, Kind: inventory.KindTable, Discover: m.discover(TypeTable), MetricDefs: tableMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeCache, Kind: inventory.KindCache, Discover: m.discover(TypeCache), MetricDefs: cacheMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeKubeCluster, Kind: inventory.KindCluster, Discover: m.discover(TypeKubeCluster), MetricDefs: kubeClusterMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeECSCluster, Kind: inventory.KindCluster, Discover: m.discover(TypeECSCluster), MetricDefs: ecsClusterMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeRegistry, Kind: inventory.KindRegistry, Discover: m.discover(TypeRegistry)})
	reg.MustRegister(inventory.Entry{Type: TypeWarehouse, Kind: inventory.KindWarehouse, Discover: m.discover(TypeWarehouse), MetricDefs: warehouseMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeLogGroup, Kind: inventory.KindLogGroup, Discover: m.discover(TypeLogGroup), MetricDefs: logGroupMetricDefs})
	return reg
}

// discover returns a probe over the seeded records of one type. The
// secondary region denies the security group probe so partial-result
// handling shows up in demo output.
func (m *MockProvider) discover(t inventory.ResourceType) inventory.DiscoverFunc {
	return func(ctx context.Context, region string, f inventory.Filters) ([]inventory.ResourceRecord, error) {
		// Simulate probe latency.
		time.Sleep(20 * time.Millisecond)
		if t == TypeSecurityGroup && region == mockSecondaryRegion {
			return nil, faults.New(faults.PermissionDenied, "DescribeSecurityGroups", errMockDenied)
		}
		var out []inventory.ResourceRecord
		for _, rec := range m.records {
			if rec.Type != t || rec.Region != region {
				continue
			}
			if f.Match(rec) {
				out = append(out, rec)
			}
		}
		return out, nil
	}
}

// Querier returns the seeded metrics backend.
func (m *MockProvider) Querier() metrics.Querier { return m.querier }

// Billing returns the seeded billing backend.
func (m *MockProvider) Billing() cost.BillingSource { return mockBilling{} }

// Posture returns a snapshot with one stale credential so the rotation
// check has something to say.
func (m *MockProvider) Posture() *findings.Posture {
	return &findings.Posture{
		AccessKeyAges:    []time.Duration{150 * day, 30 * day},
		AuditTrailActive: true,
	}
}

// mockRecords seeds the estate.
func mockRecords(now time.Time) []inventory.ResourceRecord {
	return []inventory.ResourceRecord{
		// Idle compute: weeks of uptime, single-digit CPU.
		{
			Type:   TypeInstance,
			ID:     "i-0idle4b2d9e301a7",
			Name:   "batch-runner-1",
			Region: mockPrimaryRegion,
			State:  "running",
			Attributes: map[string]any{
				inventory.AttrInstanceClass: "t3.large",
				inventory.AttrLaunchTime:    now.Add(-45 * day),
				"AvailabilityZone":          "us-east-1a",
			},
			Tags: map[string]string{"Name": "batch-runner-1", "team": "data"},
		},
		// Saturated compute: the checkout head pegs CPU and memory.
		{
			Type:   TypeInstance,
			ID:     "i-0busy7c31f08d2e5",
			Name:   "checkout-api-1",
			Region: mockPrimaryRegion,
			State:  "running",
			Attributes: map[string]any{
				inventory.AttrInstanceClass: "m5.xlarge",
				inventory.AttrLaunchTime:    now.Add(-200 * day),
				"AvailabilityZone":          "us-east-1b",
			},
			Tags: map[string]string{"Name": "checkout-api-1", config.AllocationTagKey: "checkout-api"},
		},
		// Right-size candidate: steady low average, modest peak.
		{
			Type:   TypeInstance,
			ID:     "i-0mid58a1c4f7b3d9",
			Name:   "reporting-api-1",
			Region: mockPrimaryRegion,
			State:  "running",
			Attributes: map[string]any{
				inventory.AttrInstanceClass: "c5.xlarge",
				inventory.AttrLaunchTime:    now.Add(-90 * day),
				"AvailabilityZone":          "us-east-1a",
			},
			Tags: map[string]string{"Name": "reporting-api-1", "team": "analytics"},
		},
		// Orphaned volume: detached scratch disk nobody reclaimed.
		{
			Type:   TypeVolume,
			ID:     "vol-0orphan93cd12ab4",
			Name:   "jenkins-scratch",
			Region: mockPrimaryRegion,
			State:  "available",
			Attributes: map[string]any{
				inventory.AttrSizeGB:       200,
				inventory.AttrStorageClass: "gp3",
				inventory.AttrEncrypted:    true,
				inventory.AttrCreatedAt:    now.Add(-75 * day),
			},
			Tags: map[string]string{"Name": "jenkins-scratch"},
		},
		// Attached but unencrypted gp2 volume behind the checkout head.
		{
			Type:   TypeVolume,
			ID:     "vol-0data61f4e8a02c7",
			Name:   "checkout-data",
			Region: mockPrimaryRegion,
			State:  "in-use",
			Attributes: map[string]any{
				inventory.AttrSizeGB:       100,
				inventory.AttrStorageClass: "gp2",
				inventory.AttrEncrypted:    false,
				inventory.AttrCreatedAt:    now.Add(-200 * day),
				inventory.AttrAttachedTo:   "i-0busy7c31f08d2e5",
			},
			Tags: map[string]string{"Name": "checkout-data"},
		},
		// Aged snapshot: pre-migration backup nobody deleted.
		{
			Type:   TypeSnapshot,
			ID:     "snap-0aged5f82e13b09",
			Name:   "pre-migration-backup",
			Region: mockPrimaryRegion,
			State:  "completed",
			Attributes: map[string]any{
				inventory.AttrSizeGB:       500,
				inventory.AttrStorageClass: "snapshot",
				inventory.AttrEncrypted:    true,
				inventory.AttrCreatedAt:    now.Add(-120 * day),
				"SourceVolume":             "vol-0data61f4e8a02c7",
			},
			Tags: map[string]string{"Name": "pre-migration-backup"},
		},
		// Unattached address, clean of DNS references.
		{
			Type:   TypeAddress,
			ID:     "eipalloc-0f4a7c2d1",
			Region: mockPrimaryRegion,
			State:  "allocated",
			Attributes: map[string]any{
				"PublicIP":                  "203.0.113.10",
				inventory.AttrDNSReferenced: false,
			},
		},
		// Unattached address that a DNS record still resolves to.
		{
			Type:   TypeAddress,
			ID:     "eipalloc-0dangler88",
			Region: mockPrimaryRegion,
			State:  "allocated",
			Attributes: map[string]any{
				"PublicIP":                  "203.0.113.99",
				inventory.AttrDNSReferenced: true,
			},
		},
		// Idle NAT gateway: a trickle of connections.
		{
			Type:   TypeNATGateway,
			ID:     "nat-0quiet3e91b7a44",
			Name:   "staging-egress",
			Region: mockPrimaryRegion,
			State:  "available",
			Attributes: map[string]any{
				"VpcId":    "vpc-0a1b2c3d",
				"SubnetId": "subnet-0e9f8a7b",
				"PublicIP": "198.51.100.24",
			},
			Tags: map[string]string{"Name": "staging-egress"},
		},
		// World-open admin ports on a forgotten bastion group.
		{
			Type:   TypeSecurityGroup,
			ID:     "sg-0bastion2f6c1d09",
			Name:   "legacy-bastion",
			Region: mockPrimaryRegion,
			State:  "active",
			Attributes: map[string]any{
				"VpcId":                      "vpc-0a1b2c3d",
				inventory.AttrOpenAdminPorts: []int{22, 3389},
			},
		},
		// Healthy group: nothing admin-facing exposed.
		{
			Type:   TypeSecurityGroup,
			ID:     "sg-0app9d4e7f21a8b0",
			Name:   "app-servers",
			Region: mockPrimaryRegion,
			State:  "active",
			Attributes: map[string]any{
				"VpcId": "vpc-0a1b2c3d",
			},
		},
		// Oversized database: idle CPU, most memory free, publicly reachable.
		{
			Type:   TypeDatabase,
			ID:     "orders-pg-replica",
			Name:   "orders-pg-replica",
			Region: mockPrimaryRegion,
			State:  "available",
			Attributes: map[string]any{
				inventory.AttrInstanceClass:      "db.r5.large",
				inventory.AttrEngine:             "postgres",
				inventory.AttrSizeGB:             500,
				inventory.AttrStorageClass:       "gp3",
				inventory.AttrEncrypted:          true,
				inventory.AttrPubliclyAccessible: true,
				"MultiAZ":                        false,
				inventory.AttrMaxConnections:     1600,
				inventory.AttrCreatedAt:          now.Add(-300 * day),
			},
			Tags: map[string]string{"team": "orders"},
		},
		// Hot function: high invocation volume for usage-based estimates.
		{
			Type:   TypeFunction,
			ID:     "image-resize",
			Name:   "image-resize",
			Region: mockPrimaryRegion,
			State:  "active",
			Attributes: map[string]any{
				inventory.AttrMemoryMB: 512,
				"Runtime":              "python3.12",
				"CodeSizeBytes":        int64(18874368),
			},
		},
		// Cold function: never invoked, so its metrics come back note-only.
		{
			Type:   TypeFunction,
			ID:     "dr-failover-hook",
			Name:   "dr-failover-hook",
			Region: mockPrimaryRegion,
			State:  "active",
			Attributes: map[string]any{
				inventory.AttrMemoryMB: 128,
				"Runtime":              "provided.al2023",
				"CodeSizeBytes":        int64(4194304),
			},
		},
		// Cold bucket: nearly a terabyte, no lifecycle rules, public policy.
		{
			Type:   TypeBucket,
			ID:     "acme-archive-reports",
			Name:   "acme-archive-reports",
			Region: mockPrimaryRegion,
			State:  "active",
			Attributes: map[string]any{
				inventory.AttrLifecyclePolicy: false,
				inventory.AttrPublic:          true,
				inventory.AttrStoredBytes:     float64(900 * gib),
				inventory.AttrCreatedAt:       now.Add(-400 * day),
			},
			Tags: map[string]string{"retention": "unknown"},
		},
		// Healthy bucket with lifecycle rules and steady reads.
		{
			Type:   TypeBucket,
			ID:     "acme-app-assets",
			Name:   "acme-app-assets",
			Region: mockPrimaryRegion,
			State:  "active",
			Attributes: map[string]any{
				inventory.AttrLifecyclePolicy: true,
				inventory.AttrPublic:          false,
				inventory.AttrStoredBytes:     float64(40 * gib),
				inventory.AttrCreatedAt:       now.Add(-250 * day),
			},
		},
		// Idle internet-facing balancer with no web ACL in front.
		{
			Type:   TypeLoadBalancer,
			ID:     "arn:aws:elasticloadbalancing:us-east-1:123456789012:loadbalancer/app/internal-legacy/50dc6c495c0c9188",
			Name:   "internal-legacy",
			Region: mockPrimaryRegion,
			State:  "active",
			Attributes: map[string]any{
				inventory.AttrInternetFacing: true,
				"LoadBalancerType":           "application",
				"MetricDimension":            "app/internal-legacy/50dc6c495c0c9188",
				inventory.AttrWAFProtected:   false,
				inventory.AttrCreatedAt:      now.Add(-150 * day),
			},
		},
		// Provisioned table serving almost no traffic and not autoscaling.
		{
			Type:   TypeTable,
			ID:     "orders-archive",
			Name:   "orders-archive",
			Region: mockPrimaryRegion,
			State:  "active",
			Attributes: map[string]any{
				inventory.AttrBillingMode: "PROVISIONED",
				"ProvisionedRCU":          float64(100),
				"ProvisionedWCU":          float64(50),
				"ItemCount":               int64(1200000),
				inventory.AttrStoredBytes: float64(5 * gib),
				inventory.AttrAutoscaling: false,
				inventory.AttrCreatedAt:   now.Add(-400 * day),
			},
		},
		// Session cache running warm; nothing to flag.
		{
			Type:   TypeCache,
			ID:     "session-cache-prod",
			Name:   "session-cache-prod",
			Region: mockPrimaryRegion,
			State:  "available",
			Attributes: map[string]any{
				inventory.AttrInstanceClass: "cache.r5.large",
				inventory.AttrEngine:        "redis",
				inventory.AttrNodeCount:     2,
				"EngineVersion":             "7.1",
				inventory.AttrCreatedAt:     now.Add(-220 * day),
			},
		},
		// Cluster with zero registered capacity still billing control plane.
		{
			Type:   TypeKubeCluster,
			ID:     "staging-experiments",
			Name:   "staging-experiments",
			Region: mockPrimaryRegion,
			State:  "active",
			Attributes: map[string]any{
				inventory.AttrNodeCount: 0,
				"Version":               "1.29",
				inventory.AttrCreatedAt: now.Add(-60 * day),
			},
			Tags: map[string]string{"env": "staging"},
		},
		// Active container cluster carrying the production services.
		{
			Type:   TypeECSCluster,
			ID:     "prod-services",
			Name:   "prod-services",
			Region: mockPrimaryRegion,
			State:  "active",
			Attributes: map[string]any{
				inventory.AttrNodeCount: 3,
				"RunningTasks":          14,
				"PendingTasks":          0,
				"ActiveServices":        5,
			},
		},
		// Registry with no lifecycle policy quietly accreting layers.
		{
			Type:   TypeRegistry,
			ID:     "payments/legacy-worker",
			Name:   "payments/legacy-worker",
			Region: mockPrimaryRegion,
			State:  "active",
			Attributes: map[string]any{
				inventory.AttrStorageClass:    "registry",
				"URI":                         "123456789012.dkr.ecr.us-east-1.amazonaws.com/payments/legacy-worker",
				inventory.AttrLifecyclePolicy: false,
				inventory.AttrStoredBytes:     float64(38 * gib),
				inventory.AttrCreatedAt:       now.Add(-500 * day),
			},
		},
		// Analytics warehouse, two dense-compute nodes.
		{
			Type:   TypeWarehouse,
			ID:     "analytics-wh",
			Name:   "analytics-wh",
			Region: mockPrimaryRegion,
			State:  "available",
			Attributes: map[string]any{
				inventory.AttrInstanceClass: "dc2.large",
				inventory.AttrNodeCount:     2,
				inventory.AttrEncrypted:     true,
				"Database":                  "analytics",
				inventory.AttrCreatedAt:     now.Add(-500 * day),
			},
		},
		// Log group with no retention and years of accumulated events.
		{
			Type:   TypeLogGroup,
			ID:     "/aws/lambda/event-firehose",
			Name:   "/aws/lambda/event-firehose",
			Region: mockPrimaryRegion,
			State:  "active",
			Attributes: map[string]any{
				inventory.AttrRetentionDays: 0,
				inventory.AttrStoredBytes:   float64(64 * gib),
				inventory.AttrCreatedAt:     now.Add(-300 * day),
			},
		},
		// Healthy European web head with the metrics agent installed.
		{
			Type:   TypeInstance,
			ID:     "i-0web6a95d1c03f2e",
			Name:   "web-eu-1",
			Region: mockSecondaryRegion,
			State:  "running",
			Attributes: map[string]any{
				inventory.AttrInstanceClass: "m5.large",
				inventory.AttrLaunchTime:    now.Add(-120 * day),
				"AvailabilityZone":          "eu-west-1a",
			},
			Tags: map[string]string{"Name": "web-eu-1", "team": "web"},
		},
		// Attached encrypted volume backing the European web head.
		{
			Type:   TypeVolume,
			ID:     "vol-0web8b3f6d14a9c",
			Name:   "web-eu-root",
			Region: mockSecondaryRegion,
			State:  "in-use",
			Attributes: map[string]any{
				inventory.AttrSizeGB:       150,
				inventory.AttrStorageClass: "gp3",
				inventory.AttrEncrypted:    true,
				inventory.AttrCreatedAt:    now.Add(-120 * day),
				inventory.AttrAttachedTo:   "i-0web6a95d1c03f2e",
			},
		},
	}
}

// mockSeries is one seeded provider series: constant daily statistics keyed
// by metric name and primary dimension value. Fixtures with no entry
// deliberately exercise the note-only path.
type mockSeries struct {
	metric    string
	id        string
	avg       float64
	max       float64
	sumPerDay float64
}

// mockSeriesSeed returns the provider-side series behind the estate.
func mockSeriesSeed() []mockSeries {
	return []mockSeries{
		{metric: "CPUUtilization", id: "i-0idle4b2d9e301a7", avg: 2.1, max: 7.9},
		{metric: "CPUUtilization", id: "i-0busy7c31f08d2e5", avg: 91.2, max: 97.5},
		{metric: "mem_used_percent", id: "i-0busy7c31f08d2e5", avg: 91.7, max: 96.3},
		{metric: "CPUUtilization", id: "i-0mid58a1c4f7b3d9", avg: 12.4, max: 31.0},
		{metric: "VolumeReadOps", id: "vol-0data61f4e8a02c7", sumPerDay: 41000},
		{metric: "VolumeWriteOps", id: "vol-0data61f4e8a02c7", sumPerDay: 16500},
		{metric: "ConnectionEstablishedCount", id: "nat-0quiet3e91b7a44", sumPerDay: 2},
		{metric: "CPUUtilization", id: "orders-pg-replica", avg: 4.2, max: 11.3},
		{metric: "DatabaseConnections", id: "orders-pg-replica", avg: 3.1, max: 9},
		{metric: "FreeableMemory", id: "orders-pg-replica", avg: float64(28 * gib), max: float64(30 * gib)},
		{metric: "Invocations", id: "image-resize", sumPerDay: 260000},
		{metric: "Duration", id: "image-resize", avg: 231.4, max: 905.0},
		{metric: "BucketSizeBytes", id: "acme-archive-reports", avg: float64(900 * gib)},
		{metric: "NumberOfObjects", id: "acme-archive-reports", avg: 182400},
		{metric: "GetRequests", id: "acme-archive-reports", sumPerDay: 1},
		{metric: "BucketSizeBytes", id: "acme-app-assets", avg: float64(40 * gib)},
		{metric: "NumberOfObjects", id: "acme-app-assets", avg: 52300},
		{metric: "GetRequests", id: "acme-app-assets", sumPerDay: 88000},
		{metric: "RequestCount", id: "app/internal-legacy/50dc6c495c0c9188", sumPerDay: 3},
		{metric: "ConsumedReadCapacityUnits", id: "orders-archive", sumPerDay: 2},
		{metric: "ConsumedWriteCapacityUnits", id: "orders-archive", sumPerDay: 1},
		{metric: "CPUUtilization", id: "session-cache-prod", avg: 48.3, max: 71.2},
		{metric: "CurrConnections", id: "session-cache-prod", avg: 840, max: 1900},
		{metric: "CPUUtilization", id: "prod-services", avg: 61.5, max: 88.0},
		{metric: "CPUUtilization", id: "analytics-wh", avg: 34.8, max: 78.2},
		{metric: "DatabaseConnections", id: "analytics-wh", avg: 12, max: 41},
		{metric: "IncomingBytes", id: "/aws/lambda/event-firehose", sumPerDay: float64(2 * gib)},
		{metric: "CPUUtilization", id: "i-0web6a95d1c03f2e", avg: 35.2, max: 61.8},
		{metric: "mem_used_percent", id: "i-0web6a95d1c03f2e", avg: 54.6, max: 70.1},
		{metric: "VolumeReadOps", id: "vol-0web8b3f6d14a9c", sumPerDay: 30500},
		{metric: "VolumeWriteOps", id: "vol-0web8b3f6d14a9c", sumPerDay: 12800},
	}
}

// mockQuerier emits one synthetic datapoint per day of the requested window
// for every seeded series. Unseeded series return no datapoints, which is
// how dark resources behave in a live account.
type mockQuerier struct {
	series []mockSeries
}

func (q *mockQuerier) Query(ctx context.Context, region string, mq inventory.MetricQuery, period time.Duration, start, end time.Time) ([]metrics.Datapoint, error) {
	id := primaryDimension(mq)
	for _, s := range q.series {
		if s.metric != mq.MetricName || s.id != id {
			continue
		}
		days := int(end.Sub(start).Hours() / 24)
		if days < 1 {
			days = 1
		}
		points := make([]metrics.Datapoint, 0, days)
		for i := 0; i < days; i++ {
			points = append(points, metrics.Datapoint{
				Timestamp:   start.Add(time.Duration(i) * day),
				Average:     s.avg,
				Maximum:     s.max,
				Sum:         s.sumPerDay,
				SampleCount: 1,
			})
		}
		return points, nil
	}
	return nil, nil
}

// primaryDimension extracts the dimension value that identifies the
// resource in a catalog query.
func primaryDimension(q inventory.MetricQuery) string {
	for _, k := range []string{
		"InstanceId", "VolumeId", "NatGatewayId", "DBInstanceIdentifier",
		"FunctionName", "BucketName", "LoadBalancer", "TableName",
		"CacheClusterId", "ClusterName", "ClusterIdentifier", "LogGroupName",
	} {
		if v, ok := q.Dimensions[k]; ok {
			return v
		}
	}
	return ""
}

// mockBilling serves canned per-day spend figures scaled to the requested
// window.
type mockBilling struct{}

func (mockBilling) TotalsByService(ctx context.Context, regions []string, start, end time.Time) (map[string]float64, error) {
	return scaleRates(map[string]float64{
		"Amazon Elastic Compute Cloud - Compute": 14.90,
		"Amazon Relational Database Service":     6.10,
		"Amazon Redshift":                        4.40,
		"Amazon ElastiCache":                     3.30,
		"Amazon Elastic Kubernetes Service":      2.40,
		"Amazon Simple Storage Service":          2.60,
		"Amazon Virtual Private Cloud":           2.20,
		"Elastic Load Balancing":                 1.10,
		"AWS Lambda":                             1.40,
		"AmazonCloudWatch":                       0.95,
		"Amazon DynamoDB":                        0.85,
		"Amazon EC2 Container Registry (ECR)":    0.12,
		"Amazon Elastic Container Service":       0,
	}, start, end), nil
}

func (mockBilling) TotalsByRegion(ctx context.Context, regions []string, start, end time.Time) (map[string]float64, error) {
	totals := scaleRates(map[string]float64{
		"us-east-1": 32.50,
		"eu-west-1": 6.80,
		"NoRegion":  1.02,
	}, start, end)
	if len(regions) == 0 {
		return totals, nil
	}
	keep := map[string]bool{"NoRegion": true}
	for _, r := range regions {
		keep[r] = true
	}
	for k := range totals {
		if !keep[k] {
			delete(totals, k)
		}
	}
	return totals, nil
}

func (mockBilling) CostByTag(ctx context.Context, tagKey string, start, end time.Time) (map[string]float64, error) {
	if tagKey != config.AllocationTagKey {
		return map[string]float64{}, nil
	}
	return scaleRates(map[string]float64{
		"checkout-api":  3.24,
		"batch-reports": 1.37,
	}, start, end), nil
}

// scaleRates converts per-day rates into window totals.
func scaleRates(daily map[string]float64, start, end time.Time) map[string]float64 {
	days := end.Sub(start).Hours() / 24
	if days <= 0 {
		days = 1
	}
	out := make(map[string]float64, len(daily))
	for k, v := range daily {
		out[k] = v * days
	}
	return out
}
