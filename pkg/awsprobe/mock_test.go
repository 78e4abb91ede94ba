package awsprobe

import (
	"context"
	"testing"
	"time"

	"github.com/gaugeworks/cloudgauge/pkg/audit/faults"
	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
	"github.com/gaugeworks/cloudgauge/pkg/config"
)

func mockNow() time.Time {
	return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
}

func TestMockRegistryCoversAllTypes(t *testing.T) {
	reg := NewMockProvider(mockNow()).Registry()
	if len(reg.Types()) != len(AllTypes()) {
		t.Fatalf("Expected %d types, got %d", len(AllTypes()), len(reg.Types()))
	}
}

func TestMockDiscoverScopesByRegionAndType(t *testing.T) {
	m := NewMockProvider(mockNow())
	entry, _ := m.Registry().Lookup(TypeInstance)

	primary, err := entry.Discover(context.Background(), mockPrimaryRegion, inventory.Filters{})
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	if len(primary) != 3 {
		t.Errorf("Expected 3 instances in %s, got %d", mockPrimaryRegion, len(primary))
	}
	for _, rec := range primary {
		if rec.Type != TypeInstance || rec.Region != mockPrimaryRegion {
			t.Errorf("Record leaked across scope: %+v", rec.Key())
		}
	}

	secondary, err := entry.Discover(context.Background(), mockSecondaryRegion, inventory.Filters{})
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	if len(secondary) != 1 || secondary[0].Name != "web-eu-1" {
		t.Errorf("Expected only the EU web head, got %+v", secondary)
	}
}

func TestMockDiscoverAppliesFilters(t *testing.T) {
	m := NewMockProvider(mockNow())
	entry, _ := m.Registry().Lookup(TypeInstance)

	byTag, err := entry.Discover(context.Background(), mockPrimaryRegion, inventory.Filters{
		TagKey:   "team",
		TagValue: "data",
	})
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	if len(byTag) != 1 || byTag[0].Name != "batch-runner-1" {
		t.Errorf("Expected the data-team runner, got %+v", byTag)
	}

	byName, err := entry.Discover(context.Background(), mockPrimaryRegion, inventory.Filters{
		Names: []string{"checkout"},
	})
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	if len(byName) != 1 || byName[0].ID != "i-0busy7c31f08d2e5" {
		t.Errorf("Expected the checkout head by name substring, got %+v", byName)
	}
}

func TestMockSecondaryRegionDeniesSecurityGroups(t *testing.T) {
	m := NewMockProvider(mockNow())
	entry, _ := m.Registry().Lookup(TypeSecurityGroup)

	if _, err := entry.Discover(context.Background(), mockPrimaryRegion, inventory.Filters{}); err != nil {
		t.Fatalf("Expected the primary region readable, got %v", err)
	}

	_, err := entry.Discover(context.Background(), mockSecondaryRegion, inventory.Filters{})
	if err == nil {
		t.Fatal("Expected a permission fault in the secondary region")
	}
	if faults.ClassOf(err) != faults.PermissionDenied {
		t.Errorf("Expected permission-denied, got %v", faults.ClassOf(err))
	}
}

func TestMockQuerierEmitsDailyPoints(t *testing.T) {
	m := NewMockProvider(mockNow())
	end := mockNow()
	start := end.Add(-14 * 24 * time.Hour)

	q := inventory.MetricQuery{
		Namespace:  "AWS/EC2",
		MetricName: "CPUUtilization",
		Dimensions: map[string]string{"InstanceId": "i-0idle4b2d9e301a7"},
	}
	points, err := m.Querier().Query(context.Background(), mockPrimaryRegion, q, time.Hour, start, end)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(points) != 14 {
		t.Fatalf("Expected one point per day, got %d", len(points))
	}
	if points[0].Average != 2.1 || points[0].Maximum != 7.9 {
		t.Errorf("Seeded statistics wrong: %+v", points[0])
	}
	if !points[1].Timestamp.Equal(start.Add(24 * time.Hour)) {
		t.Errorf("Expected daily spacing, got %v", points[1].Timestamp)
	}
}

func TestMockQuerierUnseededSeriesIsDark(t *testing.T) {
	m := NewMockProvider(mockNow())
	end := mockNow()

	q := inventory.MetricQuery{
		Namespace:  "CWAgent",
		MetricName: "mem_used_percent",
		Dimensions: map[string]string{"InstanceId": "i-0idle4b2d9e301a7"},
	}
	points, err := m.Querier().Query(context.Background(), mockPrimaryRegion, q, time.Hour, end.Add(-24*time.Hour), end)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("Expected no datapoints without the agent, got %d", len(points))
	}
}

func TestMockBillingScalesToWindow(t *testing.T) {
	m := NewMockProvider(mockNow())
	start := mockNow()
	end := start.Add(48 * time.Hour)

	byService, err := m.Billing().TotalsByService(context.Background(), nil, start, end)
	if err != nil {
		t.Fatalf("TotalsByService failed: %v", err)
	}
	if got := byService["Amazon Elastic Compute Cloud - Compute"]; got != 29.80 {
		t.Errorf("Expected two days of compute spend, got %v", got)
	}
	if got, ok := byService["Amazon Elastic Container Service"]; !ok || got != 0 {
		t.Errorf("Expected the zero-cost service kept, got %v (present %v)", got, ok)
	}

	byRegion, err := m.Billing().TotalsByRegion(context.Background(), []string{mockPrimaryRegion}, start, end)
	if err != nil {
		t.Fatalf("TotalsByRegion failed: %v", err)
	}
	if _, ok := byRegion[mockSecondaryRegion]; ok {
		t.Error("Expected the unrequested region filtered out")
	}
	if _, ok := byRegion["NoRegion"]; !ok {
		t.Error("Expected global spend kept under NoRegion")
	}

	byTag, err := m.Billing().CostByTag(context.Background(), config.AllocationTagKey, start, end)
	if err != nil {
		t.Fatalf("CostByTag failed: %v", err)
	}
	if byTag["checkout-api"] != 6.48 {
		t.Errorf("Expected two days of tagged spend, got %v", byTag["checkout-api"])
	}

	other, err := m.Billing().CostByTag(context.Background(), "unrelated", start, end)
	if err != nil {
		t.Fatalf("CostByTag failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Expected no spend under an unknown tag key, got %v", other)
	}
}

func TestMockPosture(t *testing.T) {
	posture := NewMockProvider(mockNow()).Posture()
	if len(posture.AccessKeyAges) != 2 {
		t.Fatalf("Expected two seeded keys, got %v", posture.AccessKeyAges)
	}
	if posture.AccessKeyAges[0] != 150*24*time.Hour {
		t.Errorf("Expected one stale key, got %v", posture.AccessKeyAges[0])
	}
	if !posture.AuditTrailActive {
		t.Error("Expected the audit trail active")
	}
}
