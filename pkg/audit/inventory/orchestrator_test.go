package inventory

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gaugeworks/cloudgauge/pkg/audit/faults"
)

var fastRetry = faults.RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func staticProbe(recs ...ResourceRecord) DiscoverFunc {
	return func(context.Context, string, Filters) ([]ResourceRecord, error) {
		return recs, nil
	}
}

func newTestOrchestrator(reg *ProbeRegistry, limit int) *Orchestrator {
	o := NewOrchestrator(reg, nil, limit)
	o.SetRetryPolicy(fastRetry)
	return o
}

func TestDiscoverGroupsByRegionAndType(t *testing.T) {
	reg := NewProbeRegistry()
	reg.MustRegister(Entry{Type: "ec2-instance", Kind: KindCompute, Discover: func(_ context.Context, region string, _ Filters) ([]ResourceRecord, error) {
		return []ResourceRecord{{ID: "i-" + region}, {ID: "i2-" + region}}, nil
	}})
	reg.MustRegister(Entry{Type: "ebs-volume", Kind: KindVolume, Discover: func(_ context.Context, region string, _ Filters) ([]ResourceRecord, error) {
		return []ResourceRecord{{ID: "vol-" + region}}, nil
	}})

	o := newTestOrchestrator(reg, 4)
	inv, err := o.Discover(context.Background(), []string{"us-east-1", "eu-west-1"}, []ResourceType{"ec2-instance", "ebs-volume"}, Filters{})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if inv.Summary["ec2-instance"] != 4 {
		t.Errorf("Expected 4 instances, got %d", inv.Summary["ec2-instance"])
	}
	if inv.Summary["ebs-volume"] != 2 {
		t.Errorf("Expected 2 volumes, got %d", inv.Summary["ebs-volume"])
	}
	if inv.TotalRecords() != 6 {
		t.Errorf("Expected 6 total records, got %d", inv.TotalRecords())
	}
	if len(inv.Diagnostics) != 0 {
		t.Errorf("Expected no diagnostics, got %+v", inv.Diagnostics)
	}
	if got := len(inv.Regions["us-east-1"]["ec2-instance"]); got != 2 {
		t.Errorf("Expected 2 instances in us-east-1, got %d", got)
	}
}

func TestDiscoverFaultIsolation(t *testing.T) {
	// 2 regions x 2 types = 4 units; one unit fails. The result must carry
	// contributions from exactly 3 units and exactly 1 diagnostic.
	reg := NewProbeRegistry()
	reg.MustRegister(Entry{Type: "ec2-instance", Kind: KindCompute, Discover: func(_ context.Context, region string, _ Filters) ([]ResourceRecord, error) {
		if region == "eu-west-1" {
			return nil, faults.New(faults.RegionNotEnabled, "DescribeInstances", errors.New("opt-in required"))
		}
		return []ResourceRecord{{ID: "i-1"}}, nil
	}})
	reg.MustRegister(Entry{Type: "s3-bucket", Kind: KindObjectStore, Discover: staticProbe(ResourceRecord{ID: "bucket-a"})})

	o := newTestOrchestrator(reg, 4)
	inv, err := o.Discover(context.Background(), []string{"us-east-1", "eu-west-1"}, []ResourceType{"ec2-instance", "s3-bucket"}, Filters{})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if inv.TotalRecords() != 3 {
		t.Errorf("Expected 3 records from the 3 healthy units, got %d", inv.TotalRecords())
	}
	if len(inv.Diagnostics) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", len(inv.Diagnostics))
	}
	d := inv.Diagnostics[0]
	if d.Region != "eu-west-1" || d.Type != "ec2-instance" || d.Class != faults.RegionNotEnabled {
		t.Errorf("Unexpected diagnostic: %+v", d)
	}
}

func TestDiscoverPermissionDeniedScenario(t *testing.T) {
	// Region A returns 3 records, region B is denied: summary must still
	// count A's records and the denial must surface as one diagnostic.
	reg := NewProbeRegistry()
	reg.MustRegister(Entry{Type: "rds-instance", Kind: KindDatabase, Discover: func(_ context.Context, region string, _ Filters) ([]ResourceRecord, error) {
		if region == "region-b" {
			return nil, faults.New(faults.PermissionDenied, "DescribeDBInstances", errors.New("not authorized"))
		}
		return []ResourceRecord{{ID: "db-1"}, {ID: "db-2"}, {ID: "db-3"}}, nil
	}})

	o := newTestOrchestrator(reg, 2)
	inv, err := o.Discover(context.Background(), []string{"region-a", "region-b"}, []ResourceType{"rds-instance"}, Filters{})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if inv.Summary["rds-instance"] != 3 {
		t.Errorf("Expected summary 3, got %d", inv.Summary["rds-instance"])
	}
	if len(inv.Diagnostics) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", len(inv.Diagnostics))
	}
	d := inv.Diagnostics[0]
	if d.Region != "region-b" || d.Class != faults.PermissionDenied {
		t.Errorf("Unexpected diagnostic: %+v", d)
	}
}

func TestDiscoverRetriesThrottledUnits(t *testing.T) {
	var calls int32
	reg := NewProbeRegistry()
	reg.MustRegister(Entry{Type: "lambda-function", Kind: KindFunction, Discover: func(context.Context, string, Filters) ([]ResourceRecord, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, faults.New(faults.Throttled, "ListFunctions", errors.New("rate exceeded"))
		}
		return []ResourceRecord{{ID: "fn-1"}, {ID: "fn-2"}}, nil
	}})

	o := newTestOrchestrator(reg, 1)
	inv, err := o.Discover(context.Background(), []string{"us-east-1"}, []ResourceType{"lambda-function"}, Filters{})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
	if inv.Summary["lambda-function"] != 2 {
		t.Errorf("Expected recovery with 2 records, got %d", inv.Summary["lambda-function"])
	}
	if len(inv.Diagnostics) != 0 {
		t.Errorf("Recovered unit must not leave a diagnostic: %+v", inv.Diagnostics)
	}
}

func TestDiscoverDoesNotRetryPermissionDenied(t *testing.T) {
	var calls int32
	reg := NewProbeRegistry()
	reg.MustRegister(Entry{Type: "ec2-instance", Kind: KindCompute, Discover: func(context.Context, string, Filters) ([]ResourceRecord, error) {
		atomic.AddInt32(&calls, 1)
		return nil, faults.New(faults.PermissionDenied, "DescribeInstances", errors.New("not authorized"))
	}})

	o := newTestOrchestrator(reg, 1)
	inv, err := o.Discover(context.Background(), []string{"us-east-1"}, []ResourceType{"ec2-instance"}, Filters{})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if calls != 1 {
		t.Errorf("PermissionDenied must not retry, got %d calls", calls)
	}
	if len(inv.Diagnostics) != 1 || inv.Diagnostics[0].Class != faults.PermissionDenied {
		t.Errorf("Expected one PermissionDenied diagnostic, got %+v", inv.Diagnostics)
	}
}

func TestDiscoverUnknownTypeBecomesDiagnostic(t *testing.T) {
	reg := NewProbeRegistry()
	reg.MustRegister(Entry{Type: "ec2-instance", Kind: KindCompute, Discover: staticProbe(ResourceRecord{ID: "i-1"})})

	o := newTestOrchestrator(reg, 2)
	inv, err := o.Discover(context.Background(), []string{"us-east-1"}, []ResourceType{"ec2-instance", "quantum-computer"}, Filters{})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if inv.TotalRecords() != 1 {
		t.Errorf("Healthy unit must still contribute, got %d records", inv.TotalRecords())
	}
	if len(inv.Diagnostics) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", len(inv.Diagnostics))
	}
	if inv.Diagnostics[0].Class != faults.Unsupported {
		t.Errorf("Unknown type should classify as Unsupported: %+v", inv.Diagnostics[0])
	}
}

func TestDiscoverValidatesInput(t *testing.T) {
	reg := NewProbeRegistry()
	o := newTestOrchestrator(reg, 2)

	if _, err := o.Discover(context.Background(), nil, []ResourceType{"ec2-instance"}, Filters{}); err == nil {
		t.Error("Zero regions must be a hard error")
	}
	if _, err := o.Discover(context.Background(), []string{"us-east-1"}, nil, Filters{}); err == nil {
		t.Error("Zero types must be a hard error")
	}
	if _, err := o.Discover(context.Background(), []string{"us-east-1"}, []ResourceType{"ec2-instance"}, Filters{TagValue: "core"}); err == nil {
		t.Error("Invalid filters must be a hard error")
	}
}

func TestDiscoverIdempotentSummary(t *testing.T) {
	reg := NewProbeRegistry()
	reg.MustRegister(Entry{Type: "ec2-instance", Kind: KindCompute, Discover: staticProbe(ResourceRecord{ID: "i-1"}, ResourceRecord{ID: "i-2"})})
	reg.MustRegister(Entry{Type: "ebs-volume", Kind: KindVolume, Discover: staticProbe(ResourceRecord{ID: "vol-1"})})

	o := newTestOrchestrator(reg, 4)
	regions := []string{"us-east-1", "eu-west-1"}
	types := []ResourceType{"ec2-instance", "ebs-volume"}

	first, err := o.Discover(context.Background(), regions, types, Filters{})
	if err != nil {
		t.Fatalf("First discover failed: %v", err)
	}
	second, err := o.Discover(context.Background(), regions, types, Filters{})
	if err != nil {
		t.Fatalf("Second discover failed: %v", err)
	}

	if !reflect.DeepEqual(first.Summary, second.Summary) {
		t.Errorf("Summaries differ: %+v vs %+v", first.Summary, second.Summary)
	}
}

func TestDiscoverStampsIdentityAndKind(t *testing.T) {
	reg := NewProbeRegistry()
	// The probe leaves identity fields blank; the orchestrator must stamp them.
	reg.MustRegister(Entry{Type: "elasticache-cluster", Kind: KindCache, Discover: staticProbe(ResourceRecord{ID: "redis-1"})})

	o := newTestOrchestrator(reg, 1)
	inv, err := o.Discover(context.Background(), []string{"ap-south-1"}, []ResourceType{"elasticache-cluster"}, Filters{})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	recs := inv.Records()
	if len(recs) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Region != "ap-south-1" || rec.Type != "elasticache-cluster" || rec.Kind != KindCache {
		t.Errorf("Identity not stamped: %+v", rec)
	}
}

func TestDiscoverIsolatesPanics(t *testing.T) {
	reg := NewProbeRegistry()
	reg.MustRegister(Entry{Type: "ec2-instance", Kind: KindCompute, Discover: func(context.Context, string, Filters) ([]ResourceRecord, error) {
		panic("nil dereference in probe")
	}})
	reg.MustRegister(Entry{Type: "s3-bucket", Kind: KindObjectStore, Discover: staticProbe(ResourceRecord{ID: "bucket-a"})})

	o := newTestOrchestrator(reg, 2)
	inv, err := o.Discover(context.Background(), []string{"us-east-1"}, []ResourceType{"ec2-instance", "s3-bucket"}, Filters{})
	if err != nil {
		t.Fatalf("A panicking probe must not abort the run: %v", err)
	}

	if inv.Summary["s3-bucket"] != 1 {
		t.Errorf("Healthy unit lost: %+v", inv.Summary)
	}
	if len(inv.Diagnostics) == 0 {
		t.Fatal("Expected a diagnostic for the panicking unit")
	}
}

func TestDiscoverCancellationKeepsCompletedUnits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	reg := NewProbeRegistry()
	reg.MustRegister(Entry{Type: "ec2-instance", Kind: KindCompute, Discover: func(_ context.Context, region string, _ Filters) ([]ResourceRecord, error) {
		if region == "region-a" {
			cancel()
			return []ResourceRecord{{ID: "i-1"}, {ID: "i-2"}}, nil
		}
		return []ResourceRecord{{ID: "i-other"}}, nil
	}})

	// Serial execution: region-a completes and cancels, region-b and
	// region-c must drain as abandoned diagnostics.
	o := newTestOrchestrator(reg, 1)
	inv, err := o.Discover(ctx, []string{"region-a", "region-b", "region-c"}, []ResourceType{"ec2-instance"}, Filters{})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if inv.Summary["ec2-instance"] != 2 {
		t.Errorf("Completed unit's records must be kept, got %d", inv.Summary["ec2-instance"])
	}
	if len(inv.Diagnostics) != 2 {
		t.Fatalf("Expected 2 abandoned diagnostics, got %d", len(inv.Diagnostics))
	}
	for _, d := range inv.Diagnostics {
		if d.Class != faults.Transient {
			t.Errorf("Abandoned units classify as Transient: %+v", d)
		}
	}
	if inv.Diagnostics[0].Region != "region-b" || inv.Diagnostics[1].Region != "region-c" {
		t.Errorf("Diagnostics must follow unit order: %+v", inv.Diagnostics)
	}
}

func TestDiscoverDeterministicAcrossCompletionOrder(t *testing.T) {
	mkRegistry := func(delayRegion string) *ProbeRegistry {
		reg := NewProbeRegistry()
		reg.MustRegister(Entry{Type: "ec2-instance", Kind: KindCompute, Discover: func(_ context.Context, region string, _ Filters) ([]ResourceRecord, error) {
			if region == delayRegion {
				time.Sleep(30 * time.Millisecond)
			}
			return []ResourceRecord{{ID: "i-" + region}}, nil
		}})
		reg.MustRegister(Entry{Type: "ebs-volume", Kind: KindVolume, Discover: func(_ context.Context, region string, _ Filters) ([]ResourceRecord, error) {
			return []ResourceRecord{{ID: "vol-" + region}}, nil
		}})
		return reg
	}

	regions := []string{"us-east-1", "eu-west-1", "ap-south-1"}
	types := []ResourceType{"ec2-instance", "ebs-volume"}

	slowFirst, err := newTestOrchestrator(mkRegistry("us-east-1"), 6).Discover(context.Background(), regions, types, Filters{})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	slowLast, err := newTestOrchestrator(mkRegistry("ap-south-1"), 6).Discover(context.Background(), regions, types, Filters{})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	keys := func(inv *Inventory) []Key {
		recs := inv.Records()
		out := make([]Key, len(recs))
		for i, r := range recs {
			out[i] = r.Key()
		}
		return out
	}

	if !reflect.DeepEqual(keys(slowFirst), keys(slowLast)) {
		t.Errorf("Aggregation order depends on completion order:\n%v\n%v", keys(slowFirst), keys(slowLast))
	}
}

func TestDiscoverDedupesRegionsAndTypes(t *testing.T) {
	var calls int32
	reg := NewProbeRegistry()
	reg.MustRegister(Entry{Type: "ec2-instance", Kind: KindCompute, Discover: func(context.Context, string, Filters) ([]ResourceRecord, error) {
		atomic.AddInt32(&calls, 1)
		return []ResourceRecord{{ID: "i-1"}}, nil
	}})

	o := newTestOrchestrator(reg, 4)
	inv, err := o.Discover(context.Background(), []string{"us-east-1", "us-east-1"}, []ResourceType{"ec2-instance", "ec2-instance"}, Filters{})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if calls != 1 {
		t.Errorf("Duplicate axes must collapse to one unit, got %d calls", calls)
	}
	if inv.Summary["ec2-instance"] != 1 {
		t.Errorf("Expected 1 record, got %d", inv.Summary["ec2-instance"])
	}
}
