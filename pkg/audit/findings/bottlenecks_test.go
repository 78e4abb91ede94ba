package findings

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gaugeworks/cloudgauge/pkg/audit/cost"
	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
	"github.com/gaugeworks/cloudgauge/pkg/audit/metrics"
	"github.com/gaugeworks/cloudgauge/pkg/config"
)

var testNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func fptr(v float64) *float64 { return &v }

func testInputs(inv *inventory.Inventory, res *metrics.Result) Inputs {
	return Inputs{
		Inventory:  inv,
		Metrics:    res,
		Rates:      cost.DefaultRateTable(),
		Thresholds: config.DefaultThresholds(),
		Heuristics: config.DefaultHeuristicConfig(),
		Security:   config.DefaultSecurityConfig(),
		Now:        testNow,
	}
}

func computeRecord(id, class string, attrs map[string]any) inventory.ResourceRecord {
	all := map[string]any{inventory.AttrInstanceClass: class}
	for k, v := range attrs {
		all[k] = v
	}
	return inventory.ResourceRecord{
		Type:       "ec2-instance",
		ID:         id,
		Region:     "us-east-1",
		Kind:       inventory.KindCompute,
		State:      "running",
		Attributes: all,
	}
}

func singleRecordInventory(rec inventory.ResourceRecord) *inventory.Inventory {
	inv := inventory.NewInventory()
	inv.Add(rec.Region, rec.Type, []inventory.ResourceRecord{rec})
	return inv
}

func cpuSeries(key inventory.Key, avg, max float64) []metrics.Series {
	return []metrics.Series{
		{Resource: key, Metric: inventory.MetricCPU, Statistic: inventory.StatAverage, Value: fptr(avg), SampleCount: 10},
		{Resource: key, Metric: inventory.MetricCPU, Statistic: inventory.StatMaximum, Value: fptr(max), SampleCount: 10},
	}
}

func findByRule(fs []Finding, rule string) []Finding {
	var out []Finding
	for _, f := range fs {
		if f.Rule == rule {
			out = append(out, f)
		}
	}
	return out
}

func TestBottlenecksUnderutilizedOnly(t *testing.T) {
	rec := computeRecord("i-quiet", "t3.large", nil)
	key := rec.Key()
	res := &metrics.Result{Series: map[inventory.Key][]metrics.Series{key: cpuSeries(key, 3, 20)}}

	out := resourceBottlenecks(rec, testInputs(singleRecordInventory(rec), res))

	if len(out) != 1 {
		t.Fatalf("Expected exactly one finding, got %d: %+v", len(out), out)
	}
	f := out[0]
	if f.Rule != RuleCPUUnderutilized {
		t.Errorf("Expected rule %q, got %q", RuleCPUUnderutilized, f.Rule)
	}
	if f.Severity != SeverityInfo {
		t.Errorf("Expected info severity, got %s", f.Severity)
	}
}

func TestBottlenecksCriticalSaturation(t *testing.T) {
	rec := computeRecord("i-hot", "m5.large", nil)
	key := rec.Key()
	res := &metrics.Result{Series: map[inventory.Key][]metrics.Series{key: cpuSeries(key, 60, 95)}}

	out := resourceBottlenecks(rec, testInputs(singleRecordInventory(rec), res))

	sat := findByRule(out, RuleCPUSaturation)
	if len(sat) != 1 {
		t.Fatalf("Expected one saturation finding, got %d", len(sat))
	}
	if sat[0].Severity != SeverityCritical {
		t.Errorf("Expected critical severity for 95%% peak, got %s", sat[0].Severity)
	}
	if len(findByRule(out, RuleCPUHigh)) != 0 {
		t.Error("Saturation and high-band findings must not stack for the same peak")
	}
}

func TestBottlenecksHighBand(t *testing.T) {
	rec := computeRecord("i-warm", "m5.large", nil)
	key := rec.Key()
	res := &metrics.Result{Series: map[inventory.Key][]metrics.Series{key: cpuSeries(key, 60, 85)}}

	out := resourceBottlenecks(rec, testInputs(singleRecordInventory(rec), res))

	high := findByRule(out, RuleCPUHigh)
	if len(high) != 1 {
		t.Fatalf("Expected one high-band finding for an 85%% peak, got %d", len(high))
	}
	if high[0].Severity != SeverityHigh {
		t.Errorf("Expected high severity, got %s", high[0].Severity)
	}
}

func TestBottlenecksSpikyWorkloadCoexists(t *testing.T) {
	rec := computeRecord("i-spiky", "t3.large", nil)
	key := rec.Key()
	res := &metrics.Result{Series: map[inventory.Key][]metrics.Series{key: cpuSeries(key, 3, 95)}}

	out := resourceBottlenecks(rec, testInputs(singleRecordInventory(rec), res))

	if len(findByRule(out, RuleCPUSaturation)) != 1 {
		t.Error("Expected a saturation finding for the 95% peak")
	}
	if len(findByRule(out, RuleCPUUnderutilized)) != 1 {
		t.Error("Expected an underutilization finding for the 3% average")
	}
}

func TestBottlenecksInsufficientData(t *testing.T) {
	rec := computeRecord("i-dark", "t3.large", nil)
	key := rec.Key()
	res := &metrics.Result{Series: map[inventory.Key][]metrics.Series{key: {
		{Resource: key, Metric: inventory.MetricCPU, Note: "instance was stopped during the window"},
	}}}

	out := resourceBottlenecks(rec, testInputs(singleRecordInventory(rec), res))

	if len(out) != 1 {
		t.Fatalf("Expected one insufficient-data finding, got %d", len(out))
	}
	f := out[0]
	if f.Rule != RuleInsufficientData || f.Severity != SeverityInfo {
		t.Errorf("Expected info insufficient-data, got %s %s", f.Severity, f.Rule)
	}
	if !strings.Contains(f.Message, "instance was stopped") {
		t.Errorf("Expected the note in the message, got %q", f.Message)
	}
}

func TestBottlenecksUntrackedMetricStaysQuiet(t *testing.T) {
	rec := inventory.ResourceRecord{
		Type: "s3-bucket", ID: "logs", Region: "us-east-1",
		Kind: inventory.KindObjectStore,
	}
	res := &metrics.Result{Series: map[inventory.Key][]metrics.Series{}}

	out := resourceBottlenecks(rec, testInputs(singleRecordInventory(rec), res))

	if len(out) != 0 {
		t.Fatalf("A kind without a cpu metric must produce no findings, got %+v", out)
	}
}

func TestBottlenecksMemoryPressure(t *testing.T) {
	rec := computeRecord("i-tight", "r5.large", nil)
	key := rec.Key()
	res := &metrics.Result{Series: map[inventory.Key][]metrics.Series{key: {
		{Resource: key, Metric: inventory.MetricMemory, Statistic: inventory.StatAverage, Value: fptr(92), SampleCount: 10},
	}}}

	out := resourceBottlenecks(rec, testInputs(singleRecordInventory(rec), res))

	mem := findByRule(out, RuleMemoryPressure)
	if len(mem) != 1 {
		t.Fatalf("Expected one memory-pressure finding, got %d", len(mem))
	}
	if mem[0].Severity != SeverityHigh {
		t.Errorf("Expected high severity, got %s", mem[0].Severity)
	}
}

func TestBottlenecksConnectionSaturation(t *testing.T) {
	rec := inventory.ResourceRecord{
		Type: "rds-instance", ID: "orders-db", Region: "us-east-1",
		Kind:       inventory.KindDatabase,
		Attributes: map[string]any{inventory.AttrMaxConnections: 100.0},
	}
	key := rec.Key()
	res := &metrics.Result{Series: map[inventory.Key][]metrics.Series{key: {
		{Resource: key, Metric: inventory.MetricConnections, Statistic: inventory.StatMaximum, Value: fptr(95), SampleCount: 10},
	}}}

	out := resourceBottlenecks(rec, testInputs(singleRecordInventory(rec), res))

	conn := findByRule(out, RuleConnectionSaturation)
	if len(conn) != 1 {
		t.Fatalf("Expected one connection-saturation finding, got %d", len(conn))
	}
	if !strings.Contains(conn[0].Message, "95 of 100") {
		t.Errorf("Expected the ratio in the message, got %q", conn[0].Message)
	}
}

func TestBottlenecksPassOverFullInventory(t *testing.T) {
	hot := computeRecord("i-hot", "m5.large", nil)
	quiet := computeRecord("i-quiet", "t3.large", nil)
	inv := inventory.NewInventory()
	inv.Add("us-east-1", "ec2-instance", []inventory.ResourceRecord{hot, quiet})

	res := &metrics.Result{Series: map[inventory.Key][]metrics.Series{
		hot.Key():   cpuSeries(hot.Key(), 70, 95),
		quiet.Key(): cpuSeries(quiet.Key(), 2, 15),
	}}

	e := NewEngine(nil)
	out := e.bottlenecks(context.Background(), testInputs(inv, res))

	if len(out) != 2 {
		t.Fatalf("Expected two findings across the inventory, got %d", len(out))
	}
}
