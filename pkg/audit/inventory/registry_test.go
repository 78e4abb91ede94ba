package inventory

import (
	"context"
	"testing"
)

func noopDiscover(context.Context, string, Filters) ([]ResourceRecord, error) {
	return nil, nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewProbeRegistry()

	err := reg.Register(Entry{Type: "ec2-instance", Kind: KindCompute, Discover: noopDiscover})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	entry, ok := reg.Lookup("ec2-instance")
	if !ok {
		t.Fatal("Expected lookup to succeed")
	}
	if entry.Kind != KindCompute {
		t.Errorf("Expected kind compute, got %v", entry.Kind)
	}

	if _, ok := reg.Lookup("unknown"); ok {
		t.Error("Unregistered type must not resolve")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewProbeRegistry()

	if err := reg.Register(Entry{Type: "s3-bucket", Kind: KindObjectStore, Discover: noopDiscover}); err != nil {
		t.Fatalf("First register failed: %v", err)
	}
	if err := reg.Register(Entry{Type: "s3-bucket", Kind: KindObjectStore, Discover: noopDiscover}); err == nil {
		t.Error("Duplicate register must fail")
	}
}

func TestRegistryRejectsIncompleteEntries(t *testing.T) {
	reg := NewProbeRegistry()

	if err := reg.Register(Entry{Kind: KindCompute, Discover: noopDiscover}); err == nil {
		t.Error("Entry without a type must fail")
	}
	if err := reg.Register(Entry{Type: "rds-instance", Kind: KindDatabase}); err == nil {
		t.Error("Entry without a discover function must fail")
	}
}

func TestRegistryTypesSorted(t *testing.T) {
	reg := NewProbeRegistry()
	for _, typ := range []ResourceType{"s3-bucket", "ec2-instance", "rds-instance"} {
		reg.MustRegister(Entry{Type: typ, Kind: KindCompute, Discover: noopDiscover})
	}

	types := reg.Types()
	want := []ResourceType{"ec2-instance", "rds-instance", "s3-bucket"}
	if len(types) != len(want) {
		t.Fatalf("Expected %d types, got %d", len(want), len(types))
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("Types[%d] = %v, want %v", i, types[i], want[i])
		}
	}
}

func TestRegistryMetricDefs(t *testing.T) {
	reg := NewProbeRegistry()
	reg.MustRegister(Entry{
		Type:     "ec2-instance",
		Kind:     KindCompute,
		Discover: noopDiscover,
		MetricDefs: func(rec ResourceRecord) []MetricDefinition {
			return []MetricDefinition{{Name: MetricCPU, Statistics: []Statistic{StatAverage}}}
		},
	})
	reg.MustRegister(Entry{Type: "eip-address", Kind: KindAddress, Discover: noopDiscover})

	defs := reg.MetricDefs(ResourceRecord{Type: "ec2-instance"})
	if len(defs) != 1 || defs[0].Name != MetricCPU {
		t.Errorf("Expected one cpu definition, got %+v", defs)
	}

	if defs := reg.MetricDefs(ResourceRecord{Type: "eip-address"}); defs != nil {
		t.Errorf("Entry without a catalog should return nil, got %+v", defs)
	}
	if defs := reg.MetricDefs(ResourceRecord{Type: "unknown"}); defs != nil {
		t.Errorf("Unknown type should return nil, got %+v", defs)
	}
}
