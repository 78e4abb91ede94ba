package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// DiscoverFunc lists the resources of one type in one region, applying the
// filters itself. It returns a classified error on failure.
type DiscoverFunc func(ctx context.Context, region string, filters Filters) ([]ResourceRecord, error)

// MetricDefFunc returns the metric definitions to query for one resource.
// Definitions may depend on the record, such as a database entry gating
// engine-specific metrics.
type MetricDefFunc func(rec ResourceRecord) []MetricDefinition

// Entry binds a resource type to its discovery probe and metric catalog.
// Adding a resource type means registering one entry; the orchestrator and
// collector need no changes.
type Entry struct {
	Type       ResourceType
	Kind       Kind
	Discover   DiscoverFunc
	MetricDefs MetricDefFunc
}

// ProbeRegistry holds the known resource types. Safe for concurrent use.
type ProbeRegistry struct {
	mu      sync.RWMutex
	entries map[ResourceType]Entry
}

// NewProbeRegistry returns an empty registry.
func NewProbeRegistry() *ProbeRegistry {
	return &ProbeRegistry{entries: make(map[ResourceType]Entry)}
}

// Register adds an entry. Registering a duplicate type or an entry without
// a discover function is a programming error and is rejected.
func (r *ProbeRegistry) Register(e Entry) error {
	if e.Type == "" {
		return fmt.Errorf("probe entry has no resource type")
	}
	if e.Discover == nil {
		return fmt.Errorf("probe entry %q has no discover function", e.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[e.Type]; exists {
		return fmt.Errorf("probe entry %q already registered", e.Type)
	}
	r.entries[e.Type] = e
	return nil
}

// MustRegister is Register for wiring done at startup, where a duplicate
// means a broken build rather than a runtime condition.
func (r *ProbeRegistry) MustRegister(e Entry) {
	if err := r.Register(e); err != nil {
		panic(err)
	}
}

// Lookup returns the entry for a type.
func (r *ProbeRegistry) Lookup(t ResourceType) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[t]
	return e, ok
}

// MetricDefs returns the metric catalog for a record's type. Types without
// an entry, or entries without a catalog, return nil.
func (r *ProbeRegistry) MetricDefs(rec ResourceRecord) []MetricDefinition {
	e, ok := r.Lookup(rec.Type)
	if !ok || e.MetricDefs == nil {
		return nil
	}
	return e.MetricDefs(rec)
}

// Types returns the registered types in sorted order.
func (r *ProbeRegistry) Types() []ResourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ResourceType, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
