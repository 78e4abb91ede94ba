package inventory

import (
	"errors"
	"strings"
)

// Filters narrow discovery results. Semantics: TagKey/TagValue is a single
// equality pair, Names match by substring or exact name (OR across the
// list), IDs match exactly (OR across the list). The populated filter kinds
// combine with AND. Probes apply filters themselves through the Match
// helpers; the orchestrator only validates and passes them through.
type Filters struct {
	TagKey   string   `json:"tagKey,omitempty"`
	TagValue string   `json:"tagValue,omitempty"`
	Names    []string `json:"names,omitempty"`
	IDs      []string `json:"ids,omitempty"`
}

// Validate rejects contradictory or malformed filters.
func (f Filters) Validate() error {
	if f.TagValue != "" && f.TagKey == "" {
		return errors.New("tag value filter requires a tag key")
	}
	for _, n := range f.Names {
		if strings.TrimSpace(n) == "" {
			return errors.New("name filter contains a blank entry")
		}
	}
	for _, id := range f.IDs {
		if strings.TrimSpace(id) == "" {
			return errors.New("id filter contains a blank entry")
		}
	}
	return nil
}

// MatchName reports whether name passes the name filter. An empty filter
// matches everything.
func (f Filters) MatchName(name string) bool {
	if len(f.Names) == 0 {
		return true
	}
	for _, want := range f.Names {
		if name == want || strings.Contains(name, want) {
			return true
		}
	}
	return false
}

// MatchID reports whether id passes the id filter.
func (f Filters) MatchID(id string) bool {
	if len(f.IDs) == 0 {
		return true
	}
	for _, want := range f.IDs {
		if id == want {
			return true
		}
	}
	return false
}

// MatchTags reports whether tags satisfy the tag equality filter. A key
// without a value only requires the key to exist.
func (f Filters) MatchTags(tags map[string]string) bool {
	if f.TagKey == "" {
		return true
	}
	v, ok := tags[f.TagKey]
	if !ok {
		return false
	}
	return f.TagValue == "" || v == f.TagValue
}

// Match combines all filter kinds for a record.
func (f Filters) Match(rec ResourceRecord) bool {
	return f.MatchName(rec.Name) && f.MatchID(rec.ID) && f.MatchTags(rec.Tags)
}
