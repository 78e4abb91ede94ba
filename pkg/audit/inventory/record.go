// Package inventory defines the resource model, the probe registry, and the
// discovery orchestrator that fans probes out across regions and types.
package inventory

import (
	"fmt"
	"strings"
	"time"
)

// ResourceType identifies a provider resource type, such as "ec2-instance".
type ResourceType string

// Kind buckets provider types into categories the analysis passes can treat
// uniformly without knowing provider type strings.
type Kind string

const (
	KindCompute       Kind = "compute"
	KindVolume        Kind = "volume"
	KindSnapshot      Kind = "snapshot"
	KindDatabase      Kind = "database"
	KindFunction      Kind = "function"
	KindObjectStore   Kind = "object-store"
	KindLoadBalancer  Kind = "load-balancer"
	KindTable         Kind = "table"
	KindCache         Kind = "cache"
	KindCluster       Kind = "cluster"
	KindService       Kind = "service"
	KindRegistry      Kind = "registry"
	KindLogGroup      Kind = "log-group"
	KindSecurityGroup Kind = "security-group"
	KindAddress       Kind = "address"
	KindNetwork       Kind = "network"
	KindWarehouse     Kind = "warehouse"
)

// Key is the identity of a discovered resource. Two regions never share
// resource identity, so Region is part of the key.
type Key struct {
	Type   ResourceType `json:"type"`
	ID     string       `json:"id"`
	Region string       `json:"region"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Type, k.Region, k.ID)
}

// MarshalText lets maps keyed by Key serialize as JSON object keys.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the "type:region:id" form produced by MarshalText.
// IDs may themselves contain colons (ARNs do), so only the first two
// separators split fields.
func (k *Key) UnmarshalText(text []byte) error {
	parts := strings.SplitN(string(text), ":", 3)
	if len(parts) != 3 {
		return fmt.Errorf("malformed resource key %q", text)
	}
	k.Type = ResourceType(parts[0])
	k.Region = parts[1]
	k.ID = parts[2]
	return nil
}

// ResourceRecord is the provider-neutral description of one resource.
// Attributes is a loosely typed bag because the schema differs per type;
// well-known keys are the Attr* constants. Records are immutable once
// returned from discovery within a single invocation.
type ResourceRecord struct {
	Type       ResourceType      `json:"type"`
	ID         string            `json:"id"`
	Name       string            `json:"name,omitempty"`
	Region     string            `json:"region"`
	Kind       Kind              `json:"kind,omitempty"`
	State      string            `json:"state,omitempty"`
	Attributes map[string]any    `json:"attributes,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
}

// Key returns the record's identity.
func (r ResourceRecord) Key() Key {
	return Key{Type: r.Type, ID: r.ID, Region: r.Region}
}

// StringAttr returns a string attribute when present.
func (r ResourceRecord) StringAttr(key string) (string, bool) {
	v, ok := r.Attributes[key].(string)
	return v, ok
}

// FloatAttr returns a numeric attribute as float64, accepting the integer
// widths probes commonly publish.
func (r ResourceRecord) FloatAttr(key string) (float64, bool) {
	switch v := r.Attributes[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// BoolAttr returns a boolean attribute when present.
func (r ResourceRecord) BoolAttr(key string) (bool, bool) {
	v, ok := r.Attributes[key].(bool)
	return v, ok
}

// TimeAttr returns a timestamp attribute when present.
func (r ResourceRecord) TimeAttr(key string) (time.Time, bool) {
	v, ok := r.Attributes[key].(time.Time)
	return v, ok
}

// IntsAttr returns an integer-list attribute, accepting []int and []int32.
func (r ResourceRecord) IntsAttr(key string) ([]int, bool) {
	switch v := r.Attributes[key].(type) {
	case []int:
		return v, true
	case []int32:
		out := make([]int, len(v))
		for i, n := range v {
			out[i] = int(n)
		}
		return out, true
	default:
		return nil, false
	}
}
