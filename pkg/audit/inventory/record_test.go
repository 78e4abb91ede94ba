package inventory

import (
	"encoding/json"
	"testing"
	"time"
)

func TestKeyTextRoundTrip(t *testing.T) {
	k := Key{Type: "ec2-instance", Region: "us-east-1", ID: "i-0abc123"}

	text, err := k.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	if string(text) != "ec2-instance:us-east-1:i-0abc123" {
		t.Errorf("Unexpected text form: %s", text)
	}

	var back Key
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if back != k {
		t.Errorf("Round trip mismatch: %+v != %+v", back, k)
	}
}

func TestKeyTextKeepsColonsInID(t *testing.T) {
	k := Key{Type: "lambda-function", Region: "eu-west-1", ID: "arn:aws:lambda:eu-west-1:123:function:ingest"}

	text, _ := k.MarshalText()
	var back Key
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if back.ID != k.ID {
		t.Errorf("ARN id mangled: %s", back.ID)
	}
}

func TestKeyAsJSONMapKey(t *testing.T) {
	m := map[Key]int{
		{Type: "ebs-volume", Region: "us-east-1", ID: "vol-1"}: 3,
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"ebs-volume:us-east-1:vol-1":3}`
	if string(data) != want {
		t.Errorf("Got %s, want %s", data, want)
	}
}

func TestAttrAccessors(t *testing.T) {
	launched := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	rec := ResourceRecord{
		Attributes: map[string]any{
			AttrInstanceClass:  "t3.large",
			AttrSizeGB:         int64(100),
			AttrEncrypted:      false,
			AttrLaunchTime:     launched,
			AttrOpenAdminPorts: []int32{22, 3389},
			AttrMemoryMB:       512,
		},
	}

	if v, ok := rec.StringAttr(AttrInstanceClass); !ok || v != "t3.large" {
		t.Errorf("StringAttr: got %q, %v", v, ok)
	}
	if v, ok := rec.FloatAttr(AttrSizeGB); !ok || v != 100 {
		t.Errorf("FloatAttr over int64: got %v, %v", v, ok)
	}
	if v, ok := rec.FloatAttr(AttrMemoryMB); !ok || v != 512 {
		t.Errorf("FloatAttr over int: got %v, %v", v, ok)
	}
	if v, ok := rec.BoolAttr(AttrEncrypted); !ok || v {
		t.Errorf("BoolAttr: got %v, %v", v, ok)
	}
	if v, ok := rec.TimeAttr(AttrLaunchTime); !ok || !v.Equal(launched) {
		t.Errorf("TimeAttr: got %v, %v", v, ok)
	}
	ports, ok := rec.IntsAttr(AttrOpenAdminPorts)
	if !ok || len(ports) != 2 || ports[0] != 22 {
		t.Errorf("IntsAttr over []int32: got %v, %v", ports, ok)
	}

	if _, ok := rec.StringAttr("missing"); ok {
		t.Error("Missing attribute must not resolve")
	}
	if _, ok := rec.FloatAttr(AttrInstanceClass); ok {
		t.Error("Type mismatch must not resolve")
	}
}
