package findings

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
	"github.com/gaugeworks/cloudgauge/pkg/audit/metrics"
)

func securityReport(t *testing.T, in Inputs) *Report {
	t.Helper()
	rep := &Report{}
	NewEngine(nil).securityPosture(context.Background(), in, rep)
	return rep
}

func compliantEstate() *inventory.Inventory {
	inv := inventory.NewInventory()
	inv.Add("us-east-1", "security-group", []inventory.ResourceRecord{{
		Type: "security-group", ID: "sg-web", Region: "us-east-1",
		Kind: inventory.KindSecurityGroup,
	}})
	inv.Add("us-east-1", "s3-bucket", []inventory.ResourceRecord{{
		Type: "s3-bucket", ID: "assets", Region: "us-east-1",
		Kind:       inventory.KindObjectStore,
		Attributes: map[string]any{inventory.AttrPublic: false},
	}})
	inv.Add("us-east-1", "ebs-volume", []inventory.ResourceRecord{{
		Type: "ebs-volume", ID: "vol-1", Region: "us-east-1",
		Kind:       inventory.KindVolume,
		Attributes: map[string]any{inventory.AttrEncrypted: true},
	}})
	inv.Add("us-east-1", "rds-instance", []inventory.ResourceRecord{{
		Type: "rds-instance", ID: "orders-db", Region: "us-east-1",
		Kind:       inventory.KindDatabase,
		Attributes: map[string]any{inventory.AttrPubliclyAccessible: false},
	}})
	inv.Add("us-east-1", "load-balancer", []inventory.ResourceRecord{{
		Type: "load-balancer", ID: "edge", Region: "us-east-1",
		Kind: inventory.KindLoadBalancer,
		Attributes: map[string]any{
			inventory.AttrInternetFacing: true,
			inventory.AttrWAFProtected:   true,
		},
	}})
	return inv
}

func healthyPosture() *Posture {
	return &Posture{
		AccessKeyAges:    []time.Duration{30 * 24 * time.Hour},
		AuditTrailActive: true,
	}
}

func TestSecurityAllPassingScoresFull(t *testing.T) {
	in := testInputs(compliantEstate(), &metrics.Result{})
	in.Posture = healthyPosture()

	rep := securityReport(t, in)

	if rep.SecurityScore != 100 {
		t.Errorf("Expected score 100, got %d", rep.SecurityScore)
	}
	if len(rep.SecurityChecks) != 7 {
		t.Errorf("Expected all seven checks evaluated, got %d", len(rep.SecurityChecks))
	}
	if len(rep.SkippedChecks) != 0 {
		t.Errorf("Expected no skipped checks, got %+v", rep.SkippedChecks)
	}
	if len(rep.SecurityFindings) != 0 {
		t.Errorf("Expected no findings, got %+v", rep.SecurityFindings)
	}
}

func TestSecurityAdminPortExposureIsCritical(t *testing.T) {
	inv := inventory.NewInventory()
	inv.Add("us-east-1", "security-group", []inventory.ResourceRecord{{
		Type: "security-group", ID: "sg-open", Region: "us-east-1",
		Kind:       inventory.KindSecurityGroup,
		Attributes: map[string]any{inventory.AttrOpenAdminPorts: []int{22, 3389}},
	}})
	in := testInputs(inv, &metrics.Result{})

	rep := securityReport(t, in)

	var critical int
	for _, f := range rep.SecurityFindings {
		if f.Severity == SeverityCritical && f.Rule == CheckAdminPorts {
			critical++
		}
	}
	if critical != 1 {
		t.Fatalf("An exposed admin port must always be critical, got %d critical findings", critical)
	}
	if !strings.Contains(rep.SecurityFindings[0].Message, "22") {
		t.Errorf("Expected the offending ports in the message, got %q", rep.SecurityFindings[0].Message)
	}
	// The only evaluated check failed.
	if rep.SecurityScore != 0 {
		t.Errorf("Expected score 0 with the single evaluated check failing, got %d", rep.SecurityScore)
	}
}

func TestSecurityAdminPortFilterHonorsConfig(t *testing.T) {
	inv := inventory.NewInventory()
	inv.Add("us-east-1", "security-group", []inventory.ResourceRecord{{
		Type: "security-group", ID: "sg-db", Region: "us-east-1",
		Kind:       inventory.KindSecurityGroup,
		Attributes: map[string]any{inventory.AttrOpenAdminPorts: []int{5432}},
	}})
	in := testInputs(inv, &metrics.Result{})
	in.Security.AdminPorts = []int32{22, 3389}

	rep := securityReport(t, in)

	if fs := findByRule(rep.SecurityFindings, CheckAdminPorts); len(fs) != 0 {
		t.Errorf("Port 5432 is outside the configured admin set, got %+v", fs)
	}
	for _, c := range rep.SecurityChecks {
		if c.Check == CheckAdminPorts && !c.Passed {
			t.Error("Expected the check to pass when no configured port is open")
		}
	}
}

func TestSecurityAllSkippedScoresZero(t *testing.T) {
	in := testInputs(inventory.NewInventory(), &metrics.Result{})

	rep := securityReport(t, in)

	if rep.SecurityScore != 0 {
		t.Errorf("Expected score 0 when nothing could be evaluated, got %d", rep.SecurityScore)
	}
	if len(rep.SkippedChecks) != 7 {
		t.Fatalf("Expected all seven checks skipped, got %d: %+v", len(rep.SkippedChecks), rep.SkippedChecks)
	}
	for _, s := range rep.SkippedChecks {
		if s.Reason == "" {
			t.Errorf("Skipped check %s carries no reason", s.Check)
		}
	}
	if len(rep.SecurityChecks) != 0 {
		t.Errorf("Expected no evaluated checks, got %d", len(rep.SecurityChecks))
	}
}

func TestSecurityScoreNeverDropsWhenPassingChecksJoin(t *testing.T) {
	open := inventory.ResourceRecord{
		Type: "security-group", ID: "sg-open", Region: "us-east-1",
		Kind:       inventory.KindSecurityGroup,
		Attributes: map[string]any{inventory.AttrOpenAdminPorts: []int{22}},
	}
	bucket := inventory.ResourceRecord{
		Type: "s3-bucket", ID: "assets", Region: "us-east-1",
		Kind:       inventory.KindObjectStore,
		Attributes: map[string]any{inventory.AttrPublic: false},
	}
	volume := inventory.ResourceRecord{
		Type: "ebs-volume", ID: "vol-1", Region: "us-east-1",
		Kind:       inventory.KindVolume,
		Attributes: map[string]any{inventory.AttrEncrypted: true},
	}

	narrow := inventory.NewInventory()
	narrow.Add("us-east-1", "security-group", []inventory.ResourceRecord{open})
	narrow.Add("us-east-1", "s3-bucket", []inventory.ResourceRecord{bucket})

	wide := inventory.NewInventory()
	wide.Add("us-east-1", "security-group", []inventory.ResourceRecord{open})
	wide.Add("us-east-1", "s3-bucket", []inventory.ResourceRecord{bucket})
	wide.Add("us-east-1", "ebs-volume", []inventory.ResourceRecord{volume})

	narrowScore := securityReport(t, testInputs(narrow, &metrics.Result{})).SecurityScore
	wideScore := securityReport(t, testInputs(wide, &metrics.Result{})).SecurityScore

	if wideScore < narrowScore {
		t.Errorf("Adding a passing check lowered the score: %d -> %d", narrowScore, wideScore)
	}
}

func TestSecurityKeyRotation(t *testing.T) {
	in := testInputs(inventory.NewInventory(), &metrics.Result{})
	in.Posture = &Posture{
		AccessKeyAges:    []time.Duration{30 * 24 * time.Hour, 200 * 24 * time.Hour},
		AuditTrailActive: true,
	}

	rep := securityReport(t, in)

	rotation := findByRule(rep.SecurityFindings, CheckKeyRotation)
	if len(rotation) != 1 {
		t.Fatalf("Expected one rotation finding, got %d", len(rotation))
	}
	if !strings.Contains(rotation[0].Message, "1 access keys") {
		t.Errorf("Expected one stale key reported, got %q", rotation[0].Message)
	}
	if rotation[0].Resource != nil {
		t.Error("Key rotation is an account-level finding and names no resource")
	}
}

func TestSecurityPostureErrorsSkipChecks(t *testing.T) {
	in := testInputs(inventory.NewInventory(), &metrics.Result{})
	in.Posture = &Posture{
		AccessKeyErr:     errors.New("iam: access denied"),
		AuditTrailActive: true,
	}

	rep := securityReport(t, in)

	var found bool
	for _, s := range rep.SkippedChecks {
		if s.Check == CheckKeyRotation {
			found = true
			if !strings.Contains(s.Reason, "access denied") {
				t.Errorf("Expected the probe error as the reason, got %q", s.Reason)
			}
		}
		if s.Check == CheckAuditTrail {
			t.Error("Audit trail data was present and must not be skipped")
		}
	}
	if !found {
		t.Fatal("Expected the key rotation check to be skipped")
	}
	// Trail was evaluated and passed.
	trail := false
	for _, c := range rep.SecurityChecks {
		if c.Check == CheckAuditTrail && c.Passed {
			trail = true
		}
	}
	if !trail {
		t.Error("Expected the audit trail check to pass")
	}
}

func TestSecurityWAFVacuouslyPassesWithoutExposure(t *testing.T) {
	inv := inventory.NewInventory()
	inv.Add("us-east-1", "load-balancer", []inventory.ResourceRecord{{
		Type: "load-balancer", ID: "internal", Region: "us-east-1",
		Kind:       inventory.KindLoadBalancer,
		Attributes: map[string]any{inventory.AttrInternetFacing: false},
	}})

	rep := securityReport(t, testInputs(inv, &metrics.Result{}))

	for _, c := range rep.SecurityChecks {
		if c.Check == CheckWAFCoverage {
			if !c.Passed {
				t.Error("No internet-facing load balancers means nothing to protect")
			}
			return
		}
	}
	t.Fatal("Expected the WAF check to be evaluated")
}
