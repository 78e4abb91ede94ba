package policy

import (
	"testing"

	"github.com/gaugeworks/cloudgauge/pkg/audit/findings"
	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

func costFinding(savings float64) findings.Finding {
	key := inventory.Key{Type: "ec2-instance", ID: "i-1", Region: "us-east-1"}
	return findings.Finding{
		Category:                   findings.CategoryCost,
		Severity:                   findings.SeverityMedium,
		Rule:                       "idle-compute",
		Resource:                   &key,
		Message:                    "i-1 averaged 2.0% CPU over the lookback window",
		EstimatedMonthlySavingsUSD: savings,
	}
}

func TestSuppressByCategoryAndSavings(t *testing.T) {
	rules := []Rule{{
		ID:        "ignore_small_cost",
		Condition: "category == 'cost' && savings < 10.0",
		Action:    ActionSuppress,
	}}
	engine, err := NewEngine(rules, nil)
	if err != nil {
		t.Fatalf("Failed to build engine: %v", err)
	}

	if got, _ := engine.Suppress(costFinding(5)); !got {
		t.Error("Expected a $5 cost finding to be suppressed")
	}
	if got, _ := engine.Suppress(costFinding(50)); got {
		t.Error("A $50 cost finding is above the rule's ceiling")
	}
}

func TestSuppressByResolvedTags(t *testing.T) {
	rules := []Rule{{
		ID:        "dev_noise",
		Condition: "tags.env == 'dev'",
		Action:    ActionSuppress,
	}}
	engine, err := NewEngine(rules, nil)
	if err != nil {
		t.Fatalf("Failed to build engine: %v", err)
	}
	engine.SetResolver(func(key inventory.Key) (inventory.ResourceRecord, bool) {
		if key.ID != "i-1" {
			return inventory.ResourceRecord{}, false
		}
		return inventory.ResourceRecord{
			Kind: inventory.KindCompute,
			Tags: map[string]string{"env": "dev"},
		}, true
	})

	if got, _ := engine.Suppress(costFinding(100)); !got {
		t.Error("Expected the dev-tagged finding to be suppressed")
	}
}

func TestSuppressMissingTagKeyErrorsWithoutBlocking(t *testing.T) {
	rules := []Rule{
		{ID: "needs_tag", Condition: "tags.owner == 'platform'", Action: ActionSuppress},
		{ID: "by_rule", Condition: "rule == 'idle-compute'", Action: ActionSuppress},
	}
	engine, err := NewEngine(rules, nil)
	if err != nil {
		t.Fatalf("Failed to build engine: %v", err)
	}

	// No resolver: tags is empty, so the first rule errors on the missing
	// key. The second rule must still match.
	got, _ := engine.Suppress(costFinding(100))
	if !got {
		t.Error("A failing rule must not block later rules from matching")
	}
}

func TestSuppressAccountLevelFinding(t *testing.T) {
	rules := []Rule{{
		ID:        "mute_trail",
		Condition: "rule == 'audit-trail-active' && severity == 'high'",
		Action:    ActionSuppress,
	}}
	engine, err := NewEngine(rules, nil)
	if err != nil {
		t.Fatalf("Failed to build engine: %v", err)
	}

	f := findings.Finding{
		Category: findings.CategorySecurity,
		Severity: findings.SeverityHigh,
		Rule:     "audit-trail-active",
		Message:  "no active audit trail records account activity",
	}
	if got, _ := engine.Suppress(f); !got {
		t.Error("Expected the account-level finding to be suppressed")
	}
}

func TestSuppressNoRules(t *testing.T) {
	engine, err := NewEngine(nil, nil)
	if err != nil {
		t.Fatalf("Failed to build engine: %v", err)
	}
	if got, err := engine.Suppress(costFinding(1)); got || err != nil {
		t.Errorf("Expected no suppression and no error, got %v %v", got, err)
	}
}

func TestNewEngineRejectsBadExpression(t *testing.T) {
	rules := []Rule{{
		ID:        "typo",
		Condition: "severty == 'high'",
		Action:    ActionSuppress,
	}}
	if _, err := NewEngine(rules, nil); err == nil {
		t.Fatal("Expected a compilation error for an undeclared variable")
	}
}

var _ findings.Suppressor = (*Engine)(nil)
