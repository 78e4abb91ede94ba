package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRulesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `rules:
  - id: dev_noise
    condition: "tags.env == 'dev'"
    action: suppress
  - id: small_savings
    condition: "category == 'cost' && savings < 5.0"
    action: suppress
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("Expected 2 rules, got %d", len(rules))
	}
	if rules[0].ID != "dev_noise" || rules[1].ID != "small_savings" {
		t.Errorf("Rules out of order: %+v", rules)
	}
}

func TestLoadRulesEmptyPath(t *testing.T) {
	rules, err := LoadRules("")
	if err != nil {
		t.Fatalf("Empty path must not error: %v", err)
	}
	if rules != nil {
		t.Errorf("Expected no rules, got %+v", rules)
	}
}

func TestValidateRules(t *testing.T) {
	cases := []struct {
		name    string
		rules   []Rule
		wantErr bool
	}{
		{
			name:  "valid",
			rules: []Rule{{ID: "a", Condition: "true", Action: "suppress"}},
		},
		{
			name:    "missing id",
			rules:   []Rule{{Condition: "true", Action: "suppress"}},
			wantErr: true,
		},
		{
			name: "duplicate id",
			rules: []Rule{
				{ID: "a", Condition: "true", Action: "suppress"},
				{ID: "a", Condition: "false", Action: "suppress"},
			},
			wantErr: true,
		},
		{
			name:    "missing condition",
			rules:   []Rule{{ID: "a", Action: "suppress"}},
			wantErr: true,
		},
		{
			name:    "unknown action",
			rules:   []Rule{{ID: "a", Condition: "true", Action: "block"}},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRules(tc.rules)
			if tc.wantErr && err == nil {
				t.Error("Expected an error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}
