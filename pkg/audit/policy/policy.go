// Package policy evaluates user-defined suppression rules against findings.
// Rules are CEL expressions over the finding's attributes; a matching rule
// with the suppress action removes the finding from the report.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ActionSuppress is the only action rules may carry today. Naming it keeps
// rule files forward-compatible if softer actions arrive later.
const ActionSuppress = "suppress"

// Rule is one user-defined suppression rule.
type Rule struct {
	ID string `yaml:"id" json:"id"`
	// Condition is a CEL expression over the finding, such as
	// "category == 'cost' && tags.env == 'dev' && savings < 5.0".
	Condition string `yaml:"condition" json:"condition"`
	Action    string `yaml:"action" json:"action"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads rules from a YAML file. An empty path yields no rules.
func LoadRules(path string) ([]Rule, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if err := ValidateRules(file.Rules); err != nil {
		return nil, err
	}
	return file.Rules, nil
}

// ValidateRules rejects incomplete or duplicated rules before compilation.
func ValidateRules(rules []Rule) error {
	seen := make(map[string]struct{}, len(rules))
	for i, r := range rules {
		if r.ID == "" {
			return fmt.Errorf("rule %d has no id", i)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
		if r.Condition == "" {
			return fmt.Errorf("rule %s has no condition", r.ID)
		}
		if r.Action != ActionSuppress {
			return fmt.Errorf("rule %s: unsupported action %q", r.ID, r.Action)
		}
	}
	return nil
}
