package policy

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"

	"github.com/gaugeworks/cloudgauge/pkg/audit/findings"
	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

// Resolver looks up the inventory record behind a finding so rules can
// reference resource kind and tags.
type Resolver func(key inventory.Key) (inventory.ResourceRecord, bool)

// Engine compiles rules once and evaluates them against each finding.
type Engine struct {
	programs []compiledRule
	resolve  Resolver
	log      *slog.Logger
}

type compiledRule struct {
	rule Rule
	prg  cel.Program
}

// NewEngine compiles the rule set. A single bad expression fails the whole
// set; silently ignoring a typo would un-suppress findings in production.
func NewEngine(rules []Rule, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}

	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("category", decls.String),
			decls.NewVar("severity", decls.String),
			decls.NewVar("rule", decls.String),
			decls.NewVar("message", decls.String),
			decls.NewVar("id", decls.String),
			decls.NewVar("region", decls.String),
			decls.NewVar("kind", decls.String),
			decls.NewVar("tags", decls.NewMapType(decls.String, decls.String)),
			decls.NewVar("savings", decls.Double),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create policy env: %w", err)
	}

	e := &Engine{log: log}
	for _, r := range rules {
		ast, issues := env.Compile(r.Condition)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		e.programs = append(e.programs, compiledRule{rule: r, prg: prg})
	}
	return e, nil
}

// SetResolver wires the inventory lookup used to expose kind and tags.
// Without it those variables evaluate to their zero values.
func (e *Engine) SetResolver(r Resolver) {
	e.resolve = r
}

// Suppress reports whether any rule matches the finding. Rules run in file
// order; the first match wins. A rule that fails to evaluate is reported
// but never blocks the other rules.
func (e *Engine) Suppress(f findings.Finding) (bool, error) {
	if len(e.programs) == 0 {
		return false, nil
	}
	vars := e.varsFor(f)

	var firstErr error
	for _, c := range e.programs {
		out, _, err := c.prg.Eval(vars)
		if err != nil {
			e.log.Warn("policy rule evaluation failed", "rule_id", c.rule.ID, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("rule %s: %w", c.rule.ID, err)
			}
			continue
		}
		if match, ok := out.Value().(bool); ok && match {
			e.log.Debug("finding suppressed by policy", "rule_id", c.rule.ID, "finding_rule", f.Rule)
			return true, nil
		}
	}
	return false, firstErr
}

func (e *Engine) varsFor(f findings.Finding) map[string]any {
	vars := map[string]any{
		"category": string(f.Category),
		"severity": string(f.Severity),
		"rule":     f.Rule,
		"message":  f.Message,
		"id":       "",
		"region":   "",
		"kind":     "",
		"tags":     map[string]string{},
		"savings":  f.EstimatedMonthlySavingsUSD,
	}
	if f.Resource == nil {
		return vars
	}
	vars["id"] = f.Resource.ID
	vars["region"] = f.Resource.Region
	if e.resolve != nil {
		if rec, ok := e.resolve(*f.Resource); ok {
			vars["kind"] = string(rec.Kind)
			if rec.Tags != nil {
				vars["tags"] = rec.Tags
			}
		}
	}
	return vars
}
