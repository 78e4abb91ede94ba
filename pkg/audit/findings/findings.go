// Package findings turns inventory, metrics, and cost data into actionable
// findings: performance bottlenecks, cost optimization opportunities, and a
// weighted security posture score. Every pass is pure analysis over data
// already collected; nothing here talks to a provider.
package findings

import (
	"sort"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

// Category groups findings by the concern they address.
type Category string

const (
	CategoryBottleneck Category = "bottleneck"
	CategoryCost       Category = "cost"
	CategorySecurity   Category = "security"
)

// Severity ranks findings. Critical outranks high, down to info.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityInfo:     4,
}

// Rank returns the sort position of a severity, critical first. Unknown
// severities sort last.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// Finding is one actionable observation about the audited estate.
type Finding struct {
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	// Rule names the heuristic or check that produced the finding, for
	// suppression policies and stable grouping.
	Rule string `json:"rule"`
	// Resource is nil for account-level findings.
	Resource                   *inventory.Key `json:"resource,omitempty"`
	Message                    string         `json:"message"`
	Recommendation             string         `json:"recommendation,omitempty"`
	EstimatedMonthlySavingsUSD float64        `json:"estimatedMonthlySavingsUSD,omitempty"`
}

// CheckResult is the outcome of one evaluated security check.
type CheckResult struct {
	Check  string `json:"check"`
	Weight int    `json:"weight"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// SkippedCheck records a security check that could not be evaluated and the
// reason why. Skipped checks are excluded from the score denominator.
type SkippedCheck struct {
	Check  string `json:"check"`
	Reason string `json:"reason"`
}

// Report is the full analysis output.
type Report struct {
	Bottlenecks       []Finding `json:"bottlenecks"`
	CostOptimizations []Finding `json:"costOptimizations"`
	// QuickWins holds the top cost optimizations by estimated savings.
	QuickWins        []Finding      `json:"quickWins"`
	SecurityScore    int            `json:"securityScore"`
	SecurityFindings []Finding      `json:"securityFindings"`
	SecurityChecks   []CheckResult  `json:"securityChecks"`
	SkippedChecks    []SkippedCheck `json:"skippedChecks,omitempty"`
	// Suppressed counts findings removed by policy.
	Suppressed int `json:"suppressed,omitempty"`
}

// All returns every finding across categories. Quick wins are a view over
// CostOptimizations and are not repeated.
func (r *Report) All() []Finding {
	out := make([]Finding, 0, len(r.Bottlenecks)+len(r.CostOptimizations)+len(r.SecurityFindings))
	out = append(out, r.Bottlenecks...)
	out = append(out, r.CostOptimizations...)
	out = append(out, r.SecurityFindings...)
	return out
}

// TotalSavings sums the estimated monthly savings across cost optimizations.
func (r *Report) TotalSavings() float64 {
	var sum float64
	for _, f := range r.CostOptimizations {
		sum += f.EstimatedMonthlySavingsUSD
	}
	return sum
}

// sortFindings orders by severity, then savings descending, then resource
// key and message for a stable presentation.
func sortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra < rb
		}
		if a.EstimatedMonthlySavingsUSD != b.EstimatedMonthlySavingsUSD {
			return a.EstimatedMonthlySavingsUSD > b.EstimatedMonthlySavingsUSD
		}
		if ka, kb := keyString(a.Resource), keyString(b.Resource); ka != kb {
			return ka < kb
		}
		return a.Message < b.Message
	})
}

func sortFindingsBy(fs []Finding, less func(a, b Finding) bool) {
	sort.SliceStable(fs, func(i, j int) bool { return less(fs[i], fs[j]) })
}

func keyString(k *inventory.Key) string {
	if k == nil {
		return ""
	}
	return k.String()
}

func keyOf(rec inventory.ResourceRecord) *inventory.Key {
	k := rec.Key()
	return &k
}
