package findings

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gaugeworks/cloudgauge/pkg/audit/cost"
	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
	"github.com/gaugeworks/cloudgauge/pkg/audit/metrics"
	"github.com/gaugeworks/cloudgauge/pkg/config"
)

const tracerName = "cloudgauge/findings"

// Posture carries account-level security inputs gathered outside regional
// discovery. A nil Posture skips every check that depends on it.
type Posture struct {
	// AccessKeyAges holds the age of each active long-lived credential.
	AccessKeyAges []time.Duration
	// AccessKeyErr marks the ages as unavailable; the rotation check is
	// skipped with this reason.
	AccessKeyErr error
	// AuditTrailActive reports whether an account-wide audit trail is
	// recording activity.
	AuditTrailActive bool
	AuditTrailErr    error
}

// Inputs bundles the collected data the analysis passes read. All fields
// are optional; missing data narrows what the passes can conclude but never
// fails the run.
type Inputs struct {
	Inventory  *inventory.Inventory
	Metrics    *metrics.Result
	Costs      map[inventory.Key]cost.Entry
	Posture    *Posture
	Rates      *cost.RateTable
	Thresholds config.Thresholds
	Heuristics config.HeuristicConfig
	Security   config.SecurityConfig
	// Now anchors age calculations. Zero means time.Now.
	Now time.Time
}

func (in Inputs) now() time.Time {
	if in.Now.IsZero() {
		return time.Now()
	}
	return in.Now
}

func (in Inputs) records() []inventory.ResourceRecord {
	if in.Inventory == nil {
		return nil
	}
	return in.Inventory.Records()
}

func (in Inputs) byKind(kind inventory.Kind) []inventory.ResourceRecord {
	if in.Inventory == nil {
		return nil
	}
	return in.Inventory.ByKind(kind)
}

func (in Inputs) metricValue(key inventory.Key, metric string, stat inventory.Statistic) (float64, bool) {
	if in.Metrics == nil {
		return 0, false
	}
	return in.Metrics.Value(key, metric, stat)
}

// metricNote returns the note of a note-only series, distinguishing "the
// metric was queried and came back empty" from "the metric was never
// collected".
func (in Inputs) metricNote(key inventory.Key, metric string) (string, bool) {
	if in.Metrics == nil {
		return "", false
	}
	s, ok := in.Metrics.Find(key, metric, "")
	if !ok || s.Value != nil {
		return "", false
	}
	return s.Note, true
}

// Suppressor decides whether policy suppresses a finding.
type Suppressor interface {
	Suppress(f Finding) (bool, error)
}

// CostHeuristic inspects the estate and proposes savings.
type CostHeuristic interface {
	Name() string
	Evaluate(in Inputs) []Finding
}

// Engine runs the three analysis passes over collected data.
type Engine struct {
	log        *slog.Logger
	heuristics []CostHeuristic
	suppressor Suppressor
}

// NewEngine returns an engine with the built-in heuristic set registered.
func NewEngine(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		log:        log,
		heuristics: defaultHeuristics(),
	}
}

// Register adds a cost heuristic to the built-in set.
func (e *Engine) Register(h CostHeuristic) {
	e.heuristics = append(e.heuristics, h)
}

// SetSuppressor installs a policy filter applied to every finding before
// the report is assembled.
func (e *Engine) SetSuppressor(s Suppressor) {
	e.suppressor = s
}

// Evaluate produces the findings report. Passes are independent: a failure
// in one never hides the output of the others.
func (e *Engine) Evaluate(ctx context.Context, in Inputs) *Report {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "findings.Evaluate")
	defer span.End()

	if in.Rates == nil {
		in.Rates = cost.DefaultRateTable()
	}

	rep := &Report{}
	e.guard("bottlenecks", func() {
		rep.Bottlenecks = e.bottlenecks(ctx, in)
	})
	e.guard("cost", func() {
		rep.CostOptimizations = e.costOptimizations(ctx, in)
	})
	e.guard("security", func() {
		e.securityPosture(ctx, in, rep)
	})

	e.applyPolicy(rep)

	sortFindings(rep.Bottlenecks)
	sortFindings(rep.CostOptimizations)
	sortFindings(rep.SecurityFindings)
	rep.QuickWins = quickWins(rep.CostOptimizations, in.Heuristics.QuickWinCount)

	span.SetAttributes(
		attribute.Int("findings.bottlenecks", len(rep.Bottlenecks)),
		attribute.Int("findings.cost_optimizations", len(rep.CostOptimizations)),
		attribute.Int("findings.security_score", rep.SecurityScore),
		attribute.Int("findings.suppressed", rep.Suppressed),
	)
	return rep
}

// guard isolates a pass so a panic degrades that pass instead of the run.
func (e *Engine) guard(pass string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("analysis pass panicked", "pass", pass, "panic", r)
		}
	}()
	fn()
}

// applyPolicy filters findings through the suppressor. A failing rule keeps
// the finding; policy errors must never hide real problems.
func (e *Engine) applyPolicy(rep *Report) {
	if e.suppressor == nil {
		return
	}
	filter := func(fs []Finding) []Finding {
		out := make([]Finding, 0, len(fs))
		for _, f := range fs {
			drop, err := e.suppressor.Suppress(f)
			if err != nil {
				e.log.Warn("suppression rule failed, keeping finding",
					"rule", f.Rule, "error", err)
				out = append(out, f)
				continue
			}
			if drop {
				rep.Suppressed++
				continue
			}
			out = append(out, f)
		}
		return out
	}
	rep.Bottlenecks = filter(rep.Bottlenecks)
	rep.CostOptimizations = filter(rep.CostOptimizations)
	rep.SecurityFindings = filter(rep.SecurityFindings)
}

// quickWins selects the top optimizations by estimated savings. Advisories
// without a dollar figure never qualify.
func quickWins(costOpts []Finding, n int) []Finding {
	if n <= 0 {
		n = config.DefaultHeuristicConfig().QuickWinCount
	}
	wins := make([]Finding, 0, len(costOpts))
	for _, f := range costOpts {
		if f.EstimatedMonthlySavingsUSD > 0 {
			wins = append(wins, f)
		}
	}
	sortBySavings(wins)
	if len(wins) > n {
		wins = wins[:n]
	}
	return wins
}

func sortBySavings(fs []Finding) {
	sortFindingsBy(fs, func(a, b Finding) bool {
		if a.EstimatedMonthlySavingsUSD != b.EstimatedMonthlySavingsUSD {
			return a.EstimatedMonthlySavingsUSD > b.EstimatedMonthlySavingsUSD
		}
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra < rb
		}
		return keyString(a.Resource) < keyString(b.Resource)
	})
}
