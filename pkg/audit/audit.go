// Package audit is the engine facade: it wires a provider's probes,
// metrics querier, billing source, and posture scanner into the scan
// pipeline and runs discovery, collection, cost attribution, and findings
// analysis in order. Everything provider-specific is injected; the
// pipeline itself never imports an SDK.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/gaugeworks/cloudgauge/pkg/audit/cost"
	"github.com/gaugeworks/cloudgauge/pkg/audit/findings"
	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
	"github.com/gaugeworks/cloudgauge/pkg/audit/metrics"
	"github.com/gaugeworks/cloudgauge/pkg/audit/policy"
	"github.com/gaugeworks/cloudgauge/pkg/awsprobe"
	"github.com/gaugeworks/cloudgauge/pkg/config"
	"github.com/gaugeworks/cloudgauge/pkg/telemetry"
	"github.com/gaugeworks/cloudgauge/pkg/version"
)

// ErrPartialResult indicates the scan completed but some units failed and
// were recorded as diagnostics instead of results.
var ErrPartialResult = errors.New("scan completed with partial results")

// Config holds engine settings.
type Config struct {
	// Regions and Types scope discovery; both must be non-empty.
	Regions []string
	Types   []inventory.ResourceType
	Filters inventory.Filters

	// Profile selects the credential profile for the live provider.
	Profile string
	// MockMode replaces the live provider with the synthetic one so the
	// whole pipeline runs without credentials.
	MockMode bool

	// Concurrency bounds the discovery and collection worker pools.
	Concurrency int

	Metrics    config.MetricsConfig
	Thresholds config.Thresholds
	Heuristics config.HeuristicConfig
	Security   config.SecurityConfig

	// CostDays is the trailing billing window in days.
	CostDays int
	// AllocationTag overrides the cost allocation tag key consulted for
	// authoritative per-resource figures.
	AllocationTag string

	// RulesFile points at a YAML suppression policy; empty means none.
	RulesFile string
	// RatesFile overlays the static rate catalog; empty keeps defaults.
	RatesFile string

	// Kubeconfig enables cluster enrichment; KubeCluster restricts it to
	// one named cluster.
	Kubeconfig  string
	KubeCluster string

	// CacheDir holds the pricing cache. Empty disables persistence.
	CacheDir string

	// StrictMode turns partial results into ErrPartialResult.
	StrictMode bool

	// Telemetry config.
	OtelEndpoint  string
	SkipTelemetry bool

	Logger *slog.Logger
}

// DefaultConfig returns a config with every engine default filled in.
func DefaultConfig() Config {
	return Config{
		Regions:     []string{config.DefaultRegion},
		Types:       awsprobe.AllTypes(),
		Concurrency: config.DefaultConcurrency,
		Metrics:     config.DefaultMetricsConfig(),
		Thresholds:  config.DefaultThresholds(),
		Heuristics:  config.DefaultHeuristicConfig(),
		Security:    config.DefaultSecurityConfig(),
		CostDays:    30,
	}
}

// PostureSource gathers account-level security inputs.
type PostureSource interface {
	Collect(ctx context.Context) *findings.Posture
}

// RateRefiner fills missing compute rates from a pricing backend.
type RateRefiner interface {
	RefineCompute(ctx context.Context, table *cost.RateTable, region string, classes []string)
}

// ClusterEnricher stamps live attributes onto discovered cluster records.
type ClusterEnricher interface {
	Enrich(ctx context.Context, records []inventory.ResourceRecord)
}

// Engine is the runtime core.
type Engine struct {
	Logger *slog.Logger
	Tracer trace.Tracer

	// Immutable config.
	config Config

	// Injected capabilities.
	registry *inventory.ProbeRegistry
	querier  metrics.Querier
	billing  cost.BillingSource
	posture  PostureSource
	refiner  RateRefiner
	enricher ClusterEnricher
	rates    *cost.RateTable
	rules    []policy.Rule
	policy   *policy.Engine

	account  string
	shutdown func(context.Context) error
}

// Option defines a functional configuration override.
type Option func(*Engine)

// New initializes the engine: options first, then telemetry, rate table,
// suppression policy, and finally the provider for anything still unset.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		ReplaceAttr: redactSensitiveData,
	})
	e := &Engine{
		Logger: slog.New(handler),
		Tracer: telemetry.Tracer("cloudgauge/audit"),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.normalize()

	slog.SetDefault(e.Logger)

	if !e.config.SkipTelemetry {
		shutdown, err := telemetry.Init(ctx, version.AppName, version.Current, e.config.OtelEndpoint)
		if err != nil {
			e.Logger.Warn("telemetry init failed", "error", err)
		} else {
			e.shutdown = shutdown
		}
	}

	if e.rates == nil {
		rates, err := cost.LoadRateTable(e.config.RatesFile)
		if err != nil {
			return nil, err
		}
		e.rates = rates
	}

	rules := e.rules
	if len(rules) == 0 && e.config.RulesFile != "" {
		loaded, err := policy.LoadRules(e.config.RulesFile)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	if len(rules) > 0 {
		pe, err := policy.NewEngine(rules, e.Logger)
		if err != nil {
			return nil, err
		}
		e.policy = pe
	}

	if e.registry == nil {
		if err := e.wireProvider(ctx); err != nil {
			return nil, err
		}
	}

	if e.config.Kubeconfig != "" && e.enricher == nil {
		enricher, err := awsprobe.NewKubeEnricher(e.config.Kubeconfig, e.config.KubeCluster, e.Logger)
		if err != nil {
			e.Logger.Warn("cluster enrichment unavailable", "error", err)
		} else {
			e.enricher = enricher
		}
	}

	return e, nil
}

func (e *Engine) normalize() {
	if e.config.Concurrency <= 0 {
		e.config.Concurrency = config.DefaultConcurrency
	}
	if e.config.CostDays <= 0 {
		e.config.CostDays = 30
	}
	if e.config.Metrics.Period <= 0 {
		e.config.Metrics.Period = config.DefaultMetricsConfig().Period
	}
	if e.config.Metrics.Lookback <= 0 {
		e.config.Metrics.Lookback = config.DefaultMetricsConfig().Lookback
	}
	if e.config.Logger != nil {
		e.Logger = e.config.Logger
	}
}

// wireProvider builds the provider capabilities left unset by options:
// the synthetic one in mock mode, a live session otherwise.
func (e *Engine) wireProvider(ctx context.Context) error {
	if e.config.MockMode {
		p := awsprobe.NewMockProvider(time.Time{})
		e.registry = p.Registry()
		if e.querier == nil {
			e.querier = p.Querier()
		}
		if e.billing == nil {
			e.billing = p.Billing()
		}
		if e.posture == nil {
			e.posture = staticPosture{p.Posture()}
		}
		e.account = "000000000000"
		if len(e.config.Regions) == 0 {
			e.config.Regions = p.Regions()
		}
		return nil
	}

	region := config.DefaultRegion
	if len(e.config.Regions) > 0 {
		region = e.config.Regions[0]
	}
	sess, err := awsprobe.NewSession(ctx, region, e.config.Profile, e.Logger)
	if err != nil {
		return err
	}
	account, err := sess.VerifyIdentity(ctx)
	if err != nil {
		return fmt.Errorf("verify credentials: %w", err)
	}
	e.account = account

	probes := awsprobe.NewProbes(sess, e.Logger)
	e.registry = probes.Registry()
	if e.querier == nil {
		e.querier = awsprobe.NewMetrics(sess)
	}
	if e.billing == nil {
		e.billing = awsprobe.NewBilling(sess)
	}
	if e.posture == nil {
		e.posture = awsprobe.NewPostureScanner(sess, e.Logger)
	}
	if e.refiner == nil {
		e.refiner = awsprobe.NewPriceFeed(sess, e.Logger, e.config.CacheDir)
	}
	return nil
}

// staticPosture adapts a pre-built posture snapshot to PostureSource.
type staticPosture struct {
	p *findings.Posture
}

func (s staticPosture) Collect(context.Context) *findings.Posture { return s.p }

// WithConfig sets raw config.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.Logger = l
	}
}

// WithRegistry injects the probe registry, bypassing provider wiring.
func WithRegistry(reg *inventory.ProbeRegistry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithQuerier injects the metrics backend.
func WithQuerier(q metrics.Querier) Option {
	return func(e *Engine) {
		e.querier = q
	}
}

// WithBilling injects the billing backend.
func WithBilling(b cost.BillingSource) Option {
	return func(e *Engine) {
		e.billing = b
	}
}

// WithPosture injects the security posture source.
func WithPosture(p PostureSource) Option {
	return func(e *Engine) {
		e.posture = p
	}
}

// WithRateRefiner injects the pricing backend.
func WithRateRefiner(r RateRefiner) Option {
	return func(e *Engine) {
		e.refiner = r
	}
}

// WithEnricher injects the cluster enricher.
func WithEnricher(c ClusterEnricher) Option {
	return func(e *Engine) {
		e.enricher = c
	}
}

// WithRates pins the rate table, bypassing RatesFile.
func WithRates(t *cost.RateTable) Option {
	return func(e *Engine) {
		e.rates = t
	}
}

// WithRules supplies suppression rules directly, bypassing RulesFile.
// They are compiled during New; a bad expression fails construction.
func WithRules(rules []policy.Rule) Option {
	return func(e *Engine) {
		e.rules = rules
	}
}

// Account returns the provider account the engine authenticated as.
func (e *Engine) Account() string {
	return e.account
}

// Rates returns the rate table the engine prices estimates with.
func (e *Engine) Rates() *cost.RateTable {
	return e.rates
}

// Close flushes buffered telemetry.
func (e *Engine) Close(ctx context.Context) error {
	if e.shutdown == nil {
		return nil
	}
	return e.shutdown(ctx)
}

// redactSensitiveData scrubs credential-bearing keys from log output.
func redactSensitiveData(groups []string, a slog.Attr) slog.Attr {
	sensitiveKeys := map[string]bool{
		"account": true, "password": true, "access_key": true, "token": true,
		"secret": true, "api_key": true, "private_key": true, "auth_token": true,
		"session_token": true, "credential": true, "signature": true, "webhook": true,
	}
	if sensitiveKeys[a.Key] {
		return slog.Attr{
			Key:   a.Key,
			Value: slog.StringValue("[REDACTED]"),
		}
	}
	return a
}
