package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gaugeworks/cloudgauge/pkg/audit"
	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
	"github.com/gaugeworks/cloudgauge/pkg/notifier"
	"github.com/gaugeworks/cloudgauge/pkg/report"
	"github.com/gaugeworks/cloudgauge/pkg/tui"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Audit the estate and report findings",
	Long: `Discover resources across regions, collect utilization metrics,
attribute cost, and analyze the lot into findings.

Example:
  cloudgauge scan --regions us-east-1,eu-west-1 --types ec2-instance,ebs-volume
  cloudgauge scan --mock --interactive`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runScan(cmd.Context()); err != nil {
			fmt.Printf("[ERROR] %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringSlice("types", nil, "Resource types to discover (default: all)")
	scanCmd.Flags().String("tag", "", "Tag filter, key or key=value")
	scanCmd.Flags().StringSlice("names", nil, "Name filters (substring match)")
	scanCmd.Flags().StringSlice("ids", nil, "Exact resource ID filters")
	scanCmd.Flags().Duration("period", time.Hour, "Metric aggregation period")
	scanCmd.Flags().Int("lookback-days", 14, "Metric lookback window in days")
	scanCmd.Flags().Float64("cpu-high", 80, "CPU percent marking a bottleneck")
	scanCmd.Flags().Float64("cpu-low", 10, "CPU percent marking underutilization")
	scanCmd.Flags().Float64("memory-high", 85, "Memory percent marking pressure")
	scanCmd.Flags().String("output", "cloudgauge-out", "Directory for exported artifacts")
	scanCmd.Flags().StringSlice("format", []string{"json", "csv"}, "Export formats")
	scanCmd.Flags().Bool("interactive", false, "Browse findings in the TUI after the scan")
	scanCmd.Flags().String("rules", "", "Suppression rules file (YAML)")
	scanCmd.Flags().String("rates", "", "Rate overrides file (YAML)")
	scanCmd.Flags().Bool("strict", false, "Exit non-zero when the scan is partial")
	scanCmd.Flags().String("kubeconfig", "", "Kubeconfig for cluster enrichment")
	scanCmd.Flags().String("kube-cluster", "", "Restrict enrichment to one cluster")
	scanCmd.Flags().String("allocation-tag", "", "Cost allocation tag key override")

	bindFlags(scanCmd.Flags(),
		"types", "tag", "names", "ids", "period", "lookback-days",
		"cpu-high", "cpu-low", "memory-high", "output", "format",
		"interactive", "rules", "rates", "strict",
		"kubeconfig", "kube-cluster", "allocation-tag")
}

func runScan(ctx context.Context) error {
	eng, err := audit.New(ctx, audit.WithConfig(buildConfig()))
	if err != nil {
		return fmt.Errorf("engine init: %w", err)
	}
	defer eng.Close(ctx)

	var res *audit.Result
	var runErr error
	if viper.GetBool("interactive") {
		res, runErr = tui.RunScan("account "+eng.Account(), func() (*audit.Result, error) {
			return eng.Run(ctx)
		})
	} else {
		res, runErr = eng.Run(ctx)
	}
	if runErr != nil && !errors.Is(runErr, audit.ErrPartialResult) {
		return runErr
	}

	fmt.Println(report.Summary(res))

	formats := splitList(viper.GetStringSlice("format"))
	outDir := viper.GetString("output")
	if len(formats) > 0 {
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	for _, format := range formats {
		switch strings.ToLower(format) {
		case "json":
			path := filepath.Join(outDir, "scan.json")
			if err := report.WriteJSON(res, path); err != nil {
				fmt.Printf("[WARN] JSON export failed: %v\n", err)
			} else {
				fmt.Printf("[SUCCESS] Result written: %s\n", path)
			}
		case "csv":
			path := filepath.Join(outDir, "findings.csv")
			if err := report.WriteCSV(res.Findings, path); err != nil {
				fmt.Printf("[WARN] CSV export failed: %v\n", err)
			} else {
				fmt.Printf("[SUCCESS] Findings written: %s\n", path)
			}
		default:
			fmt.Printf("[WARN] Unknown export format %q (want json or csv)\n", format)
		}
	}

	if webhook := viper.GetString("slack-webhook"); webhook != "" {
		client := notifier.NewSlackClient(webhook, viper.GetString("slack-channel"))
		if err := client.SendScanReport(scanSummary(res)); err != nil {
			fmt.Printf("[WARN] Slack delivery failed: %v\n", err)
		} else {
			fmt.Println("[SUCCESS] Report delivered to Slack")
		}
	}

	if viper.GetBool("interactive") {
		if err := tui.Run(res); err != nil {
			fmt.Printf("[WARN] TUI exited with error: %v\n", err)
		}
	}

	// Under --strict a degraded scan still exports everything above, then
	// fails the run for CI.
	return runErr
}

// buildConfig resolves flags, environment, and config file into engine
// settings. Explicit flags win, then environment, then the config file.
func buildConfig() audit.Config {
	cfg := audit.DefaultConfig()

	cfg.MockMode = viper.GetBool("mock")
	if regions := splitList(viper.GetStringSlice("regions")); len(regions) > 0 {
		cfg.Regions = regions
	} else if cfg.MockMode {
		// Let the synthetic provider report its seeded regions.
		cfg.Regions = nil
	}

	if types := splitList(viper.GetStringSlice("types")); len(types) > 0 {
		cfg.Types = cfg.Types[:0]
		for _, t := range types {
			cfg.Types = append(cfg.Types, inventory.ResourceType(t))
		}
	}

	if tag := viper.GetString("tag"); tag != "" {
		key, value, _ := strings.Cut(tag, "=")
		cfg.Filters.TagKey = key
		cfg.Filters.TagValue = value
	}
	cfg.Filters.Names = splitList(viper.GetStringSlice("names"))
	cfg.Filters.IDs = splitList(viper.GetStringSlice("ids"))

	cfg.Profile = viper.GetString("profile")
	cfg.Concurrency = viper.GetInt("concurrency")
	cfg.Metrics.Period = viper.GetDuration("period")
	cfg.Metrics.Lookback = time.Duration(viper.GetInt("lookback-days")) * 24 * time.Hour
	cfg.Thresholds.CPUHighPct = viper.GetFloat64("cpu-high")
	cfg.Thresholds.CPULowPct = viper.GetFloat64("cpu-low")
	cfg.Thresholds.MemoryHighPct = viper.GetFloat64("memory-high")
	cfg.RulesFile = viper.GetString("rules")
	cfg.RatesFile = viper.GetString("rates")
	cfg.StrictMode = viper.GetBool("strict")
	cfg.Kubeconfig = viper.GetString("kubeconfig")
	cfg.KubeCluster = viper.GetString("kube-cluster")
	cfg.AllocationTag = viper.GetString("allocation-tag")
	cfg.OtelEndpoint = viper.GetString("otel-endpoint")

	if viper.GetBool("verbose") {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	return cfg
}

func scanSummary(res *audit.Result) notifier.ScanSummary {
	return notifier.ScanSummary{
		Account:       res.Account,
		Regions:       res.Regions,
		TotalScanned:  res.Inventory.TotalRecords(),
		TotalFindings: len(res.Findings.All()),
		TotalSavings:  res.Findings.TotalSavings(),
		SecurityScore: res.Findings.SecurityScore,
		QuickWins:     res.Findings.QuickWins,
		Partial:       res.Partial,
	}
}
