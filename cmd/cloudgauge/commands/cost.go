package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gaugeworks/cloudgauge/pkg/audit"
	"github.com/gaugeworks/cloudgauge/pkg/notifier"
	"github.com/gaugeworks/cloudgauge/pkg/report"
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Summarize account spend over a trailing window",
	Long: `Query the billing backend for spend grouped by service, without
running discovery.

Example:
  cloudgauge cost --regions us-east-1 --days 30 --by-region`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runCost(cmd.Context()); err != nil {
			fmt.Printf("[ERROR] %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(costCmd)

	costCmd.Flags().Int("days", 30, "Trailing window in days")
	costCmd.Flags().Bool("by-region", false, "Include the per-region breakdown")

	bindFlags(costCmd.Flags(), "days", "by-region")
}

func runCost(ctx context.Context) error {
	cfg := buildConfig()
	cfg.CostDays = viper.GetInt("days")

	eng, err := audit.New(ctx, audit.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("engine init: %w", err)
	}
	defer eng.Close(ctx)

	rep, err := eng.AggregateCost(ctx)
	if err != nil {
		return err
	}
	if !viper.GetBool("by-region") {
		rep.ByRegion = nil
	}

	fmt.Println(report.CostSummary(rep))

	if webhook := viper.GetString("slack-webhook"); webhook != "" {
		client := notifier.NewSlackClient(webhook, viper.GetString("slack-channel"))
		if err := client.SendCostReport(rep.Days, rep.TotalUSD, rep.ByService); err != nil {
			fmt.Printf("[WARN] Slack delivery failed: %v\n", err)
		} else {
			fmt.Println("[SUCCESS] Report delivered to Slack")
		}
	}
	return nil
}
