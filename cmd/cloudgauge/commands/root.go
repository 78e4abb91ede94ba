package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gaugeworks/cloudgauge/pkg/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cloudgauge",
	Short: "Cloud estate audit: inventory, metrics, cost, findings",
	Long: `CloudGauge - Cloud Estate Auditing

Discover. Measure. Attribute. Recommend.`,
	Version: version.Current,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.SetVersionTemplate(fmt.Sprintf("%s {{.Version}} [%s]\n", version.AppName, version.License))

	// Persistent Flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.cloudgauge.yaml)")
	rootCmd.PersistentFlags().StringSlice("regions", nil, "Regions to audit (comma-separated)")
	rootCmd.PersistentFlags().String("profile", "", "Credential profile")
	rootCmd.PersistentFlags().Int("concurrency", 8, "Worker pool size per stage")
	rootCmd.PersistentFlags().Bool("mock", false, "Run against the synthetic estate (no credentials)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().String("slack-webhook", "", "Slack webhook URL for report delivery")
	rootCmd.PersistentFlags().String("slack-channel", "", "Override Slack channel")

	bindFlags(rootCmd.PersistentFlags(),
		"regions", "profile", "concurrency", "mock", "verbose",
		"slack-webhook", "slack-channel")

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderHelp(cmd)
	})
}

// bindFlags routes the named flags through viper so the config file and
// CLOUDGAUGE_* environment variables can supply them too. Explicit flags
// still win.
func bindFlags(fs *pflag.FlagSet, names ...string) {
	for _, name := range names {
		viper.BindPFlag(name, fs.Lookup(name))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.SetConfigFile(filepath.Join(home, ".cloudgauge.yaml"))
			viper.SetConfigType("yaml")
		}
	}
	viper.SetEnvPrefix("CLOUDGAUGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.ReadInConfig()
}

// splitList flattens comma-joined entries, so both repeated flags and a
// single CLOUDGAUGE_REGIONS=a,b environment value parse the same way.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func renderHelp(cmd *cobra.Command) {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00FF99")).
		MarginBottom(1)

	flagStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA"))

	fmt.Println(titleStyle.Render(fmt.Sprintf("CLOUDGAUGE %s", version.Current)))
	fmt.Println("Inventory, utilization, cost, and findings for your cloud estate.")

	fmt.Println(titleStyle.Render("USAGE"))
	fmt.Printf("  %s\n\n", cmd.UseLine())

	fmt.Println(titleStyle.Render("COMMANDS"))
	for _, c := range cmd.Commands() {
		if c.IsAvailableCommand() {
			fmt.Printf("  %-12s %s\n", c.Name(), c.Short)
		}
	}
	fmt.Println("")

	fmt.Println(titleStyle.Render("EXAMPLES"))
	fmt.Println("  cloudgauge scan --regions us-east-1,eu-west-1   # Full audit")
	fmt.Println("  cloudgauge scan --mock --interactive            # Demo estate + TUI")
	fmt.Println("  cloudgauge cost --days 30 --by-region           # Spend rollup")
	fmt.Println("")

	fmt.Println(titleStyle.Render("FLAGS"))
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		output := fmt.Sprintf("  --%-15s %s", f.Name, f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
			output += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		fmt.Println(flagStyle.Render(output))
	})
	fmt.Println("")
}
