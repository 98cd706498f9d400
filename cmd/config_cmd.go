package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/theirongolddev/adpulse/internal/cli"
	"github.com/theirongolddev/adpulse/internal/config"
	"github.com/theirongolddev/adpulse/internal/model"
	"github.com/theirongolddev/adpulse/internal/pipeline"

	"github.com/spf13/cobra"
)

var flagConfigOptions bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&flagConfigOptions, "options", false, "Load the sources and list the filter values per dimension")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, _ []string) error {
	path := configPath()
	fmt.Printf("  Config file: %s\n", path)
	if _, err := os.Stat(path); err == nil {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Granularity: %s\n", cfg.General.DefaultGranularity)
	fmt.Printf("    Dimension:   %s\n", cfg.General.DefaultDimension)
	fmt.Printf("    Metric:      %s\n", cfg.General.DefaultMetric)
	fmt.Printf("    Locale:      %s\n", cfg.General.Locale)
	fmt.Println()

	fmt.Println("  [Refresh]")
	fmt.Printf("    Interval: %s\n", cli.FormatDuration(cfg.RefreshInterval()))
	fmt.Printf("    Timeout:  %s\n", cli.FormatDuration(cfg.RequestTimeout()))
	fmt.Printf("    Auto:     %v\n", cfg.Refresh.Auto)
	fmt.Println()

	fmt.Println("  [Sources]")
	for _, s := range cfg.Sources {
		u := s.URL
		if u == "" {
			u = cli.Muted("not configured")
		}
		fmt.Printf("    %-10s %-9s %s\n", s.Name, s.Schema, u)
	}
	fmt.Println()

	if len(cfg.Brands) > 0 {
		fmt.Println("  [Brands]")
		for _, b := range cfg.Brands {
			lang := b.Language
			if lang == "" {
				lang = "-"
			}
			fmt.Printf("    %-20s -> %s (%s)\n", b.Match, b.Domain, lang)
		}
		fmt.Println()
	}

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address: %s\n", cfg.Daemon.Addr)
	fmt.Println()

	if flagConfigOptions {
		result, err := loadData(cmd.Context())
		if err != nil {
			return err
		}
		opts := pipeline.FilterOptions(result.Records)
		fmt.Println("  [Filter options]")
		for _, d := range model.Dimensions {
			vals := opts.For(d)
			fmt.Printf("    %s (%d)\n", d.Label(), len(vals))
			if len(vals) > 0 {
				fmt.Printf("      %s\n", strings.Join(vals, ", "))
			}
		}
		fmt.Println()
	}

	fmt.Printf("  Run `adpulse setup` to reconfigure. Environment overrides: %s, %s.\n",
		config.EnvGoogleURL, config.EnvMicrosoftURL)
	return nil
}
