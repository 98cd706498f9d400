package cmd

import (
	"fmt"

	"github.com/theirongolddev/adpulse/internal/cli"

	"github.com/spf13/cobra"
)

var flagTrendLimit int

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Per-period values with previous-period and year-over-year changes",
	RunE:  runTrends,
}

func init() {
	trendsCmd.Flags().IntVarP(&flagTrendLimit, "limit", "l", 0, "Show only the newest N periods (0 for all)")
	rootCmd.AddCommand(trendsCmd)
}

func runTrends(cmd *cobra.Command, _ []string) error {
	_, d, err := loadAndDerive(cmd.Context())
	if err != nil {
		return err
	}
	if len(d.Comparison) == 0 {
		fmt.Println("\n  No records match the selected filters.")
		return nil
	}

	m := d.Query.Metric
	rows := d.Comparison
	if flagTrendLimit > 0 && len(rows) > flagTrendLimit {
		rows = rows[:flagTrendLimit]
	}

	optional := func(v *float64) string {
		if v == nil {
			return cli.Muted("n/a")
		}
		return cli.FormatMetric(m, *v)
	}

	table := cli.Table{
		Headers: []string{"Period", m.Label(), "Previous", "Change", "Last year", "YoY"},
	}
	for _, r := range rows {
		table.Rows = append(table.Rows, []string{
			r.Key,
			cli.FormatMetric(m, r.Current),
			optional(r.Previous),
			cli.Change(r.PreviousPct, m.LowerIsBetter()),
			optional(r.LastYear),
			cli.Change(r.YearOverYear, m.LowerIsBetter()),
		})
	}

	// Sparkline runs oldest to newest.
	values := make([]float64, len(d.TimeSeries))
	for i, b := range d.TimeSeries {
		values[i] = b.Summary.Value(m)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("TRENDS  " + describeQuery(d.Query)))
	fmt.Println()
	fmt.Print(cli.RenderTable(table))
	fmt.Println()
	fmt.Printf("  %s  %s\n", cli.RenderSparkline(values), cli.Muted(fmt.Sprintf("%d periods", len(values))))
	return nil
}
