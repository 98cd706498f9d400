package cmd

import (
	"fmt"

	"github.com/theirongolddev/adpulse/internal/cli"
	"github.com/theirongolddev/adpulse/internal/model"
	"github.com/theirongolddev/adpulse/internal/pipeline"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "KPI summary with the latest period comparison",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

// summaryMetrics are printed in this order, in groups split by separators.
var summaryMetrics = [][]model.Metric{
	{model.MetricImpressions, model.MetricClicks, model.MetricCTR, model.MetricCPC},
	{model.MetricCost, model.MetricConversions, model.MetricConversionRate, model.MetricCPA},
	{model.MetricRevenue, model.MetricProfit, model.MetricROAS, model.MetricCLV},
}

func runSummary(cmd *cobra.Command, _ []string) error {
	result, d, err := loadAndDerive(cmd.Context())
	if err != nil {
		return err
	}

	if len(result.Records) == 0 {
		fmt.Println("\n  No records found in the configured sources.")
		return nil
	}
	if d.Summary.Records == 0 {
		fmt.Println("\n  No records match the selected filters.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("AD PERFORMANCE  " + describeQuery(d.Query)))
	fmt.Println()

	var rows [][]string
	for i, group := range summaryMetrics {
		if i > 0 {
			rows = append(rows, []string{cli.Separator})
		}
		for _, m := range group {
			rows = append(rows, []string{m.Label(), cli.FormatMetric(m, d.Summary.Value(m))})
		}
	}
	rows = append(rows, []string{cli.Separator},
		[]string{"Records", cli.FormatNumber(float64(d.Summary.Records))})
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows:    rows,
	}))

	if len(d.Comparison) > 0 {
		fmt.Println()
		fmt.Print(cli.RenderTable(latestTable(d)))
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(sourcesTable(result)))
	return nil
}

// latestTable compares the newest period with its predecessor and the same
// period last year.
func latestTable(d pipeline.Derived) cli.Table {
	m := d.Query.Metric
	row := d.Comparison[0]
	optional := func(v *float64) string {
		if v == nil {
			return cli.Muted("n/a")
		}
		return cli.FormatMetric(m, *v)
	}
	return cli.Table{
		Title:   fmt.Sprintf("Latest %s: %s", d.Query.Granularity.Label(), m.Label()),
		Headers: []string{"Period", "Value", "Change"},
		Rows: [][]string{
			{row.Key, cli.FormatMetric(m, row.Current), ""},
			{orNA(row.PreviousKey), optional(row.Previous), cli.Change(row.PreviousPct, m.LowerIsBetter())},
			{orNA(row.LastYearKey), optional(row.LastYear), cli.Change(row.YearOverYear, m.LowerIsBetter())},
		},
	}
}

func sourcesTable(result *pipeline.LoadResult) cli.Table {
	rows := make([][]string, 0, len(result.Sources))
	for _, s := range result.Sources {
		rows = append(rows, []string{
			s.Name,
			s.Schema,
			cli.FormatNumber(float64(s.Records)),
			cli.FormatNumber(float64(s.Dropped)),
			cli.FormatCompact(float64(s.Bytes)) + "B",
			cli.FormatDuration(s.Elapsed),
		})
	}
	return cli.Table{
		Title:   "Sources",
		Headers: []string{"Source", "Schema", "Records", "Dropped", "Size", "Time"},
		Rows:    rows,
		Left:    []int{0, 1},
	}
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
