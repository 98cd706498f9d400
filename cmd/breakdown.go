package cmd

import (
	"fmt"

	"github.com/theirongolddev/adpulse/internal/cli"
	"github.com/theirongolddev/adpulse/internal/model"

	"github.com/spf13/cobra"
)

var breakdownCmd = &cobra.Command{
	Use:   "breakdown",
	Short: "Totals per account, language, campaign type or domain",
	RunE:  runBreakdown,
}

func init() {
	rootCmd.AddCommand(breakdownCmd)
}

func runBreakdown(cmd *cobra.Command, _ []string) error {
	_, d, err := loadAndDerive(cmd.Context())
	if err != nil {
		return err
	}
	if len(d.Dimension) == 0 {
		fmt.Println("\n  No records match the selected filters.")
		return nil
	}

	m := d.Query.Metric
	cols := []model.Metric{m}
	for _, extra := range []model.Metric{model.MetricCost, model.MetricRevenue, model.MetricROAS} {
		if extra != m {
			cols = append(cols, extra)
		}
	}

	top := 0.0
	for _, g := range d.Dimension {
		top = max(top, g.Summary.Value(m))
	}

	headers := []string{d.Query.Dimension.Label()}
	for _, c := range cols {
		headers = append(headers, c.Label())
	}
	headers = append(headers, "")

	table := cli.Table{Headers: headers, Left: []int{0, len(headers) - 1}}
	for _, g := range d.Dimension {
		name := g.Value
		if name == "" {
			name = cli.Muted("(none)")
		}
		row := []string{name}
		for _, c := range cols {
			row = append(row, cli.FormatMetric(c, g.Summary.Value(c)))
		}
		row = append(row, cli.RenderHorizontalBar(g.Summary.Value(m), top, 20))
		table.Rows = append(table.Rows, row)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("BY %s  %s", d.Query.Dimension.Label(), describeQuery(d.Query))))
	fmt.Println()
	fmt.Print(cli.RenderTable(table))
	return nil
}
