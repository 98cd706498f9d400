package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/theirongolddev/adpulse/internal/export"

	"github.com/spf13/cobra"
)

var (
	flagExportFormat string
	flagExportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the time series and comparison tables to CSV or XLSX",
	Long: "Write the derived time series and period comparison to a file.\n" +
		"XLSX output adds the dimension breakdown as a third sheet.\n" +
		"Without --out, CSV is written to stdout.",
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&flagExportFormat, "format", "f", "", "csv or xlsx (default: from --out extension, else csv)")
	exportCmd.Flags().StringVarP(&flagExportOut, "out", "o", "", "Output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	format, err := export.ParseFormat(flagExportFormat, flagExportOut)
	if err != nil {
		return err
	}
	if flagExportOut == "" && format == export.XLSX {
		return errors.New("xlsx export needs --out")
	}

	_, d, err := loadAndDerive(cmd.Context())
	if err != nil {
		return err
	}

	if flagExportOut == "" {
		return export.Write(os.Stdout, format, d)
	}
	if err := export.WriteFile(flagExportOut, format, d); err != nil {
		return err
	}
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Wrote %d periods to %s\n", len(d.TimeSeries), flagExportOut)
	}
	return nil
}
