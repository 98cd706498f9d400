package cmd

import (
	"fmt"

	"github.com/theirongolddev/adpulse/internal/config"
	"github.com/theirongolddev/adpulse/internal/tui"
	"github.com/theirongolddev/adpulse/internal/tui/theme"

	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure the report feeds, default view and theme",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	// Start from the file only; environment overrides are not persisted.
	fileCfg, err := config.LoadFrom(configPath())
	if err != nil {
		return err
	}
	theme.SetActive(fileCfg.Appearance.Theme)

	vals := tui.SetupValuesFrom(fileCfg)
	if err := tui.NewSetupForm(vals).Run(); err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	tui.ApplySetup(&fileCfg, vals)
	if err := fileCfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveTo(configPath(), fileCfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", configPath())
	fmt.Println("  Run `adpulse` for a summary or `adpulse tui` for the dashboard.")
	fmt.Println()
	return nil
}
