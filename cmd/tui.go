package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/theirongolddev/adpulse/internal/config"
	"github.com/theirongolddev/adpulse/internal/tui"
	"github.com/theirongolddev/adpulse/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive dashboard",
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	q, err := buildQuery()
	if err != nil {
		return err
	}

	theme.SetActive(cfg.Appearance.Theme)

	// Force TrueColor profile so all background styling produces ANSI codes
	// Without this, lipgloss may default to Ascii profile (no colors)
	lipgloss.SetColorProfile(termenv.TrueColor)

	// The dashboard owns the screen; log lines would tear it.
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	load, closer := newLoader(quiet)
	defer func() { _ = closer.Close() }()

	_, statErr := os.Stat(configPath())
	app := tui.NewApp(tui.Options{
		Config:    cfg,
		Load:      load,
		Query:     q,
		NeedSetup: statErr != nil && len(cfg.ConfiguredSources()) == 0,
		SaveConfig: func(edit func(*config.Config)) error {
			return config.UpdateFile(configPath(), edit)
		},
	})

	p := tea.NewProgram(app,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(cmd.Context()),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
