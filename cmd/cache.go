package cmd

import (
	"fmt"
	"time"

	"github.com/theirongolddev/adpulse/internal/cli"
	"github.com/theirongolddev/adpulse/internal/store"

	"github.com/spf13/cobra"
)

var flagCacheFetches int

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Show cached feeds and recent fetches",
	RunE:  runCache,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached feed and the fetch log",
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.Flags().IntVarP(&flagCacheFetches, "fetches", "n", 10, "Number of recent fetches to show")
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCache(_ *cobra.Command, _ []string) error {
	c, err := store.Open(store.DefaultPath())
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer func() { _ = c.Close() }()

	feeds, err := c.List()
	if err != nil {
		return fmt.Errorf("listing feeds: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Cache: %s\n\n", store.DefaultPath())

	if len(feeds) == 0 {
		fmt.Println("  No cached feeds.")
	} else {
		table := cli.Table{
			Title:   "Feeds",
			Headers: []string{"URL", "Size", "Fetched", "Checked", "ETag"},
			Left:    []int{0, 4},
		}
		for _, f := range feeds {
			table.Rows = append(table.Rows, []string{
				truncate(f.URL, 48),
				cli.FormatCompact(float64(f.SizeBytes)) + "B",
				age(f.FetchedAt),
				age(f.CheckedAt),
				truncate(f.ETag, 16),
			})
		}
		fmt.Print(cli.RenderTable(table))
	}

	fetches, err := c.RecentFetches(flagCacheFetches)
	if err != nil {
		return fmt.Errorf("reading fetch log: %w", err)
	}
	if len(fetches) == 0 {
		return nil
	}

	table := cli.Table{
		Title:   "Recent fetches",
		Headers: []string{"When", "URL", "Status", "Size", "Time", "Error"},
		Left:    []int{0, 1, 5},
	}
	for _, f := range fetches {
		status := fmt.Sprintf("%d", f.Status)
		if f.Status == 0 {
			status = "-"
		}
		table.Rows = append(table.Rows, []string{
			age(f.At),
			truncate(f.URL, 40),
			status,
			cli.FormatCompact(float64(f.SizeBytes)) + "B",
			cli.FormatDuration(f.Duration),
			truncate(f.Err, 30),
		})
	}
	fmt.Println()
	fmt.Print(cli.RenderTable(table))
	return nil
}

func runCacheClear(_ *cobra.Command, _ []string) error {
	c, err := store.Open(store.DefaultPath())
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer func() { _ = c.Close() }()

	n, err := c.FeedCount()
	if err != nil {
		return err
	}
	if err := c.Clear(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	fmt.Printf("  Removed %d cached feeds\n", n)
	return nil
}

func age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return cli.FormatDuration(time.Since(t).Round(time.Second)) + " ago"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
