// Package cmd implements the adpulse CLI commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/theirongolddev/adpulse/internal/cli"
	"github.com/theirongolddev/adpulse/internal/config"
	"github.com/theirongolddev/adpulse/internal/model"
	"github.com/theirongolddev/adpulse/internal/pipeline"
	"github.com/theirongolddev/adpulse/internal/sheets"
	"github.com/theirongolddev/adpulse/internal/source"
	"github.com/theirongolddev/adpulse/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagGranularity  string
	flagDimension    string
	flagMetric       string
	flagFrom         string
	flagTo           string
	flagAccounts     []string
	flagLanguages    []string
	flagCampaignType []string
	flagDomains      []string
	flagSources      []string
	flagNoCache      bool
	flagQuiet        bool
	flagVerbose      bool
	flagConfigPath   string
)

// cfg is the effective configuration: file, then .env and environment.
var cfg config.Config

// log is the CLI logger. Commands that own the terminal replace its output.
var log = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "adpulse",
	Short: "Ad performance analytics for published Google and Microsoft Ads reports",
	Long: "Fetch ad performance reports from published spreadsheets, then summarize,\n" +
		"compare periods, break down by dimension, and export.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runSummary,
}

// Execute is the main entry point called from main.go.
// An interrupt cancels in-flight fetches.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagGranularity, "granularity", "g", "", "Time bucket: day, week, month, quarter, year")
	pf.StringVar(&flagDimension, "dimension", "", "Breakdown dimension: account, language, campaign_type, domain")
	pf.StringVar(&flagMetric, "metric", "", "Comparison metric, e.g. revenue, cost, roas")
	pf.StringVar(&flagFrom, "from", "", "First date to include (inclusive)")
	pf.StringVar(&flagTo, "to", "", "Last date to include (inclusive)")
	pf.StringSliceVar(&flagAccounts, "account", nil, "Only these accounts (repeatable)")
	pf.StringSliceVar(&flagLanguages, "language", nil, "Only these languages (repeatable)")
	pf.StringSliceVar(&flagCampaignType, "campaign-type", nil, "Only these campaign types (repeatable)")
	pf.StringSliceVar(&flagDomains, "domain", nil, "Only these domains (repeatable)")
	pf.StringSliceVar(&flagSources, "source", nil, "Only load these configured sources")
	pf.BoolVar(&flagNoCache, "no-cache", false, "Skip the SQLite fetch cache")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	pf.BoolVar(&flagVerbose, "verbose", false, "Log debug output to stderr")
	pf.StringVar(&flagConfigPath, "config", "", "Config file (default "+config.ConfigPath()+")")
}

// setup configures logging, loads the config and applies the locale.
func setup(_ *cobra.Command, _ []string) error {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetLevel(logrus.WarnLevel)
	if flagVerbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if err := config.LoadEnv(); err != nil {
		log.WithError(err).Warn("ignoring .env")
	}

	path := flagConfigPath
	if path == "" {
		path = config.ConfigPath()
	}
	loaded, err := config.LoadFrom(path)
	if err != nil {
		return err
	}
	config.ApplyEnv(&loaded)
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	cfg = loaded

	if err := cli.SetLocale(cfg.General.Locale); err != nil {
		log.WithError(err).Warn("unknown locale, using nl")
	}
	return nil
}

// configPath is the file setup and the dashboard write back to.
func configPath() string {
	if flagConfigPath != "" {
		return flagConfigPath
	}
	return config.ConfigPath()
}

// buildQuery starts from the configured defaults and applies the flags.
func buildQuery() (model.Query, error) {
	var q model.Query

	gran := cfg.General.DefaultGranularity
	if flagGranularity != "" {
		gran = flagGranularity
	}
	dim := cfg.General.DefaultDimension
	if flagDimension != "" {
		dim = flagDimension
	}
	metric := cfg.General.DefaultMetric
	if flagMetric != "" {
		metric = flagMetric
	}

	var err error
	if gran != "" {
		if q.Granularity, err = model.ParseGranularity(gran); err != nil {
			return q, err
		}
	}
	if dim != "" {
		if q.Dimension, err = model.ParseDimension(dim); err != nil {
			return q, err
		}
	}
	if metric != "" {
		if q.Metric, err = model.ParseMetric(metric); err != nil {
			return q, err
		}
	}

	if q.Range.Start, err = parseFlagDate("--from", flagFrom); err != nil {
		return q, err
	}
	if q.Range.End, err = parseFlagDate("--to", flagTo); err != nil {
		return q, err
	}
	if !q.Range.Start.IsZero() && !q.Range.End.IsZero() && q.Range.End.Before(q.Range.Start) {
		return q, fmt.Errorf("--to %s is before --from %s", flagTo, flagFrom)
	}

	q.Filters = model.Filters{
		Accounts:      flagAccounts,
		Languages:     flagLanguages,
		CampaignTypes: flagCampaignType,
		Domains:       flagDomains,
	}
	return pipeline.Normalize(q), nil
}

func parseFlagDate(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, ok := source.ParseDate(v)
	if !ok {
		return time.Time{}, fmt.Errorf("%s: %q is not a valid date", name, v)
	}
	return t, nil
}

// openCache opens the fetch cache unless --no-cache is set. A cache that
// cannot be opened is skipped with a warning.
func openCache(logger logrus.FieldLogger) *store.Cache {
	if flagNoCache {
		return nil
	}
	c, err := store.Open(store.DefaultPath())
	if err != nil {
		logger.WithError(err).Warn("fetch cache unavailable, continuing without it")
		return nil
	}
	return c
}

// newLoader returns a load function bound to the current flags. The
// returned closer releases the cache.
func newLoader(logger logrus.FieldLogger) (load func(context.Context, config.Config, pipeline.ProgressFunc) (*pipeline.LoadResult, error), closer io.Closer) {
	cache := openCache(logger)

	load = func(ctx context.Context, c config.Config, progress pipeline.ProgressFunc) (*pipeline.LoadResult, error) {
		opts := []sheets.Option{
			sheets.WithTimeout(c.RequestTimeout()),
			sheets.WithLogger(logger),
		}
		if cache != nil {
			opts = append(opts, sheets.WithCache(cache))
		}
		client := sheets.NewClient(opts...)

		sources, err := pipeline.SourcesFromConfig(c.Sources, flagSources)
		if err != nil {
			return nil, err
		}
		if len(sources) == 0 {
			return nil, fmt.Errorf("no sources configured; run `adpulse setup` or set %s", config.EnvGoogleURL)
		}
		return pipeline.Load(ctx, client, sources, pipeline.LoadOptions{
			Brands:   c.Brands,
			Logger:   logger,
			Progress: progress,
		})
	}

	closer = closerFunc(func() error {
		if cache == nil {
			return nil
		}
		return cache.Close()
	})
	return load, closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// loadData is the shared data loading path used by the one-shot commands.
func loadData(ctx context.Context) (*pipeline.LoadResult, error) {
	load, closer := newLoader(log)
	defer func() { _ = closer.Close() }()

	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Fetching sources...\n")
	}
	progress := func(current, total int) {
		if flagQuiet {
			return
		}
		fmt.Fprintf(os.Stderr, "\r  Loaded [%d/%d]", current, total)
		if current == total {
			fmt.Fprintln(os.Stderr)
		}
	}

	result, err := load(ctx, cfg, progress)
	if err != nil {
		return nil, err
	}
	if !flagQuiet && result.Dropped > 0 {
		fmt.Fprintf(os.Stderr, "  %d rows dropped (missing campaign or date)\n", result.Dropped)
	}
	return result, nil
}

// loadAndDerive loads every source and derives the flag-selected view.
func loadAndDerive(ctx context.Context) (*pipeline.LoadResult, pipeline.Derived, error) {
	q, err := buildQuery()
	if err != nil {
		return nil, pipeline.Derived{}, err
	}
	result, err := loadData(ctx)
	if err != nil {
		return nil, pipeline.Derived{}, err
	}
	return result, pipeline.DeriveAll(result.Records, q), nil
}

// describeQuery is the one-line title suffix for a view.
func describeQuery(q model.Query) string {
	s := q.Granularity.Label() + " · " + q.Metric.Label()
	if !q.Range.IsZero() {
		from, to := "…", "…"
		if !q.Range.Start.IsZero() {
			from = cli.FormatDate(q.Range.Start)
		}
		if !q.Range.End.IsZero() {
			to = cli.FormatDate(q.Range.End)
		}
		s += " · " + from + " – " + to
	}
	if !q.Filters.IsEmpty() {
		s += " · filtered"
	}
	return s
}
