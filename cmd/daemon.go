package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/theirongolddev/adpulse/internal/cli"
	"github.com/theirongolddev/adpulse/internal/config"
	"github.com/theirongolddev/adpulse/internal/daemon"
	"github.com/theirongolddev/adpulse/internal/model"
	"github.com/theirongolddev/adpulse/internal/pipeline"
	"github.com/theirongolddev/adpulse/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagDaemonAddr         string
	flagDaemonInterval     time.Duration
	flagDaemonDetach       bool
	flagDaemonStateFile    string
	flagDaemonLogFile      string
	flagDaemonEventsBuffer int
	flagDaemonChild        bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Poll the report feeds and serve KPIs over HTTP/SSE",
	RunE:  runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon process and API status",
	RunE:  runDaemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

func init() {
	defaultState := filepath.Join(store.DefaultDir(), "adpulsed.json")
	defaultLog := filepath.Join(store.DefaultDir(), "adpulsed.log")

	pf := daemonCmd.PersistentFlags()
	pf.StringVar(&flagDaemonAddr, "addr", "", "HTTP listen address (default from config)")
	pf.DurationVar(&flagDaemonInterval, "interval", 0, "Polling interval (default: refresh interval from config)")
	pf.StringVar(&flagDaemonStateFile, "state-file", defaultState, "Runtime state file (pid, address, sources)")
	pf.StringVar(&flagDaemonLogFile, "log-file", defaultLog, "Log file path for detached mode")
	pf.IntVar(&flagDaemonEventsBuffer, "events-buffer", 0, "Max in-memory events retained (default from config)")

	daemonCmd.Flags().BoolVar(&flagDaemonDetach, "detach", false, "Run daemon as a background process")
	daemonCmd.Flags().BoolVar(&flagDaemonChild, "child", false, "Internal: mark detached child process")
	_ = daemonCmd.Flags().MarkHidden("child")

	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if flagDaemonDetach && flagDaemonChild {
		return errors.New("invalid daemon launch mode")
	}

	if flagDaemonDetach {
		return startDaemonDetached(cmd)
	}

	return runDaemonForeground(cmd.Context())
}

// daemonAddr resolves the listen address: flag, then config.
func daemonAddr() string {
	if flagDaemonAddr != "" {
		return flagDaemonAddr
	}
	return cfg.Daemon.Addr
}

func daemonInterval() time.Duration {
	if flagDaemonInterval > 0 {
		return max(flagDaemonInterval, config.MinRefreshInterval)
	}
	return cfg.RefreshInterval()
}

// daemonLogger logs JSON at ADPULSE_LOG_LEVEL, info by default.
func daemonLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(config.LogLevel("info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	if flagVerbose {
		level = logrus.DebugLevel
	}
	l.SetLevel(level)
	return l
}

// runtimeState describes this process as the daemon it is about to become.
func runtimeState() daemonRuntimeState {
	st := daemonRuntimeState{
		PID:       os.Getpid(),
		Addr:      daemonAddr(),
		StartedAt: time.Now(),
		Interval:  daemonInterval(),
	}
	for _, s := range cfg.ConfiguredSources() {
		st.Sources = append(st.Sources, s.Name)
	}
	return st
}

func startDaemonDetached(c *cobra.Command) error {
	rf := runtimeFile(flagDaemonStateFile)
	if other, ok, err := rf.running(); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("daemon already running (pid %d on %s)", other.PID, other.Addr)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(flagDaemonLogFile), 0o750); err != nil {
		return fmt.Errorf("create daemon log directory: %w", err)
	}
	//nolint:gosec // daemon log path is configured by the local user
	logf, err := os.OpenFile(flagDaemonLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open daemon log file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	want := runtimeState()
	want.LogFile = flagDaemonLogFile
	child := exec.Command(exe, childArgs(c, want)...) //nolint:gosec // re-executes this binary
	child.Stdout = logf
	child.Stderr = logf
	child.Env = os.Environ()
	if err := child.Start(); err != nil {
		return fmt.Errorf("start detached daemon: %w", err)
	}

	exited := make(chan error, 1)
	go func() { exited <- child.Wait() }()
	st, err := awaitStartup(c.Context(), rf, child.Process.Pid, exited)
	if err != nil {
		return fmt.Errorf("%w (see %s)", err, flagDaemonLogFile)
	}

	fmt.Printf("  Started daemon (pid %d), polling %d sources every %s\n",
		st.PID, len(st.Sources), cli.FormatDuration(st.Interval))
	fmt.Printf("  API: http://%s/v1/status\n", st.Addr)
	fmt.Printf("  Log: %s\n", st.LogFile)
	return nil
}

func runDaemonForeground(parent context.Context) error {
	q, err := buildQuery()
	if err != nil {
		return err
	}

	st := runtimeState()
	if flagDaemonChild {
		st.LogFile = flagDaemonLogFile
	}
	rf := runtimeFile(flagDaemonStateFile)
	if err := rf.claim(st); err != nil {
		return err
	}
	defer rf.remove()

	logger := daemonLogger()
	load, closer := newLoader(logger)
	defer func() { _ = closer.Close() }()

	events := flagDaemonEventsBuffer
	if events <= 0 {
		events = cfg.Daemon.EventsBuffer
	}
	svc := daemon.New(daemon.Config{
		Load: func(ctx context.Context) (*pipeline.LoadResult, error) {
			return load(ctx, cfg, nil)
		},
		Query:        q,
		Sources:      st.Sources,
		Interval:     st.Interval,
		Addr:         st.Addr,
		EventsBuffer: events,
		Logger:       logger,
	})

	fmt.Printf("  adpulse daemon listening on http://%s\n", st.Addr)
	fmt.Printf("  Polling %d sources every %s\n", len(st.Sources), cli.FormatDuration(st.Interval))
	fmt.Printf("  Stop with: adpulse daemon stop --state-file %s\n", flagDaemonStateFile)

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runDaemonStatus(c *cobra.Command, _ []string) error {
	proc, ok, err := runtimeFile(flagDaemonStateFile).running()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("  Daemon: not running\n")
		return nil
	}

	fmt.Printf("  Daemon PID: %d, up %s\n", proc.PID, cli.FormatDuration(time.Since(proc.StartedAt).Round(time.Second)))
	fmt.Printf("  Address: http://%s\n", proc.Addr)
	if proc.LogFile != "" {
		fmt.Printf("  Log: %s\n", proc.LogFile)
	}

	st, err := fetchStatus(c.Context(), proc.Addr)
	if err != nil {
		fmt.Printf("  API status: unreachable (%v)\n", err)
		return nil
	}

	if st.LastPollAt.IsZero() {
		fmt.Printf("  Last poll: pending\n")
	} else {
		fmt.Printf("  Last poll: %s\n", st.LastPollAt.Local().Format(time.RFC3339))
	}
	fmt.Printf("  Poll count: %d\n", st.PollCount)
	fmt.Printf("  Records: %s\n", cli.FormatNumber(float64(st.Summary.Records)))
	for _, m := range []model.Metric{model.MetricCost, model.MetricRevenue, model.MetricROAS} {
		fmt.Printf("  %s: %s\n", m.Label(), cli.FormatMetric(m, st.Summary.Summary.Value(m)))
	}
	if l := st.Summary.Latest; l != nil {
		fmt.Printf("  Latest %s %s: %s (%s vs %s)\n",
			strings.ToLower(st.Granularity.Label()), l.Key,
			cli.FormatMetric(st.Metric, l.Current),
			cli.FormatChange(l.PreviousPct), orNA(l.PreviousKey))
	}
	for _, src := range st.Sources {
		fmt.Printf("  Source %s: %s records, %d dropped\n",
			src.Name, cli.FormatNumber(float64(src.Records)), src.Dropped)
	}
	if st.LastError != "" {
		fmt.Printf("  Last error: %s\n", st.LastError)
	}
	return nil
}

func runDaemonStop(c *cobra.Command, _ []string) error {
	rf := runtimeFile(flagDaemonStateFile)
	proc, ok, err := rf.running()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("daemon is not running")
	}

	// Taken before the signal, for the summary line.
	st, statusErr := fetchStatus(c.Context(), proc.Addr)

	p, err := os.FindProcess(proc.PID)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := p.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon process: %w", err)
	}

	ctx, cancel := context.WithTimeout(c.Context(), 8*time.Second)
	defer cancel()
	if err := waitExit(ctx, proc.PID); err != nil {
		return fmt.Errorf("daemon (pid %d) did not exit: %w", proc.PID, err)
	}
	rf.remove()

	fmt.Printf("  Stopped daemon (pid %d) after %s", proc.PID, cli.FormatDuration(time.Since(proc.StartedAt).Round(time.Second)))
	if statusErr == nil {
		fmt.Printf(", %d polls", st.PollCount)
	}
	fmt.Println()
	return nil
}
