package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/theirongolddev/adpulse/internal/daemon"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// daemonRuntimeState is what a running daemon publishes about itself. The
// file existing with a live PID is what "running" means.
type daemonRuntimeState struct {
	PID       int           `json:"pid"`
	Addr      string        `json:"addr"`
	StartedAt time.Time     `json:"started_at"`
	Interval  time.Duration `json:"interval"`
	Sources   []string      `json:"sources"`
	LogFile   string        `json:"log_file,omitempty"`
}

// runtimeFile is the path of a daemon's state file.
type runtimeFile string

func (f runtimeFile) read() (daemonRuntimeState, error) {
	var st daemonRuntimeState
	//nolint:gosec // state path is configured by the local user
	data, err := os.ReadFile(string(f))
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("reading %s: %w", f, err)
	}
	if st.PID <= 0 {
		return st, fmt.Errorf("reading %s: no pid recorded", f)
	}
	return st, nil
}

// write replaces the file in one rename so readers never see half a state.
func (f runtimeFile) write(st daemonRuntimeState) error {
	if err := os.MkdirAll(filepath.Dir(string(f)), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := string(f) + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, string(f))
}

func (f runtimeFile) remove() { _ = os.Remove(string(f)) }

// running reports the daemon recorded in the file, if it is alive. A file
// left behind by a dead process is removed.
func (f runtimeFile) running() (daemonRuntimeState, bool, error) {
	st, err := f.read()
	if errors.Is(err, os.ErrNotExist) {
		return st, false, nil
	}
	if err != nil {
		return st, false, err
	}
	if !processAlive(st.PID) {
		f.remove()
		return st, false, nil
	}
	return st, true, nil
}

// claim records st unless a live daemon already owns the file.
func (f runtimeFile) claim(st daemonRuntimeState) error {
	other, ok, err := f.running()
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("daemon already running (pid %d on %s)", other.PID, other.Addr)
	}
	return f.write(st)
}

// processAlive sends signal 0 to pid. EPERM still means it exists.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// waitExit polls until pid is gone or ctx ends.
func waitExit(ctx context.Context, pid int) error {
	tick := time.NewTicker(150 * time.Millisecond)
	defer tick.Stop()
	for processAlive(pid) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

// awaitStartup waits for the detached child with the given pid to publish
// its state, failing early if it exits first.
func awaitStartup(ctx context.Context, f runtimeFile, pid int, exited <-chan error) (daemonRuntimeState, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		if st, err := f.read(); err == nil && st.PID == pid {
			return st, nil
		}
		select {
		case err := <-exited:
			if err == nil {
				err = errors.New("exit status 0")
			}
			return daemonRuntimeState{}, fmt.Errorf("daemon exited during startup: %w", err)
		case <-ctx.Done():
			return daemonRuntimeState{}, fmt.Errorf("daemon did not report ready: %w", ctx.Err())
		case <-tick.C:
		}
	}
}

// childArgs rebuilds the command line for the detached child from the flags
// the user set, with the resolved listen address and interval pinned.
func childArgs(c *cobra.Command, st daemonRuntimeState) []string {
	args := []string{
		"daemon", "--child",
		"--state-file", flagDaemonStateFile,
		"--log-file", st.LogFile,
		"--addr", st.Addr,
		"--interval", st.Interval.String(),
	}
	c.Flags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "detach", "child", "state-file", "log-file", "addr", "interval":
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			for _, v := range sv.GetSlice() {
				args = append(args, "--"+f.Name+"="+v)
			}
			return
		}
		args = append(args, "--"+f.Name+"="+f.Value.String())
	})
	return args
}

// fetchStatus asks a running daemon for its /v1/status.
func fetchStatus(ctx context.Context, addr string) (daemon.Status, error) {
	var st daemon.Status
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/v1/status", nil)
	if err != nil {
		return st, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return st, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("malformed response: %w", err)
	}
	return st, nil
}
