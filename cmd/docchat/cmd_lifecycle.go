package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var errNotRunning = errors.New("docchat server is not running")

func init() {
	rootCmd.AddCommand(
		signalCommand("stop", "Stop the running server", syscall.SIGTERM, "stopping"),
		signalCommand("restart", "Restart the running server in place", syscall.SIGHUP, "restarting"),
	)
}

// runningServer returns the process recorded in dataDir's PID file. A PID
// file whose process is gone is removed.
func runningServer(dataDir string) (*os.Process, error) {
	path := filepath.Join(dataDir, pidFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no %s in %s", errNotRunning, pidFileName, dataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return nil, fmt.Errorf("corrupt PID file %s: %q", path, strings.TrimSpace(string(data)))
	}

	proc, err := os.FindProcess(pid)
	if err == nil {
		err = proc.Signal(syscall.Signal(0))
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("%w: stale PID %d removed", errNotRunning, pid)
	}
	return proc, nil
}

func signalCommand(use, short string, sig syscall.Signal, verb string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			proc, err := runningServer(loadConfig().DataDir)
			if err != nil {
				return err
			}
			if err := proc.Signal(sig); err != nil {
				return fmt.Errorf("send %s to %d: %w", sig, proc.Pid, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "docchat (PID %d) %s\n", proc.Pid, verb)
			return nil
		},
	}
}
