package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/docchat/internal/api"
	"github.com/user/docchat/internal/logx"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

const pidFileName = "docchat.pid"

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, pidFileName)
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	httpServer := &http.Server{
		Addr:              cfg.HTTPListen,
		Handler:           api.NewServer(a.chat),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logx.Info().
		Str("listen", cfg.HTTPListen).
		Str("data_dir", cfg.DataDir).
		Int64("max_concurrent", cfg.MaxConcurrent).
		Str("assistant_id", cfg.Assistant.AssistantID).
		Str("pid_file", pidPath).
		Msg("docchat started")

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	restart := false
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-hup:
			logx.Info().Msg("received SIGHUP, restarting")
			restart = true
		}
		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Run.ChecklistTimeout)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logx.Warn().Err(err).Msg("http shutdown")
		}
		if !a.gateway.Queue.WaitIdle(5 * time.Second) {
			logx.Warn().Msg("turns still running at shutdown")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if restart {
		return reexec(pidPath)
	}
	logx.Info().Msg("shutting down")
	return nil
}

// reexec replaces the process with a fresh copy of itself.
func reexec(pidPath string) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("get executable path: %w", err)
	}
	os.Remove(pidPath)
	return syscall.Exec(execPath, os.Args, os.Environ())
}
