package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/butler/internal/config"
)

func init() {
	rootCmd.AddCommand(stopCmd, restartCmd, statusCmd)
}

var errNotRunning = errors.New("butler is not running")

// findDaemon returns the process named by the PID file if it is alive.
func findDaemon(cfg *config.Config) (*os.Process, error) {
	data, err := os.ReadFile(pidPath(cfg.DataDir))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w (no PID file)", errNotRunning)
	}
	if err != nil {
		return nil, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid PID file content: %w", err)
	}

	// FindProcess always succeeds on unix; signal 0 tells whether it exists.
	proc, _ := os.FindProcess(pid)
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return nil, fmt.Errorf("%w (stale PID %d)", errNotRunning, pid)
	}
	return proc, nil
}

func signalDaemon(sig syscall.Signal, verb string) error {
	proc, err := findDaemon(loadConfig())
	if err != nil {
		return err
	}
	if err := proc.Signal(sig); err != nil {
		return fmt.Errorf("send %v to %d: %w", sig, proc.Pid, err)
	}
	fmt.Fprintf(os.Stdout, "%s butler (PID %d).\n", verb, proc.Pid)
	return nil
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return signalDaemon(syscall.SIGTERM, "Stopping")
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Re-exec the running daemon with a fresh config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return signalDaemon(syscall.SIGHUP, "Restarting")
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the daemon is running and answering HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		proc, err := findDaemon(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "butler running (PID %d)\n", proc.Pid)

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
		defer cancel()
		if err := checkHealth(ctx, cfg.HTTP.Listen); err != nil {
			fmt.Fprintf(os.Stdout, "http %s: %v\n", cfg.HTTP.Listen, err)
			return nil
		}
		fmt.Fprintf(os.Stdout, "http %s: ok\n", cfg.HTTP.Listen)
		return nil
	},
}

func checkHealth(ctx context.Context, listen string) error {
	if strings.HasPrefix(listen, ":") {
		listen = "127.0.0.1" + listen
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+listen+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %s", resp.Status)
	}
	return nil
}
