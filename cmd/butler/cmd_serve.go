package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/butler/internal/config"
	ctxengine "github.com/user/butler/internal/context"
	"github.com/user/butler/internal/delivery"
	"github.com/user/butler/internal/gateway"
	"github.com/user/butler/internal/runtime"
	"github.com/user/butler/internal/scheduler"
	"github.com/user/butler/internal/state"
	"github.com/user/butler/internal/webhook"
	"github.com/user/butler/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the butler daemon",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func pidPath(dataDir string) string {
	return filepath.Join(dataDir, "butler.pid")
}

func writePIDFile(dataDir string) (string, error) {
	path := pidPath(dataDir)
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return path, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	provider := cfg.Provider()
	if err := provider.Validate(); err != nil {
		return fmt.Errorf("llm config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidFile, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidFile)

	st := openStores(cfg.DataDir)
	registry := newRegistry()

	prompt, err := ctxengine.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return fmt.Errorf("create context engine: %w", err)
	}
	engine := gateway.DefaultRetryPolicy().RetryEngine(
		runtime.NewLLMEngine(openai.New(provider), prompt, registry, st.journal),
	)
	rt := runtime.New(engine, registry, st.journal, cfg.MaxToolRounds)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	gw := gateway.New(st.sessions, rt, st.journal, st.outbox, int64(cfg.MaxConcurrent))
	gw.Start(ctx)
	defer gw.Stop()

	var deliver scheduler.Deliverer
	if cfg.Notify.URL != "" {
		deliveries := delivery.NewRegistry()
		deliveries.Register("", delivery.Webhook(nil, cfg.Notify.URL))
		deliver = deliveries
	}
	reminders := state.NewReminderStore(cfg.RemindersPath())
	sched := scheduler.New(reminders, gw, deliver)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           webhook.NewServer(gw, reminders, st.journal, st.outbox),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("butler started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"max_tool_rounds", cfg.MaxToolRounds,
		"llm_model", cfg.LLM.Model,
		"tools", len(registry.Names()),
		"listen", cfg.HTTP.Listen,
		"notify_url", cfg.Notify.URL,
		"pid_file", pidFile,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return waitForSignal(gctx, cancel, cfg)
	})
	return g.Wait()
}

// waitForSignal cancels the daemon on SIGINT or SIGTERM and re-execs the
// binary in place on SIGHUP.
func waitForSignal(ctx context.Context, cancel context.CancelFunc, cfg *config.Config) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				slog.Info("received SIGHUP, restarting")
				execPath, err := os.Executable()
				if err != nil {
					slog.Error("failed to get executable path", "error", err)
					continue
				}
				os.Remove(pidPath(cfg.DataDir))
				if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
					slog.Error("failed to re-exec", "error", err)
					if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
						slog.Error("failed to re-write PID file", "error", writeErr)
					}
				}
				continue
			}
			slog.Info("shutting down", "signal", sig)
			cancel()
			return nil
		}
	}
}
