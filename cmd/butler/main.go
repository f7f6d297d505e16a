package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/butler/internal/config"
	"github.com/user/butler/internal/extract"
	"github.com/user/butler/internal/mail"
	"github.com/user/butler/internal/runtime"
	"github.com/user/butler/internal/runtime/tools"
	"github.com/user/butler/internal/state"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "butler",
	Short:        "Conversational email and productivity assistant core",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "config file path (.json, .yaml or .yml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// stores are the file-backed pieces shared by every command that touches
// session data.
type stores struct {
	sessions *state.Sessions
	index    *state.Index
	journal  *state.Journal
	outbox   *state.Outbox
}

func openStores(dataDir string) *stores {
	index := state.NewIndex(dataDir)
	return &stores{
		sessions: state.NewSessions(index),
		index:    index,
		journal:  state.NewJournal(dataDir),
		outbox:   state.NewOutbox(dataDir),
	}
}

// newRegistry registers the mail tools over the built-in sample mailbox.
func newRegistry() *runtime.Registry {
	registry := runtime.NewRegistry()
	for _, tool := range tools.NewService(mail.SampleMailbox(), extract.DefaultRules()).Tools() {
		registry.Register(tool)
	}
	return registry
}
