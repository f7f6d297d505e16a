package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/butler/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Walk through the model endpoint, HTTP listener and notifications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ask := asker{in: bufio.NewScanner(os.Stdin)}

		fmt.Println("butler setup (Enter keeps the value in brackets)")

		cfg.LLM.BaseURL = ask.text("Model endpoint", cfg.LLM.BaseURL)
		cfg.LLM.APIKey = ask.secret("API key", cfg.LLM.APIKey)
		cfg.LLM.Model = ask.text("Model", cfg.LLM.Model)
		cfg.LLM.MaxTokens = ask.number("Max output tokens", cfg.LLM.MaxTokens)
		cfg.LLM.MaxContextTokens = ask.number("Context window (tokens)", cfg.LLM.MaxContextTokens)
		cfg.HTTP.Listen = ask.text("HTTP listen address", cfg.HTTP.Listen)
		cfg.Notify.URL = ask.text("Reminder webhook URL (blank to disable)", cfg.Notify.URL)

		if _, _, err := net.SplitHostPort(cfg.HTTP.Listen); err != nil {
			return fmt.Errorf("listen address %q: %w", cfg.HTTP.Listen, err)
		}
		if err := cfg.Provider().Validate(); err != nil {
			return err
		}
		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println("Saved", cfgPath)
		return nil
	},
}

// asker reads one answer per line; an empty line keeps the current value.
type asker struct {
	in *bufio.Scanner
}

func (a asker) read(label, shown string) string {
	if shown != "" {
		fmt.Printf("%s [%s]: ", label, shown)
	} else {
		fmt.Printf("%s: ", label)
	}
	if !a.in.Scan() {
		return ""
	}
	return strings.TrimSpace(a.in.Text())
}

func (a asker) text(label, cur string) string {
	if v := a.read(label, cur); v != "" {
		return v
	}
	return cur
}

func (a asker) secret(label, cur string) string {
	if v := a.read(label, config.Mask(cur)); v != "" {
		return v
	}
	return cur
}

func (a asker) number(label string, cur int) int {
	v := a.read(label, strconv.Itoa(cur))
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	if v != "" {
		fmt.Printf("  %q is not a positive number, keeping %d\n", v, cur)
	}
	return cur
}
