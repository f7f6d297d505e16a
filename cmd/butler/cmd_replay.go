package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/user/butler/internal/gateway"
	"github.com/user/butler/internal/runtime"
	"github.com/user/butler/internal/types"
)

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Bool("persist", false, "keep sessions in the configured data dir instead of a scratch dir")
}

// replayLine is one proposal in a replay script.
type replayLine struct {
	SessionKey string            `json:"session_key"`
	Proposal   *runtime.Proposal `json:"proposal"`
}

var replayCmd = &cobra.Command{
	Use:   "replay <file.jsonl|->",
	Short: "Run scripted proposals through the core and print one reply per line",
	Long: `Each input line is a JSON object {"session_key": "...", "proposal": {...}}.
A proposal either calls a tool ({"tool": "read_emails", "args": {...}}) or
advances an intent ({"intent": "compose_send", "slots": {...}, "approve": true}).
Replies are printed one per line: the action JSON when one was emitted,
otherwise the reply text as a JSON string.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		var in io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		dataDir := cfg.DataDir
		if persist, _ := cmd.Flags().GetBool("persist"); !persist {
			dir, err := os.MkdirTemp("", "butler-replay-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(dir)
			dataDir = dir
		}

		st := openStores(dataDir)
		rt := runtime.New(nil, newRegistry(), st.journal, cfg.MaxToolRounds)
		gw := gateway.New(st.sessions, rt, st.journal, st.outbox)

		ctx := context.Background()
		gw.Start(ctx)
		defer gw.Stop()

		return replay(ctx, gw, in, os.Stdout)
	},
}

func replay(ctx context.Context, gw *gateway.Gateway, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line replayLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if line.SessionKey == "" || line.Proposal == nil {
			return fmt.Errorf("line %d: session_key and proposal are required", lineNo)
		}

		reply, err := gw.Advance(ctx, types.SessionKey(line.SessionKey), *line.Proposal)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if reply.Emission != nil {
			fmt.Fprintln(out, reply.Emission.Text())
			continue
		}
		if err := enc.Encode(reply.Text); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	return scanner.Err()
}
