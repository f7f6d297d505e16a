package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/butler/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd, sessionActionsCmd)
	sessionShowCmd.Flags().Int("limit", 50, "number of most recent events to show")
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st := openStores(loadConfig().DataDir)

		ctx := context.Background()
		list, err := st.index.List(ctx)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(list) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKEY\tEVENTS\tCREATED\tUPDATED")
		for _, s := range list {
			count, err := st.journal.Count(ctx, s.SessionID)
			if err != nil {
				count = 0
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				s.SessionID,
				s.SessionKey,
				count,
				s.CreatedAt.Format("2006-01-02 15:04:05"),
				s.UpdatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a session's journal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		st := openStores(loadConfig().DataDir)

		ctx := context.Background()
		id := types.SessionID(args[0])
		if _, err := st.index.Get(ctx, id); err != nil {
			return err
		}
		events, err := st.journal.Tail(ctx, id, limit)
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tAT\tTYPE\tPAYLOAD")
		for _, e := range events {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.Seq, e.At.Format("15:04:05"), e.Type, e.Payload)
		}
		return w.Flush()
	},
}

var sessionActionsCmd = &cobra.Command{
	Use:   "actions <id>",
	Short: "Print the actions a session emitted, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st := openStores(loadConfig().DataDir)
		ems, err := st.outbox.List(context.Background(), types.SessionID(args[0]))
		if err != nil {
			return fmt.Errorf("list actions: %w", err)
		}
		if len(ems) == 0 {
			fmt.Println("No actions emitted.")
			return nil
		}
		for _, em := range ems {
			fmt.Fprintln(os.Stdout, em.Text())
		}
		return nil
	},
}
