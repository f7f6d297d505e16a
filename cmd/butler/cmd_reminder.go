package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/butler/internal/gateway"
	"github.com/user/butler/internal/runtime"
	"github.com/user/butler/internal/scheduler"
	"github.com/user/butler/internal/state"
)

func init() {
	rootCmd.AddCommand(reminderCmd)
	reminderCmd.AddCommand(reminderAddCmd, reminderListCmd, reminderRemoveCmd,
		reminderEnableCmd, reminderDisableCmd, reminderRunCmd)

	reminderAddCmd.Flags().String("name", "", "reminder name (required)")
	reminderAddCmd.Flags().String("schedule", "", "cron schedule expression, e.g. \"0 9 * * 1-5\"")
	reminderAddCmd.Flags().String("session-key", "", "session the reminder reports into (required)")
	_ = reminderAddCmd.MarkFlagRequired("name")
	_ = reminderAddCmd.MarkFlagRequired("session-key")
}

func reminderStore() *state.ReminderStore {
	return state.NewReminderStore(loadConfig().RemindersPath())
}

var reminderCmd = &cobra.Command{
	Use:   "reminder",
	Short: "Manage unanswered-mail reminders",
}

var reminderAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a reminder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		schedule, _ := cmd.Flags().GetString("schedule")
		sessionKey, _ := cmd.Flags().GetString("session-key")

		if schedule != "" {
			if err := scheduler.ValidateSchedule(schedule); err != nil {
				return err
			}
		}
		r := &state.Reminder{
			Name:       name,
			Schedule:   schedule,
			SessionKey: sessionKey,
			Enabled:    true,
		}
		if err := reminderStore().Add(r); err != nil {
			return fmt.Errorf("add reminder: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Reminder %q added.\n", name)
		return nil
	},
}

var reminderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all reminders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reminders, err := reminderStore().List()
		if err != nil {
			return fmt.Errorf("list reminders: %w", err)
		}
		if len(reminders) == 0 {
			fmt.Println("No reminders configured.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSCHEDULE\tENABLED\tSESSION KEY")
		for _, r := range reminders {
			fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", r.Name, r.Schedule, r.Enabled, r.SessionKey)
		}
		return w.Flush()
	},
}

var reminderRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := reminderStore().Remove(args[0]); err != nil {
			return fmt.Errorf("remove reminder: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Reminder %q removed.\n", args[0])
		return nil
	},
}

var reminderEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := reminderStore().SetEnabled(args[0], true); err != nil {
			return fmt.Errorf("enable reminder: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Reminder %q enabled.\n", args[0])
		return nil
	},
}

var reminderDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := reminderStore().SetEnabled(args[0], false); err != nil {
			return fmt.Errorf("disable reminder: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Reminder %q disabled.\n", args[0])
		return nil
	},
}

var reminderRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a reminder once and print its report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		r, err := state.NewReminderStore(cfg.RemindersPath()).Get(args[0])
		if err != nil {
			return err
		}

		st := openStores(cfg.DataDir)
		rt := runtime.New(nil, newRegistry(), st.journal, cfg.MaxToolRounds)
		gw := gateway.New(st.sessions, rt, st.journal, st.outbox)

		ctx := context.Background()
		gw.Start(ctx)
		defer gw.Stop()

		reply, err := scheduler.Fire(ctx, gw, r)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, reply.Body())
		return nil
	},
}
