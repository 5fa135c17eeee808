package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/moyu/internal/observability"
	"github.com/fakeyudi/moyu/internal/orchestrator"
	"github.com/fakeyudi/moyu/internal/session"
)

var breakCmd = &cobra.Command{
	Use:   "break",
	Short: "Start, stop or inspect an explicit break",
}

var breakStartCmd = &cobra.Command{
	Use:       "start <poop|fake-update|fake-coding>",
	Short:     "Begin an explicit break",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"poop", "fake-update", "fake-coding"},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := session.ParseKind(args[0])
		if err != nil {
			return err
		}
		b, err := session.StartBreak(cmd.Context(), store, kind, time.Now())
		if err != nil {
			if errors.Is(err, session.ErrBreakInProgress) {
				active, _ := session.LoadActive(cmd.Context(), store)
				return fmt.Errorf("break already in progress (%s since %s)",
					active.Kind.Label(), active.StartedAt.Format("15:04"))
			}
			return err
		}
		cmd.Printf("%s started at %s. Run 'moyu break stop' when you're back.\n",
			b.Kind.Label(), b.StartedAt.Format("15:04"))
		return nil
	},
}

var breakStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "End the explicit break and collect what it earned",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		active, err := session.LoadActive(ctx, store)
		if err != nil {
			if errors.Is(err, session.ErrNoActiveBreak) {
				return fmt.Errorf("no active break")
			}
			return err
		}

		log := observability.WithFields("command", "break stop")
		o := newOrchestrator(ctx, nil, nil, log)
		res := o.EndBreak(ctx, orchestrator.BreakEnd{
			Kind:      active.Kind,
			StartedAt: active.StartedAt,
			Duration:  time.Since(active.StartedAt),
		})

		// Cleared after recording so a running daemon finds the session.
		if err := session.ClearActive(ctx, store); err != nil {
			return err
		}

		msg := orchestrator.Message(res)
		cmd.Println(msg.Title)
		cmd.Println("  " + msg.Body)
		if !res.Recorded {
			cmd.Println("  (history unavailable, this break was not saved)")
		}
		return nil
	},
}

var breakStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the explicit break in progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		active, err := session.LoadActive(cmd.Context(), store)
		if err != nil {
			if errors.Is(err, session.ErrNoActiveBreak) {
				cmd.Println("no active break")
				return nil
			}
			return err
		}
		cmd.Printf("Break:    %s\n", active.Kind.Label())
		cmd.Printf("Started:  %s\n", active.StartedAt.Format(time.RFC3339))
		cmd.Printf("Duration: %s\n", session.FormatDuration(time.Since(active.StartedAt)))
		return nil
	},
}

func init() {
	breakCmd.AddCommand(breakStartCmd, breakStopCmd, breakStatusCmd)
	rootCmd.AddCommand(breakCmd)
}
