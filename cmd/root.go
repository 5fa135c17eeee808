package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/moyu/internal/config"
	"github.com/fakeyudi/moyu/internal/kv"
	"github.com/fakeyudi/moyu/internal/observability"
	"github.com/fakeyudi/moyu/internal/profile"
	"github.com/fakeyudi/moyu/internal/session"
	"github.com/fakeyudi/moyu/internal/settings"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// dataDir is where the store and the log file live.
var dataDir string

// store is opened in PersistentPreRunE and closed in PersistentPostRunE.
var store kv.Store

var rootCmd = &cobra.Command{
	Use:           "moyu",
	Short:         "Track breaks at work and see what they earned you",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		cfg = c

		dataDir, err = cfg.ResolveDataDir()
		if err != nil {
			return fmt.Errorf("resolving data dir: %w", err)
		}
		observability.Setup(cmd.ErrOrStderr(), cfg.LogLevel, "text")

		s, err := kv.Open(cfg.StorageBackend, dataDir)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		store = s

		// First run: no saved salary → run the setup wizard, but only when
		// stdin is an interactive terminal.
		if cmd.Name() != "setup" && !profile.Exists(cmd.Context(), store) {
			if term.IsTerminal(os.Stdin.Fd()) {
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), "  Welcome to moyu! Looks like this is your first time.")
				if err := runSetup(cmd, false); err != nil {
					return err
				}
			}
			// Non-interactive (tests, pipes): continue with defaults.
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store == nil {
			return nil
		}
		err := store.Close()
		store = nil
		return err
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// ledger opens the break history with the configured cap.
func ledger() *session.Ledger {
	return session.NewLedger(store, cfg.MaxSessions)
}

// loadSettings reads the user's preferences from the store.
func loadSettings(ctx context.Context) (settings.Settings, error) {
	s, err := settings.Load(ctx, store)
	if err != nil {
		return settings.Defaults(), fmt.Errorf("loading settings: %w", err)
	}
	return s, nil
}
