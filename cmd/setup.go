package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/moyu/internal/detector"
	"github.com/fakeyudi/moyu/internal/profile"
	"github.com/fakeyudi/moyu/internal/settings"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure salary, hours and work apps (re-run anytime to edit)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetup(cmd, true)
	},
}

// runSetup runs the interactive wizard against the open store.
// If edit is false, a welcome message is shown.
func runSetup(cmd *cobra.Command, edit bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if !edit {
		fmt.Fprintln(out, "  Let's get you set up.")
	}

	// Existing settings are the defaults in edit mode.
	existing, err := loadSettings(ctx)
	if err != nil {
		return err
	}

	// Running apps are only hints; a failed query just means no hints.
	suggestions, _ := detector.ForPlatform(nil).RunningApps(ctx)

	s, err := profile.RunSetup(cmd.InOrStdin(), out, existing, suggestions)
	if err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}
	if err := settings.Save(ctx, store, s); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	fmt.Fprintln(out, "  ✓ Settings saved.")
	fmt.Fprintln(out, "  Setup complete. Run 'moyu run' to start the timer.")
	fmt.Fprintln(out)
	return nil
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
