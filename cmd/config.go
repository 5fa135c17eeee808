package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/moyu/internal/settings"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read or change settings (" + strings.Join(settings.Keys(), ", ") + ")",
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one setting, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := settings.Keys()
		if len(args) == 1 {
			keys = args
		}
		for _, key := range keys {
			v, err := settings.Get(cmd.Context(), store, key)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cmd.Println(v)
			} else {
				cmd.Printf("%-18s %s\n", key, v)
			}
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting (workApps takes a comma-separated list)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := settings.Set(cmd.Context(), store, args[0], args[1]); err != nil {
			return err
		}
		v, err := settings.Get(cmd.Context(), store, args[0])
		if err != nil {
			return err
		}
		cmd.Printf("%s = %s\n", args[0], v)
		return nil
	},
}

var resetHistory bool

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := settings.Reset(ctx, store); err != nil {
			return err
		}
		cmd.Println("Settings reset to defaults.")
		if resetHistory {
			if err := ledger().Clear(ctx); err != nil {
				return fmt.Errorf("clearing history: %w", err)
			}
			cmd.Println("Break history cleared.")
		}
		return nil
	},
}

func init() {
	configResetCmd.Flags().BoolVar(&resetHistory, "history", false, "also clear the break history and total")
	configCmd.AddCommand(configGetCmd, configSetCmd, configResetCmd)
	rootCmd.AddCommand(configCmd)
}
