package cmd

import (
	"github.com/spf13/cobra"
)

var catchesCmd = &cobra.Command{
	Use:     "catches",
	Aliases: []string{"fish"},
	Short:   "List the fish caught on your breaks",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := catchesText(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Print(text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catchesCmd)
}
