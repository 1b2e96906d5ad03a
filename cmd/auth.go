package cmd

import (
	"kbsync/internal/auth"

	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Store the cloud disk API token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return auth.Authorize()
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
}
