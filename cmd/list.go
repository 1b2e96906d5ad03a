package cmd

import (
	"fmt"
	"kbsync/internal/logger"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every project found locally or in the cloud",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		ws, err := newWorkspace(newClient())
		if err != nil {
			return err
		}

		cats, err := ws.Entries(ctx)
		if err != nil {
			return err
		}

		if len(cats) == 0 {
			fmt.Println("no projects yet")
			return nil
		}

		for _, c := range cats {
			fmt.Printf("%s\n", c.Name)
			if len(c.Projects) == 0 {
				fmt.Println("  (empty)")
				continue
			}
			for _, p := range c.Projects {
				fmt.Printf("  - %-30s [%s]\n", p.Project, p.Marks())
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
