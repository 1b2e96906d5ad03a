package cmd

import (
	"fmt"
	"kbsync/internal/logger"
	"kbsync/internal/model"
	"kbsync/internal/repository"

	"github.com/spf13/cobra"
)

var (
	historyN      int
	historyFailed bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent sync actions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		repo := repository.NewHistoryRepository()

		var (
			histories []model.History
			err       error
		)
		if historyFailed {
			histories, err = repo.GetFailed(historyN)
		} else {
			histories, err = repo.GetRecent(historyN)
		}
		if err != nil {
			return err
		}

		if len(histories) == 0 {
			fmt.Println("no history yet")
			return nil
		}

		for _, h := range histories {
			status := "✓"
			if h.Status == model.StatusFailed {
				status = "✗"
			}

			fmt.Printf("%s [%s] %-16s %s/%s\n",
				status,
				h.SyncedAt.Format("2006-01-02 15:04:05"),
				h.Action,
				h.Project,
				h.Path,
			)
			if h.ErrMsg != "" {
				fmt.Printf("    %s\n", h.ErrMsg)
			}
		}

		stats, err := repo.GetStats()
		if err != nil {
			return err
		}
		fmt.Printf("\n%d action(s) recorded, %d failed\n", stats.Total, stats.Failed)

		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyN, "n", "n", 20, "number of history entries to show")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "show failed actions only")
	rootCmd.AddCommand(historyCmd)
}
