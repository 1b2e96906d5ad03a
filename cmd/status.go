package cmd

import (
	"errors"
	"fmt"
	"io"
	"kbsync/internal/logger"
	"kbsync/internal/snapshot"
	"kbsync/internal/syncer"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status " + targetUsage,
	Short: "Show local changes since the last save",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		client := newClient()
		ws, err := newWorkspace(client)
		if err != nil {
			return err
		}

		targets, err := resolveTargets(ctx, cmd, ws, args)
		if err != nil {
			return err
		}

		if len(targets) == 0 {
			fmt.Println("no projects found")
			return nil
		}

		for _, t := range targets {
			if !ws.LocalExists(t) {
				fmt.Printf("%s: no local project, run 'load' to restore it\n", t)
				continue
			}

			p, err := newProject(client, t, nil)
			if err != nil {
				return err
			}

			report, err := p.Status(ctx)
			if errors.Is(err, snapshot.ErrNoBaseline) {
				fmt.Printf("%s: no baseline, run 'save' first\n", t)
				continue
			}
			if err != nil {
				return err
			}

			printStatus(os.Stdout, t.String(), report)
		}

		return nil
	},
}

func printStatus(w io.Writer, name string, r *syncer.StatusReport) {
	base := r.Baseline.ProjectInfo.LastUpdated.Local().Format("2006-01-02 15:04:05")

	if r.Diff.InSync() {
		_, _ = fmt.Fprintf(w, "%s: in sync with last save (%s)\n", name, base)
		return
	}

	_, _ = fmt.Fprintf(w, "%s: changes since last save (%s)\n", name, base)

	files := func(label string, paths []string, c *snapshot.Cache) {
		for _, p := range paths {
			_, _ = fmt.Fprintf(w, "  %-9s %s (%s)\n", label, p, humanize.IBytes(uint64(c.Files[p].Size)))
		}
	}
	dirs := func(label string, paths []string) {
		for _, p := range paths {
			_, _ = fmt.Fprintf(w, "  %-9s %s/\n", label, p)
		}
	}

	files("new", r.Diff.NewFiles, r.Current)
	files("changed", r.Diff.ChangedFiles, r.Current)
	files("removed", r.Diff.RemovedFiles, r.Baseline)
	dirs("new", r.Diff.NewDirs)
	dirs("removed", r.Diff.RemovedDirs)

	_, _ = fmt.Fprintf(w, "  %d file(s), %d dir(s), %s on disk\n",
		r.Current.Statistics.TotalFiles,
		r.Current.Statistics.TotalDirectories,
		humanize.IBytes(uint64(r.Current.Statistics.TotalSize)))
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
