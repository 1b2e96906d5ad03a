package cmd

import (
	"context"
	"fmt"
	"kbsync/internal/logger"
	"kbsync/internal/repository"
	"kbsync/internal/syncer"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const targetUsage = "[all all | <category> all | <category> <project>]"

var saveCmd = &cobra.Command{
	Use:   "save " + targetUsage,
	Short: "Upload local changes, making the cloud match local",
	Long: `Upload local changes, making the cloud match local.

Inside a project directory no arguments are needed. Inside a category
directory pass 'all' or a project name.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, args, (*syncer.Project).Save)
	},
}

var loadCmd = &cobra.Command{
	Use:   "load " + targetUsage,
	Short: "Download cloud changes, making local match the cloud",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, args, (*syncer.Project).Load)
	},
}

type syncOp func(*syncer.Project, context.Context) (*syncer.Report, error)

func runSync(cmd *cobra.Command, args []string, op syncOp) error {
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

	runID := uuid.NewString()
	sink := syncer.Tee(syncer.LogSink(logger.Log), historySink(repository.NewHistoryRepository(), runID))

	var failed int
	for _, t := range targets {
		if cmd.Name() == "save" && !ws.LocalExists(t) {
			fmt.Printf("skipping save for %s: no local project, use 'load'\n", t)
			continue
		}

		p, err := newProject(client, t, sink)
		if err != nil {
			return err
		}

		report, err := op(p, ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			logger.Log.Error(cmd.Name()+" failed",
				zap.String("project", t.String()),
				zap.Error(err))
			failed++
			continue
		}

		fmt.Printf("%s %s: %d action(s), %d failed\n", cmd.Name(), t, report.Total(), report.Failed())
		if report.Failed() > 0 {
			failed++
		}
	}

	logger.Log.Debug("run finished", zap.String("run", runID))

	if failed > 0 {
		return fmt.Errorf("%d project(s) did not %s cleanly, see 'kbsync history --failed'", failed, cmd.Name())
	}
	return nil
}

func init() {
	rootCmd.AddCommand(saveCmd, loadCmd)
}
