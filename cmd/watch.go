package cmd

import (
	"context"
	"fmt"
	"kbsync/internal/logger"
	"kbsync/internal/model"
	"kbsync/internal/pipeline"
	"kbsync/internal/repository"
	"kbsync/internal/syncer"
	"kbsync/internal/syncer/local"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const watchBuffer = 256

var watchCmd = &cobra.Command{
	Use:   "watch [<category> <project>]",
	Short: "Save a project every time its files settle after a change",
	Args:  cobra.MaximumNArgs(2),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
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
	if len(targets) != 1 {
		return fmt.Errorf("watch needs exactly one project, got %d", len(targets))
	}

	repo := repository.NewHistoryRepository()

	// Every save is its own run in the history.
	var runID string
	sink := syncer.Tee(syncer.LogSink(logger.Log), func(e syncer.Event) {
		historySink(repo, runID)(e)
	})

	p, err := newProject(client, targets[0], sink)
	if err != nil {
		return err
	}

	save := func() {
		runID = uuid.NewString()

		report, err := p.Save(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Log.Error("save failed",
					zap.String("project", p.String()),
					zap.Error(err))
			}
			return
		}

		logger.Log.Info("saved",
			zap.String("project", p.String()),
			zap.Int("actions", report.Total()),
			zap.Int("failed", report.Failed()))
	}

	save()
	if ctx.Err() != nil {
		return nil
	}

	filter := pipeline.NewFilter(afero.NewOsFs(), p.LocalRoot())
	w, err := local.New(watchBuffer, filter.Skip)
	if err != nil {
		return err
	}
	if err := w.Watch(p.LocalRoot()); err != nil {
		return err
	}
	defer w.Stop()

	batches := pipeline.Debounce(filter.Run(w.Events()), cfg.WatchDelay, clockwork.NewRealClock())

	logger.Log.Info("kbsync watching",
		zap.String("project", p.String()),
		zap.Duration("delay", cfg.WatchDelay))

	return watchLoop(ctx, batches, save)
}

func watchLoop(ctx context.Context, batches <-chan []model.FileEvent, save func()) error {
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("shutting down")
			return nil

		case batch, ok := <-batches:
			if !ok {
				return nil
			}

			logger.Log.Info("changes detected",
				zap.Int("events", len(batch)))
			save()
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
