package cmd

import (
	"context"
	"errors"
	"fmt"
	"kbsync/internal/auth"
	"kbsync/internal/config"
	"kbsync/internal/db"
	"kbsync/internal/disk"
	"kbsync/internal/logger"
	"kbsync/internal/metrics"
	"kbsync/internal/repository"
	"kbsync/internal/syncer"
	"kbsync/internal/workspace"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg   *config.Config
	debug bool
)

var rootCmd = &cobra.Command{
	Use:          "kbsync",
	Short:        "Mirror a knowledge base between a local directory and cloud disk",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		logger.Init(debug)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		if cfg.Token == "" {
			if token, err := auth.LoadToken(); err == nil {
				cfg.Token = token
			}
		}

		dbCmds := map[string]bool{
			"save": true, "load": true,
			"watch": true, "history": true,
		}
		if dbCmds[cmd.Name()] {
			if err := db.Init(cfg.DBPath); err != nil {
				return err
			}
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil || cfg.MetricsFile == "" {
			return nil
		}

		return metrics.WriteTextfile(cfg.MetricsFile)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newClient() *disk.Client {
	return disk.New(disk.Config{
		APIURL:    cfg.APIURL,
		Token:     cfg.Token,
		PageLimit: cfg.PageLimit,
		Logger:    logger.Log,
	})
}

func newWorkspace(client *disk.Client) (*workspace.Workspace, error) {
	return workspace.New(afero.NewOsFs(), cfg.BasePath, disk.ParsePath(cfg.CloudBase), client)
}

func newProject(client *disk.Client, t workspace.Target, sink syncer.Sink) (*syncer.Project, error) {
	return syncer.NewProject(cfg.BasePath, disk.ParsePath(cfg.CloudBase), t.Category, t.Project, client, syncer.Options{
		Threads: cfg.Threads,
		Sink:    sink,
		Logger:  logger.Log,
	})
}

// resolveTargets picks the projects a command applies to from the working
// directory and its arguments.
func resolveTargets(ctx context.Context, cmd *cobra.Command, ws *workspace.Workspace, args []string) ([]workspace.Target, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	targets, err := ws.Resolve(ctx, cwd, args)
	if errors.Is(err, workspace.ErrUsage) {
		return nil, fmt.Errorf("%w for '%s'\n\n%s", err, cmd.Name(), cmd.UsageString())
	}
	return targets, err
}

// historySink stores every finished action of one run.
func historySink(repo *repository.HistoryRepository, runID string) syncer.Sink {
	return func(e syncer.Event) {
		if e.Kind != syncer.EventAction {
			return
		}

		err := repo.Save(repository.Record{
			RunID:   runID,
			Project: e.Project,
			Action:  string(e.Action),
			Path:    e.Path,
			Err:     e.Err,
		})
		if err != nil {
			logger.Log.Warn("failed to record history",
				zap.String("path", e.Path),
				zap.Error(err))
		}
	}
}
