package cmd

import (
	"context"
	"kbsync/internal/fakedisk"
	"kbsync/internal/logger"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	devAddr  string
	devToken string
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Serve an in-memory cloud disk API for offline use",
	Long: `Serve an in-memory cloud disk API for offline use.

Point kbsync at it with api_url=http://localhost:8090/v1/disk/resources.
Everything stored is lost when the server stops.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		token := devToken
		if token == "" {
			token = cfg.Token
		}

		srv := fakedisk.NewServer(token)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(devAddr)
		}()

		ctx, stop := signalContext()
		defer stop()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			logger.Log.Info("shutting down",
				zap.String("addr", devAddr))
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	devserverCmd.Flags().StringVar(&devAddr, "addr", ":8090", "listen address")
	devserverCmd.Flags().StringVar(&devToken, "token", "", "token clients must send (defaults to the configured token, empty disables the check)")
	rootCmd.AddCommand(devserverCmd)
}
