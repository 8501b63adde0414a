package cmd

import (
	"context"
	"fmt"

	"channel-publisher/core/loader"
	"channel-publisher/core/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "channel-publisher/docs/swagger"
)

// @title Channel Publisher API
// @version 1.0
// @description Publishes a local EPUB library to a Telegram channel and keeps the channel index in sync.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the HTTP server",
	Long:  `Starts the HTTP server with the publishing endpoints and the periodic channel sync.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		logg := a.logger

		app := server.New(a.cfg.Server, logg)

		mgr := loader.NewManager(logg)
		mgr.Register(a.feature)
		if err := mgr.LoadAll(app); err != nil {
			return fmt.Errorf("failed to load features: %w", err)
		}

		syncCtx, stopSync := context.WithCancel(ctx)
		defer stopSync()
		go a.service.RunPeriodicSync(syncCtx, a.cfg.Sync.Interval)

		listenErr := make(chan error, 1)
		go func() {
			logg.Info("Starting server", zap.String("address", a.cfg.Server.Address()))
			listenErr <- app.Listen(a.cfg.Server.Address())
		}()

		select {
		case err := <-listenErr:
			return fmt.Errorf("server failed: %w", err)
		case <-ctx.Done():
		}

		logg.Info("Shutting down server...", zap.Duration("timeout", a.cfg.Server.ShutdownTimeout))
		stopSync()
		if err := app.ShutdownWithTimeout(a.cfg.Server.ShutdownTimeout); err != nil {
			logg.Warn("Server shutdown incomplete", zap.Error(err))
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
