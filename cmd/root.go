package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"channel-publisher/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "channel-publisher",
	Short: "Publish an EPUB library to a Telegram channel",
	Long: `Channel Publisher keeps a Telegram channel in step with a local EPUB library.
It tracks what the channel already carries in a local index, uploads the
books that are missing, and survives rate limits and network failures
without publishing a book twice.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context; uploads stop after the book in flight.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := RootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		// Console encoding at debug level gives readable ISO8601 timestamps.
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("Command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}
