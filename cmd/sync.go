package cmd

import (
	"channel-publisher/feature/channelsync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the channel index from the channel history",
	Long: `Reads the channel history and updates the local channel index.
By default only messages newer than the index are read. With --full the whole
history is read, records are renumbered in channel order and records whose
message has disappeared are flagged stale.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		full, _ := cmd.Flags().GetBool("full")
		mode := channelsync.Incremental
		if full {
			mode = channelsync.Full
		}

		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.service.Sync(cmd.Context(), mode)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, res)
		}
		a.logger.Info("Sync finished",
			zap.Int("records", a.store.Len()),
			zap.Int("added", res.Added),
			zap.Int("stale", res.Stale),
		)
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("full", false, "Read the whole channel history")
	syncCmd.Flags().Bool("json", false, "Print the result as JSON")
	RootCmd.AddCommand(syncCmd)
}
