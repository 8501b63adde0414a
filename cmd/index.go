package cmd

import (
	"errors"
	"fmt"

	"channel-publisher/core/catalog"
	"channel-publisher/core/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect and maintain the channel index",
}

var indexShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Compare the library with the channel index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		plan, err := a.service.Report(cmd.Context())
		if err != nil {
			return err
		}
		if details, _ := cmd.Flags().GetBool("details"); details {
			return printJSON(cmd, plan)
		}
		return printJSON(cmd, plan.Summary)
	},
}

var indexGapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "List the books that still need uploading",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		from, _ := cmd.Flags().GetString("from")
		category, _ := cmd.Flags().GetString("category")
		tasks, err := a.service.Gaps(cmd.Context(), reconcile.ParseOffset(from), category)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", t.Item.Position, t.Key, t.Item.Path)
		}
		a.logger.Info("Gap detection finished", zap.Int("missing", len(tasks)))
		return nil
	},
}

var indexFixCategoriesCmd = &cobra.Command{
	Use:   "fix-categories",
	Short: "Normalize the category of every record",
	Long:  `Strips hashtag prefixes and replaces dashes with underscores in recorded categories.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		changed, err := a.service.FixCategories(cmd.Context())
		if err != nil {
			return err
		}
		for _, key := range changed {
			fmt.Fprintln(cmd.OutOrStdout(), key)
		}
		return nil
	},
}

var indexPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete records flagged stale by a full sync",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		removed, err := a.service.Prune(cmd.Context())
		if err != nil {
			return err
		}
		for _, key := range removed {
			fmt.Fprintln(cmd.OutOrStdout(), key)
		}
		return nil
	},
}

var indexRestoreCmd = &cobra.Command{
	Use:   "restore [snapshot]",
	Short: "Replace the channel index with a stored snapshot",
	Long:  `Downloads a snapshot from object storage and installs it as the channel index. Without an argument the latest snapshot is used.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		restored, err := a.service.Restore(cmd.Context(), name)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), restored)
		return nil
	},
}

var indexLedgerCmd = &cobra.Command{
	Use:   "ledger [key|file]",
	Short: "Audit the published-titles ledger against the channel index",
	Long: `Without an argument, lists every ledger entry oldest first and marks the
ones the channel index no longer holds. With a key or .epub file name, reports
whether that title was ever recorded. Requires database.enabled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if a.ledger == nil {
			return errors.New("ledger is not available (set database.enabled and check the connection)")
		}
		view, err := a.store.Peek()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			key := args[0]
			if catalog.IsBookFile(key) {
				key = catalog.KeyFromFilename(key)
			} else {
				key = catalog.NormalizeKey(key)
			}
			recorded, err := a.ledger.Has(cmd.Context(), key)
			if err != nil {
				return err
			}
			_, indexed := view.Get(key)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tledger=%t\tindex=%t\n", key, recorded, indexed)
			return nil
		}

		entries, err := a.ledger.Entries(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, entries)
		}
		orphaned := 0
		for _, e := range entries {
			mark := ""
			if _, ok := view.Get(e.TitleKey); !ok {
				mark = "\tnot in index"
				orphaned++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s%s\n", e.PublishedAt.Format("2006-01-02 15:04"), e.MessageID, e.TitleKey, mark)
		}
		a.logger.Info("Ledger audit finished", zap.Int("entries", len(entries)), zap.Int("not_in_index", orphaned))
		return nil
	},
}

func init() {
	indexShowCmd.Flags().Bool("details", false, "Include per-book results and planned actions")
	indexGapsCmd.Flags().String("from", "", "Start at this key, file name or position (key:<name> for numeric keys)")
	indexGapsCmd.Flags().String("category", "", "Restrict to one library category")

	indexLedgerCmd.Flags().Bool("json", false, "Print the entries as JSON")

	indexCmd.AddCommand(indexShowCmd, indexGapsCmd, indexFixCategoriesCmd, indexPruneCmd, indexRestoreCmd, indexLedgerCmd)
	RootCmd.AddCommand(indexCmd)
}
