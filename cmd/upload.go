package cmd

import (
	"context"
	"fmt"

	"channel-publisher/core/reconcile"
	"channel-publisher/feature/publish"
	"channel-publisher/feature/upload"

	"github.com/spf13/cobra"
)

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload books the channel does not have yet",
	Long: `Uploads missing books one at a time, recording every success in the channel
index before moving on. Interrupting the command stops after the book in flight.`,
}

var uploadAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Upload every missing book",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpload(cmd, func(ctx context.Context, svc *publish.Service, opts publish.UploadOptions) (*upload.BatchResult, error) {
			return svc.UploadAll(ctx, opts)
		})
	},
}

var uploadFromCmd = &cobra.Command{
	Use:   "from <key|file|index>",
	Short: "Upload missing books from a starting point onwards",
	Long: `Uploads the missing books at or after the given starting point in library
order. The starting point is an identity key, an .epub file name or a
zero-based position in the library listing. A bare number is always a
position; prefix it with "key:" to name a book such as 1984.

  channel-publisher upload from 120
  channel-publisher upload from key:1984`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		offset := reconcile.ParseOffset(args[0])
		return runUpload(cmd, func(ctx context.Context, svc *publish.Service, opts publish.UploadOptions) (*upload.BatchResult, error) {
			return svc.UploadFrom(ctx, offset, opts)
		})
	},
}

var uploadMissingCmd = &cobra.Command{
	Use:   "missing",
	Short: "Catch up with the channel, then resend what it lacks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpload(cmd, func(ctx context.Context, svc *publish.Service, opts publish.UploadOptions) (*upload.BatchResult, error) {
			return svc.ResendMissing(ctx, opts)
		})
	},
}

type uploadFunc func(ctx context.Context, svc *publish.Service, opts publish.UploadOptions) (*upload.BatchResult, error)

func runUpload(cmd *cobra.Command, run uploadFunc) error {
	ctx := cmd.Context()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	category, _ := cmd.Flags().GetString("category")
	asJSON, _ := cmd.Flags().GetBool("json")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	opts := publish.UploadOptions{Category: category, Limit: limit}
	if !asJSON {
		opts.Progress = func(ev upload.Event) {
			switch ev.Kind {
			case upload.EventSucceeded:
				fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] uploaded %s\n", ev.Done, ev.Total, ev.Key)
			case upload.EventFailed:
				fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] failed %s: %v\n", ev.Done, ev.Total, ev.Key, ev.Err)
			case upload.EventSkipped:
				fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] skipped %s (already published)\n", ev.Done, ev.Total, ev.Key)
			}
		}
	}

	res, err := run(ctx, a.service, opts)
	if res != nil && asJSON {
		if perr := printJSON(cmd, res); perr != nil && err == nil {
			err = perr
		}
	}
	if err != nil {
		return err
	}
	if res != nil && len(res.Failed) > 0 {
		return fmt.Errorf("%d of %d uploads failed", len(res.Failed), len(res.Failed)+len(res.Succeeded))
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{uploadAllCmd, uploadFromCmd, uploadMissingCmd} {
		c.Flags().String("category", "", "Restrict to one library category")
		c.Flags().Bool("json", false, "Print the batch result as JSON")
		c.Flags().Int("limit", 0, "Upload at most this many books (0 for no limit)")
		uploadCmd.AddCommand(c)
	}
	RootCmd.AddCommand(uploadCmd)
}
