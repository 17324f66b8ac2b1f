package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsift/internal/acquire"
	"github.com/Aman-CERP/docsift/internal/ui"
)

func newAcquireCmd(e *env) *cobra.Command {
	var dest string

	cmd := &cobra.Command{
		Use:   "acquire [manifest]",
		Short: "Download every attachment listed in a manifest",
		Long: `Download the attachment URLs of a manifest CSV into the downloads directory.

Files already present are skipped, so an interrupted run can be repeated.
Failed downloads are appended to logs/download_failures.txt.
http, https and gs:// URLs are supported.`,
		Example: `  docsift acquire input/comment_links.csv
  docsift acquire comments.csv --dest /data/downloads`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath := e.cfg.Paths.Manifest
			if len(args) == 1 {
				manifestPath = args[0]
			}
			if dest == "" {
				dest = e.cfg.Paths.Downloads
			}
			return runAcquire(cmd, e, manifestPath, dest)
		},
	}

	cmd.Flags().StringVar(&dest, "dest", "", "Download directory (default: paths.downloads)")
	return cmd
}

func runAcquire(cmd *cobra.Command, e *env, manifestPath, dest string) error {
	var res *acquire.Result
	err := e.track(cmd, func(ctx context.Context, r ui.Renderer, stats *ui.CompletionStats) error {
		var (
			sum ui.StageSummary
			err error
		)
		res, sum, err = e.acquireStage(ctx, r, manifestPath, dest)
		stats.Stages = append(stats.Stages, sum)
		return err
	})
	if err != nil {
		return err
	}

	out := e.out(cmd)
	if e.opts.json {
		return out.JSON(res)
	}
	out.Successf("Acquired %d file(s) into %s", res.Succeeded, dest)
	out.KeyValue("skipped", res.Skipped)
	out.KeyValue("failed", res.Failed)
	out.KeyValue("duplicates", res.Duplicates)
	out.KeyValue("invalid urls", res.Invalid)
	if res.Failed > 0 {
		out.Warningf("%d download(s) failed; see %s", res.Failed, "logs/download_failures.txt")
	}
	return nil
}
