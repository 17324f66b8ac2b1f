package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsift/internal/index"
	"github.com/Aman-CERP/docsift/internal/ui"
)

func newIndexCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or inspect the full-text index",
		Long: `Manage the full-text index over extracted text.

The default backend is a single SQLite file using FTS5 with porter stemming;
set index.backend: bleve to use a bleve index directory instead.`,
	}
	cmd.AddCommand(newIndexBuildCmd(e), newIndexStatsCmd(e))
	return cmd
}

type indexBuildOptions struct {
	text     string
	manifest string
	db       string
}

func newIndexBuildCmd(e *env) *cobra.Command {
	var opts indexBuildOptions

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rebuild the index from the text directory",
		Long: `Rebuild the index from scratch. Every *.txt file in the text directory
becomes one entry, joined with manifest metadata (organization, category,
source URL) and extraction provenance.`,
		Example: `  docsift index build
  docsift index build --text text --manifest input/comment_links.csv --db output/document_index.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.text == "" {
				opts.text = e.cfg.Paths.Text
			}
			if opts.manifest == "" {
				opts.manifest = e.cfg.Paths.Manifest
			}
			if opts.db == "" {
				opts.db = e.cfg.Paths.Database
			}
			return runIndexBuild(cmd, e, opts)
		},
	}

	cmd.Flags().StringVar(&opts.text, "text", "", "Directory of extracted text (default: paths.text)")
	cmd.Flags().StringVar(&opts.manifest, "manifest", "", "Manifest CSV for metadata (default: paths.manifest)")
	cmd.Flags().StringVar(&opts.db, "db", "", "Index location (default: paths.database)")
	return cmd
}

func runIndexBuild(cmd *cobra.Command, e *env, opts indexBuildOptions) error {
	var stats *index.BuildStats
	err := e.track(cmd, func(ctx context.Context, r ui.Renderer, cs *ui.CompletionStats) error {
		var (
			sum ui.StageSummary
			err error
		)
		stats, sum, err = e.indexStage(ctx, r, opts.text, opts.manifest, opts.db)
		cs.Stages = append(cs.Stages, sum)
		cs.Outputs = append(cs.Outputs, opts.db)
		return err
	})
	if err != nil {
		return err
	}

	out := e.out(cmd)
	if e.opts.json {
		return out.JSON(stats)
	}
	out.Successf("Indexed %d of %d text file(s) into %s", stats.Indexed, stats.Total, opts.db)
	if stats.Failed > 0 {
		out.Warningf("%d file(s) could not be read", stats.Failed)
	}
	return nil
}

func newIndexStatsCmd(e *env) *cobra.Command {
	var db string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long:  `Show document and character totals, counts by file type and extraction method, and the index size.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if db == "" {
				db = e.cfg.Paths.Database
			}
			idx, err := e.openIndex(db)
			if err != nil {
				return err
			}
			stats, err := idx.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if e.opts.json {
				return e.out(cmd).JSON(stats)
			}
			w := cmd.OutOrStdout()
			_, err = w.Write([]byte(ui.RenderIndexStats(stats, !ui.IsTTY(w) || ui.DetectNoColor())))
			return err
		},
	}

	cmd.Flags().StringVar(&db, "db", "", "Index location (default: paths.database)")
	return cmd
}
