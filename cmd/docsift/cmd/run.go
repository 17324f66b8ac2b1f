package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsift/internal/acquire"
	"github.com/Aman-CERP/docsift/internal/capability"
	"github.com/Aman-CERP/docsift/internal/extract"
	"github.com/Aman-CERP/docsift/internal/group"
	"github.com/Aman-CERP/docsift/internal/index"
	"github.com/Aman-CERP/docsift/internal/ui"
)

type runOptions struct {
	skipAcquire bool
	skipExtract bool
	skipIndex   bool
	skipGroup   bool
	group       groupRequest
}

// runReport is the JSON form of a pipeline run. Skipped stages are omitted.
type runReport struct {
	RunID   string               `json:"run_id,omitempty"`
	Acquire *acquire.Result      `json:"acquire,omitempty"`
	Extract *extract.BatchResult `json:"extract,omitempty"`
	Index   *index.BuildStats    `json:"index,omitempty"`
	Group   *group.Report        `json:"group,omitempty"`
}

func newRunCmd(e *env) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [manifest]",
		Short: "Run acquire, extract, index and group in one go",
		Long: `Run the whole pipeline over a manifest using the workspace layout from the
configuration. Each stage can be skipped, e.g. to re-group an existing corpus
without downloading again.`,
		Example: `  docsift run input/comment_links.csv
  docsift run --skip-acquire --skip-extract --method lda`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath := e.cfg.Paths.Manifest
			if len(args) == 1 {
				manifestPath = args[0]
			}
			opts.group.textDir = e.cfg.Paths.Text
			opts.group.manifestPath = manifestPath
			opts.group.outputDir = e.cfg.Paths.Output
			return runPipeline(cmd, e, opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.skipAcquire, "skip-acquire", false, "Do not download; use the existing downloads directory")
	f.BoolVar(&opts.skipExtract, "skip-extract", false, "Do not extract; use the existing text directory")
	f.BoolVar(&opts.skipIndex, "skip-index", false, "Do not rebuild the search index")
	f.BoolVar(&opts.skipGroup, "skip-group", false, "Do not cluster the corpus")
	f.StringVarP(&opts.group.method, "method", "m", "", "Clustering method (default: group.method)")
	f.IntVar(&opts.group.k, "k", 0, "Number of clusters or topics (default: automatic)")
	f.IntVar(&opts.group.minTopicSize, "min-topic-size", 0, "Smallest embedding topic (default: group.min_topic_size)")
	return cmd
}

func runPipeline(cmd *cobra.Command, e *env, opts runOptions) error {
	var (
		report   runReport
		analysis *group.Analysis
		paths    *group.ReportPaths
	)
	manifestPath := opts.group.manifestPath
	method, err := e.groupMethod(opts.group)
	if err != nil && !opts.skipGroup {
		return err
	}

	err = e.track(cmd, func(ctx context.Context, r ui.Renderer, stats *ui.CompletionStats) error {
		// Capabilities are detected once for the stages that need them.
		caps := &capability.Set{}
		if !opts.skipExtract || !opts.skipGroup {
			caps = capability.Detect(ctx, e.cfg, capability.Options{
				SkipOCR:      opts.skipExtract,
				SkipEmbedder: opts.skipGroup || method != group.MethodEmbedding,
			}, e.logger)
			defer func() { _ = caps.Close() }()
		}

		if !opts.skipAcquire {
			res, sum, err := e.acquireStage(ctx, r, manifestPath, e.cfg.Paths.Downloads)
			stats.Stages = append(stats.Stages, sum)
			if err != nil {
				return err
			}
			report.Acquire = res
		}

		if !opts.skipExtract {
			res, sum, err := e.extractStage(ctx, r, caps, e.cfg.Paths.Downloads, e.cfg.Paths.Text)
			stats.Stages = append(stats.Stages, sum)
			if err != nil {
				return err
			}
			report.Extract = res
		}

		if !opts.skipIndex {
			res, sum, err := e.indexStage(ctx, r, e.cfg.Paths.Text, manifestPath, e.cfg.Paths.Database)
			stats.Stages = append(stats.Stages, sum)
			stats.Outputs = append(stats.Outputs, e.cfg.Paths.Database)
			if err != nil {
				return err
			}
			report.Index = res
		}

		if !opts.skipGroup {
			a, p, sum, err := e.groupStage(ctx, r, caps, opts.group)
			stats.Stages = append(stats.Stages, sum)
			if err != nil {
				return err
			}
			analysis, paths = a, p
			stats.RunID = p.RunID
			stats.Outputs = append(stats.Outputs, p.CSV, p.JSON)
		}
		return nil
	})
	if err != nil {
		return err
	}

	out := e.out(cmd)
	if e.opts.json {
		if analysis != nil {
			report.Group = group.NewReport(analysis)
			report.Group.RunID = paths.RunID
			report.RunID = paths.RunID
		}
		return out.JSON(report)
	}
	if report.Acquire != nil {
		out.Successf("acquire: %d downloaded, %d skipped, %d failed", report.Acquire.Succeeded, report.Acquire.Skipped, report.Acquire.Failed)
	}
	if report.Extract != nil {
		out.Successf("extract: %d of %d documents", report.Extract.Succeeded, report.Extract.Total)
	}
	if report.Index != nil {
		out.Successf("index: %d documents in %s", report.Index.Indexed, e.cfg.Paths.Database)
	}
	if analysis != nil {
		out.Newline()
		return printAnalysis(cmd, e, analysis, paths)
	}
	return nil
}
