package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsift/internal/group"
	"github.com/Aman-CERP/docsift/internal/ui"
)

func newGroupCmd(e *env) *cobra.Command {
	var req groupRequest

	cmd := &cobra.Command{
		Use:   "group",
		Short: "Cluster the extracted corpus and write reports",
		Long: `Group extracted documents by topic and write grouped_results.csv and
grouped_results.json to the output directory.

Methods:
  tfidf_kmeans  TF-IDF vectors (unigrams and bigrams) clustered with k-means
  lda           topic model over word counts; each document takes its top topic
  embedding     document embeddings, reduced and density clustered; documents
                that fit no topic are labelled -1

Without --k the cluster count is sqrt(documents/2), clamped to group.min_k..group.max_k.`,
		Example: `  docsift group
  docsift group --method lda --k 6
  docsift group --method embedding --min-topic-size 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.textDir == "" {
				req.textDir = e.cfg.Paths.Text
			}
			if req.manifestPath == "" {
				req.manifestPath = e.cfg.Paths.Manifest
			}
			if req.outputDir == "" {
				req.outputDir = e.cfg.Paths.Output
			}
			return runGroup(cmd, e, req)
		},
	}

	cmd.Flags().StringVar(&req.textDir, "text", "", "Directory of extracted text (default: paths.text)")
	cmd.Flags().StringVar(&req.manifestPath, "manifest", "", "Manifest CSV for metadata (default: paths.manifest)")
	cmd.Flags().StringVar(&req.outputDir, "output", "", "Report directory (default: paths.output)")
	cmd.Flags().StringVarP(&req.method, "method", "m", "", "Clustering method: "+methodList()+" (default: group.method)")
	cmd.Flags().IntVar(&req.k, "k", 0, "Number of clusters or topics (default: automatic)")
	cmd.Flags().IntVar(&req.minTopicSize, "min-topic-size", 0, "Smallest embedding topic (default: group.min_topic_size)")
	return cmd
}

func methodList() string {
	methods := group.Methods()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

func runGroup(cmd *cobra.Command, e *env, req groupRequest) error {
	var (
		a     *group.Analysis
		paths *group.ReportPaths
	)
	method, err := e.groupMethod(req)
	if err != nil {
		return err
	}
	err = e.track(cmd, func(ctx context.Context, r ui.Renderer, stats *ui.CompletionStats) error {
		caps := e.groupCapabilities(ctx, method)
		defer func() { _ = caps.Close() }()

		var (
			sum  ui.StageSummary
			gerr error
		)
		a, paths, sum, gerr = e.groupStage(ctx, r, caps, req)
		stats.Stages = append(stats.Stages, sum)
		if paths != nil {
			stats.RunID = paths.RunID
			stats.Outputs = append(stats.Outputs, paths.CSV, paths.JSON)
		}
		return gerr
	})
	if err != nil {
		return err
	}
	return printAnalysis(cmd, e, a, paths)
}

func printAnalysis(cmd *cobra.Command, e *env, a *group.Analysis, paths *group.ReportPaths) error {
	out := e.out(cmd)
	if e.opts.json {
		report := group.NewReport(a)
		report.RunID = paths.RunID
		return out.JSON(report)
	}
	out.Clusters(a)
	out.Successf("Reports written (run %s)", paths.RunID)
	out.KeyValue("csv", paths.CSV)
	out.KeyValue("json", paths.JSON)
	return nil
}
