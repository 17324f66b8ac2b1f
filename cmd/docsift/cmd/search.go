package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/index"
)

type searchOptions struct {
	limit       int
	noHighlight bool
	db          string
}

func newSearchCmd(e *env) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the full-text index",
		Long: `Search extracted text. Results are ranked by relevance and carry a
snippet around the matching terms.

Several plain words are searched as a phrase. Queries using AND, OR, NOT,
quotes or prefix wildcards (pay*) are passed to the backend unchanged.`,
		Example: `  docsift search telehealth
  docsift search "rural hospitals" --limit 5
  docsift search payment --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return serr.New(serr.ErrCodeQueryEmpty, "search query is empty", nil)
			}
			if opts.limit <= 0 {
				opts.limit = e.cfg.Index.DefaultLimit
			}
			if opts.db == "" {
				opts.db = e.cfg.Paths.Database
			}
			return runSearch(cmd, e, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default: index.default_limit)")
	cmd.Flags().BoolVar(&opts.noHighlight, "no-highlight", false, "Do not mark matching terms in snippets")
	cmd.Flags().StringVar(&opts.db, "db", "", "Index location (default: paths.database)")
	return cmd
}

func runSearch(cmd *cobra.Command, e *env, query string, opts searchOptions) error {
	idx, err := e.openIndex(opts.db)
	if err != nil {
		return err
	}

	results, err := idx.Search(cmd.Context(), query, index.SearchOptions{
		Limit:     opts.limit,
		Highlight: !opts.noHighlight,
	})
	if err != nil {
		return err
	}
	e.logger.Info("search complete", "query", query, "results", len(results))

	out := e.out(cmd)
	if e.opts.json {
		if results == nil {
			results = []index.Result{}
		}
		return out.JSON(struct {
			Query   string         `json:"query"`
			Results []index.Result `json:"results"`
		}{query, results})
	}
	out.SearchResults(query, results, e.cfg.Index.HighlightOpen, e.cfg.Index.HighlightClose)
	return nil
}
