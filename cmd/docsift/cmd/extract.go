package cmd

import (
	"context"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsift/internal/capability"
	"github.com/Aman-CERP/docsift/internal/extract"
	"github.com/Aman-CERP/docsift/internal/ui"
)

type extractOptions struct {
	input  string
	output string
	file   string
}

func newExtractCmd(e *env) *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Convert downloaded documents to text",
		Long: `Extract text from every PDF and DOCX file in the downloads directory.

PDFs with a text layer are read directly. Scanned PDFs are rendered page by
page and sent through local OCR (tesseract) with OCR.space as fallback.
Each document becomes <name>.txt in the text directory; provenance is kept in
extraction_manifest.json and failures in logs/extraction_failures.txt.`,
		Example: `  docsift extract
  docsift extract --input downloads --output text
  docsift extract --file downloads/CMS-2025-0001-0001_attachment_1.pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.input == "" {
				opts.input = e.cfg.Paths.Downloads
			}
			if opts.output == "" {
				opts.output = e.cfg.Paths.Text
			}
			return runExtract(cmd, e, opts)
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "Directory of downloaded documents (default: paths.downloads)")
	cmd.Flags().StringVar(&opts.output, "output", "", "Directory for extracted text (default: paths.text)")
	cmd.Flags().StringVar(&opts.file, "file", "", "Extract a single file instead of a directory")
	return cmd
}

func runExtract(cmd *cobra.Command, e *env, opts extractOptions) error {
	caps := capability.Detect(cmd.Context(), e.cfg, capability.Options{SkipEmbedder: true}, e.logger)
	defer func() { _ = caps.Close() }()

	if opts.file != "" {
		return runExtractFile(cmd, e, caps, opts)
	}

	var res *extract.BatchResult
	err := e.track(cmd, func(ctx context.Context, r ui.Renderer, stats *ui.CompletionStats) error {
		var (
			sum ui.StageSummary
			err error
		)
		res, sum, err = e.extractStage(ctx, r, caps, opts.input, opts.output)
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
	out.Successf("Extracted %d of %d document(s) into %s", res.Succeeded, res.Total, opts.output)
	out.KeyValue("characters", res.TotalCharacters)
	methods := make([]string, 0, len(res.ByMethod))
	for m := range res.ByMethod {
		methods = append(methods, string(m))
	}
	sort.Strings(methods)
	for _, m := range methods {
		out.KeyValue(m, res.ByMethod[extract.Method(m)])
	}
	if res.Failed > 0 {
		out.Warningf("%d document(s) failed; see logs/%s", res.Failed, "extraction_failures.txt")
	}
	return nil
}

func runExtractFile(cmd *cobra.Command, e *env, caps *capability.Set, opts extractOptions) error {
	x, err := e.extractor(caps, ui.NewPlainRenderer(ui.NewConfig(io.Discard)))
	if err != nil {
		return err
	}
	o, err := x.ExtractFile(cmd.Context(), opts.file, opts.output)
	if err != nil {
		return err
	}

	out := e.out(cmd)
	if e.opts.json {
		return out.JSON(o)
	}
	if !o.Success {
		out.Errorf("%s: %s", o.Document.Filename, o.Document.Error)
		return nil
	}
	out.Successf("%s → %s", o.Document.Filename, o.OutputPath)
	out.KeyValue("file type", o.Document.FileType)
	out.KeyValue("method", o.Document.Method)
	out.KeyValue("characters", o.Document.CharacterCount)
	if len(o.Document.OCRFailedPages) > 0 {
		out.KeyValue("failed pages", o.Document.OCRFailedPages)
	}
	return nil
}
