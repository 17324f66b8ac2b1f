package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docsift/internal/capability"
	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/logging"
	"github.com/Aman-CERP/docsift/internal/manifest"
	"github.com/Aman-CERP/docsift/internal/ocr"
	"github.com/Aman-CERP/docsift/internal/render"
)

// Options configures an Extractor.
type Options struct {
	// ClassifyPages is how many leading pages are sampled to classify a PDF.
	ClassifyPages int
	// MinTextChars is the non-whitespace character count at which a PDF
	// counts as text-bearing.
	MinTextChars int
	// RenderWorkers bounds concurrent page rasterization.
	RenderWorkers int

	TextLayer TextLayer
	Renderer  capability.Of[render.Renderer]
	OCR       *ocr.Chain
	IDs       *manifest.IDMatcher

	// FailureLog receives "filename: reason" for every failed document.
	FailureLog *logging.FailureLog
	// OnProgress is called before each file of a batch.
	OnProgress func(current, total int, name string)
}

// Extractor converts documents to text.
type Extractor struct {
	opts   Options
	logger *slog.Logger
}

// New creates an Extractor. Zero options fall back to the defaults of the
// configuration file.
func New(opts Options, logger *slog.Logger) *Extractor {
	if opts.ClassifyPages <= 0 {
		opts.ClassifyPages = 3
	}
	if opts.MinTextChars <= 0 {
		opts.MinTextChars = 50
	}
	if opts.RenderWorkers <= 0 {
		opts.RenderWorkers = 4
	}
	if opts.TextLayer == nil {
		opts.TextLayer, _ = NewTextLayer("auto")
	}
	if opts.OCR == nil {
		opts.OCR = ocr.NewChain(logger)
	}
	if opts.IDs == nil {
		opts.IDs, _ = manifest.NewIDMatcher("")
	}
	return &Extractor{opts: opts, logger: logging.OrNop(logger)}
}

// Extract converts one file and, on success, writes "<stem>.txt" into
// outputDir. Per-file problems are reported in the Outcome; the error is
// non-nil only when ctx is cancelled.
func (e *Extractor) Extract(ctx context.Context, path, outputDir string) (*Outcome, error) {
	name := filepath.Base(path)
	doc := Document{
		Filename:   name,
		DocumentID: e.opts.IDs.DocumentID(name),
		FileType:   FileTypeOf(path),
	}
	out := &Outcome{OutputPath: filepath.Join(outputDir, OutputName(path))}

	start := time.Now()
	var err error
	switch doc.FileType {
	case FileTypePDF:
		err = e.extractPDF(ctx, path, &doc)
	case FileTypeDOCX:
		doc.Text, err = ReadDOCX(path)
		doc.Method = MethodDOCX
	default:
		err = serr.New(serr.ErrCodeUnsupportedFileType,
			fmt.Sprintf("unsupported file type: %s", strings.ToLower(filepath.Ext(path))), nil)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	switch {
	case err != nil:
		e.fail(&doc, serr.Reason(err))
	case strings.TrimSpace(doc.Text) == "":
		e.fail(&doc, "no text content extracted")
	default:
		if werr := writeText(out.OutputPath, doc.Text); werr != nil {
			e.fail(&doc, serr.Reason(werr))
			break
		}
		out.Success = true
	}
	// Failed documents carry a placeholder, not content.
	if out.Success {
		doc.CharacterCount = utf8.RuneCountInString(doc.Text)
	}
	out.Document = doc

	if out.Success {
		e.logger.Info("document extracted",
			"file", name, "method", doc.Method, "chars", doc.CharacterCount,
			"pages", doc.Pages, "duration", time.Since(start))
	} else {
		e.logger.Warn("document extraction failed", "file", name, "reason", doc.Error)
		if ferr := e.opts.FailureLog.Record(name, doc.Error); ferr != nil {
			e.logger.Warn("failed to record extraction failure", "error", ferr)
		}
	}
	return out, nil
}

func (e *Extractor) fail(doc *Document, reason string) {
	doc.Method = MethodFailed
	doc.Error = reason
	doc.Text = FailurePlaceholder(doc.FileType, reason)
}

func writeText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return serr.New(serr.ErrCodeFileWrite, "create text directory", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return serr.New(serr.ErrCodeFileWrite, fmt.Sprintf("write %s", filepath.Base(path)), err)
	}
	return nil
}

func (e *Extractor) extractPDF(ctx context.Context, path string, doc *Document) error {
	sample, total, err := e.opts.TextLayer.ReadPages(path, e.opts.ClassifyPages)
	if err != nil {
		return serr.New(serr.ErrCodeDocumentCorrupt, "cannot read pdf", err)
	}
	doc.Pages = total
	if total == 0 {
		return serr.New(serr.ErrCodeDocumentCorrupt, "pdf has no pages", nil)
	}

	if HasTextLayer(sample, e.opts.MinTextChars) {
		pages := sample
		if total > len(sample) {
			if pages, _, err = e.opts.TextLayer.ReadPages(path, 0); err != nil {
				return serr.New(serr.ErrCodeDocumentCorrupt, "cannot read pdf", err)
			}
		}
		doc.Method = MethodDirectText
		doc.Text = joinPages(pages)
		return nil
	}

	e.logger.Debug("pdf has no text layer, using OCR", "file", doc.Filename, "pages", total)
	return e.ocrPDF(ctx, path, total, doc)
}

// ocrPDF rasterizes every page with a bounded worker pool, then runs the OCR
// chain on the images in page order. A failed page is replaced by a marker.
func (e *Extractor) ocrPDF(ctx context.Context, path string, pages int, doc *Document) error {
	renderer, ok := e.opts.Renderer.Get()
	if !ok {
		return serr.New(serr.ErrCodeRenderFailed, "page renderer unavailable: "+e.opts.Renderer.Reason(), nil)
	}
	if e.opts.OCR.Len() == 0 {
		return serr.New(serr.ErrCodeOCRUnavailable, "no OCR engine available", nil)
	}

	dir, err := os.MkdirTemp("", "docsift-pages-*")
	if err != nil {
		return serr.IOError("create render directory", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	images := make([]string, pages)
	renderErrs := make([]error, pages)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.RenderWorkers)
	for i := range pages {
		g.Go(func() error {
			images[i], renderErrs[i] = renderer.RenderPage(gctx, path, i+1, dir)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	texts := make([]string, 0, pages)
	var local, cloud int
	for i := range pages {
		page := i + 1
		if renderErrs[i] != nil {
			e.logger.Warn("page render failed", "file", doc.Filename, "page", page, "error", renderErrs[i])
			texts = append(texts, PageFailedMarker(page))
			doc.OCRFailedPages = append(doc.OCRFailedPages, page)
			continue
		}

		text, src, err := e.opts.OCR.Recognize(ctx, images[i])
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			e.logger.Warn("page OCR failed", "file", doc.Filename, "page", page, "error", err)
			texts = append(texts, PageFailedMarker(page))
			doc.OCRFailedPages = append(doc.OCRFailedPages, page)
			continue
		}
		switch src {
		case ocr.SourceLocal:
			local++
		case ocr.SourceCloud:
			cloud++
		}
		if text != "" {
			texts = append(texts, text)
		}
	}

	switch {
	case local+cloud == 0:
		return serr.New(serr.ErrCodeOCRFailed, fmt.Sprintf("OCR failed on all %d pages", pages), nil)
	case cloud > 0:
		doc.Method = MethodOCRCloud
	default:
		doc.Method = MethodOCRLocal
	}
	doc.Text = strings.Join(texts, PageBreak)
	return nil
}

// ExtractAll extracts every file in inputDir (hidden files and partial
// downloads excluded), records failures, and merges provenance records into
// outputDir's sidecar.
func (e *Extractor) ExtractAll(ctx context.Context, inputDir, outputDir string) (*BatchResult, error) {
	files, err := listInputs(inputDir)
	if err != nil {
		return nil, err
	}
	res := &BatchResult{Total: len(files), ByMethod: make(map[Method]int)}
	if len(files) == 0 {
		e.logger.Warn("no documents found", "dir", inputDir)
		return res, nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, serr.New(serr.ErrCodeFileWrite, "create text directory", err)
	}

	prov := make(Provenance)
	defer func() {
		if len(prov) == 0 {
			return
		}
		if err := prov.Save(outputDir); err != nil {
			e.logger.Warn("failed to save provenance", "error", err)
		}
	}()

	e.logger.Info("extraction started", "files", len(files), "input", inputDir, "output", outputDir)
	for i, path := range files {
		if e.opts.OnProgress != nil {
			e.opts.OnProgress(i+1, len(files), filepath.Base(path))
		}
		out, err := e.Extract(ctx, path, outputDir)
		if err != nil {
			return res, err
		}
		res.Outcomes = append(res.Outcomes, *out)
		res.ByMethod[out.Document.Method]++
		if !out.Success {
			res.Failed++
			continue
		}
		res.Succeeded++
		res.TotalCharacters += out.Document.CharacterCount
		prov[filepath.Base(out.OutputPath)] = recordOf(out.Document)
	}

	e.logger.Info("extraction complete",
		"succeeded", res.Succeeded, "failed", res.Failed, "chars", res.TotalCharacters)
	return res, nil
}

// ExtractFile extracts a single file and merges its provenance record.
func (e *Extractor) ExtractFile(ctx context.Context, path, outputDir string) (*Outcome, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, serr.New(serr.ErrCodeFileNotFound, fmt.Sprintf("input not found: %s", path), err)
	}
	out, err := e.Extract(ctx, path, outputDir)
	if err != nil || !out.Success {
		return out, err
	}
	rec := Provenance{filepath.Base(out.OutputPath): recordOf(out.Document)}
	if err := rec.Save(outputDir); err != nil {
		e.logger.Warn("failed to save provenance", "error", err)
	}
	return out, nil
}

func recordOf(doc Document) Record {
	return Record{
		Source:         doc.Filename,
		FileType:       doc.FileType,
		Method:         doc.Method,
		CharacterCount: doc.CharacterCount,
		Pages:          doc.Pages,
		OCRFailedPages: doc.OCRFailedPages,
		ExtractedAt:    time.Now().UTC(),
	}
}

func listInputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, serr.New(serr.ErrCodeFileNotFound, fmt.Sprintf("input directory not found: %s", dir), err)
	}
	if err != nil {
		return nil, serr.IOError(fmt.Sprintf("cannot read %s", dir), err)
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".part") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}
