package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/docsift/internal/acquire"
	"github.com/Aman-CERP/docsift/internal/capability"
	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/extract"
	"github.com/Aman-CERP/docsift/internal/group"
	"github.com/Aman-CERP/docsift/internal/index"
	"github.com/Aman-CERP/docsift/internal/logging"
	"github.com/Aman-CERP/docsift/internal/manifest"
	"github.com/Aman-CERP/docsift/internal/ui"
)

// The stage functions below are shared by the single-stage commands and by
// `docsift run`. Each reports progress to r and returns a summary for the
// completion view next to its typed result.

func (e *env) acquireStage(ctx context.Context, r ui.Renderer, manifestPath, dest string) (*acquire.Result, ui.StageSummary, error) {
	start := time.Now()
	sum := ui.StageSummary{Stage: ui.StageAcquire}

	m, err := manifest.Load(manifestPath, e.manifestOptions(true))
	if err != nil {
		return nil, sum, err
	}
	e.logger.Info("manifest loaded", "path", manifestPath, "rows", m.Rows,
		"documents", len(m.References), "urls", m.URLCount())

	a := acquire.New(acquire.Options{
		Dest:               dest,
		MaxRetries:         e.cfg.Acquire.MaxRetries,
		Timeout:            e.cfg.Acquire.Timeout,
		InitialBackoff:     e.cfg.Acquire.InitialBackoff,
		MaxBackoff:         e.cfg.Acquire.MaxBackoff,
		UserAgent:          e.cfg.Acquire.UserAgent,
		GCSCredentialsFile: e.cfg.Acquire.GCSCredentialsFile,
		FailureLog:         logging.NewFailureLog(filepath.Join(e.cfg.Paths.Logs, logging.DownloadFailuresFile)),
		OnProgress: func(current, total int, name string) {
			r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageAcquire, Current: current, Total: total, Item: name})
		},
	}, e.logger)
	defer func() { _ = a.Close() }()

	res, err := a.Fetch(ctx, m.References)
	if res != nil {
		for _, f := range res.Failures {
			r.AddError(ui.ErrorEvent{Item: f.DocumentID, Err: errors.New(f.Reason), IsWarn: true})
		}
		sum.Processed = res.Succeeded
		sum.Skipped = res.Skipped
		sum.Failed = res.Failed
		var notes []string
		if res.Invalid > 0 {
			notes = append(notes, fmt.Sprintf("%d invalid url(s)", res.Invalid))
		}
		if res.Duplicates > 0 {
			notes = append(notes, fmt.Sprintf("%d duplicate(s)", res.Duplicates))
		}
		sum.Detail = strings.Join(notes, ", ")
	}
	sum.Duration = time.Since(start)
	return res, sum, err
}

// extractor wires the detected OCR engines and renderer into an Extractor.
func (e *env) extractor(caps *capability.Set, r ui.Renderer) (*extract.Extractor, error) {
	layer, err := extract.NewTextLayer(e.cfg.Extract.PDFBackend)
	if err != nil {
		return nil, serr.New(serr.ErrCodeConfigInvalid, "invalid extract.pdf_backend", err)
	}
	ids, err := e.idMatcher()
	if err != nil {
		return nil, err
	}
	chain := caps.OCRChain(e.logger)
	if chain.Len() == 0 {
		e.logger.Warn("no OCR engine available; scanned pages will be marked as failed")
	}
	return extract.New(extract.Options{
		ClassifyPages: e.cfg.Extract.ClassifyPages,
		MinTextChars:  e.cfg.Extract.MinTextChars,
		RenderWorkers: e.cfg.Extract.RenderWorkers,
		TextLayer:     layer,
		Renderer:      caps.Renderer,
		OCR:           chain,
		IDs:           ids,
		FailureLog:    logging.NewFailureLog(filepath.Join(e.cfg.Paths.Logs, logging.ExtractionFailuresFile)),
		OnProgress: func(current, total int, name string) {
			r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageExtract, Current: current, Total: total, Item: name})
		},
	}, e.logger), nil
}

func (e *env) extractStage(ctx context.Context, r ui.Renderer, caps *capability.Set, input, outputDir string) (*extract.BatchResult, ui.StageSummary, error) {
	start := time.Now()
	sum := ui.StageSummary{Stage: ui.StageExtract}

	x, err := e.extractor(caps, r)
	if err != nil {
		return nil, sum, err
	}
	res, err := x.ExtractAll(ctx, input, outputDir)
	if res != nil {
		for _, o := range res.Outcomes {
			if !o.Success {
				r.AddError(ui.ErrorEvent{Item: o.Document.Filename, Err: errors.New(o.Document.Error), IsWarn: true})
			}
		}
		sum.Processed = res.Succeeded
		sum.Failed = res.Failed
		sum.Detail = fmt.Sprintf("%d chars", res.TotalCharacters)
	}
	sum.Duration = time.Since(start)
	return res, sum, err
}

// metadata loads the manifest as a metadata lookup; a missing file is empty.
func (e *env) metadata(path string) (manifest.Metadata, error) {
	md, found, err := manifest.LoadMetadata(path, e.manifestOptions(false))
	if err != nil {
		return nil, err
	}
	if !found {
		e.logger.Info("no manifest metadata", "path", path)
	}
	return md, nil
}

// openIndex opens the configured backend at path.
func (e *env) openIndex(path string) (index.Index, error) {
	ids, err := e.idMatcher()
	if err != nil {
		return nil, err
	}
	return index.Open(path, index.Options{
		Backend:        e.cfg.Index.Backend,
		HighlightOpen:  e.cfg.Index.HighlightOpen,
		HighlightClose: e.cfg.Index.HighlightClose,
		SnippetTokens:  e.cfg.Index.SnippetTokens,
		IDs:            ids,
	}, e.logger)
}

func (e *env) indexStage(ctx context.Context, r ui.Renderer, textDir, manifestPath, dbPath string) (*index.BuildStats, ui.StageSummary, error) {
	start := time.Now()
	sum := ui.StageSummary{Stage: ui.StageIndex}
	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndex, Message: "building " + dbPath})

	md, err := e.metadata(manifestPath)
	if err != nil {
		return nil, sum, err
	}
	idx, err := e.openIndex(dbPath)
	if err != nil {
		return nil, sum, err
	}
	stats, err := idx.Build(ctx, textDir, md)
	if stats != nil {
		sum.Processed = stats.Indexed
		sum.Failed = stats.Failed
	}
	sum.Duration = time.Since(start)
	return stats, sum, err
}

// groupRequest carries the flag overrides of a grouping run.
type groupRequest struct {
	textDir      string
	manifestPath string
	outputDir    string
	method       string
	k            int
	minTopicSize int
}

// groupMethod resolves the clustering method of a request, falling back to
// group.method.
func (e *env) groupMethod(req groupRequest) (group.Method, error) {
	name := req.method
	if name == "" {
		name = e.cfg.Group.Method
	}
	return group.ParseMethod(name)
}

// groupCapabilities detects only what the requested method needs.
func (e *env) groupCapabilities(ctx context.Context, method group.Method) *capability.Set {
	return capability.Detect(ctx, e.cfg, capability.Options{
		SkipOCR:      true,
		SkipEmbedder: method != group.MethodEmbedding,
	}, e.logger)
}

func (e *env) groupStage(ctx context.Context, r ui.Renderer, caps *capability.Set, req groupRequest) (*group.Analysis, *group.ReportPaths, ui.StageSummary, error) {
	start := time.Now()
	sum := ui.StageSummary{Stage: ui.StageGroup}

	method, err := e.groupMethod(req)
	if err != nil {
		return nil, nil, sum, err
	}

	md, err := e.metadata(req.manifestPath)
	if err != nil {
		return nil, nil, sum, err
	}
	ids, err := e.idMatcher()
	if err != nil {
		return nil, nil, sum, err
	}
	corpus, err := group.LoadCorpus(req.textDir, md, ids, e.logger)
	if err != nil {
		return nil, nil, sum, err
	}
	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageGroup, Message: fmt.Sprintf("%s over %d documents", method, corpus.Len())})

	params := group.ParamsFromConfig(e.cfg.Group)
	if req.k > 0 {
		params.K = req.k
	}
	if req.minTopicSize > 0 {
		params.MinTopicSize = req.minTopicSize
	}

	a, err := group.New(caps.Embedder, e.logger).Analyze(ctx, corpus, method, params)
	if err != nil {
		return nil, nil, sum, err
	}
	paths, err := group.WriteReports(req.outputDir, a)
	if err != nil {
		return a, nil, sum, err
	}
	sum.Processed = len(a.Assignments)
	sum.Detail = fmt.Sprintf("%d cluster(s)", len(a.Clusters))
	sum.Duration = time.Since(start)
	return a, paths, sum, nil
}
