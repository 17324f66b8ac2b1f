package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/docsift/internal/config"
	"github.com/Aman-CERP/docsift/internal/embed"
	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/logging"
	"github.com/Aman-CERP/docsift/internal/ocr"
	"github.com/Aman-CERP/docsift/internal/render"
)

// Set is every optional capability, resolved once per command.
type Set struct {
	LocalOCR  Of[ocr.Engine]
	RemoteOCR Of[ocr.Engine]
	Renderer  Of[render.Renderer]
	Embedder  Of[embed.Embedder]
}

// Names used in reports.
const (
	NameLocalOCR  = "local_ocr"
	NameRemoteOCR = "remote_ocr"
	NameRenderer  = "page_renderer"
	NameEmbedder  = "embedder"
)

// Options selects which capabilities Detect probes. Skipped ones are
// Unavailable with reason "not requested".
type Options struct {
	SkipOCR      bool
	SkipEmbedder bool
}

// Detect probes the environment according to cfg.
func Detect(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger) *Set {
	logger = logging.OrNop(logger)
	s := &Set{
		LocalOCR:  Unavailable[ocr.Engine]("not requested"),
		RemoteOCR: Unavailable[ocr.Engine]("not requested"),
		Renderer:  Unavailable[render.Renderer]("not requested"),
		Embedder:  Unavailable[embed.Embedder]("not requested"),
	}
	if !opts.SkipOCR {
		s.LocalOCR = detectTesseract(ctx, cfg.OCR)
		s.RemoteOCR = detectOCRSpace(cfg.OCR, logger)
		s.Renderer = detectRenderer(ctx, cfg.Extract)
	}
	if !opts.SkipEmbedder {
		s.Embedder = detectEmbedder(ctx, cfg.Embeddings, logger)
	}
	var available []string
	for _, r := range s.Reports() {
		logger.Debug("capability", "name", r.Name, "status", r.Status, "detail", r.Detail, "reason", r.Reason)
		if r.Status == StatusAvailable {
			available = append(available, r.Name)
		}
	}
	logger.Info("capabilities detected", "available", available)
	return s
}

func detectTesseract(ctx context.Context, cfg config.OCRConfig) Of[ocr.Engine] {
	if cfg.DisableLocal {
		return Unavailable[ocr.Engine]("disabled by ocr.disable_local")
	}
	path := cfg.TesseractPath
	if path == "" {
		path = "tesseract"
	}
	resolved, version, err := ocr.ProbeTesseract(ctx, path)
	if err != nil {
		return Unavailable[ocr.Engine](serr.Reason(err))
	}
	return Available[ocr.Engine](ocr.NewTesseract(resolved, cfg.Language, cfg.LocalTimeout), fmt.Sprintf("%s (%s)", resolved, version))
}

func detectOCRSpace(cfg config.OCRConfig, logger *slog.Logger) Of[ocr.Engine] {
	if cfg.DisableRemote {
		return Unavailable[ocr.Engine]("disabled by ocr.disable_remote")
	}
	if cfg.APIKey == "" {
		return Unavailable[ocr.Engine]("ocr.api_key is not set (DOCSIFT_OCR_API_KEY or OCR_SPACE_API_KEY)")
	}
	engine := ocr.NewOCRSpace(ocr.OCRSpaceConfig{
		Endpoint:        cfg.RemoteEndpoint,
		APIKey:          cfg.APIKey,
		Language:        cfg.RemoteLanguage,
		Timeout:         cfg.RemoteTimeout,
		Attempts:        cfg.RemoteAttempts,
		CircuitFailures: cfg.CircuitFailures,
	}, logger)
	endpoint := cfg.RemoteEndpoint
	if endpoint == "" {
		endpoint = ocr.DefaultOCRSpaceEndpoint
	}
	return Available[ocr.Engine](engine, endpoint)
}

func detectRenderer(ctx context.Context, cfg config.ExtractConfig) Of[render.Renderer] {
	path := cfg.PdftoppmPath
	if path == "" {
		path = "pdftoppm"
	}
	resolved, version, err := render.Probe(ctx, path)
	if err != nil {
		return Unavailable[render.Renderer](serr.Reason(err))
	}
	detail := resolved
	if version != "" {
		detail = fmt.Sprintf("%s (%s)", resolved, version)
	}
	return Available[render.Renderer](render.NewPdftoppm(resolved, cfg.DPI, cfg.RenderTimeout), detail)
}

func detectEmbedder(ctx context.Context, cfg config.EmbeddingsConfig, logger *slog.Logger) Of[embed.Embedder] {
	e, err := embed.New(ctx, cfg, logger)
	if errors.Is(err, embed.ErrDisabled) {
		return Unavailable[embed.Embedder]("embeddings.provider is empty")
	}
	if err != nil {
		return Unavailable[embed.Embedder](serr.Reason(err))
	}
	return Available(e, fmt.Sprintf("%s (%d dims)", e.ModelName(), e.Dimensions()))
}

// OCRChain returns the available engines in fallback order: local first.
func (s *Set) OCRChain(logger *slog.Logger) *ocr.Chain {
	return ocr.NewChain(logger, s.LocalOCR.OrZero(), s.RemoteOCR.OrZero())
}

// Reports describes every capability, in a fixed order.
func (s *Set) Reports() []Report {
	return []Report{
		Describe(NameLocalOCR, s.LocalOCR),
		Describe(NameRemoteOCR, s.RemoteOCR),
		Describe(NameRenderer, s.Renderer),
		Describe(NameEmbedder, s.Embedder),
	}
}

// Close releases resolved resources.
func (s *Set) Close() error {
	if e, ok := s.Embedder.Get(); ok {
		return e.Close()
	}
	return nil
}
