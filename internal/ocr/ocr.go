// Package ocr turns rendered page images into text. A Chain tries the local
// tesseract engine first and falls back to the OCR.space HTTP API.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/logging"
)

// Source records which engine produced a page's text.
type Source string

const (
	SourceLocal Source = "local"
	SourceCloud Source = "cloud"
	SourceNone  Source = ""
)

// Engine recognizes text in one image file.
type Engine interface {
	Name() string
	Source() Source
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// Chain runs engines in order until one succeeds.
type Chain struct {
	engines []Engine
	logger  *slog.Logger
}

// NewChain builds a chain; nil engines are skipped so callers can pass
// unresolved capabilities directly.
func NewChain(logger *slog.Logger, engines ...Engine) *Chain {
	c := &Chain{logger: logging.OrNop(logger)}
	for _, e := range engines {
		if e != nil {
			c.engines = append(c.engines, e)
		}
	}
	return c
}

// Len returns the number of usable engines.
func (c *Chain) Len() int {
	return len(c.engines)
}

// Recognize returns the first engine's successful result. When every engine
// fails the error carries ERR_404_OCR_FAILED (or ERR_403_OCR_UNAVAILABLE when
// the chain is empty) and wraps each engine's error.
func (c *Chain) Recognize(ctx context.Context, imagePath string) (string, Source, error) {
	if len(c.engines) == 0 {
		return "", SourceNone, serr.New(serr.ErrCodeOCRUnavailable, "no OCR engine available", nil).
			WithSuggestion("install tesseract or configure an OCR.space API key (DOCSIFT_OCR_API_KEY)")
	}

	var errs []error
	for _, e := range c.engines {
		if err := ctx.Err(); err != nil {
			return "", SourceNone, err
		}
		text, err := e.Recognize(ctx, imagePath)
		if err == nil {
			return CleanPageText(text), e.Source(), nil
		}
		c.logger.Warn("ocr engine failed", "engine", e.Name(), "image", imagePath, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
	}
	return "", SourceNone, serr.New(serr.ErrCodeOCRFailed, "all OCR engines failed", errors.Join(errs...))
}

var (
	blankLinesRe   = regexp.MustCompile(`\n\s*\n\s*\n+`)
	ocrArtifactsRe = regexp.MustCompile(`[^\w\s\-.,;:!?()\[\]{}"'&@#$%/\\]`)
	spacesRe       = regexp.MustCompile(`\s+`)
)

// CleanPageText drops OCR noise characters and collapses whitespace.
func CleanPageText(text string) string {
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	text = ocrArtifactsRe.ReplaceAllString(text, " ")
	text = spacesRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
