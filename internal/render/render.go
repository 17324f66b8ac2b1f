// Package render rasterizes PDF pages to PNG images for OCR.
package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Renderer rasterizes a single PDF page (1-based) into dir and returns the
// image path.
type Renderer interface {
	RenderPage(ctx context.Context, pdfPath string, page int, dir string) (string, error)
}

// Pdftoppm renders pages with poppler's pdftoppm.
type Pdftoppm struct {
	path    string
	dpi     int
	timeout time.Duration
}

// NewPdftoppm returns a renderer using the given binary and resolution.
func NewPdftoppm(path string, dpi int, timeout time.Duration) *Pdftoppm {
	if path == "" {
		path = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 300
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Pdftoppm{path: path, dpi: dpi, timeout: timeout}
}

// Probe resolves the pdftoppm binary and returns its version line.
func Probe(ctx context.Context, path string) (resolved, version string, err error) {
	resolved, err = exec.LookPath(path)
	if err != nil {
		return "", "", fmt.Errorf("%s not found in PATH (install poppler-utils)", path)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	// pdftoppm prints its version on stderr and exits 0 or 99 depending on build.
	out, _ := exec.CommandContext(ctx, resolved, "-v").CombinedOutput()
	version, _, _ = strings.Cut(strings.TrimSpace(string(out)), "\n")
	return resolved, version, nil
}

// DPI returns the render resolution.
func (p *Pdftoppm) DPI() int { return p.dpi }

// RenderPage runs "pdftoppm -f N -l N -png -r DPI -singlefile".
func (p *Pdftoppm) RenderPage(ctx context.Context, pdfPath string, page int, dir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	prefix := filepath.Join(dir, fmt.Sprintf("page-%04d", page))
	cmd := exec.CommandContext(ctx, p.path,
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-png",
		"-r", strconv.Itoa(p.dpi),
		"-singlefile",
		pdfPath,
		prefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("pdftoppm page %d: %s", page, msg)
	}

	out := prefix + ".png"
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("pdftoppm page %d produced no image: %w", page, err)
	}
	return out, nil
}
