package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Tesseract runs the tesseract binary on a page image.
type Tesseract struct {
	path     string
	language string
	timeout  time.Duration
}

// NewTesseract returns an engine for the given binary. Use ProbeTesseract to
// check it is installed.
func NewTesseract(path, language string, timeout time.Duration) *Tesseract {
	if path == "" {
		path = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Tesseract{path: path, language: language, timeout: timeout}
}

// ProbeTesseract resolves the binary and returns its version line.
func ProbeTesseract(ctx context.Context, path string) (resolved, version string, err error) {
	resolved, err = exec.LookPath(path)
	if err != nil {
		return "", "", fmt.Errorf("%s not found in PATH", path)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, resolved, "--version").CombinedOutput()
	if err != nil {
		return resolved, "", fmt.Errorf("%s --version failed: %w", resolved, err)
	}
	version, _, _ = strings.Cut(strings.TrimSpace(string(out)), "\n")
	return resolved, version, nil
}

func (t *Tesseract) Name() string   { return "tesseract" }
func (t *Tesseract) Source() Source { return SourceLocal }

// Recognize runs "tesseract <image> stdout" with uniform-block segmentation.
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.path, imagePath, "stdout",
		"-l", t.language,
		"--oem", "3",
		"--psm", "6",
		"-c", "preserve_interword_spaces=1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("tesseract failed: %s", msg)
	}
	return stdout.String(), nil
}
