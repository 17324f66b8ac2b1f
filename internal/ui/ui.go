// Package ui renders pipeline progress in the terminal: a bubbletea view for
// interactive sessions and line-oriented text for CI, pipes and --no-tui.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is one step of the docsift pipeline.
type Stage int

const (
	// StageAcquire downloads source documents.
	StageAcquire Stage = iota
	// StageExtract converts documents to text.
	StageExtract
	// StageIndex builds the full-text index.
	StageIndex
	// StageGroup clusters the corpus.
	StageGroup
	// StageComplete indicates the run finished.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageAcquire:
		return "Acquire"
	case StageExtract:
		return "Extract"
	case StageIndex:
		return "Index"
	case StageGroup:
		return "Group"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short tag used in plain output.
func (s Stage) Icon() string {
	switch s {
	case StageAcquire:
		return "FETCH"
	case StageExtract:
		return "TEXT"
	case StageIndex:
		return "INDEX"
	case StageGroup:
		return "GROUP"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent reports progress within a stage.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	Item    string
	Message string
}

// ErrorEvent is a per-item failure. Warnings do not fail the run.
type ErrorEvent struct {
	Item   string
	Err    error
	IsWarn bool
}

// StageSummary is the outcome of one finished stage.
type StageSummary struct {
	Stage     Stage
	Processed int
	Skipped   int
	Failed    int
	Duration  time.Duration
	Detail    string
}

// CompletionStats summarizes a whole run.
type CompletionStats struct {
	RunID    string
	Stages   []StageSummary
	Duration time.Duration
	Errors   int
	Warnings int
	Outputs  []string
}

// Processed sums processed items over every stage.
func (c CompletionStats) Processed() int {
	n := 0
	for _, s := range c.Stages {
		n += s.Processed
	}
	return n
}

// Renderer displays pipeline progress.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures a renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	Workspace  string
}

// ConfigOption modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithWorkspace sets the workspace path shown in the header.
func WithWorkspace(dir string) ConfigOption {
	return func(c *Config) {
		c.Workspace = dir
	}
}

// NewConfig creates a Config writing to output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks the TUI for interactive terminals and plain text for CI,
// pipes, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI reports whether a CI environment is detected.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
