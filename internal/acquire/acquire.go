// Package acquire downloads the attachments listed in a manifest into a
// local directory. Downloads are additive: a file that already exists is
// never fetched again.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/logging"
	"github.com/Aman-CERP/docsift/internal/manifest"
)

// File is one acquired attachment.
type File struct {
	DocumentID string `json:"document_id"`
	URL        string `json:"url"`
	LocalPath  string `json:"local_path"`
	ByteSize   int64  `json:"byte_size"`
	// Skipped is true when the file already existed and was not fetched.
	Skipped bool `json:"skipped"`
}

// Failure is an attachment that could not be downloaded.
type Failure struct {
	DocumentID string `json:"document_id"`
	URL        string `json:"url"`
	Reason     string `json:"reason"`
}

// Result summarizes a Fetch call. Succeeded counts files downloaded by this
// call; Skipped counts files that were already present. Duplicates counts
// URLs whose destination another URL in the manifest already claimed.
type Result struct {
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Duplicates int       `json:"duplicates"`
	Invalid    int       `json:"invalid"`
	Files     []File    `json:"files"`
	Failures  []Failure `json:"failures"`
}

// Total returns the number of valid URLs processed.
func (r *Result) Total() int {
	return r.Succeeded + r.Failed + r.Skipped + r.Duplicates
}

// Options configures an Acquirer.
type Options struct {
	Dest           string
	MaxRetries     int
	Timeout        time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	UserAgent      string
	// GCSCredentialsFile is used for gs:// URLs; empty means application default credentials.
	GCSCredentialsFile string

	FailureLog *logging.FailureLog
	OnProgress func(current, total int, name string)

	// Sources overrides the source per URL scheme.
	Sources map[string]Source
}

// Acquirer downloads manifest attachments.
type Acquirer struct {
	opts    Options
	retry   serr.RetryConfig
	sources map[string]Source
	gcs     *GCSSource
	logger  *slog.Logger
}

// New creates an Acquirer.
func New(opts Options, logger *slog.Logger) *Acquirer {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 8 * time.Second
	}
	logger = logging.OrNop(logger)

	a := &Acquirer{opts: opts, logger: logger, sources: make(map[string]Source)}
	httpSrc := NewHTTPSource(opts.Timeout, opts.UserAgent)
	a.gcs = &GCSSource{CredentialsFile: opts.GCSCredentialsFile}
	a.sources["http"] = httpSrc
	a.sources["https"] = httpSrc
	a.sources["gs"] = a.gcs
	for scheme, src := range opts.Sources {
		a.sources[scheme] = src
	}

	a.retry = serr.RetryConfig{
		MaxAttempts:  opts.MaxRetries,
		InitialDelay: opts.InitialBackoff,
		MaxDelay:     opts.MaxBackoff,
		Multiplier:   2,
		Jitter:       true,
	}
	return a
}

// Close releases network clients.
func (a *Acquirer) Close() error {
	return a.gcs.Close()
}

type task struct {
	ref  manifest.SourceReference
	url  *url.URL
	dest string
}

// plan validates every URL and derives destination paths, in manifest
// order. Invalid URLs and repeated destinations are counted and logged but
// never fetched.
func (a *Acquirer) plan(refs []manifest.SourceReference) (tasks []task, invalid, duplicates int) {
	seen := make(map[string]bool)
	for _, ref := range refs {
		for i, raw := range ref.URLs {
			u, err := ParseURL(raw)
			if err != nil {
				invalid++
				a.logger.Warn("invalid url skipped", "document_id", ref.DocumentID, "url", raw, "error", err)
				continue
			}
			dest := filepath.Join(a.opts.Dest, FileName(ref.DocumentID, u, i))
			if seen[dest] {
				duplicates++
				a.logger.Warn("duplicate destination skipped",
					"document_id", ref.DocumentID, "url", raw, "file", filepath.Base(dest))
				continue
			}
			seen[dest] = true
			tasks = append(tasks, task{ref: ref, url: u, dest: dest})
		}
	}
	return tasks, invalid, duplicates
}

// Fetch downloads every attachment of refs. It returns an error only when
// the destination cannot be created or ctx is cancelled; in the latter case
// the counts so far are returned too.
func (a *Acquirer) Fetch(ctx context.Context, refs []manifest.SourceReference) (*Result, error) {
	if err := os.MkdirAll(a.opts.Dest, 0o755); err != nil {
		return nil, serr.New(serr.ErrCodeFileWrite, fmt.Sprintf("cannot create %s", a.opts.Dest), err)
	}

	tasks, invalid, duplicates := a.plan(refs)
	res := &Result{Invalid: invalid, Duplicates: duplicates}
	a.logger.Info("acquisition started", "documents", len(refs), "files", len(tasks),
		"invalid", invalid, "duplicates", duplicates, "dest", a.opts.Dest)

	for i, t := range tasks {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if a.opts.OnProgress != nil {
			a.opts.OnProgress(i+1, len(tasks), filepath.Base(t.dest))
		}

		file := File{DocumentID: t.ref.DocumentID, URL: t.url.String(), LocalPath: t.dest}
		if info, err := os.Stat(t.dest); err == nil && info.Size() > 0 {
			file.Skipped, file.ByteSize = true, info.Size()
			res.Skipped++
			res.Files = append(res.Files, file)
			a.logger.Debug("existing file skipped", "file", filepath.Base(t.dest))
			continue
		}

		n, err := a.download(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Failed++
			res.Failures = append(res.Failures, Failure{DocumentID: t.ref.DocumentID, URL: file.URL, Reason: serr.Reason(err)})
			a.logger.Warn("download failed", "document_id", t.ref.DocumentID, "url", file.URL, "error", err)
			if ferr := a.opts.FailureLog.Record(t.ref.DocumentID, file.URL); ferr != nil {
				a.logger.Warn("failed to record download failure", "error", ferr)
			}
			continue
		}
		file.ByteSize = n
		res.Succeeded++
		res.Files = append(res.Files, file)
		a.logger.Info("downloaded", "file", filepath.Base(t.dest), "bytes", n)
	}

	a.logger.Info("acquisition complete",
		"succeeded", res.Succeeded, "skipped", res.Skipped, "failed", res.Failed,
		"duplicates", res.Duplicates, "invalid", res.Invalid)
	return res, nil
}

func (a *Acquirer) download(ctx context.Context, t task) (int64, error) {
	src, ok := a.sources[strings.ToLower(t.url.Scheme)]
	if !ok {
		return 0, serr.New(serr.ErrCodeInvalidURL, fmt.Sprintf("no source for scheme %q", t.url.Scheme), nil)
	}

	cfg := a.retry
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		a.logger.Warn("download attempt failed",
			"url", t.url.String(), "attempt", attempt, "wait", wait, "error", err)
	}
	return serr.RetryWithResult(ctx, cfg, func() (int64, error) {
		return a.attempt(ctx, src, t)
	})
}

// attempt streams into "<dest>.part" and renames on success, so an
// interrupted download never leaves a file that looks complete.
func (a *Acquirer) attempt(ctx context.Context, src Source, t task) (int64, error) {
	part := t.dest + ".part"
	f, err := os.Create(part)
	if err != nil {
		return 0, serr.Permanent(writeError(part, err))
	}
	w := &trackingWriter{w: f}
	n, fetchErr := src.Fetch(ctx, t.url, w)
	closeErr := f.Close()

	switch {
	case w.err != nil:
		_ = os.Remove(part)
		return 0, serr.Permanent(writeError(part, w.err))
	case fetchErr != nil:
		_ = os.Remove(part)
		return 0, fetchErr
	case closeErr != nil:
		_ = os.Remove(part)
		return 0, serr.Permanent(writeError(part, closeErr))
	}
	if err := os.Rename(part, t.dest); err != nil {
		_ = os.Remove(part)
		return 0, serr.Permanent(writeError(t.dest, err))
	}
	return n, nil
}

func writeError(path string, err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return serr.New(serr.ErrCodeDiskFull, "disk full", err).WithDetail("path", path)
	}
	return serr.New(serr.ErrCodeFileWrite, fmt.Sprintf("cannot write %s", filepath.Base(path)), err)
}

// trackingWriter remembers local write failures so they are not mistaken
// for network errors.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil && t.err == nil {
		t.err = err
	}
	return n, err
}
