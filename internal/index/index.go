// Package index builds and queries the full-text index over extracted text
// files. The default backend is a single SQLite file with an FTS5 table; a
// bleve directory can be selected instead.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/extract"
	"github.com/Aman-CERP/docsift/internal/manifest"
)

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendBleve  = "bleve"
)

// Default highlight markers and snippet length.
const (
	DefaultHighlightOpen  = "<mark>"
	DefaultHighlightClose = "</mark>"
	DefaultSnippetTokens  = 64
	DefaultLimit          = 10
)

// Entry is one indexed text file with its joined metadata.
type Entry struct {
	Filename       string
	DocumentID     string
	SourceURL      string
	Organization   string
	Category       string
	FileType       string
	Method         string
	CharacterCount int
	Content        string
}

// Result is one search hit. Score is higher for better matches.
type Result struct {
	Rank           int     `json:"rank"`
	Score          float64 `json:"score"`
	Filename       string  `json:"filename"`
	DocumentID     string  `json:"document_id"`
	SourceURL      string  `json:"source_url,omitempty"`
	Organization   string  `json:"organization,omitempty"`
	Category       string  `json:"category,omitempty"`
	FileType       string  `json:"file_type,omitempty"`
	Method         string  `json:"extraction_method,omitempty"`
	CharacterCount int     `json:"character_count"`
	Snippet        string  `json:"snippet"`
}

// SearchOptions controls a query.
type SearchOptions struct {
	Limit     int
	Highlight bool
}

// BuildStats summarizes a rebuild.
type BuildStats struct {
	Total   int `json:"total"`
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
}

// Stats describes an existing index.
type Stats struct {
	Backend    string         `json:"backend"`
	Path       string         `json:"path"`
	Documents  int            `json:"documents"`
	Characters int64          `json:"characters"`
	ByFileType map[string]int `json:"by_file_type"`
	ByMethod   map[string]int `json:"by_extraction_method"`
	SizeBytes  int64          `json:"size_bytes"`
}

// Index is implemented by every backend.
type Index interface {
	Build(ctx context.Context, textDir string, meta manifest.Metadata) (*BuildStats, error)
	Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error)
	Stats(ctx context.Context) (*Stats, error)
	Path() string
}

// Options configures a backend.
type Options struct {
	Backend        string
	HighlightOpen  string
	HighlightClose string
	SnippetTokens  int
	// IDs derives document ids from file names; nil uses the default pattern.
	IDs *manifest.IDMatcher
	// LockTimeout bounds the wait for a concurrent build.
	LockTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.HighlightOpen == "" {
		o.HighlightOpen = DefaultHighlightOpen
	}
	if o.HighlightClose == "" {
		o.HighlightClose = DefaultHighlightClose
	}
	if o.SnippetTokens <= 0 || o.SnippetTokens > 64 {
		o.SnippetTokens = DefaultSnippetTokens
	}
	if o.IDs == nil {
		o.IDs, _ = manifest.NewIDMatcher("")
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = 30 * time.Second
	}
	return o
}

// Open returns the backend named by opts.Backend rooted at path. Nothing is
// touched on disk until Build, Search or Stats is called.
func Open(path string, opts Options, logger *slog.Logger) (Index, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendSQLite:
		return NewStore(path, opts, logger), nil
	case BackendBleve:
		return NewBleveStore(path, opts, logger), nil
	default:
		return nil, serr.New(serr.ErrCodeConfigInvalid, fmt.Sprintf("unknown index backend %q", opts.Backend), nil).
			WithSuggestion("Use 'sqlite' or 'bleve'")
	}
}

// textFiles lists the *.txt files of dir in name order.
func textFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, serr.New(serr.ErrCodeFileNotFound, fmt.Sprintf("text directory not found: %s", dir), err).
			WithSuggestion("Run 'docsift extract' first")
	}
	if err != nil {
		return nil, serr.IOError("cannot read text directory", err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".txt") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, serr.New(serr.ErrCodeNoTextFiles, fmt.Sprintf("no text files in %s", dir), nil).
			WithSuggestion("Run 'docsift extract' first")
	}
	return files, nil
}

// loader turns text files into entries, joining metadata and provenance.
type loader struct {
	ids    *manifest.IDMatcher
	meta   manifest.Metadata
	prov   extract.Provenance
	logger *slog.Logger
}

func newLoader(textDir string, meta manifest.Metadata, ids *manifest.IDMatcher, logger *slog.Logger) *loader {
	prov, err := extract.LoadProvenance(textDir)
	if err != nil {
		logger.Warn("provenance unreadable, inferring from content", "error", err)
		prov = extract.Provenance{}
	}
	return &loader{ids: ids, meta: meta, prov: prov, logger: logger}
}

// load reads one file. Unreadable and empty files return an error.
func (l *loader) load(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return Entry{}, fmt.Errorf("empty text")
	}

	name := filepath.Base(path)
	rec := l.prov.Lookup(name, text)
	id := l.ids.DocumentID(name)
	m := l.meta[id]
	return Entry{
		Filename:       name,
		DocumentID:     id,
		SourceURL:      m.SourceURL(manifest.AttachmentNumber(name)),
		Organization:   m.Organization,
		Category:       m.Category,
		FileType:       string(rec.FileType),
		Method:         string(rec.Method),
		CharacterCount: len([]rune(text)),
		Content:        text,
	}, nil
}

// each loads every file and calls fn for the readable ones.
func (l *loader) each(ctx context.Context, files []string, stats *BuildStats, fn func(Entry) error) error {
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Total++
		e, err := l.load(path)
		if err != nil {
			stats.Failed++
			l.logger.Warn("text file skipped", "file", filepath.Base(path), "error", err)
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
		stats.Indexed++
	}
	return nil
}

// buildLock serializes builds of the index at path across processes.
func buildLock(ctx context.Context, path string, timeout time.Duration) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, serr.New(serr.ErrCodeFileWrite, "cannot create index directory", err)
	}
	lock := flock.New(path + ".lock")
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ok, err := lock.TryLockContext(lctx, 100*time.Millisecond)
	if err != nil || !ok {
		return nil, serr.New(serr.ErrCodeIndexLocked, "another build holds the index lock", err).
			WithDetail("lock", lock.Path())
	}
	return lock, nil
}

// stripMarkers removes highlight markers from a snippet.
func stripMarkers(s, open, close string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, open, ""), close, "")
}
