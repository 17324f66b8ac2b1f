package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"
	"github.com/blevesearch/bleve/v2/search/query"

	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/logging"
	"github.com/Aman-CERP/docsift/internal/manifest"
)

const (
	textAnalyzerName = "docsift_text"
	charactersKey    = "characters"
	bleveMarkOpen    = "<mark>"
	bleveMarkClose   = "</mark>"
)

var storedFields = []string{
	"filename", "document_id", "source_url", "organization", "category",
	"file_type", "extraction_method", "character_count",
}

// BleveStore is the bleve index backend. The index is a directory at path.
type BleveStore struct {
	path   string
	opts   Options
	logger *slog.Logger
}

// NewBleveStore returns a bleve backend rooted at path.
func NewBleveStore(path string, opts Options, logger *slog.Logger) *BleveStore {
	return &BleveStore{path: path, opts: opts.withDefaults(), logger: logging.OrNop(logger)}
}

// Path returns the index directory.
func (b *BleveStore) Path() string { return b.path }

type bleveDocument struct {
	Filename       string `json:"filename"`
	DocumentID     string `json:"document_id"`
	SourceURL      string `json:"source_url"`
	Organization   string `json:"organization"`
	Category       string `json:"category"`
	FileType       string `json:"file_type"`
	Method         string `json:"extraction_method"`
	CharacterCount int    `json:"character_count"`
	Content        string `json:"content"`
}

// createIndexMapping analyzes content with lowercase and English stop words;
// metadata fields are stored as keywords.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(textAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name, en.StopName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}
	im.DefaultAnalyzer = textAnalyzerName

	doc := bleve.NewDocumentMapping()
	content := bleve.NewTextFieldMapping()
	content.Analyzer = textAnalyzerName
	content.Store = true
	content.IncludeTermVectors = true
	doc.AddFieldMappingsAt("content", content)

	for _, name := range storedFields {
		if name == "character_count" {
			doc.AddFieldMappingsAt(name, bleve.NewNumericFieldMapping())
			continue
		}
		kw := bleve.NewKeywordFieldMapping()
		kw.IncludeInAll = false
		doc.AddFieldMappingsAt(name, kw)
	}
	im.DefaultMapping = doc
	return im, nil
}

// Build recreates the index directory from every text file in textDir.
func (b *BleveStore) Build(ctx context.Context, textDir string, meta manifest.Metadata) (*BuildStats, error) {
	files, err := textFiles(textDir)
	if err != nil {
		return nil, err
	}
	lock, err := buildLock(ctx, b.path, b.opts.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	im, err := createIndexMapping()
	if err != nil {
		return nil, serr.New(serr.ErrCodeIndexFailed, "cannot create index mapping", err)
	}
	if err := os.RemoveAll(b.path); err != nil {
		return nil, serr.New(serr.ErrCodeFileWrite, "cannot clear index", err)
	}
	idx, err := bleve.New(b.path, im)
	if err != nil {
		return nil, serr.New(serr.ErrCodeIndexFailed, "cannot create index", err)
	}
	defer func() { _ = idx.Close() }()

	started := time.Now()
	stats := &BuildStats{}
	var characters int64
	batch := idx.NewBatch()
	err = newLoader(textDir, meta, b.opts.IDs, b.logger).each(ctx, files, stats, func(e Entry) error {
		characters += int64(e.CharacterCount)
		if err := batch.Index(e.Filename, bleveDocument(e)); err != nil {
			return fmt.Errorf("failed to add %s to batch: %w", e.Filename, err)
		}
		if batch.Size() >= 100 {
			if err := idx.Batch(batch); err != nil {
				return fmt.Errorf("failed to execute batch: %w", err)
			}
			batch = idx.NewBatch()
		}
		return nil
	})
	if err == nil && batch.Size() > 0 {
		err = idx.Batch(batch)
	}
	if err != nil {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		return stats, serr.New(serr.ErrCodeIndexFailed, "index build failed", err)
	}
	if err := idx.SetInternal([]byte(charactersKey), []byte(strconv.FormatInt(characters, 10))); err != nil {
		b.logger.Warn("failed to record character total", "error", err)
	}

	b.logger.Info("index built",
		"backend", BackendBleve, "path", b.path,
		"total", stats.Total, "indexed", stats.Indexed, "failed", stats.Failed,
		"duration", time.Since(started))
	return stats, nil
}

func (b *BleveStore) open() (bleve.Index, error) {
	if _, err := os.Stat(b.path); err != nil {
		return nil, serr.New(serr.ErrCodeIndexNotFound, fmt.Sprintf("index not found: %s", b.path), err).
			WithSuggestion("Run 'docsift index build' first")
	}
	idx, err := bleve.Open(b.path)
	if err != nil {
		return nil, serr.New(serr.ErrCodeIndexFailed, "cannot open index", err).
			WithSuggestion("Rebuild with 'docsift index build'")
	}
	return idx, nil
}

// bleveQuery maps the FTS-style query language onto bleve: a quoted phrase
// becomes a phrase query; AND, OR, NOT and trailing wildcards become a
// query string over the content field.
func bleveQuery(raw string) (query.Query, error) {
	q := NormalizeQuery(raw)
	if isPhrase(q) {
		pq := bleve.NewMatchPhraseQuery(strings.Trim(q, `"`))
		pq.SetField("content")
		return pq, nil
	}
	if strings.Contains(q, `"`) {
		qs := bleve.NewQueryStringQuery(operatorRe.ReplaceAllString(q, " "))
		if _, err := qs.Parse(); err != nil {
			return nil, err
		}
		return qs, nil
	}

	words := strings.Fields(q)
	prefix := make([]string, len(words))
	var terms []string
	var termPrefix []string
	for i := 0; i < len(words); i++ {
		switch words[i] {
		case "AND":
			if len(termPrefix) > 0 && termPrefix[len(termPrefix)-1] == "" {
				termPrefix[len(termPrefix)-1] = "+"
			}
			if i+1 < len(prefix) && prefix[i+1] == "" {
				prefix[i+1] = "+"
			}
			continue
		case "OR":
			continue
		case "NOT":
			if i+1 < len(prefix) {
				prefix[i+1] = "-"
			}
			continue
		}
		term := words[i]
		if !strings.HasPrefix(term, `"`) {
			term = strings.ToLower(term)
		}
		terms = append(terms, "content:"+term)
		termPrefix = append(termPrefix, prefix[i])
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("no search terms")
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = termPrefix[i] + t
	}
	qs := bleve.NewQueryStringQuery(strings.Join(parts, " "))
	if _, err := qs.Parse(); err != nil {
		return nil, err
	}
	return qs, nil
}

// Search runs a query with html highlighting of the content field.
func (b *BleveStore) Search(ctx context.Context, raw string, opts SearchOptions) ([]Result, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, serr.New(serr.ErrCodeQueryEmpty, "query is empty", nil)
	}
	idx, err := b.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = idx.Close() }()
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	q, err := bleveQuery(raw)
	if err != nil {
		return nil, serr.New(serr.ErrCodeQueryInvalid, "invalid search syntax", err).WithDetail("query", raw)
	}
	req := bleve.NewSearchRequestOptions(q, opts.Limit, 0, false)
	req.Fields = storedFields
	req.Highlight = bleve.NewHighlightWithStyle(html.Name)
	req.Highlight.AddField("content")

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, serr.New(serr.ErrCodeIndexFailed, "search failed", err)
	}

	results := make([]Result, 0, len(res.Hits))
	for i, hit := range res.Hits {
		r := Result{
			Rank:           i + 1,
			Score:          hit.Score,
			Filename:       fieldString(hit.Fields, "filename"),
			DocumentID:     fieldString(hit.Fields, "document_id"),
			SourceURL:      fieldString(hit.Fields, "source_url"),
			Organization:   fieldString(hit.Fields, "organization"),
			Category:       fieldString(hit.Fields, "category"),
			FileType:       fieldString(hit.Fields, "file_type"),
			Method:         fieldString(hit.Fields, "extraction_method"),
			CharacterCount: fieldInt(hit.Fields, "character_count"),
		}
		if r.Filename == "" {
			r.Filename = hit.ID
		}
		snippet := strings.Join(hit.Fragments["content"], " ... ")
		if opts.Highlight {
			snippet = strings.ReplaceAll(snippet, bleveMarkOpen, b.opts.HighlightOpen)
			snippet = strings.ReplaceAll(snippet, bleveMarkClose, b.opts.HighlightClose)
		} else {
			snippet = stripMarkers(snippet, bleveMarkOpen, bleveMarkClose)
		}
		r.Snippet = snippet
		results = append(results, r)
	}
	return results, nil
}

// Stats reports document counts from term facets and the directory size.
func (b *BleveStore) Stats(ctx context.Context) (*Stats, error) {
	idx, err := b.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = idx.Close() }()

	st := &Stats{Backend: BackendBleve, Path: b.path, ByFileType: map[string]int{}, ByMethod: map[string]int{}}
	count, err := idx.DocCount()
	if err != nil {
		return nil, serr.New(serr.ErrCodeIndexFailed, "cannot read index stats", err)
	}
	st.Documents = int(count)
	if raw, err := idx.GetInternal([]byte(charactersKey)); err == nil && len(raw) > 0 {
		st.Characters, _ = strconv.ParseInt(string(raw), 10, 64)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), 0, 0, false)
	req.AddFacet("file_type", bleve.NewFacetRequest("file_type", 50))
	req.AddFacet("extraction_method", bleve.NewFacetRequest("extraction_method", 50))
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, serr.New(serr.ErrCodeIndexFailed, "cannot read index stats", err)
	}
	facetCounts(res.Facets["file_type"], st.ByFileType)
	facetCounts(res.Facets["extraction_method"], st.ByMethod)

	_ = filepath.WalkDir(b.path, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			if info, ierr := d.Info(); ierr == nil {
				st.SizeBytes += info.Size()
			}
		}
		return nil
	})
	return st, nil
}

func facetCounts(fr *search.FacetResult, counts map[string]int) {
	if fr == nil || fr.Terms == nil {
		return
	}
	for _, t := range fr.Terms.Terms() {
		counts[t.Term] += t.Count
	}
}

func fieldString(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

func fieldInt(fields map[string]interface{}, name string) int {
	if v, ok := fields[name].(float64); ok {
		return int(v)
	}
	return 0
}
