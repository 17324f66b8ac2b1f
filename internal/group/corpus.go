package group

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/extract"
	"github.com/Aman-CERP/docsift/internal/logging"
	"github.com/Aman-CERP/docsift/internal/manifest"
)

// Document is one extracted text with its joined metadata.
type Document struct {
	Filename       string
	DocumentID     string
	Organization   string
	Category       string
	SourceURL      string
	FileType       string
	Method         string
	Text           string
	CharacterCount int
	WordCount      int
}

// Corpus is the ordered set of documents analyzed in one run.
type Corpus struct {
	Documents []Document
}

// Len returns the number of documents.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Documents)
}

// LoadCorpus reads every *.txt file in textDir, in name order. Documents
// with blank text are skipped and logged; metadata is joined by document
// id and provenance comes from the extraction manifest when present.
func LoadCorpus(textDir string, meta manifest.Metadata, ids *manifest.IDMatcher, logger *slog.Logger) (*Corpus, error) {
	logger = logging.OrNop(logger)
	entries, err := os.ReadDir(textDir)
	if os.IsNotExist(err) {
		return nil, serr.New(serr.ErrCodeFileNotFound, fmt.Sprintf("text directory not found: %s", textDir), err).
			WithSuggestion("Run 'docsift extract' first")
	}
	if err != nil {
		return nil, serr.IOError("cannot read text directory", err)
	}

	prov, err := extract.LoadProvenance(textDir)
	if err != nil {
		logger.Warn("provenance unreadable, inferring from content", "error", err)
		prov = extract.Provenance{}
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".txt") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	corpus := &Corpus{}
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(textDir, name))
		if err != nil {
			logger.Warn("skipping unreadable text", "file", name, "error", err)
			continue
		}
		text := string(data)
		if strings.TrimSpace(text) == "" {
			logger.Warn("skipping empty text", "file", name)
			continue
		}
		id := ids.DocumentID(name)
		m := meta[id]
		rec := prov.Lookup(name, text)
		corpus.Documents = append(corpus.Documents, Document{
			Filename:       name,
			DocumentID:     id,
			Organization:   m.Organization,
			Category:       m.Category,
			SourceURL:      m.SourceURL(manifest.AttachmentNumber(name)),
			FileType:       string(rec.FileType),
			Method:         string(rec.Method),
			Text:           text,
			CharacterCount: utf8.RuneCountInString(text),
			WordCount:      len(strings.Fields(text)),
		})
	}
	logger.Info("corpus loaded", "dir", textDir, "documents", len(corpus.Documents), "files", len(names))
	return corpus, nil
}
