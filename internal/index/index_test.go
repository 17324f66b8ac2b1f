package index

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/extract"
	"github.com/Aman-CERP/docsift/internal/manifest"
)

// writeCorpus creates a small text directory with a provenance sidecar for
// the first file only.
func writeCorpus(t *testing.T) (string, manifest.Metadata) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"CMS-2025-0001-0001.txt":              "Rural hospital payments are too low for critical access facilities.",
		"CMS-2025-0001-0002_attachment_2.txt": "Telehealth flexibilities should be made permanent for behavioral health.",
		"CMS-2025-0001-0003.txt":              "Page one" + extract.PageBreak + "[OCR FAILED FOR PAGE 2]" + extract.PageBreak + "hospital outpatient rule",
		"CMS-2025-0001-0004.txt":              "   \n",
		"notes.md":                            "hospital",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	prov := extract.Provenance{"CMS-2025-0001-0001.txt": {
		FileType: extract.FileTypeDOCX, Method: extract.MethodDOCX, ExtractedAt: time.Now(),
	}}
	require.NoError(t, prov.Save(dir))

	meta := manifest.Metadata{
		"CMS-2025-0001-0001": {Organization: "Rural Health Assoc", Category: "Hospital", URLs: []string{"https://d.test/1.docx"}},
		"CMS-2025-0001-0002": {Organization: "Telehealth Now", URLs: []string{"https://d.test/2a.pdf", "https://d.test/2b.pdf"}},
	}
	return dir, meta
}

func backends(t *testing.T) map[string]Index {
	t.Helper()
	dir := t.TempDir()
	return map[string]Index{
		BackendSQLite: NewStore(filepath.Join(dir, "documents.db"), Options{}, nil),
		BackendBleve:  NewBleveStore(filepath.Join(dir, "documents.bleve"), Options{}, nil),
	}
}

func TestBuild_IndexesEveryTextFile(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Given a text directory with one empty file
			textDir, meta := writeCorpus(t)

			// When the index is built
			stats, err := idx.Build(context.Background(), textDir, meta)

			// Then every readable file is indexed and the empty one fails
			require.NoError(t, err)
			assert.Equal(t, 4, stats.Total)
			assert.Equal(t, 3, stats.Indexed)
			assert.Equal(t, 1, stats.Failed)

			st, err := idx.Stats(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 3, st.Documents)
			assert.Equal(t, 1, st.ByMethod[string(extract.MethodDOCX)])
			assert.Equal(t, 1, st.ByMethod[string(extract.MethodOCRLocal)])
			assert.Equal(t, 1, st.ByMethod[string(extract.MethodDirectText)])
			assert.Positive(t, st.Characters)
			assert.Positive(t, st.SizeBytes)
		})
	}
}

func TestBuild_IsDestructive(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			textDir, meta := writeCorpus(t)
			_, err := idx.Build(context.Background(), textDir, meta)
			require.NoError(t, err)

			// Given one file removed
			require.NoError(t, os.Remove(filepath.Join(textDir, "CMS-2025-0001-0001.txt")))

			// When rebuilt
			_, err = idx.Build(context.Background(), textDir, meta)
			require.NoError(t, err)

			// Then the removed document is gone
			results, err := idx.Search(context.Background(), "rural", SearchOptions{Limit: 10})
			require.NoError(t, err)
			assert.Empty(t, results)
			st, err := idx.Stats(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 2, st.Documents)
		})
	}
}

func TestSearch_HighlightsAndJoinsMetadata(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			textDir, meta := writeCorpus(t)
			_, err := idx.Build(context.Background(), textDir, meta)
			require.NoError(t, err)

			// When searching a word present in two documents
			results, err := idx.Search(context.Background(), "hospital", SearchOptions{Limit: 10, Highlight: true})

			// Then both are returned with highlighted snippets
			require.NoError(t, err)
			require.Len(t, results, 2)
			for i, r := range results {
				assert.Equal(t, i+1, r.Rank)
				assert.Contains(t, strings.ToLower(r.Snippet), "<mark>hospital</mark>")
			}
			byFile := map[string]Result{}
			for _, r := range results {
				byFile[r.Filename] = r
			}
			first := byFile["CMS-2025-0001-0001.txt"]
			assert.Equal(t, "CMS-2025-0001-0001", first.DocumentID)
			assert.Equal(t, "Rural Health Assoc", first.Organization)
			assert.Equal(t, "https://d.test/1.docx", first.SourceURL)
			assert.Equal(t, string(extract.FileTypeDOCX), first.FileType)
		})
	}
}

func TestSearch_WithoutHighlightStripsMarkers(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			textDir, meta := writeCorpus(t)
			_, err := idx.Build(context.Background(), textDir, meta)
			require.NoError(t, err)

			results, err := idx.Search(context.Background(), "telehealth", SearchOptions{})

			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.NotContains(t, results[0].Snippet, "<mark>")
			assert.Equal(t, "https://d.test/2b.pdf", results[0].SourceURL)
		})
	}
}

func TestSearch_PhraseQuery(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			textDir, meta := writeCorpus(t)
			_, err := idx.Build(context.Background(), textDir, meta)
			require.NoError(t, err)

			// Words present in one document, but not adjacent
			results, err := idx.Search(context.Background(), "hospital rule", SearchOptions{Limit: 10})
			require.NoError(t, err)
			assert.Empty(t, results)

			results, err = idx.Search(context.Background(), "hospital AND rural", SearchOptions{Limit: 10})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "CMS-2025-0001-0001.txt", results[0].Filename)

			results, err = idx.Search(context.Background(), "outpatient rule", SearchOptions{Limit: 10})
			require.NoError(t, err)
			assert.Len(t, results, 1)
		})
	}
}

func TestSearch_MissingIndex(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := idx.Search(context.Background(), "hospital", SearchOptions{})
			assert.True(t, serr.HasCode(err, serr.ErrCodeIndexNotFound))
			assert.NoFileExists(t, idx.Path())

			_, err = idx.Stats(context.Background())
			assert.True(t, serr.HasCode(err, serr.ErrCodeIndexNotFound))
		})
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := idx.Search(context.Background(), "  ", SearchOptions{})
			assert.True(t, serr.HasCode(err, serr.ErrCodeQueryEmpty))
		})
	}
}

func TestStore_InvalidSyntax(t *testing.T) {
	textDir, meta := writeCorpus(t)
	s := NewStore(filepath.Join(t.TempDir(), "documents.db"), Options{}, nil)
	_, err := s.Build(context.Background(), textDir, meta)
	require.NoError(t, err)

	_, err = s.Search(context.Background(), `hospital AND`, SearchOptions{})

	assert.True(t, serr.HasCode(err, serr.ErrCodeQueryInvalid), "got %v", err)
}

func TestBuild_NoTextFiles(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("%PDF"), 0o644))

			_, err := idx.Build(context.Background(), dir, nil)

			assert.True(t, serr.HasCode(err, serr.ErrCodeNoTextFiles))
		})
	}
}

func TestBuild_MissingTextDirKeepsIndex(t *testing.T) {
	textDir, meta := writeCorpus(t)
	s := NewStore(filepath.Join(t.TempDir(), "documents.db"), Options{}, nil)
	_, err := s.Build(context.Background(), textDir, meta)
	require.NoError(t, err)

	_, err = s.Build(context.Background(), filepath.Join(textDir, "missing"), meta)
	require.Error(t, err)

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.Documents)
}

func TestBuild_CustomIDPattern(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch7_DOC-42.txt"), []byte("hello world"), 0o644))
	ids, err := manifest.NewIDMatcher(`DOC-\d+`)
	require.NoError(t, err)
	s := NewStore(filepath.Join(t.TempDir(), "documents.db"), Options{IDs: ids}, nil)
	_, err = s.Build(context.Background(), dir, manifest.Metadata{"DOC-42": {Organization: "Acme"}})
	require.NoError(t, err)

	results, err := s.Search(context.Background(), "hello", SearchOptions{})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "DOC-42", results[0].DocumentID)
	assert.Equal(t, "Acme", results[0].Organization)
}

func TestOpen_Backends(t *testing.T) {
	idx, err := Open("x.db", Options{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Store{}, idx)

	idx, err = Open("x.bleve", Options{Backend: "bleve"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &BleveStore{}, idx)

	_, err = Open("x", Options{Backend: "lucene"}, nil)
	assert.True(t, serr.HasCode(err, serr.ErrCodeConfigInvalid))
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct{ in, want string }{
		{"hospital", "hospital"},
		{"  rural hospital ", `"rural hospital"`},
		{"rural AND hospital", "rural AND hospital"},
		{"rural OR urban", "rural OR urban"},
		{"hospital NOT rural", "hospital NOT rural"},
		{"hosp* care", "hosp* care"},
		{`"rural hospital" payments`, `"rural hospital" payments`},
		{"rural and hospital", `"rural and hospital"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeQuery(tt.in), tt.in)
	}
}
