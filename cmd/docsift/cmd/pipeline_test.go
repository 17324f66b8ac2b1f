package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/logging"
)

var commentTexts = []string{
	"telehealth video visits expand access for rural patients telehealth coverage",
	"telehealth coverage for video visits helps rural patients access care",
	"rural patients rely on telehealth video visits and coverage",
	"physician payment rates fee schedule conversion factor cuts payment",
	"the conversion factor cuts reduce physician payment under fee schedule",
	"fee schedule payment cuts harm physician practices conversion factor",
}

// textWorkspace lays out an extracted corpus and its manifest the way
// acquire and extract leave them.
func textWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	textDir := filepath.Join(dir, "text")
	require.NoError(t, os.MkdirAll(textDir, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "input"), 0o755))

	var csv strings.Builder
	csv.WriteString("Document ID,Organization Name,Category,Attachment Files\n")
	for i, text := range commentTexts {
		id := fmt.Sprintf("CMS-2025-0001-%04d", i+1)
		require.NoError(t, os.WriteFile(filepath.Join(textDir, id+".txt"), []byte(text), 0o644))
		org := []string{"Rural Health Alliance", "Physicians Group"}[i/3]
		fmt.Fprintf(&csv, "%s,%s,Association,https://downloads.test/%s/attachment_1.pdf\n", id, org, id)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "input", "comment_links.csv"), []byte(csv.String()), 0o644))
	return dir
}

func TestRun_IndexAndGroupExistingText(t *testing.T) {
	// Given extracted text and a manifest
	isolate(t)
	dir := textWorkspace(t)

	// When the pipeline runs without acquire and extract
	out, _, err := execute(t, dir, "--json", "run", "--skip-acquire", "--skip-extract", "--k", "2")

	// Then the index holds every document and the grouping covers the corpus
	require.NoError(t, err)
	var report struct {
		RunID   string `json:"run_id"`
		Acquire any    `json:"acquire"`
		Index   struct {
			Total   int `json:"total"`
			Indexed int `json:"indexed"`
		} `json:"index"`
		Group struct {
			RunID       string `json:"run_id"`
			Method      string `json:"method"`
			Documents   int    `json:"documents"`
			EffectiveK  int    `json:"effective_k"`
			Assignments []struct {
				DocumentID   string `json:"document_id"`
				Organization string `json:"organization"`
			} `json:"assignments"`
		} `json:"group"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Nil(t, report.Acquire)
	assert.Equal(t, 6, report.Index.Indexed)
	assert.Equal(t, "tfidf_kmeans", report.Group.Method)
	assert.Equal(t, 6, report.Group.Documents)
	assert.Equal(t, 2, report.Group.EffectiveK)
	assert.Equal(t, report.RunID, report.Group.RunID)
	require.Len(t, report.Group.Assignments, 6)
	assert.NotEmpty(t, report.Group.Assignments[0].Organization)

	// And both reports were written under the run id
	for _, ext := range []string{".csv", ".json"} {
		matches, err := filepath.Glob(filepath.Join(dir, "output", "*"+ext))
		require.NoError(t, err)
		assert.NotEmpty(t, matches, ext)
	}
	assert.FileExists(t, filepath.Join(dir, "output", "document_index.db"))

	// And the index answers searches
	found, _, err := execute(t, dir, "--json", "search", "telehealth")
	require.NoError(t, err)
	var search struct {
		Query   string `json:"query"`
		Results []struct {
			DocumentID   string `json:"document_id"`
			Organization string `json:"organization"`
			Snippet      string `json:"snippet"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(found), &search))
	assert.Equal(t, "telehealth", search.Query)
	require.Len(t, search.Results, 3)
	for _, r := range search.Results {
		assert.Equal(t, "Rural Health Alliance", r.Organization)
		assert.Contains(t, r.Snippet, "<mark>")
	}

	stats, _, err := execute(t, dir, "--json", "index", "stats")
	require.NoError(t, err)
	var st struct {
		Backend   string `json:"backend"`
		Documents int    `json:"documents"`
	}
	require.NoError(t, json.Unmarshal([]byte(stats), &st))
	assert.Equal(t, "sqlite", st.Backend)
	assert.Equal(t, 6, st.Documents)
}

func TestRun_PlainOutput(t *testing.T) {
	isolate(t)
	dir := textWorkspace(t)

	out, errOut, err := execute(t, dir, "run", "--skip-acquire", "--skip-extract", "--skip-group")

	require.NoError(t, err)
	assert.Contains(t, out, "index: 6 documents")
	assert.Contains(t, errOut, "Complete:")
}

func TestSearch_PlainOutput(t *testing.T) {
	isolate(t)
	dir := textWorkspace(t)
	_, _, err := execute(t, dir, "index", "build")
	require.NoError(t, err)

	out, _, err := execute(t, dir, "search", "conversion", "factor", "--no-highlight", "-n", "2")

	require.NoError(t, err)
	assert.Contains(t, out, `2 result(s) for "conversion factor"`)
	assert.NotContains(t, out, "<mark>")

	none, _, err := execute(t, dir, "search", "broadband")
	require.NoError(t, err)
	assert.Contains(t, none, `No documents match "broadband"`)
}

func TestSearch_WithoutIndex(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, t.TempDir(), "search", "telehealth")

	require.Error(t, err)
	assert.Equal(t, serr.ErrCodeIndexNotFound, serr.GetCode(err))
}

func TestSearch_BlankQuery(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, t.TempDir(), "search", "  ")

	require.Error(t, err)
	assert.Equal(t, serr.ErrCodeQueryEmpty, serr.GetCode(err))
}

func TestGroup_UnknownMethod(t *testing.T) {
	isolate(t)
	dir := textWorkspace(t)

	_, _, err := execute(t, dir, "group", "--method", "bogus")

	require.Error(t, err)
	assert.Equal(t, serr.ErrCodeUnknownMethod, serr.GetCode(err))
}

func TestGroup_PrintsClusters(t *testing.T) {
	isolate(t)
	dir := textWorkspace(t)

	out, _, err := execute(t, dir, "group", "--k", "2")

	require.NoError(t, err)
	assert.Contains(t, out, "tfidf_kmeans: 6 document(s) in 2 cluster(s)")
	assert.Contains(t, out, "Cluster 0")
	assert.Contains(t, out, ".csv")
}

func TestAcquire_DownloadsManifest(t *testing.T) {
	// Given a server with two attachments and one missing file
	isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "missing") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("%PDF-1.4 " + r.URL.Path))
	}))
	defer srv.Close()

	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "links.csv")
	csv := "Document ID,Attachment Files\n" +
		fmt.Sprintf("CMS-2025-0001-0001,\"%s/a.pdf,%s/b.pdf\"\n", srv.URL, srv.URL) +
		fmt.Sprintf("CMS-2025-0001-0002,%s/missing.pdf\n", srv.URL)
	require.NoError(t, os.WriteFile(manifestPath, []byte(csv), 0o644))

	// When acquire runs
	out, _, err := execute(t, dir, "--json", "acquire", manifestPath)

	// Then both files are downloaded and the failure is recorded
	require.NoError(t, err)
	var res struct {
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
		Files     []struct {
			LocalPath string `json:"local_path"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Files, 2)
	for _, f := range res.Files {
		assert.FileExists(t, f.LocalPath)
		assert.Equal(t, filepath.Join(dir, "downloads"), filepath.Dir(f.LocalPath))
	}
	failures, err := os.ReadFile(filepath.Join(dir, "logs", logging.DownloadFailuresFile))
	require.NoError(t, err)
	assert.Contains(t, string(failures), "CMS-2025-0001-0002")
}

func TestAcquire_MissingManifest(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, t.TempDir(), "acquire")

	require.Error(t, err)
	assert.Equal(t, serr.ErrCodeFileNotFound, serr.GetCode(err))
}
