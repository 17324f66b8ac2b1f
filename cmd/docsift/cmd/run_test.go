package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// logText returns the structured log written by the commands run so far.
func logText(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(os.Getenv("DOCSIFT_LOG_FILE"))
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

const scannedText = "Rural clinics depend on telehealth video visits and broadband."

// fakeTools writes shell stand-ins for pdftoppm and tesseract into dir and
// points the workspace configuration at them. The tesseract stand-in reads
// every page as scannedText.
func fakeTools(t *testing.T, dir string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stand-in binaries need a POSIX shell")
	}
	bin := filepath.Join(dir, "bin")
	require.NoError(t, os.MkdirAll(bin, 0o755))

	pdftoppm := "#!/bin/sh\n" +
		"if [ \"$1\" = \"-v\" ]; then echo 'pdftoppm version 24.02.0' >&2; exit 0; fi\n" +
		"for last; do :; done\n" +
		"printf 'png' > \"$last.png\"\n"
	tesseract := "#!/bin/sh\n" +
		"if [ \"$1\" = \"--version\" ]; then echo 'tesseract 5.3.4'; exit 0; fi\n" +
		"echo '" + scannedText + "'\n"
	require.NoError(t, os.WriteFile(filepath.Join(bin, "pdftoppm"), []byte(pdftoppm), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bin, "tesseract"), []byte(tesseract), 0o755))

	cfg := "ocr:\n  disable_remote: true\n  tesseract_path: " + filepath.Join(bin, "tesseract") + "\n" +
		"extract:\n  pdftoppm_path: " + filepath.Join(bin, "pdftoppm") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docsift.yaml"), []byte(cfg), 0o644))
}

// commentServer serves two text PDFs, one scanned PDF and one DOCX under
// regulations-style attachment paths.
func commentServer(t *testing.T) *httptest.Server {
	t.Helper()
	read := func(name string) []byte {
		data, err := os.ReadFile(filepath.Join("testdata", name))
		require.NoError(t, err)
		return data
	}
	docxPath := filepath.Join(t.TempDir(), "letter.docx")
	writeDOCX(t, docxPath, `<w:p><w:r><w:t>Physician practices cannot absorb another conversion factor cut.</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t>The fee schedule payment update should track inflation.</w:t></w:r></w:p>`)
	docx, err := os.ReadFile(docxPath)
	require.NoError(t, err)

	files := map[string][]byte{
		"/CMS-2025-0001-0001/attachment_1.pdf":  read("telehealth.pdf"),
		"/CMS-2025-0001-0002/attachment_1.pdf":  read("payment.pdf"),
		"/CMS-2025-0001-0003/attachment_1.pdf":  read("scanned.pdf"),
		"/CMS-2025-0001-0004/attachment_1.docx": docx,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_FourDocumentPipeline(t *testing.T) {
	// Given a manifest of two text PDFs, a scanned PDF and a DOCX on a server
	isolate(t)
	dir := t.TempDir()
	fakeTools(t, dir)
	srv := commentServer(t)

	manifestPath := filepath.Join(dir, "input", "comment_links.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(manifestPath), 0o755))
	var csv strings.Builder
	csv.WriteString("Document ID,Organization Name,Category,Attachment Files\n")
	rows := []struct{ id, org, category, ext string }{
		{"CMS-2025-0001-0001", "Rural Health Alliance", "Association", "pdf"},
		{"CMS-2025-0001-0002", "Physicians Group", "Association", "pdf"},
		{"CMS-2025-0001-0003", "Valley Rural Clinic", "Individual", "pdf"},
		{"CMS-2025-0001-0004", "Physicians Group", "Association", "docx"},
	}
	for _, r := range rows {
		fmt.Fprintf(&csv, "%s,%s,%s,%s/%s/attachment_1.%s\n", r.id, r.org, r.category, srv.URL, r.id, r.ext)
	}
	require.NoError(t, os.WriteFile(manifestPath, []byte(csv.String()), 0o644))

	// When the whole pipeline runs
	out, _, err := execute(t, dir, "--json", "run", manifestPath, "--k", "2")

	// Then every stage covers all four documents
	require.NoError(t, err)
	var report struct {
		Acquire struct {
			Succeeded int `json:"succeeded"`
			Failed    int `json:"failed"`
		} `json:"acquire"`
		Extract struct {
			Total     int            `json:"total"`
			Succeeded int            `json:"succeeded"`
			ByMethod  map[string]int `json:"by_method"`
		} `json:"extract"`
		Index struct {
			Indexed int `json:"indexed"`
		} `json:"index"`
		Group struct {
			Documents   int `json:"documents"`
			EffectiveK  int `json:"effective_k"`
			Assignments []struct {
				DocumentID   string `json:"document_id"`
				Organization string `json:"organization"`
				ClusterLabel int    `json:"cluster_id"`
			} `json:"assignments"`
		} `json:"group"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, 4, report.Acquire.Succeeded)
	assert.Zero(t, report.Acquire.Failed)
	assert.Equal(t, 4, report.Extract.Total)
	assert.Equal(t, 4, report.Extract.Succeeded)
	assert.Equal(t, map[string]int{"direct_text": 2, "ocr_local": 1, "docx_parser": 1}, report.Extract.ByMethod)
	assert.Equal(t, 4, report.Index.Indexed)

	assert.Equal(t, 4, report.Group.Documents)
	assert.Equal(t, 2, report.Group.EffectiveK)
	ids := make([]string, 0, len(report.Group.Assignments))
	for _, as := range report.Group.Assignments {
		ids = append(ids, as.DocumentID)
		assert.GreaterOrEqual(t, as.ClusterLabel, 0)
		assert.Less(t, as.ClusterLabel, report.Group.EffectiveK)
		assert.NotEmpty(t, as.Organization)
	}
	assert.ElementsMatch(t, []string{
		"CMS-2025-0001-0001", "CMS-2025-0001-0002", "CMS-2025-0001-0003", "CMS-2025-0001-0004",
	}, ids)

	// And the text PDF keeps its page break
	text, err := os.ReadFile(filepath.Join(dir, "text", "CMS-2025-0001-0001_attachment_1.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(text), "--- PAGE BREAK ---")

	// And capabilities were detected once for the whole run
	assert.Equal(t, 1, strings.Count(logText(t), `"msg":"capabilities detected"`))

	// And search finds the typed and the scanned telehealth comments
	found, _, err := execute(t, dir, "--json", "search", "telehealth")
	require.NoError(t, err)
	var search struct {
		Results []struct {
			DocumentID string `json:"document_id"`
			Method     string `json:"extraction_method"`
			Snippet    string `json:"snippet"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(found), &search))
	methods := map[string]string{}
	for _, r := range search.Results {
		methods[r.DocumentID] = r.Method
		assert.Contains(t, r.Snippet, "<mark>")
	}
	assert.Equal(t, map[string]string{
		"CMS-2025-0001-0001": "direct_text",
		"CMS-2025-0001-0003": "ocr_local",
	}, methods)
}

func TestRun_SkippedStagesDetectNothing(t *testing.T) {
	isolate(t)
	dir := textWorkspace(t)

	_, _, err := execute(t, dir, "run", "--skip-acquire", "--skip-extract", "--skip-group")

	require.NoError(t, err)
	assert.NotContains(t, logText(t), `"msg":"capabilities detected"`)
}
