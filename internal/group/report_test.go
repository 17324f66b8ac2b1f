package group

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/extract"
	"github.com/Aman-CERP/docsift/internal/manifest"
)

func TestWriteReports(t *testing.T) {
	// Given a finished analysis
	corpus := twoTopicCorpus()
	a, err := New(unavailableEmbedder(), nil).Analyze(context.Background(), corpus, MethodKMeans, Params{K: 2})
	require.NoError(t, err)
	dir := filepath.Join(t.TempDir(), "output")

	// When reports are written
	paths, err := WriteReports(dir, a)

	// Then the CSV has one row per document with the cluster columns
	require.NoError(t, err)
	f, err := os.Open(paths.CSV)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, csvHeader, rows[0])
	for _, row := range rows[1:] {
		label, err := strconv.Atoi(row[5])
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(a.ClusterSize(label)), row[6])
		assert.Equal(t, "tfidf_kmeans", row[12])
	}
	assert.Equal(t, "DOC-A.txt", rows[1][0])
	assert.Equal(t, "Org One", rows[1][2])

	// And the JSON carries the run id, metrics and assignments
	data, err := os.ReadFile(paths.JSON)
	require.NoError(t, err)
	var report struct {
		RunID       string                     `json:"run_id"`
		Method      string                     `json:"method"`
		Documents   int                        `json:"documents"`
		Metrics     map[string]json.RawMessage `json:"metrics"`
		Clusters    []ClusterSummary           `json:"clusters"`
		Assignments []Assignment               `json:"assignments"`
	}
	require.NoError(t, json.Unmarshal(data, &report))
	_, err = uuid.Parse(report.RunID)
	assert.NoError(t, err)
	assert.Equal(t, paths.RunID, report.RunID)
	assert.Equal(t, "tfidf_kmeans", report.Method)
	assert.Equal(t, 6, report.Documents)
	assert.Contains(t, report.Metrics, "silhouette")
	assert.Len(t, report.Clusters, 2)
	assert.Len(t, report.Assignments, 6)

	_, err = os.Stat(paths.CSV + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoadCorpus(t *testing.T) {
	// Given extracted texts, one blank, plus a non-text file
	dir := t.TempDir()
	files := map[string]string{
		"CMS-2025-0001-0002.txt":              "Second comment on telehealth.",
		"CMS-2025-0001-0001_attachment_2.txt": "Page one" + extract.PageBreak + "Page two",
		"CMS-2025-0001-0003.txt":              " \n\t",
		"readme.md":                           "not a document",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	meta := manifest.Metadata{
		"CMS-2025-0001-0001": {Organization: "Rural Health", Category: "Hospital", URLs: []string{"https://d.test/a.pdf", "https://d.test/b.pdf"}},
	}
	ids, err := manifest.NewIDMatcher("")
	require.NoError(t, err)

	// When loaded
	c, err := LoadCorpus(dir, meta, ids, nil)

	// Then blank and non-text files are skipped and metadata is joined
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	first := c.Documents[0]
	assert.Equal(t, "CMS-2025-0001-0001_attachment_2.txt", first.Filename)
	assert.Equal(t, "CMS-2025-0001-0001", first.DocumentID)
	assert.Equal(t, "Rural Health", first.Organization)
	assert.Equal(t, "https://d.test/b.pdf", first.SourceURL)
	assert.Equal(t, string(extract.FileTypePDF), first.FileType)
	assert.Equal(t, string(extract.MethodDirectText), first.Method)
	assert.Equal(t, 8, first.WordCount)

	second := c.Documents[1]
	assert.Equal(t, "CMS-2025-0001-0002", second.DocumentID)
	assert.Empty(t, second.Organization)
	assert.Equal(t, len("Second comment on telehealth."), second.CharacterCount)
}

func TestLoadCorpus_MissingDirectory(t *testing.T) {
	_, err := LoadCorpus(filepath.Join(t.TempDir(), "missing"), nil, nil, nil)

	require.Error(t, err)
	assert.Equal(t, serr.ErrCodeFileNotFound, serr.GetCode(err))
}
