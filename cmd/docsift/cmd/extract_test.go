package cmd

import (
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/extract"
)

func writeDOCX(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

// offlineConfig keeps extraction away from local binaries and the network.
func offlineConfig(t *testing.T, dir string) {
	t.Helper()
	cfg := "ocr:\n  disable_local: true\n  disable_remote: true\n" +
		"extract:\n  pdftoppm_path: " + filepath.Join(dir, "no-pdftoppm") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docsift.yaml"), []byte(cfg), 0o644))
}

func TestExtract_SingleDOCX(t *testing.T) {
	// Given one DOCX attachment
	isolate(t)
	dir := t.TempDir()
	offlineConfig(t, dir)
	path := filepath.Join(dir, "downloads", "CMS-2025-0001-0009_attachment_1.docx")
	writeDOCX(t, path, `<w:p><w:r><w:t>Rural clinics need broadband for telehealth.</w:t></w:r></w:p>`)

	// When only that file is extracted
	out, _, err := execute(t, dir, "--json", "extract", "--file", path)

	// Then its text and provenance land in the text directory
	require.NoError(t, err)
	var o struct {
		Success    bool   `json:"success"`
		OutputPath string `json:"output_path"`
		Document   struct {
			DocumentID string `json:"document_id"`
			Method     string `json:"extraction_method"`
		} `json:"document"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &o))
	assert.True(t, o.Success)
	assert.Equal(t, "CMS-2025-0001-0009", o.Document.DocumentID)
	assert.Equal(t, string(extract.MethodDOCX), o.Document.Method)
	text, err := os.ReadFile(o.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(text), "Rural clinics need broadband")
	assert.FileExists(t, filepath.Join(dir, "text", extract.ProvenanceFile))
}

func TestExtract_Directory(t *testing.T) {
	// Given a DOCX and an unsupported file
	isolate(t)
	dir := t.TempDir()
	offlineConfig(t, dir)
	writeDOCX(t, filepath.Join(dir, "downloads", "CMS-2025-0001-0001.docx"),
		`<w:p><w:r><w:t>Support the payment update.</w:t></w:r></w:p>`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "downloads", "notes.xyz"), []byte("?"), 0o644))

	// When the downloads directory is extracted
	out, _, err := execute(t, dir, "extract")

	// Then the DOCX succeeds and the other file is reported as failed
	require.NoError(t, err)
	assert.Contains(t, out, "Extracted 1 of 2 document(s)")
	assert.Contains(t, out, "1 document(s) failed")
	assert.FileExists(t, filepath.Join(dir, "text", "CMS-2025-0001-0001.txt"))
}

func TestExtract_MissingFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	offlineConfig(t, dir)

	_, _, err := execute(t, dir, "extract", "--file", filepath.Join(dir, "nope.pdf"))

	require.Error(t, err)
	assert.Equal(t, serr.ErrCodeFileNotFound, serr.GetCode(err))
}
