package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serr "github.com/Aman-CERP/docsift/internal/errors"
)

const sampleCSV = `Document ID,Organization Name,Category,Attachment Files,Comment
CMS-2025-0001-0001,General Hospital,Hospitals,https://downloads.example.gov/CMS-2025-0001-0001/attachment_1.pdf,See attached
CMS-2025-0001-0002,,Individual,"https://downloads.example.gov/CMS-2025-0001-0002/attachment_1.pdf, https://downloads.example.gov/CMS-2025-0001-0002/attachment_2.docx",
CMS-2025-0001-0003,Rural Clinic Assn,Associations,,nan
,Orphan Org,Other,https://downloads.example.gov/x.pdf,
`

func TestParse_ResolvesColumnsAndURLs(t *testing.T) {
	m, err := Parse(strings.NewReader(sampleCSV), Options{RequireAttachments: true})
	require.NoError(t, err)

	// Row without an id is skipped
	require.Len(t, m.References, 3)
	assert.Equal(t, 4, m.Rows)

	first := m.References[0]
	assert.Equal(t, "CMS-2025-0001-0001", first.DocumentID)
	assert.Equal(t, "General Hospital", first.Organization)
	assert.Equal(t, "Hospitals", first.Category)
	assert.Len(t, first.URLs, 1)

	second := m.References[1]
	assert.Equal(t, []string{
		"https://downloads.example.gov/CMS-2025-0001-0002/attachment_1.pdf",
		"https://downloads.example.gov/CMS-2025-0001-0002/attachment_2.docx",
	}, second.URLs)

	third := m.References[2]
	assert.Empty(t, third.URLs)
	assert.Empty(t, third.Comment, "pandas 'nan' is treated as empty")

	assert.Equal(t, 3, m.URLCount())
}

func TestParse_CaseInsensitiveAliases(t *testing.T) {
	csv := "  document_ID ,URLS\nA-1,https://x.test/a.pdf\n"

	m, err := Parse(strings.NewReader(csv), Options{RequireAttachments: true})

	require.NoError(t, err)
	require.Len(t, m.References, 1)
	assert.Equal(t, "A-1", m.References[0].DocumentID)
}

func TestParse_MissingRequiredColumn(t *testing.T) {
	csv := "Document ID,Organization Name\nA-1,Org\n"

	_, err := Parse(strings.NewReader(csv), Options{RequireAttachments: true})

	require.Error(t, err)
	assert.True(t, serr.HasCode(err, serr.ErrCodeManifestColumnMissing))
	var se *serr.SiftError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Suggestion, `"Attachment Files"`)
}

func TestParse_AttachmentsOptionalForMetadata(t *testing.T) {
	csv := "Document ID,Category\nA-1,Hospitals\n"

	m, err := Parse(strings.NewReader(csv), Options{})

	require.NoError(t, err)
	assert.Equal(t, "Hospitals", m.Metadata()["A-1"].Category)
}

func TestParse_MergesDuplicateIDs(t *testing.T) {
	csv := "Document ID,Attachment Files,Category\nA-1,https://x.test/1.pdf,First\nA-1,\"https://x.test/1.pdf,https://x.test/2.pdf\",Second\n"

	m, err := Parse(strings.NewReader(csv), Options{RequireAttachments: true})

	require.NoError(t, err)
	require.Len(t, m.References, 1)
	assert.Equal(t, []string{"https://x.test/1.pdf", "https://x.test/2.pdf"}, m.References[0].URLs)
	assert.Equal(t, "First", m.References[0].Category)
}

func TestParse_CustomMappingAndSeparator(t *testing.T) {
	csv := "ref,files\nR1,https://x.test/a.pdf|https://x.test/b.pdf\n"
	opts := Options{
		Columns:            Columns{DocumentID: []string{"ref"}, Attachments: []string{"files"}},
		URLSeparator:       "|",
		RequireAttachments: true,
	}

	m, err := Parse(strings.NewReader(csv), opts)

	require.NoError(t, err)
	assert.Len(t, m.References[0].URLs, 2)
}

func TestParse_EmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader(""), Options{})
	assert.True(t, serr.HasCode(err, serr.ErrCodeManifestInvalid))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"), Options{})
	assert.True(t, serr.HasCode(err, serr.ErrCodeFileNotFound))
}

func TestLoadMetadata(t *testing.T) {
	dir := t.TempDir()

	md, found, err := LoadMetadata(filepath.Join(dir, "missing.csv"), Options{})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, md)

	path := filepath.Join(dir, "comment_links.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))
	md, found, err = LoadMetadata(path, Options{})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "General Hospital", md["CMS-2025-0001-0001"].Organization)
	assert.Equal(t,
		"https://downloads.example.gov/CMS-2025-0001-0002/attachment_2.docx",
		md["CMS-2025-0001-0002"].SourceURL(2))
	assert.Equal(t,
		"https://downloads.example.gov/CMS-2025-0001-0002/attachment_1.pdf",
		md["CMS-2025-0001-0002"].SourceURL(0))
}

func TestIDMatcher_DocumentID(t *testing.T) {
	m, err := NewIDMatcher("")
	require.NoError(t, err)

	tests := map[string]string{
		"CMS-2025-0001-0001.txt":              "CMS-2025-0001-0001",
		"CMS-2025-0001-0002_attachment_2.txt": "CMS-2025-0001-0002",
		"/tmp/text/scan_42.txt":               "scan_42",
		"notes.final.txt":                     "notes.final",
	}
	for in, want := range tests {
		assert.Equal(t, want, m.DocumentID(in), in)
	}
}

func TestAttachmentNumber(t *testing.T) {
	assert.Equal(t, 2, AttachmentNumber("CMS-2025-0001-0002_attachment_2.txt"))
	assert.Equal(t, 0, AttachmentNumber("CMS-2025-0001-0002.txt"))
}
