package manifest

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Meta is the per-document metadata joined onto index entries and cluster reports.
type Meta struct {
	Organization string
	Category     string
	Comment      string
	URLs         []string
}

// SourceURL returns the URL for the given 1-based attachment number, falling
// back to the first URL.
func (m Meta) SourceURL(attachment int) string {
	if len(m.URLs) == 0 {
		return ""
	}
	if attachment >= 1 && attachment <= len(m.URLs) {
		return m.URLs[attachment-1]
	}
	return m.URLs[0]
}

// Metadata maps document id to metadata.
type Metadata map[string]Meta

// Metadata indexes the manifest by document id.
func (m *Manifest) Metadata() Metadata {
	md := make(Metadata, len(m.References))
	for _, r := range m.References {
		md[r.DocumentID] = Meta{
			Organization: r.Organization,
			Category:     r.Category,
			Comment:      r.Comment,
			URLs:         r.URLs,
		}
	}
	return md
}

// LoadMetadata reads metadata from a manifest. A missing file yields empty
// metadata and found=false; downstream stages still run without it.
func LoadMetadata(path string, opts Options) (md Metadata, found bool, err error) {
	if path == "" {
		return Metadata{}, false, nil
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return Metadata{}, false, nil
	}
	opts.RequireAttachments = false
	m, err := Load(path, opts)
	if err != nil {
		return nil, false, err
	}
	return m.Metadata(), true, nil
}

// IDMatcher derives document ids from extracted-text file names.
type IDMatcher struct {
	re *regexp.Regexp
}

// DefaultIDPattern matches regulations.gov ids such as CMS-2025-0001-0001.
const DefaultIDPattern = `[A-Z]{2,10}-\d{4}-\d{4}-\d{4}`

var attachmentRe = regexp.MustCompile(`_attachment_(\d+)`)

// NewIDMatcher compiles pattern; an empty pattern uses DefaultIDPattern.
func NewIDMatcher(pattern string) (*IDMatcher, error) {
	if pattern == "" {
		pattern = DefaultIDPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &IDMatcher{re: re}, nil
}

// DocumentID returns the first pattern match in the file name, or its stem.
func (m *IDMatcher) DocumentID(filename string) string {
	base := filepath.Base(filename)
	if m != nil && m.re != nil {
		if id := m.re.FindString(base); id != "" {
			return id
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// AttachmentNumber returns N for names containing "_attachment_N", else 0.
func AttachmentNumber(filename string) int {
	match := attachmentRe.FindStringSubmatch(filepath.Base(filename))
	if match == nil {
		return 0
	}
	n, _ := strconv.Atoi(match[1])
	return n
}
