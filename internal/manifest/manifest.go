// Package manifest loads the batch manifest: a CSV listing each document id
// with its attachment URLs and optional organization/category metadata.
//
// Header names are resolved once, through an explicit alias list per field,
// before any row is read.
package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	serr "github.com/Aman-CERP/docsift/internal/errors"
)

// Field identifies a semantic manifest column.
type Field string

const (
	FieldDocumentID   Field = "document_id"
	FieldAttachments  Field = "attachments"
	FieldOrganization Field = "organization"
	FieldCategory     Field = "category"
	FieldComment      Field = "comment"
)

// Columns lists the accepted header aliases for each field.
type Columns struct {
	DocumentID   []string
	Attachments  []string
	Organization []string
	Category     []string
	Comment      []string
}

// DefaultColumns matches the regulations.gov bulk export headers.
func DefaultColumns() Columns {
	return Columns{
		DocumentID:   []string{"Document ID", "document_id", "id"},
		Attachments:  []string{"Attachment Files", "attachments", "attachment_urls", "urls", "url"},
		Organization: []string{"Organization Name", "organization", "org"},
		Category:     []string{"Category", "category"},
		Comment:      []string{"Comment", "comment"},
	}
}

func (c Columns) aliases(f Field) []string {
	switch f {
	case FieldDocumentID:
		return c.DocumentID
	case FieldAttachments:
		return c.Attachments
	case FieldOrganization:
		return c.Organization
	case FieldCategory:
		return c.Category
	case FieldComment:
		return c.Comment
	}
	return nil
}

// Mapping is a resolved header: field -> column index.
type Mapping map[Field]int

// Resolve maps header names to fields. A required field with no matching alias
// yields ERR_202_MANIFEST_COLUMN_MISSING naming the accepted aliases.
func Resolve(header []string, cols Columns, required ...Field) (Mapping, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	m := make(Mapping)
	for _, f := range []Field{FieldDocumentID, FieldAttachments, FieldOrganization, FieldCategory, FieldComment} {
		for _, alias := range cols.aliases(f) {
			if i, ok := index[normalizeHeader(alias)]; ok {
				m[f] = i
				break
			}
		}
	}

	for _, f := range required {
		if _, ok := m[f]; !ok {
			return nil, serr.New(serr.ErrCodeManifestColumnMissing,
				fmt.Sprintf("manifest has no %s column", f), nil).
				WithDetail("field", string(f)).
				WithSuggestion(fmt.Sprintf("add one of these headers: %s", quoteList(cols.aliases(f))))
		}
	}
	return m, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

func quoteList(items []string) string {
	q := make([]string, len(items))
	for i, s := range items {
		q[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(q, ", ")
}

// SourceReference is one document and its attachment URLs, in manifest order.
type SourceReference struct {
	DocumentID   string
	URLs         []string
	Organization string
	Category     string
	Comment      string
}

// Manifest is a parsed batch manifest.
type Manifest struct {
	Path       string
	Mapping    Mapping
	References []SourceReference
	// Rows is the number of data rows read, including ones without an id.
	Rows int
}

// Options controls parsing.
type Options struct {
	Columns Columns
	// URLSeparator splits the attachment cell; default ",".
	URLSeparator string
	// RequireAttachments makes the attachments column mandatory.
	RequireAttachments bool
}

// Load opens and parses a manifest file.
func Load(path string, opts Options) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, serr.New(serr.ErrCodeFileNotFound, fmt.Sprintf("manifest not found: %s", path), err)
		}
		return nil, serr.IOError(fmt.Sprintf("cannot open manifest %s", path), err)
	}
	defer func() { _ = f.Close() }()

	m, err := Parse(f, opts)
	if err != nil {
		return nil, err
	}
	m.Path = path
	return m, nil
}

// Parse reads a manifest from r. Rows sharing a document id are merged, keeping
// the first row's metadata and appending new URLs.
func Parse(r io.Reader, opts Options) (*Manifest, error) {
	if opts.URLSeparator == "" {
		opts.URLSeparator = ","
	}
	if len(opts.Columns.DocumentID) == 0 {
		opts.Columns = DefaultColumns()
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, serr.New(serr.ErrCodeManifestInvalid, "manifest is empty", nil)
	}
	if err != nil {
		return nil, serr.New(serr.ErrCodeManifestInvalid, "cannot read manifest header", err)
	}

	required := []Field{FieldDocumentID}
	if opts.RequireAttachments {
		required = append(required, FieldAttachments)
	}
	mapping, err := Resolve(header, opts.Columns, required...)
	if err != nil {
		return nil, err
	}

	m := &Manifest{Mapping: mapping}
	byID := make(map[string]int)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, serr.New(serr.ErrCodeManifestInvalid, fmt.Sprintf("manifest row %d is malformed", m.Rows+2), err)
		}
		m.Rows++

		id := cell(record, mapping, FieldDocumentID)
		if id == "" {
			continue
		}
		urls := SplitURLs(cell(record, mapping, FieldAttachments), opts.URLSeparator)

		if i, ok := byID[id]; ok {
			m.References[i].URLs = appendUnique(m.References[i].URLs, urls...)
			continue
		}
		byID[id] = len(m.References)
		m.References = append(m.References, SourceReference{
			DocumentID:   id,
			URLs:         appendUnique(nil, urls...),
			Organization: cell(record, mapping, FieldOrganization),
			Category:     cell(record, mapping, FieldCategory),
			Comment:      cell(record, mapping, FieldComment),
		})
	}
	return m, nil
}

func cell(record []string, m Mapping, f Field) string {
	i, ok := m[f]
	if !ok || i >= len(record) {
		return ""
	}
	v := strings.TrimSpace(record[i])
	// pandas writes missing values as "nan"
	if strings.EqualFold(v, "nan") {
		return ""
	}
	return v
}

// SplitURLs splits an attachment cell into trimmed, non-empty URLs.
func SplitURLs(field, sep string) []string {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	var urls []string
	for _, part := range strings.Split(field, sep) {
		if u := strings.TrimSpace(part); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		seen := false
		for _, d := range dst {
			if d == it {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, it)
		}
	}
	return dst
}

// URLCount returns the total number of attachment URLs.
func (m *Manifest) URLCount() int {
	n := 0
	for _, r := range m.References {
		n += len(r.URLs)
	}
	return n
}
