package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ProvenanceFile is the sidecar written next to the extracted text files.
const ProvenanceFile = "extraction_manifest.json"

// Record is the provenance of one text file.
type Record struct {
	Source         string    `json:"source"`
	FileType       FileType  `json:"file_type"`
	Method         Method    `json:"extraction_method"`
	CharacterCount int       `json:"character_count"`
	Pages          int       `json:"pages,omitempty"`
	OCRFailedPages []int     `json:"ocr_failed_pages,omitempty"`
	ExtractedAt    time.Time `json:"extracted_at"`
}

// Provenance maps text file name ("<stem>.txt") to its record.
type Provenance map[string]Record

type provenanceFile struct {
	Version int        `json:"version"`
	Files   Provenance `json:"files"`
}

// LoadProvenance reads the sidecar in textDir. A missing sidecar yields an
// empty map.
func LoadProvenance(textDir string) (Provenance, error) {
	data, err := os.ReadFile(filepath.Join(textDir, ProvenanceFile))
	if errors.Is(err, os.ErrNotExist) {
		return Provenance{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read provenance: %w", err)
	}
	var pf provenanceFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse provenance %s: %w", ProvenanceFile, err)
	}
	if pf.Files == nil {
		pf.Files = Provenance{}
	}
	return pf.Files, nil
}

// Save merges p into the sidecar in textDir, so single-file runs keep the
// records of earlier batch runs.
func (p Provenance) Save(textDir string) error {
	existing, err := LoadProvenance(textDir)
	if err != nil {
		existing = Provenance{}
	}
	for k, v := range p {
		existing[k] = v
	}

	data, err := json.MarshalIndent(provenanceFile{Version: 1, Files: existing}, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(textDir, ProvenanceFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write provenance: %w", err)
	}
	return os.Rename(tmp, filepath.Join(textDir, ProvenanceFile))
}

// Names returns the recorded file names in sorted order.
func (p Provenance) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the record for a text file, inferring method and type from
// the content when the sidecar has no entry.
func (p Provenance) Lookup(name, text string) Record {
	if r, ok := p[filepath.Base(name)]; ok {
		return r
	}
	return InferRecord(text)
}

// InferRecord guesses provenance from markers in the text. Page breaks
// without OCR markers are ambiguous between direct text and OCR; they are
// reported as direct text.
func InferRecord(text string) Record {
	r := Record{CharacterCount: len([]rune(text)), FileType: FileTypePDF}
	switch {
	case strings.Contains(text, "[OCR EXTRACTION FAILED"):
		r.Method = MethodFailed
	case strings.Contains(text, "[DOCX EXTRACTION FAILED"):
		r.Method, r.FileType = MethodFailed, FileTypeDOCX
	case strings.Contains(text, "[OCR FAILED FOR PAGE"):
		r.Method = MethodOCRLocal
	case strings.Contains(text, strings.TrimSpace(PageBreak)):
		r.Method = MethodDirectText
	default:
		r.Method, r.FileType = MethodDirectText, ""
	}
	return r
}
