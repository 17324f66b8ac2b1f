// Package extract converts acquired PDF and DOCX files into plain text.
//
// PDFs are classified by the amount of text in their first pages. Text-bearing
// PDFs are read page by page from the text layer; image-bearing PDFs are
// rendered and passed through the OCR chain. DOCX files are parsed directly.
// Every input file yields exactly one Document, successful or not.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FileType is the kind of input document.
type FileType string

const (
	FileTypePDF         FileType = "pdf"
	FileTypeDOCX        FileType = "docx"
	FileTypeUnsupported FileType = "unsupported"
)

// FileTypeOf returns the type for a path's extension.
func FileTypeOf(path string) FileType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FileTypePDF
	case ".docx":
		return FileTypeDOCX
	}
	return FileTypeUnsupported
}

// Method records how a document's text was obtained.
type Method string

const (
	MethodDirectText Method = "direct_text"
	MethodOCRLocal   Method = "ocr_local"
	MethodOCRCloud   Method = "ocr_cloud"
	MethodDOCX       Method = "docx_parser"
	MethodFailed     Method = "failed"
)

// Markers embedded in extracted text.
const (
	PageBreak = "\n\n--- PAGE BREAK ---\n\n"
)

// PageFailedMarker replaces the text of a page no OCR engine could read.
func PageFailedMarker(page int) string {
	return fmt.Sprintf("[OCR FAILED FOR PAGE %d]", page)
}

// FailurePlaceholder is the text of a document whose extraction failed.
func FailurePlaceholder(ft FileType, reason string) string {
	switch ft {
	case FileTypePDF:
		return fmt.Sprintf("[OCR EXTRACTION FAILED: %s]", reason)
	case FileTypeDOCX:
		return fmt.Sprintf("[DOCX EXTRACTION FAILED: %s]", reason)
	}
	return fmt.Sprintf("[EXTRACTION FAILED: %s]", reason)
}

// Document is the result of extracting one input file.
type Document struct {
	Filename       string   `json:"filename"`
	DocumentID     string   `json:"document_id"`
	FileType       FileType `json:"file_type"`
	Method         Method   `json:"extraction_method"`
	CharacterCount int      `json:"character_count"`
	Pages          int      `json:"pages,omitempty"`
	// OCRFailedPages lists 1-based pages replaced by a failure marker.
	OCRFailedPages []int  `json:"ocr_failed_pages,omitempty"`
	Error          string `json:"error,omitempty"`
	// Text is never empty: failed documents carry a placeholder.
	Text string `json:"-"`
}

// Failed reports whether extraction produced no usable text.
func (d *Document) Failed() bool {
	return d.Method == MethodFailed
}

// Outcome is the result of Extractor.Extract.
type Outcome struct {
	Success    bool     `json:"success"`
	OutputPath string   `json:"output_path,omitempty"`
	Document   Document `json:"document"`
}

// BatchResult summarizes Extractor.ExtractAll.
type BatchResult struct {
	Total           int            `json:"total"`
	Succeeded       int            `json:"succeeded"`
	Failed          int            `json:"failed"`
	TotalCharacters int            `json:"total_characters"`
	ByMethod        map[Method]int `json:"by_method"`
	Outcomes        []Outcome      `json:"outcomes"`
}

// OutputName is the text file name for an input file: "<stem>.txt".
func OutputName(inputPath string) string {
	base := filepath.Base(inputPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".txt"
}
