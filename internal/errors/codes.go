// Package errors provides structured error handling for docsift.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Input errors (manifest, files, URLs)
//   - 3XX: Network errors
//   - 4XX: Extraction and OCR errors
//   - 5XX: Index errors
//   - 6XX: Grouping errors
//   - 9XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryInput      Category = "INPUT"
	CategoryNetwork    Category = "NETWORK"
	CategoryExtraction Category = "EXTRACTION"
	CategoryIndex      Category = "INDEX"
	CategoryGrouping   Category = "GROUPING"
	CategoryInternal   Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal aborts the current command.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails the operation; the caller may choose another path.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation.
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"

	// Input errors (200-299)
	ErrCodeFileNotFound           = "ERR_201_FILE_NOT_FOUND"
	ErrCodeManifestColumnMissing  = "ERR_202_MANIFEST_COLUMN_MISSING"
	ErrCodeManifestInvalid        = "ERR_203_MANIFEST_INVALID"
	ErrCodeInvalidURL             = "ERR_204_INVALID_URL"
	ErrCodeFileWrite              = "ERR_205_FILE_WRITE"
	ErrCodeDiskFull               = "ERR_206_DISK_FULL"
	ErrCodeUnsupportedFileType    = "ERR_207_UNSUPPORTED_FILE_TYPE"
	ErrCodeInvalidInput           = "ERR_208_INVALID_INPUT"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeHTTPStatus         = "ERR_303_HTTP_STATUS"
	ErrCodeCircuitOpen        = "ERR_304_CIRCUIT_OPEN"

	// Extraction errors (400-499)
	ErrCodeDocumentCorrupt = "ERR_401_DOCUMENT_CORRUPT"
	ErrCodeEmptyText       = "ERR_402_EMPTY_TEXT"
	ErrCodeOCRUnavailable  = "ERR_403_OCR_UNAVAILABLE"
	ErrCodeOCRFailed       = "ERR_404_OCR_FAILED"
	ErrCodeRenderFailed    = "ERR_405_RENDER_FAILED"

	// Index errors (500-599)
	ErrCodeIndexNotFound = "ERR_501_INDEX_NOT_FOUND"
	ErrCodeNoTextFiles   = "ERR_502_NO_TEXT_FILES"
	ErrCodeQueryInvalid  = "ERR_503_QUERY_INVALID"
	ErrCodeQueryEmpty    = "ERR_504_QUERY_EMPTY"
	ErrCodeIndexFailed   = "ERR_505_INDEX_FAILED"
	ErrCodeIndexLocked   = "ERR_506_INDEX_LOCKED"

	// Grouping errors (600-699)
	ErrCodeEmptyCorpus       = "ERR_601_EMPTY_CORPUS"
	ErrCodeMethodUnavailable = "ERR_602_METHOD_UNAVAILABLE"
	ErrCodeEmptyVocabulary   = "ERR_603_EMPTY_VOCABULARY"
	ErrCodeFitFailed         = "ERR_604_FIT_FAILED"
	ErrCodeUnknownMethod     = "ERR_605_UNKNOWN_METHOD"

	// Internal errors (900-999)
	ErrCodeInternal        = "ERR_901_INTERNAL"
	ErrCodeEmbeddingFailed = "ERR_902_EMBEDDING_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "ERR_101_..." -> '1'
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryInput
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryExtraction
	case '5':
		return CategoryIndex
	case '6':
		return CategoryGrouping
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeDiskFull, ErrCodeConfigInvalid:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable, ErrCodeIndexLocked:
		return true
	default:
		return false
	}
}
