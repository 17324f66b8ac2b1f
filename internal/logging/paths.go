package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.docsift/logs, or a temp-dir equivalent without a home directory.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docsift", "logs")
	}
	return filepath.Join(home, ".docsift", "logs")
}

// DefaultLogPath returns the default structured log file.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "docsift.log")
}

// Failure log file names under the pipeline's log directory.
const (
	DownloadFailuresFile   = "download_failures.txt"
	ExtractionFailuresFile = "extraction_failures.txt"
)
