package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FailureLog appends "key: reason" lines to a plain-text file. Acquisition
// writes "document_id: url", extraction writes "filename: reason".
// The file is created on the first Record call only.
type FailureLog struct {
	path string

	mu    sync.Mutex
	count int
}

// NewFailureLog returns a log that appends to path. An empty path discards records.
func NewFailureLog(path string) *FailureLog {
	return &FailureLog{path: path}
}

// Path returns the file path.
func (f *FailureLog) Path() string {
	return f.path
}

// Count returns the number of records written through this instance.
func (f *FailureLog) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// Record appends one line. Newlines inside key or reason are flattened.
func (f *FailureLog) Record(key, reason string) error {
	if f == nil || f.path == "" {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	fh, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = fh.Close() }()

	line := fmt.Sprintf("%s: %s\n", flatten(key), flatten(reason))
	if _, err := fh.WriteString(line); err != nil {
		return err
	}
	f.count++
	return nil
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
