package group

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	serr "github.com/Aman-CERP/docsift/internal/errors"
)

// Report file names inside the output directory.
const (
	CSVReportName  = "grouped_results.csv"
	JSONReportName = "grouped_results.json"
)

// csvHeader is the column order of the tabular report.
var csvHeader = []string{
	"filename", "document_id", "organization", "category", "source_url",
	"cluster_id", "cluster_size", "cluster_keywords", "document_keywords",
	"character_count", "word_count", "summary", "clustering_method",
}

// Report is the structured form of an Analysis written to JSON.
type Report struct {
	RunID             string           `json:"run_id"`
	GeneratedAt       time.Time        `json:"generated_at"`
	Method            Method           `json:"method"`
	Documents         int              `json:"documents"`
	RequestedK        int              `json:"requested_k"`
	EffectiveK        int              `json:"effective_k"`
	PopulatedClusters int              `json:"populated_clusters"`
	Params            Params           `json:"params"`
	Metrics           MethodResult     `json:"metrics"`
	Clusters          []ClusterSummary `json:"clusters"`
	GlobalKeywords    Keywords         `json:"global_keywords"`
	Assignments       []Assignment     `json:"assignments"`
}

// NewReport stamps a with a fresh run id.
func NewReport(a *Analysis) *Report {
	return &Report{
		RunID:             uuid.NewString(),
		GeneratedAt:       time.Now().UTC(),
		Method:            a.Method,
		Documents:         len(a.Assignments),
		RequestedK:        a.RequestedK,
		EffectiveK:        a.EffectiveK,
		PopulatedClusters: a.PopulatedClusters,
		Params:            a.Params,
		Metrics:           a.Result,
		Clusters:          a.Clusters,
		GlobalKeywords:    a.Global,
		Assignments:       a.Assignments,
	}
}

// ReportPaths are the files written by WriteReports.
type ReportPaths struct {
	RunID string
	CSV   string
	JSON  string
}

// WriteReports writes the tabular and structured reports into dir,
// replacing earlier ones.
func WriteReports(dir string, a *Analysis) (*ReportPaths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, serr.New(serr.ErrCodeFileWrite, "cannot create output directory", err)
	}
	r := NewReport(a)
	paths := &ReportPaths{
		RunID: r.RunID,
		CSV:   filepath.Join(dir, CSVReportName),
		JSON:  filepath.Join(dir, JSONReportName),
	}
	if err := writeFileAtomic(paths.CSV, func(f *os.File) error { return writeCSV(f, a) }); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(paths.JSON, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}); err != nil {
		return nil, err
	}
	return paths, nil
}

func writeCSV(f *os.File, a *Analysis) error {
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, as := range a.Assignments {
		clusterKW := a.ClusterKeywords(as.ClusterLabel)
		if len(clusterKW) > keywordsPerCluster {
			clusterKW = clusterKW[:keywordsPerCluster]
		}
		row := []string{
			as.Filename,
			as.DocumentID,
			as.Organization,
			as.Category,
			as.SourceURL,
			strconv.Itoa(as.ClusterLabel),
			strconv.Itoa(a.ClusterSize(as.ClusterLabel)),
			strings.Join(clusterKW, ", "),
			strings.Join(as.Keywords, ", "),
			strconv.Itoa(as.CharacterCount),
			strconv.Itoa(as.WordCount),
			as.Summary,
			string(a.Method),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// writeFileAtomic writes through a temporary file renamed over path.
func writeFileAtomic(path string, fill func(*os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return serr.New(serr.ErrCodeFileWrite, "cannot write "+filepath.Base(path), err)
	}
	if err := fill(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return serr.New(serr.ErrCodeFileWrite, "cannot write "+filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return serr.New(serr.ErrCodeFileWrite, "cannot write "+filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return serr.New(serr.ErrCodeFileWrite, "cannot write "+filepath.Base(path), err)
	}
	return nil
}
