// Package output formats command results for the terminal: status lines,
// key/value blocks, search hits and cluster tables, or JSON when requested.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/docsift/internal/group"
	"github.com/Aman-CERP/docsift/internal/index"
)

// Writer provides formatted output for CLI commands.
type Writer struct {
	out      io.Writer
	useColor bool
	key      lipgloss.Style
	mark     lipgloss.Style
}

// Option configures a Writer.
type Option func(*Writer)

// WithColor enables styled keys and highlighted snippets.
func WithColor(enabled bool) Option {
	return func(w *Writer) {
		w.useColor = enabled
	}
}

// New creates a Writer. Color is off unless WithColor is given.
func New(out io.Writer, opts ...Option) *Writer {
	w := &Writer{out: out}
	for _, opt := range opts {
		opt(w)
	}
	w.key = lipgloss.NewStyle()
	w.mark = lipgloss.NewStyle()
	if w.useColor {
		w.key = w.key.Foreground(lipgloss.Color("245"))
		w.mark = w.mark.Bold(true).Foreground(lipgloss.Color("37"))
	}
	return w
}

func (w *Writer) paint(style lipgloss.Style, s string) string {
	if !w.useColor {
		return s
	}
	return style.Render(s)
}

// Status prints a message with an icon. Write errors are ignored for
// console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	w.Status("✓", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("!", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("✗", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// KeyValue prints an aligned "key: value" line.
func (w *Writer) KeyValue(key string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %s %v\n", w.paint(w.key, fmt.Sprintf("%-14s", key+":")), value)
}

// Code prints an indented block.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// SearchResults prints ranked hits. Snippet markers openMark/closeMark are rendered
// highlighted when color is enabled and kept verbatim otherwise.
func (w *Writer) SearchResults(query string, results []index.Result, openMark, closeMark string) {
	if len(results) == 0 {
		w.Statusf("", "No documents match %q", query)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%d result(s) for %q\n\n", len(results), query)
	for _, r := range results {
		_, _ = fmt.Fprintf(w.out, "%2d. %s  (%.3f)\n", r.Rank, r.Filename, r.Score)
		meta := []string{r.DocumentID}
		if r.Organization != "" {
			meta = append(meta, r.Organization)
		}
		if r.FileType != "" {
			meta = append(meta, r.FileType+"/"+r.Method)
		}
		_, _ = fmt.Fprintf(w.out, "    %s\n", w.paint(w.key, strings.Join(meta, " · ")))
		if r.SourceURL != "" {
			_, _ = fmt.Fprintf(w.out, "    %s\n", r.SourceURL)
		}
		if r.Snippet != "" {
			_, _ = fmt.Fprintf(w.out, "    %s\n", w.highlight(r.Snippet, openMark, closeMark))
		}
		_, _ = fmt.Fprintln(w.out)
	}
}

func (w *Writer) highlight(snippet, openMark, closeMark string) string {
	snippet = strings.Join(strings.Fields(snippet), " ")
	if !w.useColor || openMark == "" || closeMark == "" {
		return snippet
	}
	var b strings.Builder
	for {
		i := strings.Index(snippet, openMark)
		if i < 0 {
			break
		}
		j := strings.Index(snippet[i+len(openMark):], closeMark)
		if j < 0 {
			break
		}
		b.WriteString(snippet[:i])
		b.WriteString(w.paint(w.mark, snippet[i+len(openMark) : i+len(openMark)+j]))
		snippet = snippet[i+len(openMark)+j+len(closeMark):]
	}
	b.WriteString(snippet)
	return b.String()
}

// Clusters prints one block per cluster of a grouping analysis.
func (w *Writer) Clusters(a *group.Analysis) {
	_, _ = fmt.Fprintf(w.out, "%s: %d document(s) in %d cluster(s) (requested k=%d)\n\n",
		a.Method, len(a.Assignments), len(a.Clusters), a.RequestedK)
	for _, c := range a.Clusters {
		name := fmt.Sprintf("Cluster %d", c.Label)
		if c.Label == group.OutlierLabel {
			name = "Outliers"
		}
		_, _ = fmt.Fprintf(w.out, "%s (%d docs, avg %.0f chars)\n", name, c.DocumentCount, c.AvgDocumentLength)
		if len(c.Keywords) > 0 {
			w.KeyValue("keywords", strings.Join(c.Keywords[:min(len(c.Keywords), 8)], ", "))
		}
		if len(c.TopOrganizations) > 0 {
			w.KeyValue("organizations", formatCounts(c.TopOrganizations))
		}
		if len(c.TopCategories) > 0 {
			w.KeyValue("categories", formatCounts(c.TopCategories))
		}
		_, _ = fmt.Fprintln(w.out)
	}
}

func formatCounts(counts []group.Count) string {
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%s (%d)", c.Value, c.Count)
	}
	return strings.Join(parts, ", ")
}

// Progress prints an in-place progress bar.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}
	pct := float64(current) / float64(total) * 100
	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", renderProgressBar(current, total, 30), pct, msg)
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}
	filled := min(max(int(float64(current)/float64(total)*float64(width)), 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
