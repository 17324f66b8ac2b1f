package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Aman-CERP/docsift/internal/index"
)

// RenderIndexStats formats index statistics as a labelled block for
// `docsift index stats`.
func RenderIndexStats(stats *index.Stats, noColor bool) string {
	styles := GetStyles(noColor)
	var b strings.Builder

	b.WriteString(styles.Header.Render("Index") + "\n")
	row := func(label, value string) {
		b.WriteString(fmt.Sprintf("  %s %s\n", styles.Label.Render(fmt.Sprintf("%-12s", label+":")), styles.Value.Render(value)))
	}
	row("Backend", stats.Backend)
	row("Path", stats.Path)
	row("Documents", fmt.Sprintf("%d", stats.Documents))
	row("Characters", fmt.Sprintf("%d", stats.Characters))
	row("Size", formatBytes(stats.SizeBytes))

	if len(stats.ByFileType) > 0 {
		b.WriteString("\n" + styles.Header.Render("By file type") + "\n")
		for _, c := range sortedCounts(stats.ByFileType) {
			row(c.key, fmt.Sprintf("%d", c.n))
		}
	}
	if len(stats.ByMethod) > 0 {
		b.WriteString("\n" + styles.Header.Render("By extraction method") + "\n")
		for _, c := range sortedCounts(stats.ByMethod) {
			row(c.key, fmt.Sprintf("%d", c.n))
		}
	}
	return b.String()
}

type keyCount struct {
	key string
	n   int
}

// sortedCounts orders by count descending, then key.
func sortedCounts(m map[string]int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, n := range m {
		if k == "" {
			k = "(unknown)"
		}
		out = append(out, keyCount{k, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].key < out[j].key
	})
	return out
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
