package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// HasTextLayer reports whether the sampled pages carry at least minChars
// non-whitespace characters.
func HasTextLayer(pages []string, minChars int) bool {
	minChars = max(minChars, 1)
	n := 0
	for _, p := range pages {
		for _, r := range p {
			if !unicode.IsSpace(r) {
				n++
			}
		}
		if n >= minChars {
			return true
		}
	}
	return false
}

var (
	paragraphGapRe = regexp.MustCompile(`\n\s*\n`)
	inlineSpaceRe  = regexp.MustCompile(`[ \t]+`)
)

// normalizePage collapses blank-line runs and horizontal whitespace.
func normalizePage(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = paragraphGapRe.ReplaceAllString(text, "\n\n")
	text = inlineSpaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// joinPages normalizes each page, drops empty ones and joins the rest with
// the page-break marker.
func joinPages(pages []string) string {
	kept := make([]string, 0, len(pages))
	for _, p := range pages {
		if p = normalizePage(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, PageBreak)
}
