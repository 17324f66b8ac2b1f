package index

import (
	"regexp"
	"strings"
)

var operatorRe = regexp.MustCompile(`\b(AND|OR|NOT)\b`)

// NormalizeQuery turns a plain multi-word query into a phrase query. Queries
// that already use operators, prefix wildcards or quotes pass unchanged.
func NormalizeQuery(q string) string {
	q = strings.TrimSpace(q)
	if len(strings.Fields(q)) < 2 {
		return q
	}
	if operatorRe.MatchString(q) || strings.ContainsAny(q, `*"`) {
		return q
	}
	return `"` + q + `"`
}

// isPhrase reports whether a normalized query is a single quoted phrase.
func isPhrase(q string) bool {
	return len(q) >= 2 && strings.HasPrefix(q, `"`) && strings.HasSuffix(q, `"`) &&
		strings.Count(q, `"`) == 2
}
