package group

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	pageBreakRe   = regexp.MustCompile(`--- PAGE BREAK ---`)
	ocrMarkerRe   = regexp.MustCompile(`\[OCR [^\]]+\]`)
	urlRe         = regexp.MustCompile(`https?://\S+`)
	emailRe       = regexp.MustCompile(`\S+@\S+\.\S+`)
	windowsPathRe = regexp.MustCompile(`[A-Za-z]:\\[\w\\.]+`)
	punctuationRe = regexp.MustCompile(`[^\p{L}\p{N}_\s\-.,;:!?()]`)
	spaceRe       = regexp.MustCompile(`\s+`)
	tokenRe       = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)
	wordRe        = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

const (
	minWordLen = 2
	maxWordLen = 25
)

// Clean normalizes extracted text before any vectorization: markers, URLs,
// emails and Windows paths are removed, punctuation other than sentence
// punctuation is dropped, whitespace collapsed, words outside 2..25
// characters dropped, and the result lowercased.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	text = pageBreakRe.ReplaceAllString(text, " ")
	text = ocrMarkerRe.ReplaceAllString(text, " ")
	text = urlRe.ReplaceAllString(text, " ")
	text = emailRe.ReplaceAllString(text, " ")
	text = windowsPathRe.ReplaceAllString(text, " ")
	text = punctuationRe.ReplaceAllString(text, " ")
	text = spaceRe.ReplaceAllString(text, " ")

	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if n := utf8.RuneCountInString(w); n >= minWordLen && n <= maxWordLen {
			kept = append(kept, w)
		}
	}
	return strings.ToLower(strings.TrimSpace(strings.Join(kept, " ")))
}

// analyze splits cleaned text into vectorizer tokens of two or more word
// characters, removes stop words and appends n-grams up to ngramMax built
// from the remaining tokens.
func analyze(cleaned string, stop StopWords, ngramMax int) []string {
	raw := tokenRe.FindAllString(cleaned, -1)
	tokens := raw[:0]
	for _, t := range raw {
		if !stop.Contains(t) {
			tokens = append(tokens, t)
		}
	}
	if ngramMax < 2 {
		return tokens
	}
	out := make([]string, 0, len(tokens)*ngramMax)
	out = append(out, tokens...)
	for n := 2; n <= ngramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

// frequencyWords returns the words used for frequency keywords: longer than
// three characters and not stop words.
func frequencyWords(cleaned string, stop StopWords) []string {
	var out []string
	for _, w := range wordRe.FindAllString(cleaned, -1) {
		if utf8.RuneCountInString(w) > 3 && !stop.Contains(w) {
			out = append(out, w)
		}
	}
	return out
}

// Summary returns the first n runes of cleaned text, with "..." appended
// when it was cut.
func Summary(cleaned string, n int) string {
	if n <= 0 || utf8.RuneCountInString(cleaned) <= n {
		return cleaned
	}
	return string([]rune(cleaned)[:n]) + "..."
}
