package group

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"page break and ocr marker", "First page\n\n--- PAGE BREAK ---\n\n[OCR FAILED FOR PAGE 2] Second", "first page second"},
		{"urls and emails", "See https://example.gov/a?b=1 or write to jane@example.org today", "see or write to today"},
		{"windows path", `Saved at C:\Users\me\file.pdf yesterday`, "saved at yesterday"},
		{"punctuation", "Costs rose 5% — sharply! (again)", "costs rose sharply! (again)"},
		{"short and long words", "a ok " + strings.Repeat("x", 26) + " fine", "ok fine"},
		{"whitespace", "  Many\t\tspaces\n\nhere  ", "many spaces here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestAnalyze_RemovesStopWordsBeforeNgrams(t *testing.T) {
	got := analyze("the rural hospital telehealth access", NewStopWords(), 2)

	assert.Equal(t, []string{"rural", "telehealth", "access", "rural telehealth", "telehealth access"}, got)
}

func TestStopWords_Extra(t *testing.T) {
	sw := NewStopWords(" Telehealth ", "")

	assert.True(t, sw.Contains("telehealth"))
	assert.True(t, sw.Contains("medicare"))
	assert.True(t, sw.Contains("the"))
	assert.False(t, sw.Contains("rural"))
}

func TestFrequencyKeywords(t *testing.T) {
	texts := []string{"rural payment payment cuts", "payment rural access the"}

	got := FrequencyKeywords(texts, 2, NewStopWords())

	assert.Equal(t, []string{"payment", "rural"}, got)
}

func TestTFIDFKeywords(t *testing.T) {
	texts := []string{"telehealth access rural", "payment cuts physician", "telehealth coverage"}

	got := TFIDFKeywords(texts, 5, NewStopWords())

	assert.Len(t, got, 5)
	assert.Nil(t, TFIDFKeywords(nil, 5, NewStopWords()))
	assert.Nil(t, TFIDFKeywords([]string{"the and"}, 5, NewStopWords()))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "short", Summary("short", 10))
	assert.Equal(t, "abcde...", Summary("abcdefgh", 5))
	assert.Equal(t, "ééé...", Summary("éééé", 3))
}
