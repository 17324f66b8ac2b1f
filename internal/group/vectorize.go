package group

import (
	"errors"
	"math"
	"sort"
)

// errEmptyVocabulary is returned when document-frequency bounds or stop
// words leave no terms.
var errEmptyVocabulary = errors.New("empty vocabulary")

// vectorizer builds a document-term matrix from cleaned texts.
type vectorizer struct {
	NgramMax    int
	MinDF       int
	MaxDF       float64
	MaxFeatures int
	Stop        StopWords
}

// termMatrix is a dense document-term matrix over a sorted vocabulary.
type termMatrix struct {
	Vocab []string
	Rows  [][]float64
	// DF is the document frequency of each vocabulary term.
	DF []int
}

// counts returns raw term counts. Terms must appear in at least MinDF
// documents and at most MaxDF of them (ignored for a single document);
// MaxFeatures keeps the most frequent terms.
func (v vectorizer) counts(cleaned []string) (*termMatrix, error) {
	n := len(cleaned)
	docs := make([]map[string]int, n)
	df := map[string]int{}
	tf := map[string]int{}
	for i, text := range cleaned {
		docs[i] = map[string]int{}
		for _, t := range analyze(text, v.Stop, max(v.NgramMax, 1)) {
			docs[i][t]++
			tf[t]++
		}
		for t := range docs[i] {
			df[t]++
		}
	}

	minDF := max(v.MinDF, 1)
	maxDocs := float64(n)
	if v.MaxDF > 0 && v.MaxDF < 1 && n > 1 {
		maxDocs = v.MaxDF * float64(n)
	}
	var vocab []string
	for t, d := range df {
		if d >= minDF && float64(d) <= maxDocs {
			vocab = append(vocab, t)
		}
	}
	if len(vocab) == 0 {
		return nil, errEmptyVocabulary
	}

	if v.MaxFeatures > 0 && len(vocab) > v.MaxFeatures {
		sort.Slice(vocab, func(i, j int) bool {
			if tf[vocab[i]] != tf[vocab[j]] {
				return tf[vocab[i]] > tf[vocab[j]]
			}
			return vocab[i] < vocab[j]
		})
		vocab = vocab[:v.MaxFeatures]
	}
	sort.Strings(vocab)

	m := &termMatrix{Vocab: vocab, Rows: make([][]float64, n), DF: make([]int, len(vocab))}
	for j, t := range vocab {
		m.DF[j] = df[t]
	}
	for i := range docs {
		row := make([]float64, len(vocab))
		for j, t := range vocab {
			row[j] = float64(docs[i][t])
		}
		m.Rows[i] = row
	}
	return m, nil
}

// tfidf returns L2-normalized TF-IDF rows with smoothed idf:
// idf(t) = ln((1+n)/(1+df(t))) + 1.
func (v vectorizer) tfidf(cleaned []string) (*termMatrix, error) {
	m, err := v.counts(cleaned)
	if err != nil {
		return nil, err
	}
	n := float64(len(cleaned))
	idf := make([]float64, len(m.Vocab))
	for j, d := range m.DF {
		idf[j] = math.Log((1+n)/(1+float64(d))) + 1
	}
	for _, row := range m.Rows {
		for j := range row {
			row[j] *= idf[j]
		}
		l2Normalize(row)
	}
	return m, nil
}

func l2Normalize(row []float64) {
	var s float64
	for _, x := range row {
		s += x * x
	}
	if s == 0 {
		return
	}
	norm := math.Sqrt(s)
	for j := range row {
		row[j] /= norm
	}
}

// topTerms returns the vocabulary terms with the n highest weights, ties
// broken alphabetically.
func topTerms(vocab []string, weights []float64, n int) []string {
	idx := make([]int, len(vocab))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return weights[idx[a]] > weights[idx[b]]
	})
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = vocab[idx[i]]
	}
	return out
}

// TFIDFKeywords returns the n terms (unigrams and bigrams) with the highest
// mean TF-IDF weight across texts. Texts must already be cleaned.
func TFIDFKeywords(cleaned []string, n int, stop StopWords) []string {
	if len(cleaned) == 0 || n <= 0 {
		return nil
	}
	m, err := vectorizer{NgramMax: 2, MinDF: 1, MaxDF: 0.95, MaxFeatures: n, Stop: stop}.tfidf(cleaned)
	if err != nil {
		return nil
	}
	mean := make([]float64, len(m.Vocab))
	for _, row := range m.Rows {
		for j, x := range row {
			mean[j] += x
		}
	}
	for j := range mean {
		mean[j] /= float64(len(m.Rows))
	}
	return topTerms(m.Vocab, mean, n)
}

// FrequencyKeywords returns the n most frequent words longer than three
// characters; ties keep first-seen order.
func FrequencyKeywords(cleaned []string, n int, stop StopWords) []string {
	count := map[string]int{}
	var order []string
	for _, text := range cleaned {
		for _, w := range frequencyWords(text, stop) {
			if count[w] == 0 {
				order = append(order, w)
			}
			count[w]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return count[order[i]] > count[order[j]] })
	if n < len(order) {
		order = order[:n]
	}
	return order
}
