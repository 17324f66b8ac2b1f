package group

import "strings"

// englishStopWords is the standard English function-word list.
var englishStopWords = []string{
	"i", "me", "my", "myself", "we", "our", "ours", "ourselves", "you", "you're",
	"you've", "you'll", "you'd", "your", "yours", "yourself", "yourselves", "he",
	"him", "his", "himself", "she", "she's", "her", "hers", "herself", "it", "it's",
	"its", "itself", "they", "them", "their", "theirs", "themselves", "what", "which",
	"who", "whom", "this", "that", "that'll", "these", "those", "am", "is", "are",
	"was", "were", "be", "been", "being", "have", "has", "had", "having", "do",
	"does", "did", "doing", "a", "an", "the", "and", "but", "if", "or", "because",
	"as", "until", "while", "of", "at", "by", "for", "with", "about", "against",
	"between", "into", "through", "during", "before", "after", "above", "below",
	"to", "from", "up", "down", "in", "out", "on", "off", "over", "under", "again",
	"further", "then", "once", "here", "there", "when", "where", "why", "how", "all",
	"any", "both", "each", "few", "more", "most", "other", "some", "such", "no",
	"nor", "not", "only", "own", "same", "so", "than", "too", "very", "s", "t",
	"can", "will", "just", "don", "don't", "should", "should've", "now", "d", "ll",
	"m", "o", "re", "ve", "y", "ain", "aren", "aren't", "couldn", "couldn't",
	"didn", "didn't", "doesn", "doesn't", "hadn", "hadn't", "hasn", "hasn't",
	"haven", "haven't", "isn", "isn't", "ma", "mightn", "mightn't", "mustn",
	"mustn't", "needn", "needn't", "shan", "shan't", "shouldn", "shouldn't",
	"wasn", "wasn't", "weren", "weren't", "won", "won't", "wouldn", "wouldn't",
}

// domainStopWords are frequent in regulatory comment letters but carry no
// topic signal.
var domainStopWords = []string{
	"cms", "hospital", "medicare", "medicaid", "program", "rule", "proposed",
	"comment", "attachment", "pdf", "page", "break", "would", "could", "should",
	"also", "however", "therefore", "additionally", "furthermore", "moreover",
	"th", "st", "nd", "rd", "et", "al", "etc", "ie", "eg", "vs", "inc",
	"llc", "ltd", "corp", "co", "dept", "department", "administration",
}

// StopWords is a set of lowercase words excluded from vectorization and
// keyword extraction.
type StopWords map[string]struct{}

// NewStopWords returns the English and domain lists plus extra.
func NewStopWords(extra ...string) StopWords {
	sw := make(StopWords, len(englishStopWords)+len(domainStopWords)+len(extra))
	for _, list := range [][]string{englishStopWords, domainStopWords, extra} {
		for _, w := range list {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				sw[w] = struct{}{}
			}
		}
	}
	return sw
}

// Contains reports whether w is a stop word.
func (s StopWords) Contains(w string) bool {
	_, ok := s[w]
	return ok
}
