// Package group clusters extracted documents into topics and reports the
// result per document and per cluster.
package group

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/docsift/internal/capability"
	"github.com/Aman-CERP/docsift/internal/config"
	"github.com/Aman-CERP/docsift/internal/embed"
	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/logging"
)

// Method names a clustering algorithm.
type Method string

const (
	MethodKMeans    Method = "tfidf_kmeans"
	MethodLDA       Method = "lda"
	MethodEmbedding Method = "embedding"
)

// Methods lists every supported method.
func Methods() []Method {
	return []Method{MethodKMeans, MethodLDA, MethodEmbedding}
}

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Methods() {
		if m == known {
			return m, nil
		}
	}
	return "", serr.Newf(serr.ErrCodeUnknownMethod, "unknown clustering method %q", s).
		WithSuggestion("Use one of: tfidf_kmeans, lda, embedding")
}

const (
	keywordsPerCluster   = 10
	clusterKeywords      = 15
	globalTFIDFKeywords  = 50
	globalFreqKeywords   = 30
	documentKeywords     = 10
	topMetadataValues    = 5
	smallCorpusThreshold = 5
)

// Params controls one Analyze call. K <= 0 selects k automatically.
type Params struct {
	K             int      `json:"k"`
	MinK          int      `json:"min_k"`
	MaxK          int      `json:"max_k"`
	MaxFeatures   int      `json:"max_features"`
	MinDF         int      `json:"min_df"`
	MaxDF         float64  `json:"max_df"`
	NInit         int      `json:"n_init"`
	MaxIter       int      `json:"max_iter"`
	LDAIterations int      `json:"lda_iterations"`
	Seed          int64    `json:"seed"`
	MinTopicSize  int      `json:"min_topic_size"`
	ReduceDims    int      `json:"reduce_dims"`
	SummaryChars  int      `json:"summary_chars"`
	StopWords     []string `json:"stop_words,omitempty"`
}

// ParamsFromConfig copies the group section of the configuration.
func ParamsFromConfig(cfg config.GroupConfig) Params {
	return Params{
		MinK:          cfg.MinK,
		MaxK:          cfg.MaxK,
		MaxFeatures:   cfg.MaxFeatures,
		MinDF:         cfg.MinDF,
		MaxDF:         cfg.MaxDF,
		NInit:         cfg.NInit,
		MaxIter:       cfg.MaxIter,
		LDAIterations: cfg.LDAIterations,
		Seed:          cfg.Seed,
		MinTopicSize:  cfg.MinTopicSize,
		ReduceDims:    cfg.ReduceDims,
		SummaryChars:  cfg.SummaryChars,
		StopWords:     cfg.ExtraStopWords,
	}
}

func (p Params) withDefaults() Params {
	d := ParamsFromConfig(config.NewConfig().Group)
	if p.MinK <= 0 {
		p.MinK = d.MinK
	}
	if p.MaxK < p.MinK {
		p.MaxK = max(d.MaxK, p.MinK)
	}
	if p.MaxFeatures <= 0 {
		p.MaxFeatures = d.MaxFeatures
	}
	if p.MinDF <= 0 {
		p.MinDF = d.MinDF
	}
	if p.MaxDF <= 0 || p.MaxDF > 1 {
		p.MaxDF = d.MaxDF
	}
	if p.NInit <= 0 {
		p.NInit = d.NInit
	}
	if p.MaxIter <= 0 {
		p.MaxIter = d.MaxIter
	}
	if p.LDAIterations <= 0 {
		p.LDAIterations = d.LDAIterations
	}
	if p.MinTopicSize <= 0 {
		p.MinTopicSize = d.MinTopicSize
	}
	if p.ReduceDims <= 0 {
		p.ReduceDims = d.ReduceDims
	}
	if p.SummaryChars <= 0 {
		p.SummaryChars = d.SummaryChars
	}
	return p
}

// AutoK derives a cluster count from the corpus size:
// clamp(floor(sqrt(n/2)), minK, maxK).
func AutoK(n, minK, maxK int) int {
	k := int(math.Floor(math.Sqrt(float64(n) / 2)))
	return min(max(k, minK), maxK)
}

// EffectiveK caps k at the number of documents.
func EffectiveK(k, n int) int {
	return max(min(k, n), 1)
}

// MethodResult is the per-method fit record: one of *KMeansResult,
// *LDAResult or *EmbeddingResult.
type MethodResult interface {
	Method() Method
}

// KMeansResult describes a TF-IDF k-means fit.
type KMeansResult struct {
	K          int     `json:"k"`
	Silhouette float64 `json:"silhouette"`
	Inertia    float64 `json:"inertia"`
	Iterations int     `json:"iterations"`
	// ClusterTerms are the top centroid terms per cluster label.
	ClusterTerms [][]string `json:"cluster_terms"`
}

func (*KMeansResult) Method() Method { return MethodKMeans }

// LDAResult describes a topic-model fit.
type LDAResult struct {
	Topics        int        `json:"topics"`
	Perplexity    float64    `json:"perplexity"`
	LogLikelihood float64    `json:"log_likelihood"`
	TopicWords    [][]string `json:"topic_words"`
}

func (*LDAResult) Method() Method { return MethodLDA }

// EmbeddingResult describes a density clustering of document embeddings.
type EmbeddingResult struct {
	Topics       int        `json:"topics"`
	Outliers     int        `json:"outliers"`
	Model        string     `json:"model"`
	MinTopicSize int        `json:"min_topic_size"`
	Radius       float64    `json:"radius"`
	TopicWords   [][]string `json:"topic_words"`
}

func (*EmbeddingResult) Method() Method { return MethodEmbedding }

// Assignment places one document in a cluster.
type Assignment struct {
	DocumentID     string   `json:"document_id"`
	Filename       string   `json:"filename"`
	Organization   string   `json:"organization"`
	Category       string   `json:"category"`
	SourceURL      string   `json:"source_url"`
	ClusterLabel   int      `json:"cluster_id"`
	Keywords       []string `json:"keywords"`
	Summary        string   `json:"summary"`
	CharacterCount int      `json:"character_count"`
	WordCount      int      `json:"word_count"`
}

// Count is a value with its number of occurrences.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ClusterSummary aggregates the documents sharing a label.
type ClusterSummary struct {
	Label             int      `json:"cluster_id"`
	DocumentCount     int      `json:"document_count"`
	Keywords          []string `json:"keywords"`
	FrequencyKeywords []string `json:"frequency_keywords"`
	TopOrganizations  []Count  `json:"top_organizations"`
	TopCategories     []Count  `json:"top_categories"`
	AvgDocumentLength float64  `json:"avg_document_length"`
}

// Keywords are corpus-wide keyword lists.
type Keywords struct {
	TFIDF     []string `json:"tfidf"`
	Frequency []string `json:"frequency"`
}

// Analysis is the full outcome of one Analyze call. EffectiveK is the k the
// model was fitted with (the topic count found for embedding); labels
// argmax-assigned from a k-topic fit can leave some of them empty, so
// PopulatedClusters counts the non-outlier labels actually in use.
type Analysis struct {
	Method            Method           `json:"method"`
	RequestedK        int              `json:"requested_k"`
	EffectiveK        int              `json:"effective_k"`
	PopulatedClusters int              `json:"populated_clusters"`
	Params            Params           `json:"params"`
	Result            MethodResult     `json:"result"`
	Assignments       []Assignment     `json:"assignments"`
	Clusters          []ClusterSummary `json:"clusters"`
	Global            Keywords         `json:"global_keywords"`
	Duration          time.Duration    `json:"-"`
}

// ClusterSize returns how many documents carry label.
func (a *Analysis) ClusterSize(label int) int {
	for _, c := range a.Clusters {
		if c.Label == label {
			return c.DocumentCount
		}
	}
	return 0
}

// ClusterKeywords returns the keywords of the cluster with label.
func (a *Analysis) ClusterKeywords(label int) []string {
	for _, c := range a.Clusters {
		if c.Label == label {
			return c.Keywords
		}
	}
	return nil
}

// Grouper runs clustering methods over a corpus.
type Grouper struct {
	embedder capability.Of[embed.Embedder]
	logger   *slog.Logger
}

// New returns a Grouper. The embedding method is usable only when embedder
// is Available.
func New(embedder capability.Of[embed.Embedder], logger *slog.Logger) *Grouper {
	return &Grouper{embedder: embedder, logger: logging.OrNop(logger)}
}

// Analyze clusters every document in corpus with method. Each document gets
// exactly one Assignment.
func (g *Grouper) Analyze(ctx context.Context, corpus *Corpus, method Method, params Params) (*Analysis, error) {
	start := time.Now()
	method, err := ParseMethod(string(method))
	if err != nil {
		return nil, err
	}
	var embedder embed.Embedder
	if method == MethodEmbedding {
		e, ok := g.embedder.Get()
		if !ok {
			return nil, serr.Newf(serr.ErrCodeMethodUnavailable, "clustering method %q unavailable: %s", method, g.embedder.Reason()).
				WithDetail("method", string(method)).
				WithSuggestion("Configure embeddings.provider or choose tfidf_kmeans or lda")
		}
		embedder = e
	}
	n := corpus.Len()
	if n == 0 {
		return nil, serr.New(serr.ErrCodeEmptyCorpus, "no documents to analyze", nil).
			WithSuggestion("Run 'docsift extract' first")
	}

	p := params.withDefaults()
	requested := p.K
	if requested <= 0 {
		requested = AutoK(n, p.MinK, p.MaxK)
	}
	k := EffectiveK(requested, n)
	if k != requested {
		g.logger.Info("cluster count capped at corpus size", "requested", requested, "effective", k)
	}

	cleaned := make([]string, n)
	for i, d := range corpus.Documents {
		cleaned[i] = Clean(d.Text)
	}
	stop := NewStopWords(p.StopWords...)
	vec := vectorizer{NgramMax: 2, MinDF: p.MinDF, MaxDF: p.MaxDF, MaxFeatures: p.MaxFeatures, Stop: stop}
	if n < smallCorpusThreshold {
		vec.MinDF, vec.MaxDF = 1, 1
	}

	g.logger.Info("clustering", "method", method, "documents", n, "k", k)
	var (
		labels []int
		result MethodResult
	)
	switch method {
	case MethodKMeans:
		labels, result, err = fitKMeans(ctx, cleaned, vec, k, p)
	case MethodLDA:
		vec.NgramMax = 1
		labels, result, err = fitLDA(ctx, cleaned, vec, k, p)
	case MethodEmbedding:
		labels, result, err = fitEmbedding(ctx, embedder, cleaned, stop, p)
	}
	if err != nil {
		return nil, fitError(method, err)
	}
	if er, ok := result.(*EmbeddingResult); ok {
		k = er.Topics
	}
	populated := populatedClusters(labels)
	if populated < k {
		g.logger.Info("some clusters are empty", "method", method, "effective_k", k, "populated", populated)
	}

	a := &Analysis{
		Method:            method,
		RequestedK:        requested,
		EffectiveK:        k,
		PopulatedClusters: populated,
		Params:            p,
		Result:            result,
	}
	a.Assignments = make([]Assignment, n)
	for i, d := range corpus.Documents {
		a.Assignments[i] = Assignment{
			DocumentID:     d.DocumentID,
			Filename:       d.Filename,
			Organization:   d.Organization,
			Category:       d.Category,
			SourceURL:      d.SourceURL,
			ClusterLabel:   labels[i],
			Keywords:       FrequencyKeywords([]string{cleaned[i]}, documentKeywords, stop),
			Summary:        Summary(cleaned[i], p.SummaryChars),
			CharacterCount: d.CharacterCount,
			WordCount:      d.WordCount,
		}
	}
	a.Clusters = summarize(corpus, cleaned, labels, stop)
	a.Global = Keywords{
		TFIDF:     TFIDFKeywords(cleaned, globalTFIDFKeywords, stop),
		Frequency: FrequencyKeywords(cleaned, globalFreqKeywords, stop),
	}
	a.Duration = time.Since(start)
	g.logger.Info("clustering complete", "method", method, "clusters", len(a.Clusters), "duration", a.Duration)
	return a, nil
}

func fitError(method Method, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, errEmptyVocabulary) {
		return serr.New(serr.ErrCodeEmptyVocabulary, fmt.Sprintf("%s: no terms left after stop words and frequency bounds", method), err).
			WithDetail("method", string(method)).
			WithSuggestion("Lower group.min_df or raise group.max_df")
	}
	return serr.New(serr.ErrCodeFitFailed, fmt.Sprintf("%s fit failed", method), err).
		WithDetail("method", string(method)).
		WithSuggestion("Retry with another --method")
}

func fitKMeans(ctx context.Context, cleaned []string, vec vectorizer, k int, p Params) ([]int, MethodResult, error) {
	m, err := vec.tfidf(cleaned)
	if err != nil {
		return nil, nil, err
	}
	fit, err := kmeans(ctx, m.Rows, k, p.NInit, p.MaxIter, p.Seed)
	if err != nil {
		return nil, nil, err
	}
	res := &KMeansResult{
		K:          k,
		Silhouette: silhouette(m.Rows, fit.Labels),
		Inertia:    fit.Inertia,
		Iterations: fit.Iter,
	}
	for _, c := range fit.Centroids {
		res.ClusterTerms = append(res.ClusterTerms, topTerms(m.Vocab, c, keywordsPerCluster))
	}
	return fit.Labels, res, nil
}

func fitLDA(ctx context.Context, cleaned []string, vec vectorizer, k int, p Params) ([]int, MethodResult, error) {
	m, err := vec.counts(cleaned)
	if err != nil {
		return nil, nil, err
	}
	fit, err := lda(ctx, m.Rows, len(m.Vocab), k, p.LDAIterations, p.Seed)
	if err != nil {
		return nil, nil, err
	}
	labels := make([]int, len(cleaned))
	for i, theta := range fit.Theta {
		labels[i] = argmax(theta)
	}
	res := &LDAResult{Topics: k, Perplexity: fit.Perplexity, LogLikelihood: fit.LogLikelihood}
	for _, phi := range fit.Phi {
		res.TopicWords = append(res.TopicWords, topTerms(m.Vocab, phi, keywordsPerCluster))
	}
	return labels, res, nil
}

func fitEmbedding(ctx context.Context, e embed.Embedder, cleaned []string, stop StopWords, p Params) ([]int, MethodResult, error) {
	vecs, err := embedDocuments(ctx, e, cleaned)
	if err != nil {
		return nil, nil, err
	}
	reduced := pca(vecs, p.ReduceDims, p.Seed)
	fit := densityCluster(reduced, p.MinTopicSize, p.Seed)

	res := &EmbeddingResult{
		Topics:       fit.Topics,
		Outliers:     fit.Outliers,
		Model:        e.ModelName(),
		MinTopicSize: p.MinTopicSize,
		Radius:       fit.Radius,
	}
	for t := 0; t < fit.Topics; t++ {
		var texts []string
		for i, l := range fit.Labels {
			if l == t {
				texts = append(texts, cleaned[i])
			}
		}
		res.TopicWords = append(res.TopicWords, TFIDFKeywords(texts, keywordsPerCluster, stop))
	}
	return fit.Labels, res, nil
}

// populatedClusters counts the distinct labels in use, outliers excluded.
func populatedClusters(labels []int) int {
	seen := map[int]bool{}
	for _, l := range labels {
		if l != OutlierLabel {
			seen[l] = true
		}
	}
	return len(seen)
}

// summarize builds one ClusterSummary per label in use, ascending, with
// outliers first when present.
func summarize(corpus *Corpus, cleaned []string, labels []int, stop StopWords) []ClusterSummary {
	members := map[int][]int{}
	for i, l := range labels {
		members[l] = append(members[l], i)
	}
	keys := make([]int, 0, len(members))
	for l := range members {
		keys = append(keys, l)
	}
	sort.Ints(keys)

	out := make([]ClusterSummary, 0, len(keys))
	for _, l := range keys {
		idx := members[l]
		texts := make([]string, len(idx))
		orgs := make([]string, len(idx))
		cats := make([]string, len(idx))
		var chars int
		for j, i := range idx {
			d := corpus.Documents[i]
			texts[j] = cleaned[i]
			orgs[j] = d.Organization
			cats[j] = d.Category
			chars += d.CharacterCount
		}
		out = append(out, ClusterSummary{
			Label:             l,
			DocumentCount:     len(idx),
			Keywords:          TFIDFKeywords(texts, clusterKeywords, stop),
			FrequencyKeywords: FrequencyKeywords(texts, clusterKeywords, stop),
			TopOrganizations:  mostCommon(orgs, topMetadataValues),
			TopCategories:     mostCommon(cats, topMetadataValues),
			AvgDocumentLength: float64(chars) / float64(len(idx)),
		})
	}
	return out
}

// mostCommon counts non-empty values and returns the n most frequent; ties
// keep first-seen order.
func mostCommon(values []string, n int) []Count {
	var counts []Count
	pos := map[string]int{}
	for _, v := range values {
		if v = strings.TrimSpace(v); v == "" {
			continue
		}
		if i, ok := pos[v]; ok {
			counts[i].Count++
			continue
		}
		pos[v] = len(counts)
		counts = append(counts, Count{Value: v, Count: 1})
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}
