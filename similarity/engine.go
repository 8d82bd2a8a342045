// Package similarity computes document similarity under configurable
// metrics, builds pairwise similarity matrices, and clusters document sets.
package similarity

import (
	"context"
	"sort"

	"github.com/fwojciec/docchunk"
)

// batchThreshold is the document-set size above which matrix builds switch
// from pairwise calls to a single shared vector space.
const batchThreshold = 10

// Compile-time interface verification.
var _ docchunk.SimilarityService = (*Engine)(nil)

// Engine implements docchunk.SimilarityService.
//
// An Engine memoizes document lookups and built matrices for its lifetime.
// It is not safe for uncoordinated concurrent use; callers needing
// concurrency should use one Engine per worker.
type Engine struct {
	source   *docchunk.CachingSource
	embedder docchunk.Embedder
	store    docchunk.SimilarityStore

	defaultMetric docchunk.Metric
	threshold     float64
	weights       map[docchunk.Metric]float64

	cache *matrixCache

	// tfidf is the single cosine vector space, fitted lazily over every
	// text the engine has seen and refitted when unseen texts arrive. All
	// cosine paths transform through it so a pair scores the same whether
	// computed alone or inside a batch.
	tfidf     *Vectorizer
	corpus    []string
	corpusSet map[string]struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmbedder supplies the embedding backend for the SEMANTIC metric.
// Without one, SEMANTIC falls back to COSINE.
func WithEmbedder(embedder docchunk.Embedder) Option {
	return func(e *Engine) { e.embedder = embedder }
}

// WithStore supplies a persistence backend for vectors and scores.
func WithStore(store docchunk.SimilarityStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithDefaultMetric overrides the metric used when callers pass none.
func WithDefaultMetric(metric docchunk.Metric) Option {
	return func(e *Engine) { e.defaultMetric = metric }
}

// WithMatrixThreshold overrides the default matrix score threshold.
func WithMatrixThreshold(threshold float64) Option {
	return func(e *Engine) { e.threshold = threshold }
}

// WithWeights overrides the per-metric weights used for the combined
// score. Weights need not sum to 1; the engine normalizes by their sum.
func WithWeights(weights map[docchunk.Metric]float64) Option {
	return func(e *Engine) { e.weights = weights }
}

// NewEngine creates an Engine resolving document IDs through source.
// A nil source restricts the engine to raw-text inputs.
func NewEngine(source docchunk.DocumentSource, opts ...Option) *Engine {
	e := &Engine{
		defaultMetric: docchunk.MetricCosine,
		threshold:     docchunk.DefaultMatrixThreshold,
		weights: map[docchunk.Metric]float64{
			docchunk.MetricCosine:   0.4,
			docchunk.MetricJaccard:  0.3,
			docchunk.MetricSemantic: 0.3,
		},
		cache:     newMatrixCache(),
		corpusSet: make(map[string]struct{}),
	}
	if source != nil {
		e.source = docchunk.NewCachingSource(source)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CalculateSimilarity computes the similarity of two inputs in [0,1].
// Each input is resolved as a document ID when the lookup succeeds and
// treated as raw text otherwise. An empty metric computes the weighted
// average of all configured metrics.
func (e *Engine) CalculateSimilarity(ctx context.Context, a, b string, metric docchunk.Metric) (float64, error) {
	textA, err := e.resolveText(ctx, a)
	if err != nil {
		return 0, err
	}
	textB, err := e.resolveText(ctx, b)
	if err != nil {
		return 0, err
	}

	if metric == "" {
		return e.combined(ctx, textA, textB)
	}
	if err := metric.Validate(); err != nil {
		return 0, err
	}
	return e.calculate(ctx, textA, textB, metric)
}

// BuildSimilarityMatrix computes thresholded pairwise scores for a
// document set. Results are cached by the canonical ID-set key and, when a
// store is configured, persisted.
func (e *Engine) BuildSimilarityMatrix(ctx context.Context, docIDs []string, metric docchunk.Metric, threshold float64) (docchunk.Matrix, error) {
	if metric == "" {
		metric = e.defaultMetric
	}
	if err := metric.Validate(); err != nil {
		return nil, err
	}
	if threshold < 0 {
		threshold = e.threshold
	}

	key := docchunk.MatrixKey(docIDs, metric)
	if m, ok := e.cache.get(key); ok {
		return m, nil
	}

	ids := uniqueIDs(docIDs)
	texts := make([]string, len(ids))
	for i, id := range ids {
		text, err := e.resolveText(ctx, id)
		if err != nil {
			return nil, err
		}
		texts[i] = text
	}

	var m docchunk.Matrix
	var err error
	if len(ids) > batchThreshold && (metric == docchunk.MetricCosine || metric == docchunk.MetricSemantic) {
		m, err = e.batchMatrix(ctx, ids, texts, metric, threshold)
	} else {
		m, err = e.pairwiseMatrix(ctx, ids, texts, metric, threshold)
	}
	if err != nil {
		return nil, err
	}

	e.cache.put(key, ids, m)
	if e.store != nil {
		_ = e.store.SaveScores(ctx, metric, m)
	}
	return m, nil
}

// ClusterDocuments partitions documents into at most numClusters groups.
// Clustering failures degrade to one document per cluster.
func (e *Engine) ClusterDocuments(ctx context.Context, docIDs []string, numClusters int, algorithm docchunk.ClusterAlgorithm) ([][]string, error) {
	ids := uniqueIDs(docIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	if numClusters > len(ids) {
		numClusters = len(ids)
	}
	if numClusters < 1 {
		numClusters = 1
	}

	texts := make([]string, len(ids))
	for i, id := range ids {
		text, err := e.resolveText(ctx, id)
		if err != nil {
			return nil, err
		}
		texts[i] = text
	}

	vectorizer := NewVectorizer(texts)
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = vectorizer.Transform(text)
	}

	var groups [][]int
	var err error
	switch algorithm {
	case docchunk.ClusterHierarchical:
		groups, err = clusterHierarchical(vectors, numClusters)
	default:
		groups, err = clusterKMeans(vectors, numClusters)
	}
	if err != nil || len(groups) == 0 {
		// Degrade to singleton clusters rather than failing the caller.
		clusters := make([][]string, len(ids))
		for i, id := range ids {
			clusters[i] = []string{id}
		}
		return clusters, nil
	}

	clusters := make([][]string, 0, len(groups))
	for _, group := range groups {
		cluster := make([]string, 0, len(group))
		for _, idx := range group {
			cluster = append(cluster, ids[idx])
		}
		clusters = append(clusters, cluster)
	}

	if e.store != nil {
		key := docchunk.MatrixKey(ids, e.defaultMetric) + ":" + string(algorithm)
		_ = e.store.SaveClusters(ctx, key, clusters)
	}
	return clusters, nil
}

// FindSimilarDocuments ranks candidates by similarity to the query.
func (e *Engine) FindSimilarDocuments(ctx context.Context, query string, candidateIDs []string, topN int, threshold float64) ([]docchunk.ScoredDocument, error) {
	if threshold < 0 {
		threshold = e.threshold
	}

	var results []docchunk.ScoredDocument
	for _, id := range uniqueIDs(candidateIDs) {
		score, err := e.CalculateSimilarity(ctx, query, id, "")
		if err != nil {
			return nil, err
		}
		if score < threshold {
			continue
		}
		results = append(results, docchunk.ScoredDocument{DocumentID: id, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

// SplitClusterer adapts the engine to the chunk store's split hook,
// partitioning members into two groups.
func (e *Engine) SplitClusterer() docchunk.ClusterFunc {
	return func(ctx context.Context, docIDs []string) ([][]string, error) {
		return e.ClusterDocuments(ctx, docIDs, 2, docchunk.ClusterKMeans)
	}
}

// Invalidate drops cached state derived from the given documents. With no
// arguments all cached state is dropped.
func (e *Engine) Invalidate(docIDs ...string) {
	e.cache.invalidate(docIDs...)
	if e.source != nil {
		e.source.Invalidate(docIDs...)
	}
	// Changed documents leave their old text in the fitted space, so the
	// space is rebuilt from scratch on the next use.
	e.tfidf = nil
	e.corpus = nil
	e.corpusSet = make(map[string]struct{})
}

// resolveText resolves an input as a document ID when possible, falling
// back to treating it as raw text.
func (e *Engine) resolveText(ctx context.Context, input string) (string, error) {
	if e.source == nil {
		return input, nil
	}
	doc, err := e.source.GetDocument(ctx, input)
	if docchunk.ErrorCode(err) == docchunk.ENOTFOUND {
		return input, nil
	}
	if err != nil {
		return "", err
	}
	return doc.Content, nil
}

// combined computes the weight-normalized average of all configured metrics.
func (e *Engine) combined(ctx context.Context, textA, textB string) (float64, error) {
	var sum, weightSum float64
	for metric, weight := range e.weights {
		if weight <= 0 {
			continue
		}
		score, err := e.calculate(ctx, textA, textB, metric)
		if err != nil {
			return 0, err
		}
		sum += score * weight
		weightSum += weight
	}
	if weightSum == 0 {
		return 0, docchunk.Errorf(docchunk.EINVALID, "no metric weights configured")
	}
	return sum / weightSum, nil
}

func (e *Engine) calculate(ctx context.Context, textA, textB string, metric docchunk.Metric) (float64, error) {
	switch metric {
	case docchunk.MetricCosine:
		return e.cosineSimilarity(textA, textB), nil
	case docchunk.MetricJaccard:
		return jaccardSimilarity(textA, textB), nil
	case docchunk.MetricSemantic:
		return e.semanticSimilarity(ctx, textA, textB)
	case docchunk.MetricHybrid:
		semantic, err := e.semanticSimilarity(ctx, textA, textB)
		if err != nil {
			return 0, err
		}
		return docchunk.HybridCosineWeight*e.cosineSimilarity(textA, textB) +
			docchunk.HybridSemanticWeight*semantic, nil
	}
	return 0, docchunk.Errorf(docchunk.EINVALID, "unknown similarity metric %q", string(metric))
}

func (e *Engine) cosineSimilarity(textA, textB string) float64 {
	vectors := e.vectorize([]string{textA, textB})
	return cosine(vectors[0], vectors[1])
}

// vectorize transforms texts in the shared TF-IDF space, refitting it
// first when the input contains texts the engine has not seen.
func (e *Engine) vectorize(texts []string) [][]float64 {
	grown := false
	for _, text := range texts {
		if _, ok := e.corpusSet[text]; !ok {
			e.corpusSet[text] = struct{}{}
			e.corpus = append(e.corpus, text)
			grown = true
		}
	}
	if grown || e.tfidf == nil {
		e.tfidf = NewVectorizer(e.corpus)
	}

	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = e.tfidf.Transform(text)
	}
	return vectors
}

func (e *Engine) semanticSimilarity(ctx context.Context, textA, textB string) (float64, error) {
	if e.embedder == nil {
		return e.cosineSimilarity(textA, textB), nil
	}
	vectors, err := e.embedder.Embed(ctx, []string{textA, textB})
	if err != nil {
		return 0, err
	}
	if len(vectors) != 2 {
		return 0, docchunk.Errorf(docchunk.EINTERNAL, "embedder returned %d vectors for 2 texts", len(vectors))
	}
	return cosine(vectors[0], vectors[1]), nil
}

// jaccardSimilarity computes token-set intersection over union.
func jaccardSimilarity(textA, textB string) float64 {
	setA := tokenSet(textA)
	setB := tokenSet(textB)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}

// batchMatrix vectorizes the whole set once and computes all pairs from
// the shared space, avoiding repeated per-pair vectorization.
func (e *Engine) batchMatrix(ctx context.Context, ids, texts []string, metric docchunk.Metric, threshold float64) (docchunk.Matrix, error) {
	var vectors [][]float64
	switch {
	case metric == docchunk.MetricSemantic && e.embedder != nil:
		var err error
		vectors, err = e.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(texts) {
			return nil, docchunk.Errorf(docchunk.EINTERNAL, "embedder returned %d vectors for %d texts", len(vectors), len(texts))
		}
	default:
		vectors = e.vectorize(texts)
	}

	if e.store != nil {
		for i, id := range ids {
			_ = e.store.SaveVector(ctx, id, metric, vectors[i])
		}
	}

	m := docchunk.Matrix{}
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			score := cosine(vectors[i], vectors[j])
			if score >= threshold {
				m[docchunk.NewPair(ids[i], ids[j])] = score
			}
		}
	}
	return m, nil
}

// pairwiseMatrix computes each pair independently.
func (e *Engine) pairwiseMatrix(ctx context.Context, ids, texts []string, metric docchunk.Metric, threshold float64) (docchunk.Matrix, error) {
	// Warm the shared space with the whole set before scoring pairs.
	if metric != docchunk.MetricJaccard {
		e.vectorize(texts)
	}

	m := docchunk.Matrix{}
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			score, err := e.calculate(ctx, texts[i], texts[j], metric)
			if err != nil {
				return nil, err
			}
			if score >= threshold {
				m[docchunk.NewPair(ids[i], ids[j])] = score
			}
		}
	}
	return m, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
