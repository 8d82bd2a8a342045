package docchunk

import (
	"context"
	"sort"
	"strings"
)

// Default similarity engine configuration values.
const (
	DefaultMatrixThreshold = 0.1

	// Hybrid metric component weights.
	HybridCosineWeight   = 0.4
	HybridSemanticWeight = 0.6
)

// Metric identifies a similarity metric.
type Metric string

// Similarity metrics.
const (
	MetricCosine   Metric = "cosine"   // TF-IDF vector cosine similarity
	MetricJaccard  Metric = "jaccard"  // token-set intersection over union
	MetricSemantic Metric = "semantic" // embedding cosine, falls back to cosine
	MetricHybrid   Metric = "hybrid"   // weighted cosine + semantic
)

// Validate returns an error if the metric is not a known metric.
func (m Metric) Validate() error {
	switch m {
	case MetricCosine, MetricJaccard, MetricSemantic, MetricHybrid:
		return nil
	}
	return Errorf(EINVALID, "unknown similarity metric %q", string(m))
}

// ClusterAlgorithm identifies a document clustering algorithm.
type ClusterAlgorithm string

// Clustering algorithms.
const (
	ClusterKMeans       ClusterAlgorithm = "kmeans"
	ClusterHierarchical ClusterAlgorithm = "hierarchical"
)

// Pair is an unordered document-ID pair used as a similarity matrix key.
// NewPair canonicalizes the order so (a,b) and (b,a) collide.
type Pair struct {
	A, B string
}

// NewPair returns the canonical pair for two document IDs.
func NewPair(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Matrix is a sparse symmetric pairwise similarity table. Pairs scoring
// below the build threshold are absent.
type Matrix map[Pair]float64

// Score returns the stored score for two document IDs, or zero when the
// pair was below the threshold.
func (m Matrix) Score(a, b string) float64 {
	return m[NewPair(a, b)]
}

// MatrixKey derives a canonical cache key from a document-ID set and a
// metric: the sorted IDs joined with "|" plus the metric name. Identical
// sets produce identical keys regardless of input order.
func MatrixKey(docIDs []string, metric Metric) string {
	sorted := make([]string, len(docIDs))
	copy(sorted, docIDs)
	sort.Strings(sorted)
	return strings.Join(sorted, "|") + "#" + string(metric)
}

// ScoredDocument is a document ranked by similarity to a query.
type ScoredDocument struct {
	DocumentID string  `json:"documentId"`
	Score      float64 `json:"score"`
}

// SimilarityService computes document similarity under configurable
// metrics, builds pairwise matrices, and clusters document sets.
type SimilarityService interface {
	// CalculateSimilarity computes the similarity of two texts or document
	// IDs in [0,1]. An empty metric computes the weighted average of all
	// configured metrics.
	CalculateSimilarity(ctx context.Context, a, b string, metric Metric) (float64, error)

	// BuildSimilarityMatrix computes pairwise scores for a document set,
	// keeping only pairs at or above the threshold. A negative threshold
	// uses the configured default.
	BuildSimilarityMatrix(ctx context.Context, docIDs []string, metric Metric, threshold float64) (Matrix, error)

	// ClusterDocuments partitions documents into at most numClusters groups.
	// Failures degrade to one document per cluster rather than erroring.
	ClusterDocuments(ctx context.Context, docIDs []string, numClusters int, algorithm ClusterAlgorithm) ([][]string, error)

	// FindSimilarDocuments ranks candidates by similarity to the query
	// text, filtering below the threshold, descending, truncated to topN.
	FindSimilarDocuments(ctx context.Context, query string, candidateIDs []string, topN int, threshold float64) ([]ScoredDocument, error)

	// Invalidate drops cached state derived from the given documents. With
	// no arguments all cached state is dropped.
	Invalidate(docIDs ...string)
}

// SimilarityStore persists derived similarity state so matrix builds and
// cluster runs survive process restarts. Implementations are free to drop
// rows at any time; the engine treats the store as a cache.
type SimilarityStore interface {
	// SaveScores persists pairwise scores for a metric.
	SaveScores(ctx context.Context, metric Metric, m Matrix) error

	// LoadScores retrieves persisted scores among the given documents.
	LoadScores(ctx context.Context, docIDs []string, metric Metric) (Matrix, error)

	// SaveVector persists a document's vector for a metric.
	SaveVector(ctx context.Context, docID string, metric Metric, vector []float64) error

	// LoadVector retrieves a document's vector.
	// Returns ENOTFOUND if no vector is stored.
	LoadVector(ctx context.Context, docID string, metric Metric) ([]float64, error)

	// SaveClusters persists a clustering result under a cache key.
	SaveClusters(ctx context.Context, key string, clusters [][]string) error
}

// Embedder produces embedding vectors for texts. Implementations wrap an
// embedding model API; the similarity engine falls back to TF-IDF cosine
// when no embedder is configured.
type Embedder interface {
	// Embed returns one embedding vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}
