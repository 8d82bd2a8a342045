package mock

import (
	"context"

	"github.com/fwojciec/docchunk"
)

var _ docchunk.SimilarityService = (*SimilarityService)(nil)

// SimilarityService is a mock implementation of docchunk.SimilarityService.
type SimilarityService struct {
	CalculateSimilarityFn   func(ctx context.Context, a, b string, metric docchunk.Metric) (float64, error)
	BuildSimilarityMatrixFn func(ctx context.Context, docIDs []string, metric docchunk.Metric, threshold float64) (docchunk.Matrix, error)
	ClusterDocumentsFn      func(ctx context.Context, docIDs []string, numClusters int, algorithm docchunk.ClusterAlgorithm) ([][]string, error)
	FindSimilarDocumentsFn  func(ctx context.Context, query string, candidateIDs []string, topN int, threshold float64) ([]docchunk.ScoredDocument, error)
	InvalidateFn            func(docIDs ...string)
}

func (s *SimilarityService) CalculateSimilarity(ctx context.Context, a, b string, metric docchunk.Metric) (float64, error) {
	return s.CalculateSimilarityFn(ctx, a, b, metric)
}

func (s *SimilarityService) BuildSimilarityMatrix(ctx context.Context, docIDs []string, metric docchunk.Metric, threshold float64) (docchunk.Matrix, error) {
	return s.BuildSimilarityMatrixFn(ctx, docIDs, metric, threshold)
}

func (s *SimilarityService) ClusterDocuments(ctx context.Context, docIDs []string, numClusters int, algorithm docchunk.ClusterAlgorithm) ([][]string, error) {
	return s.ClusterDocumentsFn(ctx, docIDs, numClusters, algorithm)
}

func (s *SimilarityService) FindSimilarDocuments(ctx context.Context, query string, candidateIDs []string, topN int, threshold float64) ([]docchunk.ScoredDocument, error) {
	return s.FindSimilarDocumentsFn(ctx, query, candidateIDs, topN, threshold)
}

func (s *SimilarityService) Invalidate(docIDs ...string) {
	s.InvalidateFn(docIDs...)
}

var _ docchunk.SimilarityStore = (*SimilarityStore)(nil)

// SimilarityStore is a mock implementation of docchunk.SimilarityStore.
type SimilarityStore struct {
	SaveScoresFn   func(ctx context.Context, metric docchunk.Metric, m docchunk.Matrix) error
	LoadScoresFn   func(ctx context.Context, docIDs []string, metric docchunk.Metric) (docchunk.Matrix, error)
	SaveVectorFn   func(ctx context.Context, docID string, metric docchunk.Metric, vector []float64) error
	LoadVectorFn   func(ctx context.Context, docID string, metric docchunk.Metric) ([]float64, error)
	SaveClustersFn func(ctx context.Context, key string, clusters [][]string) error
}

func (s *SimilarityStore) SaveScores(ctx context.Context, metric docchunk.Metric, m docchunk.Matrix) error {
	return s.SaveScoresFn(ctx, metric, m)
}

func (s *SimilarityStore) LoadScores(ctx context.Context, docIDs []string, metric docchunk.Metric) (docchunk.Matrix, error) {
	return s.LoadScoresFn(ctx, docIDs, metric)
}

func (s *SimilarityStore) SaveVector(ctx context.Context, docID string, metric docchunk.Metric, vector []float64) error {
	return s.SaveVectorFn(ctx, docID, metric, vector)
}

func (s *SimilarityStore) LoadVector(ctx context.Context, docID string, metric docchunk.Metric) ([]float64, error) {
	return s.LoadVectorFn(ctx, docID, metric)
}

func (s *SimilarityStore) SaveClusters(ctx context.Context, key string, clusters [][]string) error {
	return s.SaveClustersFn(ctx, key, clusters)
}
