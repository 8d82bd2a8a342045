package sqlite_test

import (
	"context"
	"testing"

	"github.com/fwojciec/docchunk"
	"github.com/fwojciec/docchunk/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarityService_Scores(t *testing.T) {
	t.Parallel()

	t.Run("save and load round-trip", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewSimilarityService(MustOpenDB(t))
		ctx := context.Background()

		m := docchunk.Matrix{
			docchunk.NewPair("doc-1", "doc-2"): 0.8,
			docchunk.NewPair("doc-2", "doc-3"): 0.5,
		}
		require.NoError(t, s.SaveScores(ctx, docchunk.MetricCosine, m))

		got, err := s.LoadScores(ctx, []string{"doc-1", "doc-2", "doc-3"}, docchunk.MetricCosine)
		require.NoError(t, err)
		assert.Equal(t, m, got)

		// A different metric sees nothing.
		other, err := s.LoadScores(ctx, []string{"doc-1", "doc-2"}, docchunk.MetricJaccard)
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("saving again overwrites", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewSimilarityService(MustOpenDB(t))
		ctx := context.Background()

		pair := docchunk.NewPair("doc-1", "doc-2")
		require.NoError(t, s.SaveScores(ctx, docchunk.MetricCosine, docchunk.Matrix{pair: 0.4}))
		require.NoError(t, s.SaveScores(ctx, docchunk.MetricCosine, docchunk.Matrix{pair: 0.7}))

		got, err := s.LoadScores(ctx, []string{"doc-1", "doc-2"}, docchunk.MetricCosine)
		require.NoError(t, err)
		assert.Equal(t, 0.7, got.Score("doc-1", "doc-2"))
	})
}

func TestSimilarityService_Vectors(t *testing.T) {
	t.Parallel()

	t.Run("save and load round-trip", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewSimilarityService(MustOpenDB(t))
		ctx := context.Background()

		vector := []float64{0.1, -2.5, 3.75, 0}
		require.NoError(t, s.SaveVector(ctx, "doc-1", docchunk.MetricSemantic, vector))

		got, err := s.LoadVector(ctx, "doc-1", docchunk.MetricSemantic)
		require.NoError(t, err)
		assert.Equal(t, vector, got)
	})

	t.Run("missing vector returns ENOTFOUND", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewSimilarityService(MustOpenDB(t))

		_, err := s.LoadVector(context.Background(), "doc-1", docchunk.MetricSemantic)
		require.Error(t, err)
		assert.Equal(t, docchunk.ENOTFOUND, docchunk.ErrorCode(err))
	})

	t.Run("saving again overwrites", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewSimilarityService(MustOpenDB(t))
		ctx := context.Background()

		require.NoError(t, s.SaveVector(ctx, "doc-1", docchunk.MetricCosine, []float64{1, 2}))
		require.NoError(t, s.SaveVector(ctx, "doc-1", docchunk.MetricCosine, []float64{3, 4, 5}))

		got, err := s.LoadVector(ctx, "doc-1", docchunk.MetricCosine)
		require.NoError(t, err)
		assert.Equal(t, []float64{3, 4, 5}, got)
	})
}

func TestSimilarityService_SaveClusters(t *testing.T) {
	t.Parallel()

	db := MustOpenDB(t)
	s := sqlite.NewSimilarityService(db)

	ctx := context.Background()
	key := docchunk.MatrixKey([]string{"doc-1", "doc-2", "doc-3"}, docchunk.MetricCosine)

	require.NoError(t, s.SaveClusters(ctx, key, [][]string{{"doc-1", "doc-2"}, {"doc-3"}}))

	// Replacing the result for the same key leaves no stale members behind.
	require.NoError(t, s.SaveClusters(ctx, key, [][]string{{"doc-1"}, {"doc-2", "doc-3"}}))

	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM similarity_clusters WHERE cluster_key = ?", key).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	var firstCluster int
	err = db.QueryRowContext(ctx, "SELECT cluster_index FROM similarity_clusters WHERE cluster_key = ? AND document_id = ?", key, "doc-3").Scan(&firstCluster)
	require.NoError(t, err)
	assert.Equal(t, 1, firstCluster)
}
