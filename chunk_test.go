package docchunk_test

import (
	"testing"

	"github.com/fwojciec/docchunk"
	"github.com/stretchr/testify/assert"
)

func TestChunkState_CanTransition(t *testing.T) {
	t.Parallel()

	t.Run("allows listed transitions", func(t *testing.T) {
		t.Parallel()

		allowed := []struct {
			from, to docchunk.ChunkState
		}{
			{docchunk.StateCreated, docchunk.StateActive},
			{docchunk.StateActive, docchunk.StateFull},
			{docchunk.StateActive, docchunk.StateStale},
			{docchunk.StateActive, docchunk.StateArchived},
			{docchunk.StateFull, docchunk.StateSplitting},
			{docchunk.StateFull, docchunk.StateActive},
			{docchunk.StateFull, docchunk.StateStale},
			{docchunk.StateStale, docchunk.StateActive},
			{docchunk.StateStale, docchunk.StateArchived},
			{docchunk.StateSplitting, docchunk.StateArchived},
			{docchunk.StateMerging, docchunk.StateActive},
			{docchunk.StateArchived, docchunk.StateActive},
			{docchunk.StateArchived, docchunk.StateDeleted},
		}

		for _, tr := range allowed {
			assert.True(t, tr.from.CanTransition(tr.to), "%s -> %s should be legal", tr.from, tr.to)
		}
	})

	t.Run("rejects unlisted transitions", func(t *testing.T) {
		t.Parallel()

		rejected := []struct {
			from, to docchunk.ChunkState
		}{
			{docchunk.StateCreated, docchunk.StateFull},
			{docchunk.StateCreated, docchunk.StateDeleted},
			{docchunk.StateActive, docchunk.StateCreated},
			{docchunk.StateActive, docchunk.StateSplitting},
			{docchunk.StateFull, docchunk.StateMerging},
			{docchunk.StateDeleted, docchunk.StateActive},
			{docchunk.StateDeleted, docchunk.StateArchived},
			{docchunk.StateStale, docchunk.StateFull},
		}

		for _, tr := range rejected {
			assert.False(t, tr.from.CanTransition(tr.to), "%s -> %s should be illegal", tr.from, tr.to)
		}
	})
}

func TestChunkState_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, docchunk.StateActive.Validate())

	err := docchunk.ChunkState("bogus").Validate()
	assert.Equal(t, docchunk.EINVALID, docchunk.ErrorCode(err))
}

func TestChunk_Validate(t *testing.T) {
	t.Parallel()

	t.Run("accepts consistent chunk", func(t *testing.T) {
		t.Parallel()

		c := &docchunk.Chunk{
			State:       docchunk.StateActive,
			Capacity:    10,
			CurrentSize: 2,
			DocumentIDs: []string{"a", "b"},
		}
		assert.NoError(t, c.Validate())
	})

	t.Run("rejects size mismatch", func(t *testing.T) {
		t.Parallel()

		c := &docchunk.Chunk{
			State:       docchunk.StateActive,
			Capacity:    10,
			CurrentSize: 3,
			DocumentIDs: []string{"a", "b"},
		}
		err := c.Validate()
		assert.Equal(t, docchunk.EINVALID, docchunk.ErrorCode(err))
	})

	t.Run("rejects non-positive capacity", func(t *testing.T) {
		t.Parallel()

		c := &docchunk.Chunk{State: docchunk.StateActive}
		err := c.Validate()
		assert.Equal(t, docchunk.EINVALID, docchunk.ErrorCode(err))
	})
}

func TestChunk_FillRatio(t *testing.T) {
	t.Parallel()

	c := &docchunk.Chunk{Capacity: 10, CurrentSize: 9}
	assert.InDelta(t, 0.9, c.FillRatio(), 1e-9)
}

func TestMatrixKey(t *testing.T) {
	t.Parallel()

	k1 := docchunk.MatrixKey([]string{"b", "a", "c"}, docchunk.MetricCosine)
	k2 := docchunk.MatrixKey([]string{"c", "b", "a"}, docchunk.MetricCosine)
	k3 := docchunk.MatrixKey([]string{"c", "b", "a"}, docchunk.MetricJaccard)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestMatrix_Score(t *testing.T) {
	t.Parallel()

	m := docchunk.Matrix{docchunk.NewPair("b", "a"): 0.7}

	assert.InDelta(t, 0.7, m.Score("a", "b"), 1e-9)
	assert.InDelta(t, 0.7, m.Score("b", "a"), 1e-9)
	assert.Zero(t, m.Score("a", "z"))
}
