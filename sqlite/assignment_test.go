package sqlite_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/fwojciec/docchunk"
	"github.com/fwojciec/docchunk/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignmentService_CreateAssignment(t *testing.T) {
	t.Parallel()

	t.Run("creates a row and a history entry", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewAssignmentService(MustOpenDB(t))
		ctx := context.Background()

		a := &docchunk.Assignment{
			DocumentID: "doc-1",
			ChunkID:    "chunk-1",
			Status:     docchunk.StatusAssigned,
			Score:      0.87,
			Strategy:   docchunk.StrategySimilarity,
			Metadata:   map[string]string{"origin": "crawl"},
		}
		require.NoError(t, s.CreateAssignment(ctx, a))
		assert.NotEmpty(t, a.ID)

		found, err := s.FindAssignments(ctx, docchunk.AssignmentFilter{})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "doc-1", found[0].DocumentID)
		assert.Equal(t, 0.87, found[0].Score)
		assert.Equal(t, map[string]string{"origin": "crawl"}, found[0].Metadata)

		history, err := s.GetAssignmentHistory(ctx, "doc-1")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "created", history[0].Action)
		assert.Equal(t, a.ID, history[0].AssignmentID)
	})

	t.Run("invalid assignment is rejected", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewAssignmentService(MustOpenDB(t))

		err := s.CreateAssignment(context.Background(), &docchunk.Assignment{
			DocumentID: "doc-1",
			ChunkID:    "chunk-1",
			Status:     docchunk.StatusAssigned,
			Score:      1.5,
			Strategy:   docchunk.StrategySimilarity,
		})
		require.Error(t, err)
		assert.Equal(t, docchunk.EINVALID, docchunk.ErrorCode(err))
	})
}

func TestAssignmentService_UpdateAssignmentStatus(t *testing.T) {
	t.Parallel()

	t.Run("flips status and appends history", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewAssignmentService(MustOpenDB(t))
		ctx := context.Background()

		a := &docchunk.Assignment{
			DocumentID: "doc-1",
			ChunkID:    "chunk-1",
			Status:     docchunk.StatusAssigned,
			Score:      0.9,
			Strategy:   docchunk.StrategyHybrid,
		}
		require.NoError(t, s.CreateAssignment(ctx, a))
		require.NoError(t, s.UpdateAssignmentStatus(ctx, a.ID, docchunk.StatusReassigned, "moved to chunk-2"))

		found, err := s.FindAssignments(ctx, docchunk.AssignmentFilter{})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, docchunk.StatusReassigned, found[0].Status)

		history, err := s.GetAssignmentHistory(ctx, "doc-1")
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "moved to chunk-2", history[1].Action)
		assert.Equal(t, docchunk.StatusReassigned, history[1].Status)
	})

	t.Run("missing assignment returns ENOTFOUND", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewAssignmentService(MustOpenDB(t))

		err := s.UpdateAssignmentStatus(context.Background(), "no-such-id", docchunk.StatusFailed, "")
		require.Error(t, err)
		assert.Equal(t, docchunk.ENOTFOUND, docchunk.ErrorCode(err))
	})
}

func TestAssignmentService_FindAssignedByDocument(t *testing.T) {
	t.Parallel()

	s := sqlite.NewAssignmentService(MustOpenDB(t))
	ctx := context.Background()

	for _, row := range []struct {
		chunkID string
		status  docchunk.AssignmentStatus
		score   float64
	}{
		{"chunk-low", docchunk.StatusAssigned, 0.4},
		{"chunk-high", docchunk.StatusAssigned, 0.9},
		{"chunk-failed", docchunk.StatusFailed, 0.95},
	} {
		require.NoError(t, s.CreateAssignment(ctx, &docchunk.Assignment{
			DocumentID: "doc-1",
			ChunkID:    row.chunkID,
			Status:     row.status,
			Score:      row.score,
			Strategy:   docchunk.StrategySimilarity,
		}))
	}

	assigned, err := s.FindAssignedByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, assigned, 2)
	assert.Equal(t, "chunk-high", assigned[0].ChunkID)
	assert.Equal(t, "chunk-low", assigned[1].ChunkID)
}

func TestAssignmentService_FindAssignedDocumentIDs(t *testing.T) {
	t.Parallel()

	s := sqlite.NewAssignmentService(MustOpenDB(t))
	ctx := context.Background()

	for _, row := range []struct {
		docID   string
		chunkID string
		status  docchunk.AssignmentStatus
	}{
		{"doc-b", "chunk-1", docchunk.StatusAssigned},
		{"doc-a", "chunk-2", docchunk.StatusAssigned},
		{"doc-c", "chunk-3", docchunk.StatusFailed},
	} {
		require.NoError(t, s.CreateAssignment(ctx, &docchunk.Assignment{
			DocumentID: row.docID,
			ChunkID:    row.chunkID,
			Status:     row.status,
			Score:      0.8,
			Strategy:   docchunk.StrategyHybrid,
		}))
	}

	ids, err := s.FindAssignedDocumentIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-a", "doc-b"}, ids)
}

func TestAssignmentService_Conflicts(t *testing.T) {
	t.Parallel()

	t.Run("create, find unresolved, resolve", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewAssignmentService(MustOpenDB(t))
		ctx := context.Background()

		c := &docchunk.Conflict{
			DocumentID:       "doc-1",
			PrimaryChunkID:   "chunk-a",
			SecondaryChunkID: "chunk-b",
			PrimaryScore:     0.91,
			SecondaryScore:   0.89,
		}
		require.NoError(t, s.CreateConflict(ctx, c))
		assert.NotEmpty(t, c.ID)

		unresolved, err := s.FindUnresolvedConflicts(ctx)
		require.NoError(t, err)
		require.Len(t, unresolved, 1)
		assert.False(t, unresolved[0].Resolved())

		require.NoError(t, s.ResolveConflict(ctx, c.ID, "chunk-a"))

		unresolved, err = s.FindUnresolvedConflicts(ctx)
		require.NoError(t, err)
		assert.Empty(t, unresolved)
	})

	t.Run("resolving a missing conflict returns ENOTFOUND", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewAssignmentService(MustOpenDB(t))

		err := s.ResolveConflict(context.Background(), "no-such-id", "chunk-a")
		require.Error(t, err)
		assert.Equal(t, docchunk.ENOTFOUND, docchunk.ErrorCode(err))
	})

	t.Run("conflict without chunk IDs is rejected", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewAssignmentService(MustOpenDB(t))

		err := s.CreateConflict(context.Background(), &docchunk.Conflict{DocumentID: "doc-1"})
		require.Error(t, err)
		assert.Equal(t, docchunk.EINVALID, docchunk.ErrorCode(err))
	})
}

func TestAssignmentService_GetStats(t *testing.T) {
	t.Parallel()

	s := sqlite.NewAssignmentService(MustOpenDB(t))
	ctx := context.Background()

	for _, row := range []struct {
		docID   string
		chunkID string
		status  docchunk.AssignmentStatus
		score   float64
	}{
		{"doc-1", "chunk-a", docchunk.StatusAssigned, 0.8},
		{"doc-2", "chunk-a", docchunk.StatusAssigned, 0.6},
		{"doc-3", "chunk-b", docchunk.StatusFailed, 0.4},
	} {
		require.NoError(t, s.CreateAssignment(ctx, &docchunk.Assignment{
			DocumentID: row.docID,
			ChunkID:    row.chunkID,
			Status:     row.status,
			Score:      row.score,
			Strategy:   docchunk.StrategyHybrid,
		}))
	}

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[docchunk.StatusAssigned])
	assert.Equal(t, 1, stats.ByStatus[docchunk.StatusFailed])
	assert.Equal(t, 3, stats.ByStrategy[docchunk.StrategyHybrid])
	assert.Equal(t, 2, stats.ByChunk["chunk-a"])
	assert.NotContains(t, stats.ByChunk, "chunk-b")
	assert.InDelta(t, 0.6, stats.MeanScore, 1e-9)
}

func TestAssignmentService_DeleteAssignmentsByChunk(t *testing.T) {
	t.Parallel()

	s := sqlite.NewAssignmentService(MustOpenDB(t))
	ctx := context.Background()

	for i, chunkID := range []string{"chunk-a", "chunk-a", "chunk-b"} {
		require.NoError(t, s.CreateAssignment(ctx, &docchunk.Assignment{
			DocumentID: fmt.Sprintf("doc-%d", i),
			ChunkID:    chunkID,
			Status:     docchunk.StatusAssigned,
			Score:      0.5,
			Strategy:   docchunk.StrategyBalanced,
		}))
	}

	require.NoError(t, s.DeleteAssignmentsByChunk(ctx, "chunk-a"))

	remaining, err := s.FindAssignments(ctx, docchunk.AssignmentFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "chunk-b", remaining[0].ChunkID)
}
