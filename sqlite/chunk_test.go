package sqlite_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fwojciec/docchunk"
	"github.com/fwojciec/docchunk/mock"
	"github.com/fwojciec/docchunk/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkService_CreateChunk(t *testing.T) {
	t.Parallel()

	t.Run("empty chunk starts in created state", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		chunk, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{})
		require.NoError(t, err)
		assert.Equal(t, docchunk.StateCreated, chunk.State)
		assert.Equal(t, docchunk.DefaultChunkCapacity, chunk.Capacity)
		assert.Equal(t, 0, chunk.CurrentSize)
		assert.Equal(t, 1, chunk.Version)

		got, err := s.GetChunk(ctx, chunk.ID)
		require.NoError(t, err)
		assert.Equal(t, chunk.ID, got.ID)
		assert.Equal(t, docchunk.StateCreated, got.State)
	})

	t.Run("initial documents activate the chunk", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		chunk, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{
			InitialDocs: []string{"doc-1", "doc-2", "doc-1"},
		})
		require.NoError(t, err)
		assert.Equal(t, docchunk.StateActive, chunk.State)
		assert.Equal(t, []string{"doc-1", "doc-2"}, chunk.DocumentIDs)
		assert.Equal(t, 2, chunk.CurrentSize)
	})

	t.Run("initial documents exceeding capacity are rejected", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))

		_, err := s.CreateChunk(context.Background(), docchunk.CreateChunkOptions{
			Capacity:    2,
			InitialDocs: []string{"a", "b", "c"},
		})
		require.Error(t, err)
		assert.Equal(t, docchunk.EINVALID, docchunk.ErrorCode(err))
	})
}

func TestChunkService_GetChunk(t *testing.T) {
	t.Parallel()

	t.Run("missing chunk returns ENOTFOUND", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))

		_, err := s.GetChunk(context.Background(), "no-such-chunk")
		require.Error(t, err)
		assert.Equal(t, docchunk.ENOTFOUND, docchunk.ErrorCode(err))
	})
}

func TestChunkService_UpdateChunkState(t *testing.T) {
	t.Parallel()

	t.Run("legal transition bumps version and appends history", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		chunk, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{InitialDocs: []string{"doc-1"}})
		require.NoError(t, err)

		require.NoError(t, s.UpdateChunkState(ctx, chunk.ID, docchunk.StateStale, "content aged out"))

		got, err := s.GetChunk(ctx, chunk.ID)
		require.NoError(t, err)
		assert.Equal(t, docchunk.StateStale, got.State)
		assert.Equal(t, chunk.Version+1, got.Version)

		versions, err := s.GetChunkVersions(ctx, chunk.ID)
		require.NoError(t, err)
		require.NotEmpty(t, versions)
		last := versions[len(versions)-1]
		assert.Equal(t, "state_stale", last.Action)
		assert.Equal(t, "content aged out", last.Reason)
	})

	t.Run("illegal transition returns EINVALID", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		chunk, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{})
		require.NoError(t, err)

		// CREATED can only move to ACTIVE.
		err = s.UpdateChunkState(ctx, chunk.ID, docchunk.StateFull, "")
		require.Error(t, err)
		assert.Equal(t, docchunk.EINVALID, docchunk.ErrorCode(err))

		got, err := s.GetChunk(ctx, chunk.ID)
		require.NoError(t, err)
		assert.Equal(t, docchunk.StateCreated, got.State)
	})

	t.Run("deleted is terminal", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		chunk, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{InitialDocs: []string{"doc-1"}})
		require.NoError(t, err)
		require.NoError(t, s.UpdateChunkState(ctx, chunk.ID, docchunk.StateArchived, ""))
		require.NoError(t, s.UpdateChunkState(ctx, chunk.ID, docchunk.StateDeleted, ""))

		err = s.UpdateChunkState(ctx, chunk.ID, docchunk.StateActive, "")
		require.Error(t, err)
		assert.Equal(t, docchunk.EINVALID, docchunk.ErrorCode(err))
	})
}

func TestChunkService_AddDocumentToChunk(t *testing.T) {
	t.Parallel()

	t.Run("duplicate add is idempotent", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		chunk, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{InitialDocs: []string{"doc-1"}})
		require.NoError(t, err)

		added, err := s.AddDocumentToChunk(ctx, chunk.ID, "doc-1", 0.8)
		require.NoError(t, err)
		assert.True(t, added)

		got, err := s.GetChunk(ctx, chunk.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.CurrentSize)
		assert.Equal(t, []string{"doc-1"}, got.DocumentIDs)
	})

	t.Run("missing chunk reports false without error", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))

		added, err := s.AddDocumentToChunk(context.Background(), "no-such-chunk", "doc-1", 0.5)
		require.NoError(t, err)
		assert.False(t, added)
	})

	t.Run("chunk at capacity reports false without error", func(t *testing.T) {
		t.Parallel()

		// A split threshold above 1 keeps the chunk ACTIVE at capacity so the
		// capacity check itself is observable.
		config := sqlite.DefaultConfig()
		config.SplitThreshold = 1.5
		s := sqlite.NewChunkService(MustOpenDB(t), sqlite.WithConfig(config))
		ctx := context.Background()

		chunk, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{
			Capacity:    2,
			InitialDocs: []string{"doc-1", "doc-2"},
		})
		require.NoError(t, err)

		added, err := s.AddDocumentToChunk(ctx, chunk.ID, "doc-3", 0.5)
		require.NoError(t, err)
		assert.False(t, added)

		got, err := s.GetChunk(ctx, chunk.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.CurrentSize)
		assert.LessOrEqual(t, got.CurrentSize, got.Capacity)
	})

	t.Run("crossing the split threshold transitions to full", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		chunk, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{Capacity: 10})
		require.NoError(t, err)

		// 8 documents keep the chunk ACTIVE; the 9th crosses 0.9.
		for i := 0; i < 8; i++ {
			added, err := s.AddDocumentToChunk(ctx, chunk.ID, fmt.Sprintf("doc-%d", i), 0.7)
			require.NoError(t, err)
			require.True(t, added)
		}
		got, err := s.GetChunk(ctx, chunk.ID)
		require.NoError(t, err)
		assert.Equal(t, docchunk.StateActive, got.State)

		added, err := s.AddDocumentToChunk(ctx, chunk.ID, "doc-8", 0.7)
		require.NoError(t, err)
		assert.True(t, added)

		got, err = s.GetChunk(ctx, chunk.ID)
		require.NoError(t, err)
		assert.Equal(t, docchunk.StateFull, got.State)
		assert.Equal(t, 9, got.CurrentSize)

		// A FULL chunk accepts no further documents.
		added, err = s.AddDocumentToChunk(ctx, chunk.ID, "doc-9", 0.7)
		require.NoError(t, err)
		assert.False(t, added)
	})
}

func TestChunkService_RemoveDocumentFromChunk(t *testing.T) {
	t.Parallel()

	t.Run("non-member reports false without error", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		chunk, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{InitialDocs: []string{"doc-1"}})
		require.NoError(t, err)

		removed, err := s.RemoveDocumentFromChunk(ctx, chunk.ID, "doc-2")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("falling to the merge threshold demotes a full chunk", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		chunk, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{Capacity: 10})
		require.NoError(t, err)
		for i := 0; i < 9; i++ {
			_, err := s.AddDocumentToChunk(ctx, chunk.ID, fmt.Sprintf("doc-%d", i), 0.7)
			require.NoError(t, err)
		}
		got, err := s.GetChunk(ctx, chunk.ID)
		require.NoError(t, err)
		require.Equal(t, docchunk.StateFull, got.State)

		// Removals down to 4/10 leave the chunk FULL.
		for i := 0; i < 5; i++ {
			removed, err := s.RemoveDocumentFromChunk(ctx, chunk.ID, fmt.Sprintf("doc-%d", i))
			require.NoError(t, err)
			require.True(t, removed)
		}
		got, err = s.GetChunk(ctx, chunk.ID)
		require.NoError(t, err)
		assert.Equal(t, docchunk.StateFull, got.State)

		// 3/10 is at the merge threshold; the chunk demotes to ACTIVE.
		removed, err := s.RemoveDocumentFromChunk(ctx, chunk.ID, "doc-5")
		require.NoError(t, err)
		require.True(t, removed)

		got, err = s.GetChunk(ctx, chunk.ID)
		require.NoError(t, err)
		assert.Equal(t, docchunk.StateActive, got.State)
		assert.Equal(t, 3, got.CurrentSize)
	})
}

func TestChunkService_SplitChunk(t *testing.T) {
	t.Parallel()

	t.Run("splitting a non-full chunk returns EINVALID", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		chunk, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{InitialDocs: []string{"doc-1"}})
		require.NoError(t, err)

		_, err = s.SplitChunk(ctx, chunk.ID, nil)
		require.Error(t, err)
		assert.Equal(t, docchunk.EINVALID, docchunk.ErrorCode(err))
	})

	t.Run("split preserves every document across two children", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		chunk, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{Capacity: 10, Tags: []string{"go"}})
		require.NoError(t, err)
		docs := make([]string, 9)
		for i := range docs {
			docs[i] = fmt.Sprintf("doc-%d", i)
			_, err := s.AddDocumentToChunk(ctx, chunk.ID, docs[i], 0.7)
			require.NoError(t, err)
		}

		children, err := s.SplitChunk(ctx, chunk.ID, nil)
		require.NoError(t, err)
		require.Len(t, children, 2)

		var all []string
		for _, child := range children {
			assert.Equal(t, docchunk.StateActive, child.State)
			assert.Equal(t, 5, child.Capacity)
			assert.Equal(t, []string{chunk.ID}, child.ParentIDs)
			assert.Equal(t, []string{"go"}, child.Tags)
			all = append(all, child.DocumentIDs...)
		}
		assert.ElementsMatch(t, docs, all)

		source, err := s.GetChunk(ctx, chunk.ID)
		require.NoError(t, err)
		assert.Equal(t, docchunk.StateArchived, source.State)
		assert.ElementsMatch(t, []string{children[0].ID, children[1].ID}, source.ChildIDs)
	})

	t.Run("split uses the cluster partition when supplied", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		chunk, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{Capacity: 10})
		require.NoError(t, err)
		for i := 0; i < 9; i++ {
			_, err := s.AddDocumentToChunk(ctx, chunk.ID, fmt.Sprintf("doc-%d", i), 0.7)
			require.NoError(t, err)
		}

		cluster := func(ctx context.Context, docIDs []string) ([][]string, error) {
			return [][]string{docIDs[:2], docIDs[2:]}, nil
		}
		children, err := s.SplitChunk(ctx, chunk.ID, cluster)
		require.NoError(t, err)
		require.Len(t, children, 2)
		assert.Len(t, children[0].DocumentIDs, 2)
		assert.Len(t, children[1].DocumentIDs, 7)
	})

	t.Run("skewed partition grows the child capacity", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		chunk, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{Capacity: 10})
		require.NoError(t, err)
		for i := 0; i < 9; i++ {
			_, err := s.AddDocumentToChunk(ctx, chunk.ID, fmt.Sprintf("doc-%d", i), 0.7)
			require.NoError(t, err)
		}

		cluster := func(ctx context.Context, docIDs []string) ([][]string, error) {
			return [][]string{docIDs[:2], docIDs[2:]}, nil
		}
		children, err := s.SplitChunk(ctx, chunk.ID, cluster)
		require.NoError(t, err)
		require.Len(t, children, 2)

		assert.Equal(t, 5, children[0].Capacity)
		assert.Equal(t, 7, children[1].Capacity)
		for _, child := range children {
			assert.LessOrEqual(t, child.CurrentSize, child.Capacity)
			assert.NoError(t, child.Validate())
		}
	})
}

func TestChunkService_MergeChunks(t *testing.T) {
	t.Parallel()

	t.Run("merged capacity is the sum of the constituents", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		a, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{
			Capacity:    20,
			InitialDocs: []string{"doc-1", "doc-2"},
			Tags:        []string{"go", "db"},
		})
		require.NoError(t, err)
		b, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{
			Capacity:    30,
			InitialDocs: []string{"doc-2", "doc-3"},
			Tags:        []string{"go", "http"},
		})
		require.NoError(t, err)

		merged, err := s.MergeChunks(ctx, []string{a.ID, b.ID})
		require.NoError(t, err)
		assert.Equal(t, 50, merged.Capacity)
		assert.Equal(t, docchunk.StateActive, merged.State)
		assert.Equal(t, []string{"doc-1", "doc-2", "doc-3"}, merged.DocumentIDs)
		assert.Equal(t, 3, merged.CurrentSize)
		assert.Equal(t, []string{"go"}, merged.Tags)
		assert.ElementsMatch(t, []string{a.ID, b.ID}, merged.ParentIDs)

		for _, id := range []string{a.ID, b.ID} {
			src, err := s.GetChunk(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, docchunk.StateArchived, src.State)
		}
	})

	t.Run("fewer than two eligible chunks returns EINVALID", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		a, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{InitialDocs: []string{"doc-1"}})
		require.NoError(t, err)

		_, err = s.MergeChunks(ctx, []string{a.ID, "no-such-chunk"})
		require.Error(t, err)
		assert.Equal(t, docchunk.EINVALID, docchunk.ErrorCode(err))
	})

	t.Run("ineligible chunks are skipped", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		a, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{Capacity: 10, InitialDocs: []string{"doc-1"}})
		require.NoError(t, err)
		b, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{Capacity: 10, InitialDocs: []string{"doc-2"}})
		require.NoError(t, err)

		// CREATED cannot enter MERGING.
		c, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{Capacity: 10})
		require.NoError(t, err)

		merged, err := s.MergeChunks(ctx, []string{a.ID, b.ID, c.ID})
		require.NoError(t, err)
		assert.Equal(t, 20, merged.Capacity)
		assert.ElementsMatch(t, []string{a.ID, b.ID}, merged.ParentIDs)

		got, err := s.GetChunk(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, docchunk.StateCreated, got.State)
	})
}

func TestChunkService_GetChunkContent(t *testing.T) {
	t.Parallel()

	t.Run("regenerates from members and caches", func(t *testing.T) {
		t.Parallel()

		lookups := 0
		source := &mock.DocumentSource{
			GetDocumentFn: func(ctx context.Context, id string) (*docchunk.Document, error) {
				lookups++
				return &docchunk.Document{ID: id, Title: "Title " + id, Content: "body of " + id}, nil
			},
		}
		cache := map[string][]byte{}
		store := &mock.ContentStore{
			SaveFn: func(key string, content []byte) error {
				cache[key] = content
				return nil
			},
			LoadFn: func(key string) ([]byte, error) {
				raw, ok := cache[key]
				if !ok {
					return nil, docchunk.Errorf(docchunk.ENOTFOUND, "content for key %q not found", key)
				}
				return raw, nil
			},
			DeleteFn: func(key string) error {
				delete(cache, key)
				return nil
			},
		}

		s := sqlite.NewChunkService(MustOpenDB(t),
			sqlite.WithDocumentSource(source),
			sqlite.WithContentStore(store),
		)
		ctx := context.Background()

		chunk, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{InitialDocs: []string{"a", "b"}})
		require.NoError(t, err)

		content, err := s.GetChunkContent(ctx, chunk.ID)
		require.NoError(t, err)
		assert.Equal(t, chunk.ID, content.ChunkID)
		assert.Equal(t, "# Title a\n\nbody of a\n\n# Title b\n\nbody of b", content.Content)
		assert.NotEmpty(t, content.ContentHash)
		assert.Equal(t, []string{"a", "b"}, content.DocumentIDs)
		assert.Equal(t, 2, lookups)

		// Second read comes from the cache.
		again, err := s.GetChunkContent(ctx, chunk.ID)
		require.NoError(t, err)
		assert.Equal(t, content.Content, again.Content)
		assert.Equal(t, content.ContentHash, again.ContentHash)
		assert.Equal(t, 2, lookups)
	})

	t.Run("no document source returns EINTERNAL", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		chunk, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{InitialDocs: []string{"a"}})
		require.NoError(t, err)

		_, err = s.GetChunkContent(ctx, chunk.ID)
		require.Error(t, err)
		assert.Equal(t, docchunk.EINTERNAL, docchunk.ErrorCode(err))
	})
}

func TestChunkService_RunGarbageCollection(t *testing.T) {
	t.Parallel()

	t.Run("removes deleted chunks past retention", func(t *testing.T) {
		t.Parallel()

		db := MustOpenDB(t)
		s := sqlite.NewChunkService(db)
		ctx := context.Background()

		expired, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{InitialDocs: []string{"doc-1"}})
		require.NoError(t, err)
		require.NoError(t, s.UpdateChunkState(ctx, expired.ID, docchunk.StateArchived, ""))
		require.NoError(t, s.UpdateChunkState(ctx, expired.ID, docchunk.StateDeleted, ""))

		recent, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{InitialDocs: []string{"doc-2"}})
		require.NoError(t, err)
		require.NoError(t, s.UpdateChunkState(ctx, recent.ID, docchunk.StateArchived, ""))
		require.NoError(t, s.UpdateChunkState(ctx, recent.ID, docchunk.StateDeleted, ""))

		// Backdate the expired chunk past the retention period.
		old := time.Now().UTC().Add(-docchunk.DefaultRetentionPeriod - 24*time.Hour)
		_, err = db.ExecContext(ctx, "UPDATE chunks SET updated_at = ? WHERE id = ?",
			old.Format(time.RFC3339), expired.ID)
		require.NoError(t, err)

		count, err := s.RunGarbageCollection(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		_, err = s.GetChunk(ctx, expired.ID)
		assert.Equal(t, docchunk.ENOTFOUND, docchunk.ErrorCode(err))

		_, err = s.GetChunk(ctx, recent.ID)
		require.NoError(t, err)
	})

	t.Run("nothing to collect returns zero", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))

		count, err := s.RunGarbageCollection(context.Background())
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestChunkService_GetChunkRelationships(t *testing.T) {
	t.Parallel()

	t.Run("split records parent and child edges", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		source, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{Capacity: 10})
		require.NoError(t, err)
		for i := 0; i < 9; i++ {
			_, err := s.AddDocumentToChunk(ctx, source.ID, fmt.Sprintf("doc-%d", i), 0.7)
			require.NoError(t, err)
		}

		children, err := s.SplitChunk(ctx, source.ID, nil)
		require.NoError(t, err)
		require.Len(t, children, 2)

		rels, err := s.GetChunkRelationships(ctx, source.ID)
		require.NoError(t, err)
		require.Len(t, rels, 2)
		for _, rel := range rels {
			assert.Equal(t, source.ID, rel.ParentID)
			assert.Equal(t, "split", rel.Relation)
			assert.False(t, rel.CreatedAt.IsZero())
		}

		childRels, err := s.GetChunkRelationships(ctx, children[0].ID)
		require.NoError(t, err)
		require.Len(t, childRels, 1)
		assert.Equal(t, children[0].ID, childRels[0].ChildID)
	})

	t.Run("chunk without relationships returns empty", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewChunkService(MustOpenDB(t))
		ctx := context.Background()

		chunk, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{})
		require.NoError(t, err)

		rels, err := s.GetChunkRelationships(ctx, chunk.ID)
		require.NoError(t, err)
		assert.Empty(t, rels)
	})
}

func TestChunkService_MarkStaleChunks(t *testing.T) {
	t.Parallel()

	t.Run("marks idle active chunks stale", func(t *testing.T) {
		t.Parallel()

		db := MustOpenDB(t)
		s := sqlite.NewChunkService(db)
		ctx := context.Background()

		idle, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{InitialDocs: []string{"doc-1"}})
		require.NoError(t, err)

		fresh, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{InitialDocs: []string{"doc-2"}})
		require.NoError(t, err)

		old := time.Now().UTC().Add(-docchunk.DefaultRetentionPeriod - 24*time.Hour)
		_, err = db.ExecContext(ctx, "UPDATE chunks SET updated_at = ? WHERE id = ?",
			old.Format(time.RFC3339), idle.ID)
		require.NoError(t, err)

		marked, err := s.MarkStaleChunks(ctx, docchunk.DefaultRetentionPeriod)
		require.NoError(t, err)
		assert.Equal(t, 1, marked)

		got, err := s.GetChunk(ctx, idle.ID)
		require.NoError(t, err)
		assert.Equal(t, docchunk.StateStale, got.State)

		got, err = s.GetChunk(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, docchunk.StateActive, got.State)
	})

	t.Run("archived chunks are not swept", func(t *testing.T) {
		t.Parallel()

		db := MustOpenDB(t)
		s := sqlite.NewChunkService(db)
		ctx := context.Background()

		chunk, err := s.CreateChunk(ctx, docchunk.CreateChunkOptions{InitialDocs: []string{"doc-1"}})
		require.NoError(t, err)
		require.NoError(t, s.UpdateChunkState(ctx, chunk.ID, docchunk.StateArchived, ""))

		old := time.Now().UTC().Add(-docchunk.DefaultRetentionPeriod - 24*time.Hour)
		_, err = db.ExecContext(ctx, "UPDATE chunks SET updated_at = ? WHERE id = ?",
			old.Format(time.RFC3339), chunk.ID)
		require.NoError(t, err)

		marked, err := s.MarkStaleChunks(ctx, docchunk.DefaultRetentionPeriod)
		require.NoError(t, err)
		assert.Zero(t, marked)
	})
}
