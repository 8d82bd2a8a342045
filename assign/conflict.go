package assign

import (
	"context"
	"fmt"
	"sort"

	"github.com/fwojciec/docchunk"
)

// ResolveStats summarizes a conflict resolution pass.
type ResolveStats struct {
	Resolved      int `json:"resolved"`
	KeptPrimary   int `json:"keptPrimary"`
	KeptSecondary int `json:"keptSecondary"`
}

// DetectConflicts finds documents holding more than one ASSIGNED row whose
// top two scores differ by less than the threshold, records each as a
// conflict, and returns them. A negative threshold uses the configured
// default.
func (e *Engine) DetectConflicts(ctx context.Context, threshold float64) ([]*docchunk.Conflict, error) {
	if threshold < 0 {
		threshold = e.config.ConflictThreshold
	}

	status := docchunk.StatusAssigned
	assigned, err := e.ledger.FindAssignments(ctx, docchunk.AssignmentFilter{Status: &status})
	if err != nil {
		return nil, err
	}

	byDoc := make(map[string][]*docchunk.Assignment)
	for _, a := range assigned {
		byDoc[a.DocumentID] = append(byDoc[a.DocumentID], a)
	}

	docIDs := make([]string, 0, len(byDoc))
	for docID := range byDoc {
		docIDs = append(docIDs, docID)
	}
	sort.Strings(docIDs)

	var conflicts []*docchunk.Conflict
	for _, docID := range docIDs {
		rows := byDoc[docID]
		if len(rows) < 2 {
			continue
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })

		if rows[0].Score-rows[1].Score >= threshold {
			continue
		}

		conflict := &docchunk.Conflict{
			DocumentID:       docID,
			PrimaryChunkID:   rows[0].ChunkID,
			SecondaryChunkID: rows[1].ChunkID,
			PrimaryScore:     rows[0].Score,
			SecondaryScore:   rows[1].Score,
		}
		if err := e.ledger.CreateConflict(ctx, conflict); err != nil {
			return nil, err
		}
		conflicts = append(conflicts, conflict)
	}
	return conflicts, nil
}

// ResolveConflicts decides a winner per conflict and demotes the losing
// assignment. With a nil conflict list, all unresolved conflicts are
// loaded from the ledger.
//
// SIMILARITY always keeps the primary (higher-scoring) chunk. BALANCED
// keeps whichever chunk currently holds fewer documents. The default and
// HYBRID rule keeps the primary unless the scores are within the
// configured closeness, in which case it falls back to the balanced rule.
// An empty strategy uses the engine default; unknown strategies are
// rejected.
func (e *Engine) ResolveConflicts(ctx context.Context, conflicts []*docchunk.Conflict, strategy docchunk.Strategy) (*ResolveStats, error) {
	if strategy == "" {
		strategy = e.config.DefaultStrategy
	}
	if err := strategy.Validate(); err != nil {
		return nil, err
	}

	if conflicts == nil {
		var err error
		conflicts, err = e.ledger.FindUnresolvedConflicts(ctx)
		if err != nil {
			return nil, err
		}
	}

	stats := &ResolveStats{}
	for _, conflict := range conflicts {
		winner, err := e.pickWinner(ctx, conflict, strategy)
		if err != nil {
			return nil, err
		}

		losers := []string{conflict.PrimaryChunkID, conflict.SecondaryChunkID}
		switch winner {
		case conflict.PrimaryChunkID:
			losers = []string{conflict.SecondaryChunkID}
			stats.KeptPrimary++
		case conflict.SecondaryChunkID:
			losers = []string{conflict.PrimaryChunkID}
			stats.KeptSecondary++
		}

		for _, loserChunkID := range losers {
			if err := e.demoteAssignment(ctx, conflict.DocumentID, loserChunkID, conflict.ID); err != nil {
				return nil, err
			}
		}

		// Structurally supported: a winner that is neither original chunk
		// gets a brand-new assignment. Not reachable under the current
		// strategies.
		if winner != conflict.PrimaryChunkID && winner != conflict.SecondaryChunkID {
			if _, err := e.assignTo(ctx, conflict.DocumentID, winner, 1.0, strategy, nil); err != nil {
				return nil, err
			}
		}

		if err := e.ledger.ResolveConflict(ctx, conflict.ID, winner); err != nil {
			return nil, err
		}
		stats.Resolved++
	}
	return stats, nil
}

func (e *Engine) pickWinner(ctx context.Context, conflict *docchunk.Conflict, strategy docchunk.Strategy) (string, error) {
	switch strategy {
	case docchunk.StrategySimilarity:
		return conflict.PrimaryChunkID, nil
	case docchunk.StrategyBalanced:
		return e.smallerChunk(ctx, conflict.PrimaryChunkID, conflict.SecondaryChunkID)
	default:
		if conflict.PrimaryScore-conflict.SecondaryScore < e.config.HybridCloseness {
			return e.smallerChunk(ctx, conflict.PrimaryChunkID, conflict.SecondaryChunkID)
		}
		return conflict.PrimaryChunkID, nil
	}
}

func (e *Engine) smallerChunk(ctx context.Context, a, b string) (string, error) {
	chunkA, err := e.chunks.GetChunk(ctx, a)
	if err != nil {
		return "", err
	}
	chunkB, err := e.chunks.GetChunk(ctx, b)
	if err != nil {
		return "", err
	}
	if chunkB.CurrentSize < chunkA.CurrentSize {
		return chunkB.ID, nil
	}
	return chunkA.ID, nil
}

// demoteAssignment marks the losing assignment CONFLICTED and removes the
// document from the losing chunk.
func (e *Engine) demoteAssignment(ctx context.Context, docID, chunkID, conflictID string) error {
	status := docchunk.StatusAssigned
	rows, err := e.ledger.FindAssignments(ctx, docchunk.AssignmentFilter{
		DocumentID: &docID,
		ChunkID:    &chunkID,
		Status:     &status,
	})
	if err != nil {
		return err
	}

	for _, row := range rows {
		action := fmt.Sprintf("conflict %s lost", conflictID)
		if err := e.ledger.UpdateAssignmentStatus(ctx, row.ID, docchunk.StatusConflicted, action); err != nil {
			return err
		}
	}

	_, err = e.chunks.RemoveDocumentFromChunk(ctx, chunkID, docID)
	return err
}
