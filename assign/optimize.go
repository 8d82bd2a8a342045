package assign

import (
	"context"
	"sort"

	"github.com/fwojciec/docchunk"
)

// OptimizeStats summarizes an optimization pass.
type OptimizeStats struct {
	DocumentsConsidered int `json:"documentsConsidered"`
	Reassigned          int `json:"reassigned"`
	Unchanged           int `json:"unchanged"`
	Failed              int `json:"failed"`
}

// OptimizeAssignments recomputes the document-to-chunk mapping for all
// documents in the target chunks (all ACTIVE and FULL chunks when none are
// given) and applies only the moves where a document's chunk actually
// changes. Unknown target chunk IDs are structural errors.
func (e *Engine) OptimizeAssignments(ctx context.Context, targetChunkIDs []string, strategy docchunk.Strategy) (*OptimizeStats, error) {
	if strategy == "" {
		strategy = e.config.DefaultStrategy
	}
	if err := strategy.Validate(); err != nil {
		return nil, err
	}

	var chunks []*docchunk.Chunk
	if len(targetChunkIDs) == 0 {
		for _, state := range []docchunk.ChunkState{docchunk.StateActive, docchunk.StateFull} {
			found, err := e.chunks.FindChunksByState(ctx, state)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, found...)
		}
	} else {
		for _, id := range targetChunkIDs {
			chunk, err := e.chunks.GetChunk(ctx, id)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, chunk)
		}
	}
	if len(chunks) == 0 {
		return &OptimizeStats{}, nil
	}

	currentChunk := make(map[string]string)
	var docs []string
	for _, chunk := range chunks {
		for _, docID := range chunk.DocumentIDs {
			if _, ok := currentChunk[docID]; ok {
				continue
			}
			currentChunk[docID] = chunk.ID
			docs = append(docs, docID)
		}
	}

	// The similarity matrix is threaded explicitly through every
	// sub-strategy that needs it.
	var matrix docchunk.Matrix
	if strategy != docchunk.StrategyBalanced {
		var err error
		matrix, err = e.sim.BuildSimilarityMatrix(ctx, docs, "", 0)
		if err != nil {
			return nil, err
		}
	}

	var mapping map[string]string
	switch strategy {
	case docchunk.StrategyBalanced:
		mapping = optimizeForBalance(chunks, docs)
	case docchunk.StrategySimilarity, docchunk.StrategyMetadata:
		mapping = optimizeForSimilarity(chunks, docs, currentChunk, matrix)
	default:
		mapping = e.optimizeHybrid(chunks, docs, currentChunk, matrix)
	}

	return e.applyOptimizedAssignments(ctx, mapping, currentChunk, chunks, matrix, strategy)
}

// optimizeForBalance distributes documents round-robin over chunks sorted
// by descending capacity, skipping chunks that reach capacity.
func optimizeForBalance(chunks []*docchunk.Chunk, docs []string) map[string]string {
	sorted := append([]*docchunk.Chunk(nil), chunks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Capacity > sorted[j].Capacity })

	mapping := make(map[string]string, len(docs))
	counts := make(map[string]int, len(sorted))
	idx := 0
	for _, docID := range docs {
		for tries := 0; tries < len(sorted); tries++ {
			chunk := sorted[(idx+tries)%len(sorted)]
			if counts[chunk.ID] >= chunk.Capacity {
				continue
			}
			mapping[docID] = chunk.ID
			counts[chunk.ID]++
			idx = idx + tries + 1
			break
		}
	}
	return mapping
}

// optimizeForSimilarity maps each document to the chunk whose current
// members it is most similar to on average, subject to capacity. Documents
// with no qualifying chunk keep their current one.
func optimizeForSimilarity(chunks []*docchunk.Chunk, docs []string, currentChunk map[string]string, matrix docchunk.Matrix) map[string]string {
	mapping := make(map[string]string, len(docs))
	counts := make(map[string]int, len(chunks))

	for _, docID := range docs {
		bestID := ""
		bestScore := -1.0
		for _, chunk := range chunks {
			if counts[chunk.ID] >= chunk.Capacity {
				continue
			}
			score := averageSimilarity(docID, chunk.DocumentIDs, matrix)
			if score > bestScore {
				bestScore = score
				bestID = chunk.ID
			}
		}
		if bestID == "" {
			bestID = currentChunk[docID]
		}
		mapping[docID] = bestID
		counts[bestID]++
	}
	return mapping
}

// optimizeHybrid starts from the similarity mapping and, when load
// variance across chunks exceeds the configured limit, moves the
// least-similar documents out of overloaded chunks toward underloaded
// ones until each overloaded chunk reaches the target fill.
func (e *Engine) optimizeHybrid(chunks []*docchunk.Chunk, docs []string, currentChunk map[string]string, matrix docchunk.Matrix) map[string]string {
	mapping := optimizeForSimilarity(chunks, docs, currentChunk, matrix)

	members := make(map[string][]string, len(chunks))
	for docID, chunkID := range mapping {
		members[chunkID] = append(members[chunkID], docID)
	}
	for _, ids := range members {
		sort.Strings(ids)
	}

	if loadVariance(chunks, members) <= e.config.LoadVarianceLimit {
		return mapping
	}

	for _, chunk := range chunks {
		fill := func() float64 { return float64(len(members[chunk.ID])) / float64(chunk.Capacity) }
		if fill() <= e.config.OverloadedFill {
			continue
		}

		// Least similar members leave first.
		candidates := append([]string(nil), members[chunk.ID]...)
		sort.SliceStable(candidates, func(i, j int) bool {
			return averageSimilarity(candidates[i], members[chunk.ID], matrix) <
				averageSimilarity(candidates[j], members[chunk.ID], matrix)
		})

		for _, docID := range candidates {
			if fill() <= e.config.TargetFill {
				break
			}
			dest := e.pickDestination(docID, chunk.ID, chunks, members, matrix)
			if dest == "" {
				break
			}
			mapping[docID] = dest
			members[dest] = append(members[dest], docID)
			members[chunk.ID] = remove(members[chunk.ID], docID)
		}
	}
	return mapping
}

// pickDestination prefers underloaded chunks ranked by similarity, then
// any chunk below the target fill.
func (e *Engine) pickDestination(docID, fromID string, chunks []*docchunk.Chunk, members map[string][]string, matrix docchunk.Matrix) string {
	bestID := ""
	bestScore := -1.0
	for _, chunk := range chunks {
		if chunk.ID == fromID || len(members[chunk.ID]) >= chunk.Capacity {
			continue
		}
		fill := float64(len(members[chunk.ID])) / float64(chunk.Capacity)
		if fill >= e.config.UnderloadedFill {
			continue
		}
		score := averageSimilarity(docID, members[chunk.ID], matrix)
		if score > bestScore {
			bestScore = score
			bestID = chunk.ID
		}
	}
	if bestID != "" {
		return bestID
	}

	for _, chunk := range chunks {
		if chunk.ID == fromID || len(members[chunk.ID]) >= chunk.Capacity {
			continue
		}
		if float64(len(members[chunk.ID]))/float64(chunk.Capacity) < e.config.TargetFill {
			return chunk.ID
		}
	}
	return ""
}

// applyOptimizedAssignments diffs the computed mapping against current
// membership and moves only documents whose chunk changed.
func (e *Engine) applyOptimizedAssignments(ctx context.Context, mapping, currentChunk map[string]string, chunks []*docchunk.Chunk, matrix docchunk.Matrix, strategy docchunk.Strategy) (*OptimizeStats, error) {
	memberIDs := make(map[string][]string, len(chunks))
	for _, chunk := range chunks {
		memberIDs[chunk.ID] = chunk.DocumentIDs
	}

	docs := make([]string, 0, len(mapping))
	for docID := range mapping {
		docs = append(docs, docID)
	}
	sort.Strings(docs)

	stats := &OptimizeStats{DocumentsConsidered: len(docs)}
	for _, docID := range docs {
		newChunkID := mapping[docID]
		if newChunkID == "" || newChunkID == currentChunk[docID] {
			stats.Unchanged++
			continue
		}

		score := averageSimilarity(docID, memberIDs[newChunkID], matrix)
		if score == 0 {
			score = 0.5
		}

		assigned, err := e.ledger.FindAssignedByDocument(ctx, docID)
		if err != nil {
			return nil, err
		}

		var a *docchunk.Assignment
		if len(assigned) > 0 {
			a, err = e.reassign(ctx, assigned[0], newChunkID, score, strategy)
		} else {
			// Membership without a ledger row; move the document and record
			// a fresh assignment.
			if _, err = e.chunks.RemoveDocumentFromChunk(ctx, currentChunk[docID], docID); err == nil {
				a, err = e.assignTo(ctx, docID, newChunkID, score, strategy, nil)
			}
		}
		if err != nil {
			return nil, err
		}
		if a != nil && a.Status == docchunk.StatusFailed {
			stats.Failed++
			continue
		}
		stats.Reassigned++
	}
	return stats, nil
}

// loadVariance is the population variance of fill ratios under a mapping.
func loadVariance(chunks []*docchunk.Chunk, members map[string][]string) float64 {
	if len(chunks) == 0 {
		return 0
	}
	var sum float64
	fills := make([]float64, len(chunks))
	for i, chunk := range chunks {
		fills[i] = float64(len(members[chunk.ID])) / float64(chunk.Capacity)
		sum += fills[i]
	}
	mean := sum / float64(len(fills))

	var variance float64
	for _, f := range fills {
		d := f - mean
		variance += d * d
	}
	return variance / float64(len(fills))
}

func averageSimilarity(docID string, memberIDs []string, matrix docchunk.Matrix) float64 {
	if len(matrix) == 0 {
		return 0
	}
	var sum float64
	n := 0
	for _, memberID := range memberIDs {
		if memberID == docID {
			continue
		}
		sum += matrix.Score(docID, memberID)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func remove(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
