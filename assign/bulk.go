package assign

import (
	"context"
	"sort"

	"github.com/fwojciec/docchunk"
)

type bulkCandidate struct {
	docID string
	score float64
}

// BulkAssignDocuments assigns many documents in one pass. For similarity
// and hybrid strategies a single pairwise similarity matrix over the
// documents and current chunk members is built up front. Assignment runs
// in two phases: candidates are computed against a chunk snapshot, then
// per-chunk capacity caps keep the top-scoring candidates and reroute the
// overflow, together with unmatched documents, to freshly created chunks.
// No chunk ever exceeds its capacity mid-batch.
func (e *Engine) BulkAssignDocuments(ctx context.Context, docIDs []string, strategy docchunk.Strategy, metadata map[string]string) (map[string]*docchunk.Assignment, error) {
	if strategy == "" {
		strategy = e.config.DefaultStrategy
	}
	if err := strategy.Validate(); err != nil {
		return nil, err
	}
	if strategy == docchunk.StrategyManual {
		return nil, docchunk.Errorf(docchunk.EINVALID, "manual strategy requires per-document targets")
	}

	results := make(map[string]*docchunk.Assignment)

	if err := e.warmSeenFilter(ctx); err != nil {
		return nil, err
	}

	// After seeding, a negative Bloom test proves the document holds no
	// ASSIGNED row, skipping the ledger lookup; positives are confirmed
	// against the ledger since the filter can report false positives.
	var pending []string
	for _, docID := range uniqueIDs(docIDs) {
		if e.seen.Test(docID) {
			existing, err := e.ledger.FindAssignedByDocument(ctx, docID)
			if err != nil {
				return nil, err
			}
			if len(existing) > 0 {
				results[docID] = existing[0]
				continue
			}
		}
		pending = append(pending, docID)
	}
	if len(pending) == 0 {
		return results, nil
	}

	chunks, err := e.candidateChunks(ctx, false)
	if err != nil {
		return nil, err
	}
	chunkByID := make(map[string]*docchunk.Chunk, len(chunks))
	for _, chunk := range chunks {
		chunkByID[chunk.ID] = chunk
	}

	var matrix docchunk.Matrix
	if strategy != docchunk.StrategyBalanced {
		// Amortize similarity cost across the whole batch.
		ids := append([]string(nil), pending...)
		for _, chunk := range chunks {
			ids = append(ids, chunk.DocumentIDs...)
		}
		matrix, err = e.sim.BuildSimilarityMatrix(ctx, ids, "", 0)
		if err != nil {
			return nil, err
		}
	}

	// Phase 1: candidate chunk per document against the snapshot.
	byChunk := make(map[string][]bulkCandidate)
	var unmatched []string
	for _, docID := range pending {
		chunkID, score := e.bulkSelect(docID, chunks, matrix, strategy)
		if chunkID == "" {
			unmatched = append(unmatched, docID)
			continue
		}
		byChunk[chunkID] = append(byChunk[chunkID], bulkCandidate{docID: docID, score: score})
	}

	// Phase 2: enforce per-chunk capacity, keeping the top scorers.
	chunkIDs := make([]string, 0, len(byChunk))
	for chunkID := range byChunk {
		chunkIDs = append(chunkIDs, chunkID)
	}
	sort.Strings(chunkIDs)

	for _, chunkID := range chunkIDs {
		candidates := byChunk[chunkID]
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

		available := chunkByID[chunkID].Capacity - chunkByID[chunkID].CurrentSize
		if available < 0 {
			available = 0
		}
		if len(candidates) > available {
			for _, rejected := range candidates[available:] {
				unmatched = append(unmatched, rejected.docID)
			}
			candidates = candidates[:available]
		}

		for _, c := range candidates {
			a, err := e.assignTo(ctx, c.docID, chunkID, c.score, strategy, metadata)
			if err != nil {
				return nil, err
			}
			if a.Status == docchunk.StatusFailed {
				unmatched = append(unmatched, c.docID)
				continue
			}
			results[c.docID] = a
		}
	}

	// Phase 3: back unmatched documents with fresh chunks.
	for start := 0; start < len(unmatched); start += e.config.MaxAssignmentsPerChunk {
		end := min(start+e.config.MaxAssignmentsPerChunk, len(unmatched))
		group := unmatched[start:end]

		chunk, err := e.chunks.CreateChunk(ctx, docchunk.CreateChunkOptions{InitialDocs: group})
		if err != nil {
			return nil, err
		}
		for _, docID := range group {
			a := &docchunk.Assignment{
				DocumentID: docID,
				ChunkID:    chunk.ID,
				Status:     docchunk.StatusAssigned,
				Score:      1.0,
				Strategy:   strategy,
				Metadata:   metadata,
			}
			if err := e.ledger.CreateAssignment(ctx, a); err != nil {
				return nil, err
			}
			e.seen.Add(docID)
			results[docID] = a
		}
	}

	return results, nil
}

// bulkSelect picks a candidate chunk for one document using the
// precomputed matrix instead of per-pair similarity calls.
func (e *Engine) bulkSelect(docID string, chunks []*docchunk.Chunk, matrix docchunk.Matrix, strategy docchunk.Strategy) (string, float64) {
	simID, simScore := "", 0.0
	if strategy != docchunk.StrategyBalanced {
		for _, chunk := range chunks {
			if chunk.CurrentSize == 0 {
				continue
			}
			var sum float64
			for _, memberID := range chunk.DocumentIDs {
				sum += matrix.Score(docID, memberID)
			}
			avg := sum / float64(chunk.CurrentSize)
			if avg > simScore {
				simScore = avg
				simID = chunk.ID
			}
		}
		if simScore < e.config.SimilarityThreshold {
			simID, simScore = "", 0
		}
	}

	switch strategy {
	case docchunk.StrategySimilarity, docchunk.StrategyMetadata:
		return simID, simScore
	case docchunk.StrategyBalanced:
		return balancedPick(chunks)
	default: // hybrid
		if simID != "" {
			return simID, simScore
		}
		return balancedPick(chunks)
	}
}

func balancedPick(chunks []*docchunk.Chunk) (string, float64) {
	bestID := ""
	bestScore := -1.0
	for _, chunk := range chunks {
		score := 1 - chunk.FillRatio()
		if score > bestScore {
			bestScore = score
			bestID = chunk.ID
		}
	}
	if bestID == "" {
		return "", 0
	}
	return bestID, bestScore
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
