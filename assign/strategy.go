package assign

import "context"

// selector picks the best chunk for a document under one strategy.
// Implementations return an empty chunk ID when no chunk qualifies.
type selector interface {
	SelectChunk(ctx context.Context, docID string) (chunkID string, score float64, err error)
}

// similaritySelector picks the chunk whose current members are on average
// most similar to the document, requiring the average to clear the
// configured similarity threshold.
type similaritySelector struct {
	engine *Engine
}

func (s *similaritySelector) SelectChunk(ctx context.Context, docID string) (string, float64, error) {
	chunks, err := s.engine.candidateChunks(ctx, true)
	if err != nil {
		return "", 0, err
	}

	bestID := ""
	bestScore := 0.0
	for _, chunk := range chunks {
		avg, err := s.averageMemberSimilarity(ctx, docID, chunk.DocumentIDs)
		if err != nil {
			return "", 0, err
		}
		if avg > bestScore {
			bestScore = avg
			bestID = chunk.ID
		}
	}

	if bestID == "" || bestScore < s.engine.config.SimilarityThreshold {
		return "", 0, nil
	}
	return bestID, bestScore, nil
}

func (s *similaritySelector) averageMemberSimilarity(ctx context.Context, docID string, memberIDs []string) (float64, error) {
	if len(memberIDs) == 0 {
		return 0, nil
	}
	var sum float64
	for _, memberID := range memberIDs {
		score, err := s.engine.sim.CalculateSimilarity(ctx, docID, memberID, "")
		if err != nil {
			return 0, err
		}
		sum += score
	}
	return sum / float64(len(memberIDs)), nil
}

// balancedSelector favors emptier chunks: score = 1 - size/capacity.
type balancedSelector struct {
	engine *Engine
}

func (s *balancedSelector) SelectChunk(ctx context.Context, docID string) (string, float64, error) {
	chunks, err := s.engine.candidateChunks(ctx, false)
	if err != nil {
		return "", 0, err
	}

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
		return "", 0, nil
	}
	return bestID, bestScore, nil
}

// hybridSelector prefers the similarity result when it clears the
// threshold, falls back to the balanced result, and otherwise returns
// whichever candidate scored higher.
type hybridSelector struct {
	engine     *Engine
	similarity *similaritySelector
	balanced   *balancedSelector
}

func (s *hybridSelector) SelectChunk(ctx context.Context, docID string) (string, float64, error) {
	simID, simScore, err := s.similarity.SelectChunk(ctx, docID)
	if err != nil {
		return "", 0, err
	}
	if simID != "" && simScore >= s.engine.config.SimilarityThreshold {
		return simID, simScore, nil
	}

	balID, balScore, err := s.balanced.SelectChunk(ctx, docID)
	if err != nil {
		return "", 0, err
	}
	if balID != "" {
		return balID, balScore, nil
	}
	if simID != "" {
		return simID, simScore, nil
	}
	return "", 0, nil
}
