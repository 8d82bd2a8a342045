// Package assign decides which chunk a document belongs to. It supports
// multiple selection strategies, bulk two-phase assignment with capacity
// capping, assignment optimization across chunks, and detection and
// resolution of near-equal competing assignments.
package assign

import (
	"context"

	"github.com/fwojciec/docchunk"
	"github.com/fwojciec/docchunk/bloom"
)

// Config configures assignment engine behavior.
type Config struct {
	// DefaultStrategy is used when callers pass no strategy.
	DefaultStrategy docchunk.Strategy

	// SimilarityThreshold is the minimum average member similarity for a
	// similarity-based selection to be accepted.
	SimilarityThreshold float64

	// ConflictThreshold is the score difference below which two competing
	// assignments count as a conflict.
	ConflictThreshold float64

	// HybridCloseness is the score difference below which conflict
	// resolution under the hybrid strategy falls back to the balanced rule.
	HybridCloseness float64

	// MaxAssignmentsPerChunk caps how many rerouted documents a freshly
	// created chunk receives during bulk assignment.
	MaxAssignmentsPerChunk int

	// Rebalancing knobs for the hybrid optimizer.
	LoadVarianceLimit float64
	OverloadedFill    float64
	TargetFill        float64
	UnderloadedFill   float64

	// ExpectedDocuments sizes the engine's seen-document Bloom filter.
	ExpectedDocuments uint
}

// DefaultConfig returns the default assignment engine configuration.
func DefaultConfig() Config {
	return Config{
		DefaultStrategy:        docchunk.StrategyHybrid,
		SimilarityThreshold:    docchunk.DefaultSimilarityThreshold,
		ConflictThreshold:      docchunk.DefaultConflictThreshold,
		HybridCloseness:        0.1,
		MaxAssignmentsPerChunk: docchunk.DefaultMaxAssignmentsPerChunk,
		LoadVarianceLimit:      0.15,
		OverloadedFill:         0.85,
		TargetFill:             0.70,
		UnderloadedFill:        0.50,
		ExpectedDocuments:      100000,
	}
}

// Engine assigns documents to chunks. Chunk membership is mutated only
// through the chunk service; the assignment/history/conflict ledger is
// owned by the assignment service.
type Engine struct {
	chunks docchunk.ChunkService
	ledger docchunk.AssignmentService
	sim    docchunk.SimilarityService
	config Config

	selectors map[docchunk.Strategy]selector

	// seen pre-filters bulk assignment. It is seeded from the persistent
	// ledger on first use; after that a negative test proves a document
	// holds no ASSIGNED row, skipping a ledger lookup.
	seen   *bloom.Filter
	seeded bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig overrides the default configuration.
func WithConfig(config Config) Option {
	return func(e *Engine) { e.config = config }
}

// NewEngine creates an assignment engine.
func NewEngine(chunks docchunk.ChunkService, ledger docchunk.AssignmentService, sim docchunk.SimilarityService, opts ...Option) *Engine {
	e := &Engine{
		chunks: chunks,
		ledger: ledger,
		sim:    sim,
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.seen = bloom.NewFilter(e.config.ExpectedDocuments, 0.01)
	e.selectors = map[docchunk.Strategy]selector{
		docchunk.StrategySimilarity: &similaritySelector{engine: e},
		docchunk.StrategyBalanced:   &balancedSelector{engine: e},
		docchunk.StrategyHybrid: &hybridSelector{
			engine:     e,
			similarity: &similaritySelector{engine: e},
			balanced:   &balancedSelector{engine: e},
		},
		// Metadata matching is an extension point; it currently selects by
		// similarity.
		docchunk.StrategyMetadata: &similaritySelector{engine: e},
	}
	return e
}

// AssignDocument assigns a document to a chunk. Calling it for a document
// that already holds an ASSIGNED row returns that row unchanged. Chunk-level
// failures (missing target, chunk at capacity) produce a FAILED record
// rather than an error so bulk callers keep a uniform return type.
func (e *Engine) AssignDocument(ctx context.Context, docID string, strategy docchunk.Strategy, targetChunkID string, metadata map[string]string) (*docchunk.Assignment, error) {
	if docID == "" {
		return nil, docchunk.Errorf(docchunk.EINVALID, "document ID required")
	}
	if strategy == "" {
		strategy = e.config.DefaultStrategy
	}
	if err := strategy.Validate(); err != nil {
		return nil, err
	}

	existing, err := e.ledger.FindAssignedByDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing[0], nil
	}

	if strategy == docchunk.StrategyManual {
		if targetChunkID == "" {
			return nil, docchunk.Errorf(docchunk.EINVALID, "manual assignment requires a target chunk")
		}
		return e.assignTo(ctx, docID, targetChunkID, 1.0, strategy, metadata)
	}

	sel, ok := e.selectors[strategy]
	if !ok {
		return nil, docchunk.Errorf(docchunk.EINVALID, "no selector for strategy %q", string(strategy))
	}

	chunkID, score, err := sel.SelectChunk(ctx, docID)
	if err != nil {
		return nil, err
	}
	if chunkID == "" {
		return e.assignToFreshChunk(ctx, docID, strategy, metadata)
	}

	a, err := e.assignTo(ctx, docID, chunkID, score, strategy, metadata)
	if err != nil {
		return nil, err
	}
	// A capacity race can fail the chosen chunk between selection and add;
	// fall through to a fresh chunk so the document is never dropped.
	if a.Status == docchunk.StatusFailed {
		return e.assignToFreshChunk(ctx, docID, strategy, metadata)
	}
	return a, nil
}

// assignTo adds the document to the chunk and records the assignment.
// Soft chunk failures yield a FAILED record.
func (e *Engine) assignTo(ctx context.Context, docID, chunkID string, score float64, strategy docchunk.Strategy, metadata map[string]string) (*docchunk.Assignment, error) {
	added, err := e.chunks.AddDocumentToChunk(ctx, chunkID, docID, score)
	if err != nil {
		return nil, err
	}

	a := &docchunk.Assignment{
		DocumentID: docID,
		ChunkID:    chunkID,
		Status:     docchunk.StatusAssigned,
		Score:      score,
		Strategy:   strategy,
		Metadata:   metadata,
	}
	if !added {
		a.Status = docchunk.StatusFailed
	}
	if err := e.ledger.CreateAssignment(ctx, a); err != nil {
		return nil, err
	}
	if added {
		e.seen.Add(docID)
	}
	return a, nil
}

// assignToFreshChunk creates a new chunk seeded with the document.
func (e *Engine) assignToFreshChunk(ctx context.Context, docID string, strategy docchunk.Strategy, metadata map[string]string) (*docchunk.Assignment, error) {
	chunk, err := e.chunks.CreateChunk(ctx, docchunk.CreateChunkOptions{InitialDocs: []string{docID}})
	if err != nil {
		return nil, err
	}

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
	return a, nil
}

// reassign moves a document from its current ASSIGNED chunk to a new one,
// marking the old row REASSIGNED and recording the move in history.
func (e *Engine) reassign(ctx context.Context, current *docchunk.Assignment, newChunkID string, score float64, strategy docchunk.Strategy) (*docchunk.Assignment, error) {
	if current.ChunkID == newChunkID {
		return current, nil
	}

	added, err := e.chunks.AddDocumentToChunk(ctx, newChunkID, current.DocumentID, score)
	if err != nil {
		return nil, err
	}
	if !added {
		a := &docchunk.Assignment{
			DocumentID:      current.DocumentID,
			ChunkID:         newChunkID,
			Status:          docchunk.StatusFailed,
			Score:           score,
			Strategy:        strategy,
			PreviousChunkID: current.ChunkID,
		}
		if err := e.ledger.CreateAssignment(ctx, a); err != nil {
			return nil, err
		}
		return a, nil
	}

	if err := e.ledger.UpdateAssignmentStatus(ctx, current.ID, docchunk.StatusReassigned, "reassigned"); err != nil {
		return nil, err
	}
	if _, err := e.chunks.RemoveDocumentFromChunk(ctx, current.ChunkID, current.DocumentID); err != nil {
		return nil, err
	}

	a := &docchunk.Assignment{
		DocumentID:      current.DocumentID,
		ChunkID:         newChunkID,
		Status:          docchunk.StatusAssigned,
		Score:           score,
		Strategy:        strategy,
		PreviousChunkID: current.ChunkID,
	}
	if err := e.ledger.CreateAssignment(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetAssignmentStats aggregates the assignment ledger.
func (e *Engine) GetAssignmentStats(ctx context.Context) (*docchunk.AssignmentStats, error) {
	return e.ledger.GetStats(ctx)
}

// GetAssignmentHistory returns a document's assignment history, oldest
// first.
func (e *Engine) GetAssignmentHistory(ctx context.Context, docID string) ([]*docchunk.AssignmentHistory, error) {
	return e.ledger.GetAssignmentHistory(ctx, docID)
}

// warmSeenFilter seeds the Bloom filter with every document ID the
// ledger currently holds as ASSIGNED. The filter is engine-local state
// while the ledger is persistent, so a fresh engine must not treat an
// empty filter as an empty ledger.
func (e *Engine) warmSeenFilter(ctx context.Context) error {
	if e.seeded {
		return nil
	}
	ids, err := e.ledger.FindAssignedDocumentIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		e.seen.Add(id)
	}
	e.seeded = true
	return nil
}

// candidateChunks returns ACTIVE chunks with available capacity.
// requireMembers additionally filters out empty chunks.
func (e *Engine) candidateChunks(ctx context.Context, requireMembers bool) ([]*docchunk.Chunk, error) {
	chunks, err := e.chunks.FindChunksByState(ctx, docchunk.StateActive)
	if err != nil {
		return nil, err
	}

	var out []*docchunk.Chunk
	for _, chunk := range chunks {
		if chunk.CurrentSize >= chunk.Capacity {
			continue
		}
		if requireMembers && chunk.CurrentSize == 0 {
			continue
		}
		out = append(out, chunk)
	}
	return out, nil
}
