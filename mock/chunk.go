package mock

import (
	"context"
	"time"

	"github.com/fwojciec/docchunk"
)

var _ docchunk.ChunkService = (*ChunkService)(nil)

// ChunkService is a mock implementation of docchunk.ChunkService.
type ChunkService struct {
	CreateChunkFn             func(ctx context.Context, opts docchunk.CreateChunkOptions) (*docchunk.Chunk, error)
	GetChunkFn                func(ctx context.Context, id string) (*docchunk.Chunk, error)
	FindChunksFn              func(ctx context.Context, filter docchunk.ChunkFilter) ([]*docchunk.Chunk, error)
	FindChunksByStateFn       func(ctx context.Context, state docchunk.ChunkState) ([]*docchunk.Chunk, error)
	UpdateChunkStateFn        func(ctx context.Context, id string, state docchunk.ChunkState, reason string) error
	AddDocumentToChunkFn      func(ctx context.Context, chunkID, docID string, score float64) (bool, error)
	RemoveDocumentFromChunkFn func(ctx context.Context, chunkID, docID string) (bool, error)
	SplitChunkFn              func(ctx context.Context, id string, cluster docchunk.ClusterFunc) ([]*docchunk.Chunk, error)
	MergeChunksFn             func(ctx context.Context, ids []string) (*docchunk.Chunk, error)
	GetChunkVersionsFn        func(ctx context.Context, id string) ([]*docchunk.ChunkVersion, error)
	GetChunkRelationshipsFn   func(ctx context.Context, id string) ([]*docchunk.ChunkRelationship, error)
	MarkStaleChunksFn         func(ctx context.Context, maxAge time.Duration) (int, error)
	GetChunkContentFn         func(ctx context.Context, id string) (*docchunk.ChunkContent, error)
	RunGarbageCollectionFn    func(ctx context.Context) (int, error)
}

func (s *ChunkService) CreateChunk(ctx context.Context, opts docchunk.CreateChunkOptions) (*docchunk.Chunk, error) {
	return s.CreateChunkFn(ctx, opts)
}

func (s *ChunkService) GetChunk(ctx context.Context, id string) (*docchunk.Chunk, error) {
	return s.GetChunkFn(ctx, id)
}

func (s *ChunkService) FindChunks(ctx context.Context, filter docchunk.ChunkFilter) ([]*docchunk.Chunk, error) {
	return s.FindChunksFn(ctx, filter)
}

func (s *ChunkService) FindChunksByState(ctx context.Context, state docchunk.ChunkState) ([]*docchunk.Chunk, error) {
	return s.FindChunksByStateFn(ctx, state)
}

func (s *ChunkService) UpdateChunkState(ctx context.Context, id string, state docchunk.ChunkState, reason string) error {
	return s.UpdateChunkStateFn(ctx, id, state, reason)
}

func (s *ChunkService) AddDocumentToChunk(ctx context.Context, chunkID, docID string, score float64) (bool, error) {
	return s.AddDocumentToChunkFn(ctx, chunkID, docID, score)
}

func (s *ChunkService) RemoveDocumentFromChunk(ctx context.Context, chunkID, docID string) (bool, error) {
	return s.RemoveDocumentFromChunkFn(ctx, chunkID, docID)
}

func (s *ChunkService) SplitChunk(ctx context.Context, id string, cluster docchunk.ClusterFunc) ([]*docchunk.Chunk, error) {
	return s.SplitChunkFn(ctx, id, cluster)
}

func (s *ChunkService) MergeChunks(ctx context.Context, ids []string) (*docchunk.Chunk, error) {
	return s.MergeChunksFn(ctx, ids)
}

func (s *ChunkService) GetChunkVersions(ctx context.Context, id string) ([]*docchunk.ChunkVersion, error) {
	return s.GetChunkVersionsFn(ctx, id)
}

func (s *ChunkService) GetChunkRelationships(ctx context.Context, id string) ([]*docchunk.ChunkRelationship, error) {
	return s.GetChunkRelationshipsFn(ctx, id)
}

func (s *ChunkService) MarkStaleChunks(ctx context.Context, maxAge time.Duration) (int, error) {
	return s.MarkStaleChunksFn(ctx, maxAge)
}

func (s *ChunkService) GetChunkContent(ctx context.Context, id string) (*docchunk.ChunkContent, error) {
	return s.GetChunkContentFn(ctx, id)
}

func (s *ChunkService) RunGarbageCollection(ctx context.Context) (int, error) {
	return s.RunGarbageCollectionFn(ctx)
}
