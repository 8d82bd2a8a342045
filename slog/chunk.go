// Package slog provides log/slog decorators for docchunk services.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/docchunk"
)

// Ensure LoggingChunkService implements docchunk.ChunkService.
var _ docchunk.ChunkService = (*LoggingChunkService)(nil)

// LoggingChunkService wraps a ChunkService with operation logging.
// Mutations log at Info with durations; reads log only on error.
type LoggingChunkService struct {
	next   docchunk.ChunkService
	logger *slog.Logger
}

// NewLoggingChunkService creates a new LoggingChunkService.
func NewLoggingChunkService(next docchunk.ChunkService, logger *slog.Logger) *LoggingChunkService {
	return &LoggingChunkService{next: next, logger: logger}
}

// CreateChunk delegates to the wrapped service and logs the result.
func (s *LoggingChunkService) CreateChunk(ctx context.Context, opts docchunk.CreateChunkOptions) (*docchunk.Chunk, error) {
	begin := time.Now()
	chunk, err := s.next.CreateChunk(ctx, opts)
	if err != nil {
		s.logger.Error("create chunk", "err", err)
		return nil, err
	}
	s.logger.Info("create chunk",
		"chunk", chunk.ID,
		"state", string(chunk.State),
		"capacity", chunk.Capacity,
		"docs", chunk.CurrentSize,
		"duration", time.Since(begin),
	)
	return chunk, nil
}

// GetChunk delegates to the wrapped service.
func (s *LoggingChunkService) GetChunk(ctx context.Context, id string) (*docchunk.Chunk, error) {
	return s.next.GetChunk(ctx, id)
}

// FindChunks delegates to the wrapped service.
func (s *LoggingChunkService) FindChunks(ctx context.Context, filter docchunk.ChunkFilter) ([]*docchunk.Chunk, error) {
	return s.next.FindChunks(ctx, filter)
}

// FindChunksByState delegates to the wrapped service.
func (s *LoggingChunkService) FindChunksByState(ctx context.Context, state docchunk.ChunkState) ([]*docchunk.Chunk, error) {
	return s.next.FindChunksByState(ctx, state)
}

// UpdateChunkState delegates to the wrapped service and logs the transition.
func (s *LoggingChunkService) UpdateChunkState(ctx context.Context, id string, state docchunk.ChunkState, reason string) error {
	err := s.next.UpdateChunkState(ctx, id, state, reason)
	if err != nil {
		s.logger.Error("update chunk state", "chunk", id, "state", string(state), "err", err)
		return err
	}
	s.logger.Info("update chunk state", "chunk", id, "state", string(state), "reason", reason)
	return nil
}

// AddDocumentToChunk delegates to the wrapped service and logs the outcome.
func (s *LoggingChunkService) AddDocumentToChunk(ctx context.Context, chunkID, docID string, score float64) (bool, error) {
	added, err := s.next.AddDocumentToChunk(ctx, chunkID, docID, score)
	if err != nil {
		s.logger.Error("add document", "chunk", chunkID, "doc", docID, "err", err)
		return false, err
	}
	s.logger.Debug("add document", "chunk", chunkID, "doc", docID, "added", added)
	return added, nil
}

// RemoveDocumentFromChunk delegates to the wrapped service and logs the outcome.
func (s *LoggingChunkService) RemoveDocumentFromChunk(ctx context.Context, chunkID, docID string) (bool, error) {
	removed, err := s.next.RemoveDocumentFromChunk(ctx, chunkID, docID)
	if err != nil {
		s.logger.Error("remove document", "chunk", chunkID, "doc", docID, "err", err)
		return false, err
	}
	s.logger.Debug("remove document", "chunk", chunkID, "doc", docID, "removed", removed)
	return removed, nil
}

// SplitChunk delegates to the wrapped service and logs the children.
func (s *LoggingChunkService) SplitChunk(ctx context.Context, id string, cluster docchunk.ClusterFunc) ([]*docchunk.Chunk, error) {
	begin := time.Now()
	children, err := s.next.SplitChunk(ctx, id, cluster)
	if err != nil {
		s.logger.Error("split chunk", "chunk", id, "err", err)
		return nil, err
	}
	ids := make([]string, len(children))
	for i, child := range children {
		ids[i] = child.ID
	}
	s.logger.Info("split chunk", "chunk", id, "children", ids, "duration", time.Since(begin))
	return children, nil
}

// MergeChunks delegates to the wrapped service and logs the merged chunk.
func (s *LoggingChunkService) MergeChunks(ctx context.Context, ids []string) (*docchunk.Chunk, error) {
	begin := time.Now()
	merged, err := s.next.MergeChunks(ctx, ids)
	if err != nil {
		s.logger.Error("merge chunks", "chunks", ids, "err", err)
		return nil, err
	}
	s.logger.Info("merge chunks",
		"chunks", ids,
		"merged", merged.ID,
		"capacity", merged.Capacity,
		"docs", merged.CurrentSize,
		"duration", time.Since(begin),
	)
	return merged, nil
}

// GetChunkVersions delegates to the wrapped service.
func (s *LoggingChunkService) GetChunkVersions(ctx context.Context, id string) ([]*docchunk.ChunkVersion, error) {
	return s.next.GetChunkVersions(ctx, id)
}

// GetChunkRelationships delegates to the wrapped service.
func (s *LoggingChunkService) GetChunkRelationships(ctx context.Context, id string) ([]*docchunk.ChunkRelationship, error) {
	return s.next.GetChunkRelationships(ctx, id)
}

// MarkStaleChunks delegates to the wrapped service and logs the count.
func (s *LoggingChunkService) MarkStaleChunks(ctx context.Context, maxAge time.Duration) (int, error) {
	begin := time.Now()
	count, err := s.next.MarkStaleChunks(ctx, maxAge)
	if err != nil {
		s.logger.Error("mark stale chunks", "err", err)
		return count, err
	}
	s.logger.Info("mark stale chunks", "marked", count, "duration", time.Since(begin))
	return count, nil
}

// GetChunkContent delegates to the wrapped service and logs regeneration time.
func (s *LoggingChunkService) GetChunkContent(ctx context.Context, id string) (*docchunk.ChunkContent, error) {
	begin := time.Now()
	content, err := s.next.GetChunkContent(ctx, id)
	if err != nil {
		s.logger.Error("get chunk content", "chunk", id, "err", err)
		return nil, err
	}
	s.logger.Debug("get chunk content",
		"chunk", id,
		"bytes", len(content.Content),
		"duration", time.Since(begin),
	)
	return content, nil
}

// RunGarbageCollection delegates to the wrapped service and logs the count.
func (s *LoggingChunkService) RunGarbageCollection(ctx context.Context) (int, error) {
	begin := time.Now()
	count, err := s.next.RunGarbageCollection(ctx)
	if err != nil {
		s.logger.Error("garbage collection", "err", err)
		return 0, err
	}
	s.logger.Info("garbage collection", "removed", count, "duration", time.Since(begin))
	return count, nil
}
