package mock

import (
	"context"

	"github.com/fwojciec/docchunk"
)

var _ docchunk.AssignmentService = (*AssignmentService)(nil)

// AssignmentService is a mock implementation of docchunk.AssignmentService.
type AssignmentService struct {
	CreateAssignmentFn         func(ctx context.Context, a *docchunk.Assignment) error
	UpdateAssignmentStatusFn   func(ctx context.Context, id string, status docchunk.AssignmentStatus, action string) error
	FindAssignmentsFn          func(ctx context.Context, filter docchunk.AssignmentFilter) ([]*docchunk.Assignment, error)
	FindAssignedByDocumentFn   func(ctx context.Context, docID string) ([]*docchunk.Assignment, error)
	FindAssignedDocumentIDsFn  func(ctx context.Context) ([]string, error)
	GetAssignmentHistoryFn     func(ctx context.Context, docID string) ([]*docchunk.AssignmentHistory, error)
	CreateConflictFn           func(ctx context.Context, c *docchunk.Conflict) error
	ResolveConflictFn          func(ctx context.Context, id, winnerChunkID string) error
	FindUnresolvedConflictsFn  func(ctx context.Context) ([]*docchunk.Conflict, error)
	GetStatsFn                 func(ctx context.Context) (*docchunk.AssignmentStats, error)
	DeleteAssignmentsByChunkFn func(ctx context.Context, chunkID string) error
}

func (s *AssignmentService) CreateAssignment(ctx context.Context, a *docchunk.Assignment) error {
	return s.CreateAssignmentFn(ctx, a)
}

func (s *AssignmentService) UpdateAssignmentStatus(ctx context.Context, id string, status docchunk.AssignmentStatus, action string) error {
	return s.UpdateAssignmentStatusFn(ctx, id, status, action)
}

func (s *AssignmentService) FindAssignments(ctx context.Context, filter docchunk.AssignmentFilter) ([]*docchunk.Assignment, error) {
	return s.FindAssignmentsFn(ctx, filter)
}

func (s *AssignmentService) FindAssignedByDocument(ctx context.Context, docID string) ([]*docchunk.Assignment, error) {
	return s.FindAssignedByDocumentFn(ctx, docID)
}

func (s *AssignmentService) FindAssignedDocumentIDs(ctx context.Context) ([]string, error) {
	return s.FindAssignedDocumentIDsFn(ctx)
}

func (s *AssignmentService) GetAssignmentHistory(ctx context.Context, docID string) ([]*docchunk.AssignmentHistory, error) {
	return s.GetAssignmentHistoryFn(ctx, docID)
}

func (s *AssignmentService) CreateConflict(ctx context.Context, c *docchunk.Conflict) error {
	return s.CreateConflictFn(ctx, c)
}

func (s *AssignmentService) ResolveConflict(ctx context.Context, id, winnerChunkID string) error {
	return s.ResolveConflictFn(ctx, id, winnerChunkID)
}

func (s *AssignmentService) FindUnresolvedConflicts(ctx context.Context) ([]*docchunk.Conflict, error) {
	return s.FindUnresolvedConflictsFn(ctx)
}

func (s *AssignmentService) GetStats(ctx context.Context) (*docchunk.AssignmentStats, error) {
	return s.GetStatsFn(ctx)
}

func (s *AssignmentService) DeleteAssignmentsByChunk(ctx context.Context, chunkID string) error {
	return s.DeleteAssignmentsByChunkFn(ctx, chunkID)
}
