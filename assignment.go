package docchunk

import (
	"context"
	"time"
)

// Default assignment engine configuration values.
const (
	DefaultSimilarityThreshold = 0.6

	// DefaultConflictThreshold is deliberately preserved from the original
	// product behavior: two ASSIGNED scores differing by less than this
	// value count as a conflict, which for scores in [0,1] flags nearly
	// every double assignment. Callers wanting narrower detection pass an
	// explicit threshold to DetectConflicts.
	DefaultConflictThreshold = 0.8

	DefaultMaxAssignmentsPerChunk = 20
)

// AssignmentStatus represents the state of a document-to-chunk assignment.
type AssignmentStatus string

// Assignment statuses.
const (
	StatusPending    AssignmentStatus = "pending"
	StatusAssigned   AssignmentStatus = "assigned"
	StatusFailed     AssignmentStatus = "failed"
	StatusConflicted AssignmentStatus = "conflicted"
	StatusReassigned AssignmentStatus = "reassigned"
)

// Validate returns an error if the status is not a known assignment status.
func (s AssignmentStatus) Validate() error {
	switch s {
	case StatusPending, StatusAssigned, StatusFailed, StatusConflicted, StatusReassigned:
		return nil
	}
	return Errorf(EINVALID, "unknown assignment status %q", string(s))
}

// Strategy selects how a document is matched to a chunk.
type Strategy string

// Assignment strategies.
const (
	StrategySimilarity Strategy = "similarity"
	StrategyBalanced   Strategy = "balanced"
	StrategyHybrid     Strategy = "hybrid"
	StrategyMetadata   Strategy = "metadata"
	StrategyManual     Strategy = "manual"
)

// Validate returns an error if the strategy is not a known strategy.
func (s Strategy) Validate() error {
	switch s {
	case StrategySimilarity, StrategyBalanced, StrategyHybrid, StrategyMetadata, StrategyManual:
		return nil
	}
	return Errorf(EINVALID, "unknown assignment strategy %q", string(s))
}

// Assignment records a document's current or historical relationship to a
// chunk. Rows are mutated (status flips) rather than deleted; full history
// lives in the append-only AssignmentHistory log.
type Assignment struct {
	ID              string            `json:"id"`
	DocumentID      string            `json:"documentId"`
	ChunkID         string            `json:"chunkId"`
	Status          AssignmentStatus  `json:"status"`
	Score           float64           `json:"score"`
	Strategy        Strategy          `json:"strategy"`
	PreviousChunkID string            `json:"previousChunkId,omitempty"`
	ConflictDetail  string            `json:"conflictDetail,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Validate returns an error if the assignment contains invalid fields.
func (a *Assignment) Validate() error {
	if a.DocumentID == "" {
		return Errorf(EINVALID, "assignment document ID required")
	}
	if err := a.Status.Validate(); err != nil {
		return err
	}
	if err := a.Strategy.Validate(); err != nil {
		return err
	}
	if a.Score < 0 || a.Score > 1 {
		return Errorf(EINVALID, "assignment score %f outside [0,1]", a.Score)
	}
	return nil
}

// AssignmentHistory is one entry in the append-only assignment audit log.
type AssignmentHistory struct {
	ID           string           `json:"id"`
	AssignmentID string           `json:"assignmentId"`
	DocumentID   string           `json:"documentId"`
	ChunkID      string           `json:"chunkId"`
	Action       string           `json:"action"`
	Status       AssignmentStatus `json:"status"`
	Score        float64          `json:"score"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// Conflict records a document scored near-equally into two chunks.
type Conflict struct {
	ID               string    `json:"id"`
	DocumentID       string    `json:"documentId"`
	PrimaryChunkID   string    `json:"primaryChunkId"`
	SecondaryChunkID string    `json:"secondaryChunkId"`
	PrimaryScore     float64   `json:"primaryScore"`
	SecondaryScore   float64   `json:"secondaryScore"`
	ResolvedChunkID  string    `json:"resolvedChunkId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	ResolvedAt       time.Time `json:"resolvedAt,omitzero"`
}

// Resolved reports whether the conflict has been resolved.
func (c *Conflict) Resolved() bool {
	return !c.ResolvedAt.IsZero()
}

// AssignmentFilter represents a filter for FindAssignments.
type AssignmentFilter struct {
	DocumentID *string           `json:"documentId"`
	ChunkID    *string           `json:"chunkId"`
	Status     *AssignmentStatus `json:"status"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// AssignmentStats summarizes the assignment ledger.
type AssignmentStats struct {
	Total      int                      `json:"total"`
	ByStatus   map[AssignmentStatus]int `json:"byStatus"`
	ByStrategy map[Strategy]int         `json:"byStrategy"`
	ByChunk    map[string]int           `json:"byChunk"`
	MeanScore  float64                  `json:"meanScore"`
}

// AssignmentService owns the assignment, history and conflict ledger
// exclusively. The assignment engine writes through it; chunk membership
// changes go through ChunkService.
type AssignmentService interface {
	// CreateAssignment persists a new assignment row and appends a history
	// entry recording the creation.
	CreateAssignment(ctx context.Context, a *Assignment) error

	// UpdateAssignmentStatus flips an assignment's status and appends a
	// history entry. Returns ENOTFOUND if the assignment does not exist.
	UpdateAssignmentStatus(ctx context.Context, id string, status AssignmentStatus, action string) error

	// FindAssignments retrieves assignments matching the filter.
	FindAssignments(ctx context.Context, filter AssignmentFilter) ([]*Assignment, error)

	// FindAssignedByDocument returns the document's ASSIGNED rows, ordered
	// by descending score.
	FindAssignedByDocument(ctx context.Context, docID string) ([]*Assignment, error)

	// FindAssignedDocumentIDs returns the distinct document IDs holding at
	// least one ASSIGNED row.
	FindAssignedDocumentIDs(ctx context.Context) ([]string, error)

	// GetAssignmentHistory returns a document's history entries, oldest
	// first.
	GetAssignmentHistory(ctx context.Context, docID string) ([]*AssignmentHistory, error)

	// CreateConflict persists a detected conflict.
	CreateConflict(ctx context.Context, c *Conflict) error

	// ResolveConflict records the winning chunk for a conflict.
	// Returns ENOTFOUND if the conflict does not exist.
	ResolveConflict(ctx context.Context, id, winnerChunkID string) error

	// FindUnresolvedConflicts returns conflicts without a resolution.
	FindUnresolvedConflicts(ctx context.Context) ([]*Conflict, error)

	// GetStats aggregates the assignment ledger.
	GetStats(ctx context.Context) (*AssignmentStats, error)

	// DeleteAssignmentsByChunk removes all assignment rows for a chunk.
	// Used by garbage collection.
	DeleteAssignmentsByChunk(ctx context.Context, chunkID string) error
}
