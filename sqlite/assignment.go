package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/fwojciec/docchunk"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ docchunk.AssignmentService = (*AssignmentService)(nil)

// AssignmentService implements docchunk.AssignmentService using SQLite.
// It owns the assignment, history and conflict ledger; chunk membership
// is owned by ChunkService.
type AssignmentService struct {
	db *DB
}

// NewAssignmentService creates a new AssignmentService.
func NewAssignmentService(db *DB) *AssignmentService {
	return &AssignmentService{db: db}
}

// CreateAssignment persists a new assignment row and a history entry in one
// transaction.
func (s *AssignmentService) CreateAssignment(ctx context.Context, a *docchunk.Assignment) error {
	if err := a.Validate(); err != nil {
		return err
	}

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	metadata := ""
	if len(a.Metadata) > 0 {
		raw, err := json.Marshal(a.Metadata)
		if err != nil {
			return err
		}
		metadata = string(raw)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO assignments (id, document_id, chunk_id, status, score, strategy, previous_chunk_id, conflict_detail, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.DocumentID, a.ChunkID, string(a.Status), a.Score, string(a.Strategy),
		a.PreviousChunkID, a.ConflictDetail, metadata,
		now.Format(time.RFC3339), now.Format(time.RFC3339)); err != nil {
		return err
	}

	if err := appendHistory(ctx, tx, a, "created"); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateAssignmentStatus flips an assignment's status and appends a history
// entry recording the action.
func (s *AssignmentService) UpdateAssignmentStatus(ctx context.Context, id string, status docchunk.AssignmentStatus, action string) error {
	if err := status.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	a, err := findAssignmentTx(ctx, tx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	a.Status = status
	a.UpdatedAt = now
	if _, err := tx.ExecContext(ctx, `
		UPDATE assignments SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), now.Format(time.RFC3339), id); err != nil {
		return err
	}

	if err := appendHistory(ctx, tx, a, action); err != nil {
		return err
	}

	return tx.Commit()
}

// FindAssignments retrieves assignments matching the filter, newest first.
func (s *AssignmentService) FindAssignments(ctx context.Context, filter docchunk.AssignmentFilter) ([]*docchunk.Assignment, error) {
	var query strings.Builder
	var args []any

	query.WriteString(assignmentColumns + " FROM assignments WHERE 1=1")

	if filter.DocumentID != nil {
		query.WriteString(" AND document_id = ?")
		args = append(args, *filter.DocumentID)
	}
	if filter.ChunkID != nil {
		query.WriteString(" AND chunk_id = ?")
		args = append(args, *filter.ChunkID)
	}
	if filter.Status != nil {
		query.WriteString(" AND status = ?")
		args = append(args, string(*filter.Status))
	}

	query.WriteString(" ORDER BY created_at DESC, id ASC")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAssignments(rows)
}

// FindAssignedByDocument returns a document's ASSIGNED rows ordered by
// descending score.
func (s *AssignmentService) FindAssignedByDocument(ctx context.Context, docID string) ([]*docchunk.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, assignmentColumns+`
		FROM assignments
		WHERE document_id = ? AND status = ?
		ORDER BY score DESC, created_at ASC
	`, docID, string(docchunk.StatusAssigned))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAssignments(rows)
}

// FindAssignedDocumentIDs returns the distinct document IDs holding at
// least one ASSIGNED row.
func (s *AssignmentService) FindAssignedDocumentIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT document_id FROM assignments WHERE status = ? ORDER BY document_id ASC
	`, string(docchunk.StatusAssigned))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetAssignmentHistory returns a document's history, oldest first.
func (s *AssignmentService) GetAssignmentHistory(ctx context.Context, docID string) ([]*docchunk.AssignmentHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, assignment_id, document_id, chunk_id, action, status, score, created_at
		FROM assignment_history
		WHERE document_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*docchunk.AssignmentHistory
	for rows.Next() {
		var h docchunk.AssignmentHistory
		var status, createdAt string
		if err := rows.Scan(&h.ID, &h.AssignmentID, &h.DocumentID, &h.ChunkID, &h.Action, &status, &h.Score, &createdAt); err != nil {
			return nil, err
		}
		h.Status = docchunk.AssignmentStatus(status)
		if h.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
			return nil, err
		}
		entries = append(entries, &h)
	}
	return entries, rows.Err()
}

// CreateConflict persists a detected conflict.
func (s *AssignmentService) CreateConflict(ctx context.Context, c *docchunk.Conflict) error {
	if c.DocumentID == "" || c.PrimaryChunkID == "" || c.SecondaryChunkID == "" {
		return docchunk.Errorf(docchunk.EINVALID, "conflict document and chunk IDs required")
	}

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assignment_conflicts (id, document_id, primary_chunk_id, secondary_chunk_id, primary_score, secondary_score, resolved_chunk_id, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, '', ?, '')
	`, c.ID, c.DocumentID, c.PrimaryChunkID, c.SecondaryChunkID, c.PrimaryScore, c.SecondaryScore,
		c.CreatedAt.Format(time.RFC3339))
	return err
}

// ResolveConflict records the winning chunk for a conflict.
func (s *AssignmentService) ResolveConflict(ctx context.Context, id, winnerChunkID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE assignment_conflicts SET resolved_chunk_id = ?, resolved_at = ? WHERE id = ?
	`, winnerChunkID, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return docchunk.Errorf(docchunk.ENOTFOUND, "conflict %q not found", id)
	}
	return nil
}

// FindUnresolvedConflicts returns conflicts without a resolution, oldest
// first.
func (s *AssignmentService) FindUnresolvedConflicts(ctx context.Context) ([]*docchunk.Conflict, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, primary_chunk_id, secondary_chunk_id, primary_score, secondary_score, resolved_chunk_id, created_at, resolved_at
		FROM assignment_conflicts
		WHERE resolved_at = ''
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conflicts []*docchunk.Conflict
	for rows.Next() {
		var c docchunk.Conflict
		var createdAt, resolvedAt string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.PrimaryChunkID, &c.SecondaryChunkID,
			&c.PrimaryScore, &c.SecondaryScore, &c.ResolvedChunkID, &createdAt, &resolvedAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
			return nil, err
		}
		if resolvedAt != "" {
			if c.ResolvedAt, err = parseRFC3339(resolvedAt, "resolved_at"); err != nil {
				return nil, err
			}
		}
		conflicts = append(conflicts, &c)
	}
	return conflicts, rows.Err()
}

// GetStats aggregates the assignment ledger.
func (s *AssignmentService) GetStats(ctx context.Context) (*docchunk.AssignmentStats, error) {
	stats := &docchunk.AssignmentStats{
		ByStatus:   make(map[docchunk.AssignmentStatus]int),
		ByStrategy: make(map[docchunk.Strategy]int),
		ByChunk:    make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, strategy, chunk_id, score FROM assignments
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scoreSum float64
	for rows.Next() {
		var status, strategy, chunkID string
		var score float64
		if err := rows.Scan(&status, &strategy, &chunkID, &score); err != nil {
			return nil, err
		}
		stats.Total++
		stats.ByStatus[docchunk.AssignmentStatus(status)]++
		stats.ByStrategy[docchunk.Strategy(strategy)]++
		if docchunk.AssignmentStatus(status) == docchunk.StatusAssigned {
			stats.ByChunk[chunkID]++
		}
		scoreSum += score
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.Total > 0 {
		stats.MeanScore = scoreSum / float64(stats.Total)
	}
	return stats, nil
}

// DeleteAssignmentsByChunk removes all assignment rows for a chunk.
func (s *AssignmentService) DeleteAssignmentsByChunk(ctx context.Context, chunkID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM assignments WHERE chunk_id = ?", chunkID)
	return err
}

const assignmentColumns = "SELECT id, document_id, chunk_id, status, score, strategy, previous_chunk_id, conflict_detail, metadata, created_at, updated_at"

func findAssignmentTx(ctx context.Context, tx *sql.Tx, id string) (*docchunk.Assignment, error) {
	row := tx.QueryRowContext(ctx, assignmentColumns+" FROM assignments WHERE id = ?", id)

	a, err := scanAssignment(row.Scan)
	if err == sql.ErrNoRows {
		return nil, docchunk.Errorf(docchunk.ENOTFOUND, "assignment %q not found", id)
	}
	return a, err
}

func scanAssignments(rows *sql.Rows) ([]*docchunk.Assignment, error) {
	var assignments []*docchunk.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows.Scan)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func scanAssignment(scan func(...any) error) (*docchunk.Assignment, error) {
	var a docchunk.Assignment
	var status, strategy, metadata, createdAt, updatedAt string

	if err := scan(&a.ID, &a.DocumentID, &a.ChunkID, &status, &a.Score, &strategy,
		&a.PreviousChunkID, &a.ConflictDetail, &metadata, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	a.Status = docchunk.AssignmentStatus(status)
	a.Strategy = docchunk.Strategy(strategy)
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &a.Metadata); err != nil {
			return nil, err
		}
	}

	var err error
	if a.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseRFC3339(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &a, nil
}

func appendHistory(ctx context.Context, tx *sql.Tx, a *docchunk.Assignment, action string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO assignment_history (id, assignment_id, document_id, chunk_id, action, status, score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), a.ID, a.DocumentID, a.ChunkID, action, string(a.Status), a.Score,
		time.Now().UTC().Format(time.RFC3339))
	return err
}
