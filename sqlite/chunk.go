package sqlite

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/docchunk"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ docchunk.ChunkService = (*ChunkService)(nil)

// Config configures chunk store thresholds.
type Config struct {
	DefaultCapacity int
	SplitThreshold  float64
	MergeThreshold  float64
	Retention       time.Duration
}

// DefaultConfig returns the default chunk store configuration.
func DefaultConfig() Config {
	return Config{
		DefaultCapacity: docchunk.DefaultChunkCapacity,
		SplitThreshold:  docchunk.DefaultSplitThreshold,
		MergeThreshold:  docchunk.DefaultMergeThreshold,
		Retention:       docchunk.DefaultRetentionPeriod,
	}
}

// ChunkService implements docchunk.ChunkService using SQLite.
type ChunkService struct {
	db      *DB
	config  Config
	docs    docchunk.DocumentSource
	content docchunk.ContentStore
}

// ChunkOption configures a ChunkService.
type ChunkOption func(*ChunkService)

// WithConfig overrides the default thresholds.
func WithConfig(config Config) ChunkOption {
	return func(s *ChunkService) { s.config = config }
}

// WithDocumentSource supplies the document lookup used for content
// regeneration.
func WithDocumentSource(docs docchunk.DocumentSource) ChunkOption {
	return func(s *ChunkService) { s.docs = docs }
}

// WithContentStore supplies the cache for aggregate chunk content.
func WithContentStore(content docchunk.ContentStore) ChunkOption {
	return func(s *ChunkService) { s.content = content }
}

// NewChunkService creates a new ChunkService.
func NewChunkService(db *DB, opts ...ChunkOption) *ChunkService {
	s := &ChunkService{db: db, config: DefaultConfig()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// hashContent computes xxHash of content and returns hex string.
func hashContent(content string) string {
	h := xxhash.Sum64String(content)
	b := make([]byte, 8)
	b[0] = byte(h >> 56)
	b[1] = byte(h >> 48)
	b[2] = byte(h >> 40)
	b[3] = byte(h >> 32)
	b[4] = byte(h >> 24)
	b[5] = byte(h >> 16)
	b[6] = byte(h >> 8)
	b[7] = byte(h)
	return hex.EncodeToString(b)
}

// CreateChunk creates a new chunk. A non-empty initial document list
// transitions the chunk CREATED->ACTIVE immediately.
func (s *ChunkService) CreateChunk(ctx context.Context, opts docchunk.CreateChunkOptions) (*docchunk.Chunk, error) {
	capacity := opts.Capacity
	if capacity == 0 {
		capacity = s.config.DefaultCapacity
	}
	if capacity < 0 {
		return nil, docchunk.Errorf(docchunk.EINVALID, "chunk capacity must be positive")
	}

	// De-duplicate initial documents preserving first occurrence.
	docIDs := dedupe(opts.InitialDocs)
	if len(docIDs) > capacity {
		return nil, docchunk.Errorf(docchunk.EINVALID, "%d initial documents exceed capacity %d", len(docIDs), capacity)
	}

	now := time.Now().UTC()
	chunk := &docchunk.Chunk{
		ID:              uuid.New().String(),
		State:           docchunk.StateCreated,
		Capacity:        capacity,
		CurrentSize:     len(docIDs),
		Version:         1,
		DocumentIDs:     docIDs,
		SimilarityGroup: opts.SimilarityGroup,
		Tags:            opts.Tags,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chunks (id, state, capacity, current_size, version, similarity_group, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, chunk.ID, string(chunk.State), chunk.Capacity, chunk.CurrentSize, chunk.Version,
		chunk.SimilarityGroup, joinTags(chunk.Tags), now.Format(time.RFC3339), now.Format(time.RFC3339)); err != nil {
		return nil, err
	}

	for i, docID := range docIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunk_documents (chunk_id, document_id, score, position, added_at)
			VALUES (?, ?, 1.0, ?, ?)
		`, chunk.ID, docID, i, now.Format(time.RFC3339)); err != nil {
			return nil, err
		}
	}

	if err := appendVersion(ctx, tx, chunk.ID, chunk.Version, "created", ""); err != nil {
		return nil, err
	}

	if len(docIDs) > 0 {
		chunk.State = docchunk.StateActive
		chunk.Version++
		if _, err := tx.ExecContext(ctx, `
			UPDATE chunks SET state = ?, version = ?, updated_at = ? WHERE id = ?
		`, string(chunk.State), chunk.Version, now.Format(time.RFC3339), chunk.ID); err != nil {
			return nil, err
		}
		if err := appendVersion(ctx, tx, chunk.ID, chunk.Version, "activated", "initial documents"); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return chunk, nil
}

// GetChunk retrieves a chunk by ID.
func (s *ChunkService) GetChunk(ctx context.Context, id string) (*docchunk.Chunk, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	chunk, err := getChunkTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return chunk, tx.Commit()
}

// FindChunks retrieves chunks matching the filter.
func (s *ChunkService) FindChunks(ctx context.Context, filter docchunk.ChunkFilter) ([]*docchunk.Chunk, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT id FROM chunks WHERE 1=1")

	if filter.ID != nil {
		query.WriteString(" AND id = ?")
		args = append(args, *filter.ID)
	}
	if filter.State != nil {
		query.WriteString(" AND state = ?")
		args = append(args, string(*filter.State))
	}
	if filter.SimilarityGroup != nil {
		query.WriteString(" AND similarity_group = ?")
		args = append(args, *filter.SimilarityGroup)
	}

	query.WriteString(" ORDER BY created_at ASC")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	chunks := make([]*docchunk.Chunk, 0, len(ids))
	for _, id := range ids {
		chunk, err := getChunkTx(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, tx.Commit()
}

// FindChunksByState retrieves all chunks in the given state.
func (s *ChunkService) FindChunksByState(ctx context.Context, state docchunk.ChunkState) ([]*docchunk.Chunk, error) {
	if err := state.Validate(); err != nil {
		return nil, err
	}
	return s.FindChunks(ctx, docchunk.ChunkFilter{State: &state})
}

// UpdateChunkState transitions a chunk to a new state, enforcing the legal
// transition table.
func (s *ChunkService) UpdateChunkState(ctx context.Context, id string, state docchunk.ChunkState, reason string) error {
	if err := state.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	chunk, err := getChunkTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if err := transitionTx(ctx, tx, chunk, state, reason); err != nil {
		return err
	}
	return tx.Commit()
}

// AddDocumentToChunk adds a document to a chunk. Missing chunks, chunks
// outside CREATED/ACTIVE, and chunks at capacity report false; duplicate
// adds are idempotent and report true.
func (s *ChunkService) AddDocumentToChunk(ctx context.Context, chunkID, docID string, score float64) (bool, error) {
	if docID == "" {
		return false, docchunk.Errorf(docchunk.EINVALID, "document ID required")
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	chunk, err := getChunkTx(ctx, tx, chunkID)
	if docchunk.ErrorCode(err) == docchunk.ENOTFOUND {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if chunk.State != docchunk.StateCreated && chunk.State != docchunk.StateActive {
		return false, nil
	}
	if chunk.HasDocument(docID) {
		return true, nil
	}
	if chunk.CurrentSize >= chunk.Capacity {
		return false, nil
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chunk_documents (chunk_id, document_id, score, position, added_at)
		VALUES (?, ?, ?, ?, ?)
	`, chunk.ID, docID, score, chunk.CurrentSize, now.Format(time.RFC3339)); err != nil {
		return false, err
	}

	chunk.CurrentSize++
	chunk.Version++
	if _, err := tx.ExecContext(ctx, `
		UPDATE chunks SET current_size = ?, version = ?, updated_at = ? WHERE id = ?
	`, chunk.CurrentSize, chunk.Version, now.Format(time.RFC3339), chunk.ID); err != nil {
		return false, err
	}
	if err := appendVersion(ctx, tx, chunk.ID, chunk.Version, "document_added", docID); err != nil {
		return false, err
	}

	// A chunk still in CREATED activates on its first document, then the
	// fill check may immediately promote it to FULL.
	if chunk.State == docchunk.StateCreated {
		if err := transitionTx(ctx, tx, chunk, docchunk.StateActive, "first document"); err != nil {
			return false, err
		}
	}
	if chunk.FillRatio() >= s.config.SplitThreshold {
		if err := transitionTx(ctx, tx, chunk, docchunk.StateFull, "split threshold reached"); err != nil {
			return false, err
		}
	}

	return true, tx.Commit()
}

// RemoveDocumentFromChunk removes a document from a chunk. Chunks outside
// ACTIVE/FULL/STALE and non-member documents report false.
func (s *ChunkService) RemoveDocumentFromChunk(ctx context.Context, chunkID, docID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	chunk, err := getChunkTx(ctx, tx, chunkID)
	if docchunk.ErrorCode(err) == docchunk.ENOTFOUND {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	switch chunk.State {
	case docchunk.StateActive, docchunk.StateFull, docchunk.StateStale:
	default:
		return false, nil
	}
	if !chunk.HasDocument(docID) {
		return false, nil
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chunk_documents WHERE chunk_id = ? AND document_id = ?
	`, chunk.ID, docID); err != nil {
		return false, err
	}

	wasFull := chunk.State == docchunk.StateFull
	chunk.CurrentSize--
	chunk.Version++
	if _, err := tx.ExecContext(ctx, `
		UPDATE chunks SET current_size = ?, version = ?, updated_at = ? WHERE id = ?
	`, chunk.CurrentSize, chunk.Version, now.Format(time.RFC3339), chunk.ID); err != nil {
		return false, err
	}
	if err := appendVersion(ctx, tx, chunk.ID, chunk.Version, "document_removed", docID); err != nil {
		return false, err
	}

	if wasFull && chunk.FillRatio() <= s.config.MergeThreshold {
		if err := transitionTx(ctx, tx, chunk, docchunk.StateActive, "merge threshold reached"); err != nil {
			return false, err
		}
	}

	return true, tx.Commit()
}

// SplitChunk splits a FULL chunk into two children.
func (s *ChunkService) SplitChunk(ctx context.Context, id string, cluster docchunk.ClusterFunc) ([]*docchunk.Chunk, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	chunk, err := getChunkTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if chunk.State != docchunk.StateFull {
		return nil, docchunk.Errorf(docchunk.EINVALID, "cannot split chunk in state %q", string(chunk.State))
	}

	if err := transitionTx(ctx, tx, chunk, docchunk.StateSplitting, "split requested"); err != nil {
		return nil, err
	}

	groups := splitMidpoint(chunk.DocumentIDs)
	if cluster != nil && len(chunk.DocumentIDs) > 2 {
		// Clustering failures fall back to the midpoint split.
		if clustered, err := cluster(ctx, chunk.DocumentIDs); err == nil && len(clustered) == 2 &&
			len(clustered[0]) > 0 && len(clustered[1]) > 0 {
			groups = clustered
		}
	}

	now := time.Now().UTC()
	children := make([]*docchunk.Chunk, 0, 2)
	for _, group := range groups {
		// A skewed cluster partition can outgrow half the parent capacity;
		// each child is sized to hold its own group.
		child := &docchunk.Chunk{
			ID:              uuid.New().String(),
			State:           docchunk.StateActive,
			Capacity:        max(5, chunk.Capacity/2, len(group)),
			CurrentSize:     len(group),
			Version:         1,
			ParentIDs:       []string{chunk.ID},
			DocumentIDs:     group,
			SimilarityGroup: chunk.SimilarityGroup,
			Tags:            chunk.Tags,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := insertChunkTx(ctx, tx, child, "created from split"); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunk_relationships (parent_id, child_id, relation, created_at)
			VALUES (?, ?, 'split', ?)
		`, chunk.ID, child.ID, now.Format(time.RFC3339)); err != nil {
			return nil, err
		}
		chunk.ChildIDs = append(chunk.ChildIDs, child.ID)
		children = append(children, child)
	}

	if err := transitionTx(ctx, tx, chunk, docchunk.StateArchived, "split complete"); err != nil {
		return nil, err
	}

	return children, tx.Commit()
}

// MergeChunks merges two or more chunks into a new chunk.
func (s *ChunkService) MergeChunks(ctx context.Context, ids []string) (*docchunk.Chunk, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Collect chunks eligible for merging; missing chunks and chunks that
	// cannot legally enter MERGING are skipped rather than failing the
	// whole merge.
	var sources []*docchunk.Chunk
	for _, id := range ids {
		chunk, err := getChunkTx(ctx, tx, id)
		if docchunk.ErrorCode(err) == docchunk.ENOTFOUND {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !chunk.State.CanTransition(docchunk.StateMerging) {
			continue
		}
		sources = append(sources, chunk)
	}
	if len(sources) < 2 {
		return nil, docchunk.Errorf(docchunk.EINVALID, "merge requires at least 2 eligible chunks, have %d", len(sources))
	}

	capacity := 0
	var docIDs []string
	var parentIDs []string
	for _, src := range sources {
		if err := transitionTx(ctx, tx, src, docchunk.StateMerging, "merge requested"); err != nil {
			return nil, err
		}
		capacity += src.Capacity
		docIDs = append(docIDs, src.DocumentIDs...)
		parentIDs = append(parentIDs, src.ID)
	}
	docIDs = dedupe(docIDs)

	tags := sources[0].Tags
	for _, src := range sources[1:] {
		tags = intersectTags(tags, src.Tags)
	}

	now := time.Now().UTC()
	merged := &docchunk.Chunk{
		ID:              uuid.New().String(),
		State:           docchunk.StateActive,
		Capacity:        capacity,
		CurrentSize:     len(docIDs),
		Version:         1,
		ParentIDs:       parentIDs,
		DocumentIDs:     docIDs,
		SimilarityGroup: sources[0].SimilarityGroup,
		Tags:            tags,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := insertChunkTx(ctx, tx, merged, "created from merge"); err != nil {
		return nil, err
	}

	for _, src := range sources {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunk_relationships (parent_id, child_id, relation, created_at)
			VALUES (?, ?, 'merge', ?)
		`, src.ID, merged.ID, now.Format(time.RFC3339)); err != nil {
			return nil, err
		}
		if err := transitionTx(ctx, tx, src, docchunk.StateArchived, "merge complete"); err != nil {
			return nil, err
		}
	}

	return merged, tx.Commit()
}

// GetChunkVersions returns a chunk's version history, oldest first.
func (s *ChunkService) GetChunkVersions(ctx context.Context, id string) ([]*docchunk.ChunkVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, version, action, reason, created_at
		FROM chunk_versions
		WHERE chunk_id = ?
		ORDER BY version ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*docchunk.ChunkVersion
	for rows.Next() {
		var v docchunk.ChunkVersion
		var createdAt string
		if err := rows.Scan(&v.ChunkID, &v.Version, &v.Action, &v.Reason, &createdAt); err != nil {
			return nil, err
		}
		if v.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
			return nil, err
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

// GetChunkRelationships returns the split/merge edges touching a chunk,
// as parent or as child, oldest first.
func (s *ChunkService) GetChunkRelationships(ctx context.Context, id string) ([]*docchunk.ChunkRelationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT parent_id, child_id, relation, created_at
		FROM chunk_relationships
		WHERE parent_id = ? OR child_id = ?
		ORDER BY created_at ASC
	`, id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []*docchunk.ChunkRelationship
	for rows.Next() {
		var r docchunk.ChunkRelationship
		var createdAt string
		if err := rows.Scan(&r.ParentID, &r.ChildID, &r.Relation, &createdAt); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
			return nil, err
		}
		rels = append(rels, &r)
	}
	return rels, rows.Err()
}

// MarkStaleChunks transitions ACTIVE and FULL chunks not updated within
// maxAge to STALE, one transaction per chunk so one bad row cannot stall
// the sweep.
func (s *ChunkService) MarkStaleChunks(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM chunks WHERE state IN (?, ?) AND updated_at < ?
	`, string(docchunk.StateActive), string(docchunk.StateFull), cutoff.Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	marked := 0
	for _, id := range ids {
		if err := s.UpdateChunkState(ctx, id, docchunk.StateStale, "no updates within retention window"); err != nil {
			return marked, err
		}
		marked++
	}
	return marked, nil
}

// GetChunkContent returns cached aggregate content for a chunk,
// regenerating it from the current members when absent.
func (s *ChunkService) GetChunkContent(ctx context.Context, id string) (*docchunk.ChunkContent, error) {
	if s.content != nil {
		if raw, err := s.content.Load(id); err == nil {
			var content docchunk.ChunkContent
			if err := json.Unmarshal(raw, &content); err == nil {
				return &content, nil
			}
			// Corrupt cache entries are dropped and regenerated.
			_ = s.content.Delete(id)
		}
	}

	if s.docs == nil {
		return nil, docchunk.Errorf(docchunk.EINTERNAL, "no document source configured for content regeneration")
	}

	chunk, err := s.GetChunk(ctx, id)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for i, docID := range chunk.DocumentIDs {
		doc, err := s.docs.GetDocument(ctx, docID)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		if doc.Title != "" {
			b.WriteString("# ")
			b.WriteString(doc.Title)
			b.WriteString("\n\n")
		}
		b.WriteString(doc.Content)
	}

	content := &docchunk.ChunkContent{
		ChunkID:     chunk.ID,
		Content:     b.String(),
		ContentHash: hashContent(b.String()),
		DocumentIDs: chunk.DocumentIDs,
		GeneratedAt: time.Now().UTC(),
	}

	if s.content != nil {
		if raw, err := json.Marshal(content); err == nil {
			_ = s.content.Save(id, raw)
		}
	}

	return content, nil
}

// RunGarbageCollection permanently removes chunks left in DELETED state
// past the retention period, cascading to history, relationships,
// assignment rows and cached content.
func (s *ChunkService) RunGarbageCollection(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.config.Retention)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM chunks WHERE state = ? AND updated_at < ?
	`, string(docchunk.StateDeleted), cutoff.Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	ph := placeholders(len(ids))

	// chunk_documents and chunk_versions cascade via foreign keys.
	doubled := append(append([]any{}, args...), args...)
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunk_relationships WHERE parent_id IN ("+ph+") OR child_id IN ("+ph+")", doubled...); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM assignments WHERE chunk_id IN ("+ph+")", args...); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunks WHERE id IN ("+ph+")", args...); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	if s.content != nil {
		for _, id := range ids {
			_ = s.content.Delete(id)
		}
	}

	return len(ids), nil
}

// getChunkTx loads a chunk with members and relationships inside a transaction.
func getChunkTx(ctx context.Context, tx *sql.Tx, id string) (*docchunk.Chunk, error) {
	var chunk docchunk.Chunk
	var state, tags, createdAt, updatedAt string

	err := tx.QueryRowContext(ctx, `
		SELECT id, state, capacity, current_size, version, similarity_group, tags, created_at, updated_at
		FROM chunks
		WHERE id = ?
	`, id).Scan(&chunk.ID, &state, &chunk.Capacity, &chunk.CurrentSize, &chunk.Version,
		&chunk.SimilarityGroup, &tags, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, docchunk.Errorf(docchunk.ENOTFOUND, "chunk %q not found", id)
	}
	if err != nil {
		return nil, err
	}

	chunk.State = docchunk.ChunkState(state)
	chunk.Tags = splitTags(tags)
	if chunk.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if chunk.UpdatedAt, err = parseRFC3339(updatedAt, "updated_at"); err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT document_id FROM chunk_documents WHERE chunk_id = ? ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var docID string
		if err := rows.Scan(&docID); err != nil {
			rows.Close()
			return nil, err
		}
		chunk.DocumentIDs = append(chunk.DocumentIDs, docID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if chunk.ParentIDs, err = relatedIDs(ctx, tx, "SELECT parent_id FROM chunk_relationships WHERE child_id = ? ORDER BY created_at ASC", id); err != nil {
		return nil, err
	}
	if chunk.ChildIDs, err = relatedIDs(ctx, tx, "SELECT child_id FROM chunk_relationships WHERE parent_id = ? ORDER BY created_at ASC", id); err != nil {
		return nil, err
	}

	return &chunk, nil
}

func relatedIDs(ctx context.Context, tx *sql.Tx, query, id string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var related string
		if err := rows.Scan(&related); err != nil {
			return nil, err
		}
		ids = append(ids, related)
	}
	return ids, rows.Err()
}

// insertChunkTx inserts a chunk with its members and an initial version row.
func insertChunkTx(ctx context.Context, tx *sql.Tx, chunk *docchunk.Chunk, reason string) error {
	now := chunk.CreatedAt
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chunks (id, state, capacity, current_size, version, similarity_group, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, chunk.ID, string(chunk.State), chunk.Capacity, chunk.CurrentSize, chunk.Version,
		chunk.SimilarityGroup, joinTags(chunk.Tags), now.Format(time.RFC3339), now.Format(time.RFC3339)); err != nil {
		return err
	}
	for i, docID := range chunk.DocumentIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunk_documents (chunk_id, document_id, score, position, added_at)
			VALUES (?, ?, 1.0, ?, ?)
		`, chunk.ID, docID, i, now.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return appendVersion(ctx, tx, chunk.ID, chunk.Version, "created", reason)
}

// transitionTx applies a state transition, enforcing legality and bumping
// the version.
func transitionTx(ctx context.Context, tx *sql.Tx, chunk *docchunk.Chunk, state docchunk.ChunkState, reason string) error {
	if !chunk.State.CanTransition(state) {
		return docchunk.Errorf(docchunk.EINVALID, "illegal chunk state transition %s -> %s", string(chunk.State), string(state))
	}

	now := time.Now().UTC()
	chunk.State = state
	chunk.Version++
	chunk.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, `
		UPDATE chunks SET state = ?, version = ?, updated_at = ? WHERE id = ?
	`, string(state), chunk.Version, now.Format(time.RFC3339), chunk.ID); err != nil {
		return err
	}
	return appendVersion(ctx, tx, chunk.ID, chunk.Version, "state_"+string(state), reason)
}

func appendVersion(ctx context.Context, tx *sql.Tx, chunkID string, version int, action, reason string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO chunk_versions (chunk_id, version, action, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, chunkID, version, action, reason, time.Now().UTC().Format(time.RFC3339))
	return err
}

// dedupe removes duplicates preserving first occurrence.
func dedupe(ids []string) []string {
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

// splitMidpoint splits a document list into two halves.
func splitMidpoint(ids []string) [][]string {
	mid := len(ids) / 2
	a := make([]string, mid)
	b := make([]string, len(ids)-mid)
	copy(a, ids[:mid])
	copy(b, ids[mid:])
	return [][]string{a, b}
}

// intersectTags returns tags present in both lists, preserving the order
// of the first.
func intersectTags(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, t := range b {
		set[t] = struct{}{}
	}
	var out []string
	for _, t := range a {
		if _, ok := set[t]; ok {
			out = append(out, t)
		}
	}
	return out
}
