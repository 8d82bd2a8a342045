package docchunk

import (
	"context"
	"time"
)

// Default chunk store configuration values.
const (
	DefaultChunkCapacity   = 50
	DefaultSplitThreshold  = 0.9
	DefaultMergeThreshold  = 0.3
	DefaultRetentionPeriod = 30 * 24 * time.Hour
)

// ChunkState represents a chunk's position in its lifecycle.
type ChunkState string

// Chunk lifecycle states.
const (
	StateCreated   ChunkState = "created"
	StateActive    ChunkState = "active"
	StateFull      ChunkState = "full"
	StateStale     ChunkState = "stale"
	StateSplitting ChunkState = "splitting"
	StateMerging   ChunkState = "merging"
	StateArchived  ChunkState = "archived"
	StateDeleted   ChunkState = "deleted"
)

// legalTransitions is the closed set of allowed state transitions.
// DELETED is terminal.
var legalTransitions = map[ChunkState][]ChunkState{
	StateCreated:   {StateActive},
	StateActive:    {StateFull, StateStale, StateArchived, StateMerging},
	StateFull:      {StateSplitting, StateStale, StateActive},
	StateStale:     {StateActive, StateArchived},
	StateSplitting: {StateActive, StateArchived},
	StateMerging:   {StateActive, StateArchived},
	StateArchived:  {StateActive, StateDeleted},
	StateDeleted:   {},
}

// Validate returns an error if the state is not a known lifecycle state.
func (s ChunkState) Validate() error {
	if _, ok := legalTransitions[s]; !ok {
		return Errorf(EINVALID, "unknown chunk state %q", string(s))
	}
	return nil
}

// CanTransition reports whether a transition from s to next is legal.
func (s ChunkState) CanTransition(next ChunkState) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Chunk is a capacity-bounded container of document references.
type Chunk struct {
	ID              string     `json:"id"`
	State           ChunkState `json:"state"`
	Capacity        int        `json:"capacity"`
	CurrentSize     int        `json:"currentSize"`
	Version         int        `json:"version"`
	ParentIDs       []string   `json:"parentIds,omitempty"`
	ChildIDs        []string   `json:"childIds,omitempty"`
	DocumentIDs     []string   `json:"documentIds,omitempty"`
	SimilarityGroup string     `json:"similarityGroup,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Validate returns an error if the chunk violates its structural invariants.
func (c *Chunk) Validate() error {
	if err := c.State.Validate(); err != nil {
		return err
	}
	if c.Capacity <= 0 {
		return Errorf(EINVALID, "chunk capacity must be positive")
	}
	if c.CurrentSize != len(c.DocumentIDs) {
		return Errorf(EINVALID, "chunk size %d does not match %d member documents", c.CurrentSize, len(c.DocumentIDs))
	}
	return nil
}

// FillRatio returns CurrentSize/Capacity.
func (c *Chunk) FillRatio() float64 {
	if c.Capacity == 0 {
		return 0
	}
	return float64(c.CurrentSize) / float64(c.Capacity)
}

// HasDocument reports whether the document is a member of the chunk.
func (c *Chunk) HasDocument(docID string) bool {
	for _, id := range c.DocumentIDs {
		if id == docID {
			return true
		}
	}
	return false
}

// ChunkVersion is one entry in a chunk's append-only version history.
type ChunkVersion struct {
	ChunkID   string    `json:"chunkId"`
	Version   int       `json:"version"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChunkRelationship records a parent/child edge created by a split or
// merge, keyed by the relation kind ("split" or "merge").
type ChunkRelationship struct {
	ParentID  string    `json:"parentId"`
	ChildID   string    `json:"childId"`
	Relation  string    `json:"relation"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChunkContent is the aggregated text content of a chunk's members,
// handed off to downstream formatting and generation code.
type ChunkContent struct {
	ChunkID     string    `json:"chunkId"`
	Content     string    `json:"content"`
	ContentHash string    `json:"contentHash"`
	DocumentIDs []string  `json:"documentIds"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// ChunkFilter represents a filter for FindChunks.
type ChunkFilter struct {
	ID              *string     `json:"id"`
	State           *ChunkState `json:"state"`
	SimilarityGroup *string     `json:"similarityGroup"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// CreateChunkOptions configures chunk creation. The zero value uses the
// store's configured defaults.
type CreateChunkOptions struct {
	InitialDocs     []string
	Capacity        int // 0 means the configured default
	Tags            []string
	SimilarityGroup string
}

// ClusterFunc partitions documents into two groups by similarity. It is
// supplied by the similarity engine to SplitChunk; when nil, chunks split
// at the midpoint of their member list.
type ClusterFunc func(ctx context.Context, docIDs []string) ([][]string, error)

// ChunkService owns chunk mutation exclusively. The assignment engine
// always calls into it rather than editing member lists directly.
//
// Structural violations (unknown chunk, illegal state transition) are
// returned as errors; membership and capacity conditions (full chunk,
// duplicate add, missing member) are soft failures reported through the
// boolean result so bulk callers can branch without error handling.
type ChunkService interface {
	// CreateChunk creates a new chunk. If opts.InitialDocs is non-empty the
	// chunk transitions CREATED->ACTIVE immediately.
	CreateChunk(ctx context.Context, opts CreateChunkOptions) (*Chunk, error)

	// GetChunk retrieves a chunk by ID.
	// Returns ENOTFOUND if the chunk does not exist.
	GetChunk(ctx context.Context, id string) (*Chunk, error)

	// FindChunks retrieves chunks matching the filter.
	FindChunks(ctx context.Context, filter ChunkFilter) ([]*Chunk, error)

	// FindChunksByState retrieves all chunks in the given state.
	FindChunksByState(ctx context.Context, state ChunkState) ([]*Chunk, error)

	// UpdateChunkState transitions a chunk to a new state. Returns EINVALID
	// if the transition is not in the legal transition table. On success the
	// chunk's version is incremented and a version record is appended.
	UpdateChunkState(ctx context.Context, id string, state ChunkState, reason string) error

	// AddDocumentToChunk adds a document to a chunk. Returns false without
	// error if the chunk is missing, not in CREATED/ACTIVE state, or at
	// capacity. Returns true without mutating if the document is already a
	// member. Crossing the split threshold transitions the chunk to FULL.
	AddDocumentToChunk(ctx context.Context, chunkID, docID string, score float64) (bool, error)

	// RemoveDocumentFromChunk removes a document from a chunk. Returns false
	// without error if the chunk is not in ACTIVE/FULL/STALE state or the
	// document is not a member. Falling to or below the merge threshold
	// demotes a FULL chunk back to ACTIVE.
	RemoveDocumentFromChunk(ctx context.Context, chunkID, docID string) (bool, error)

	// SplitChunk splits a FULL chunk into two children, clustering members
	// by similarity when a ClusterFunc is supplied and the chunk holds more
	// than two documents, otherwise splitting at the midpoint. The source is
	// archived with the children recorded.
	SplitChunk(ctx context.Context, id string, cluster ClusterFunc) ([]*Chunk, error)

	// MergeChunks merges two or more chunks into a new chunk whose capacity
	// is the sum of the constituents and whose document set is the
	// de-duplicated union. The inputs are archived.
	MergeChunks(ctx context.Context, ids []string) (*Chunk, error)

	// GetChunkVersions returns a chunk's version history, oldest first.
	GetChunkVersions(ctx context.Context, id string) ([]*ChunkVersion, error)

	// GetChunkRelationships returns the split/merge edges touching a chunk,
	// as parent or as child, oldest first.
	GetChunkRelationships(ctx context.Context, id string) ([]*ChunkRelationship, error)

	// MarkStaleChunks transitions ACTIVE and FULL chunks not updated within
	// maxAge to STALE. Returns the number of chunks transitioned.
	MarkStaleChunks(ctx context.Context, maxAge time.Duration) (int, error)

	// GetChunkContent returns the cached aggregate content for a chunk,
	// regenerating and caching it from the current members when absent.
	GetChunkContent(ctx context.Context, id string) (*ChunkContent, error)

	// RunGarbageCollection permanently deletes chunks that have been in
	// DELETED state longer than the retention period, cascading to version
	// history, relationships, memberships and cached content. Returns the
	// number of chunks removed.
	RunGarbageCollection(ctx context.Context) (int, error)
}

// ContentStore persists compressed aggregate chunk content, addressed by
// key. Implementations hide the storage medium and compression codec.
type ContentStore interface {
	// Save stores content under the given key, replacing any previous value.
	Save(key string, content []byte) error

	// Load retrieves content by key.
	// Returns ENOTFOUND if no content is stored under the key.
	Load(key string) ([]byte, error)

	// Delete removes content by key. Deleting a missing key is not an error.
	Delete(key string) error
}
