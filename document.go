package docchunk

import (
	"context"
	"sync"
	"time"
)

// Document represents a unit of source material to be grouped into chunks.
// Documents are produced outside this module (by a crawler, a repository
// parser, or an LLM pipeline); the engines here only consume their text
// content and metadata.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Validate returns an error if the document contains invalid fields.
func (d *Document) Validate() error {
	if d.ID == "" {
		return Errorf(EINVALID, "document ID required")
	}
	return nil
}

// DocumentSource supplies document content and metadata on demand.
// Implementations hide where documents actually live (a database, the
// filesystem, a remote API).
type DocumentSource interface {
	// GetDocument retrieves a document by ID.
	// Returns ENOTFOUND if the document does not exist.
	GetDocument(ctx context.Context, id string) (*Document, error)
}

// CachingSource wraps a DocumentSource with a per-instance memoizing cache.
// Engines resolve the same documents repeatedly (matrix builds, repeated
// scoring passes), so lookups are cached for the lifetime of the wrapper.
// Safe for concurrent use.
type CachingSource struct {
	source DocumentSource

	mu    sync.Mutex
	cache map[string]*Document
}

var _ DocumentSource = (*CachingSource)(nil)

// NewCachingSource creates a CachingSource wrapping the given source.
func NewCachingSource(source DocumentSource) *CachingSource {
	return &CachingSource{
		source: source,
		cache:  make(map[string]*Document),
	}
}

// GetDocument returns the cached document or resolves it via the wrapped
// source. Errors are not cached.
func (s *CachingSource) GetDocument(ctx context.Context, id string) (*Document, error) {
	s.mu.Lock()
	doc, ok := s.cache[id]
	s.mu.Unlock()
	if ok {
		return doc, nil
	}

	doc, err := s.source.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[id] = doc
	s.mu.Unlock()

	return doc, nil
}

// Invalidate removes the given document IDs from the cache. With no
// arguments the entire cache is dropped.
func (s *CachingSource) Invalidate(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(ids) == 0 {
		s.cache = make(map[string]*Document)
		return
	}
	for _, id := range ids {
		delete(s.cache, id)
	}
}
