package fs

import (
	"context"
	"encoding/json"
	"os"

	"github.com/fwojciec/docchunk"
)

// Ensure DocumentSource implements docchunk.DocumentSource at compile time.
var _ docchunk.DocumentSource = (*DocumentSource)(nil)

// DocumentSource serves documents loaded from a JSON file holding an array
// of documents. The whole corpus is read once at construction; lookups are
// in-memory afterwards.
type DocumentSource struct {
	docs map[string]*docchunk.Document
}

// NewDocumentSource loads documents from the JSON file at path.
func NewDocumentSource(path string) (*DocumentSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var docs []*docchunk.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, docchunk.Errorf(docchunk.EINVALID, "invalid document file %q: %s", path, err)
	}

	byID := make(map[string]*docchunk.Document, len(docs))
	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			return nil, err
		}
		byID[doc.ID] = doc
	}
	return &DocumentSource{docs: byID}, nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentSource) GetDocument(_ context.Context, id string) (*docchunk.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, docchunk.Errorf(docchunk.ENOTFOUND, "document %q not found", id)
	}
	return doc, nil
}

// IDs returns all loaded document IDs.
func (s *DocumentSource) IDs() []string {
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	return ids
}
