package mock

import (
	"context"

	"github.com/fwojciec/docchunk"
)

var _ docchunk.DocumentSource = (*DocumentSource)(nil)

// DocumentSource is a mock implementation of docchunk.DocumentSource.
type DocumentSource struct {
	GetDocumentFn func(ctx context.Context, id string) (*docchunk.Document, error)
}

func (s *DocumentSource) GetDocument(ctx context.Context, id string) (*docchunk.Document, error) {
	return s.GetDocumentFn(ctx, id)
}
