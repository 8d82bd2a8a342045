// Package bloom provides document-ID deduplication using Bloom filters.
// The assignment engine uses a filter to skip ledger lookups for documents
// it has definitely never assigned.
package bloom

import "github.com/bits-and-blooms/bloom/v3"

// Filter wraps a Bloom filter for document-ID deduplication.
type Filter struct {
	f *bloom.BloomFilter
}

// NewFilter creates a new Bloom filter sized for n expected items
// with the given false positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	return &Filter{
		f: bloom.NewWithEstimates(n, fpRate),
	}
}

// Add adds a document ID to the filter.
func (f *Filter) Add(docID string) {
	f.f.AddString(docID)
}

// Test returns true if the document ID might be in the filter.
// False positives are possible; false negatives are not.
func (f *Filter) Test(docID string) bool {
	return f.f.TestString(docID)
}

// EstimatedCount returns the approximate number of items in the filter.
func (f *Filter) EstimatedCount() uint {
	return uint(f.f.ApproximatedSize())
}
