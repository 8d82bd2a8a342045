package main

import (
	"fmt"
	"sort"

	"github.com/fwojciec/docchunk"
)

// Run executes the bulk-assign command.
func (c *BulkAssignCmd) Run(deps *Dependencies) error {
	results, err := deps.Engine.BulkAssignDocuments(deps.Ctx, c.DocIDs, docchunk.Strategy(c.Strategy), nil)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", docchunk.ErrorMessage(err))
		return err
	}

	docIDs := make([]string, 0, len(results))
	for docID := range results {
		docIDs = append(docIDs, docID)
	}
	sort.Strings(docIDs)

	assigned := 0
	for _, docID := range docIDs {
		a := results[docID]
		if a.Status == docchunk.StatusFailed {
			fmt.Fprintf(deps.Stdout, "failed: %s\n", docID)
			continue
		}
		fmt.Fprintf(deps.Stdout, "%s -> %s  score=%.3f\n", a.DocumentID, a.ChunkID, a.Score)
		assigned++
	}
	fmt.Fprintf(deps.Stdout, "%d of %d documents assigned\n", assigned, len(results))
	return nil
}
