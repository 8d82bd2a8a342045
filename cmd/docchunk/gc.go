package main

import (
	"fmt"

	"github.com/fwojciec/docchunk"
)

// Run executes the gc command: mark idle chunks stale, then remove
// expired deleted chunks.
func (c *GCCmd) Run(deps *Dependencies) error {
	marked, err := deps.Chunks.MarkStaleChunks(deps.Ctx, docchunk.DefaultRetentionPeriod)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", docchunk.ErrorMessage(err))
		return err
	}

	count, err := deps.Chunks.RunGarbageCollection(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", docchunk.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "%d chunks marked stale, %d chunks removed\n", marked, count)
	return nil
}
