package main

import (
	"fmt"

	"github.com/fwojciec/docchunk"
)

// Run executes the optimize command.
func (c *OptimizeCmd) Run(deps *Dependencies) error {
	stats, err := deps.Engine.OptimizeAssignments(deps.Ctx, c.Chunks, docchunk.Strategy(c.Strategy))
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", docchunk.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "considered %d documents: %d reassigned, %d unchanged, %d failed\n",
		stats.DocumentsConsidered, stats.Reassigned, stats.Unchanged, stats.Failed)
	return nil
}
