package main

import (
	"fmt"

	"github.com/fwojciec/docchunk"
)

// Run executes the assign command.
func (c *AssignCmd) Run(deps *Dependencies) error {
	a, err := deps.Engine.AssignDocument(deps.Ctx, c.DocID, docchunk.Strategy(c.Strategy), c.Target, nil)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", docchunk.ErrorMessage(err))
		return err
	}

	if a.Status == docchunk.StatusFailed {
		fmt.Fprintf(deps.Stdout, "failed: %s (%s)\n", c.DocID, a.ConflictDetail)
		return nil
	}

	fmt.Fprintf(deps.Stdout, "%s -> %s  score=%.3f  strategy=%s\n", a.DocumentID, a.ChunkID, a.Score, a.Strategy)
	return nil
}
