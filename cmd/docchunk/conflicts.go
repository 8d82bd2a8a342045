package main

import (
	"fmt"

	"github.com/fwojciec/docchunk"
)

// Run executes the conflicts detect command.
func (c *DetectCmd) Run(deps *Dependencies) error {
	conflicts, err := deps.Engine.DetectConflicts(deps.Ctx, c.Threshold)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", docchunk.ErrorMessage(err))
		return err
	}

	if len(conflicts) == 0 {
		fmt.Fprintln(deps.Stdout, "No conflicts detected.")
		return nil
	}

	for _, conflict := range conflicts {
		fmt.Fprintf(deps.Stdout, "%s  %s (%.3f) vs %s (%.3f)\n",
			conflict.DocumentID,
			conflict.PrimaryChunkID, conflict.PrimaryScore,
			conflict.SecondaryChunkID, conflict.SecondaryScore)
	}
	fmt.Fprintf(deps.Stdout, "%d conflicts detected\n", len(conflicts))
	return nil
}

// Run executes the conflicts resolve command.
func (c *ResolveCmd) Run(deps *Dependencies) error {
	stats, err := deps.Engine.ResolveConflicts(deps.Ctx, nil, docchunk.Strategy(c.Strategy))
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", docchunk.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "%d conflicts resolved (%d kept primary, %d kept secondary)\n",
		stats.Resolved, stats.KeptPrimary, stats.KeptSecondary)
	return nil
}
