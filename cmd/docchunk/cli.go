package main

import (
	"context"
	"io"

	"github.com/fwojciec/docchunk"
	"github.com/fwojciec/docchunk/assign"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx         context.Context
	Stdout      io.Writer
	Stderr      io.Writer
	Chunks      docchunk.ChunkService
	Assignments docchunk.AssignmentService
	Similarity  docchunk.SimilarityService
	Engine      *assign.Engine
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	DB      string `help:"Database path" env:"DOCCHUNK_DB"`
	Docs    string `help:"Path to a JSON document corpus file"`
	Verbose bool   `short:"v" help:"Log chunk operations to stderr"`

	Assign     AssignCmd     `cmd:"" help:"Assign a document to a chunk"`
	BulkAssign BulkAssignCmd `cmd:"" name:"bulk-assign" help:"Assign many documents in one pass"`
	Optimize   OptimizeCmd   `cmd:"" help:"Rebalance document-to-chunk assignments"`
	Conflicts  ConflictsCmd  `cmd:"" help:"Detect and resolve assignment conflicts"`
	GC         GCCmd         `cmd:"" help:"Remove expired deleted chunks"`
	Stats      StatsCmd      `cmd:"" help:"Show assignment ledger statistics"`
}

// AssignCmd is the "assign" subcommand.
type AssignCmd struct {
	DocID    string `arg:"" help:"Document ID to assign"`
	Strategy string `help:"Assignment strategy (similarity, balanced, hybrid, metadata, manual)"`
	Target   string `help:"Target chunk ID (required for the manual strategy)"`
}

// BulkAssignCmd is the "bulk-assign" subcommand.
type BulkAssignCmd struct {
	DocIDs   []string `arg:"" help:"Document IDs to assign"`
	Strategy string   `help:"Assignment strategy (similarity, balanced, hybrid, metadata)"`
}

// OptimizeCmd is the "optimize" subcommand.
type OptimizeCmd struct {
	Chunks   []string `help:"Target chunk IDs (default: all active and full chunks)"`
	Strategy string   `help:"Optimization strategy (similarity, balanced, hybrid)"`
}

// ConflictsCmd groups the conflict subcommands.
type ConflictsCmd struct {
	Detect  DetectCmd  `cmd:"" help:"Detect near-equal competing assignments"`
	Resolve ResolveCmd `cmd:"" help:"Resolve unresolved conflicts"`
}

// DetectCmd is the "conflicts detect" subcommand.
type DetectCmd struct {
	Threshold float64 `default:"-1" help:"Score difference below which two assignments conflict"`
}

// ResolveCmd is the "conflicts resolve" subcommand.
type ResolveCmd struct {
	Strategy string `help:"Resolution strategy (similarity, balanced, hybrid)"`
}

// GCCmd is the "gc" subcommand.
type GCCmd struct{}

// StatsCmd is the "stats" subcommand.
type StatsCmd struct{}
