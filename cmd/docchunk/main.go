package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/docchunk"
	"github.com/fwojciec/docchunk/assign"
	"github.com/fwojciec/docchunk/fs"
	"github.com/fwojciec/docchunk/gemini"
	"github.com/fwojciec/docchunk/similarity"
	dslog "github.com/fwojciec/docchunk/slog"
	"github.com/fwojciec/docchunk/sqlite"
	"google.golang.org/genai"
)

func main() {
	ctx := context.Background()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Database path. Set before calling Run().
	DBPath string

	// SQLite database used by SQLite service implementations.
	DB *sqlite.DB

	// Services for end-to-end testing.
	ChunkService      docchunk.ChunkService
	AssignmentService docchunk.AssignmentService
	SimilarityService docchunk.SimilarityService
	Engine            *assign.Engine
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		DBPath: defaultDBPath(),
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("docchunk"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'docchunk --help' to see available commands")
	}
	if cmd := args[0]; cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	if cli.DB != "" {
		m.DBPath = cli.DB
	}

	m.DB = sqlite.NewDB(m.DBPath)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintf(stderr, "Hint: Set DOCCHUNK_DB to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", m.DBPath, err)
	}
	defer m.Close()

	content, err := fs.NewContentStore(filepath.Join(filepath.Dir(m.DBPath), "content"))
	if err != nil {
		return fmt.Errorf("failed to open content store: %w", err)
	}

	var source docchunk.DocumentSource
	if cli.Docs != "" {
		source, err = fs.NewDocumentSource(cli.Docs)
		if err != nil {
			return fmt.Errorf("failed to load documents from %q: %w", cli.Docs, err)
		}
	}

	chunkOpts := []sqlite.ChunkOption{sqlite.WithContentStore(content)}
	if source != nil {
		chunkOpts = append(chunkOpts, sqlite.WithDocumentSource(source))
	}
	m.ChunkService = sqlite.NewChunkService(m.DB, chunkOpts...)
	m.AssignmentService = sqlite.NewAssignmentService(m.DB)

	if cli.Verbose {
		logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		m.ChunkService = dslog.NewLoggingChunkService(m.ChunkService, logger)
	}

	simOpts := []similarity.Option{
		similarity.WithStore(sqlite.NewSimilarityService(m.DB)),
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			fmt.Fprintln(stderr, "Hint: Check your GEMINI_API_KEY is valid")
			return fmt.Errorf("failed to connect to Gemini API: %w", err)
		}
		simOpts = append(simOpts, similarity.WithEmbedder(gemini.NewEmbedder(client)))
	}
	m.SimilarityService = similarity.NewEngine(source, simOpts...)
	m.Engine = assign.NewEngine(m.ChunkService, m.AssignmentService, m.SimilarityService)

	deps.Chunks = m.ChunkService
	deps.Assignments = m.AssignmentService
	deps.Similarity = m.SimilarityService
	deps.Engine = m.Engine

	return kongCtx.Run(deps)
}

func defaultDBPath() string {
	if path := os.Getenv("DOCCHUNK_DB"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "docchunk.db"
	}
	dir := filepath.Join(home, ".docchunk")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "docchunk.db")
}
