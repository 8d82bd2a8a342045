// Package sqlite provides SQLite-based storage implementations for docchunk services.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB represents a SQLite database connection.
type DB struct {
	db   *sql.DB
	path string
}

// NewDB creates a new DB instance with the given path.
// Use ":memory:" for an in-memory database.
func NewDB(path string) *DB {
	return &DB{path: path}
}

// Open opens the database connection and creates the schema if needed.
func (db *DB) Open() error {
	conn, err := sql.Open("sqlite3", db.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit to one connection.
	conn.SetMaxOpenConns(1)

	// Verify connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set busy timeout to wait 5 seconds before failing on lock contention.
	// This prevents immediate "database is locked" errors.
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Enable WAL mode for file-based databases for better write performance.
	// Note: WAL mode is not supported for in-memory databases.
	if db.path != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
			conn.Close()
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	// Enable foreign key constraints
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db.db = conn

	// Create schema
	if err := db.createSchema(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// BeginTx starts a transaction. Multi-statement service methods run one
// transaction per public call.
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return db.db.BeginTx(ctx, nil)
}

// QueryRowContext executes a query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// ExecContext executes a statement that doesn't return rows.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

// Stats returns database statistics.
func (db *DB) Stats() sql.DBStats {
	return db.db.Stats()
}

// createSchema creates the database tables if they don't exist.
func (db *DB) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			capacity INTEGER NOT NULL,
			current_size INTEGER NOT NULL DEFAULT 0,
			version INTEGER NOT NULL DEFAULT 1,
			similarity_group TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chunks_state ON chunks(state);

		CREATE TABLE IF NOT EXISTS chunk_documents (
			chunk_id TEXT NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
			document_id TEXT NOT NULL,
			score REAL NOT NULL DEFAULT 1.0,
			position INTEGER NOT NULL,
			added_at TEXT NOT NULL,
			PRIMARY KEY (chunk_id, document_id)
		);

		CREATE INDEX IF NOT EXISTS idx_chunk_documents_document_id ON chunk_documents(document_id);

		CREATE TABLE IF NOT EXISTS chunk_versions (
			chunk_id TEXT NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
			version INTEGER NOT NULL,
			action TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chunk_versions_chunk_id ON chunk_versions(chunk_id);

		CREATE TABLE IF NOT EXISTS chunk_relationships (
			parent_id TEXT NOT NULL,
			child_id TEXT NOT NULL,
			relation TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (parent_id, child_id, relation)
		);

		CREATE TABLE IF NOT EXISTS assignments (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			chunk_id TEXT NOT NULL,
			status TEXT NOT NULL,
			score REAL NOT NULL,
			strategy TEXT NOT NULL,
			previous_chunk_id TEXT NOT NULL DEFAULT '',
			conflict_detail TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_assignments_document_id ON assignments(document_id);
		CREATE INDEX IF NOT EXISTS idx_assignments_chunk_id ON assignments(chunk_id);
		CREATE INDEX IF NOT EXISTS idx_assignments_status ON assignments(status);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_assigned
			ON assignments(document_id, chunk_id) WHERE status = 'assigned';

		CREATE TABLE IF NOT EXISTS assignment_history (
			id TEXT PRIMARY KEY,
			assignment_id TEXT NOT NULL,
			document_id TEXT NOT NULL,
			chunk_id TEXT NOT NULL,
			action TEXT NOT NULL,
			status TEXT NOT NULL,
			score REAL NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_assignment_history_document_id ON assignment_history(document_id);

		CREATE TABLE IF NOT EXISTS assignment_conflicts (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			primary_chunk_id TEXT NOT NULL,
			secondary_chunk_id TEXT NOT NULL,
			primary_score REAL NOT NULL,
			secondary_score REAL NOT NULL,
			resolved_chunk_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			resolved_at TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_assignment_conflicts_document_id ON assignment_conflicts(document_id);

		CREATE TABLE IF NOT EXISTS document_vectors (
			document_id TEXT NOT NULL,
			metric TEXT NOT NULL,
			vector BLOB NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (document_id, metric)
		);

		CREATE TABLE IF NOT EXISTS similarity_scores (
			doc_a TEXT NOT NULL,
			doc_b TEXT NOT NULL,
			metric TEXT NOT NULL,
			score REAL NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (doc_a, doc_b, metric)
		);

		CREATE TABLE IF NOT EXISTS similarity_clusters (
			cluster_key TEXT NOT NULL,
			cluster_index INTEGER NOT NULL,
			document_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (cluster_key, document_id)
		);
	`

	_, err := db.db.Exec(schema)
	return err
}
