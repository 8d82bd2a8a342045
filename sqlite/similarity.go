package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"time"

	"github.com/fwojciec/docchunk"
)

// Compile-time interface verification.
var _ docchunk.SimilarityStore = (*SimilarityService)(nil)

// SimilarityService implements docchunk.SimilarityStore using SQLite.
// It backs the similarity engine's caches with the document_vectors,
// similarity_scores and similarity_clusters tables.
type SimilarityService struct {
	db *DB
}

// NewSimilarityService creates a new SimilarityService.
func NewSimilarityService(db *DB) *SimilarityService {
	return &SimilarityService{db: db}
}

// SaveScores persists pairwise scores for a metric, replacing existing rows.
func (s *SimilarityService) SaveScores(ctx context.Context, metric docchunk.Metric, m docchunk.Matrix) error {
	if len(m) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for pair, score := range m {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO similarity_scores (doc_a, doc_b, metric, score, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (doc_a, doc_b, metric) DO UPDATE SET score = excluded.score, created_at = excluded.created_at
		`, pair.A, pair.B, string(metric), score, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadScores retrieves persisted scores among the given documents.
func (s *SimilarityService) LoadScores(ctx context.Context, docIDs []string, metric docchunk.Metric) (docchunk.Matrix, error) {
	if len(docIDs) == 0 {
		return docchunk.Matrix{}, nil
	}

	ph := placeholders(len(docIDs))
	args := make([]any, 0, 2*len(docIDs)+1)
	for _, id := range docIDs {
		args = append(args, id)
	}
	for _, id := range docIDs {
		args = append(args, id)
	}
	args = append(args, string(metric))

	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_a, doc_b, score FROM similarity_scores
		WHERE doc_a IN (`+ph+`) AND doc_b IN (`+ph+`) AND metric = ?
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := docchunk.Matrix{}
	for rows.Next() {
		var a, b string
		var score float64
		if err := rows.Scan(&a, &b, &score); err != nil {
			return nil, err
		}
		m[docchunk.NewPair(a, b)] = score
	}
	return m, rows.Err()
}

// SaveVector persists a document's vector for a metric.
func (s *SimilarityService) SaveVector(ctx context.Context, docID string, metric docchunk.Metric, vector []float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_vectors (document_id, metric, vector, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (document_id, metric) DO UPDATE SET vector = excluded.vector, created_at = excluded.created_at
	`, docID, string(metric), encodeVector(vector), time.Now().UTC().Format(time.RFC3339))
	return err
}

// LoadVector retrieves a document's vector.
func (s *SimilarityService) LoadVector(ctx context.Context, docID string, metric docchunk.Metric) ([]float64, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT vector FROM document_vectors WHERE document_id = ? AND metric = ?
	`, docID, string(metric)).Scan(&blob)

	if err == sql.ErrNoRows {
		return nil, docchunk.Errorf(docchunk.ENOTFOUND, "vector for document %q not found", docID)
	}
	if err != nil {
		return nil, err
	}
	return decodeVector(blob), nil
}

// SaveClusters persists a clustering result under a cache key, replacing
// any previous result for the same key.
func (s *SimilarityService) SaveClusters(ctx context.Context, key string, clusters [][]string) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM similarity_clusters WHERE cluster_key = ?", key); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i, cluster := range clusters {
		for _, docID := range cluster {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO similarity_clusters (cluster_key, cluster_index, document_id, created_at)
				VALUES (?, ?, ?, ?)
			`, key, i, docID, now); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// encodeVector serializes a float64 vector as little-endian bytes.
func encodeVector(vector []float64) []byte {
	buf := make([]byte, 8*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeVector deserializes a little-endian float64 vector.
func decodeVector(blob []byte) []float64 {
	vector := make([]float64, len(blob)/8)
	for i := range vector {
		vector[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return vector
}
