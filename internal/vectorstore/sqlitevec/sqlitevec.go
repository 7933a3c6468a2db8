// Package sqlitevec provides a SQLite-backed vector store using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/s76354m/AxisRAG/internal/domain"
)

// Storage implements domain.VectorStore using SQLite with sqlite-vec.
type Storage struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Config holds configuration for the SQLite vec store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string
}

// NewStorage opens the database and verifies sqlite-vec is loaded. Tables are
// created by Init once the dimension is known.
func NewStorage(c Config, logger *slog.Logger) (*Storage, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	if c.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// vec0 tables and ":memory:" databases live on a single connection.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	logger.Debug("sqlite-vec store opened",
		"db_path", c.DBPath,
		"vec_version", vecVersion,
	)

	return &Storage{db: db, path: c.DBPath, logger: logger}, nil
}

// Init creates the tables for vectors of the given dimension. A database
// created for another dimension is rejected.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS store_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		// vec0 virtual tables use integer rowids, so chunk IDs are mapped
		// to rowids here.
		`CREATE TABLE IF NOT EXISTS chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			chunk_id TEXT NOT NULL UNIQUE,
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			char_offset INTEGER NOT NULL DEFAULT 0,
			first_page INTEGER NOT NULL DEFAULT 0,
			last_page INTEGER NOT NULL DEFAULT 0,
			text TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS chunks_document_id ON chunks(document_id)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(embedding float[%d])`, dimension),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = 'dimension'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO store_meta(key, value) VALUES ('dimension', ?)`, strconv.Itoa(dimension),
		); err != nil {
			return fmt.Errorf("recording dimension: %w", err)
		}
	case err != nil:
		return fmt.Errorf("reading dimension: %w", err)
	case stored != strconv.Itoa(dimension):
		return fmt.Errorf("%s holds %s-dimensional vectors, embedder produces %d", s.path, stored, dimension)
	}

	s.logger.Info("sqlite-vec store initialized", "db_path", s.path, "dimensions", dimension)
	return nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Upsert stores entries. If a chunk with the same ID already exists, it is
// replaced.
func (s *Storage) Upsert(ctx context.Context, entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		ch := e.Chunk
		blob := serializeFloat32(e.Vector)

		var rowID int64
		err := tx.QueryRowContext(ctx, `SELECT rowid FROM chunks WHERE chunk_id = ?`, ch.ChunkID).Scan(&rowID)
		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE chunks SET document_id = ?, chunk_index = ?, char_offset = ?, first_page = ?, last_page = ?, text = ? WHERE rowid = ?`,
				ch.DocumentID, ch.Index, ch.Offset, ch.FirstPage, ch.LastPage, ch.Text, rowID,
			); err != nil {
				return fmt.Errorf("updating chunk %s: %w", ch.ChunkID, err)
			}
			// vec0 does not support UPDATE
			if _, err := tx.ExecContext(ctx, `DELETE FROM vec_chunks WHERE rowid = ?`, rowID); err != nil {
				return fmt.Errorf("deleting old embedding for chunk %s: %w", ch.ChunkID, err)
			}
		case errors.Is(err, sql.ErrNoRows):
			result, err := tx.ExecContext(ctx,
				`INSERT INTO chunks(chunk_id, document_id, chunk_index, char_offset, first_page, last_page, text) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				ch.ChunkID, ch.DocumentID, ch.Index, ch.Offset, ch.FirstPage, ch.LastPage, ch.Text,
			)
			if err != nil {
				return fmt.Errorf("inserting chunk %s: %w", ch.ChunkID, err)
			}
			rowID, err = result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for chunk %s: %w", ch.ChunkID, err)
			}
		default:
			return fmt.Errorf("checking for existing chunk %s: %w", ch.ChunkID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_chunks(rowid, embedding) VALUES (?, ?)`, rowID, blob,
		); err != nil {
			return fmt.Errorf("inserting embedding for chunk %s: %w", ch.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("upserted chunks into sqlite-vec", "count", len(entries))
	return nil
}

// Query finds the topK nearest chunks. Vectors are unit length, so the L2
// distance d maps to cosine similarity 1 - d²/2.
func (s *Storage) Query(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			c.chunk_id, c.document_id, c.chunk_index, c.char_offset,
			c.first_page, c.last_page, c.text, v.distance
		FROM vec_chunks v
		INNER JOIN chunks c ON c.rowid = v.rowid
		WHERE v.embedding MATCH ?
			AND v.k = ?
		ORDER BY v.distance
	`, serializeFloat32(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var ch domain.Chunk
		var distance float64
		if err := rows.Scan(&ch.ChunkID, &ch.DocumentID, &ch.Index, &ch.Offset,
			&ch.FirstPage, &ch.LastPage, &ch.Text, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		results = append(results, domain.SearchResult{Chunk: ch, Score: 1 - distance*distance/2})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	s.logger.Debug("queried sqlite-vec", "results", len(results))
	return results, nil
}

// Count returns the number of stored chunks.
func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// DeleteDocument removes every chunk of documentID.
func (s *Storage) DeleteDocument(ctx context.Context, documentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT rowid FROM chunks WHERE document_id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("querying rowids for deletion: %w", err)
	}
	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rowids: %w", err)
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_chunks WHERE rowid = ?`, rowID); err != nil {
			return fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", documentID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("deleted document from sqlite-vec", "document_id", documentID, "chunks", len(rowIDs))
	return nil
}

// DeleteChunks removes the given chunks and their embeddings. Unknown IDs are
// ignored.
func (s *Storage) DeleteChunks(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range chunkIDs {
		var rowID int64
		err := tx.QueryRowContext(ctx, `SELECT rowid FROM chunks WHERE chunk_id = ?`, id).Scan(&rowID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("looking up chunk %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_chunks WHERE rowid = ?`, rowID); err != nil {
			return fmt.Errorf("deleting embedding for chunk %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE rowid = ?`, rowID); err != nil {
			return fmt.Errorf("deleting chunk %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Close releases resources held by the store.
func (s *Storage) Close() error {
	return s.db.Close()
}
