// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine is the retrieval engine behind a project's index scope. A
// scope is one directory holding a SQLite database of text passages, their
// full-text index, and their embedding vectors.
package engine

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/miranda/internal/llm"
)

// ErrEmpty is returned by Query when the scope holds no passages.
var ErrEmpty = errors.New("engine: scope has no indexed content")

const (
	dbFile         = "index.db"
	embedBatchSize = 64
	defaultTopK    = 6
)

// Options configure a Handle.
type Options struct {
	// Embedder vectorises passages and queries. Nil disables vector search.
	Embedder llm.Embedder

	// Completer synthesises answers in Query.
	Completer llm.Completer

	ChunkSize    int
	ChunkOverlap int
}

// Handle is an open scope.
type Handle struct {
	db   *sql.DB
	dir  string
	opts Options
}

// Open opens or creates the scope database in dir.
func Open(dir string, opts Options) (*Handle, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating scope directory: %w", err)
	}
	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening scope database: %w", err)
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	h := &Handle{db: db, dir: dir, opts: opts}
	if err := h.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return h, nil
}

// Dir returns the scope directory.
func (h *Handle) Dir() string {
	return h.dir
}

// Close releases the database connection.
func (h *Handle) Close() error {
	return h.db.Close()
}

func (h *Handle) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			heading TEXT,
			body TEXT NOT NULL,
			embedding BLOB,
			UNIQUE(doc_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id)`,
	}
	for _, stmt := range statements {
		if _, err := h.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := h.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='chunks_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}
	// FTS5 needs the sqlite_fts5 build tag; FTS4 is always compiled in.
	if _, err := h.db.Exec(`CREATE VIRTUAL TABLE chunks_fts USING fts5(body)`); err != nil {
		if _, err4 := h.db.Exec(`CREATE VIRTUAL TABLE chunks_fts USING fts4(body)`); err4 != nil {
			return fmt.Errorf("creating FTS table: %w", errors.Join(err, err4))
		}
	}
	return nil
}

// Count returns the number of stored passages.
func (h *Handle) Count(ctx context.Context) (int, error) {
	var n int
	if err := h.db.QueryRowContext(ctx, `SELECT count(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting passages: %w", err)
	}
	return n, nil
}

// Insert chunks text and merges the passages of docID into the scope in one
// transaction. Re-inserting a document replaces its passages. A cancelled
// context rolls the transaction back and leaves the scope unchanged.
func (h *Handle) Insert(ctx context.Context, docID, text string) (int, error) {
	chunks := chunkText(text, h.opts.ChunkSize, h.opts.ChunkOverlap)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document %s has no indexable text", docID)
	}

	vectors, err := h.embedChunks(ctx, chunks)
	if err != nil {
		return 0, err
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks_fts WHERE rowid IN (SELECT rowid FROM chunks WHERE doc_id = ?)`, docID,
	); err != nil {
		return 0, fmt.Errorf("deleting old full-text rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return 0, fmt.Errorf("deleting old passages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (doc_id, seq, heading, body, embedding) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()
	ftsStmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks_fts (rowid, body) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing full-text insert: %w", err)
	}
	defer ftsStmt.Close()

	for i, c := range chunks {
		var blob []byte
		if vectors != nil {
			blob = encodeVector(vectors[i])
		}
		res, err := stmt.ExecContext(ctx, docID, c.seq, c.heading, c.text, blob)
		if err != nil {
			return 0, fmt.Errorf("inserting passage %d of %s: %w", c.seq, docID, err)
		}
		rowid, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("reading passage rowid: %w", err)
		}
		if _, err := ftsStmt.ExecContext(ctx, rowid, ftsText(c)); err != nil {
			return 0, fmt.Errorf("indexing passage %d of %s: %w", c.seq, docID, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing passages: %w", err)
	}
	return len(chunks), nil
}

// Delete removes every passage of docID from the scope.
func (h *Handle) Delete(ctx context.Context, docID string) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks_fts WHERE rowid IN (SELECT rowid FROM chunks WHERE doc_id = ?)`, docID,
	); err != nil {
		return fmt.Errorf("deleting full-text rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("deleting passages: %w", err)
	}
	return tx.Commit()
}

func ftsText(c chunk) string {
	if c.heading == "" {
		return c.text
	}
	return c.heading + "\n" + c.text
}

func (h *Handle) vectorsEnabled() bool {
	return h.opts.Embedder != nil && h.opts.Embedder.Configured()
}

func (h *Handle) embedChunks(ctx context.Context, chunks []chunk) ([][]float32, error) {
	if !h.vectorsEnabled() {
		return nil, nil
	}
	out := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, ftsText(c))
		}
		vecs, err := h.opts.Embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding passages: %w", err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embedding passages: got %d vectors for %d texts", len(vecs), len(texts))
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
