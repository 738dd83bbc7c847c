// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/miranda/pkg/types"
)

const dbFile = "miranda.db"

// SQLite persists project state in dataDir/miranda.db.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the project database under dataDir.
func OpenSQLite(dataDir string) (*SQLite, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			template TEXT NOT NULL,
			description TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS buckets (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			document_ids TEXT NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE(project_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			bucket_id TEXT NOT NULL REFERENCES buckets(id) ON DELETE CASCADE,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			filename TEXT NOT NULL,
			size INTEGER NOT NULL,
			content_type TEXT,
			is_binary INTEGER NOT NULL,
			ingested_at TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_project_id ON documents(project_id)`,
		`CREATE TABLE IF NOT EXISTS document_blobs (
			document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
			content BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS data_tables (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			column_defs TEXT NOT NULL,
			row_data TEXT NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE(project_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS brainstorms (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			context TEXT,
			focus TEXT,
			tone TEXT,
			ideas TEXT NOT NULL,
			sources TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS contents (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			brainstorm_id TEXT NOT NULL REFERENCES brainstorms(id) ON DELETE CASCADE,
			format TEXT NOT NULL,
			length TEXT NOT NULL,
			tone TEXT NOT NULL,
			selected_tables TEXT,
			selected_buckets TEXT,
			body TEXT NOT NULL,
			word_count INTEGER NOT NULL,
			context_used INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func mustJSON(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

// SaveProject inserts or updates a project row.
func (s *SQLite) SaveProject(ctx context.Context, p types.Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, template, description, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET description=excluded.description`,
		p.ID, p.Name, string(p.Template), p.Description, formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving project %s: %w", p.ID, err)
	}
	return nil
}

// SaveBucket inserts or updates a bucket row.
func (s *SQLite) SaveBucket(ctx context.Context, b types.Bucket) error {
	if err := saveBucket(ctx, s.db, b); err != nil {
		return fmt.Errorf("saving bucket %s: %w", b.ID, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveBucket(ctx context.Context, ex execer, b types.Bucket) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO buckets (id, project_id, name, document_ids, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET document_ids=excluded.document_ids`,
		b.ID, b.ProjectID, b.Name, mustJSON(b.DocumentIDs), formatTime(b.CreatedAt),
	)
	return err
}

// SaveDocument writes the document row, its blob, and the bucket's updated
// document list in one transaction.
func (s *SQLite) SaveDocument(ctx context.Context, b types.Bucket, d types.Document, content []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveBucket(ctx, tx, b); err != nil {
		return fmt.Errorf("updating bucket %s: %w", b.ID, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, bucket_id, project_id, filename, size, content_type, is_binary, ingested_at, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.BucketID, d.ProjectID, d.Filename, d.Size, d.ContentType, d.Binary,
		formatTime(d.IngestedAt), string(d.Status), d.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting document %s: %w", d.ID, err)
	}
	if content == nil {
		content = []byte{}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO document_blobs (document_id, content) VALUES (?, ?)`, d.ID, content,
	); err != nil {
		return fmt.Errorf("inserting content of %s: %w", d.ID, err)
	}
	return tx.Commit()
}

// UpdateDocument writes a document's status and error.
func (s *SQLite) UpdateDocument(ctx context.Context, d types.Document) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error = ? WHERE id = ?`,
		string(d.Status), d.Error, d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating document %s: %w", d.ID, err)
	}
	return nil
}

// Blob returns the stored content of a document.
func (s *SQLite) Blob(ctx context.Context, documentID string) ([]byte, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM document_blobs WHERE document_id = ?`, documentID,
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content of document %s not stored", documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading content of %s: %w", documentID, err)
	}
	return content, nil
}

// SaveTable inserts or replaces a table row.
func (s *SQLite) SaveTable(ctx context.Context, t types.Table) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO data_tables (id, project_id, name, column_defs, row_data, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET row_data=excluded.row_data`,
		t.ID, t.ProjectID, t.Name, mustJSON(t.Columns), mustJSON(t.Rows), formatTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving table %s: %w", t.ID, err)
	}
	return nil
}

// SaveBrainstorm inserts a brainstorm record.
func (s *SQLite) SaveBrainstorm(ctx context.Context, b types.Brainstorm) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO brainstorms (id, project_id, context, focus, tone, ideas, sources, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ProjectID, b.Context, b.Focus, string(b.Tone),
		mustJSON(b.Ideas), mustJSON(b.Sources), formatTime(b.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving brainstorm %s: %w", b.ID, err)
	}
	return nil
}

// SaveContent inserts a generated content record.
func (s *SQLite) SaveContent(ctx context.Context, c types.GeneratedContent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contents (id, project_id, brainstorm_id, format, length, tone,
			selected_tables, selected_buckets, body, word_count, context_used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.BrainstormID, string(c.Format), string(c.Length), string(c.Tone),
		mustJSON(c.SelectedTables), mustJSON(c.SelectedBuckets), c.Text, c.WordCount, c.ContextUsed,
		formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving content %s: %w", c.ID, err)
	}
	return nil
}

// DeleteProject removes a project; foreign keys cascade to its children.
func (s *SQLite) DeleteProject(ctx context.Context, projectID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, projectID); err != nil {
		return fmt.Errorf("deleting project %s: %w", projectID, err)
	}
	return nil
}

// Load reads every persisted record.
func (s *SQLite) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	loaders := []struct {
		name string
		fn   func(context.Context, *Snapshot) error
	}{
		{"projects", s.loadProjects},
		{"buckets", s.loadBuckets},
		{"documents", s.loadDocuments},
		{"tables", s.loadTables},
		{"brainstorms", s.loadBrainstorms},
		{"contents", s.loadContents},
	}
	for _, l := range loaders {
		if err := l.fn(ctx, snap); err != nil {
			return nil, fmt.Errorf("loading %s: %w", l.name, err)
		}
	}
	return snap, nil
}

func (s *SQLite) loadProjects(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, template, COALESCE(description, ''), created_at FROM projects ORDER BY created_at`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p types.Project
		var tmpl, created string
		if err := rows.Scan(&p.ID, &p.Name, &tmpl, &p.Description, &created); err != nil {
			return err
		}
		p.Template = types.Template(tmpl)
		p.CreatedAt = parseTime(created)
		snap.Projects = append(snap.Projects, p)
	}
	return rows.Err()
}

func (s *SQLite) loadBuckets(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, document_ids, created_at FROM buckets ORDER BY created_at`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var b types.Bucket
		var ids, created string
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Name, &ids, &created); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(ids), &b.DocumentIDs); err != nil {
			return fmt.Errorf("bucket %s document ids: %w", b.ID, err)
		}
		if b.DocumentIDs == nil {
			b.DocumentIDs = []string{}
		}
		b.CreatedAt = parseTime(created)
		snap.Buckets = append(snap.Buckets, b)
	}
	return rows.Err()
}

func (s *SQLite) loadDocuments(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bucket_id, project_id, filename, size, COALESCE(content_type, ''), is_binary,
			ingested_at, status, COALESCE(error, '')
		 FROM documents ORDER BY ingested_at`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var d types.Document
		var ingested, status string
		if err := rows.Scan(&d.ID, &d.BucketID, &d.ProjectID, &d.Filename, &d.Size, &d.ContentType,
			&d.Binary, &ingested, &status, &d.Error); err != nil {
			return err
		}
		d.IngestedAt = parseTime(ingested)
		d.Status = types.DocumentStatus(status)
		snap.Documents = append(snap.Documents, d)
	}
	return rows.Err()
}

func (s *SQLite) loadTables(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, column_defs, row_data, created_at FROM data_tables ORDER BY created_at`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var t types.Table
		var cols, data, created string
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Name, &cols, &data, &created); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(cols), &t.Columns); err != nil {
			return fmt.Errorf("table %s columns: %w", t.ID, err)
		}
		if err := json.Unmarshal([]byte(data), &t.Rows); err != nil {
			return fmt.Errorf("table %s rows: %w", t.ID, err)
		}
		if t.Rows == nil {
			t.Rows = []types.Row{}
		}
		t.CreatedAt = parseTime(created)
		snap.Tables = append(snap.Tables, t)
	}
	return rows.Err()
}

func (s *SQLite) loadBrainstorms(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, COALESCE(context, ''), COALESCE(focus, ''), COALESCE(tone, ''),
			ideas, COALESCE(sources, 'null'), created_at
		 FROM brainstorms ORDER BY created_at`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var b types.Brainstorm
		var tone, ideas, sources, created string
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Context, &b.Focus, &tone, &ideas, &sources, &created); err != nil {
			return err
		}
		b.Tone = types.Tone(tone)
		if err := json.Unmarshal([]byte(ideas), &b.Ideas); err != nil {
			return fmt.Errorf("brainstorm %s ideas: %w", b.ID, err)
		}
		if err := json.Unmarshal([]byte(sources), &b.Sources); err != nil {
			return fmt.Errorf("brainstorm %s sources: %w", b.ID, err)
		}
		b.CreatedAt = parseTime(created)
		snap.Brainstorms = append(snap.Brainstorms, b)
	}
	return rows.Err()
}

func (s *SQLite) loadContents(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, brainstorm_id, format, length, tone,
			COALESCE(selected_tables, 'null'), COALESCE(selected_buckets, 'null'),
			body, word_count, context_used, created_at
		 FROM contents ORDER BY created_at`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var c types.GeneratedContent
		var format, length, tone, tables, buckets, created string
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.BrainstormID, &format, &length, &tone,
			&tables, &buckets, &c.Text, &c.WordCount, &c.ContextUsed, &created); err != nil {
			return err
		}
		c.Format = types.Template(format)
		c.Length = types.Length(length)
		c.Tone = types.Tone(tone)
		if err := json.Unmarshal([]byte(tables), &c.SelectedTables); err != nil {
			return fmt.Errorf("content %s tables: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(buckets), &c.SelectedBuckets); err != nil {
			return fmt.Errorf("content %s buckets: %w", c.ID, err)
		}
		c.CreatedAt = parseTime(created)
		snap.Contents = append(snap.Contents, c)
	}
	return rows.Err()
}
